package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/orm"
)

func TestDispatchWebhookRouting(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher(conf.Notify{
		Webhook: conf.Webhook{PoliceURL: srv.URL},
	})

	attempts := d.Dispatch(context.Background(), &Message{
		IncidentID: 7,
		FeedID:     "fd_1",
		Type:       vision.TypeCrime,
		SubType:    "fight",
		Severity:   vision.SeverityMedium,
		Confidence: 0.83,
		Timestamp:  orm.Now(),
	})

	var webhookAttempt *Attempt
	for i := range attempts {
		if attempts[i].Channel == "webhook" {
			webhookAttempt = &attempts[i]
		}
	}
	if webhookAttempt == nil {
		t.Fatal("expected a webhook attempt for crime incident")
	}
	if webhookAttempt.Err != nil {
		t.Fatalf("webhook attempt failed: %v", webhookAttempt.Err)
	}
	if webhookAttempt.Status() != "sent" {
		t.Fatalf("status = %s, want sent", webhookAttempt.Status())
	}
	if got.IncidentID != 7 || got.SubType != "fight" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestDispatchFailureIsolated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d := NewDispatcher(conf.Notify{
		Webhook: conf.Webhook{FireDepartmentURL: srv.URL},
		SMS:     conf.SMS{APIURL: srv.URL},
	})

	attempts := d.Dispatch(context.Background(), &Message{
		Type:      vision.TypeEmergency,
		Severity:  vision.SeverityCritical,
		Timestamp: orm.Now(),
	})
	if len(attempts) == 0 {
		t.Fatal("expected attempts for critical emergency")
	}
	// 所有渠道都失败也必须返回完整结果，不允许中断其余渠道
	var channels []string
	for _, a := range attempts {
		channels = append(channels, a.Channel)
		if a.Status() != "failed" && a.Channel != "email" {
			t.Fatalf("channel %s status = %s, want failed", a.Channel, a.Status())
		}
	}
	joined := strings.Join(channels, ",")
	if !strings.Contains(joined, "webhook") || !strings.Contains(joined, "sms") {
		t.Fatalf("missing channels in %s", joined)
	}
}

func TestDispatchUnknownType(t *testing.T) {
	d := NewDispatcher(conf.Notify{})
	attempts := d.Dispatch(context.Background(), &Message{Type: "unknown", Timestamp: orm.Now()})
	if attempts != nil {
		t.Fatalf("expected no attempts, got %d", len(attempts))
	}
}

func TestRenderMessage(t *testing.T) {
	body := renderMessage(&Message{
		IncidentID: 3,
		FeedID:     "fd_9",
		Type:       vision.TypeTrafficViolation,
		SubType:    "wrong_way_driving",
		Severity:   vision.SeverityHigh,
		Confidence: 0.91,
		Location:   "5th Ave",
		Timestamp:  orm.Now(),
	})
	for _, want := range []string{"Traffic Violation", "Wrong Way Driving", "HIGH", "5th Ave", "Incident ID: 3"} {
		if !strings.Contains(body, want) {
			t.Fatalf("message missing %q:\n%s", want, body)
		}
	}
}
