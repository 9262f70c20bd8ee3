package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gowvp/argus/internal/conf"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(conf.Analysis{URL: srv.URL, Threshold: 0.5})
}

func TestDetect(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != detectPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Error(err)
		}
		if in["feed_id"] != "fd_1" {
			t.Errorf("feed_id = %v", in["feed_id"])
		}
		json.NewEncoder(w).Encode(detectResponse{Detection: &CandidateDetection{
			Type:       TypeTrafficViolation,
			SubType:    "red_light",
			Severity:   SeverityMedium,
			Confidence: 0.82,
		}})
	})

	det, err := cli.Detect(context.Background(), &Frame{
		FeedID:    "fd_1",
		Num:       30,
		Width:     4,
		Height:    4,
		Timestamp: time.Now(),
		Data:      []byte{1, 2, 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	if det == nil || det.Type != TypeTrafficViolation {
		t.Fatalf("unexpected detection %+v", det)
	}
	if det.FrameNum != 30 {
		t.Fatalf("frame num = %d, want 30", det.FrameNum)
	}
}

// 置信度低于阈值的结果当作无事发生
func TestDetectBelowThreshold(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(detectResponse{Detection: &CandidateDetection{
			Type:       TypeCivicIssue,
			Confidence: 0.3,
		}})
	})

	det, err := cli.Detect(context.Background(), &Frame{FeedID: "fd_1", Num: 30})
	if err != nil {
		t.Fatal(err)
	}
	if det != nil {
		t.Fatalf("expected nil detection, got %+v", det)
	}
}

func TestDetectServerError(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	if _, err := cli.Detect(context.Background(), &Frame{FeedID: "fd_1"}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestDetectAudioFiltersThreshold(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != detectAudioPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(detectAudioResponse{Detections: []CandidateDetection{
			{Type: TypeEmergency, SubType: "gunshot", Confidence: 0.9},
			{Type: TypeCivicIssue, SubType: "noise", Confidence: 0.2},
		}})
	})

	items, err := cli.DetectAudio(context.Background(), "/tmp/clip.wav")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].SubType != "gunshot" {
		t.Fatalf("unexpected detections %+v", items)
	}
}

func TestHealthy(t *testing.T) {
	cli := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthPath {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	if !cli.Healthy(context.Background()) {
		t.Fatal("expected healthy")
	}
}
