package incident

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/notify"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

// memStore 内存存储桩，按插入顺序分配自增 ID
type memStore struct {
	mu        sync.Mutex
	incidents []*Incident
	logs      []*NotificationLog
	addErr    error
}

func (m *memStore) Incident() IncidentStorer               { return memIncident{m} }
func (m *memStore) NotificationLog() NotificationLogStorer { return memLog{m} }

type memIncident struct{ s *memStore }

func (m memIncident) Add(_ context.Context, in *Incident) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.addErr != nil {
		return m.s.addErr
	}
	in.ID = int64(len(m.s.incidents) + 1)
	cp := *in
	m.s.incidents = append(m.s.incidents, &cp)
	return nil
}

func (m memIncident) Get(_ context.Context, out *Incident, _ ...orm.QueryOption) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, inc := range m.s.incidents {
		if inc.ID == out.ID {
			*out = *inc
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m memIncident) Find(context.Context, *[]*Incident, orm.Pager, ...orm.QueryOption) (int64, error) {
	return 0, nil
}

func (m memIncident) Edit(context.Context, *Incident, func(*Incident), ...orm.QueryOption) error {
	return nil
}
func (m memIncident) Del(context.Context, *Incident, ...orm.QueryOption) error { return nil }
func (m memIncident) Count(context.Context, ...orm.QueryOption) (int64, error) {
	return 0, nil
}
func (m memIncident) Session(context.Context, ...func(*gorm.DB) error) error { return nil }

type memLog struct{ s *memStore }

func (m memLog) Add(_ context.Context, in *NotificationLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	in.ID = int64(len(m.s.logs) + 1)
	cp := *in
	m.s.logs = append(m.s.logs, &cp)
	return nil
}

func (m memLog) Find(context.Context, *[]*NotificationLog, orm.Pager, ...orm.QueryOption) (int64, error) {
	return 0, nil
}

// failNotifier 所有渠道均失败的分发桩
type failNotifier struct {
	done chan struct{}
}

func (f *failNotifier) Dispatch(_ context.Context, msg *notify.Message) []notify.Attempt {
	defer close(f.done)
	return []notify.Attempt{{
		MessageID: "m1",
		Channel:   "webhook",
		Recipient: "http://police.example",
		Err:       errors.New("gateway unreachable"),
	}}
}

func testFeed() *feed.Feed {
	return &feed.Feed{ID: "fd_1", Name: "gate", Location: "North Gate", StreamURL: "rtsp://x"}
}

func TestRecordSurvivesDispatcherFailure(t *testing.T) {
	store := &memStore{}
	notifier := &failNotifier{done: make(chan struct{})}
	core := NewCore(store, WithNotifier(notifier), WithSnapshotDir(t.TempDir()))

	inc, err := core.Record(context.Background(), testFeed(), &vision.CandidateDetection{
		Type:       vision.TypeCrime,
		SubType:    "fight",
		Severity:   vision.SeverityHigh,
		Confidence: 0.88,
		FrameNum:   30,
	})
	if err != nil {
		t.Fatal(err)
	}
	if inc.ID == 0 {
		t.Fatal("expected a persisted incident id")
	}

	// 通知失败不影响读回
	got, err := core.GetIncident(context.Background(), inc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != vision.TypeCrime || got.Acknowledged {
		t.Fatalf("unexpected incident %+v", got)
	}

	select {
	case <-notifier.done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher was not invoked")
	}

	// 投递失败要留下 failed 记录
	deadline := time.Now().Add(2 * time.Second)
	for {
		store.mu.Lock()
		n := len(store.logs)
		store.mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("notification log was not written")
		}
		time.Sleep(10 * time.Millisecond)
	}
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.logs[0].Status != "failed" || store.logs[0].IncidentID != inc.ID {
		t.Fatalf("unexpected log %+v", store.logs[0])
	}
}

func TestRecordDefaultsSeverity(t *testing.T) {
	store := &memStore{}
	core := NewCore(store, WithSnapshotDir(t.TempDir()))

	inc, err := core.Record(context.Background(), testFeed(), &vision.CandidateDetection{
		Type:       vision.TypeCivicIssue,
		Confidence: 0.7,
	})
	if err != nil {
		t.Fatal(err)
	}
	if inc.Severity != vision.SeverityMedium {
		t.Fatalf("severity = %s, want medium", inc.Severity)
	}
	if inc.Location != "North Gate" {
		t.Fatalf("location = %s, want feed location", inc.Location)
	}
}

func TestRecordStorageFailure(t *testing.T) {
	store := &memStore{addErr: errors.New("disk full")}
	core := NewCore(store, WithSnapshotDir(t.TempDir()))

	if _, err := core.Record(context.Background(), testFeed(), &vision.CandidateDetection{
		Type: vision.TypeEmergency,
	}); err == nil {
		t.Fatal("expected storage error to surface")
	}
}
