package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/incident"
	"github.com/gowvp/argus/internal/core/vision"
)

func testMonitorConf() conf.Monitor {
	return conf.Monitor{
		SampleEvery:  30,
		PaceMs:       0,
		RetryPauseMs: 1,
		WatchdogSec:  0,
		FrameWidth:   4,
		FrameHeight:  4,
		FPS:          30,
	}
}

func testMonitorFeed() *feed.Feed {
	return &feed.Feed{ID: "fd_1", Name: "gate", StreamURL: "mem://", IsActive: true}
}

// fakeSource 按脚本回放读取结果，脚本耗尽后返回 EOF 或阻塞到取消
type fakeSource struct {
	live   bool
	block  bool
	reads  []error // nil 表示正常出帧
	idx    int
	closed atomic.Bool
}

func (s *fakeSource) Read(ctx context.Context) (*vision.Frame, error) {
	if s.idx >= len(s.reads) {
		if s.block {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return nil, io.EOF
	}
	step := s.reads[s.idx]
	s.idx++
	if step != nil {
		return nil, step
	}
	return &vision.Frame{FeedID: "fd_1", Width: 4, Height: 4, Timestamp: time.Now()}, nil
}

func (s *fakeSource) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *fakeSource) Live() bool { return s.live }

func frameScript(n int, tail ...error) []error {
	out := make([]error, 0, n+len(tail))
	for range n {
		out = append(out, nil)
	}
	return append(out, tail...)
}

type fakeDetector struct {
	calls atomic.Int64
	fn    func(call int64, f *vision.Frame) (*vision.CandidateDetection, error)
}

func (d *fakeDetector) Detect(_ context.Context, f *vision.Frame) (*vision.CandidateDetection, error) {
	n := d.calls.Add(1)
	if d.fn == nil {
		return nil, nil
	}
	return d.fn(n, f)
}

func (d *fakeDetector) DetectAudio(context.Context, string) ([]vision.CandidateDetection, error) {
	return nil, nil
}
func (d *fakeDetector) Healthy(context.Context) bool     { return true }
func (d *fakeDetector) Initialize(context.Context) error { return nil }
func (d *fakeDetector) Cleanup(context.Context) error    { return nil }

type fakeRecorder struct {
	count atomic.Int64
}

func (r *fakeRecorder) Record(_ context.Context, _ *feed.Feed, _ *vision.CandidateDetection) (*incident.Incident, error) {
	id := r.count.Add(1)
	return &incident.Incident{ID: id}, nil
}

type fakeFeeds struct{}

func (fakeFeeds) GetFeed(_ context.Context, id string) (*feed.Feed, error) {
	f := testMonitorFeed()
	f.ID = id
	return f, nil
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// 61 帧文件流: 第 30/60 帧送检，其中一次检出，流尾正常结束
func TestSamplingCadence(t *testing.T) {
	det := &fakeDetector{
		fn: func(_ int64, f *vision.Frame) (*vision.CandidateDetection, error) {
			if f.Num == 30 {
				return &vision.CandidateDetection{Type: vision.TypeCrime, Confidence: 0.9}, nil
			}
			return nil, nil
		},
	}
	rec := &fakeRecorder{}
	src := &fakeSource{reads: frameScript(61)}

	s := newSession(testMonitorFeed(), testMonitorConf(), det, rec, NewStats())
	s.run(src)

	if got := s.frames.Load(); got != 61 {
		t.Fatalf("frames = %d, want 61", got)
	}
	if got := det.calls.Load(); got != 2 {
		t.Fatalf("detector calls = %d, want 2", got)
	}
	if got := rec.count.Load(); got != 1 {
		t.Fatalf("recorded incidents = %d, want 1", got)
	}
	if st := s.Status(); st.State != StateIdle || st.Incidents != 1 {
		t.Fatalf("unexpected status %+v", st)
	}
	if !src.closed.Load() {
		t.Fatal("source was not released")
	}
}

// 单次送检失败不影响后续采样点
func TestDetectFailureAbsorbed(t *testing.T) {
	det := &fakeDetector{
		fn: func(call int64, _ *vision.Frame) (*vision.CandidateDetection, error) {
			switch call {
			case 1:
				return nil, errors.New("analysis backend down")
			case 2:
				return &vision.CandidateDetection{Type: vision.TypeEmergency, Confidence: 0.95}, nil
			}
			return nil, nil
		},
	}
	rec := &fakeRecorder{}
	src := &fakeSource{reads: frameScript(90)}

	s := newSession(testMonitorFeed(), testMonitorConf(), det, rec, NewStats())
	s.run(src)

	if got := s.frames.Load(); got != 90 {
		t.Fatalf("frames = %d, want 90", got)
	}
	if got := det.calls.Load(); got != 3 {
		t.Fatalf("detector calls = %d, want 3", got)
	}
	if got := rec.count.Load(); got != 1 {
		t.Fatalf("recorded incidents = %d, want 1", got)
	}
}

// 直播流断流重试后帧计数接续，不从头再来
func TestLiveGapRetry(t *testing.T) {
	gap := errors.New("no frame within 10s")
	src := &fakeSource{
		live:  true,
		block: true,
		reads: append(frameScript(2, gap, gap), nil),
	}
	s := newSession(testMonitorFeed(), testMonitorConf(), &fakeDetector{}, &fakeRecorder{}, NewStats())

	go s.run(src)
	waitFor(t, func() bool { return s.frames.Load() == 3 }, "3 frames")

	s.Stop()
	<-s.done

	if got := s.frames.Load(); got != 3 {
		t.Fatalf("frames = %d, want 3", got)
	}
	if st := s.Status(); st.State != StateIdle {
		t.Fatalf("state = %s, want idle", st.State)
	}
	if !src.closed.Load() {
		t.Fatal("source was not released")
	}
}

// 文件流读错误(非 EOF)进入 faulted，源仍被释放
func TestFileReadErrorFaults(t *testing.T) {
	src := &fakeSource{reads: frameScript(5, errors.New("corrupt container"))}
	s := newSession(testMonitorFeed(), testMonitorConf(), &fakeDetector{}, &fakeRecorder{}, NewStats())
	s.run(src)

	if st := s.Status(); st.State != StateFaulted {
		t.Fatalf("state = %s, want faulted", st.State)
	}
	if !src.closed.Load() {
		t.Fatal("source was not released")
	}
}

// 重复启动同一路流是幂等操作，不会开第二个源
func TestStartMonitorIdempotent(t *testing.T) {
	var opened atomic.Int64
	src := &fakeSource{live: true, block: true}

	c := NewCore(testMonitorConf(), fakeFeeds{}, &fakeDetector{}, &fakeRecorder{})
	c.openSrc = func(conf.Monitor, *feed.Feed) (Source, error) {
		opened.Add(1)
		return src, nil
	}

	ctx := context.Background()
	if _, err := c.StartMonitor(ctx, "fd_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StartMonitor(ctx, "fd_1"); err != nil {
		t.Fatal(err)
	}
	if got := opened.Load(); got != 1 {
		t.Fatalf("sources opened = %d, want 1", got)
	}

	if _, err := c.StopMonitor(ctx, "fd_1"); err != nil {
		t.Fatal(err)
	}
	if !src.closed.Load() {
		t.Fatal("source was not released")
	}
	if _, err := c.GetStatus("fd_1"); err == nil {
		t.Fatal("expected not found after stop")
	}
	waitFor(t, func() bool { return c.stats.ActiveSessions.Value() == 0 }, "active sessions drained")
}

// 停止未监控的流返回未找到
func TestStopMonitorNotRunning(t *testing.T) {
	c := NewCore(testMonitorConf(), fakeFeeds{}, &fakeDetector{}, &fakeRecorder{})
	if _, err := c.StopMonitor(context.Background(), "fd_404"); err == nil {
		t.Fatal("expected not found")
	}
}

// logCapture 收集日志消息，用于断言告警分支确实走到
type logCapture struct {
	mu   sync.Mutex
	msgs []string
}

func (h *logCapture) Enabled(context.Context, slog.Level) bool { return true }

func (h *logCapture) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	h.msgs = append(h.msgs, r.Message)
	h.mu.Unlock()
	return nil
}

func (h *logCapture) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *logCapture) WithGroup(string) slog.Handler      { return h }

func (h *logCapture) contains(msg string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, m := range h.msgs {
		if strings.Contains(m, msg) {
			return true
		}
	}
	return false
}

// 长时间无事件触发看门狗告警，此时停止会话干净收尾:
// 状态回到 idle、源被释放、注册表与计数器无残留
func TestWatchdogQuietStop(t *testing.T) {
	capture := &logCapture{}
	prev := slog.Default()
	slog.SetDefault(slog.New(capture))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := testMonitorConf()
	cfg.WatchdogSec = 1
	cfg.PaceMs = 5

	src := &fakeSource{live: true, block: true, reads: frameScript(1000)}
	c := NewCore(cfg, fakeFeeds{}, &fakeDetector{}, &fakeRecorder{})
	c.openSrc = func(conf.Monitor, *feed.Feed) (Source, error) {
		return src, nil
	}

	ctx := context.Background()
	if _, err := c.StartMonitor(ctx, "fd_1"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return capture.contains("no incident detected recently") }, "watchdog warning")

	st, err := c.StopMonitor(ctx, "fd_1")
	if err != nil {
		t.Fatal(err)
	}
	if st.State != StateIdle {
		t.Fatalf("state = %s, want idle", st.State)
	}
	if st.Incidents != 0 {
		t.Fatalf("incidents = %d, want 0", st.Incidents)
	}
	if !src.closed.Load() {
		t.Fatal("source was not released")
	}
	if _, err := c.GetStatus("fd_1"); err == nil {
		t.Fatal("expected not found after stop")
	}
	waitFor(t, func() bool { return c.stats.ActiveSessions.Value() == 0 }, "active sessions drained")
}

// 开源失败会释放占位，挂在等待上的 StopMonitor 立即返回而不是等到超时
func TestStopDuringFailedStart(t *testing.T) {
	c := NewCore(testMonitorConf(), fakeFeeds{}, &fakeDetector{}, &fakeRecorder{})
	entered := make(chan struct{})
	release := make(chan struct{})
	c.openSrc = func(conf.Monitor, *feed.Feed) (Source, error) {
		close(entered)
		<-release
		return nil, errors.New("connection refused")
	}

	startErr := make(chan error, 1)
	go func() {
		_, err := c.StartMonitor(context.Background(), "fd_1")
		startErr <- err
	}()
	<-entered

	stopDone := make(chan struct{})
	go func() {
		defer close(stopDone)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_, _ = c.StopMonitor(ctx, "fd_1")
	}()
	// 让 StopMonitor 先挂到会话结束信号上
	time.Sleep(20 * time.Millisecond)
	close(release)

	if err := <-startErr; err == nil {
		t.Fatal("expected start error")
	}
	select {
	case <-stopDone:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("stop did not return after failed start")
	}
	if _, err := c.GetStatus("fd_1"); err == nil {
		t.Fatal("expected session to be removed")
	}
}

// Shutdown 停掉所有会话
func TestShutdown(t *testing.T) {
	c := NewCore(testMonitorConf(), fakeFeeds{}, &fakeDetector{}, &fakeRecorder{})
	srcs := make([]*fakeSource, 0, 3)
	c.openSrc = func(conf.Monitor, *feed.Feed) (Source, error) {
		s := &fakeSource{live: true, block: true}
		srcs = append(srcs, s)
		return s, nil
	}

	ctx := context.Background()
	for _, id := range []string{"fd_1", "fd_2", "fd_3"} {
		if _, err := c.StartMonitor(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	if got := len(c.StatusAll()); got != 3 {
		t.Fatalf("sessions = %d, want 3", got)
	}

	c.Shutdown(ctx)
	for _, s := range srcs {
		waitFor(t, s.closed.Load, "source closed")
	}
	waitFor(t, func() bool { return c.stats.ActiveSessions.Value() == 0 }, "active sessions drained")
}
