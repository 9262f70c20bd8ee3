package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/orm"
)

// 会话状态机: idle -> starting -> running -> stopping -> idle
// 源打开失败或直播外的读取错误进入 faulted
const (
	StateIdle     = "idle"
	StateStarting = "starting"
	StateRunning  = "running"
	StateStopping = "stopping"
	StateFaulted  = "faulted"
)

// Status 会话运行快照
type Status struct {
	FeedID      string   `json:"feed_id"`
	State       string   `json:"state"`
	Frames      uint64   `json:"frames"`
	Incidents   uint64   `json:"incidents"`
	StartedAt   orm.Time `json:"started_at"`
	LastFrameAt orm.Time `json:"last_frame_at"`
}

// Session 单路视频流的监控会话
type Session struct {
	f        *feed.Feed
	cfg      conf.Monitor
	detector vision.Detector
	recorder Recorder
	stats    *Stats

	state       atomic.Value // string
	frames      atomic.Uint64
	incidents   atomic.Uint64
	startedAt   time.Time
	lastFrameAt atomic.Int64 // unix ms

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger
}

func newSession(f *feed.Feed, cfg conf.Monitor, detector vision.Detector, recorder Recorder, stats *Stats) *Session {
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 30
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := Session{
		f:         f,
		cfg:       cfg,
		detector:  detector,
		recorder:  recorder,
		stats:     stats,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		log:       slog.With("module", "monitor", "feed_id", f.ID),
	}
	s.state.Store(StateStarting)
	return &s
}

// Stop 请求停止，run 协程会在下一个取消点退出
// 可重复调用
func (s *Session) Stop() {
	s.state.Store(StateStopping)
	s.cancel()
}

func (s *Session) Status() *Status {
	st := Status{
		FeedID:    s.f.ID,
		State:     s.state.Load().(string),
		Frames:    s.frames.Load(),
		Incidents: s.incidents.Load(),
		StartedAt: orm.Time{Time: s.startedAt},
	}
	if ms := s.lastFrameAt.Load(); ms > 0 {
		st.LastFrameAt = orm.Time{Time: time.UnixMilli(ms)}
	}
	return &st
}

// run 采样主循环，退出前必定释放视频源
//
// 节奏: 读一帧 -> 帧计数自增 -> 整除采样间隔则送检 -> 按节拍休眠。
// 送检失败只记日志，下一个采样点照常送检。
// 直播流读帧失败按重试间隔等待后继续，文件流读到结尾属于正常结束。
func (s *Session) run(src Source) {
	defer close(s.done)
	defer func() {
		if err := src.Close(); err != nil {
			s.log.Warn("close source failed", "err", err)
		}
		if s.state.Load().(string) != StateFaulted {
			s.state.Store(StateIdle)
		}
		s.log.Info("session finished",
			"frames", s.frames.Load(),
			"incidents", s.incidents.Load(),
			"duration", time.Since(s.startedAt).String(),
		)
	}()

	s.state.Store(StateRunning)
	lastEvent := time.Now()
	lastWatchdogWarn := time.Time{}

	for {
		if s.ctx.Err() != nil {
			return
		}

		frame, err := src.Read(s.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			if src.Live() {
				// 直播流的瞬时断流不致命，等一拍继续
				s.log.Warn("read frame failed, will retry", "err", err)
				select {
				case <-s.ctx.Done():
					return
				case <-time.After(s.cfg.RetryPause()):
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				s.log.Info("stream ended", "frames", s.frames.Load())
				return
			}
			s.state.Store(StateFaulted)
			s.log.Error("read frame failed", "err", err)
			return
		}

		n := s.frames.Add(1)
		s.lastFrameAt.Store(time.Now().UnixMilli())
		s.stats.FramesProcessed.Add(1)

		if n%uint64(s.cfg.SampleEvery) == 0 {
			frame.Num = n
			if s.analyze(frame) {
				lastEvent = time.Now()
			}
		}

		// 超过看门狗窗口无事件仅提示，不影响会话
		if w := s.cfg.WatchdogWindow(); w > 0 && time.Since(lastEvent) > w {
			if time.Since(lastWatchdogWarn) > w {
				s.log.Warn("no incident detected recently", "window", w.String())
				lastWatchdogWarn = time.Now()
			}
		}

		// 节拍同时是停止请求的响应点
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.PaceInterval()):
		}
	}
}

// analyze 送检单帧，检出则落库，返回是否产生事件
func (s *Session) analyze(frame *vision.Frame) bool {
	det, err := s.detector.Detect(s.ctx, frame)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		s.log.Warn("detect failed", "frame", frame.Num, "err", err)
		return false
	}
	if det == nil {
		return false
	}

	if _, err := s.recorder.Record(s.ctx, s.f, det); err != nil {
		s.log.Error("record incident failed", "frame", frame.Num, "err", err)
		return false
	}
	s.incidents.Add(1)
	s.stats.IncidentsDetected.Add(1)
	return true
}
