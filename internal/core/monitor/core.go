package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/incident"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/ixugo/goddd/pkg/reason"
)

// FeedGetter 读取摄像头配置，解耦 feed 领域
type FeedGetter interface {
	GetFeed(ctx context.Context, id string) (*feed.Feed, error)
}

// Recorder 持久化检出事件，解耦 incident 领域
type Recorder interface {
	Record(ctx context.Context, f *feed.Feed, det *vision.CandidateDetection) (*incident.Incident, error)
}

// Core business domain
//
// 每路视频流至多一个监控会话，会话由注册表统一管理。
// 启动即占位，结束即释放，重复启动是幂等空操作。
type Core struct {
	cfg      conf.Monitor
	feeds    FeedGetter
	detector vision.Detector
	recorder Recorder

	sessions *conc.Map[string, *Session]
	stats    *Stats
	log      *slog.Logger

	// openSrc 打开视频源，单测中可替换为内存实现
	openSrc func(conf.Monitor, *feed.Feed) (Source, error)
}

// NewCore create business domain
func NewCore(cfg conf.Monitor, feeds FeedGetter, detector vision.Detector, recorder Recorder) *Core {
	return &Core{
		cfg:      cfg,
		feeds:    feeds,
		detector: detector,
		recorder: recorder,
		sessions: conc.NewMap[string, *Session](),
		stats:    NewStats(),
		log:      slog.With("module", "monitor"),
		openSrc:  openSource,
	}
}

// Stats 全局处理计数
func (c *Core) Stats() *Stats {
	return c.stats
}

// StartMonitor 为指定视频流启动监控会话
// 已在监控中的流直接返回当前会话，不会重复拉流
func (c *Core) StartMonitor(ctx context.Context, feedID string) (*Status, error) {
	f, err := c.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}
	if !f.IsActive {
		return nil, reason.ErrBadRequest.SetMsg("feed is disabled")
	}

	s := newSession(f, c.cfg, c.detector, c.recorder, c.stats)
	actual, loaded := c.sessions.LoadOrStore(feedID, s)
	if loaded {
		c.log.InfoContext(ctx, "monitor already running", "feed_id", feedID)
		return actual.Status(), nil
	}

	src, err := c.openSrc(c.cfg, f)
	if err != nil {
		// 会话已占位，失败时必须关闭结束信号，避免并发的 StopMonitor 等待到超时
		s.state.Store(StateFaulted)
		close(s.done)
		c.sessions.Delete(feedID)
		return nil, reason.ErrBadRequest.Withf(`open source feed[%s] err[%s]`, feedID, err.Error())
	}

	c.stats.ActiveSessions.Add(1)
	go func() {
		defer func() {
			c.sessions.Delete(feedID)
			c.stats.ActiveSessions.Add(-1)
		}()
		s.run(src)
	}()

	c.log.InfoContext(ctx, "monitor started", "feed_id", feedID, "stream_url", f.StreamURL)
	return s.Status(), nil
}

// StopMonitor 停止监控会话并等待资源释放
func (c *Core) StopMonitor(ctx context.Context, feedID string) (*Status, error) {
	s, ok := c.sessions.Load(feedID)
	if !ok {
		return nil, reason.ErrNotFound.SetMsg("feed is not being monitored")
	}
	s.Stop()

	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.sessions.Delete(feedID)

	c.log.InfoContext(ctx, "monitor stopped", "feed_id", feedID)
	return s.Status(), nil
}

// GetStatus 查询单路会话状态
func (c *Core) GetStatus(feedID string) (*Status, error) {
	s, ok := c.sessions.Load(feedID)
	if !ok {
		return nil, reason.ErrNotFound.SetMsg("feed is not being monitored")
	}
	return s.Status(), nil
}

// StatusAll 查询全部会话状态
func (c *Core) StatusAll() []*Status {
	out := make([]*Status, 0, 8)
	c.sessions.Range(func(_ string, s *Session) bool {
		out = append(out, s.Status())
		return true
	})
	return out
}

// Shutdown 停止所有会话，用于进程退出前的收尾
func (c *Core) Shutdown(ctx context.Context) {
	var wg sync.WaitGroup
	c.sessions.Range(func(feedID string, s *Session) bool {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
			select {
			case <-s.done:
			case <-ctx.Done():
				slog.Warn("session shutdown timeout", "feed_id", feedID)
			case <-time.After(10 * time.Second):
				slog.Warn("session shutdown timeout", "feed_id", feedID)
			}
		}()
		return true
	})
	wg.Wait()
}
