package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/gowvp/argus/pkg/ffwork"
	"github.com/grafov/m3u8"
)

// Source 视频帧来源
// Read 阻塞到取得一帧、出错或 ctx 取消
// Live 为 true 表示直播流，读取失败应重试而非结束会话
type Source interface {
	Read(ctx context.Context) (*vision.Frame, error)
	Close() error
	Live() bool
}

// openSource 按流地址选择视频源实现
// rtsp/rtmp/hls 经 ffmpeg 解码为原始帧，本地文件按裸 YUV 帧读取
func openSource(cfg conf.Monitor, f *feed.Feed) (Source, error) {
	url := strings.TrimSpace(f.StreamURL)
	switch {
	case strings.HasPrefix(url, "rtsp://"), strings.HasPrefix(url, "rtmp://"):
		return openFFSource(cfg, f, url)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		resolved, err := resolveHLS(url)
		if err != nil {
			return nil, err
		}
		return openFFSource(cfg, f, resolved)
	case url == "":
		return nil, fmt.Errorf("feed has no stream url")
	default:
		return openFileSource(cfg, f, url)
	}
}

// resolveHLS 解析 HLS 播放列表
// 主列表取码率最高的子流，媒体列表原样返回交给 ffmpeg
func resolveHLS(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch playlist: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch playlist: status %d", resp.StatusCode)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return "", fmt.Errorf("decode playlist: %w", err)
	}
	if listType != m3u8.MASTER {
		return url, nil
	}

	master := playlist.(*m3u8.MasterPlaylist)
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return "", fmt.Errorf("master playlist has no variants")
	}
	if strings.HasPrefix(best.URI, "http://") || strings.HasPrefix(best.URI, "https://") {
		return best.URI, nil
	}
	// 相对地址拼回主列表所在目录
	idx := strings.LastIndex(url, "/")
	return url[:idx+1] + best.URI, nil
}

// ffSource 由 ffmpeg 子进程持续解码的直播源
type ffSource struct {
	cap    *ffwork.FrameCapture
	feedID string
	w, h   int
}

func openFFSource(cfg conf.Monitor, f *feed.Feed, url string) (Source, error) {
	capture, err := ffwork.NewFrameCapture(ffwork.Config{
		Name:     f.Name,
		Width:    cfg.FrameWidth,
		Height:   cfg.FrameHeight,
		FPS:      cfg.FPS,
		InputURL: url,
	})
	if err != nil {
		return nil, err
	}
	if err := capture.Start(); err != nil {
		return nil, err
	}
	return &ffSource{cap: capture, feedID: f.ID, w: cfg.FrameWidth, h: cfg.FrameHeight}, nil
}

func (s *ffSource) Read(ctx context.Context) (*vision.Frame, error) {
	select {
	case fd, ok := <-s.cap.Frames():
		if !ok {
			return nil, fmt.Errorf("capture closed")
		}
		return &vision.Frame{
			FeedID:    s.feedID,
			Width:     s.w,
			Height:    s.h,
			Timestamp: fd.Timestamp,
			Data:      fd.Data,
		}, nil
	case err := <-s.cap.Error():
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("no frame within 10s")
	}
}

func (s *ffSource) Close() error { return s.cap.Stop() }
func (s *ffSource) Live() bool   { return true }

// fileSource 本地裸 YUV420P 文件，用于回放分析
type fileSource struct {
	f         *os.File
	r         *bufio.Reader
	frameSize int
	feedID    string
	w, h      int
}

func openFileSource(cfg conf.Monitor, f *feed.Feed, path string) (Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video file: %w", err)
	}
	frameSize := cfg.FrameWidth * cfg.FrameHeight * 3 / 2
	return &fileSource{
		f:         file,
		r:         bufio.NewReaderSize(file, frameSize*4),
		frameSize: frameSize,
		feedID:    f.ID,
		w:         cfg.FrameWidth,
		h:         cfg.FrameHeight,
	}, nil
}

func (s *fileSource) Read(ctx context.Context) (*vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf := make([]byte, s.frameSize)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	return &vision.Frame{
		FeedID:    s.feedID,
		Width:     s.w,
		Height:    s.h,
		Timestamp: time.Now(),
		Data:      buf,
	}, nil
}

func (s *fileSource) Close() error { return s.f.Close() }
func (s *fileSource) Live() bool   { return false }
