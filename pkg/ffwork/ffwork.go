// Package ffwork 封装 ffmpeg 子进程，把 rtsp/rtmp/hls 流解码为固定尺寸的
// 原始 YUV420P 帧序列，供上层按帧消费。
package ffwork

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	Config struct {
		Name          string
		InputURL      string // rtsp/rtmp/http(s) 流地址
		Width, Height int
		FPS           int
		Transport     string // rtsp 传输方式，默认 tcp
		HWAccel       string
	}

	FrameData struct {
		FrameNum  uint64
		Timestamp time.Time
		Data      []byte
	}

	// FrameCapture 一个 ffmpeg 拉流进程的生命周期
	// 帧经缓冲通道交付，消费跟不上时丢帧而不是阻塞解码
	FrameCapture struct {
		config    Config
		frameSize int

		frameCh chan *FrameData
		errCh   chan error

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		m         sync.Mutex
		started   bool
		cmd       *exec.Cmd
		lastFrame time.Time

		frameCount, dropCount uint64
		ffmpegLog             *queue.CirQueue[string]
	}

	Stats struct {
		Name                  string
		FrameCount, DropCount uint64
		LastFrame             time.Time
		FrameSize             int
		IsRunning             bool
	}
)

func NewFrameCapture(cfg Config) (*FrameCapture, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps: %d", cfg.FPS)
	}
	if cfg.InputURL == "" {
		return nil, fmt.Errorf("input url is required")
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FrameCapture{
		config:    cfg,
		frameSize: cfg.Width * cfg.Height * 3 / 2, // yuv420p
		frameCh:   make(chan *FrameData, 10),
		errCh:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (fc *FrameCapture) FrameSize() int {
	return fc.frameSize
}

func (fc *FrameCapture) buildArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-threads", "2",
		"-user_agent", "FFmpeg Argus",
		"-avoid_negative_ts", "make_zero",
		"-fflags", "+genpts+discardcorrupt",
	}
	// rtsp 专属参数对其他协议是非法选项
	if len(fc.config.InputURL) > 7 && fc.config.InputURL[:7] == "rtsp://" {
		args = append(args,
			"-rtsp_transport", fc.config.Transport,
			"-timeout", "10000000",
		)
	}
	if fc.config.HWAccel != "" {
		args = append(args, "-hwaccel", fc.config.HWAccel)
	}
	args = append(args, "-i", fc.config.InputURL,
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-r", strconv.Itoa(fc.config.FPS),
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", fc.config.FPS, fc.config.Width, fc.config.Height),
		"pipe:1",
	)
	return args
}

func (fc *FrameCapture) Start() error {
	fc.m.Lock()
	defer fc.m.Unlock()
	if fc.started {
		return fmt.Errorf("frame capture already started")
	}

	fc.cmd = exec.CommandContext(fc.ctx, "ffmpeg", fc.buildArgs()...)
	stdout, err := fc.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := fc.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := fc.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	fc.started = true
	fc.lastFrame = time.Now()

	fc.wg.Go(func() { fc.captureLoop(stdout) })
	fc.wg.Go(func() { fc.readStderr(stderr) })
	return nil
}

// captureLoop 从 ffmpeg 的 stdout 按固定帧大小切分原始视频数据
func (fc *FrameCapture) captureLoop(stdout io.Reader) {
	defer close(fc.frameCh)

	reader := bufio.NewReaderSize(stdout, fc.frameSize*10)
	for {
		select {
		case <-fc.ctx.Done():
			return
		default:
		}

		frameBytes := make([]byte, fc.frameSize)
		if _, err := io.ReadFull(reader, frameBytes); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				err = fmt.Errorf("ffmpeg stream ended: %w", err)
			} else {
				err = fmt.Errorf("failed to read frame: %w", err)
			}
			select {
			case fc.errCh <- err:
			default:
			}
			return
		}

		frameNum := atomic.AddUint64(&fc.frameCount, 1)
		now := time.Now()
		fc.m.Lock()
		fc.lastFrame = now
		fc.m.Unlock()

		frame := FrameData{
			FrameNum:  frameNum,
			Timestamp: now,
			Data:      frameBytes,
		}
		select {
		case fc.frameCh <- &frame:
		case <-fc.ctx.Done():
			return
		default:
			// 消费端落后时丢最新帧，保持解码不被反压
			atomic.AddUint64(&fc.dropCount, 1)
		}
	}
}

// readStderr ffmpeg 的警告和错误都走 stderr，环形缓存最近若干行供诊断
func (fc *FrameCapture) readStderr(stderr io.Reader) {
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		fc.ffmpegLog.Push(scan.Text())
	}
}

func (fc *FrameCapture) Frames() <-chan *FrameData {
	return fc.frameCh
}

func (fc *FrameCapture) Error() <-chan error {
	return fc.errCh
}

func (fc *FrameCapture) Log() []string {
	return fc.ffmpegLog.Range()
}

func (fc *FrameCapture) Stop() error {
	fc.m.Lock()
	if !fc.started {
		fc.m.Unlock()
		return nil
	}
	fc.m.Unlock()

	if cancel := fc.cancel; cancel != nil {
		cancel()
	}
	fc.wg.Wait()

	if fc.cmd != nil && fc.cmd.Process != nil {
		done := make(chan error, 1)
		defer close(done)
		go func() {
			done <- fc.cmd.Wait()
		}()

		select {
		case <-time.After(5 * time.Second):
			if err := fc.cmd.Process.Kill(); err != nil {
				return fmt.Errorf("failed to kill ffmpeg: %w", err)
			}
			<-done
		case <-done:
		}
	}
	return nil
}

func (fc *FrameCapture) GetStats() Stats {
	fc.m.Lock()
	defer fc.m.Unlock()
	return Stats{
		Name:       fc.config.Name,
		FrameCount: atomic.LoadUint64(&fc.frameCount),
		DropCount:  atomic.LoadUint64(&fc.dropCount),
		LastFrame:  fc.lastFrame,
		FrameSize:  fc.frameSize,
		IsRunning:  fc.started,
	}
}
