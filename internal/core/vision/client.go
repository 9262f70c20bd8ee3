package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gowvp/argus/internal/conf"
)

const (
	detectPath      = "/api/v1/frames"
	detectAudioPath = "/api/v1/audio"
	healthPath      = "/api/v1/health"
	initializePath  = "/api/v1/initialize"
	cleanupPath     = "/api/v1/cleanup"
)

var _ Detector = (*Client)(nil)

// Client 封装 HTTP 检测服务客户端，提供统一的 AI 检测调用入口
// 对端是 Python 多模态分析服务，视频目标检测与音频分类在服务内完成
type Client struct {
	url       string
	threshold float64
	cli       *http.Client
}

// NewClient 创建 AI 检测客户端实例
func NewClient(cfg conf.Analysis) *Client {
	timeout := cfg.Timeout.Duration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:       cfg.URL,
		threshold: cfg.Threshold,
		cli: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 30,
				MaxConnsPerHost:     100,
			},
		},
	}
}

// post 发送 POST 请求到分析服务
// 用法示例：c.post(ctx, "/api/v1/frames", map[string]any{...}, &out)
func (c *Client) post(ctx context.Context, path string, data map[string]any, out any) error {
	body, _ := json.Marshal(data)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("analysis service status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type detectResponse struct {
	Detection *CandidateDetection `json:"detection"`
}

type detectAudioResponse struct {
	Detections []CandidateDetection `json:"detections"`
}

// Detect implements [Detector].
// 检测失败或置信度低于阈值时返回 (nil, err) / (nil, nil)，由调用方决定是否继续
func (c *Client) Detect(ctx context.Context, frame *Frame) (*CandidateDetection, error) {
	var out detectResponse
	err := c.post(ctx, detectPath, map[string]any{
		"feed_id":   frame.FeedID,
		"frame_num": frame.Num,
		"width":     frame.Width,
		"height":    frame.Height,
		"timestamp": frame.Timestamp.UnixMilli(),
		"data":      base64.StdEncoding.EncodeToString(frame.Data),
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.Detection == nil || out.Detection.Confidence < c.threshold {
		return nil, nil
	}
	out.Detection.FrameNum = frame.Num
	return out.Detection, nil
}

// DetectAudio implements [Detector].
func (c *Client) DetectAudio(ctx context.Context, path string) ([]CandidateDetection, error) {
	var out detectAudioResponse
	if err := c.post(ctx, detectAudioPath, map[string]any{"path": path}, &out); err != nil {
		return nil, err
	}
	items := make([]CandidateDetection, 0, len(out.Detections))
	for _, det := range out.Detections {
		if det.Confidence < c.threshold {
			continue
		}
		items = append(items, det)
	}
	return items, nil
}

// Healthy implements [Detector].
func (c *Client) Healthy(ctx context.Context) bool {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.url+healthPath, nil)
	resp, err := c.cli.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Initialize implements [Detector].
// 通知分析服务预加载模型，失败只记录日志，首次 Detect 时服务端会懒加载
func (c *Client) Initialize(ctx context.Context) error {
	if err := c.post(ctx, initializePath, nil, nil); err != nil {
		slog.Warn("analysis service initialize", "err", err)
		return err
	}
	slog.Info("analysis service initialized", "url", c.url)
	return nil
}

// Cleanup implements [Detector].
func (c *Client) Cleanup(ctx context.Context) error {
	err := c.post(ctx, cleanupPath, nil, nil)
	c.cli.CloseIdleConnections()
	return err
}
