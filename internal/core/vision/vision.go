package vision

import (
	"context"
	"time"
)

// 事件类型，与主管部门路由表对应
const (
	TypeTrafficViolation = "traffic_violation"
	TypeCrime            = "crime"
	TypeCivicIssue       = "civic_issue"
	TypeEmergency        = "emergency"
)

// 事件严重等级
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Frame 采样送检的单帧原始数据，yuv420p 格式
type Frame struct {
	FeedID    string
	Num       uint64 // 会话内的帧序号，从 1 开始
	Width     int
	Height    int
	Timestamp time.Time
	Data      []byte
}

// BoundingBox 像素坐标边界框
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// CandidateDetection 单帧候选检测结果，入库前的临时对象
type CandidateDetection struct {
	Type        string       `json:"incident_type"` // traffic_violation, crime, civic_issue, emergency
	SubType     string       `json:"sub_type"`      // wrong_way_driving, no_helmet, fight, fire 等
	Severity    string       `json:"severity"`      // low, medium, high, critical
	Confidence  float64      `json:"confidence"`    // 置信度 0-1
	Description string       `json:"description"`
	Box         *BoundingBox `json:"box"`
	FrameNum    uint64       `json:"frame_num"`
	Snapshot    string       `json:"snapshot"` // Base64 编码的快照 (JPEG)，可为空
}

// Detector AI 检测能力边界
//
// 实现必须支持多路会话并发调用，内部可自行串行化。
// Detect 返回 (nil, nil) 表示本帧无事件。
type Detector interface {
	// Detect 分析单帧图像，至多返回一条候选检测
	Detect(ctx context.Context, frame *Frame) (*CandidateDetection, error)
	// DetectAudio 分析音频文件，返回零到多条候选检测
	DetectAudio(ctx context.Context, path string) ([]CandidateDetection, error)
	// Healthy 探测检测服务是否可用
	Healthy(ctx context.Context) bool
	// Initialize 预热模型，启动时调用一次
	Initialize(ctx context.Context) error
	// Cleanup 释放模型资源，退出时调用
	Cleanup(ctx context.Context) error
}
