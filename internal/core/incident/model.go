package incident

import (
	"github.com/ixugo/goddd/pkg/orm"
)

// Incident 已确认并入库的检测事件
type Incident struct {
	ID         int64   `gorm:"primaryKey" json:"id"`
	Type       string  `gorm:"column:incident_type;notNull;default:''" json:"incident_type"` // traffic_violation, crime, civic_issue, emergency
	SubType    string  `gorm:"column:sub_type;notNull;default:''" json:"sub_type"`           // wrong_way_driving, signal_jumping, fight, fire 等
	Severity   string  `gorm:"column:severity;notNull;default:'medium'" json:"severity"`     // low, medium, high, critical
	Confidence float64 `gorm:"column:confidence;notNull;default:0" json:"confidence"`        // AI 置信度 0-1

	Description string  `gorm:"column:description;notNull;default:''" json:"description"`
	Location    string  `gorm:"column:location;notNull;default:''" json:"location"`
	Latitude    float64 `gorm:"column:latitude" json:"latitude"`
	Longitude   float64 `gorm:"column:longitude" json:"longitude"`

	// Box 边界框 JSON，来自检测服务
	Box string `gorm:"column:box;notNull;default:''" json:"box"`

	// 媒体文件引用
	VideoSnapshotPath string `gorm:"column:video_snapshot_path;notNull;default:''" json:"video_snapshot_path"`
	AudioClipPath     string `gorm:"column:audio_clip_path;notNull;default:''" json:"audio_clip_path"`

	// 检测元数据
	DetectedAt orm.Time `gorm:"column:detected_at;notNull;index" json:"detected_at"`
	FrameNum   uint64   `gorm:"column:frame_num;notNull;default:0" json:"frame_num"`

	// 处置状态
	Acknowledged          bool      `gorm:"column:acknowledged;notNull;default:false" json:"acknowledged"`
	AcknowledgedBy        string    `gorm:"column:acknowledged_by;notNull;default:''" json:"acknowledged_by"`
	AcknowledgedAt        *orm.Time `gorm:"column:acknowledged_at" json:"acknowledged_at"`
	ReportedToAuthorities bool      `gorm:"column:reported_to_authorities;notNull;default:false" json:"reported_to_authorities"`
	ReportedAt            *orm.Time `gorm:"column:reported_at" json:"reported_at"`

	FeedID string `gorm:"column:feed_id;notNull;default:'';index" json:"feed_id"`

	CreatedAt orm.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt orm.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (*Incident) TableName() string {
	return "incidents"
}

// NotificationLog 单渠道通知投递记录
type NotificationLog struct {
	ID         int64    `gorm:"primaryKey" json:"id"`
	IncidentID int64    `gorm:"column:incident_id;notNull;default:0;index" json:"incident_id"`
	MessageID  string   `gorm:"column:message_id;notNull;default:''" json:"message_id"`
	Channel    string   `gorm:"column:channel;notNull;default:''" json:"channel"` // email, sms, webhook
	Recipient  string   `gorm:"column:recipient;notNull;default:''" json:"recipient"`
	Status     string   `gorm:"column:status;notNull;default:'pending'" json:"status"` // pending, sent, failed
	ErrorMsg   string   `gorm:"column:error_msg;notNull;default:''" json:"error_msg"`
	CreatedAt  orm.Time `gorm:"column:created_at" json:"created_at"`
}

func (*NotificationLog) TableName() string {
	return "notification_logs"
}
