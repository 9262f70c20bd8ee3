package feed

import (
	"github.com/ixugo/goddd/pkg/orm"
)

// Feed 摄像头视频源
type Feed struct {
	ID          string   `gorm:"primaryKey" json:"id"`
	Name        string   `gorm:"column:name;notNull;default:''" json:"name"`
	StreamURL   string   `gorm:"column:stream_url;notNull;default:''" json:"stream_url"` // rtsp/rtmp/hls 地址或本地文件路径
	Location    string   `gorm:"column:location;notNull;default:''" json:"location"`
	Latitude    float64  `gorm:"column:latitude" json:"latitude"`
	Longitude   float64  `gorm:"column:longitude" json:"longitude"`
	Description string   `gorm:"column:description;notNull;default:''" json:"description"`
	IsActive    bool     `gorm:"column:is_active;notNull;default:true" json:"is_active"`
	CreatedAt   orm.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   orm.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (*Feed) TableName() string {
	return "feeds"
}
