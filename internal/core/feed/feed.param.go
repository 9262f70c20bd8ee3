package feed

import (
	"github.com/ixugo/goddd/pkg/web"
)

type FindFeedInput struct {
	web.PagerFilter
	Name     string `form:"name"`      // 名称模糊查询
	Location string `form:"location"`  // 位置模糊查询
	IsActive *bool  `form:"is_active"` // 按启用状态筛选
}

type AddFeedInput struct {
	Name        string  `json:"name" binding:"required"`
	StreamURL   string  `json:"stream_url" binding:"required"`
	Location    string  `json:"location" binding:"required"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
}

type EditFeedInput struct {
	Name        string  `json:"name"`
	StreamURL   string  `json:"stream_url"`
	Location    string  `json:"location"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Description string  `json:"description"`
	IsActive    *bool   `json:"is_active"`
}
