package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/argus/internal/adapter/onvifadapter"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/monitor"
	"github.com/ixugo/goddd/pkg/web"
)

// FeedAPI 为 http 提供业务方法
type FeedAPI struct {
	feedCore    feed.Core
	monitorCore *monitor.Core
	probe       *onvifadapter.Prober
}

func NewFeedAPI(core feed.Core, monitorCore *monitor.Core, probe *onvifadapter.Prober) FeedAPI {
	return FeedAPI{feedCore: core, monitorCore: monitorCore, probe: probe}
}

func RegisterFeed(g gin.IRouter, api FeedAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/feeds", handler...)
	group.GET("", web.WrapH(api.findFeeds))
	group.POST("", web.WrapH(api.addFeed))
	group.GET("/discover", api.discoverDevices)
	group.POST("/probe", web.WrapH(api.probeDevice))
	group.GET("/:id", web.WrapH(api.getFeed))
	group.PUT("/:id", web.WrapH(api.editFeed))
	group.DELETE("/:id", web.WrapH(api.delFeed))
}

func (a FeedAPI) findFeeds(c *gin.Context, in *feed.FindFeedInput) (any, error) {
	items, total, err := a.feedCore.FindFeeds(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a FeedAPI) getFeed(c *gin.Context, _ *struct{}) (*feed.Feed, error) {
	return a.feedCore.GetFeed(c.Request.Context(), c.Param("id"))
}

func (a FeedAPI) addFeed(c *gin.Context, in *feed.AddFeedInput) (*feed.Feed, error) {
	return a.feedCore.AddFeed(c.Request.Context(), in)
}

func (a FeedAPI) editFeed(c *gin.Context, in *feed.EditFeedInput) (*feed.Feed, error) {
	out, err := a.feedCore.EditFeed(c.Request.Context(), in, c.Param("id"))
	if err != nil {
		return nil, err
	}
	// 停用即结束巡检会话，数据行保留
	if in.IsActive != nil && !*in.IsActive {
		a.stopSession(c, out.ID)
	}
	return out, nil
}

func (a FeedAPI) delFeed(c *gin.Context, _ *struct{}) (*feed.Feed, error) {
	id := c.Param("id")
	a.stopSession(c, id)
	return a.feedCore.DelFeed(c.Request.Context(), id)
}

// stopSession 尝试停掉该视频源的巡检会话，未在巡检则无事发生
func (a FeedAPI) stopSession(c *gin.Context, feedID string) {
	if _, err := a.monitorCore.StopMonitor(c.Request.Context(), feedID); err == nil {
		slog.InfoContext(c.Request.Context(), "monitor session stopped with feed", "feed_id", feedID)
	}
}

// discoverDevices 组播发现局域网内的 ONVIF 摄像头，结果以 json 流输出
func (a FeedAPI) discoverDevices(c *gin.Context) {
	if err := a.probe.Discover(c.Request.Context(), c.Writer); err != nil {
		web.Fail(c, err)
	}
}

// probeDevice 探测摄像头取流地址，录入前先验证账号密码
func (a FeedAPI) probeDevice(c *gin.Context, in *onvifadapter.ProbeInput) (any, error) {
	profiles, err := a.probe.Probe(c.Request.Context(), in)
	if err != nil {
		return nil, err
	}
	return gin.H{"items": profiles}, nil
}
