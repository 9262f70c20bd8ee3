package api

import (
	"github.com/gin-gonic/gin"
	"github.com/gowvp/argus/internal/core/monitor"
	"github.com/ixugo/goddd/pkg/web"
)

// MonitorAPI 为 http 提供业务方法
type MonitorAPI struct {
	monitorCore *monitor.Core
}

func NewMonitorAPI(core *monitor.Core) MonitorAPI {
	return MonitorAPI{monitorCore: core}
}

func RegisterMonitor(g gin.IRouter, api MonitorAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/monitors", handler...)
	group.GET("", web.WrapH(api.statusAll))
	group.GET("/stats", web.WrapH(api.getStats))
	group.POST("/:id/start", web.WrapH(api.startMonitor))
	group.POST("/:id/stop", web.WrapH(api.stopMonitor))
	group.GET("/:id", web.WrapH(api.getStatus))
}

func (a MonitorAPI) startMonitor(c *gin.Context, _ *struct{}) (*monitor.Status, error) {
	return a.monitorCore.StartMonitor(c.Request.Context(), c.Param("id"))
}

func (a MonitorAPI) stopMonitor(c *gin.Context, _ *struct{}) (*monitor.Status, error) {
	return a.monitorCore.StopMonitor(c.Request.Context(), c.Param("id"))
}

func (a MonitorAPI) getStatus(c *gin.Context, _ *struct{}) (*monitor.Status, error) {
	return a.monitorCore.GetStatus(c.Param("id"))
}

func (a MonitorAPI) statusAll(_ *gin.Context, _ *struct{}) (any, error) {
	items := a.monitorCore.StatusAll()
	return gin.H{"items": items, "total": len(items)}, nil
}

func (a MonitorAPI) getStats(_ *gin.Context, _ *struct{}) (gin.H, error) {
	s := a.monitorCore.Stats()
	return gin.H{
		"frames_processed":   s.FramesProcessed.Value(),
		"incidents_detected": s.IncidentsDetected.Value(),
		"active_sessions":    s.ActiveSessions.Value(),
	}, nil
}
