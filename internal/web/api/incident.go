package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/argus/internal/core/incident"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// IncidentAPI 为 http 提供业务方法
type IncidentAPI struct {
	incidentCore incident.Core
}

func NewIncidentAPI(core incident.Core) IncidentAPI {
	return IncidentAPI{incidentCore: core}
}

func RegisterIncident(g gin.IRouter, api IncidentAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/incidents", handler...)
	group.GET("", web.WrapH(api.findIncidents))
	group.GET("/stats", web.WrapH(api.getStats))
	group.GET("/:id", web.WrapH(api.getIncident))
	group.POST("/:id/acknowledge", web.WrapH(api.acknowledgeIncident))
	group.POST("/:id/report", web.WrapH(api.reportIncident))
	group.DELETE("/:id", web.WrapH(api.delIncident))
	group.GET("/:id/notifications", web.WrapH(api.findNotifications))
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, reason.ErrBadRequest.SetMsg("invalid incident id")
	}
	return id, nil
}

func (a IncidentAPI) findIncidents(c *gin.Context, in *incident.FindIncidentInput) (any, error) {
	items, total, err := a.incidentCore.FindIncidents(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a IncidentAPI) getIncident(c *gin.Context, _ *struct{}) (*incident.Incident, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	return a.incidentCore.GetIncident(c.Request.Context(), id)
}

func (a IncidentAPI) acknowledgeIncident(c *gin.Context, in *incident.AcknowledgeInput) (*incident.Incident, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	return a.incidentCore.AcknowledgeIncident(c.Request.Context(), id, in)
}

func (a IncidentAPI) reportIncident(c *gin.Context, _ *struct{}) (*incident.Incident, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	return a.incidentCore.ReportIncident(c.Request.Context(), id)
}

func (a IncidentAPI) delIncident(c *gin.Context, _ *struct{}) (*incident.Incident, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	return a.incidentCore.DelIncident(c.Request.Context(), id)
}

func (a IncidentAPI) getStats(c *gin.Context, _ *struct{}) (*incident.StatsOutput, error) {
	return a.incidentCore.GetStats(c.Request.Context())
}

// findNotifications 查询事件的通知投递记录
func (a IncidentAPI) findNotifications(c *gin.Context, in *web.PagerFilter) (any, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, err
	}
	items, total, err := a.incidentCore.FindNotificationLogs(c.Request.Context(), id, in)
	return gin.H{"items": items, "total": total}, err
}
