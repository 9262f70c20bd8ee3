package incident

import (
	"github.com/ixugo/goddd/pkg/web"
)

type FindIncidentInput struct {
	web.PagerFilter
	web.DateFilter
	FeedID       string `form:"feed_id"`
	Type         string `form:"incident_type"` // traffic_violation, crime, civic_issue, emergency
	Severity     string `form:"severity"`
	Acknowledged *bool  `form:"acknowledged"`
}

type AcknowledgeInput struct {
	Username string `json:"username" binding:"required"`
}

// StatsOutput 事件统计
type StatsOutput struct {
	Total          int64            `json:"total"`
	Unacknowledged int64            `json:"unacknowledged"`
	ByType         map[string]int64 `json:"by_type"`
	BySeverity     map[string]int64 `json:"by_severity"`
}
