package incident

import (
	"context"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"gorm.io/gorm"
)

// FindIncidents 分页查询事件列表，支持类型、等级、处置状态与时间范围筛选
func (c Core) FindIncidents(ctx context.Context, in *FindIncidentInput) ([]*Incident, int64, error) {
	query := orm.NewQuery(5).OrderBy("detected_at DESC")

	if in.FeedID != "" {
		query.Where("feed_id = ?", in.FeedID)
	}
	if in.Type != "" {
		query.Where("incident_type = ?", in.Type)
	}
	if in.Severity != "" {
		query.Where("severity = ?", in.Severity)
	}
	if in.Acknowledged != nil {
		query.Where("acknowledged = ?", *in.Acknowledged)
	}
	if in.StartMs > 0 && in.EndMs > 0 {
		query.Where("detected_at >= ? AND detected_at <= ?", in.StartAt(), in.EndAt())
	}

	items := make([]*Incident, 0, in.Limit())
	total, err := c.store.Incident().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetIncident Query a single object
func (c Core) GetIncident(ctx context.Context, id int64) (*Incident, error) {
	out := Incident{ID: id}
	if err := c.store.Incident().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// AcknowledgeIncident 确认事件，记录处置人与时间
func (c Core) AcknowledgeIncident(ctx context.Context, id int64, in *AcknowledgeInput) (*Incident, error) {
	var out Incident
	if err := c.store.Incident().Edit(ctx, &out, func(b *Incident) {
		now := orm.Now()
		b.Acknowledged = true
		b.AcknowledgedBy = in.Username
		b.AcknowledgedAt = &now
		b.UpdatedAt = now
	}, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Acknowledge id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Acknowledge id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// ReportIncident 标记事件已上报主管部门
func (c Core) ReportIncident(ctx context.Context, id int64) (*Incident, error) {
	var out Incident
	if err := c.store.Incident().Edit(ctx, &out, func(b *Incident) {
		now := orm.Now()
		b.ReportedToAuthorities = true
		b.ReportedAt = &now
		b.UpdatedAt = now
	}, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Report id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Report id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelIncident Delete object
func (c Core) DelIncident(ctx context.Context, id int64) (*Incident, error) {
	var out Incident
	if err := c.store.Incident().Del(ctx, &out, orm.Where("id=?", id)); err != nil {
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// typeCount 用于接收 GROUP BY 查询结果
type typeCount struct {
	Name  string `gorm:"column:name"`
	Count int64  `gorm:"column:cnt"`
}

// GetStats 事件统计，按类型与等级分组计数
func (c Core) GetStats(ctx context.Context) (*StatsOutput, error) {
	out := StatsOutput{
		ByType:     make(map[string]int64, 4),
		BySeverity: make(map[string]int64, 4),
	}

	total, err := c.store.Incident().Count(ctx)
	if err != nil {
		return nil, reason.ErrDB.Withf(`Count err[%s]`, err.Error())
	}
	out.Total = total

	unacked, err := c.store.Incident().Count(ctx, orm.Where("acknowledged = ?", false))
	if err != nil {
		return nil, reason.ErrDB.Withf(`Count err[%s]`, err.Error())
	}
	out.Unacknowledged = unacked

	err = c.store.Incident().Session(ctx, func(db *gorm.DB) error {
		var byType []typeCount
		if err := db.Model(&Incident{}).
			Select("incident_type as name, COUNT(*) as cnt").
			Group("incident_type").
			Find(&byType).Error; err != nil {
			return err
		}
		for _, t := range byType {
			out.ByType[t.Name] = t.Count
		}

		var bySeverity []typeCount
		if err := db.Model(&Incident{}).
			Select("severity as name, COUNT(*) as cnt").
			Group("severity").
			Find(&bySeverity).Error; err != nil {
			return err
		}
		for _, s := range bySeverity {
			out.BySeverity[s.Name] = s.Count
		}
		return nil
	})
	if err != nil {
		return nil, reason.ErrDB.Withf(`GetStats err[%s]`, err.Error())
	}
	return &out, nil
}

// FindNotificationLogs 查询事件的通知投递记录
func (c Core) FindNotificationLogs(ctx context.Context, incidentID int64, pager orm.Pager) ([]*NotificationLog, int64, error) {
	items := make([]*NotificationLog, 0, 8)
	total, err := c.store.NotificationLog().Find(ctx, &items, pager,
		orm.Where("incident_id = ?", incidentID),
		orm.OrderBy("created_at DESC"),
	)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find incident_id[%d] err[%s]`, incidentID, err.Error())
	}
	return items, total, nil
}
