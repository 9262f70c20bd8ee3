// Package notify 将已入库的事件推送给对应的主管部门
// 每次 Dispatch 独立构建渠道列表，不持有可变状态
package notify

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/orm"
)

// Message 通知载荷，由事件记录构建
type Message struct {
	IncidentID  int64    `json:"incident_id"`
	FeedID      string   `json:"feed_id"`
	Type        string   `json:"incident_type"`
	SubType     string   `json:"sub_type"`
	Severity    string   `json:"severity"`
	Confidence  float64  `json:"confidence"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Timestamp   orm.Time `json:"timestamp"`
}

// Attempt 单渠道投递结果，由调用方负责落库
type Attempt struct {
	MessageID string // 本次投递的唯一标识
	Channel   string // email, sms, webhook
	Recipient string
	Err       error
}

func (a Attempt) Status() string {
	if a.Err != nil {
		return "failed"
	}
	return "sent"
}

// authority 主管部门路由配置
type authority struct {
	emails     []string
	webhookKey string
	priority   string
}

// authorityMapping 事件类型到主管部门的映射
var authorityMapping = map[string]authority{
	vision.TypeTrafficViolation: {
		emails:     []string{"traffic@city.gov", "police@city.gov"},
		webhookKey: "traffic_authority_url",
		priority:   vision.SeverityMedium,
	},
	vision.TypeCrime: {
		emails:     []string{"police@city.gov", "emergency@city.gov"},
		webhookKey: "police_url",
		priority:   vision.SeverityHigh,
	},
	vision.TypeCivicIssue: {
		emails:     []string{"municipal@city.gov", "publicworks@city.gov"},
		webhookKey: "municipal_url",
		priority:   vision.SeverityLow,
	},
	vision.TypeEmergency: {
		emails:     []string{"emergency@city.gov", "fire@city.gov", "police@city.gov"},
		webhookKey: "fire_department_url",
		priority:   vision.SeverityCritical,
	},
}

// Dispatcher 通知分发器，配置只读
type Dispatcher struct {
	cfg conf.Notify
	cli *http.Client
	log *slog.Logger
}

func NewDispatcher(cfg conf.Notify) *Dispatcher {
	return &Dispatcher{
		cfg: cfg,
		cli: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        30,
				MaxIdleConnsPerHost: 30,
			},
		},
		log: slog.With("module", "notify"),
	}
}

// Dispatch 按事件类型和严重等级选择渠道并投递
// 渠道之间互不影响，单渠道失败只记录结果，调用方不应因此回滚事件
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) []Attempt {
	auth, ok := authorityMapping[msg.Type]
	if !ok {
		d.log.WarnContext(ctx, "no authority mapping", "incident_type", msg.Type, "incident_id", msg.IncidentID)
		return nil
	}

	body := renderMessage(msg)
	attempts := make([]Attempt, 0, 3)

	// 高危及以上事件发送邮件
	if msg.Severity == vision.SeverityHigh || msg.Severity == vision.SeverityCritical {
		for _, to := range auth.emails {
			attempts = append(attempts, Attempt{
				MessageID: uuid.NewString(),
				Channel:   "email",
				Recipient: to,
				Err:       d.sendEmail(to, msg, body),
			})
		}
	}

	// webhook 配置了地址即推送
	if url := d.webhookURL(auth.webhookKey); url != "" {
		attempts = append(attempts, Attempt{
			MessageID: uuid.NewString(),
			Channel:   "webhook",
			Recipient: url,
			Err:       d.sendWebhook(ctx, url, msg),
		})
	}

	// 仅最高等级事件发送短信
	if msg.Severity == vision.SeverityCritical && d.cfg.SMS.APIURL != "" {
		attempts = append(attempts, Attempt{
			MessageID: uuid.NewString(),
			Channel:   "sms",
			Recipient: d.cfg.SMS.APIURL,
			Err:       d.sendSMS(ctx, msg),
		})
	}

	for _, a := range attempts {
		if a.Err != nil {
			d.log.ErrorContext(ctx, "notification failed",
				"channel", a.Channel,
				"recipient", a.Recipient,
				"incident_id", msg.IncidentID,
				"err", a.Err,
			)
		} else {
			d.log.InfoContext(ctx, "notification sent",
				"channel", a.Channel,
				"recipient", a.Recipient,
				"incident_id", msg.IncidentID,
			)
		}
	}
	return attempts
}

// webhookURL 根据路由键取回调地址
func (d *Dispatcher) webhookURL(key string) string {
	switch key {
	case "police_url":
		return d.cfg.Webhook.PoliceURL
	case "fire_department_url":
		return d.cfg.Webhook.FireDepartmentURL
	case "traffic_authority_url":
		return d.cfg.Webhook.TrafficAuthorityURL
	case "municipal_url":
		return d.cfg.Webhook.MunicipalURL
	}
	return ""
}
