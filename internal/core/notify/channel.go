package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/smtp"
	"strings"

	"github.com/ixugo/goddd/pkg/orm"
)

// renderMessage 生成通知正文
func renderMessage(msg *Message) string {
	var b strings.Builder
	b.WriteString("CCTV INCIDENT ALERT\n\n")
	fmt.Fprintf(&b, "Incident Type: %s\n", titleize(msg.Type))
	fmt.Fprintf(&b, "Sub Type: %s\n", titleize(msg.SubType))
	fmt.Fprintf(&b, "Severity: %s\n", strings.ToUpper(msg.Severity))
	fmt.Fprintf(&b, "Confidence: %.2f%%\n", msg.Confidence*100)
	fmt.Fprintf(&b, "Location: %s\n", msg.Location)
	fmt.Fprintf(&b, "Time: %s\n\n", msg.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Description: %s\n\n", msg.Description)
	fmt.Fprintf(&b, "Feed ID: %s\n", msg.FeedID)
	fmt.Fprintf(&b, "Incident ID: %d\n\n", msg.IncidentID)
	b.WriteString("Please investigate this incident immediately.\n\n---\nCCTV AI Monitor System\n")
	fmt.Fprintf(&b, "Generated at: %s\n", orm.Now().Format("2006-01-02 15:04:05"))
	return b.String()
}

// titleize 将 wrong_way_driving 转为 Wrong Way Driving
func titleize(s string) string {
	parts := strings.Split(s, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// sendEmail 通过 SMTP 发送邮件通知
func (d *Dispatcher) sendEmail(to string, msg *Message, body string) error {
	cfg := d.cfg.Email
	if cfg.SMTPServer == "" || cfg.Username == "" {
		return fmt.Errorf("email channel not configured")
	}

	subject := fmt.Sprintf("CCTV Alert: %s - %s", titleize(msg.Type), strings.ToUpper(msg.Severity))
	mail := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		cfg.FromEmail, to, subject, body)

	addr := fmt.Sprintf("%s:%d", cfg.SMTPServer, cfg.SMTPPort)
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPServer)
	return smtp.SendMail(addr, auth, cfg.FromEmail, []string{to}, []byte(mail))
}

// sendWebhook 推送 JSON 到主管部门回调地址
func (d *Dispatcher) sendWebhook(ctx context.Context, url string, msg *Message) error {
	data, _ := json.Marshal(msg)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}

type smsRequest struct {
	APIKey  string `json:"api_key"`
	Message string `json:"message"`
}

// sendSMS 调用短信网关接口，正文压缩为单条短信长度
func (d *Dispatcher) sendSMS(ctx context.Context, msg *Message) error {
	data, _ := json.Marshal(smsRequest{
		APIKey:  d.cfg.SMS.APIKey,
		Message: fmt.Sprintf("CCTV %s alert at %s, incident %d", msg.Type, msg.Location, msg.IncidentID),
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.SMS.APIURL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.cli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway status %d", resp.StatusCode)
	}
	return nil
}
