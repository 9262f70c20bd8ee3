package incident

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"

	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/notify"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
)

// Record 将候选检测转为持久事件并触发通知
//
// 入库成功即视为记录完成：通知异步发出，通知失败不回滚也不阻塞采样循环。
// 入库失败返回错误，该条检测随之丢弃，不做重试。
func (c Core) Record(ctx context.Context, f *feed.Feed, det *vision.CandidateDetection) (*Incident, error) {
	out := Incident{
		Type:        det.Type,
		SubType:     det.SubType,
		Severity:    det.Severity,
		Confidence:  det.Confidence,
		Description: det.Description,
		Location:    f.Location,
		Latitude:    f.Latitude,
		Longitude:   f.Longitude,
		FrameNum:    det.FrameNum,
		FeedID:      f.ID,
		DetectedAt:  orm.Now(),
	}
	if out.Severity == "" {
		out.Severity = vision.SeverityMedium
	}
	if det.Box != nil {
		boxJSON, _ := json.Marshal(det.Box)
		out.Box = string(boxJSON)
	}

	// 快照落盘失败不影响事件入库
	if det.Snapshot != "" {
		path, err := c.saveSnapshot(f.ID, out.DetectedAt, det.Snapshot)
		if err != nil {
			slog.ErrorContext(ctx, "save snapshot failed", "feed_id", f.ID, "err", err)
		} else {
			out.VideoSnapshotPath = path
		}
	}

	if err := c.store.Incident().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add feed[%s] err[%s]`, f.ID, err.Error())
	}

	slog.InfoContext(ctx, "incident recorded",
		"incident_id", out.ID,
		"feed_id", f.ID,
		"incident_type", out.Type,
		"sub_type", out.SubType,
		"severity", out.Severity,
		"confidence", out.Confidence,
	)

	c.dispatchAsync(&out)
	return &out, nil
}

// dispatchAsync 异步通知主管部门并落库投递记录
// 使用独立 context，不随采样循环或请求取消
func (c Core) dispatchAsync(inc *Incident) {
	if c.notifier == nil {
		return
	}
	msg := notifyMessage(inc)
	go func() {
		ctx := context.Background()
		attempts := c.notifier.Dispatch(ctx, msg)
		for _, a := range attempts {
			entry := NotificationLog{
				IncidentID: inc.ID,
				MessageID:  a.MessageID,
				Channel:    a.Channel,
				Recipient:  a.Recipient,
				Status:     a.Status(),
				CreatedAt:  orm.Now(),
			}
			if a.Err != nil {
				entry.ErrorMsg = a.Err.Error()
			}
			if err := c.store.NotificationLog().Add(ctx, &entry); err != nil {
				slog.Error("save notification log failed", "incident_id", inc.ID, "err", err)
			}
		}
	}()
}

func notifyMessage(inc *Incident) *notify.Message {
	return &notify.Message{
		IncidentID:  inc.ID,
		FeedID:      inc.FeedID,
		Type:        inc.Type,
		SubType:     inc.SubType,
		Severity:    inc.Severity,
		Confidence:  inc.Confidence,
		Description: inc.Description,
		Location:    inc.Location,
		Timestamp:   inc.DetectedAt,
	}
}

// saveSnapshot 将 Base64 编码的快照保存到快照目录的 {feedID}/ 子目录
// 返回相对路径: feedID/年月日时分秒_随机6位.jpg
func (c Core) saveSnapshot(feedID string, t orm.Time, snapshotB64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(snapshotB64)
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}

	randomSuffix := fmt.Sprintf("%06d", rand.IntN(1000000))
	filename := fmt.Sprintf("%s_%s.jpg", t.Format("20060102150405"), randomSuffix)

	relativePath := filepath.Join(feedID, filename)
	fullPath := filepath.Join(c.snapshotDir, relativePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}

	slog.Info("incident snapshot saved", "path", fullPath, "size", len(data))
	return relativePath, nil
}
