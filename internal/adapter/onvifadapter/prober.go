// Package onvifadapter 通过 ONVIF 协议发现和探测局域网摄像头，
// 把探测到的 RTSP 取流地址交给录入流程。
package onvifadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gowvp/onvif"
	devicemodel "github.com/gowvp/onvif/device"
	m "github.com/gowvp/onvif/media"
	sdkdevice "github.com/gowvp/onvif/sdk/device"
	sdkmedia "github.com/gowvp/onvif/sdk/media"
	xsdonvif "github.com/gowvp/onvif/xsd/onvif"
)

// Prober ONVIF 摄像头探测器
// 仅做一次性探测，不维护设备长连接
type Prober struct {
	client *http.Client
}

func NewProber() *Prober {
	cli := *http.DefaultClient
	cli.Timeout = time.Millisecond * 3000
	return &Prober{client: &cli}
}

type ProbeInput struct {
	IP       string `json:"ip" binding:"required"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// StreamProfile 摄像头的一路可取流配置
type StreamProfile struct {
	Token        string `json:"token"`
	Name         string `json:"name"`
	StreamURL    string `json:"stream_url"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware"`
}

// Probe 连接摄像头，校验账号密码并取回所有 Profile 的 RTSP 地址
func (p *Prober) Probe(ctx context.Context, in *ProbeInput) ([]StreamProfile, error) {
	if in.Port <= 0 {
		in.Port = 80
	}
	dev, err := onvif.NewDevice(onvif.DeviceParams{
		Xaddr:      fmt.Sprintf("%s:%d", in.IP, in.Port),
		Username:   in.Username,
		Password:   in.Password,
		HttpClient: p.client,
	})
	if err != nil {
		return nil, fmt.Errorf("IP 或 PORT 错误: %w", err)
	}

	info, err := sdkdevice.Call_GetDeviceInformation(ctx, dev, devicemodel.GetDeviceInformation{})
	if err != nil {
		return nil, fmt.Errorf("账号或密码错误: %w", err)
	}

	resp, err := sdkmedia.Call_GetProfiles(ctx, dev, m.GetProfiles{})
	if err != nil {
		return nil, fmt.Errorf("查询 Profiles 失败: %w", err)
	}
	if len(resp.Profiles) == 0 {
		return nil, fmt.Errorf("没有找到可用的视频通道")
	}

	profiles := make([]StreamProfile, 0, len(resp.Profiles))
	for _, profile := range resp.Profiles {
		uri, err := p.streamURI(ctx, dev, string(profile.Token))
		if err != nil {
			slog.WarnContext(ctx, "get stream uri failed",
				"xaddr", dev.GetDeviceParams().Xaddr,
				"profile", string(profile.Token),
				"err", err,
			)
			continue
		}
		profiles = append(profiles, StreamProfile{
			Token:        string(profile.Token),
			Name:         string(profile.Name),
			StreamURL:    uri,
			Manufacturer: info.Manufacturer,
			Model:        info.Model,
			Firmware:     info.FirmwareVersion,
		})
	}

	slog.InfoContext(ctx, "onvif probe finished",
		"xaddr", dev.GetDeviceParams().Xaddr,
		"profile_count", len(profiles),
	)
	return profiles, nil
}

// streamURI 获取 RTSP 流地址，带上鉴权信息方便直接拉流
func (p *Prober) streamURI(ctx context.Context, dev *onvif.Device, profileToken string) (string, error) {
	var param m.GetStreamUri
	param.StreamSetup.Transport.Protocol = "RTSP"
	param.StreamSetup.Stream = "RTP-Unicast"
	param.ProfileToken = xsdonvif.ReferenceToken(profileToken)
	resp, err := sdkmedia.Call_GetStreamUri(ctx, dev, param)
	if err != nil {
		return "", err
	}
	return buildPlayURL(string(resp.MediaUri.Uri), dev.GetDeviceParams().Username, dev.GetDeviceParams().Password), nil
}

func buildPlayURL(rawurl, username, password string) string {
	if username != "" && password != "" {
		return strings.Replace(rawurl, "rtsp://", fmt.Sprintf("rtsp://%s:%s@", username, password), 1)
	}
	return rawurl
}

type discoverItem struct {
	Xaddr string `json:"xaddr"`
}

// Discover 组播发现局域网内的 ONVIF 设备，逐条写出 json
// 3 秒没有新设备即结束
func (p *Prober) Discover(ctx context.Context, w io.Writer) error {
	recv, err := onvif.AllAvailableDevicesAtSpecificEthernetInterfaces()
	if err != nil {
		return err
	}

	for {
		select {
		case dev, ok := <-recv:
			if !ok {
				return nil
			}
			b, _ := json.Marshal(discoverItem{Xaddr: dev.GetDeviceParams().Xaddr})
			_, _ = w.Write(b)
		case <-ctx.Done():
			return nil
		case <-time.After(3 * time.Second):
			slog.DebugContext(ctx, "discover timeout")
			return nil
		}
	}
}
