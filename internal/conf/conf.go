package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/system"
	"github.com/pelletier/go-toml/v2"
)

// Duration 配置中的时长，单位秒
type Duration int64

func (d Duration) Duration() time.Duration {
	return time.Duration(d) * time.Second
}

// Bootstrap 全局配置
type Bootstrap struct {
	BuildVersion string `toml:"-"`
	ConfigPath   string `toml:"-"`
	ConfigDir    string `toml:"-"`

	Server   Server   `toml:"server"`
	Data     Data     `toml:"data"`
	Monitor  Monitor  `toml:"monitor"`
	Analysis Analysis `toml:"analysis"`
	Notify   Notify   `toml:"notify"`
}

type Server struct {
	Debug    bool   `toml:"debug"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	HTTP     HTTP   `toml:"http"`
}

type HTTP struct {
	Port      int    `toml:"port"`
	JwtSecret string `toml:"jwt_secret"`
	PProf     PProf  `toml:"pprof"`
}

type PProf struct {
	Enabled   bool     `toml:"enabled"`
	AccessIps []string `toml:"access_ips"`
}

type Data struct {
	Database Database `toml:"database"`
}

type Database struct {
	// Dsn 以 postgres/mysql 开头时连接对应数据库，否则视为 sqlite 文件路径
	Dsn             string   `toml:"dsn"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	SlowThreshold   Duration `toml:"slow_threshold"`
}

// Monitor 视频流巡检配置
type Monitor struct {
	// SampleEvery 每多少帧送检一次，30 帧约等于 1 秒
	SampleEvery int `toml:"sample_every"`
	// PaceMs 每帧之间的节拍间隔，毫秒，约等于 30fps 的播放速度
	PaceMs int `toml:"pace_ms"`
	// RetryPauseMs 直播流读帧失败后的重试间隔，毫秒
	RetryPauseMs int `toml:"retry_pause_ms"`
	// WatchdogSec 超过该秒数无事件时输出告警日志
	WatchdogSec int    `toml:"watchdog_sec"`
	SnapshotDir string `toml:"snapshot_dir"`
	FrameWidth  int    `toml:"frame_width"`
	FrameHeight int    `toml:"frame_height"`
	FPS         int    `toml:"fps"`
}

func (m Monitor) PaceInterval() time.Duration {
	return time.Duration(m.PaceMs) * time.Millisecond
}

func (m Monitor) RetryPause() time.Duration {
	return time.Duration(m.RetryPauseMs) * time.Millisecond
}

func (m Monitor) WatchdogWindow() time.Duration {
	return time.Duration(m.WatchdogSec) * time.Second
}

// Analysis AI 分析服务配置
type Analysis struct {
	// URL 分析服务地址，如 http://127.0.0.1:8500
	URL string `toml:"url"`
	// Threshold 置信度阈值，低于该值的检测结果被丢弃
	Threshold float64  `toml:"threshold"`
	Timeout   Duration `toml:"timeout"`
}

// Notify 通知渠道配置
type Notify struct {
	Email   Email   `toml:"email"`
	Webhook Webhook `toml:"webhook"`
	SMS     SMS     `toml:"sms"`
	// RetainDays 事件保留天数，0 表示不清理
	RetainDays int `toml:"retain_days"`
}

type Email struct {
	SMTPServer string `toml:"smtp_server"`
	SMTPPort   int    `toml:"smtp_port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	FromEmail  string `toml:"from_email"`
}

// Webhook 各主管部门的回调地址
type Webhook struct {
	PoliceURL           string `toml:"police_url"`
	FireDepartmentURL   string `toml:"fire_department_url"`
	TrafficAuthorityURL string `toml:"traffic_authority_url"`
	MunicipalURL        string `toml:"municipal_url"`
}

type SMS struct {
	APIKey string `toml:"api_key"`
	APIURL string `toml:"api_url"`
}

// SetupConfig 读取配置文件，文件不存在时写入默认配置
func SetupConfig(path string) (*Bootstrap, error) {
	bc := defaultBootstrap()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := WriteConfig(bc, path); err != nil {
			return nil, err
		}
	} else if err := toml.Unmarshal(data, bc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if bc.Server.HTTP.JwtSecret == "" {
		bc.Server.HTTP.JwtSecret = orm.GenerateRandomString(32)
	}
	bc.ConfigPath = path
	bc.ConfigDir = filepath.Dir(path)
	return bc, nil
}

// WriteConfig 将配置写回文件，修改凭据后调用
func WriteConfig(bc *Bootstrap, path string) error {
	data, err := toml.Marshal(bc)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultBootstrap() *Bootstrap {
	return &Bootstrap{
		Server: Server{
			HTTP: HTTP{Port: 8080},
		},
		Data: Data{
			Database: Database{
				Dsn:             "argus.db",
				MaxIdleConns:    10,
				MaxOpenConns:    50,
				ConnMaxLifetime: 3600,
				SlowThreshold:   1,
			},
		},
		Monitor: Monitor{
			SampleEvery:  30,
			PaceMs:       33,
			RetryPauseMs: 500,
			WatchdogSec:  300,
			SnapshotDir:  filepath.Join(system.Getwd(), "configs", "snapshots"),
			FrameWidth:   640,
			FrameHeight:  360,
			FPS:          30,
		},
		Analysis: Analysis{
			URL:       "http://127.0.0.1:8500",
			Threshold: 0.5,
			Timeout:   10,
		},
		Notify: Notify{
			Email: Email{
				SMTPServer: "smtp.gmail.com",
				SMTPPort:   587,
				FromEmail:  "cctv-monitor@example.com",
			},
			RetainDays: 30,
		},
	}
}
