package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/argus/internal/adapter/onvifadapter"
	"github.com/gowvp/argus/internal/conf"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/feed/store/feeddb"
	"github.com/gowvp/argus/internal/core/incident"
	"github.com/gowvp/argus/internal/core/incident/store/incidentdb"
	"github.com/gowvp/argus/internal/core/monitor"
	"github.com/gowvp/argus/internal/core/notify"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/domain/uniqueid"
	"github.com/ixugo/goddd/domain/uniqueid/store/uniqueiddb"
	"github.com/ixugo/goddd/domain/version/versionapi"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/gorm"
)

var (
	ProviderVersionSet = wire.NewSet(versionapi.NewVersionCore)
	ProviderSet        = wire.NewSet(
		wire.Struct(new(Usecase), "*"),
		NewHTTPHandler,
		versionapi.New,
		NewUniqueID,
		NewDetector,
		NewDispatcher,
		NewProber,
		NewFeedStore, NewFeedCore, NewFeedAPI,
		NewIncidentStore, NewIncidentCore, NewIncidentAPI,
		NewMonitorCore, NewMonitorAPI,
		NewAnalysisAPI,
		NewUserAPI,
	)
)

type Usecase struct {
	Conf     *conf.Bootstrap
	DB       *gorm.DB
	Version  versionapi.API
	Detector vision.Detector

	FeedAPI     FeedAPI
	MonitorAPI  MonitorAPI
	IncidentAPI IncidentAPI
	AnalysisAPI AnalysisAPI
	UserAPI     UserAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	cfg := uc.Conf.Server
	if cfg.HTTP.JwtSecret == "" {
		uc.Conf.Server.HTTP.JwtSecret = orm.GenerateRandomString(32)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	// 如果启用了 Pprof，设置 Pprof 监控
	if cfg.HTTP.PProf.Enabled {
		web.SetupPProf(g, &cfg.HTTP.PProf.AccessIps)
	}

	setupRouter(g, uc)
	uc.Version.RecordVersion()
	return g
}

// NewUniqueID 唯一 id 生成器
func NewUniqueID(db *gorm.DB) uniqueid.Core {
	return uniqueid.NewCore(uniqueiddb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate()), 5)
}

// NewDetector AI 分析服务客户端
// 启动时初始化模型，进程退出时通知服务释放资源
func NewDetector(cfg *conf.Bootstrap) (vision.Detector, func()) {
	cli := vision.NewClient(cfg.Analysis)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := cli.Initialize(ctx); err != nil {
		// 分析服务可能后于本进程启动，失败只告警
		slog.Warn("analysis service initialize failed", "err", err)
	}

	return cli, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cli.Cleanup(ctx); err != nil {
			slog.Warn("analysis service cleanup failed", "err", err)
		}
	}
}

// NewDispatcher 主管部门通知分发器
func NewDispatcher(cfg *conf.Bootstrap) *notify.Dispatcher {
	return notify.NewDispatcher(cfg.Notify)
}

// NewProber ONVIF 摄像头探测器
func NewProber() *onvifadapter.Prober {
	return onvifadapter.NewProber()
}

func NewFeedStore(db *gorm.DB) feed.Storer {
	return feeddb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

func NewFeedCore(store feed.Storer, uni uniqueid.Core) feed.Core {
	return feed.NewCore(store, uni)
}

func NewIncidentStore(db *gorm.DB) incident.Storer {
	return incidentdb.NewDB(db).AutoMigrate(orm.GetEnabledAutoMigrate())
}

// NewIncidentCore 创建事件核心服务
// 依赖 incident.Notifier 接口而非 notify.Dispatcher，避免循环依赖
func NewIncidentCore(store incident.Storer, cfg *conf.Bootstrap, dispatcher *notify.Dispatcher) incident.Core {
	core := incident.NewCore(store,
		incident.WithNotifier(dispatcher),
		incident.WithSnapshotDir(cfg.Monitor.SnapshotDir),
		incident.WithRetainDays(cfg.Notify.RetainDays),
	)

	// 启动清理协程
	go core.StartCleanupWorker()

	return core
}

// NewMonitorCore 创建巡检核心服务，退出时停掉所有会话
func NewMonitorCore(cfg *conf.Bootstrap, feedCore feed.Core, detector vision.Detector, incidentCore incident.Core) (*monitor.Core, func()) {
	core := monitor.NewCore(cfg.Monitor, feedCore, detector, incidentCore)
	return core, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		core.Shutdown(ctx)
	}
}
