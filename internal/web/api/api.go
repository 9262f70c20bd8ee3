package api

import (
	"expvar"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/domain/version/versionapi"
	"github.com/ixugo/goddd/pkg/system"
	"github.com/ixugo/goddd/pkg/web"
)

var startRuntime = time.Now()

func setupRouter(r *gin.Engine, uc *Usecase) {
	const staticPrefix = "/web"

	r.Use(
		// 格式化输出到控制台，然后记录到日志
		// 此处不做 recover，底层 http.server 也会 recover，但不会输出方便查看的格式
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		web.Metrics(),
		web.Logger(web.IgnorePrefix(staticPrefix),
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/static/snapshots"), // 事件快照图片
		),
		web.LoggerWithBody(web.DefaultBodyLimit,
			web.IgnoreBool(uc.Conf.Server.Debug),
			web.IgnoreMethod(http.MethodOptions),
			web.IgnorePrefix("/static/snapshots"),
		),
	)
	go web.CountGoroutines(10*time.Minute, 20)

	r.Use(cors.New(cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders: []string{
			"Accept", "Content-Length", "Content-Type", "Range", "Accept-Language",
			"Origin", "Authorization", "Referer", "User-Agent",
			"Accept-Encoding",
			"Cache-Control", "Pragma", "X-Requested-With",
			"Sec-Fetch-Mode", "Sec-Fetch-Site", "Sec-Fetch-Dest",
			"Sec-Ch-Ua", "Sec-Ch-Ua-Mobile", "Sec-Ch-Ua-Platform",
			"Dnt", "X-Forwarded-For", "X-Forwarded-Proto", "X-Forwarded-Host",
			"X-Real-IP", "X-Request-ID", "X-Request-Start", "X-Request-Time",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
		AllowOriginFunc: func(_ string) bool {
			return true
		},
	}))

	const staticDir = "www"
	admin := r.Group(staticPrefix, gzip.Gzip(gzip.DefaultCompression))
	admin.Static("/", filepath.Join(system.Getwd(), staticDir))
	r.NoRoute(func(c *gin.Context) {
		// react-router 路由指向前端资源
		if strings.HasPrefix(c.Request.URL.Path, staticPrefix) {
			c.File(filepath.Join(system.Getwd(), staticDir, "index.html"))
			return
		}
		c.JSON(404, gin.H{"msg": "来到了无人的荒漠"})
	})
	r.GET("/", func(ctx *gin.Context) {
		ctx.Redirect(http.StatusPermanentRedirect, staticPrefix+"/"+"index.html")
	})

	auth := web.AuthMiddleware(uc.Conf.Server.HTTP.JwtSecret)
	r.GET("/health", web.WrapH(uc.getHealth))
	r.GET("/app/metrics/api", web.WrapH(uc.getMetricsAPI))
	r.GET("/app/stats/system", web.WrapH(uc.getSystemStats))
	r.GET("/app/version/check", web.WrapH(uc.checkVersion))
	r.POST("/app/upgrade", auth, uc.upgradeApp)

	versionapi.Register(r, uc.Version, auth)
	RegisterUser(r, uc.UserAPI, auth)
	RegisterFeed(r, uc.FeedAPI, auth)
	RegisterMonitor(r, uc.MonitorAPI, auth)
	RegisterIncident(r, uc.IncidentAPI, auth)
	RegisterAnalysis(r, uc.AnalysisAPI, auth)

	// 事件快照静态文件
	if dir := uc.Conf.Monitor.SnapshotDir; dir != "" {
		r.Static("/static/snapshots", dir)
	}

	// 反向代理分析服务，便于前端直连调试
	r.Any("/proxy/analysis/*path", uc.proxyAnalysis)
}

// proxyAnalysis 将请求转发到 AI 分析服务
func (uc *Usecase) proxyAnalysis(c *gin.Context) {
	target, err := url.Parse(uc.Conf.Analysis.URL)
	if err != nil {
		web.Fail(c, err)
		return
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	c.Request.URL.Path = strings.TrimPrefix(c.Request.URL.Path, "/proxy/analysis")
	proxy.ServeHTTP(c.Writer, c.Request)
}

type getHealthOutput struct {
	Version         string    `json:"version"`
	StartAt         time.Time `json:"start_at"`
	AnalysisHealthy bool      `json:"analysis_healthy"`
	ActiveSessions  int64     `json:"active_sessions"`
}

func (uc *Usecase) getHealth(c *gin.Context, _ *struct{}) (getHealthOutput, error) {
	return getHealthOutput{
		Version:         uc.Conf.BuildVersion,
		StartAt:         startRuntime,
		AnalysisHealthy: uc.Detector.Healthy(c.Request.Context()),
		ActiveSessions:  uc.MonitorAPI.monitorCore.Stats().ActiveSessions.Value(),
	}, nil
}

type getMetricsAPIOutput struct {
	RealTimeRequests  int64  `json:"real_time_requests"` // 实时请求数
	TotalRequests     int64  `json:"total_requests"`     // 总请求数
	TotalResponses    int64  `json:"total_responses"`    // 总响应数
	RequestTop10      []KV   `json:"request_top10"`      // 请求TOP10
	StatusCodeTop10   []KV   `json:"status_code_top10"`  // 状态码TOP10
	Goroutines        any    `json:"goroutines"`         // 协程数量
	NumGC             uint32 `json:"num_gc"`             // gc 次数
	SysAlloc          uint64 `json:"sys_alloc"`          // 内存占用
	StartAt           string `json:"start_at"`           // 运行时间
	FramesProcessed   int64  `json:"frames_processed"`   // 累计处理帧数
	IncidentsDetected int64  `json:"incidents_detected"` // 累计检出事件数
	ActiveSessions    int64  `json:"active_sessions"`    // 监控中的流数量
}

func (uc *Usecase) getMetricsAPI(_ *gin.Context, _ *struct{}) (*getMetricsAPIOutput, error) {
	req := expvar.Get("request").(*expvar.Int).Value()
	reqs := expvar.Get("requests").(*expvar.Int).Value()
	resps := expvar.Get("responses").(*expvar.Int).Value()
	urls := expvar.Get(`requestURLs`).(*expvar.Map)
	status := expvar.Get(`statusCodes`).(*expvar.Map)
	u := sortExpvarMap(urls, 10)
	s := sortExpvarMap(status, 10)
	g := expvar.Get("goroutine_num").(expvar.Func)

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	ms := uc.MonitorAPI.monitorCore.Stats()
	return &getMetricsAPIOutput{
		RealTimeRequests:  req,
		TotalRequests:     reqs,
		TotalResponses:    resps,
		RequestTop10:      u,
		StatusCodeTop10:   s,
		Goroutines:        g(),
		NumGC:             stats.NumGC,
		SysAlloc:          stats.Sys,
		StartAt:           startRuntime.Format(time.DateTime),
		FramesProcessed:   ms.FramesProcessed.Value(),
		IncidentsDetected: ms.IncidentsDetected.Value(),
		ActiveSessions:    ms.ActiveSessions.Value(),
	}, nil
}

type KV struct {
	Key   string
	Value int64
}

func sortExpvarMap(data *expvar.Map, top int) []KV {
	kvs := make([]KV, 0, 8)
	data.Do(func(kv expvar.KeyValue) {
		kvs = append(kvs, KV{
			Key:   kv.Key,
			Value: kv.Value.(*expvar.Int).Value(),
		})
	})

	sort.Slice(kvs, func(i, j int) bool {
		return kvs[i].Value > kvs[j].Value
	})

	idx := top
	if l := len(kvs); l < top {
		idx = len(kvs)
	}
	return kvs[:idx]
}
