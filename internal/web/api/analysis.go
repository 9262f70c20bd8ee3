package api

import (
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/argus/internal/core/feed"
	"github.com/gowvp/argus/internal/core/incident"
	"github.com/gowvp/argus/internal/core/vision"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// AnalysisAPI 为 http 提供业务方法
// 音频片段走离线上传分析，视频流分析由 monitor 模块在线进行
type AnalysisAPI struct {
	detector     vision.Detector
	feedCore     feed.Core
	incidentCore incident.Core
}

func NewAnalysisAPI(detector vision.Detector, feedCore feed.Core, incidentCore incident.Core) AnalysisAPI {
	return AnalysisAPI{detector: detector, feedCore: feedCore, incidentCore: incidentCore}
}

func RegisterAnalysis(g gin.IRouter, api AnalysisAPI, handler ...gin.HandlerFunc) {
	group := g.Group("/analysis", handler...)
	group.GET("/health", web.WrapH(api.getAnalysisHealth))
	group.POST("/audio", api.analyzeAudio)
}

func (a AnalysisAPI) getAnalysisHealth(c *gin.Context, _ *struct{}) (gin.H, error) {
	return gin.H{"healthy": a.detector.Healthy(c.Request.Context())}, nil
}

// analyzeAudio 上传音频片段送检，检出的事件按关联摄像头入库
func (a AnalysisAPI) analyzeAudio(c *gin.Context) {
	ctx := c.Request.Context()
	fh, err := c.FormFile("file")
	if err != nil {
		web.Fail(c, reason.ErrBadRequest.SetMsg("audio file is required"))
		return
	}

	f, err := a.feedCore.GetFeed(ctx, c.PostForm("feed_id"))
	if err != nil {
		web.Fail(c, err)
		return
	}

	dst, err := saveTempUpload(fh)
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}
	defer os.Remove(dst)

	dets, err := a.detector.DetectAudio(ctx, dst)
	if err != nil {
		web.Fail(c, reason.ErrServer.SetMsg(err.Error()))
		return
	}

	items := make([]*incident.Incident, 0, len(dets))
	for i := range dets {
		out, err := a.incidentCore.Record(ctx, f, &dets[i])
		if err != nil {
			web.Fail(c, err)
			return
		}
		items = append(items, out)
	}
	c.JSON(200, gin.H{"items": items, "total": len(items)})
}

// saveTempUpload 上传内容落到唯一的临时路径
// 同名文件并发上传时各自独立，分析结束后由调用方删除
func saveTempUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "audio_*"+filepath.Ext(fh.Filename))
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := io.Copy(tmp, src); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
