package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gowvp/argus/internal/conf"
)

// NewHTTPServer 组装依赖并返回 http 服务与资源回收函数
func NewHTTPServer(bc *conf.Bootstrap, log *slog.Logger) (*http.Server, func(), error) {
	handler, cleanup, err := wireApp(bc, log)
	if err != nil {
		return nil, nil, err
	}
	svr := http.Server{
		Addr:              fmt.Sprintf(":%d", bc.Server.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &svr, cleanup, nil
}
