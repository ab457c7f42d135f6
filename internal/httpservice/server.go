// Package httpservice 可选的 HTTP 旁路服务
//
// 提供填充数据下载、设备日志上传、健康检查和统计。
package httpservice

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
	"bwgen/internal/core/dispose"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/health"
	"bwgen/internal/payload"
)

// 路由路径
const (
	PathData    = "/data-controller/data"
	PathFile    = "/data-controller/file"
	PathLog     = "/data-controller/itdp/log"
	PathHealthz = "/healthz"
	PathStats   = "/stats"
)

// downloadChunk 填充响应的单次写入大小
const downloadChunk = 32 * 1024

// Config HTTP 服务配置
type Config struct {
	Listen         string
	Filler         byte
	MaxBytes       int64
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration // 0 表示不限，大文件下载耗时较长
}

// ConfigFromSchema 从配置的 http 段构造 Config
func ConfigFromSchema(hc schema.HTTPConfig) Config {
	cfg := Config{
		Listen:         hc.Listen,
		Filler:         constants.DefaultHTTPFiller,
		MaxBytes:       hc.MaxBytes,
		MaxUploadBytes: hc.MaxUploadBytes,
		ReadTimeout:    hc.ReadTimeout,
		WriteTimeout:   hc.WriteTimeout,
	}
	if len(hc.Filler) == 1 {
		cfg.Filler = hc.Filler[0]
	}
	return cfg
}

// HTTPService 在独立监听器上提供旁路路由
type HTTPService struct {
	*dispose.Dispose

	cfg     Config
	router  *mux.Router
	server  *http.Server
	ln      net.Listener
	gen     *payload.Generator
	logger  corelog.Logger
	metrics metrics.Metrics
	health  *health.HealthManager
}

// NewHTTPService 创建路由
// m 和 hm 可为 nil，此时统计和健康检查返回空结果
func NewHTTPService(cfg Config, logger corelog.Logger, m metrics.Metrics, hm *health.HealthManager) *HTTPService {
	if logger == nil {
		logger = corelog.NewNopLogger()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.DefaultMaxUploadBytes
	}
	s := &HTTPService{
		cfg:     cfg,
		router:  mux.NewRouter(),
		gen:     payload.NewGenerator(downloadChunk, cfg.Filler, true),
		logger:  logger,
		metrics: m,
		health:  hm,
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *HTTPService) routes() {
	s.router.Use(requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc(PathData, s.handleData).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc(PathFile, s.handleFile).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc(PathLog, s.handleLogUpload).Methods(http.MethodPost)
	s.router.HandleFunc(PathHealthz, s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc(PathStats, s.handleStats).Methods(http.MethodGet)
}

// Handler 返回路由
func (s *HTTPService) Handler() http.Handler {
	return s.router
}

// Name 服务名称
func (s *HTTPService) Name() string {
	return "http"
}

// Bind 打开监听套接字
func (s *HTTPService) Bind(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeBindFailed, "failed to listen HTTP on %s", s.cfg.Listen)
	}
	s.ln = ln
	s.server.BaseContext = func(net.Listener) context.Context { return ctx }
	s.Dispose = dispose.New(ctx, "HTTPService", s.logger)
	s.AddCleanHandler(func() error {
		if err := s.server.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		// http.Server 只在 Serve 启动后才跟踪监听器
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	s.logger.Infof("HTTPService: listening on %s", ln.Addr())
	return nil
}

// Addr 绑定地址，Bind 之前为 nil
func (s *HTTPService) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve 阻塞直到服务关闭
func (s *HTTPService) Serve() error {
	if s.ln == nil {
		return coreerrors.New(coreerrors.CodeServiceClosed, "http service not bound")
	}
	if err := s.server.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "http serve")
	}
	return nil
}

// Shutdown 停止接受请求并等待进行中的请求，直到 ctx 到期
func (s *HTTPService) Shutdown(ctx context.Context) error {
	if s.Dispose == nil {
		return nil
	}
	s.logger.Info("HTTPService: shutting down")
	err := s.server.Shutdown(ctx)
	if cerr := s.Dispose.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeTimeout, "http shutdown")
	}
	return nil
}
