// Package server 组装配置、日志、指标和网络服务，并运行到关闭
package server

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/health"
	"bwgen/internal/httpservice"
	"bwgen/internal/payload"
	"bwgen/internal/server/datagram"
	"bwgen/internal/server/stream"
	"bwgen/internal/version"
)

// Server 持有进程内全部长期组件
type Server struct {
	cfg        *schema.Root
	configPath string

	logger    corelog.Logger
	logCloser io.Closer
	metrics   *metrics.MemoryMetrics
	health    *health.HealthManager

	stream   *stream.Listener
	datagram *datagram.Listener
	http     *httpservice.HTTPService
	services []Service

	closeOnce sync.Once
}

// Option New 的可选项
type Option func(*Server)

// WithLogger 替换按日志配置创建的 logger
func WithLogger(l corelog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New 按 cfg 创建组件，此时尚未绑定任何端口
func New(ctx context.Context, cfg *schema.Root, configPath string, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, configPath: configPath}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		logger, closer, err := corelog.New(corelog.Config{
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
			File:    cfg.Log.File,
			Console: cfg.Log.Console,
		})
		if err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "build logger")
		}
		s.logger, s.logCloser = logger, closer
	}

	s.metrics = metrics.NewMemoryMetrics(ctx)
	s.health = health.NewHealthManager(ctx, version.GetShortVersion(), s.logger)

	parser := payload.NewParser(payload.ParserConfig{
		Units:       cfg.Payload.Units,
		DefaultUnit: cfg.Payload.DefaultUnit,
		MaxBytes:    cfg.Payload.MaxRequestBytes,
	})
	filler := constants.DefaultFiller
	if len(cfg.Payload.Filler) == 1 {
		filler = cfg.Payload.Filler[0]
	}
	gen := payload.NewGenerator(cfg.Payload.ChunkSize, filler, cfg.Payload.ExactBytes)

	if cfg.Server.Stream.Enabled {
		s.stream = stream.NewListener(stream.ConfigFromSchema(cfg.Server.Stream), parser, gen, s.logger, s.metrics)
		s.services = append(s.services, s.stream)
		s.health.SetStatsProvider(health.StatsFunc(s.stream.Active))
	}
	if cfg.Server.Datagram.Enabled {
		s.datagram = datagram.NewListener(datagram.ConfigFromSchema(cfg.Server.Datagram), parser, gen, s.logger, s.metrics)
		s.services = append(s.services, s.datagram)
	}
	if cfg.HTTP.Enabled {
		s.http = httpservice.NewHTTPService(httpservice.ConfigFromSchema(cfg.HTTP), s.logger, s.metrics, s.health)
		s.services = append(s.services, s.http)
	}
	for _, svc := range s.services {
		if probe, ok := svc.(health.ListenerProbe); ok {
			s.health.RegisterChecker(svc.Name(), health.NewListenerChecker(probe))
		}
	}
	if len(s.services) == 0 {
		return nil, coreerrors.New(coreerrors.CodeConfigError, "no service enabled")
	}
	return s, nil
}

// Logger 进程 logger
func (s *Server) Logger() corelog.Logger { return s.logger }

// Services 已启用的服务，按启动顺序
func (s *Server) Services() []Service { return s.services }

// Health 健康管理器
func (s *Server) Health() *health.HealthManager { return s.health }

// Metrics 进程指标
func (s *Server) Metrics() metrics.Metrics { return s.metrics }

// Bind 绑定全部服务，失败时关闭已绑定的服务
func (s *Server) Bind(ctx context.Context) error {
	for i, svc := range s.services {
		if err := svc.Bind(ctx); err != nil {
			s.health.MarkUnhealthy(err.Error())
			s.rollback(s.services[:i])
			return &ServiceError{Service: svc.Name(), Op: "bind", Err: err}
		}
	}
	return nil
}

// rollback 在关闭超时内按逆序关闭已绑定的服务
func (s *Server) rollback(bound []Service) {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	for i := len(bound) - 1; i >= 0; i-- {
		if err := bound[i].Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warnf("Server: %s rollback after bind failure", bound[i].Name())
		}
	}
}

func (s *Server) shutdownTimeout() time.Duration {
	if t := s.cfg.Server.ShutdownTimeout; t > 0 {
		return t
	}
	return constants.DefaultShutdownTimeout
}

// Run 运行直到 ctx 取消或某个服务失败，然后在关闭超时内排空并关闭全部服务
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range s.services {
		svc := svc
		g.Go(func() error {
			if err := svc.Serve(); err != nil {
				return &ServiceError{Service: svc.Name(), Op: "serve", Err: err}
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	err := g.Wait()
	if err != nil {
		s.logger.WithError(err).Error("Server: stopped with error")
	} else {
		s.logger.Info("Server: stopped")
	}
	return err
}

// RunWithSignals 响应 SIGINT 和 SIGTERM 的 Run
func (s *Server) RunWithSignals(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Run(ctx)
}

func (s *Server) shutdown() error {
	timeout := s.shutdownTimeout()
	s.health.MarkDraining()
	s.logger.Infof("Server: draining, waiting up to %v for transfers", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for i := len(s.services) - 1; i >= 0; i-- {
		svc := s.services[i]
		if err := svc.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warnf("Server: %s did not shut down cleanly", svc.Name())
			errs = append(errs, &ServiceError{Service: svc.Name(), Op: "shutdown", Err: err})
		}
	}
	return errors.Join(errs...)
}

// Close 释放进程级资源，在 Run 返回后调用
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() {
		_ = s.health.Close()
		_ = s.metrics.Close()
		if s.logCloser != nil {
			err = s.logCloser.Close()
		}
	})
	return err
}
