// Package stream 通过面向连接的传输（TCP/KCP）下发填充字节
//
// 每个连接先收到帮助文本，发送一行请求，收到相应数量的填充字节后由服务端关闭。
package stream

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
	"bwgen/internal/core/dispose"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/core/safe"
	"bwgen/internal/payload"
	"bwgen/internal/protocol/kcptransport"
	"bwgen/internal/utils/sockopt"
)

// Config 监听器配置
type Config struct {
	Protocol       string // schema.StreamProtocolTCP 或 schema.StreamProtocolKCP
	Address        string
	MaxConnections int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	ErrorReply     bool
	SendRate       int64 // 每个会话的字节/秒，0 表示不限
	KCP            kcptransport.Options
}

// ConfigFromSchema 从配置的 stream 段构造 Config
func ConfigFromSchema(sc schema.StreamConfig) Config {
	return Config{
		Protocol:       sc.Protocol,
		Address:        net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port)),
		MaxConnections: sc.MaxConnections,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		ErrorReply:     sc.ErrorReply,
		SendRate:       sc.SendRate,
		KCP: kcptransport.Options{
			Fast:   sc.KCP.Mode != schema.KCPModeNormal,
			SndWnd: sc.KCP.SndWnd,
			RcvWnd: sc.KCP.RcvWnd,
			MTU:    sc.KCP.MTU,
		},
	}
}

// Listener 接受流式连接，每个连接运行一个会话
type Listener struct {
	*dispose.Dispose

	cfg     Config
	parser  *payload.Parser
	gen     *payload.Generator
	logger  corelog.Logger
	metrics metrics.Metrics
	labels  map[string]string

	sem      *semaphore.Weighted
	ln       net.Listener
	sessions *safe.WaitGroup
	active   atomic.Int64
}

// NewListener 创建未绑定的监听器
func NewListener(cfg Config, parser *payload.Parser, gen *payload.Generator, logger corelog.Logger, m metrics.Metrics) *Listener {
	if cfg.Protocol == "" {
		cfg.Protocol = schema.StreamProtocolTCP
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = constants.DefaultMaxConnections
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = constants.DefaultReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = constants.DefaultWriteTimeout
	}
	if logger == nil {
		logger = corelog.NewNopLogger()
	}
	logger = logger.WithField(constants.LogFieldTransport, cfg.Protocol)
	return &Listener{
		cfg:      cfg,
		parser:   parser,
		gen:      gen,
		logger:   logger,
		metrics:  m,
		labels:   map[string]string{constants.LogFieldTransport: cfg.Protocol},
		sem:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
		sessions: safe.NewWaitGroup("stream-session", logger),
	}
}

// Name 服务名称
func (l *Listener) Name() string {
	return "stream-" + l.cfg.Protocol
}

// Bind 打开监听套接字，生命周期持续到 ctx 结束或 Close
func (l *Listener) Bind(ctx context.Context) error {
	var (
		ln  net.Listener
		err error
	)
	switch l.cfg.Protocol {
	case schema.StreamProtocolKCP:
		ln, err = kcptransport.Listen(l.cfg.Address, l.cfg.KCP)
	case schema.StreamProtocolTCP:
		lc := sockopt.ListenConfig(sockopt.Options{ReuseAddr: true})
		ln, err = lc.Listen(ctx, "tcp", l.cfg.Address)
		if err != nil {
			err = coreerrors.Wrapf(err, coreerrors.CodeBindFailed, "failed to listen TCP on %s", l.cfg.Address)
		}
	default:
		err = coreerrors.Newf(coreerrors.CodeConfigError, "unsupported stream protocol %q", l.cfg.Protocol)
	}
	if err != nil {
		return err
	}

	l.ln = ln
	l.Dispose = dispose.New(ctx, l.Name(), l.logger)
	l.AddCleanHandler(func() error {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})

	l.logger.Infof("StreamListener: listening on %s (max %d sessions)", ln.Addr(), l.cfg.MaxConnections)
	return nil
}

// Addr 绑定地址，Bind 之前为 nil
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Active 进行中的会话数
func (l *Listener) Active() int64 {
	return l.active.Load()
}

// Serve 运行 accept 循环直到监听器关闭，然后等待进行中的会话
// accept 循环从不等待会话处理
func (l *Listener) Serve() error {
	if l.ln == nil {
		return coreerrors.New(coreerrors.CodeServiceClosed, "stream listener not bound")
	}
	defer l.sessions.Wait()

	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if l.IsClosed() || coreerrors.IsClosed(err) {
				return nil
			}
			if coreerrors.IsTimeout(err) || isTemporary(err) {
				backoff = nextBackoff(backoff)
				l.logger.WithError(err).Warnf("StreamListener: accept failed, retrying in %v", backoff)
				select {
				case <-time.After(backoff):
				case <-l.Ctx().Done():
					return nil
				}
				continue
			}
			l.logger.WithError(err).Error("StreamListener: accept loop stopped")
			return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "stream accept failed")
		}
		backoff = 0

		if !l.sem.TryAcquire(1) {
			l.reject(conn)
			continue
		}

		l.active.Add(1)
		l.sessions.Go(func() {
			defer l.active.Add(-1)
			defer l.sem.Release(1)
			l.serveConn(conn)
		})
	}
}

// Shutdown 关闭监听器并等待会话结束，直到 ctx 到期
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.Dispose == nil {
		return nil
	}
	err := l.Dispose.Close()

	done := make(chan struct{})
	go func() {
		l.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return coreerrors.Wrapf(ctx.Err(), coreerrors.CodeTimeout, "%d stream sessions still running", l.Active())
	}
}

func (l *Listener) reject(conn net.Conn) {
	l.count(metrics.StreamSessionsRejected)
	l.logger.WithField(constants.LogFieldRemote, conn.RemoteAddr().String()).
		Warnf("StreamListener: session limit %d reached, rejecting connection", l.cfg.MaxConnections)
	if err := conn.Close(); err != nil {
		l.logger.WithError(err).Debug("StreamListener: close rejected connection")
	}
}

func (l *Listener) count(name string) {
	if l.metrics != nil {
		_ = l.metrics.IncrementCounter(name, l.labels)
	}
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return 5 * time.Millisecond
	}
	d *= 2
	if d > time.Second {
		d = time.Second
	}
	return d
}
