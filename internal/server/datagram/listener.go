// Package datagram 通过 UDP 下发填充字节
//
// 每个收到的数据包是一次独立交换，应答完成后才读取下一个包，
// 因此大流量突发会延迟其他发送方。
package datagram

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"bwgen/internal/config/schema"
	"bwgen/internal/constants"
	"bwgen/internal/core/dispose"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/payload"
	"bwgen/internal/utils/sockopt"
)

const transportName = "udp"

// Config 监听器配置
type Config struct {
	Address        string
	SocketBuffer   int
	SendRate       int64   // 每次交换的字节/秒，0 表示不限
	PerSourceRate  float64 // 每个发送方 IP 的请求/秒，0 表示不限
	PerSourceBurst int
	PerSourceCache int
	Batch          bool
	BatchSize      int
}

// ConfigFromSchema 从配置的 datagram 段构造 Config
func ConfigFromSchema(dc schema.DatagramConfig) Config {
	return Config{
		Address:        net.JoinHostPort(dc.Host, strconv.Itoa(dc.Port)),
		SocketBuffer:   dc.SocketBuffer,
		SendRate:       dc.SendRate,
		PerSourceRate:  dc.PerSourceRate,
		PerSourceBurst: dc.PerSourceBurst,
		PerSourceCache: dc.PerSourceCache,
		Batch:          dc.Batch,
		BatchSize:      dc.BatchSize,
	}
}

// Exchange 一次已应答的数据包交换
type Exchange struct {
	Remote  net.Addr
	Request payload.Request
	Bytes   int64
	Packets int64
	Elapsed time.Duration
}

// Listener 持有数据报套接字及其唯一的接收循环
type Listener struct {
	*dispose.Dispose

	cfg     Config
	parser  *payload.Parser
	gen     *payload.Generator
	logger  corelog.Logger
	metrics metrics.Metrics
	labels  map[string]string

	conn    *net.UDPConn
	sender  Sender
	sources *sourceLimiter
	started atomic.Bool
	served  chan struct{}
}

// NewListener 创建未绑定的监听器
func NewListener(cfg Config, parser *payload.Parser, gen *payload.Generator, logger corelog.Logger, m metrics.Metrics) *Listener {
	if logger == nil {
		logger = corelog.NewNopLogger()
	}
	return &Listener{
		cfg:     cfg,
		parser:  parser,
		gen:     gen,
		logger:  logger.WithField(constants.LogFieldTransport, transportName),
		metrics: m,
		labels:  map[string]string{constants.LogFieldTransport: transportName},
		served:  make(chan struct{}),
	}
}

// Name 服务名称
func (l *Listener) Name() string {
	return "datagram-" + transportName
}

// Bind 打开套接字，生命周期持续到 ctx 结束或 Close
func (l *Listener) Bind(ctx context.Context) error {
	sources, err := newSourceLimiter(l.cfg.PerSourceRate, l.cfg.PerSourceBurst, l.cfg.PerSourceCache)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeConfigError, "per-source limiter")
	}

	lc := sockopt.ListenConfig(sockopt.Options{
		ReuseAddr:  true,
		RecvBuffer: l.cfg.SocketBuffer,
		SendBuffer: l.cfg.SocketBuffer,
	})
	pc, err := lc.ListenPacket(ctx, network(l.cfg.Address), l.cfg.Address)
	if err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeBindFailed, "failed to listen UDP on %s", l.cfg.Address)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return coreerrors.Newf(coreerrors.CodeBindFailed, "unexpected packet conn %T", pc)
	}

	l.conn = conn
	l.sources = sources
	if l.cfg.Batch {
		l.sender = newBatchSender(conn, l.cfg.BatchSize)
	} else {
		l.sender = newDirectSender(conn)
	}

	l.Dispose = dispose.New(ctx, l.Name(), l.logger)
	l.AddCleanHandler(func() error {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})

	l.logger.Infof("DatagramListener: listening on %s (batch=%v)", conn.LocalAddr(), l.cfg.Batch)
	return nil
}

// Addr 绑定地址，Bind 之前为 nil
func (l *Listener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Serve 逐个接收并应答数据包，直到监听器关闭
func (l *Listener) Serve() error {
	if l.conn == nil {
		return coreerrors.New(coreerrors.CodeServiceClosed, "datagram listener not bound")
	}
	if !l.started.CompareAndSwap(false, true) {
		// 已在运行，或在循环启动前已关闭
		return nil
	}
	defer close(l.served)

	buf := make([]byte, constants.DatagramReadBuffer)
	for {
		if err := l.conn.SetReadDeadline(time.Now().Add(constants.DatagramPollInterval)); err != nil {
			if l.IsClosed() || coreerrors.IsClosed(err) {
				return nil
			}
			return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set read deadline")
		}

		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if l.IsClosed() || coreerrors.IsClosed(err) {
				return nil
			}
			if coreerrors.IsTimeout(err) {
				continue
			}
			l.countIOError()
			l.logger.WithError(err).Warn("DatagramListener: read failed")
			continue
		}

		if !l.sources.Allow(addr) {
			l.add(metrics.DatagramDropped, 1)
			l.logger.WithField(constants.LogFieldRemote, addr.String()).Debug("DatagramListener: rate limited, packet dropped")
			continue
		}

		l.exchange(l.Ctx(), l.sender, addr, buf[:n])
	}
}

// Shutdown 关闭套接字并等待接收循环退出，直到 ctx 到期
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.Dispose == nil {
		return nil
	}
	err := l.Dispose.Close()
	if l.started.CompareAndSwap(false, true) {
		// Serve 未运行，之后也不会再运行
		close(l.served)
		return err
	}
	select {
	case <-l.served:
		return err
	case <-ctx.Done():
		return coreerrors.Wrap(ctx.Err(), coreerrors.CodeTimeout, "datagram exchange still running")
	}
}

// exchange 通过 s 应答一个数据包，返回发送情况
func (l *Listener) exchange(ctx context.Context, s Sender, addr net.Addr, raw []byte) Exchange {
	ex := Exchange{Remote: addr, Request: l.parser.Parse(string(raw))}
	started := time.Now()
	logger := l.logger.WithFields(map[string]interface{}{
		constants.LogFieldRemote:  addr.String(),
		constants.LogFieldRequest: ex.Request.String(),
	})
	l.add(metrics.DatagramExchanges, 1)

	var err error
	switch ex.Request.Kind {
	case payload.KindHelp:
		err = l.reply(s, addr, []byte(l.parser.HelpText()), &ex)
	case payload.KindData:
		err = l.burst(ctx, s, addr, ex.Request.Bytes, &ex)
	default:
		l.add(metrics.RequestsInvalid, 1)
		logger.WithError(ex.Request.Err).Info("DatagramListener: invalid request")
		err = l.reply(s, addr, []byte(constants.ErrorText), &ex)
	}
	ex.Elapsed = time.Since(started)

	l.add(metrics.DatagramBytesSent, float64(ex.Bytes))
	l.add(metrics.DatagramPacketsSent, float64(ex.Packets))

	logger = logger.WithFields(map[string]interface{}{
		constants.LogFieldBytes:    ex.Bytes,
		constants.LogFieldPackets:  ex.Packets,
		constants.LogFieldDuration: ex.Elapsed.String(),
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.WithError(err).Debug("DatagramListener: exchange interrupted (shutdown)")
			return ex
		}
		l.countIOError()
		logger.WithError(err).Warn("DatagramListener: exchange aborted")
		return ex
	}
	if ex.Request.Kind == payload.KindData {
		logger.Info("DatagramListener: burst complete")
	}
	return ex
}

func (l *Listener) reply(s Sender, addr net.Addr, p []byte, ex *Exchange) error {
	if err := s.Send(p, addr); err != nil {
		return err
	}
	if err := s.Flush(); err != nil {
		return err
	}
	ex.Bytes += int64(len(p))
	ex.Packets++
	return nil
}

// burst 向 addr 发送填充块，直到交给 s 的字节数达到 total
func (l *Listener) burst(ctx context.Context, s Sender, addr net.Addr, total int64, ex *Exchange) error {
	var limiter *rate.Limiter
	if l.cfg.SendRate > 0 {
		burst := l.cfg.SendRate
		if c := int64(l.gen.ChunkSize()); burst < c {
			burst = c
		}
		limiter = rate.NewLimiter(rate.Limit(l.cfg.SendRate), int(burst))
	}

	sent, err := l.gen.Stream(ctx, total, func(chunk []byte) error {
		if limiter != nil {
			if err := limiter.WaitN(ctx, len(chunk)); err != nil {
				return coreerrors.Wrap(err, coreerrors.CodeCancelled, "pacing interrupted")
			}
		}
		if err := s.Send(chunk, addr); err != nil {
			return err
		}
		ex.Packets++
		return nil
	})
	ex.Bytes = sent
	if err != nil {
		return err
	}
	return s.Flush()
}

func (l *Listener) add(name string, v float64) {
	if l.metrics != nil && v > 0 {
		_ = l.metrics.AddCounter(name, v, l.labels)
	}
}

func (l *Listener) countIOError() {
	l.add(metrics.IOErrors, 1)
}

// network 字面量地址固定地址族，保证批量写入的地址族一致
func network(address string) string {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return "udp"
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() != nil {
			return "udp4"
		}
		return "udp6"
	}
	return "udp"
}
