package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"bwgen/internal/constants"
	"bwgen/internal/core/dispose"
	coreerrors "bwgen/internal/core/errors"
	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/payload"
)

// writeBufferSize 连接前缓冲写入器的大小
const writeBufferSize = 32 * 1024

// Session 单个连接的生命周期
type Session struct {
	ID      string
	Remote  string
	Request payload.Request
	Target  int64
	Sent    int64
	Started time.Time
}

// lingerer 直接关闭会丢失排队数据的传输实现此接口
type lingerer interface {
	Linger(timeout time.Duration)
}

func newSessionID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// serveConn 运行一个会话，返回时总会关闭连接
func (l *Listener) serveConn(conn net.Conn) {
	sess := &Session{
		ID:      newSessionID(),
		Remote:  conn.RemoteAddr().String(),
		Started: time.Now(),
	}
	logger := l.logger.WithFields(map[string]interface{}{
		constants.LogFieldSessionID: sess.ID,
		constants.LogFieldRemote:    sess.Remote,
	})

	// 监听器关闭时关闭连接，解除阻塞的 I/O
	scope := dispose.New(l.Ctx(), "session "+sess.ID, logger)
	scope.AddCleanHandler(func() error {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})
	defer scope.Close()

	l.count(metrics.StreamSessionsTotal)
	l.gauge(1)
	defer l.gauge(-1)

	logger.Debug("StreamListener: session opened")

	if err := l.handshake(conn, sess); err != nil {
		l.logIOError(logger, scope.Ctx(), err, "StreamListener: session ended before a request was read")
		return
	}

	req := sess.Request
	if req.Kind != payload.KindData {
		l.countInvalid()
		logger.WithField(constants.LogFieldRequest, req.Kind.String()).WithError(req.Err).
			Info("StreamListener: invalid request")
		if l.cfg.ErrorReply {
			if err := l.writeAll(conn, []byte(constants.ErrorText)); err != nil {
				logger.WithError(err).Debug("StreamListener: error reply not delivered")
			} else if lg, ok := conn.(lingerer); ok {
				lg.Linger(l.cfg.WriteTimeout)
			}
		}
		return
	}

	sess.Target = req.Bytes
	sent, err := l.stream(scope.Ctx(), conn, req.Bytes)
	sess.Sent = sent
	if l.metrics != nil {
		_ = l.metrics.AddCounter(metrics.StreamBytesSent, float64(sent), l.labels)
	}

	elapsed := time.Since(sess.Started)
	logger = logger.WithFields(map[string]interface{}{
		constants.LogFieldRequest:  req.String(),
		constants.LogFieldTarget:   sess.Target,
		constants.LogFieldBytes:    sess.Sent,
		constants.LogFieldDuration: elapsed.String(),
	})
	if err != nil {
		l.logIOError(logger, scope.Ctx(), err, "StreamListener: transfer aborted")
		return
	}

	if lg, ok := conn.(lingerer); ok {
		lg.Linger(l.cfg.WriteTimeout)
	}
	logger.Infof("StreamListener: transfer complete (%.2f MiB/s)", mibPerSecond(sent, elapsed))
}

// handshake 发送帮助文本并读取一行请求
func (l *Listener) handshake(conn net.Conn, sess *Session) error {
	if err := l.writeAll(conn, []byte(l.parser.HelpText())); err != nil {
		return err
	}

	if err := conn.SetReadDeadline(time.Now().Add(l.cfg.ReadTimeout)); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set read deadline")
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), constants.MaxRequestLine)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				// 超长请求行属于格式错误，不是 I/O 失败
				sess.Request = payload.Request{Kind: payload.KindInvalid,
					Err: coreerrors.Wrap(err, coreerrors.CodeInvalidRequest, "request line too long")}
				return nil
			}
			return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "read request line")
		}
		return coreerrors.Wrap(io.EOF, coreerrors.CodeNetworkError, "client closed before sending a request")
	}
	_ = conn.SetReadDeadline(time.Time{})

	sess.Request = l.parser.Parse(scanner.Text())
	return nil
}

// stream 经缓冲写入器写出 total 字节填充并刷新
func (l *Listener) stream(ctx context.Context, conn net.Conn, total int64) (int64, error) {
	bw := bufio.NewWriterSize(conn, writeBufferSize)

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
		if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout)); err != nil {
			return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set write deadline")
		}
		if _, err := bw.Write(chunk); err != nil {
			return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "write chunk")
		}
		return nil
	})
	if err != nil {
		return sent, err
	}

	if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout)); err != nil {
		return sent, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set write deadline")
	}
	if err := bw.Flush(); err != nil {
		return sent, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "flush")
	}
	return sent, nil
}

func (l *Listener) writeAll(conn net.Conn, p []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteTimeout)); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set write deadline")
	}
	if _, err := conn.Write(p); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "write")
	}
	return nil
}

// logIOError 记录传输失败，关闭引起的错误记为 debug
func (l *Listener) logIOError(logger corelog.Logger, ctx context.Context, err error, msg string) {
	if ctx.Err() != nil {
		logger.WithError(err).Debug(msg + " (shutdown)")
		return
	}
	if l.metrics != nil {
		_ = l.metrics.IncrementCounter(metrics.IOErrors, l.labels)
	}
	if coreerrors.IsTimeout(err) {
		logger.WithError(err).Warn(msg + " (timeout)")
		return
	}
	logger.WithError(err).Warn(msg)
}

func (l *Listener) gauge(delta float64) {
	if l.metrics != nil {
		_ = l.metrics.AddGauge(metrics.StreamSessionsActive, delta, l.labels)
	}
}

func (l *Listener) countInvalid() {
	if l.metrics != nil {
		_ = l.metrics.IncrementCounter(metrics.RequestsInvalid, l.labels)
	}
}

func mibPerSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / (1 << 20) / d.Seconds()
}
