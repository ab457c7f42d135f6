package client

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"time"

	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
	"bwgen/internal/payload"
	"bwgen/internal/protocol/kcptransport"
)

const readBufferSize = 64 * 1024

// FetchStream 通过流式传输（tcp 或 kcp）发送请求并读取应答
// 直到服务端关闭，或在收满目标后连接空闲
func FetchStream(ctx context.Context, transport, addr, request string, opts Options) (*Result, error) {
	res := &Result{Transport: transport, Request: request, Target: targetOf(request)}

	conn, err := dialStream(ctx, transport, addr, opts)
	if err != nil {
		return res, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	r := bufio.NewReaderSize(conn, readBufferSize)
	line := []byte(request + "\n")

	// kcp 会话在服务端收到客户端首个包后才存在
	if transport == TransportKCP {
		if err := writeRequest(conn, line, opts.Timeout); err != nil {
			return res, err
		}
	}
	if err := conn.SetReadDeadline(time.Now().Add(opts.Timeout)); err != nil {
		return res, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set read deadline")
	}
	if res.Help, err = readHelp(r); err != nil {
		return res, ctxOr(ctx, err)
	}
	start := time.Now()
	if transport != TransportKCP {
		if err := writeRequest(conn, line, opts.Timeout); err != nil {
			return res, err
		}
	}

	check := newFillerCheck(opts.Filler)
	last := start
	buf := make([]byte, readBufferSize)
	for {
		settled := (res.Target > 0 && res.Bytes >= res.Target) || check.errorReply() != ""
		wait := opts.Timeout
		if settled {
			wait = opts.Idle
		}
		if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return res, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set read deadline")
		}

		n, err := r.Read(buf)
		if n > 0 {
			check.add(buf[:n])
			res.Bytes += int64(n)
			last = time.Now()
		}
		if err == nil {
			continue
		}
		if err == io.EOF || (settled && coreerrors.IsTimeout(err)) {
			break
		}
		res.Elapsed = last.Sub(start)
		return res, ctxOr(ctx, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "read reply"))
	}
	res.Elapsed = last.Sub(start)

	if kc, ok := conn.(*kcptransport.Conn); ok {
		_ = kc.Ack()
	}

	res.Valid = check.valid
	if !check.valid && check.errorReply() != "" {
		res.ErrorReply = check.errorReply()
		res.Bytes = 0
		return res, coreerrors.Wrap(coreerrors.ErrInvalidRequest, coreerrors.CodeInvalidRequest, "server rejected the request")
	}
	return res, nil
}

func dialStream(ctx context.Context, transport, addr string, opts Options) (net.Conn, error) {
	switch transport {
	case TransportTCP:
		d := net.Dialer{Timeout: opts.Timeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "dial %s", addr)
		}
		return conn, nil
	case TransportKCP:
		return kcptransport.Dial(addr, opts.KCP)
	default:
		return nil, coreerrors.Newf(coreerrors.CodeInvalidParam, "unknown stream transport %q", transport)
	}
}

// readHelp 读取以空行结尾的帮助文本
func readHelp(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for sb.Len() < constants.MaxRequestLine {
		line, err := r.ReadString('\n')
		sb.WriteString(line)
		if err != nil {
			return sb.String(), coreerrors.Wrap(err, coreerrors.CodeNetworkError, "read help text")
		}
		if line == "\n" {
			return sb.String(), nil
		}
	}
	return sb.String(), coreerrors.New(coreerrors.CodeInvalidRequest, "help text too long")
}

func writeRequest(conn net.Conn, line []byte, timeout time.Duration) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set write deadline")
	}
	if _, err := conn.Write(line); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "send request")
	}
	return nil
}

// targetOf 请求的字节数，非数据请求为 0
func targetOf(request string) int64 {
	req := payload.Parse(request)
	if req.Kind != payload.KindData {
		return 0
	}
	return req.Bytes
}

func ctxOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return coreerrors.Wrap(ctx.Err(), coreerrors.CodeCancelled, "probe cancelled")
	}
	return err
}
