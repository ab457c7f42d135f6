package client

import (
	"context"
	"net"
	"time"

	"bwgen/internal/constants"
	coreerrors "bwgen/internal/core/errors"
)

// FetchDatagram 以单个数据报发送请求，统计应答数据报
// 直到收到 want 字节或 opts.Idle 内无数据；want <= 0 时从请求推算目标
// 丢包不视为错误
func FetchDatagram(ctx context.Context, addr, request string, want int64, opts Options) (*Result, error) {
	res := &Result{Transport: TransportUDP, Request: request, Target: want}
	if want <= 0 {
		res.Target = targetOf(request)
	}

	conn, err := dialDatagram(ctx, addr, opts)
	if err != nil {
		return res, err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if uc, ok := conn.(*net.UDPConn); ok {
		_ = uc.SetReadBuffer(constants.DefaultSocketBuffer)
	}

	start := time.Now()
	if _, err := conn.Write([]byte(request)); err != nil {
		return res, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "send request")
	}

	check := newFillerCheck(opts.Filler)
	last := start
	buf := make([]byte, constants.MaxDatagramPayload)
	for res.Target <= 0 || res.Bytes < res.Target {
		wait := opts.Timeout
		if res.Packets > 0 {
			wait = opts.Idle
		}
		if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
			return res, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set read deadline")
		}
		n, err := conn.Read(buf)
		if err != nil {
			if coreerrors.IsTimeout(err) && res.Packets > 0 {
				break
			}
			return res, ctxOr(ctx, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "read reply"))
		}
		res.Packets++
		last = time.Now()
		if n == len(constants.ErrorText) && string(buf[:n]) == constants.ErrorText {
			res.ErrorReply = constants.ErrorText
			break
		}
		check.add(buf[:n])
		res.Bytes += int64(n)
	}
	res.Elapsed = last.Sub(start)
	res.Valid = check.valid

	if res.ErrorReply != "" {
		return res, coreerrors.Wrap(coreerrors.ErrInvalidRequest, coreerrors.CodeInvalidRequest, "server rejected the request")
	}
	return res, nil
}

// Tip 向数据报服务端请求帮助文本
func Tip(ctx context.Context, addr string, opts Options) (string, error) {
	conn, err := dialDatagram(ctx, addr, opts)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.Write([]byte(constants.TipCommand)); err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeNetworkError, "send tip")
	}
	if err := conn.SetReadDeadline(time.Now().Add(opts.Timeout)); err != nil {
		return "", coreerrors.Wrap(err, coreerrors.CodeNetworkError, "set read deadline")
	}
	buf := make([]byte, constants.MaxDatagramPayload)
	n, err := conn.Read(buf)
	if err != nil {
		return "", ctxOr(ctx, coreerrors.Wrap(err, coreerrors.CodeNetworkError, "read help text"))
	}
	return string(buf[:n]), nil
}

func dialDatagram(ctx context.Context, addr string, opts Options) (net.Conn, error) {
	d := net.Dialer{Timeout: opts.Timeout}
	conn, err := d.DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, coreerrors.Wrapf(err, coreerrors.CodeNetworkError, "dial %s", addr)
	}
	return conn, nil
}
