package datagram

import (
	"net"

	coreerrors "bwgen/internal/core/errors"
	"bwgen/internal/utils/udpbatch"
)

// Sender 发送应答数据报，实现可以缓冲到 Flush
type Sender interface {
	Send(p []byte, addr net.Addr) error
	Flush() error
}

// directSender 每个数据报单独调用 WriteTo
type directSender struct {
	conn net.PacketConn
}

func newDirectSender(conn net.PacketConn) *directSender {
	return &directSender{conn: conn}
}

func (s *directSender) Send(p []byte, addr net.Addr) error {
	if _, err := s.conn.WriteTo(p, addr); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "write datagram")
	}
	return nil
}

func (s *directSender) Flush() error { return nil }

// batchSender 将数据报排入 udpbatch.BatchWriter
// p 在下次 Flush 前不得修改，共享的填充块满足这一点
type batchSender struct {
	bw *udpbatch.BatchWriter
}

func newBatchSender(conn *net.UDPConn, size int) *batchSender {
	return &batchSender{bw: udpbatch.NewBatchWriter(conn, size)}
}

func (s *batchSender) Send(p []byte, addr net.Addr) error {
	if _, err := s.bw.AddDirect(p, addr); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "write datagram batch")
	}
	return nil
}

func (s *batchSender) Flush() error {
	if _, err := s.bw.Flush(); err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeNetworkError, "flush datagram batch")
	}
	return nil
}
