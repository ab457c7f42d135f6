// Package udpbatch 提供 UDP 批量发送功能
// Linux 上使用 sendmmsg 减少系统调用，其他平台逐个发送
package udpbatch

import (
	"net"
	"runtime"

	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const (
	// DefaultBatchSize 默认批量消息数量
	DefaultBatchSize = 32

	// MaxBatchSize 单次 sendmmsg 的上限（UIO_MAXIOV）
	MaxBatchSize = 1024
)

// batchConn ipv4/ipv6 PacketConn 的公共部分
type batchConn interface {
	WriteBatch(ms []ipv4.Message, flags int) (int, error)
}

// BatchWriter UDP 批量写入器，非并发安全，由单个发送循环独占
type BatchWriter struct {
	conn     *net.UDPConn
	pc       batchConn
	messages []ipv4.Message
	count    int
	batched  bool
}

// NewBatchWriter 创建批量写入器，size <= 0 时使用默认值
func NewBatchWriter(conn *net.UDPConn, size int) *BatchWriter {
	if size <= 0 {
		size = DefaultBatchSize
	}
	if size > MaxBatchSize {
		size = MaxBatchSize
	}

	bw := &BatchWriter{
		conn:     conn,
		messages: make([]ipv4.Message, size),
		batched:  runtime.GOOS == "linux",
	}
	if local, ok := conn.LocalAddr().(*net.UDPAddr); ok && local.IP.To4() == nil && len(local.IP) == net.IPv6len {
		bw.pc = ipv6.NewPacketConn(conn)
	} else {
		bw.pc = ipv4.NewPacketConn(conn)
	}
	for i := range bw.messages {
		bw.messages[i].Buffers = make([][]byte, 1)
	}
	return bw
}

// Batched 是否使用 sendmmsg
func (bw *BatchWriter) Batched() bool {
	return bw.batched
}

// Size 批量大小
func (bw *BatchWriter) Size() int {
	return len(bw.messages)
}

// AddDirect 添加数据包（零拷贝），data 在 Flush 之前必须保持不变
// 缓冲区满时自动刷新，返回本次刷新发出的包数
func (bw *BatchWriter) AddDirect(data []byte, addr net.Addr) (int, error) {
	msg := &bw.messages[bw.count]
	msg.Buffers[0] = data
	msg.N = len(data)
	msg.Addr = addr
	bw.count++

	if bw.count >= len(bw.messages) {
		return bw.Flush()
	}
	return 0, nil
}

// Flush 发送所有待发数据包，返回成功发出的包数
func (bw *BatchWriter) Flush() (int, error) {
	if bw.count == 0 {
		return 0, nil
	}
	pending := bw.messages[:bw.count]
	bw.count = 0

	if !bw.batched {
		return bw.writeEach(pending)
	}

	sent := 0
	for sent < len(pending) {
		n, err := bw.pc.WriteBatch(pending[sent:], 0)
		sent += n
		if err != nil {
			return sent, err
		}
		if n == 0 {
			// 内核未接受任何消息，回退到逐个发送剩余部分
			m, err := bw.writeEach(pending[sent:])
			return sent + m, err
		}
	}
	return sent, nil
}

// Pending 返回当前缓冲的包数量
func (bw *BatchWriter) Pending() int {
	return bw.count
}

func (bw *BatchWriter) writeEach(msgs []ipv4.Message) (int, error) {
	for i := range msgs {
		if _, err := bw.conn.WriteTo(msgs[i].Buffers[0], msgs[i].Addr); err != nil {
			return i, err
		}
	}
	return len(msgs), nil
}
