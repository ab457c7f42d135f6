// Package client bwgen 探测客户端
//
// 通过一种传输请求指定数量的填充字节，报告收到的数据量和速率。
package client

import (
	"bytes"
	"fmt"
	"time"

	"bwgen/internal/constants"
	"bwgen/internal/protocol/kcptransport"
)

// 支持的传输
const (
	TransportTCP = "tcp"
	TransportKCP = "kcp"
	TransportUDP = "udp"
)

// Options 探测选项
type Options struct {
	Filler  byte          // 期望的填充字节
	Timeout time.Duration // 拨号超时及等待首个应答字节的超时
	Idle    time.Duration // 收满目标后或数据报突发中的空闲结束时长
	KCP     kcptransport.Options
}

// DefaultOptions 与服务端默认值一致
func DefaultOptions() Options {
	return Options{
		Filler:  constants.DefaultFiller,
		Timeout: 10 * time.Second,
		Idle:    500 * time.Millisecond,
		KCP:     kcptransport.DefaultOptions(),
	}
}

// Result 一次探测的结果
type Result struct {
	Transport  string
	Request    string
	Help       string // 流式服务端发送的帮助文本
	ErrorReply string // 服务端回复错误文本时设置
	Target     int64  // 请求的字节数，未知为 0
	Bytes      int64  // 收到的填充字节数
	Packets    int64  // 收到的数据报数
	Valid      bool   // 收到的字节全部为填充字节
	Elapsed    time.Duration
}

// MiBPerSecond 观测到的吞吐量
func (r *Result) MiBPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / (1 << 20) / r.Elapsed.Seconds()
}

// Complete 是否至少收到目标字节数
func (r *Result) Complete() bool {
	return r.Target > 0 && r.Bytes >= r.Target
}

// Loss 未收到部分占目标的比例
func (r *Result) Loss() float64 {
	if r.Target <= 0 || r.Bytes >= r.Target {
		return 0
	}
	return float64(r.Target-r.Bytes) / float64(r.Target)
}

func (r *Result) String() string {
	if r.ErrorReply != "" {
		return fmt.Sprintf("%s %q: rejected by server", r.Transport, r.Request)
	}
	return fmt.Sprintf("%s %q: %d/%d bytes in %v (%.2f MiB/s)",
		r.Transport, r.Request, r.Bytes, r.Target, r.Elapsed.Round(time.Millisecond), r.MiBPerSecond())
}

// fillerCheck 检查字节序列是否全为填充字节
// 保留开头部分用于识别错误应答
type fillerCheck struct {
	filler byte
	valid  bool
	head   []byte
}

func newFillerCheck(filler byte) *fillerCheck {
	return &fillerCheck{filler: filler, valid: true}
}

func (c *fillerCheck) add(p []byte) {
	if room := len(constants.ErrorText) - len(c.head); room > 0 {
		if room > len(p) {
			room = len(p)
		}
		c.head = append(c.head, p[:room]...)
	}
	if c.valid && len(bytes.Trim(p, string(c.filler))) != 0 {
		c.valid = false
	}
}

func (c *fillerCheck) errorReply() string {
	if string(c.head) == constants.ErrorText {
		return constants.ErrorText
	}
	return ""
}
