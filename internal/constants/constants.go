package constants

import "time"

// 监听相关常量
const (
	// DefaultStreamPort 流式传输默认端口
	DefaultStreamPort = 9000

	// DefaultDatagramPort 数据报传输默认端口
	DefaultDatagramPort = 9001

	// DefaultHTTPListen HTTP 旁路服务默认监听地址
	DefaultHTTPListen = "0.0.0.0:8080"

	// DefaultMaxConnections 流式传输并发会话上限
	DefaultMaxConnections = 1024

	// DefaultReadTimeout 等待请求行的超时
	DefaultReadTimeout = 30 * time.Second

	// DefaultWriteTimeout 单次写入超时
	DefaultWriteTimeout = 30 * time.Second

	// DefaultShutdownTimeout 优雅关闭超时
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultSocketBuffer 数据报套接字收发缓冲区大小
	DefaultSocketBuffer = 8 * 1024 * 1024

	// DatagramReadBuffer 单个请求数据报的接收缓冲区
	DatagramReadBuffer = 1024

	// DatagramPollInterval 数据报接收循环检查关闭信号的间隔
	DatagramPollInterval = time.Second

	// MaxRequestLine 请求行的最大长度
	MaxRequestLine = 4096

	// MaxDatagramPayload 单个 UDP 数据报可承载的最大负载
	MaxDatagramPayload = 65507
)

// 负载相关常量
const (
	// DefaultChunkSize 单次发送的块大小
	DefaultChunkSize = 1024

	// DefaultFiller 流式和数据报传输使用的填充字节
	DefaultFiller byte = 'X'

	// DefaultHTTPFiller HTTP 旁路服务使用的填充字节
	DefaultHTTPFiller byte = 'A'

	// DefaultMaxRequestBytes 单次请求的字节上限（8 GiB）
	DefaultMaxRequestBytes int64 = 8 << 30

	// DefaultHTTPMaxBytes HTTP 下载的字节上限（1 GiB）
	DefaultHTTPMaxBytes int64 = 1 << 30

	// DefaultMaxUploadBytes 日志上传的字节上限（32 MiB）
	DefaultMaxUploadBytes int64 = 32 << 20
)

// KCP 默认参数
const (
	KCPSndWnd = 1024
	KCPRcvWnd = 1024
	KCPMTU    = 1400
)

// 协议文本
const (
	// TipCommand 请求帮助文本的命令
	TipCommand = "tip"

	// RequestSeparator 大小与单位之间的分隔符
	RequestSeparator = "|"

	// ErrorText 数据报传输对无法识别输入的固定回复
	ErrorText = "Commands available: 'tip' or '<size>|<unit>'\n"
)
