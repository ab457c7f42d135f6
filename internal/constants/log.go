package constants

// 日志字段名常量
const (
	LogFieldSessionID = "session_id"
	LogFieldRequestID = "request_id"
	LogFieldRemote    = "remote"
	LogFieldTransport = "transport"
	LogFieldRequest   = "request"
	LogFieldTarget    = "target"
	LogFieldBytes     = "bytes"
	LogFieldPackets   = "packets"
	LogFieldDuration  = "duration"
	LogFieldMethod    = "method"
	LogFieldPath      = "path"
	LogFieldStatus    = "status"
)
