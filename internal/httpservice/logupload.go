package httpservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"

	"bwgen/internal/constants"
)

// 日志上传结果码
const (
	CodeNoFile        = "IMG4001"
	CodeNotArray      = "IMG4002"
	CodeMissingFields = "IMG4003"
	CodeTooLarge      = "IMG4004"
	CodeUnexpected    = "IMG5001"
)

// multipartMemory ParseMultipartForm 落盘前的内存上限
const multipartMemory = 8 << 20

// LogUploadResponse 日志上传应答体
type LogUploadResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code,omitempty"`
	Message      string `json:"message"`
	MinTimestamp *int64 `json:"min_timestamp,omitempty"`
	MaxTimestamp *int64 `json:"max_timestamp,omitempty"`
}

func uploadError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, LogUploadResponse{Status: "error", Code: code, Message: msg})
}

func (s *HTTPService) handleLogUpload(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.WithField(constants.LogFieldRequestID, RequestID(r.Context()))
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
				fmt.Sprintf("Log file exceeds %d bytes", s.cfg.MaxUploadBytes))
			return
		}
		uploadError(w, http.StatusBadRequest, CodeNoFile, "No file uploaded")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("logFile")
	if err != nil || header.Size == 0 {
		uploadError(w, http.StatusBadRequest, CodeNoFile, "No file uploaded")
		return
	}
	defer file.Close()
	deviceID := r.FormValue("deviceId")

	raw, err := readLogFile(file, header.Filename, s.cfg.MaxUploadBytes)
	if errors.Is(err, errLogTooLarge) {
		logger.WithField("file", header.Filename).Warn("HTTPService: log upload too large after decompression")
		uploadError(w, http.StatusRequestEntityTooLarge, CodeTooLarge,
			fmt.Sprintf("Log file exceeds %d bytes", s.cfg.MaxUploadBytes))
		return
	}
	if err != nil {
		logger.WithError(err).Warn("HTTPService: log upload unreadable")
		uploadError(w, http.StatusInternalServerError, CodeUnexpected, "An unexpected error occurred.")
		return
	}

	summary, code, err := summarizeLog(raw)
	switch code {
	case "":
	case CodeUnexpected:
		logger.WithError(err).Warn("HTTPService: log upload is not valid JSON")
		uploadError(w, http.StatusInternalServerError, code, "An unexpected error occurred.")
		return
	case CodeNotArray:
		uploadError(w, http.StatusBadRequest, code, "Log file must contain a JSON array")
		return
	default:
		uploadError(w, http.StatusBadRequest, code, "First log entry must contain event_id and name.")
		return
	}

	logger.WithField("device_id", deviceID).Infof("HTTPService: processed %d log entries", summary.Entries)
	respondJSON(w, http.StatusOK, LogUploadResponse{
		Status:       "ok",
		Message:      fmt.Sprintf("Successfully processed %d log entries.", summary.Entries),
		MinTimestamp: summary.Min,
		MaxTimestamp: summary.Max,
	})
}

var errLogTooLarge = errors.New("log file exceeds the upload limit")

// readLogFile 读取文件内容，文件名以 .gz 结尾时先解压
// 解压后超过 limit 字节返回 errLogTooLarge
func readLogFile(r io.Reader, name string, limit int64) ([]byte, error) {
	if strings.HasSuffix(name, ".gz") {
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	if limit > 0 {
		r = io.LimitReader(r, limit+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(raw)) > limit {
		return nil, errLogTooLarge
	}
	return raw, nil
}

// LogSummary 已校验日志的摘要
type LogSummary struct {
	Entries int
	Min     *int64
	Max     *int64
}

// summarizeLog 校验 JSON 日志数组并统计时间戳范围
// 返回非空 code 表示拒绝原因
func summarizeLog(raw []byte) (LogSummary, string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var root interface{}
	if err := dec.Decode(&root); err != nil {
		return LogSummary{}, CodeUnexpected, err
	}

	entries, ok := root.([]interface{})
	if !ok || len(entries) == 0 {
		return LogSummary{}, CodeNotArray, nil
	}
	first, ok := entries[0].(map[string]interface{})
	if !ok {
		return LogSummary{}, CodeMissingFields, nil
	}
	_, hasID := first["event_id"]
	_, hasName := first["name"]
	if !hasID || !hasName {
		return LogSummary{}, CodeMissingFields, nil
	}

	sum := LogSummary{Entries: len(entries)}
	lo, hi := int64(math.MaxInt64), int64(math.MinInt64)
	seen := false
	for _, e := range entries {
		obj, ok := e.(map[string]interface{})
		if !ok {
			continue
		}
		v, ok := obj["timestamp"]
		if !ok {
			continue
		}
		ts := asInt64(v)
		seen = true
		if ts < lo {
			lo = ts
		}
		if ts > hi {
			hi = ts
		}
	}
	if seen {
		sum.Min, sum.Max = &lo, &hi
	}
	return sum, "", nil
}

// asInt64 将 JSON 值转为整数，非数值为 0
func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n
		}
		if f, err := t.Float64(); err == nil {
			return int64(f)
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
