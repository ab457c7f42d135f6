package httpservice

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"bwgen/internal/constants"
	"bwgen/internal/core/metrics"
)

// HeaderRequestID 请求 ID 头，请求和响应都携带
const HeaderRequestID = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

// RequestID 返回 requestIDMiddleware 分配的请求 ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware 沿用客户端的 X-Request-ID，否则生成新 ID
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// statusRecorder 记录响应状态码和响应体大小
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// loggingMiddleware 每个请求记录一行访问日志并计数
func (s *HTTPService) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		if s.metrics != nil {
			_ = s.metrics.IncrementCounter(metrics.HTTPRequests, map[string]string{"route": route})
			if rec.bytes > 0 {
				_ = s.metrics.AddCounter(metrics.HTTPBytesSent, float64(rec.bytes), map[string]string{"route": route})
			}
		}

		s.logger.WithFields(map[string]interface{}{
			constants.LogFieldRequestID: RequestID(r.Context()),
			constants.LogFieldMethod:    r.Method,
			constants.LogFieldPath:      r.URL.Path,
			constants.LogFieldStatus:    rec.status,
			constants.LogFieldBytes:     rec.bytes,
			constants.LogFieldDuration:  time.Since(start).String(),
			constants.LogFieldRemote:    r.RemoteAddr,
		}).Debug("HTTPService: request served")
	})
}

// respondJSON 以 JSON 写出 v
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
