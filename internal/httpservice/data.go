package httpservice

import (
	"net/http"
	"strconv"

	"bwgen/internal/constants"
	"bwgen/internal/payload"
)

// quantity 读取 size 和 unit 查询参数，默认 1 MB
// 单位区分大小写，无法服务的请求返回 0
func (s *HTTPService) quantity(r *http.Request) int64 {
	q := r.URL.Query()
	size := int64(1)
	if v := q.Get("size"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0
		}
		size = n
	}
	unit := q.Get("unit")
	if unit == "" {
		unit = payload.UnitMB
	}
	n := payload.Convert(unit, size)
	if s.cfg.MaxBytes > 0 && n > s.cfg.MaxBytes {
		return 0
	}
	return n
}

func (s *HTTPService) handleData(w http.ResponseWriter, r *http.Request) {
	s.serveFiller(w, r, false)
}

func (s *HTTPService) handleFile(w http.ResponseWriter, r *http.Request) {
	s.serveFiller(w, r, true)
}

func (s *HTTPService) serveFiller(w http.ResponseWriter, r *http.Request, attachment bool) {
	n := s.quantity(r)
	if n <= 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/plain")
	h.Set("Content-Length", strconv.FormatInt(n, 10))
	if attachment {
		h.Set("Content-Disposition", `attachment; filename="data.txt"`)
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	if _, err := s.gen.Stream(r.Context(), n, func(chunk []byte) error {
		_, err := w.Write(chunk)
		return err
	}); err != nil {
		s.logger.WithField(constants.LogFieldRequestID, RequestID(r.Context())).WithError(err).
			Debug("HTTPService: download aborted")
	}
}
