package httpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelog "bwgen/internal/core/log"
	"bwgen/internal/core/metrics"
	"bwgen/internal/health"
)

func testConfig() Config {
	return Config{
		Listen:         "127.0.0.1:0",
		Filler:         'A',
		MaxBytes:       8 << 20,
		MaxUploadBytes: 1 << 20,
		ReadTimeout:    5 * time.Second,
	}
}

func newTestService(t *testing.T) (*HTTPService, *metrics.MemoryMetrics, *health.HealthManager) {
	t.Helper()
	m := metrics.NewMemoryMetrics(context.Background())
	hm := health.NewHealthManager(context.Background(), "test", nil)
	t.Cleanup(func() {
		m.Close()
		hm.Close()
	})
	return NewHTTPService(testConfig(), corelog.NewTestLogger(t), m, hm), m, hm
}

func do(t *testing.T, s *HTTPService, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestData(t *testing.T) {
	s, m, _ := newTestService(t)

	tests := []struct {
		query string
		want  int
	}{
		{"", 1 << 20},
		{"?size=3&unit=KB", 3072},
		{"?size=17&unit=B", 17},
		{"?size=2&unit=MB", 2 << 20},
	}
	for _, tt := range tests {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, PathData+tt.query, nil))
		require.Equal(t, http.StatusOK, rec.Code, tt.query)
		assert.Equal(t, tt.want, rec.Body.Len(), tt.query)
		assert.Equal(t, bytes.Repeat([]byte{'A'}, tt.want), rec.Body.Bytes())
		assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
		assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	}

	v, _ := m.GetCounter(metrics.HTTPRequests, map[string]string{"route": PathData})
	assert.Equal(t, 4.0, v)
}

func TestData_BadRequest(t *testing.T) {
	s, _, _ := newTestService(t)

	for _, q := range []string{"?unit=TB", "?unit=mb", "?size=abc", "?size=0", "?size=-1&unit=KB", "?size=9&unit=MB"} {
		rec := do(t, s, httptest.NewRequest(http.MethodGet, PathData+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Zero(t, rec.Body.Len(), q)
	}
}

func TestFile(t *testing.T) {
	s, _, _ := newTestService(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, PathFile+"?size=5&unit=KB", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="data.txt"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "5120", rec.Header().Get("Content-Length"))
	assert.Equal(t, 5120, rec.Body.Len())
}

func TestRequestID_Propagated(t *testing.T) {
	s, _, _ := newTestService(t)

	req := httptest.NewRequest(http.MethodGet, PathData+"?size=1&unit=B", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	rec := do(t, s, req)
	assert.Equal(t, "abc-123", rec.Header().Get(HeaderRequestID))
}

func uploadRequest(t *testing.T, filename string, content []byte, withFile bool) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("deviceId", "device-1"))
	if withFile {
		fw, err := mw.CreateFormFile("logFile", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, PathLog, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeUpload(t *testing.T, rec *httptest.ResponseRecorder) LogUploadResponse {
	t.Helper()
	var resp LogUploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestLogUpload(t *testing.T) {
	s, _, _ := newTestService(t)
	doc := []byte(`[{"event_id":1,"name":"boot","timestamp":300},{"timestamp":"100"},{"timestamp":200}]`)

	rec := do(t, s, uploadRequest(t, "log.json", doc, true))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeUpload(t, rec)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Successfully processed 3 log entries.", resp.Message)
	require.NotNil(t, resp.MinTimestamp)
	require.NotNil(t, resp.MaxTimestamp)
	assert.Equal(t, int64(100), *resp.MinTimestamp)
	assert.Equal(t, int64(300), *resp.MaxTimestamp)
}

func TestLogUpload_Gzip(t *testing.T) {
	s, _, _ := newTestService(t)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte(`[{"event_id":"e","name":"n"}]`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rec := do(t, s, uploadRequest(t, "log.json.gz", gz.Bytes(), true))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeUpload(t, rec)
	assert.Equal(t, "Successfully processed 1 log entries.", resp.Message)
	assert.Nil(t, resp.MinTimestamp)
}

func TestLogUpload_Errors(t *testing.T) {
	s, _, _ := newTestService(t)

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		wantCode string
	}{
		{"no file", uploadRequest(t, "", nil, false), http.StatusBadRequest, CodeNoFile},
		{"empty file", uploadRequest(t, "log.json", nil, true), http.StatusBadRequest, CodeNoFile},
		{"object", uploadRequest(t, "log.json", []byte(`{"a":1}`), true), http.StatusBadRequest, CodeNotArray},
		{"empty array", uploadRequest(t, "log.json", []byte(`[]`), true), http.StatusBadRequest, CodeNotArray},
		{"missing name", uploadRequest(t, "log.json", []byte(`[{"event_id":1}]`), true), http.StatusBadRequest, CodeMissingFields},
		{"scalar entry", uploadRequest(t, "log.json", []byte(`[1]`), true), http.StatusBadRequest, CodeMissingFields},
		{"broken json", uploadRequest(t, "log.json", []byte(`[{`), true), http.StatusInternalServerError, CodeUnexpected},
		{"broken gzip", uploadRequest(t, "log.gz", []byte(`plain`), true), http.StatusInternalServerError, CodeUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			resp := decodeUpload(t, rec)
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestLogUpload_TooLarge(t *testing.T) {
	s, _, _ := newTestService(t)

	rec := do(t, s, uploadRequest(t, "log.json", bytes.Repeat([]byte{' '}, 2<<20), true))
	assert.Contains(t, []int{http.StatusRequestEntityTooLarge, http.StatusBadRequest}, rec.Code)
	assert.Equal(t, "error", decodeUpload(t, rec).Status)
}

func TestLogUpload_GzipExpandsPastLimit(t *testing.T) {
	s, _, _ := newTestService(t)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(bytes.Repeat([]byte{' '}, 4<<20))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.Less(t, gz.Len(), 1<<20)

	rec := do(t, s, uploadRequest(t, "log.json.gz", gz.Bytes(), true))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	resp := decodeUpload(t, rec)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, CodeTooLarge, resp.Code)
}

func TestReadLogFile_Limit(t *testing.T) {
	raw, err := readLogFile(bytes.NewReader([]byte("0123456789")), "log.json", 10)
	require.NoError(t, err)
	assert.Len(t, raw, 10)

	_, err = readLogFile(bytes.NewReader([]byte("0123456789X")), "log.json", 10)
	assert.ErrorIs(t, err, errLogTooLarge)

	raw, err = readLogFile(bytes.NewReader([]byte("0123456789X")), "log.json", 0)
	require.NoError(t, err)
	assert.Len(t, raw, 11)
}

func TestHealthz(t *testing.T) {
	s, _, hm := newTestService(t)

	rec := do(t, s, httptest.NewRequest(http.MethodGet, PathHealthz, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var info health.HealthInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, health.HealthStatusHealthy, info.Status)

	hm.MarkDraining()
	rec = do(t, s, httptest.NewRequest(http.MethodGet, PathHealthz, nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	s, m, _ := newTestService(t)
	require.NoError(t, m.AddCounter(metrics.StreamBytesSent, 42, nil))

	rec := do(t, s, httptest.NewRequest(http.MethodGet, PathStats, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 42.0, snap[metrics.StreamBytesSent])
	assert.Contains(t, snap, "goroutines_active")
	assert.Contains(t, snap, "goroutine_panics_total")
}

func TestService_BindServeShutdown(t *testing.T) {
	s, _, _ := newTestService(t)
	require.NoError(t, s.Bind(context.Background()))

	served := make(chan error, 1)
	go func() { served <- s.Serve() }()

	resp, err := http.Get("http://" + s.Addr().String() + PathData + "?size=10&unit=KB")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Len(t, body, 10240)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-served)
}

func TestService_ShutdownBeforeServeReleasesPort(t *testing.T) {
	s, _, _ := newTestService(t)
	require.NoError(t, s.Bind(context.Background()))
	addr := s.Addr().String()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	ln, err := net.Listen("tcp", addr)
	require.NoError(t, err, "port should be free after shutdown")
	ln.Close()
}

func TestSummarizeLog_NumericForms(t *testing.T) {
	sum, code, err := summarizeLog([]byte(`[{"event_id":1,"name":"x","timestamp":1.9e3},{"timestamp":true}]`))
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.Equal(t, 2, sum.Entries)
	assert.Equal(t, int64(0), *sum.Min)
	assert.Equal(t, int64(1900), *sum.Max)
}
