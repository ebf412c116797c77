package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/yanqian/fevertrack/internal/infra/config"
)

const maxReplayBody = 1 << 20

var errBodyTooLarge = errors.New("request body exceeds retry limit")

// withRetry re-runs POST requests that failed with a transient upstream
// status. The body is buffered so each attempt sees the same payload, and
// the response is buffered so only the final attempt reaches the client.
// Routes listed in cfg.Exclude are never replayed.
func withRetry(next http.Handler, cfg config.RetryConfig, logger *slog.Logger) http.Handler {
	if !cfg.Enabled || cfg.MaxAttempts <= 1 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || excluded(r.URL.Path, cfg.Exclude) {
			next.ServeHTTP(w, r)
			return
		}
		body, err := bufferBody(r)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, errBodyTooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			http.Error(w, err.Error(), status)
			return
		}

		var resp *bufferedResponse
		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			if attempt > 1 {
				logger.Warn("transient failure, retrying request", "path", r.URL.Path, "status", resp.status, "attempt", attempt)
				if !sleepCtx(r, backoff(cfg.BaseBackoff, attempt)) {
					break
				}
			}
			resp = newBufferedResponse()
			replay := r.Clone(r.Context())
			replay.Body = io.NopCloser(bytes.NewReader(body))
			replay.ContentLength = int64(len(body))
			next.ServeHTTP(resp, replay)
			if !transientStatus(resp.status) {
				break
			}
		}
		resp.writeTo(w)
	})
}

// excluded reports whether p matches one of the patterns. Patterns use
// path.Match syntax, so "*" matches a single path segment.
func excluded(p string, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := path.Match(pattern, p); err == nil && ok {
			return true
		}
	}
	return false
}

func transientStatus(status int) bool {
	switch status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoff doubles base for every attempt after the second.
func backoff(base time.Duration, attempt int) time.Duration {
	return base << (attempt - 2)
}

func sleepCtx(r *http.Request, d time.Duration) bool {
	if d <= 0 {
		return r.Context().Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.Context().Done():
		return false
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBody+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxReplayBody {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// bufferedResponse captures one attempt. Flush is a no-op: nothing is sent
// until the attempt is known to be final.
type bufferedResponse struct {
	header      http.Header
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedResponse() *bufferedResponse {
	return &bufferedResponse{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.status = status
	b.wroteHeader = true
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}

func (b *bufferedResponse) Flush() {}

func (b *bufferedResponse) writeTo(w http.ResponseWriter) {
	dst := w.Header()
	for k, v := range b.header {
		dst[k] = append([]string(nil), v...)
	}
	w.WriteHeader(b.status)
	if b.body.Len() > 0 {
		_, _ = w.Write(b.body.Bytes())
	}
}
