package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Low-overhead request telemetry. Non-sampled requests cost one counter
// increment; only slow ones produce a record. Sampled requests carry a
// full span trace. Records are appended as JSON lines under the spool
// directory by a single background writer.

type ctxKeyType struct{}

var (
	writerOnce    sync.Once
	writerCh      chan []byte
	requestCtr    uint64
	spanCtr       uint64
	sampleRate    = 0.001
	slowThreshold = 200 * time.Millisecond
	spoolDir      = "logs"
)

// SetSpoolDir sets the directory telemetry records are appended under.
func SetSpoolDir(dir string) {
	if dir != "" {
		spoolDir = dir
	}
}

// SetSampleRate sets the approximate full-trace sampling rate (0..1).
// Zero disables tracing; slow requests are still recorded.
func SetSampleRate(r float64) {
	if r < 0 {
		r = 0
	}
	if r > 1 {
		r = 1
	}
	sampleRate = r
}

// SetSlowThreshold sets the duration above which a non-sampled request
// still produces a record.
func SetSlowThreshold(d time.Duration) {
	if d < 0 {
		d = 0
	}
	slowThreshold = d
}

type span struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Op       string `json:"op"`
	StartMs  int64  `json:"start_ms"`
	Duration int64  `json:"duration_ms"`
}

type trace struct {
	Kind      string `json:"kind"`
	RequestID string `json:"request_id"`
	Op        string `json:"op"`
	Duration  int64  `json:"duration_ms"`
	Status    int    `json:"status"`
	Spans     []span `json:"spans,omitempty"`

	start time.Time
	mu    sync.Mutex
	stack []string
}

func startWriter() {
	writerCh = make(chan []byte, 1024)
	go func() {
		dir := filepath.Join(spoolDir, "telemetry")
		_ = os.MkdirAll(dir, 0o755)
		f, err := os.OpenFile(filepath.Join(dir, "requests.jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			// telemetry is best-effort
			return
		}
		defer f.Close()
		for b := range writerCh {
			_, _ = f.Write(append(b, '\n'))
		}
	}()
}

func emit(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	writerOnce.Do(startWriter)
	select {
	case writerCh <- b:
	default:
		// drop rather than block the request path
	}
}

// Middleware records timing for every request and a span trace for
// sampled ones.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := "r-" + uuid.NewString()

		var tr *trace
		if shouldSample(r) {
			tr = &trace{
				Kind:      "trace",
				RequestID: reqID,
				Op:        r.URL.Path,
				start:     start,
			}
			root := nextSpanID()
			tr.Spans = append(tr.Spans, span{ID: root, Op: tr.Op})
			tr.stack = append(tr.stack, root)
			r = r.WithContext(context.WithValue(r.Context(), ctxKeyType{}, tr))
		}

		srw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(srw, r)
		dur := time.Since(start)

		if tr != nil {
			tr.mu.Lock()
			tr.Status = srw.status
			tr.Duration = dur.Milliseconds()
			if tr.Op == "send_message" {
				// keep the message hot path cheap: no span detail
				tr.Spans = nil
			}
			tr.mu.Unlock()
			emit(tr)
			return
		}

		if dur > slowThreshold {
			emit(map[string]any{
				"kind":        "slow",
				"request_id":  reqID,
				"op":          r.URL.Path,
				"duration_ms": dur.Milliseconds(),
				"status":      srw.status,
			})
		}
	})
}

// StartSpan opens a child span on the request trace and returns its end
// function. For non-sampled requests both calls are no-ops.
func StartSpan(ctx context.Context, name string) func() {
	tr, ok := ctx.Value(ctxKeyType{}).(*trace)
	if !ok {
		return func() {}
	}
	startRel := time.Since(tr.start).Milliseconds()
	id := nextSpanID()

	tr.mu.Lock()
	parent := ""
	if len(tr.stack) > 0 {
		parent = tr.stack[len(tr.stack)-1]
	}
	tr.Spans = append(tr.Spans, span{ID: id, ParentID: parent, Op: name, StartMs: startRel})
	tr.stack = append(tr.stack, id)
	idx := len(tr.Spans) - 1
	tr.mu.Unlock()

	return func() {
		endRel := time.Since(tr.start).Milliseconds()
		tr.mu.Lock()
		if idx < len(tr.Spans) {
			tr.Spans[idx].Duration = endRel - tr.Spans[idx].StartMs
		}
		if len(tr.stack) > 0 {
			tr.stack = tr.stack[:len(tr.stack)-1]
		}
		tr.mu.Unlock()
	}
}

// SetRequestOp lets a handler name the operation for the current trace,
// replacing the URL path default.
func SetRequestOp(ctx context.Context, op string) {
	tr, ok := ctx.Value(ctxKeyType{}).(*trace)
	if !ok {
		return
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.Op = op
	if len(tr.Spans) > 0 {
		tr.Spans[0].Op = op
	}
}

// shouldSample approximates sampleRate with 1-in-N counting so the
// common path stays a single atomic add. X-Debug-Telemetry forces a
// full trace.
func shouldSample(r *http.Request) bool {
	if r.Header.Get("X-Debug-Telemetry") == "1" {
		return true
	}
	if sampleRate <= 0 {
		return false
	}
	denom := int64(1 / sampleRate)
	if denom <= 1 {
		return true
	}
	n := int64(atomic.AddUint64(&requestCtr, 1))
	return n%denom == 0
}

func nextSpanID() string {
	return "s-" + strconv.FormatUint(atomic.AddUint64(&spanCtr, 1), 10)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
