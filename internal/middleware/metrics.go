package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"
)

// counters behind GET /api/metrics; process-wide, reset on restart
type counters struct {
	inFlight  atomic.Int64
	byClass   [6]atomic.Uint64 // index = status / 100
	analyses  atomic.Uint64
	analyzing atomic.Int64
	analysesF atomic.Uint64
	refreshes atomic.Uint64
	refreshF  atomic.Uint64
	transient atomic.Uint64
	started   time.Time
}

var stats = &counters{started: time.Now()}

// Snapshot is the /api/metrics payload
type Snapshot struct {
	InFlight        int64             `json:"in_flight"`
	Responses       map[string]uint64 `json:"responses"`
	Analyses        uint64            `json:"analyses_total"`
	AnalysesRunning int64             `json:"analyses_running"`
	AnalysesFailed  uint64            `json:"analyses_failed"`
	Refreshes       uint64            `json:"refreshes_total"`
	RefreshesFailed uint64            `json:"refreshes_failed"`
	AITransient     uint64            `json:"ai_transient_failures"`
	UptimeSeconds   float64           `json:"uptime_seconds"`
	HeapBytes       uint64            `json:"heap_alloc_bytes"`
	Goroutines      int               `json:"goroutines"`
}

// AnalysisStarted counts a thermostat analysis; call the returned func when it ends
func AnalysisStarted() func(failed bool) {
	stats.analyses.Add(1)
	stats.analyzing.Add(1)
	return func(failed bool) {
		stats.analyzing.Add(-1)
		if failed {
			stats.analysesF.Add(1)
		}
	}
}

// RecordRefresh counts a channel refresh
func RecordRefresh(failed bool) {
	stats.refreshes.Add(1)
	if failed {
		stats.refreshF.Add(1)
	}
}

// RecordAITransient counts a request that failed on a rate-limited or unavailable model provider
func RecordAITransient() {
	stats.transient.Add(1)
}

func GetMetrics() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	resp := make(map[string]uint64, 4)
	for class := 1; class < len(stats.byClass); class++ {
		if n := stats.byClass[class].Load(); n > 0 {
			resp[strconv.Itoa(class)+"xx"] = n
		}
	}
	return Snapshot{
		InFlight:        stats.inFlight.Load(),
		Responses:       resp,
		Analyses:        stats.analyses.Load(),
		AnalysesRunning: stats.analyzing.Load(),
		AnalysesFailed:  stats.analysesF.Load(),
		Refreshes:       stats.refreshes.Load(),
		RefreshesFailed: stats.refreshF.Load(),
		AITransient:     stats.transient.Load(),
		UptimeSeconds:   time.Since(stats.started).Seconds(),
		HeapBytes:       m.HeapAlloc,
		Goroutines:      runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tallies responses by status class
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats.inFlight.Add(1)
		defer stats.inFlight.Add(-1)

		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		if class := wrapped.statusCode / 100; class > 0 && class < len(stats.byClass) {
			stats.byClass[class].Add(1)
		}
	})
}

// MetricsHandler GET /api/metrics
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
