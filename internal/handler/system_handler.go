package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/response"
)

const metricsInterval = 7 * time.Second

// QueueLengther is the slice of the Redis client the metrics need.
type QueueLengther interface {
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// PoolStatter reports database pool usage. *pgxpool.Pool satisfies it.
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// SystemHandler reports process, database pool and result-log queue health.
type SystemHandler struct {
	queue     QueueLengther
	pool      PoolStatter
	startTime time.Time
	interval  time.Duration
	log       zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. pool may be nil.
func NewSystemHandler(queue QueueLengther, pool PoolStatter, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		queue:     queue,
		pool:      pool,
		startTime: time.Now(),
		interval:  metricsInterval,
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// Go Application
	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	StackInuse uint64 `json:"stack_inuse"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	// PostgreSQL pool
	DBTotalConns    int32 `json:"db_total_conns"`
	DBAcquiredConns int32 `json:"db_acquired_conns"`
	DBIdleConns     int32 `json:"db_idle_conns"`

	// Entries waiting for the result log writer; -1 when Redis is unreachable.
	ResultLogQueue int64 `json:"result_log_queue"`
}

// Metrics godoc
// GET /admin/system/metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

// MetricsStream godoc
// GET /admin/system/metrics/stream
// Sends a "metrics" server-sent event immediately and then periodically.
func (h *SystemHandler) MetricsStream(c *gin.Context) {
	ctx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Status(http.StatusOK)

	h.log.Info().Msg("Admin connected to system metrics stream")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.writeEvent(c, h.collect(ctx))
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Admin disconnected from system metrics stream")
			return
		case <-ticker.C:
			h.writeEvent(c, h.collect(ctx))
		}
	}
}

func (h *SystemHandler) writeEvent(c *gin.Context, m systemMetrics) {
	c.SSEvent("metrics", m)
	c.Writer.Flush()
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := systemMetrics{
		Timestamp:  time.Now().Unix(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.HeapSys,
		StackInuse: ms.StackInuse,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
	}

	if h.pool != nil {
		st := h.pool.Stat()
		m.DBTotalConns = st.TotalConns()
		m.DBAcquiredConns = st.AcquiredConns()
		m.DBIdleConns = st.IdleConns()
	}

	n, err := h.queue.LLen(ctx, config.WorkerKey.PersistResultLogQueue).Result()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to read result log queue length")
		n = -1
	}
	m.ResultLogQueue = n
	return m
}
