package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading pipeline.
type Metrics struct {
	// Ingestion
	TicksTotal   prometheus.Counter
	WSReconnects prometheus.Counter
	DroppedTicks prometheus.Counter
	WSState      prometheus.Gauge // 0=disconnected, 1=connecting, 2=subscribed, 3=streaming

	// Aggregation
	BarsTotal    prometheus.Counter
	GapBarsTotal prometheus.Counter
	DroppedBars  prometheus.Counter

	// Fan-out backpressure
	FanoutDropsTotal     *prometheus.CounterVec // labels: subscriber
	ChannelSaturationPct *prometheus.GaugeVec   // labels: channel_name

	// Decision loop
	DecisionsTotal   *prometheus.CounterVec // labels: kind=no_action|enter|exit
	ForcedExitsTotal *prometheus.CounterVec // labels: reason=profit_target|stop_loss
	WindowFill       prometheus.Gauge       // closes held / lookback
	TradingPaused    prometheus.Gauge       // 0=active, 1=paused
	AccountEquity    prometheus.Gauge

	// Execution
	OrdersTotal  *prometheus.CounterVec // labels: status=placed|failed
	OrderLatency prometheus.Histogram

	// Redis publisher breaker
	RedisBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisBreakerTrips prometheus.Counter
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_ticks_total",
			Help: "Total ticks received from the market data stream",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		DroppedTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_dropped_ticks_total",
			Help: "Ticks dropped because the tick channel was full",
		}),
		WSState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traderd_ws_state",
			Help: "Stream connection state (0=disconnected, 1=connecting, 2=subscribed, 3=streaming)",
		}),

		BarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_bars_total",
			Help: "Total 1s bars emitted (including gap bars)",
		}),
		GapBarsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_gap_bars_total",
			Help: "Flat bars synthesized for intervals with no samples",
		}),
		DroppedBars: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_dropped_bars_total",
			Help: "Bars dropped because the bar channel was full",
		}),

		FanoutDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderd_fanout_drops_total",
			Help: "Bars dropped by the fan-out bus per subscriber",
		}, []string{"subscriber"}),
		ChannelSaturationPct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "traderd_channel_saturation_pct",
			Help: "Channel fill percentage (len/cap * 100)",
		}, []string{"channel_name"}),

		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderd_decisions_total",
			Help: "Decisions produced per bar (by kind)",
		}, []string{"kind"}),
		ForcedExitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderd_forced_exits_total",
			Help: "Positions force-closed by risk thresholds (by reason)",
		}, []string{"reason"}),
		WindowFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traderd_window_fill",
			Help: "Closes held in the lookback window",
		}),
		TradingPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traderd_trading_paused",
			Help: "Equity floor pause state (0=active, 1=paused)",
		}),
		AccountEquity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traderd_account_equity",
			Help: "Last known account equity",
		}),

		OrdersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traderd_orders_total",
			Help: "Orders dispatched to the broker (by status)",
		}, []string{"status"}),
		OrderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "traderd_order_latency_seconds",
			Help:    "Broker order placement latency",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),

		RedisBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traderd_redis_breaker_state",
			Help: "Redis publish breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traderd_redis_breaker_trips_total",
			Help: "Times the Redis publish breaker tripped open",
		}),
	}

	prometheus.MustRegister(
		m.TicksTotal,
		m.WSReconnects,
		m.DroppedTicks,
		m.WSState,
		m.BarsTotal,
		m.GapBarsTotal,
		m.DroppedBars,
		m.FanoutDropsTotal,
		m.ChannelSaturationPct,
		m.DecisionsTotal,
		m.ForcedExitsTotal,
		m.WindowFill,
		m.TradingPaused,
		m.AccountEquity,
		m.OrdersTotal,
		m.OrderLatency,
		m.RedisBreakerState,
		m.RedisBreakerTrips,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	WSConnected    bool      `json:"ws_connected"`
	LastTickTime   time.Time `json:"last_tick_time"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	TradingPaused  bool      `json:"trading_paused"`
	PositionOpen   bool      `json:"position_open"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

func (h *HealthStatus) SetWSConnected(v bool) {
	h.mu.Lock()
	h.WSConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickTime(t time.Time) {
	h.mu.Lock()
	h.LastTickTime = t
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetTradingPaused(v bool) {
	h.mu.Lock()
	h.TradingPaused = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetPositionOpen(v bool) {
	h.mu.Lock()
	h.PositionOpen = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if !h.WSConnected || !h.RedisConnected || !h.SQLiteOK {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if !h.WSConnected && !h.SQLiteOK {
		overallStatus = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickTime.IsZero() {
		tickAge = time.Since(h.LastTickTime).Round(time.Millisecond).String()
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		WSConnected     bool    `json:"ws_connected"`
		LastTickTime    string  `json:"last_tick_time"`
		TickAge         string  `json:"tick_age"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		TradingPaused   bool    `json:"trading_paused"`
		PositionOpen    bool    `json:"position_open"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		WSConnected:     h.WSConnected,
		LastTickTime:    h.LastTickTime.Format(time.RFC3339),
		TickAge:         tickAge,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		TradingPaused:   h.TradingPaused,
		PositionOpen:    h.PositionOpen,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
