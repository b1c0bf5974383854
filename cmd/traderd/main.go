package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"meanrev-traderv1/config"
	"meanrev-traderv1/internal/execution"
	"meanrev-traderv1/internal/logger"
	"meanrev-traderv1/internal/marketdata/agg"
	"meanrev-traderv1/internal/marketdata/bus"
	"meanrev-traderv1/internal/metrics"
	"meanrev-traderv1/internal/model"
	"meanrev-traderv1/internal/notification"
	"meanrev-traderv1/internal/risk"
	"meanrev-traderv1/internal/session"
	"meanrev-traderv1/internal/strategy"
	"meanrev-traderv1/internal/stream"
	redisstore "meanrev-traderv1/internal/store/redis"
	sqlitestore "meanrev-traderv1/internal/store/sqlite"
	"meanrev-traderv1/pkg/ironbeam"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	logger.Init("traderd", slog.LevelInfo)
	log.Println("[traderd] starting...")

	// ---- Load config from env ----
	cfg := config.Load()

	cutover, err := session.Parse(cfg.SessionCutover, cfg.SessionTZ)
	if err != nil {
		log.Fatalf("[traderd] session cutover: %v", err)
	}

	// ---- Setup metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Setup context for graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- Notification hub ----
	sinks := []notification.Notifier{notification.NewLogNotifier()}
	if cfg.AlertWebhook != "" {
		sinks = append(sinks, notification.NewWebhookNotifier(cfg.AlertWebhook))
	}
	if cfg.TelegramToken != "" && cfg.TelegramChat != "" {
		sinks = append(sinks, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat))
	}
	hub := notification.NewHub(sinks...)
	go hub.Run(ctx)

	// ---- Broker session (fatal on failure: no token, no stream) ----
	ib := ironbeam.New(ironbeam.Config{BaseURL: cfg.BrokerBaseURL, AccountID: cfg.AccountID})
	if err := ib.Authenticate(ctx, cfg.BrokerUsername, cfg.BrokerAPIKey); err != nil {
		log.Fatalf("[traderd] broker auth failed: %v", err)
	}
	log.Println("[traderd] broker session ready")
	hub.Publish(notification.Alert{
		Level:   notification.AlertInfo,
		Title:   "Session started",
		Message: "broker authenticated, starting market data stream for " + cfg.Symbol,
	})

	// ---- Execution client: live broker or paper simulator ----
	var execClient model.ExecutionClient = ib
	var paper *execution.PaperClient
	if cfg.PaperMode {
		paper = execution.NewPaperClient(cfg.PaperEquity)
		execClient = paper
		log.Printf("[traderd] *** PAPER MODE — simulated fills, starting equity %.2f ***", cfg.PaperEquity)
	}

	// ---- Order journal ----
	os.MkdirAll("data", 0o755)
	journal, err := execution.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[traderd] order journal init failed: %v", err)
	}
	defer journal.Close()

	dispatcher := execution.NewDispatcher(execClient, cfg.Symbol, journal)
	dispatcher.OnOrderPlaced = func(d model.Decision) {
		prom.OrdersTotal.WithLabelValues("placed").Inc()
	}
	dispatcher.OnOrderError = func(d model.Decision) {
		prom.OrdersTotal.WithLabelValues("failed").Inc()
	}

	// ---- Strategy + risk guard ----
	strat := strategy.NewMeanReversion(cfg.Lookback, cfg.ThresholdFactor, cfg.OrderQty)
	guard := risk.NewGuard(execClient, strat, risk.Limits{
		EquityFloor:  cfg.EquityFloor,
		ProfitTarget: cfg.ProfitTarget,
		StopLoss:     cfg.StopLoss,
	}, cutover)
	guard.OnPause = func(equity float64) {
		prom.TradingPaused.Set(1)
		health.SetTradingPaused(true)
		hub.Publish(notification.TradingPausedAlert(equity, cfg.EquityFloor))
	}
	guard.OnResume = func(equity float64) {
		prom.TradingPaused.Set(0)
		health.SetTradingPaused(false)
		hub.Publish(notification.TradingResumedAlert(equity, cfg.EquityFloor))
	}
	guard.OnForcedExit = func(pos model.PositionState, d model.Decision) {
		reason := "stop_loss"
		if pos.UnrealizedPnL >= cfg.ProfitTarget {
			reason = "profit_target"
		}
		prom.ForcedExitsTotal.WithLabelValues(reason).Inc()
		hub.Publish(notification.ForcedExitAlert(strings.ReplaceAll(reason, "_", " "), pos.UnrealizedPnL, int(pos.Quantity)))
	}
	guard.OnCutover = func() {
		hub.Publish(notification.SessionCutoverAlert())
	}

	// ---- Pipeline channels ----
	rawTickCh := make(chan model.Tick, 10000)
	tickCh := make(chan model.Tick, 10000)
	barCh := make(chan model.Bar, 256)
	balanceCh := make(chan stream.BalanceUpdate, 8)

	// ---- SQLite bar archive (off hot path) ----
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath, Symbol: cfg.Symbol})
	if err != nil {
		log.Fatalf("[traderd] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)
	log.Println("[traderd] sqlite bar archive ready")

	// ---- Redis bar publisher (optional) ----
	var redisWriter *redisstore.Writer
	if cfg.RedisAddr == "" {
		log.Println("[traderd] redis disabled (REDIS_ADDR not set)")
		health.SetRedisConnected(false)
	} else {
		redisWriter, err = redisstore.New(redisstore.WriterConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Symbol:   cfg.Symbol,
		})
		if err != nil {
			log.Printf("[traderd] WARNING: redis init failed: %v (continuing without redis)", err)
			health.SetRedisConnected(false)
			redisWriter = nil
		} else {
			redisWriter.OnBreakerTrip = func() { prom.RedisBreakerTrips.Inc() }
			health.SetRedisConnected(true)
			log.Println("[traderd] redis bar publisher ready")
		}
	}

	// ---- Periodic liveness checks ----
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Fan-out: decision loop + SQLite + Redis ----
	fanout := bus.New(256)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}
	decisionCh := fanout.Subscribe()
	sqliteBarCh := fanout.Subscribe()
	var redisBarCh <-chan model.Bar
	if redisWriter != nil {
		redisBarCh = fanout.Subscribe()
	}
	go fanout.Run(ctx, barCh)

	startSink := func(w model.BarWriter, ch <-chan model.Bar) {
		go w.Run(ctx, ch)
	}
	startSink(sqlWriter, sqliteBarCh)
	if redisWriter != nil && redisBarCh != nil {
		startSink(redisWriter, redisBarCh)
	}

	// ---- Market data stream ----
	streamClient := stream.New(ib, cfg.Symbol)
	var reconnects int
	streamClient.OnReconnect = func() {
		reconnects++
		prom.WSReconnects.Inc()
		hub.Publish(notification.StreamReconnectAlert(reconnects, "transport closed"))
	}
	streamClient.OnDroppedTick = func() { prom.DroppedTicks.Inc() }
	go streamClient.Run(ctx, rawTickCh, balanceCh)

	// Tick tap: counts and timestamps every tick on its way to the aggregator.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case tick, ok := <-rawTickCh:
				if !ok {
					return
				}
				prom.TicksTotal.Inc()
				health.SetLastTickTime(time.Now())
				select {
				case tickCh <- tick:
				default:
					prom.DroppedTicks.Inc()
				}
			}
		}
	}()

	// ---- 1s bar aggregator ----
	aggregator := agg.New(agg.Config{
		Interval:  time.Duration(cfg.BarIntervalSec) * time.Second,
		TradeOnly: cfg.TradeOnly,
	})
	aggregator.OnBar = func() { prom.BarsTotal.Inc() }
	aggregator.OnGapBar = func() { prom.GapBarsTotal.Inc() }
	aggregator.OnDroppedBar = func() { prom.DroppedBars.Inc() }
	go aggregator.Run(ctx, tickCh, barCh)

	// ---- Gauges sampler ----
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				state := streamClient.State()
				prom.WSState.Set(float64(state))
				health.SetWSConnected(state == stream.StateStreaming)
				prom.WindowFill.Set(float64(strat.WindowFill()))
				if redisWriter != nil {
					prom.RedisBreakerState.Set(float64(redisWriter.BreakerState()))
				}
				for i, s := range fanout.ChannelStats() {
					if s.Cap > 0 {
						pct := float64(s.Len) / float64(s.Cap) * 100
						prom.ChannelSaturationPct.WithLabelValues("fanout_" + strconv.Itoa(i)).Set(pct)
					}
				}
			}
		}
	}()

	// ---- Decision loop: one evaluation per completed bar ----
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case bar, ok := <-decisionCh:
				if !ok {
					return
				}

				// Latest stream-pushed balance, if any, feeds the guard's
				// poll fallback.
				for drained := false; !drained; {
					select {
					case b := <-balanceCh:
						guard.ObserveEquity(b.Equity)
					default:
						drained = true
					}
				}

				if paper != nil {
					paper.MarkPrice(bar.Close)
				}

				decision := guard.Evaluate(ctx, bar)
				prom.DecisionsTotal.WithLabelValues(decisionLabel(decision.Kind)).Inc()
				prom.AccountEquity.Set(guard.LastEquity())
				health.SetPositionOpen(guard.PositionOpen())

				if decision.Actionable() {
					start := time.Now()
					dispatcher.Dispatch(ctx, decision)
					prom.OrderLatency.Observe(time.Since(start).Seconds())
				}
			}
		}
	}()

	mode := "LIVE"
	if cfg.PaperMode {
		mode = "PAPER"
	}
	log.Printf("[traderd] pipeline ready (%s): [stream %s] -> [1s bars] -> [mean reversion lookback=%d factor=%g] -> [risk floor=%.0f pt=%.0f sl=%.0f] -> [orders qty=%d]",
		mode, cfg.Symbol, cfg.Lookback, cfg.ThresholdFactor, cfg.EquityFloor, cfg.ProfitTarget, cfg.StopLoss, cfg.OrderQty)
	if cutover.Enabled() {
		log.Printf("[traderd] session cutover at %s (%v remaining)",
			cutover.Deadline().Format(time.RFC3339), cutover.Remaining(time.Now()).Truncate(time.Second))
	}

	// ---- Wait for shutdown signal ----
	<-sigCh
	log.Println("[traderd] shutdown signal received, cleaning up...")
	cancel()

	// Give goroutines time to flush buffers
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if redisWriter != nil {
		redisWriter.Close()
	}

	log.Println("[traderd] shutdown complete.")
}

func decisionLabel(k model.DecisionKind) string {
	switch k {
	case model.Enter:
		return "enter"
	case model.Exit:
		return "exit"
	default:
		return "no_action"
	}
}
