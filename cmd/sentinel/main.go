package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FlowSentinel/internal/collector"
	"FlowSentinel/internal/config"
	"FlowSentinel/internal/ledger"
	"FlowSentinel/internal/logging"
	"FlowSentinel/internal/metrics"
	"FlowSentinel/internal/notifier"
	"FlowSentinel/internal/recorder"
	"FlowSentinel/internal/richlist"
	"FlowSentinel/internal/scheduler"
	"FlowSentinel/internal/server"
	"FlowSentinel/internal/service"
	"FlowSentinel/internal/social"
	"FlowSentinel/internal/xrpl"

	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Dir: cfg.Log.Dir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatalw("invalid configuration", "path", cfgPath, "error", err)
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatalw("sentinel stopped with error", "error", err)
	}
	logger.Info("FlowSentinel stopped")
}

func run(cfg *config.Config, logger *zap.SugaredLogger) error {
	logger.Infow("FlowSentinel starting", "addr", cfg.Server.Addr, "provider", cfg.DataSource.Provider)
	disabled := cfg.Disabled()
	for feature, setting := range disabled {
		logger.Warnw("feature disabled, configuration missing", "feature", feature, "setting", setting)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stopMetrics := make(chan struct{})
	defer close(stopMetrics)
	metrics.StartSystemCollection(15*time.Second, stopMetrics)

	fetcher := newSeriesFetcher(cfg, logger)
	logger.Infow("data source ready", "source", fetcher.Name())

	opts := []service.Option{
		service.WithComputeTimeout(cfg.Cache.ComputeTimeout),
		service.WithProbeSymbol(cfg.DataSource.ProbeSymbol),
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	if _, off := disabled["burn"]; !off {
		calc, cs, err := newBurnCalculator(cfg, logger)
		if err != nil {
			return err
		}
		closers = append(closers, cs...)
		opts = append(opts, service.WithBurn(calc))
	}
	if _, off := disabled["richlist"]; !off {
		rich := richlist.NewClient(cfg.RichList.URL, cfg.RichList.APIKey, cfg.Upstream.Timeout)
		opts = append(opts, service.WithRichList(rich, cfg.RichList.Limit, cfg.WhaleThreshold()))
	}
	if _, off := disabled["social"]; !off {
		soc := social.NewClient(cfg.Social.BaseURL, cfg.Social.APIKey, cfg.Upstream.Timeout)
		opts = append(opts, service.WithSocial(soc, cfg.Social.Topic))
	}

	svc := service.New(cfg.Groups, fetcher, service.TTLs{
		Snapshot: cfg.Cache.SnapshotTTL,
		History:  cfg.Cache.HistoryTTL,
		Burn:     cfg.Cache.BurnTTL,
		RichList: cfg.Cache.RichListTTL,
		Social:   cfg.Cache.SocialTTL,
	}, logger.Named("service"), opts...)
	defer svc.Close()

	rec := newRecorder(ctx, cfg, logger)
	closers = append(closers, rec)

	var (
		tn   *notifier.TelegramNotifier
		sink scheduler.Notifier
	)
	if _, off := disabled["telegram"]; !off {
		tn = notifier.NewTelegramNotifier("", cfg.Telegram.BotToken, cfg.Telegram.ChatID,
			cfg.Upstream.Proxy, cfg.Upstream.Timeout+10*time.Second, logger.Named("telegram"))
		sink = tn
	}

	periods := make([]string, 0, len(cfg.XRPL.Periods))
	for _, p := range cfg.XRPL.Periods {
		periods = append(periods, p.Name)
	}

	sched := scheduler.New(ctx, svc, rec, sink, periods, logger.Named("scheduler"))
	if err := sched.Register(scheduler.Crons{
		Snapshot: cfg.Schedule.SnapshotCron,
		Burn:     cfg.Schedule.BurnCron,
		RichList: cfg.Schedule.RichListCron,
		Digest:   cfg.Schedule.DigestCron,
	}); err != nil {
		return fmt.Errorf("register jobs: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	if os.Getenv("RUN_ON_START") == "true" {
		logger.Info("RUN_ON_START enabled, warming caches now")
		go sched.WarmUp()
	}

	handler := server.NewHandler(svc, cfg.Server.AdminToken, logger.Named("http"))
	return server.New(cfg.Server.Addr, handler, logger.Named("http")).Run(ctx, 15*time.Second)
}

func newSeriesFetcher(cfg *config.Config, logger *zap.SugaredLogger) collector.SeriesFetcher {
	ds := cfg.DataSource
	switch ds.Provider {
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, cfg.Upstream.Proxy, cfg.Upstream.Timeout)
	case "mock":
		return &collector.MockFetcher{Price: 25}
	default:
		return collector.NewYahooFetcher(ds.BaseURL, cfg.Upstream.Proxy, cfg.Upstream.Timeout, ds.Concurrency, logger.Named("yahoo"))
	}
}

func newBurnCalculator(cfg *config.Config, logger *zap.SugaredLogger) (*ledger.BurnCalculator, []io.Closer, error) {
	var (
		backends []ledger.SnapshotFetcher
		closers  []io.Closer
	)
	for _, endpoint := range cfg.XRPL.Endpoints {
		f, err := xrpl.NewClient(endpoint, cfg.Upstream.Timeout, logger.Named("xrpl"))
		if err != nil {
			return nil, closers, err
		}
		if c, ok := f.(io.Closer); ok {
			closers = append(closers, c)
		}
		backends = append(backends, f)
	}

	failover := ledger.NewFailover(ledger.DefaultBreakerSettings, logger.Named("ledger"), backends...)
	calc := ledger.NewBurnCalculator(ledger.BurnConfig{
		Periods:       cfg.XRPL.Periods,
		FloorInterval: cfg.XRPL.FloorInterval,
		Margin:        cfg.XRPL.Margin,
		MinIndex:      cfg.XRPL.MinIndex,
	}, failover, logger.Named("burn"))
	logger.Infow("burn report enabled", "backends", len(backends))
	return calc, closers, nil
}

// newRecorder opens the configured archive, falling back to the noop
// recorder if it cannot be opened.
func newRecorder(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) recorder.Recorder {
	rc := cfg.Recorder
	var (
		rec recorder.Recorder
		err error
	)
	switch rc.Driver {
	case "sqlite":
		rec, err = recorder.NewSQLiteRecorder(rc.SQLitePath, logger.Named("recorder"))
	case "clickhouse":
		rec, err = recorder.NewClickHouseRecorder(ctx, recorder.ClickHouseOptions{
			Addr:     rc.ClickHouse.Addr,
			Database: rc.ClickHouse.Database,
			Username: rc.ClickHouse.Username,
			Password: rc.ClickHouse.Password,
		}, logger.Named("recorder"))
	default:
		return recorder.NewNoopRecorder()
	}
	if err != nil {
		logger.Warnw("recorder unavailable, snapshots will not be archived", "driver", rc.Driver, "error", err)
		return recorder.NewNoopRecorder()
	}
	return rec
}
