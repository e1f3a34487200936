package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/config"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/engine"
	httpiface "github.com/Recursive-Llama/Lotus-Trader-sub009/internal/interfaces/http"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/learn"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence/postgres"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/persistence/redisrepo"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/regime"
	"github.com/Recursive-Llama/Lotus-Trader-sub009/internal/telemetry/metrics"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	var configPath string
	var postgresDSN string
	var redisAddr string
	var httpAddr string

	rootCmd := &cobra.Command{
		Use:     "trendcore",
		Short:   "Trend-state engine, momentum signature, and multi-timeframe learning core",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to engine config YAML (defaults to built-in coefficients if empty)")
	rootCmd.PersistentFlags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string for TradeSummaries/PatternStats/Lessons (disabled if empty)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address for the Override snapshot cache (disabled if empty)")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "http-addr", ":8080", "listen address for /metrics, /healthz, /overrides/{scopeKey}")

	var family, mcapBucket string
	var feedPath string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the per-instrument worker mesh against a bar feed",
		Long:  "Reads closed bars from --feed (or stdin) in CSV form and routes them through the per-instrument engine mesh, serving /metrics, /healthz, and /overrides/{scopeKey} until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), runOpts{
				configPath: configPath, postgresDSN: postgresDSN, redisAddr: redisAddr, httpAddr: httpAddr,
				family: family, mcapBucket: mcapBucket, feedPath: feedPath,
			})
		},
	}
	runCmd.Flags().StringVar(&family, "family", "default", "market family tag applied to every instrument on this feed")
	runCmd.Flags().StringVar(&mcapBucket, "mcap-bucket", "mid", "market-cap bucket tag applied to every instrument on this feed")
	runCmd.Flags().StringVar(&feedPath, "feed", "", "path to a CSV bar feed file; reads stdin if empty")

	var replayOut string
	replayCmd := &cobra.Command{
		Use:   "replay <bar-file>",
		Short: "Deterministically replay a recorded bar file through the engine",
		Long:  "Feeds every bar in the file through the Feature Builder, State Machine, Signature Engine, and Position Ledger in order, then prints a per-instrument self-test summary. No HTTP server, no persistence writes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args[0], configPath, family, mcapBucket, replayOut)
		},
	}
	replayCmd.Flags().StringVar(&family, "family", "default", "market family tag applied to every instrument in the replay")
	replayCmd.Flags().StringVar(&mcapBucket, "mcap-bucket", "mid", "market-cap bucket tag applied to every instrument in the replay")
	replayCmd.Flags().StringVar(&replayOut, "out", "", "write the per-instrument self-test summary as JSON to this path instead of stdout")

	lessonsCmd := &cobra.Command{
		Use:   "lessons",
		Short: "Dump current Lesson/Override snapshots from the durable store",
		Long:  "Connects to Postgres, loads every persisted Lesson, and prints each scope key's Lesson alongside its Override materialized at the current time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLessons(cmd.Context(), postgresDSN)
		},
	}

	rootCmd.AddCommand(runCmd, replayCmd, lessonsCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

type runOpts struct {
	configPath, postgresDSN, redisAddr, httpAddr string
	family, mcapBucket, feedPath                 string
}

// engineDeps holds every collaborator shared across Instruments in one Mesh
// (spec §5: the Aggregator, Override Store, and regime Cache are the only
// cross-instrument shared state).
type engineDeps struct {
	cfg         *config.EngineConfig
	aggregator  *learn.Aggregator
	overrides   *learn.Store
	regimeCache *regime.Cache
	repo          *persistence.Repository
	health        httpiface.HealthChecker
	overrideCache *redisrepo.OverrideCache
	metrics       *metrics.Registry
}

func buildEngineDeps(ctx context.Context, configPath, postgresDSN, redisAddr string) (*engineDeps, func(), error) {
	cfg := config.DefaultEngineConfig()
	if configPath != "" {
		loaded, err := config.LoadEngineConfig(configPath)
		if err != nil {
			return nil, nil, fmt.Errorf("load engine config: %w", err)
		}
		if problems := loaded.Validate(); len(problems) > 0 {
			return nil, nil, fmt.Errorf("engine config invalid: %v", problems)
		}
		cfg = loaded
	}

	metrics.InitializeMetrics()

	deps := &engineDeps{
		cfg:         cfg,
		aggregator:  learn.NewAggregator(nil, cfg.BreakerConfig()),
		overrides:   learn.NewStore(learn.DefaultHalfLife),
		regimeCache: regime.NewCache(),
		metrics:     metrics.DefaultRegistry,
	}
	deps.aggregator.SetBraidPromotionHook(deps.metrics.RecordBraidPromotion)

	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if postgresDSN != "" {
		db, err := sqlx.ConnectContext(ctx, "postgres", postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		deps.repo = &persistence.Repository{
			Trades:   postgres.NewTradeSummaryRepo(db),
			Patterns: postgres.NewPatternRepo(db),
			Lessons:  postgres.NewLessonRepo(db),
		}
		deps.health = postgres.NewHealthCheck(db)
	}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		closers = append(closers, func() { _ = client.Close() })
		deps.overrideCache = redisrepo.NewOverrideCache(client, learn.DefaultHalfLife)
	}

	return deps, closeAll, nil
}

func (d *engineDeps) instrumentFactory(family, mcapBucket string) func(instrumentID string) *engine.Instrument {
	return func(instrumentID string) *engine.Instrument {
		inst := engine.NewInstrument(instrumentID, family, mcapBucket,
			d.cfg.SignatureConfig(), d.cfg.AppetiteConfig(), d.cfg.LessonConfig(),
			d.aggregator, d.overrides, d.regimeCache)
		if d.overrideCache != nil {
			inst.SetOverrideCache(d.overrideCache)
		}
		if d.repo != nil {
			inst.SetRepository(d.repo)
		}
		inst.SetMetrics(d.metrics)
		return inst
	}
}

// runEngine implements the `run` subcommand: a long-running worker mesh
// serving the HTTP read surface until the process is interrupted.
func runEngine(ctx context.Context, opts runOpts) error {
	deps, closeAll, err := buildEngineDeps(ctx, opts.configPath, opts.postgresDSN, opts.redisAddr)
	if err != nil {
		return err
	}
	defer closeAll()

	mesh := engine.NewMesh(deps.instrumentFactory(opts.family, opts.mcapBucket), 64)
	defer mesh.Close()

	go runSelfTestLoop(ctx, mesh, deps)

	server := httpiface.NewServer(deps.overrides, deps.health)
	httpSrv := &http.Server{Addr: opts.httpAddr, Handler: server.Handler()}
	go func() {
		log.Info().Str("addr", opts.httpAddr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	feedReader := os.Stdin
	if opts.feedPath != "" {
		f, err := os.Open(opts.feedPath)
		if err != nil {
			return fmt.Errorf("open feed %s: %w", opts.feedPath, err)
		}
		defer f.Close()
		feedReader = f
	}

	bars, err := readBarFeed(feedReader)
	if err != nil {
		return err
	}
	log.Info().Int("bars", len(bars)).Msg("bar feed loaded")

	regimeKey := opts.family + "|" + opts.mcapBucket
	for _, bar := range bars {
		mesh.Submit(ctx, bar, regimeKey, bar.TS)
	}

	log.Info().Msg("bar feed exhausted; serving HTTP until interrupted")
	<-ctx.Done()
	return nil
}

// runSelfTestLoop periodically sweeps every live Instrument's SelfTest
// invariants (I3, I5) and the Aggregator's degraded-key count, surfacing both as
// Prometheus metrics (SUPPLEMENTED FEATURES: a scheduled analogue of the
// teacher's offline selftest, run continuously instead of on demand).
func runSelfTestLoop(ctx context.Context, mesh *engine.Mesh, deps *engineDeps) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, inst := range mesh.Instruments() {
				for _, v := range inst.SelfTest() {
					invariant, _, found := strings.Cut(v, ":")
					if !found {
						invariant = v
					}
					deps.metrics.RecordInvariantViolation(invariant)
				}
			}
			deps.metrics.SetAggregatorDegraded(deps.aggregator.DegradedCount())
		}
	}
}

// runReplay implements the `replay` subcommand: deterministic, offline,
// no HTTP server, no persistence — a pure function of the bar file.
func runReplay(barFile, configPath, family, mcapBucket, out string) error {
	cfg := config.DefaultEngineConfig()
	if configPath != "" {
		loaded, err := config.LoadEngineConfig(configPath)
		if err != nil {
			return fmt.Errorf("load engine config: %w", err)
		}
		cfg = loaded
	}

	f, err := os.Open(barFile)
	if err != nil {
		return fmt.Errorf("open bar file: %w", err)
	}
	defer f.Close()

	bars, err := readBarFeed(f)
	if err != nil {
		return err
	}

	aggregator := learn.NewAggregator(nil, cfg.BreakerConfig())
	overrides := learn.NewStore(learn.DefaultHalfLife)
	regimeCache := regime.NewCache()

	instruments := make(map[string]*engine.Instrument)
	ctx := context.Background()
	regimeKey := family + "|" + mcapBucket

	for _, bar := range bars {
		inst, ok := instruments[bar.InstrumentID]
		if !ok {
			inst = engine.NewInstrument(bar.InstrumentID, family, mcapBucket,
				cfg.SignatureConfig(), cfg.AppetiteConfig(), cfg.LessonConfig(),
				aggregator, overrides, regimeCache)
			instruments[bar.InstrumentID] = inst
		}
		if _, err := inst.ProcessBar(ctx, bar, regimeKey, bar.TS); err != nil {
			log.Warn().Err(err).Str("instrument", bar.InstrumentID).Msg("replay: bar processing error")
		}
	}

	type instrumentReport struct {
		InstrumentID string   `json:"instrument_id"`
		Violations   []string `json:"violations"`
	}
	var report []instrumentReport
	for id, inst := range instruments {
		report = append(report, instrumentReport{InstrumentID: id, Violations: inst.SelfTest()})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if out != "" {
		outFile, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create out file: %w", err)
		}
		defer outFile.Close()
		enc = json.NewEncoder(outFile)
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

// runLessons implements the `lessons` subcommand: a read-only dump of every
// persisted Lesson, alongside its Override materialized at time of
// invocation.
func runLessons(ctx context.Context, postgresDSN string) error {
	if postgresDSN == "" {
		return fmt.Errorf("lessons requires --postgres-dsn")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", postgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	repo := postgres.NewLessonRepo(db)
	lessons, err := repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list lessons: %w", err)
	}

	now := time.Now()
	type row struct {
		ScopeKey string         `json:"scope_key"`
		Lesson   learn.Lesson   `json:"lesson"`
		Override learn.Override `json:"override"`
	}
	rows := make([]row, 0, len(lessons))
	for _, l := range lessons {
		rows = append(rows, row{
			ScopeKey: string(l.ScopeKey),
			Lesson:   l,
			Override: learn.Materialize(l, learn.DefaultHalfLife, now),
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}
