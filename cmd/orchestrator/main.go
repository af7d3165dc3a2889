// cmd/orchestrator/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"reviewdesk/internal/archive"
	"reviewdesk/internal/classifier"
	"reviewdesk/internal/common/aws"
	"reviewdesk/internal/common/config"
	"reviewdesk/internal/common/database"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/common/observability"
	"reviewdesk/internal/composer"
	"reviewdesk/internal/llm"
	"reviewdesk/internal/models"
	"reviewdesk/internal/notify"
	"reviewdesk/internal/orchestrator"
	"reviewdesk/internal/platform"
	"reviewdesk/internal/store"
	"reviewdesk/internal/validator"
	"reviewdesk/internal/workflow"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	var (
		configPath string
		inputDir   string
		targets    []string
	)

	root := &cobra.Command{
		Use:   "reviewdesk",
		Short: "Review reply orchestration engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: config/config.yaml)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process review batches for the given stores",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, inputDir, targets)
		},
	}
	runCmd.Flags().StringVar(&inputDir, "input", "./reviews", "directory holding crawler review exports")
	runCmd.Flags().StringSliceVar(&targets, "store", nil, "store to process as storeId:platform (repeatable)")
	runCmd.MarkFlagRequired("store")

	serveMetricsCmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve only the Prometheus metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveMetrics(configPath)
		},
	}

	root.AddCommand(runCmd, serveMetricsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveMetrics(configPath string) error {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	zapLog.Info("Metrics server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func run(configPath, inputDir string, rawTargets []string) error {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting reply orchestrator...")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	obs := observability.New("reply-orchestrator")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, err := parseTargets(rawTargets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("at least one --store target is required")
	}

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		return err
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		return err
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var archiver archive.Archiver = archive.NopArchiver{}
	if cfg.Archive.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			return err
		}
		archiver = archive.NewElasticArchive(esClient, cfg.Archive.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init language-model backend ---
	var provider llm.Provider
	if cfg.LLM.Provider == "stub" {
		provider = &llm.StubProvider{Response: "소중한 의견 감사합니다. 더 나은 모습으로 보답하겠습니다."}
	} else {
		provider, err = llm.NewGeminiProvider(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return fmt.Errorf("llm backend init failed: %w", err)
		}
	}
	zapLog.Info("Language-model backend initialized", zap.String("provider", provider.Name()))

	// --- Init notifications ---
	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Notifications.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			return fmt.Errorf("sns client init failed: %w", err)
		}
		var sesClient *aws.SESClient
		if cfg.Notifications.Email.Enabled {
			sesClient, err = aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
			if err != nil {
				return fmt.Errorf("ses client init failed: %w", err)
			}
		}
		notifier = notify.NewAWSNotifier(snsClient, sesClient, cfg.Notifications, log)
		zapLog.Info("Risk notifications enabled")
	}

	// --- Metrics endpoint ---
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			zapLog.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	// --- Assemble the pipeline ---
	llmTimeout := config.GetDuration(cfg.LLM.Timeout)
	profiles := store.NewProfileCache(redis, config.GetDuration(cfg.Database.Redis.ProfileTTL*1000), log)
	records := store.NewReplyRecordStore(pg, log)
	wf := workflow.New(records, cfg.Pipeline.MaxRetries, log)
	cls := classifier.New(provider, llmTimeout, log)
	cmp := composer.New(provider, llmTimeout, cfg.LLM.Temperature,
		composer.NewVariation(time.Now().UnixNano()), log)
	val := validator.New(log)

	summaries := make([]*models.BatchSummary, 0, len(targets))
	var failures map[orchestrator.Target]error

	byPlatform := groupByPlatform(targets)
	for p, ts := range byPlatform {
		crawler := platform.NewFileCrawler(inputDir, p)
		batch := orchestrator.NewBatch(crawler, profiles, cls, cmp, val, wf,
			notifier, archiver, obs, cfg.Pipeline, log)
		runner := orchestrator.NewRunner(batch, cfg.Pipeline.MaxConcurrentStores, log)

		got, failed := runner.RunAll(ctx, ts)
		summaries = append(summaries, got...)
		if len(failed) > 0 {
			if failures == nil {
				failures = make(map[orchestrator.Target]error)
			}
			for t, e := range failed {
				failures[t] = e
			}
		}
	}

	for _, s := range summaries {
		out, _ := json.Marshal(s)
		fmt.Println(string(out))
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d store batch(es) failed", len(failures))
	}
	zapLog.Info("All batches completed")
	return nil
}

// parseTargets splits repeatable storeId:platform flags.
func parseTargets(raw []string) ([]orchestrator.Target, error) {
	targets := make([]orchestrator.Target, 0, len(raw))
	for _, r := range raw {
		parts := strings.SplitN(r, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid --store value %q, expected storeId:platform", r)
		}
		p, err := models.ParsePlatform(parts[1])
		if err != nil {
			return nil, err
		}
		targets = append(targets, orchestrator.Target{StoreID: parts[0], Platform: p})
	}
	return targets, nil
}

func groupByPlatform(targets []orchestrator.Target) map[models.Platform][]orchestrator.Target {
	grouped := make(map[models.Platform][]orchestrator.Target)
	for _, t := range targets {
		grouped[t.Platform] = append(grouped[t.Platform], t)
	}
	return grouped
}
