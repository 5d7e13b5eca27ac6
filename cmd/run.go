package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/ai"
	"github.com/spigell/scholarship-hunter/internal/ai/gemini"
	"github.com/spigell/scholarship-hunter/internal/fetch"
	"github.com/spigell/scholarship-hunter/internal/filtering"
	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/logger"
	"github.com/spigell/scholarship-hunter/internal/metrics"
	"github.com/spigell/scholarship-hunter/internal/runner"
	"github.com/spigell/scholarship-hunter/internal/search"
	"github.com/spigell/scholarship-hunter/internal/secrets"
	"github.com/spigell/scholarship-hunter/internal/store"
	"github.com/spigell/scholarship-hunter/internal/store/sheets"
	"github.com/spigell/scholarship-hunter/internal/store/sqlite"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Search, classify and save new scholarships once",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("confirm", "c", false, "ask for confirmation before saving every scholarship")
	runCmd.Flags().StringP("exclude-file", "e", "", "file with urls to skip, one per line. Default is unset.")
	runCmd.Flags().String("report-file", "", "write a YAML report of the run to this file")

	viper.BindPFlag("filters.exclude-file", runCmd.Flags().Lookup("exclude-file"))
	viper.BindPFlag("run.report-file", runCmd.Flags().Lookup("report-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := getConfig()
	if err != nil {
		log.Fatalf("getting a config: %s", err)
	}

	logger, err := newLogger(config)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	logger.Info("starting the scholarship-hunter", zap.String("version", version))

	// secrets are tagged json:"-" so the dump is safe
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if err := config.validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Errors("problems", multierr.Errors(err)))
	}

	searcher, err := newSearcher(config, logger)
	if err != nil {
		logger.Fatal("building searcher", zap.Error(err))
	}

	classifier, err := newClassifier(ctx, &config.AI.Gemini, logger)
	if err != nil {
		logger.Fatal("building classifier", zap.Error(err),
			zap.String("hint", "set GEMINI_API_KEY or GEMINI_API_KEY_FILE"),
		)
	}

	st, closeStore, err := openStore(ctx, config, logger)
	if err != nil {
		logger.Fatal("opening the table store", zap.Error(err))
	}
	defer closeStore()

	similarity, _ := ingest.SimilarityByName(config.Dedup.Similarity)

	var approver ingest.Approver = ingest.AutoApprove{}
	if confirm, _ := cmd.Flags().GetBool("confirm"); confirm {
		approver = newPromptApprover(logger)
	}

	filters := filtering.Default()
	for _, status := range filtering.Describe(filters) {
		logger.Debug("filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
		)
	}

	recorder := metrics.NewRecorder(config.Metrics.PushgatewayURL, config.Metrics.Job)

	r := runner.New(runner.Config{
		Queries:      config.Search.Queries,
		MaxResults:   config.Search.MaxResults,
		CVPath:       config.CVPath,
		RequestDelay: config.Run.RequestDelay,
		Precheck:     config.Dedup.Precheck,
		ReportFile:   config.Run.ReportFile,
		Filters: filtering.Config{
			ExcludedDomains: config.Filters.ExcludedDomains,
			ExcludeFile:     config.Filters.ExcludeFile,
		},
		Ingest: ingest.Config{
			FuzzyThreshold: config.Dedup.FuzzyThreshold,
			MinMatchScore:  config.Dedup.MinMatchScore,
			Similarity:     similarity,
		},
	}, runner.Deps{
		Searcher: searcher,
		Fetcher: fetch.New(fetch.Config{
			Timeout:   config.Fetch.Timeout,
			MaxChars:  config.Fetch.MaxChars,
			Mode:      config.Fetch.Mode,
			UserAgent: config.Fetch.UserAgent,
		}, logger),
		Classifier: classifier,
		Store:      st,
		Approver:   approver,
		Filters:    filters,
		Metrics:    recorder,
		Logger:     logger,
	})

	summary, err := r.Run(ctx)
	if errors.Is(err, ingest.ErrStopped) {
		logger.Info("stopped by operator", zap.Int("saved", summary.Accepted()), zap.Int("processed", summary.Processed))
		return
	}
	if err != nil {
		if errors.Is(err, runner.ErrSetup) {
			logger.Fatal("run could not start", zap.Error(err))
		}
		logger.Fatal("run aborted", zap.Error(err))
	}

	logger.Info("done", zap.Int("saved", summary.Accepted()), zap.Int("processed", summary.Processed))
}

func newLogger(config *Config) (*zap.Logger, error) {
	return logger.New(logger.Options{
		JSON:       viper.GetBool("json"),
		Debug:      viper.GetBool("debug"),
		File:       config.Log.File,
		MaxSizeMB:  config.Log.MaxSizeMB,
		MaxBackups: config.Log.MaxBackups,
		MaxAgeDays: config.Log.MaxAgeDays,
	})
}

// validate collects every configuration problem of the run command.
func (c *Config) validate() error {
	var errs error

	if strings.TrimSpace(c.CVPath) == "" {
		errs = multierr.Append(errs, errors.New("cv-path is required (CV_PATH)"))
	}

	if len(c.Search.Queries) == 0 {
		errs = multierr.Append(errs, errors.New("search.queries must contain at least one query"))
	}

	switch strings.ToLower(strings.TrimSpace(c.Search.Provider)) {
	case "", "google":
		if strings.TrimSpace(c.Search.APIKey) == "" {
			errs = multierr.Append(errs, errors.New("search.api-key is required (GOOGLE_SEARCH_API_KEY)"))
		}
		if strings.TrimSpace(c.Search.EngineID) == "" {
			errs = multierr.Append(errs, errors.New("search.engine-id is required (GOOGLE_SEARCH_ENGINE_ID)"))
		}
	case "rss":
		if len(c.Search.RSS.Feeds) == 0 {
			errs = multierr.Append(errs, errors.New("search.rss.feeds is required for the rss provider"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unsupported search provider: %s", c.Search.Provider))
	}

	if _, err := ingest.SimilarityByName(c.Dedup.Similarity); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.Dedup.FuzzyThreshold < 0 || c.Dedup.FuzzyThreshold > 100 {
		errs = multierr.Append(errs, fmt.Errorf("dedup.fuzzy-threshold must be within 0..100, got %d", c.Dedup.FuzzyThreshold))
	}

	return multierr.Append(errs, c.Store.validate())
}

func (c *StoreConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", "sheets":
		if strings.TrimSpace(c.Sheets.SpreadsheetID) == "" {
			return errors.New("store.sheets.spreadsheet-id is required (SPREADSHEET_ID)")
		}
	case "sqlite":
		if strings.TrimSpace(c.SQLite.Path) == "" {
			return errors.New("store.sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Backend)
	}
	return nil
}

func newSearcher(config *Config, logger *zap.Logger) (search.Searcher, error) {
	searchLogger := logger.With(zap.String("provider", config.Search.Provider))

	switch strings.ToLower(strings.TrimSpace(config.Search.Provider)) {
	case "rss":
		return search.NewRSS(config.Search.RSS.Feeds, config.Search.RSS.Timeout, searchLogger), nil
	case "", "google":
		return search.NewGoogle(config.Search.APIKey, config.Search.EngineID, searchLogger), nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", config.Search.Provider)
	}
}

func newClassifier(ctx context.Context, cfg *GeminiConfig, log *zap.Logger) (ai.Classifier, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Model, cfg.MaxRetries,
		logger.WithCommonFields(log, "gemini", cfg.Model).With(zap.Int("ai_retry_attempts", cfg.MaxRetries)),
	)
	if err != nil {
		return nil, err
	}

	return gemini.NewClassifier(generator, logger.WithCommonFields(log, "gemini", generator.Model()), cfg.MaxLogLength), nil
}

// openStore returns the configured table store and a function releasing it.
func openStore(ctx context.Context, config *Config, logger *zap.Logger) (store.Store, func(), error) {
	if err := config.Store.validate(); err != nil {
		return nil, nil, err
	}

	storeLogger := logger.With(zap.String("backend", config.Store.Backend))

	switch strings.ToLower(strings.TrimSpace(config.Store.Backend)) {
	case "sqlite":
		st, err := sqlite.New(config.Store.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				storeLogger.Warn("closing sqlite store", zap.Error(err))
			}
		}, nil
	default:
		creds, err := secrets.Load(secrets.Source{
			Name:   "google sheets credentials",
			Value:  config.Store.Sheets.Credentials,
			Base64: config.Store.Sheets.CredentialsB64,
			File:   config.Store.Sheets.CredentialsFile,
			// GOOGLE_SHEETS_CREDS, then _B64, then _PATH.
			Precedence: []secrets.Kind{secrets.KindValue, secrets.KindBase64, secrets.KindFile},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w (set GOOGLE_SHEETS_CREDS, GOOGLE_SHEETS_CREDS_B64 or GOOGLE_SHEETS_CREDS_PATH)", err)
		}

		st, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID: config.Store.Sheets.SpreadsheetID,
			Worksheet:     config.Store.Sheets.Worksheet,
			Credentials:   []byte(creds),
		}, storeLogger)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}
