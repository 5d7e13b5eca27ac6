package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "scholarship-hunter"
)

type Config struct {
	CVPath  string        `mapstructure:"cv-path"`
	Search  SearchConfig  `mapstructure:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	AI      AIConfig      `mapstructure:"ai"`
	Dedup   DedupConfig   `mapstructure:"dedup"`
	Run     RunConfig     `mapstructure:"run"`
	Filters FiltersConfig `mapstructure:"filters"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`
}

type SearchConfig struct {
	Provider   string    `mapstructure:"provider"`
	Queries    []string  `mapstructure:"queries"`
	MaxResults int       `mapstructure:"max-results"`
	APIKey     string    `mapstructure:"api-key" json:"-"`
	EngineID   string    `mapstructure:"engine-id"`
	RSS        RSSConfig `mapstructure:"rss"`
}

type RSSConfig struct {
	Feeds   []string      `mapstructure:"feeds"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type FetchConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxChars  int           `mapstructure:"max-chars"`
	Mode      string        `mapstructure:"mode"`
	UserAgent string        `mapstructure:"user-agent"`
}

type AIConfig struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type DedupConfig struct {
	FuzzyThreshold int    `mapstructure:"fuzzy-threshold"`
	Similarity     string `mapstructure:"similarity"`
	Precheck       bool   `mapstructure:"precheck"`
	MinMatchScore  int    `mapstructure:"min-match-score"`
}

type RunConfig struct {
	RequestDelay time.Duration `mapstructure:"request-delay"`
	ReportFile   string        `mapstructure:"report-file"`
}

type FiltersConfig struct {
	ExcludedDomains []string `mapstructure:"excluded-domains"`
	ExcludeFile     string   `mapstructure:"exclude-file"`
}

type StoreConfig struct {
	Backend string       `mapstructure:"backend"`
	Sheets  SheetsConfig `mapstructure:"sheets"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
}

type SheetsConfig struct {
	SpreadsheetID   string `mapstructure:"spreadsheet-id"`
	Worksheet       string `mapstructure:"worksheet"`
	Credentials     string `mapstructure:"credentials" json:"-"`
	CredentialsB64  string `mapstructure:"credentials-b64" json:"-"`
	CredentialsFile string `mapstructure:"credentials-file"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway-url"`
	Job            string `mapstructure:"job"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max-size-mb"`
	MaxBackups int    `mapstructure:"max-backups"`
	MaxAgeDays int    `mapstructure:"max-age-days"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "scholarship-hunter searches the web for scholarships, rates them against a CV and saves new ones to a spreadsheet",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

var envBindings = map[string]string{
	"cv-path":                       "CV_PATH",
	"ai.gemini.api-key":             "GEMINI_API_KEY",
	"ai.gemini.api-key-file":        "GEMINI_API_KEY_FILE",
	"search.api-key":                "GOOGLE_SEARCH_API_KEY",
	"search.engine-id":              "GOOGLE_SEARCH_ENGINE_ID",
	"store.sheets.spreadsheet-id":   "SPREADSHEET_ID",
	"store.sheets.credentials":      "GOOGLE_SHEETS_CREDS",
	"store.sheets.credentials-b64":  "GOOGLE_SHEETS_CREDS_B64",
	"store.sheets.credentials-file": "GOOGLE_SHEETS_CREDS_PATH",
	"metrics.pushgateway-url":       "PUSHGATEWAY_URL",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is scholarship-hunter.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.provider", "google")
	v.SetDefault("search.queries", []string{"fully funded msc in AI scholarship 2026 international"})
	v.SetDefault("search.max-results", 10)
	v.SetDefault("search.rss.timeout", 20*time.Second)

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.max-chars", 8000)
	v.SetDefault("fetch.mode", "text")

	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("dedup.fuzzy-threshold", 85)
	v.SetDefault("dedup.similarity", "indel")
	v.SetDefault("dedup.precheck", true)
	v.SetDefault("dedup.min-match-score", 50)

	v.SetDefault("run.request-delay", 2*time.Second)

	v.SetDefault("store.backend", "sheets")
	v.SetDefault("store.sheets.worksheet", "Scholarships")
	v.SetDefault("store.sqlite.path", "scholarships.db")

	v.SetDefault("metrics.job", "scholarship_hunter")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// An explicit config must exist and parse; the default one is optional.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
