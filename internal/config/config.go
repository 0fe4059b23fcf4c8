package config

import (
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/safety-kpi/internal/cleaning"
	"github.com/sells-group/safety-kpi/internal/ingest"
	"github.com/sells-group/safety-kpi/internal/kpi"
	"github.com/sells-group/safety-kpi/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Input  InputConfig  `yaml:"input" mapstructure:"input"`
	Clean  CleanConfig  `yaml:"clean" mapstructure:"clean"`
	KPI    KPIConfig    `yaml:"kpi" mapstructure:"kpi"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
	Fetch  FetchConfig  `yaml:"fetch" mapstructure:"fetch"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// InputConfig locates and describes the raw injury file.
type InputConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Format   string `yaml:"format" mapstructure:"format"`
	Encoding string `yaml:"encoding" mapstructure:"encoding"`
	Sheet    string `yaml:"sheet" mapstructure:"sheet"`
}

// CleanConfig configures outlier screening and winsorization.
type CleanConfig struct {
	ScreenFields      []string `yaml:"screen_fields" mapstructure:"screen_fields"`
	CapFields         []string `yaml:"cap_fields" mapstructure:"cap_fields"`
	IQRMultiplier     float64  `yaml:"iqr_multiplier" mapstructure:"iqr_multiplier"`
	CapPercentile     float64  `yaml:"cap_percentile" mapstructure:"cap_percentile"`
	SkipDegenerateIQR bool     `yaml:"skip_degenerate_iqr" mapstructure:"skip_degenerate_iqr"`
}

// KPIConfig selects the KPIs, groupings, and ranking depth.
type KPIConfig struct {
	Names          []string `yaml:"names" mapstructure:"names"`
	Groupings      []string `yaml:"groupings" mapstructure:"groupings"`
	IndustryDigits int      `yaml:"industry_digits" mapstructure:"industry_digits"`
	RankGrouping   string   `yaml:"rank_grouping" mapstructure:"rank_grouping"`
	TopN           int      `yaml:"top_n" mapstructure:"top_n"`
}

// OutputConfig configures the run directory and optional artifacts.
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Excluded bool   `yaml:"excluded" mapstructure:"excluded"`
	Workbook bool   `yaml:"workbook" mapstructure:"workbook"`
	Metrics  bool   `yaml:"metrics" mapstructure:"metrics"`
}

// FetchConfig configures the ITA archive download.
type FetchConfig struct {
	URL               string  `yaml:"url" mapstructure:"url"`
	Dest              string  `yaml:"dest" mapstructure:"dest"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SAFETYKPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.format", "auto")
	v.SetDefault("clean.screen_fields", []string{string(model.FieldHours)})
	v.SetDefault("clean.cap_fields", []string{
		string(model.FieldRecordable),
		string(model.FieldLostTime),
		string(model.FieldDART),
		string(model.FieldLostDays),
	})
	v.SetDefault("clean.iqr_multiplier", cleaning.DefaultIQRMultiplier)
	v.SetDefault("clean.cap_percentile", cleaning.DefaultCapPercentile)
	v.SetDefault("clean.skip_degenerate_iqr", true)
	v.SetDefault("kpi.names", []string{"TRIR", "LTIFR", "DART", "SEVERITY", "FATALITY"})
	v.SetDefault("kpi.groupings", []string{"overall", "industry", "year", "size", "industry_year", "industry_size"})
	v.SetDefault("kpi.industry_digits", 2)
	v.SetDefault("kpi.rank_grouping", "industry")
	v.SetDefault("kpi.top_n", 5)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.excluded", true)
	v.SetDefault("output.workbook", false)
	v.SetDefault("output.metrics", false)
	v.SetDefault("fetch.dest", "data/raw")
	v.SetDefault("fetch.user_agent", "safety-kpi/1.0")
	v.SetDefault("fetch.timeout_secs", 300)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.requests_per_second", 1.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is one of "run",
// "clean", or "fetch". All problems are reported together; KPI, grouping,
// and field problems are ConfigErrors.
func (c *Config) Validate(mode string) error {
	var errs []error
	required := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, eris.Errorf("config: %s is required", key))
		}
	}

	switch mode {
	case "run", "clean":
		required("input.path", c.Input.Path)
		required("output.dir", c.Output.Dir)
		if _, err := ingest.ParseFormat(c.Input.Format); err != nil {
			errs = append(errs, err)
		}
		if _, err := c.CleaningOptions(); err != nil {
			errs = append(errs, err)
		}
		if mode == "clean" {
			break
		}
		if _, err := c.KPINames(); err != nil {
			errs = append(errs, err)
		}
		if _, err := c.Groupings(); err != nil {
			errs = append(errs, err)
		}
		if _, err := kpi.ParseGrouping(c.KPI.RankGrouping); err != nil {
			errs = append(errs, err)
		}
		if err := c.KPIOptions().Validate(); err != nil {
			errs = append(errs, err)
		}
		if c.KPI.TopN < 1 {
			errs = append(errs, &model.ConfigError{Kind: "kpi.top_n", Value: strconv.Itoa(c.KPI.TopN), Err: eris.New("must be at least 1")})
		}
	case "fetch":
		required("fetch.url", c.Fetch.URL)
		required("fetch.dest", c.Fetch.Dest)
		if c.Fetch.TimeoutSecs <= 0 {
			errs = append(errs, eris.New("config: fetch.timeout_secs must be positive"))
		}
	default:
		errs = append(errs, eris.Errorf("config: unknown validation mode %q", mode))
	}
	return errors.Join(errs...)
}

// CleaningOptions converts the clean section into cleaning.Options.
func (c *Config) CleaningOptions() (cleaning.Options, error) {
	screen, err := parseFields(c.Clean.ScreenFields)
	if err != nil {
		return cleaning.Options{}, err
	}
	capped, err := parseFields(c.Clean.CapFields)
	if err != nil {
		return cleaning.Options{}, err
	}
	opts := cleaning.Options{
		ScreenFields:      screen,
		CapFields:         capped,
		IQRMultiplier:     c.Clean.IQRMultiplier,
		CapPercentile:     c.Clean.CapPercentile,
		SkipDegenerateIQR: c.Clean.SkipDegenerateIQR,
	}
	if err := opts.Validate(); err != nil {
		return cleaning.Options{}, err
	}
	return opts, nil
}

// KPINames resolves the configured KPI names. Empty means all.
func (c *Config) KPINames() ([]model.KPIName, error) {
	if len(c.KPI.Names) == 0 {
		return model.KPINames, nil
	}
	out := make([]model.KPIName, 0, len(c.KPI.Names))
	seen := make(map[model.KPIName]bool)
	for _, s := range c.KPI.Names {
		n, err := model.ParseKPIName(s)
		if err != nil {
			return nil, err
		}
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out, nil
}

// Groupings resolves the configured groupings. The rank grouping and the
// industry_year grouping used for trends are always included.
func (c *Config) Groupings() ([]kpi.Grouping, error) {
	gs, err := kpi.ParseGroupings(c.KPI.Groupings)
	if err != nil {
		return nil, err
	}
	extra := []string{kpi.Overall.Name, kpi.ByIndustryYear.Name}
	if c.KPI.RankGrouping != "" {
		extra = append(extra, c.KPI.RankGrouping)
	}
	names := make([]string, 0, len(gs)+len(extra))
	for _, g := range gs {
		names = append(names, g.Name)
	}
	return kpi.ParseGroupings(append(names, extra...))
}

// KPIOptions converts the kpi section into kpi.Options.
func (c *Config) KPIOptions() kpi.Options {
	return kpi.Options{IndustryDigits: c.KPI.IndustryDigits}
}

func parseFields(names []string) ([]model.Field, error) {
	out := make([]model.Field, 0, len(names))
	for _, n := range names {
		f, err := model.ParseField(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
