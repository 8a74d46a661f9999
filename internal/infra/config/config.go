package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrMissingToken is a startup-fatal error: nothing can be fetched without it.
var ErrMissingToken = errors.New("access token is required: set INVEST_TOKEN or tinvest.token")

type Config struct {
	TInvest    TInvestConfig    `mapstructure:"tinvest"`
	Instrument InstrumentConfig `mapstructure:"instrument"`
	Output     OutputConfig     `mapstructure:"output"`
	Chart      ChartConfig      `mapstructure:"chart"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Log        LogConfig        `mapstructure:"log"`

	// Derived during validation.
	Lookback time.Duration  `mapstructure:"-"`
	Location *time.Location `mapstructure:"-"`
}

// TInvestConfig - market data API
type TInvestConfig struct {
	Token          string  `mapstructure:"token"`
	BaseURL        string  `mapstructure:"base_url"`
	RequestTimeout int     `mapstructure:"request_timeout"` // seconds, 0 = no timeout
	RateLimit      float64 `mapstructure:"rate_limit"`      // requests per second
}

type InstrumentConfig struct {
	Ticker      string `mapstructure:"ticker"`
	ClassCode   string `mapstructure:"class_code"`
	Lookback    string `mapstructure:"lookback"` // "1d", "6h", "-2w"
	CandleLimit int    `mapstructure:"candle_limit"`
}

type OutputConfig struct {
	Path string `mapstructure:"path"`
}

type ChartConfig struct {
	Timezone      string `mapstructure:"timezone"`
	FontPath      string `mapstructure:"font_path"` // empty = embedded Go Regular
	PriceDecimals int    `mapstructure:"price_decimals"`
}

type SchedulerConfig struct {
	SkipOverlapping bool `mapstructure:"skip_overlapping"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"` // empty = disabled
}

// TelegramConfig - optional failure alerts
type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type LogConfig struct {
	Dir string `mapstructure:"dir"`
}

// Options controls where LoadConfig looks. Zero value means the working directory.
type Options struct {
	ConfigPaths []string // directories searched for config.yaml
	EnvFile     string
	Flags       *pflag.FlagSet
}

// LoadConfig layers, lowest first:
// 1. defaults
// 2. config.yaml
// 3. .env file (never overrides the real environment)
// 4. environment
// 5. command-line flags
func LoadConfig(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile) // missing file is fine

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	paths := opts.ConfigPaths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	}

	setupEnvAliases(v)

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setupEnvAliases(v *viper.Viper) {
	// first name wins when several are set
	v.BindEnv("tinvest.token", "INVEST_TOKEN", "TOKEN")
	v.BindEnv("tinvest.base_url", "INVEST_BASE_URL")
	v.BindEnv("tinvest.request_timeout", "INVEST_REQUEST_TIMEOUT")
	v.BindEnv("tinvest.rate_limit", "INVEST_RATE_LIMIT")

	v.BindEnv("instrument.ticker", "TICKER")
	v.BindEnv("instrument.class_code", "CLASS_CODE")
	v.BindEnv("instrument.lookback", "LOOKBACK", "FROM")
	v.BindEnv("instrument.candle_limit", "CANDLE_LIMIT")

	v.BindEnv("output.path", "OUTPUT_PATH")

	v.BindEnv("chart.timezone", "CHART_TIMEZONE")
	v.BindEnv("chart.font_path", "CHART_FONT_PATH")
	v.BindEnv("chart.price_decimals", "CHART_PRICE_DECIMALS")

	v.BindEnv("scheduler.skip_overlapping", "SKIP_OVERLAPPING")
	v.BindEnv("metrics.addr", "METRICS_ADDR")

	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	v.BindEnv("log.dir", "LOG_DIR")
}

// setDefaults by default
func setDefaults(v *viper.Viper) {
	v.SetDefault("tinvest.token", "")
	v.SetDefault("tinvest.base_url", "https://invest-public-api.tinkoff.ru/rest")
	v.SetDefault("tinvest.request_timeout", 30)
	v.SetDefault("tinvest.rate_limit", 5.0)

	v.SetDefault("instrument.ticker", "SBER")
	v.SetDefault("instrument.class_code", "TQBR")
	v.SetDefault("instrument.lookback", "1d")
	v.SetDefault("instrument.candle_limit", 2400)

	v.SetDefault("output.path", "wallpaper.png")

	v.SetDefault("chart.timezone", "Local")
	v.SetDefault("chart.font_path", "")
	v.SetDefault("chart.price_decimals", 2)

	v.SetDefault("scheduler.skip_overlapping", false)
	v.SetDefault("metrics.addr", "")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")

	v.SetDefault("log.dir", "logs")
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"ticker":           "instrument.ticker",
	"class-code":       "instrument.class_code",
	"lookback":         "instrument.lookback",
	"output":           "output.path",
	"timezone":         "chart.timezone",
	"font":             "chart.font_path",
	"skip-overlapping": "scheduler.skip_overlapping",
	"metrics-addr":     "metrics.addr",
	"log-dir":          "log.dir",
}

// RegisterFlags adds the overridable settings to a command's flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("ticker", "", "Instrument ticker (env: TICKER)")
	fs.String("class-code", "", "Market class code (env: CLASS_CODE)")
	fs.String("lookback", "", "History window, e.g. 1d, 6h, 2w (env: LOOKBACK)")
	fs.String("output", "", "Output PNG path (env: OUTPUT_PATH)")
	fs.String("timezone", "", "Time zone for labels, e.g. Europe/Moscow (env: CHART_TIMEZONE)")
	fs.String("font", "", "TTF font file, embedded font when empty (env: CHART_FONT_PATH)")
	fs.Bool("skip-overlapping", false, "Skip a firing while the previous cycle still runs (env: SKIP_OVERLAPPING)")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address (env: METRICS_ADDR)")
	fs.String("log-dir", "", "Directory for app.log (env: LOG_DIR)")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	cfg.TInvest.Token = strings.TrimSpace(cfg.TInvest.Token)
	if cfg.TInvest.Token == "" {
		return ErrMissingToken
	}
	if cfg.TInvest.RequestTimeout < 0 {
		return fmt.Errorf("tinvest.request_timeout must be >= 0, got %d", cfg.TInvest.RequestTimeout)
	}
	if cfg.TInvest.RateLimit <= 0 {
		return fmt.Errorf("tinvest.rate_limit must be > 0, got %v", cfg.TInvest.RateLimit)
	}

	cfg.Instrument.Ticker = strings.ToUpper(strings.TrimSpace(cfg.Instrument.Ticker))
	if cfg.Instrument.Ticker == "" {
		return fmt.Errorf("instrument.ticker is empty")
	}
	cfg.Instrument.ClassCode = strings.ToUpper(strings.TrimSpace(cfg.Instrument.ClassCode))
	if cfg.Instrument.ClassCode == "" {
		return fmt.Errorf("instrument.class_code is empty")
	}
	if cfg.Instrument.CandleLimit <= 0 {
		return fmt.Errorf("instrument.candle_limit must be > 0, got %d", cfg.Instrument.CandleLimit)
	}

	lookback, err := ParseLookback(cfg.Instrument.Lookback)
	if err != nil {
		return fmt.Errorf("invalid instrument.lookback: %w", err)
	}
	cfg.Lookback = lookback

	if strings.TrimSpace(cfg.Output.Path) == "" {
		return fmt.Errorf("output.path is empty")
	}

	loc, err := loadLocation(cfg.Chart.Timezone)
	if err != nil {
		return fmt.Errorf("invalid chart.timezone: %w", err)
	}
	cfg.Location = loc

	if cfg.Chart.PriceDecimals < 0 || cfg.Chart.PriceDecimals > 8 {
		return fmt.Errorf("chart.price_decimals must be within 0..8, got %d", cfg.Chart.PriceDecimals)
	}

	if cfg.Telegram.BotToken != "" {
		if cfg.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
		}
		if _, err := strconv.ParseInt(cfg.Telegram.ChatID, 10, 64); err != nil {
			return fmt.Errorf("invalid telegram.chat_id: %w", err)
		}
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	switch strings.TrimSpace(name) {
	case "", "Local", "local":
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// RequestTimeout as a duration; zero disables the client timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.TInvest.RequestTimeout) * time.Second
}

// TelegramChatID is valid after validation when alerts are configured.
func (c *Config) TelegramChatID() int64 {
	id, _ := strconv.ParseInt(c.Telegram.ChatID, 10, 64)
	return id
}
