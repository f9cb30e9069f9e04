package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

type Config struct {
	Fetch      FetchConfig      `mapstructure:"fetch" validate:"required"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Browser    BrowserConfig    `mapstructure:"browser"`
	Sites      SitesConfig      `mapstructure:"sites" validate:"required"`
	Resolve    ResolveConfig    `mapstructure:"resolve" validate:"required"`
	Output     OutputConfig     `mapstructure:"output" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Run        RunConfig        `mapstructure:"run"`
}

type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout" validate:"required,min=1s,max=2m"`
	UserAgent      string        `mapstructure:"user_agent" validate:"required,min=10"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"required,min=1,max=20"`
	RatePerSecond  int           `mapstructure:"rate_per_second" validate:"min=0,max=100"`
	DirectFallback bool          `mapstructure:"direct_fallback"`
}

type ProxyConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	File            string        `mapstructure:"file"`
	Sources         []string      `mapstructure:"sources" validate:"dive,oneof=file proxyscrape geonode github proxylistorg freeproxylist"`
	Check           bool          `mapstructure:"check"`
	TestURL         string        `mapstructure:"test_url" validate:"required,url"`
	CheckTimeout    time.Duration `mapstructure:"check_timeout" validate:"required,min=1s,max=1m"`
	Workers         int           `mapstructure:"workers" validate:"required,min=1,max=200"`
	MaxFailures     int           `mapstructure:"max_failures" validate:"required,min=1,max=100"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"required,min=1m,max=24h"`
}

type BrowserConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	PoolSize int           `mapstructure:"pool_size" validate:"required,min=1,max=16"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"required,min=5s,max=5m"`
	Wait     time.Duration `mapstructure:"wait" validate:"min=0,max=1m"`
	Headless bool          `mapstructure:"headless"`
	UseProxy bool          `mapstructure:"use_proxy"`
}

type SitesConfig struct {
	Enabled   []string            `mapstructure:"enabled" validate:"required,min=1,dive,oneof=hattrick daddylive agenda generic"`
	Hattrick  HattrickConfig      `mapstructure:"hattrick"`
	Daddylive DaddyliveConfig     `mapstructure:"daddylive"`
	Agenda    AgendaConfig        `mapstructure:"agenda"`
	Generic   []GenericSiteConfig `mapstructure:"generic" validate:"dive"`
}

type HattrickConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
	Logo    string `mapstructure:"logo" validate:"omitempty,url"`
	Group   string `mapstructure:"group"`
}

type DaddyliveConfig struct {
	BaseURL      string   `mapstructure:"base_url" validate:"required,url"`
	SchedulePath string   `mapstructure:"schedule_path" validate:"required,startswith=/"`
	EmbedPath    string   `mapstructure:"embed_path" validate:"required,contains={id}"`
	Timezone     string   `mapstructure:"timezone" validate:"required,timezone"`
	Categories   []string `mapstructure:"categories"`
}

type AgendaConfig struct {
	URL         string `mapstructure:"url" validate:"omitempty,url"`
	RowSelector string `mapstructure:"row_selector" validate:"required"`
	Timezone    string `mapstructure:"timezone" validate:"required,timezone"`
}

type GenericSiteConfig struct {
	Name          string `mapstructure:"name" validate:"required,alphanum"`
	URL           string `mapstructure:"url" validate:"required,url"`
	ItemSelector  string `mapstructure:"item_selector" validate:"required"`
	TitleSelector string `mapstructure:"title_selector"`
	TimeSelector  string `mapstructure:"time_selector"`
	TimeLayout    string `mapstructure:"time_layout"`
	Timezone      string `mapstructure:"timezone" validate:"omitempty,timezone"`
	LinkSelector  string `mapstructure:"link_selector"`
	LinkAttr      string `mapstructure:"link_attr"`
	LogoSelector  string `mapstructure:"logo_selector"`
	Group         string `mapstructure:"group"`
	Browser       bool   `mapstructure:"browser"`
}

type ResolveConfig struct {
	Workers        int           `mapstructure:"workers" validate:"required,min=1,max=64"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl" validate:"min=0,max=48h"`
	MaxIframeDepth int           `mapstructure:"max_iframe_depth" validate:"min=0,max=5"`
	CheckStreams   bool          `mapstructure:"check_streams"`
	CheckInterval  time.Duration `mapstructure:"check_interval" validate:"required,min=1m,max=24h"`
	WindowBefore   time.Duration `mapstructure:"window_before" validate:"min=0,max=48h"`
	WindowAfter    time.Duration `mapstructure:"window_after" validate:"min=0,max=168h"`
}

type OutputConfig struct {
	Dir         string `mapstructure:"dir" validate:"required"`
	M3UFile     string `mapstructure:"m3u_file" validate:"required"`
	JSONFile    string `mapstructure:"json_file"`
	Group       string `mapstructure:"group"`
	Logo        string `mapstructure:"logo" validate:"omitempty,url"`
	HeaderStyle string `mapstructure:"header_style" validate:"required,oneof=pipe none"`
	Timezone    string `mapstructure:"timezone" validate:"required,timezone"`
}

type DatabaseConfig struct {
	Path   string        `mapstructure:"path"`
	MaxAge time.Duration `mapstructure:"max_age" validate:"required,min=1h,max=720h"`
}

type CacheConfig struct {
	RedisURL string `mapstructure:"redis_url" validate:"omitempty,url"`
	Prefix   string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	ListenAddr   string        `mapstructure:"listen_addr" validate:"required,hostname_port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" validate:"required,min=1s,max=5m"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,min=1s,max=5m"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" validate:"required,min=1s,max=10m"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

type DictionaryConfig struct {
	Path string `mapstructure:"path"`
}

type RunConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,min=1m,max=24h"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"required,min=30s,max=2h"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"output-dir": "output.dir",
	"interval":   "run.interval",
	"listen":     "server.listen_addr",
	"serve":      "server.enabled",
	"sites":      "sites.enabled",
}

// setDefaults configures default values for viper
func setDefaults(v *viper.Viper) {
	// Fetch defaults
	v.SetDefault("fetch.timeout", "20s")
	v.SetDefault("fetch.user_agent", defaultUserAgent)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_second", 5)
	v.SetDefault("fetch.direct_fallback", true)

	// Proxy defaults
	v.SetDefault("proxy.enabled", false)
	v.SetDefault("proxy.file", "")
	v.SetDefault("proxy.sources", []string{"proxyscrape", "geonode", "github"})
	v.SetDefault("proxy.check", true)
	v.SetDefault("proxy.test_url", "http://icanhazip.com")
	v.SetDefault("proxy.check_timeout", "10s")
	v.SetDefault("proxy.workers", 50)
	v.SetDefault("proxy.max_failures", 3)
	v.SetDefault("proxy.refresh_interval", "30m")

	// Browser defaults
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.pool_size", 2)
	v.SetDefault("browser.timeout", "45s")
	v.SetDefault("browser.wait", "3s")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.use_proxy", false)

	// Site defaults
	v.SetDefault("sites.enabled", []string{"hattrick", "daddylive"})
	v.SetDefault("sites.hattrick.base_url", "https://hattrick.ws/")
	v.SetDefault("sites.hattrick.logo", "https://resource-m.calcionapoli24.it/www/thumbs/1200x/1590651555_987.jpg")
	v.SetDefault("sites.hattrick.group", "Sky Sport IPTV")
	v.SetDefault("sites.daddylive.base_url", "https://daddylive.mp")
	v.SetDefault("sites.daddylive.schedule_path", "/schedule/schedule-generated.json")
	v.SetDefault("sites.daddylive.embed_path", "/stream/stream-{id}.php")
	v.SetDefault("sites.daddylive.timezone", "Europe/London")
	v.SetDefault("sites.daddylive.categories", []string{})
	v.SetDefault("sites.agenda.url", "")
	v.SetDefault("sites.agenda.row_selector", "table.agenda tbody tr")
	v.SetDefault("sites.agenda.timezone", "Europe/Madrid")

	// Resolve defaults
	v.SetDefault("resolve.workers", 8)
	v.SetDefault("resolve.cache_ttl", "2h")
	v.SetDefault("resolve.max_iframe_depth", 3)
	v.SetDefault("resolve.check_streams", true)
	v.SetDefault("resolve.check_interval", "15m")
	v.SetDefault("resolve.window_before", "3h")
	v.SetDefault("resolve.window_after", "12h")

	// Output defaults
	v.SetDefault("output.dir", "./output")
	v.SetDefault("output.m3u_file", "playlist.m3u8")
	v.SetDefault("output.json_file", "streams.json")
	v.SetDefault("output.group", "Sports")
	v.SetDefault("output.logo", "")
	v.SetDefault("output.header_style", "pipe")
	v.SetDefault("output.timezone", "UTC")

	// Database defaults
	v.SetDefault("database.path", "./data/streamscout.db")
	v.SetDefault("database.max_age", "72h")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.prefix", "streamscout:")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.listen_addr", ":8090")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")

	v.SetDefault("log.level", "info")
	v.SetDefault("dictionary.path", "")

	v.SetDefault("run.interval", "0s")
	v.SetDefault("run.timeout", "10m")
}

// LoadConfig loads configuration from multiple sources with validation.
// flags may be nil; when given, the flags listed in flagKeys override file and
// environment values.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Configure viper
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/streamscout")

	// Set environment variable prefix and enable reading from env
	v.SetEnvPrefix("STREAMSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := loadDotEnv(".env"); err != nil {
			log.Printf("Warning: Failed to load .env file: %v", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("No config file found, using defaults and environment variables")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate runs struct validation plus the cross-field site rules.
func Validate(config *Config) error {
	validate := validator.New()

	if err := registerCustomValidators(validate); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return validateSites(config)
}

// loadDotEnv exports the variables of an env file that are not already set,
// so AutomaticEnv sees them with the usual STREAMSCOUT_ prefix.
func loadDotEnv(path string) error {
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return err
	}
	for key, value := range env.AllSettings() {
		name := strings.ToUpper(key)
		if _, set := os.LookupEnv(name); set {
			continue
		}
		if err := os.Setenv(name, fmt.Sprint(value)); err != nil {
			return err
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// registerCustomValidators adds custom validation rules
func registerCustomValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("hostname_port", func(fl validator.FieldLevel) bool {
		addr := fl.Field().String()
		if addr == "" {
			return false
		}
		return strings.Contains(addr, ":")
	})
}

func validateSites(config *Config) error {
	for _, name := range config.Sites.Enabled {
		switch name {
		case "agenda":
			if config.Sites.Agenda.URL == "" {
				return errors.New("config validation failed: sites.agenda.url is required when agenda is enabled")
			}
		case "generic":
			if len(config.Sites.Generic) == 0 {
				return errors.New("config validation failed: sites.generic needs at least one site when generic is enabled")
			}
		}
	}

	seen := make(map[string]bool)
	for _, site := range config.Sites.Generic {
		if seen[site.Name] {
			return fmt.Errorf("config validation failed: duplicate generic site %q", site.Name)
		}
		seen[site.Name] = true
	}

	if config.Proxy.Enabled && len(config.Proxy.Sources) == 0 && config.Proxy.File == "" {
		return errors.New("config validation failed: proxy.enabled needs proxy.file or proxy.sources")
	}

	return nil
}

// SaveConfigTemplate generates a sample configuration file
func SaveConfigTemplate(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")

	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}

	return nil
}

// PrintConfig displays the current configuration (for debugging)
func PrintConfig(config *Config) {
	log.Printf("Configuration loaded:")
	log.Printf("  Sites: %v (generic: %d)", config.Sites.Enabled, len(config.Sites.Generic))
	log.Printf("  Fetch: timeout %v, retries %d, rate %d/s, direct fallback: %v",
		config.Fetch.Timeout, config.Fetch.MaxRetries, config.Fetch.RatePerSecond, config.Fetch.DirectFallback)
	if config.Proxy.Enabled {
		log.Printf("  Proxies: sources %v, file %q, check: %v, max failures: %d",
			config.Proxy.Sources, config.Proxy.File, config.Proxy.Check, config.Proxy.MaxFailures)
	} else {
		log.Printf("  Proxies: [DISABLED]")
	}
	log.Printf("  Browser: enabled %v, pool %d, timeout %v", config.Browser.Enabled, config.Browser.PoolSize, config.Browser.Timeout)
	log.Printf("  Resolve: %d workers, cache TTL %v, check streams: %v", config.Resolve.Workers, config.Resolve.CacheTTL, config.Resolve.CheckStreams)
	log.Printf("  Output: %s (%s, %s)", config.Output.Dir, config.Output.M3UFile, config.Output.JSONFile)
	if config.Database.Path != "" {
		log.Printf("  Database: %s (Max Age: %v)", config.Database.Path, config.Database.MaxAge)
	}
	if config.Cache.RedisURL != "" {
		log.Printf("  Cache: [REDIS]")
	}
	if config.Server.Enabled {
		log.Printf("  Server: %s", config.Server.ListenAddr)
	}
	if config.Run.Interval > 0 {
		log.Printf("  Run interval: %v", config.Run.Interval)
	}
}
