package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/samber/lo"

	"lingorelay/internal/translation"
	"lingorelay/pkg/types"
)

// ARCHITECTURAL DISCOVERY: Configuration layer serves as system-wide settings coordinator
// Clean separation between configuration management and business logic
type Config struct {
	HTTP        *HTTPConfig        `json:"http"`
	WebSocket   *WebSocketConfig   `json:"websocket"`
	Translation *TranslationConfig `json:"translation"`
	Database    *DatabaseConfig    `json:"database"`
	Logging     *LoggingConfig     `json:"logging"`
	RateLimit   *RateLimitConfig   `json:"rate_limit"`
}

type HTTPConfig struct {
	Port            int           `json:"port"`
	Host            string        `json:"host"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// FUNCTIONAL DISCOVERY: ReadTimeout is the pong wait, a peer silent for longer is dropped
type WebSocketConfig struct {
	PingInterval   time.Duration `json:"ping_interval"`
	ReadTimeout    time.Duration `json:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	BufferSize     int           `json:"buffer_size"`
	InboxSize      int           `json:"inbox_size"`
	MaxMessageSize int64         `json:"max_message_size"`
}

// TranslationConfig selects the capability and the language table.
type TranslationConfig struct {
	Backend                 string            `json:"backend"`
	Endpoint                string            `json:"endpoint"`
	RequestTimeout          time.Duration     `json:"request_timeout"`
	Timeout                 time.Duration     `json:"timeout"`
	MaxConcurrent           int               `json:"max_concurrent"`
	DetectSource            bool              `json:"detect_source"`
	ReferenceLanguage       string            `json:"reference_language"`
	Languages               []string          `json:"languages"`
	DefaultTravelerLanguage string            `json:"default_traveler_language"`
	ModelTemplate           string            `json:"model_template"`
	Models                  map[string]string `json:"models"`
}

// DatabaseConfig configures the session transcript store.
type DatabaseConfig struct {
	Enabled        bool          `json:"enabled"`
	Path           string        `json:"path"`
	Timeout        time.Duration `json:"timeout"`
	MaxConnections int           `json:"max_connections"`
}

type LoggingConfig struct {
	Level string `json:"level"`
}

// RateLimitConfig bounds inbound messages per connection, 0 disables the limit.
type RateLimitConfig struct {
	MessagesPerMinute int `json:"messages_per_minute"`
}

// FUNCTIONAL DISCOVERY: Production-ready defaults, stub translator and transcripts on local disk
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Port:            8000,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval:   30 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   5 * time.Second,
			BufferSize:     64,
			InboxSize:      16,
			MaxMessageSize: 64 * 1024,
		},
		Translation: &TranslationConfig{
			Backend:                 translation.BackendStub,
			RequestTimeout:          30 * time.Second,
			Timeout:                 10 * time.Second,
			MaxConcurrent:           4,
			ReferenceLanguage:       string(types.ReferenceLanguage),
			Languages:               lo.Map(types.DefaultTravelerLanguages, func(l types.LanguageCode, _ int) string { return string(l) }),
			DefaultTravelerLanguage: "es",
			ModelTemplate:           translation.DefaultModelTemplate,
		},
		Database: &DatabaseConfig{
			Enabled:        true,
			Path:           "./data/lingorelay.db",
			Timeout:        5 * time.Second,
			MaxConnections: 10,
		},
		Logging: &LoggingConfig{
			Level: "INFO",
		},
		RateLimit: &RateLimitConfig{
			MessagesPerMinute: 120,
		},
	}
}

// FUNCTIONAL DISCOVERY: Comprehensive validation prevents invalid system configurations
func (c *Config) Validate() error {
	if c.HTTP == nil || c.WebSocket == nil || c.Translation == nil || c.Database == nil || c.Logging == nil || c.RateLimit == nil {
		return errors.New("every configuration section is required")
	}

	// FUNCTIONAL DISCOVERY: port 0 binds an ephemeral port
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 0 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("WebSocket read timeout must exceed the ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 || c.WebSocket.InboxSize <= 0 {
		return fmt.Errorf("WebSocket buffer and inbox sizes must be positive")
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		return fmt.Errorf("WebSocket max message size must be positive")
	}

	if err := c.Translation.validate(); err != nil {
		return err
	}

	if c.Database.Enabled {
		if c.Database.Path == "" {
			return fmt.Errorf("database path cannot be empty")
		}
		if c.Database.MaxConnections <= 0 {
			return fmt.Errorf("database max connections must be positive")
		}
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	if c.RateLimit.MessagesPerMinute < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	return nil
}

func (t *TranslationConfig) validate() error {
	switch t.Backend {
	case translation.BackendStub:
	case translation.BackendHTTP:
		if t.Endpoint == "" {
			return fmt.Errorf("translation endpoint is required for the %s backend", t.Backend)
		}
	default:
		return fmt.Errorf("%w: %q", translation.ErrUnknownBackend, t.Backend)
	}

	if t.Timeout <= 0 || t.RequestTimeout <= 0 {
		return fmt.Errorf("translation timeouts must be positive")
	}
	if t.MaxConcurrent <= 0 {
		return fmt.Errorf("translation max concurrent must be positive")
	}

	if _, err := types.ParseLanguageCode(t.ReferenceLanguage); err != nil {
		return fmt.Errorf("reference language: %w", err)
	}
	if len(t.Languages) == 0 {
		return fmt.Errorf("at least one traveler language is required")
	}
	for _, lang := range t.Languages {
		if _, err := types.ParseLanguageCode(lang); err != nil {
			return fmt.Errorf("traveler language %q: %w", lang, err)
		}
	}
	if !lo.Contains(t.Languages, t.DefaultTravelerLanguage) {
		return fmt.Errorf("default traveler language %q is not a traveler language", t.DefaultTravelerLanguage)
	}
	return nil
}

// TravelerLanguages returns the configured traveler languages as codes.
func (t *TranslationConfig) TravelerLanguages() []types.LanguageCode {
	return lo.Map(t.Languages, func(l string, _ int) types.LanguageCode { return types.LanguageCode(l) })
}

// Environment is the flat LINGORELAY_* view decoded with go-env.
// FUNCTIONAL DISCOVERY: zero values mean unset, pointers mark settings where zero is meaningful
type Environment struct {
	ConfigFile              string        `env:"LINGORELAY_CONFIG_FILE"`
	HTTPPort                int           `env:"LINGORELAY_HTTP_PORT"`
	HTTPHost                string        `env:"LINGORELAY_HTTP_HOST"`
	HTTPReadTimeout         time.Duration `env:"LINGORELAY_HTTP_READ_TIMEOUT"`
	HTTPWriteTimeout        time.Duration `env:"LINGORELAY_HTTP_WRITE_TIMEOUT"`
	WebSocketPingInterval   time.Duration `env:"LINGORELAY_WEBSOCKET_PING_INTERVAL"`
	WebSocketReadTimeout    time.Duration `env:"LINGORELAY_WEBSOCKET_READ_TIMEOUT"`
	WebSocketWriteTimeout   time.Duration `env:"LINGORELAY_WEBSOCKET_WRITE_TIMEOUT"`
	WebSocketBufferSize     int           `env:"LINGORELAY_WEBSOCKET_BUFFER_SIZE"`
	TranslationBackend      string        `env:"LINGORELAY_TRANSLATION_BACKEND"`
	TranslationEndpoint     string        `env:"LINGORELAY_TRANSLATION_ENDPOINT"`
	TranslationTimeout      time.Duration `env:"LINGORELAY_TRANSLATION_TIMEOUT"`
	TranslationLanguages    string        `env:"LINGORELAY_TRANSLATION_LANGUAGES"`
	TranslationDetectSource *bool         `env:"LINGORELAY_TRANSLATION_DETECT_SOURCE"`
	DefaultTravelerLanguage string        `env:"LINGORELAY_DEFAULT_TRAVELER_LANGUAGE"`
	DatabaseEnabled         *bool         `env:"LINGORELAY_DATABASE_ENABLED"`
	DatabasePath            string        `env:"LINGORELAY_DATABASE_PATH"`
	LogLevel                string        `env:"LINGORELAY_LOG_LEVEL"`
	MessagesPerMinute       *int          `env:"LINGORELAY_RATE_LIMIT_MESSAGES_PER_MINUTE"`
}

// LoadFromEnv overlays the process environment, after loading an optional .env file.
func LoadFromEnv(config *Config) (*Environment, error) {
	// TECHNICAL DISCOVERY: a missing .env file is the normal case outside development
	_ = godotenv.Load()

	var e Environment
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	e.apply(config)
	return &e, nil
}

func (e *Environment) apply(c *Config) {
	setIf(&c.HTTP.Port, e.HTTPPort)
	setIf(&c.HTTP.Host, e.HTTPHost)
	setIf(&c.HTTP.ReadTimeout, e.HTTPReadTimeout)
	setIf(&c.HTTP.WriteTimeout, e.HTTPWriteTimeout)
	setIf(&c.WebSocket.PingInterval, e.WebSocketPingInterval)
	setIf(&c.WebSocket.ReadTimeout, e.WebSocketReadTimeout)
	setIf(&c.WebSocket.WriteTimeout, e.WebSocketWriteTimeout)
	setIf(&c.WebSocket.BufferSize, e.WebSocketBufferSize)
	setIf(&c.Translation.Backend, e.TranslationBackend)
	setIf(&c.Translation.Endpoint, e.TranslationEndpoint)
	setIf(&c.Translation.Timeout, e.TranslationTimeout)
	setIf(&c.Translation.DefaultTravelerLanguage, e.DefaultTravelerLanguage)
	setIf(&c.Database.Path, e.DatabasePath)
	setIf(&c.Logging.Level, e.LogLevel)

	if e.TranslationLanguages != "" {
		c.Translation.Languages = splitList(e.TranslationLanguages)
	}
	if e.TranslationDetectSource != nil {
		c.Translation.DetectSource = *e.TranslationDetectSource
	}
	if e.DatabaseEnabled != nil {
		c.Database.Enabled = *e.DatabaseEnabled
	}
	if e.MessagesPerMinute != nil {
		c.RateLimit.MessagesPerMinute = *e.MessagesPerMinute
	}
}

func setIf[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func splitList(s string) []string {
	return lo.Uniq(lo.Compact(lo.Map(strings.Split(s, ","), func(p string, _ int) string {
		return strings.ToLower(strings.TrimSpace(p))
	})))
}

// ConfigFile represents the JSON structure for file-based configuration
// FUNCTIONAL DISCOVERY: Separate struct for JSON parsing to handle duration strings
type ConfigFile struct {
	HTTP        *HTTPConfigFile        `json:"http"`
	WebSocket   *WebSocketConfigFile   `json:"websocket"`
	Translation *TranslationConfigFile `json:"translation"`
	Database    *DatabaseConfigFile    `json:"database"`
	Logging     *LoggingConfig         `json:"logging"`
	RateLimit   *RateLimitConfigFile   `json:"rate_limit"`
}

type HTTPConfigFile struct {
	Port            *int   `json:"port"`
	Host            string `json:"host"`
	ReadTimeout     string `json:"read_timeout"`
	WriteTimeout    string `json:"write_timeout"`
	ShutdownTimeout string `json:"shutdown_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval   string `json:"ping_interval"`
	ReadTimeout    string `json:"read_timeout"`
	WriteTimeout   string `json:"write_timeout"`
	BufferSize     int    `json:"buffer_size"`
	InboxSize      int    `json:"inbox_size"`
	MaxMessageSize int64  `json:"max_message_size"`
}

type TranslationConfigFile struct {
	Backend                 string            `json:"backend"`
	Endpoint                string            `json:"endpoint"`
	RequestTimeout          string            `json:"request_timeout"`
	Timeout                 string            `json:"timeout"`
	MaxConcurrent           int               `json:"max_concurrent"`
	DetectSource            *bool             `json:"detect_source"`
	ReferenceLanguage       string            `json:"reference_language"`
	Languages               []string          `json:"languages"`
	DefaultTravelerLanguage string            `json:"default_traveler_language"`
	ModelTemplate           *string           `json:"model_template"`
	Models                  map[string]string `json:"models"`
}

type DatabaseConfigFile struct {
	Enabled        *bool  `json:"enabled"`
	Path           string `json:"path"`
	Timeout        string `json:"timeout"`
	MaxConnections int    `json:"max_connections"`
}

type RateLimitConfigFile struct {
	MessagesPerMinute *int `json:"messages_per_minute"`
}

// LoadFromFile overlays a JSON file onto config. Durations are Go duration strings.
func LoadFromFile(filepath string, config *Config) error {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	if err := file.apply(config); err != nil {
		return fmt.Errorf("invalid value in %s: %w", filepath, err)
	}
	return nil
}

func (f *ConfigFile) apply(c *Config) error {
	var errs []error
	duration := func(dst *time.Duration, name, raw string) {
		if raw == "" {
			return
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		*dst = d
	}

	if h := f.HTTP; h != nil {
		if h.Port != nil {
			c.HTTP.Port = *h.Port
		}
		setIf(&c.HTTP.Host, h.Host)
		duration(&c.HTTP.ReadTimeout, "http.read_timeout", h.ReadTimeout)
		duration(&c.HTTP.WriteTimeout, "http.write_timeout", h.WriteTimeout)
		duration(&c.HTTP.ShutdownTimeout, "http.shutdown_timeout", h.ShutdownTimeout)
	}

	if w := f.WebSocket; w != nil {
		duration(&c.WebSocket.PingInterval, "websocket.ping_interval", w.PingInterval)
		duration(&c.WebSocket.ReadTimeout, "websocket.read_timeout", w.ReadTimeout)
		duration(&c.WebSocket.WriteTimeout, "websocket.write_timeout", w.WriteTimeout)
		setIf(&c.WebSocket.BufferSize, w.BufferSize)
		setIf(&c.WebSocket.InboxSize, w.InboxSize)
		setIf(&c.WebSocket.MaxMessageSize, w.MaxMessageSize)
	}

	if t := f.Translation; t != nil {
		setIf(&c.Translation.Backend, t.Backend)
		setIf(&c.Translation.Endpoint, t.Endpoint)
		duration(&c.Translation.RequestTimeout, "translation.request_timeout", t.RequestTimeout)
		duration(&c.Translation.Timeout, "translation.timeout", t.Timeout)
		setIf(&c.Translation.MaxConcurrent, t.MaxConcurrent)
		setIf(&c.Translation.ReferenceLanguage, t.ReferenceLanguage)
		setIf(&c.Translation.DefaultTravelerLanguage, t.DefaultTravelerLanguage)
		if t.DetectSource != nil {
			c.Translation.DetectSource = *t.DetectSource
		}
		if len(t.Languages) > 0 {
			c.Translation.Languages = t.Languages
		}
		if t.ModelTemplate != nil {
			c.Translation.ModelTemplate = *t.ModelTemplate
		}
		if len(t.Models) > 0 {
			c.Translation.Models = t.Models
		}
	}

	if d := f.Database; d != nil {
		if d.Enabled != nil {
			c.Database.Enabled = *d.Enabled
		}
		setIf(&c.Database.Path, d.Path)
		duration(&c.Database.Timeout, "database.timeout", d.Timeout)
		setIf(&c.Database.MaxConnections, d.MaxConnections)
	}

	if f.Logging != nil {
		setIf(&c.Logging.Level, f.Logging.Level)
	}

	if f.RateLimit != nil && f.RateLimit.MessagesPerMinute != nil {
		c.RateLimit.MessagesPerMinute = *f.RateLimit.MessagesPerMinute
	}

	return errors.Join(errs...)
}

// Load builds the runtime configuration.
// FUNCTIONAL DISCOVERY: Configuration precedence: file > environment > .env > defaults.
// filepath wins over LINGORELAY_CONFIG_FILE.
func Load(filepath string) (*Config, error) {
	config := DefaultConfig()

	e, err := LoadFromEnv(config)
	if err != nil {
		return nil, err
	}

	if filepath == "" {
		filepath = e.ConfigFile
	}
	if filepath != "" {
		if err := LoadFromFile(filepath, config); err != nil {
			return nil, err
		}
	}

	// ARCHITECTURAL DISCOVERY: Validate configuration after loading to catch errors early
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
