package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	GRPC           GRPCConfig           `mapstructure:"grpc"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Mongo          MongoConfig          `mapstructure:"mongo"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Messaging      MessagingConfig      `mapstructure:"messaging"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Vault          VaultConfig          `mapstructure:"vault"`
	OpenAI         OpenAIConfig         `mapstructure:"openai"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	Anthropic      AnthropicConfig      `mapstructure:"anthropic"`
	GoogleSpeech   GoogleSpeechConfig   `mapstructure:"google_speech"`
	Transcriber    TranscriberConfig    `mapstructure:"transcriber"`
	Classifier     ClassifierConfig     `mapstructure:"classifier"`
	Orchestrator   OrchestratorConfig   `mapstructure:"orchestrator"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Calendar       CalendarConfig       `mapstructure:"calendar"`
	Notification   NotificationConfig   `mapstructure:"notification"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	RateLimiting   RateLimitingConfig   `mapstructure:"rate_limiting"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Cache          CacheConfig          `mapstructure:"cache"`
	Region         RegionConfig         `mapstructure:"region"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type GRPCConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	Port           int  `mapstructure:"port"`
	MaxConnections int  `mapstructure:"max_connections"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type MessagingConfig struct {
	Driver       string `mapstructure:"driver"` // nats, rabbitmq, memory, none
	URL          string `mapstructure:"url"`
	TurnsSubject string `mapstructure:"turns_subject"`
}

type JWTConfig struct {
	Secret               string        `mapstructure:"secret"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration"`
	Issuer               string        `mapstructure:"issuer"`
	Audience             string        `mapstructure:"audience"`
}

type VaultConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
}

type OpenAIConfig struct {
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	ClassifierModel    string        `mapstructure:"classifier_model"`
	TranscriptionModel string        `mapstructure:"transcription_model"`
	TTSModel           string        `mapstructure:"tts_model"`
	TTSVoice           string        `mapstructure:"tts_voice"`
	SpeechEnabled      bool          `mapstructure:"speech_enabled"`
	Timeout            time.Duration `mapstructure:"timeout"`
}

type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

type AnthropicConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type GoogleSpeechConfig struct {
	Language   string `mapstructure:"language"`
	SampleRate int    `mapstructure:"sample_rate"`
}

type TranscriberConfig struct {
	Provider string `mapstructure:"provider"` // openai, google
}

type ClassifierConfig struct {
	Provider      string  `mapstructure:"provider"` // openai, gemini, anthropic
	MinConfidence float64 `mapstructure:"min_confidence"`
	HistoryTurns  int     `mapstructure:"history_turns"`
}

type OrchestratorConfig struct {
	MaxClarificationRounds int           `mapstructure:"max_clarification_rounds"`
	LockTTL                time.Duration `mapstructure:"lock_ttl"`
	Timeouts               StageTimeouts `mapstructure:"timeouts"`
}

type StageTimeouts struct {
	Transcription  time.Duration `mapstructure:"transcription"`
	Classification time.Duration `mapstructure:"classification"`
	Tool           time.Duration `mapstructure:"tool"`
	Synthesis      time.Duration `mapstructure:"synthesis"`
	Persistence    time.Duration `mapstructure:"persistence"`
}

type LedgerConfig struct {
	Driver      string        `mapstructure:"driver"` // postgres, mongo
	HistorySize int           `mapstructure:"history_size"`
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
}

type CalendarConfig struct {
	Provider          string        `mapstructure:"provider"` // google, none
	CredentialsFile   string        `mapstructure:"credentials_file"`
	CredentialsJSON   string        `mapstructure:"credentials_json"`
	DelegatedUser     string        `mapstructure:"delegated_user"`
	CalendarID        string        `mapstructure:"calendar_id"`
	DefaultWindowDays int           `mapstructure:"default_window_days"`
	MaxResults        int           `mapstructure:"max_results"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelay        time.Duration `mapstructure:"retry_delay"`
	SyncEvents        bool          `mapstructure:"sync_events"`
}

type NotificationConfig struct {
	Pushover PushoverConfig `mapstructure:"pushover"`
	Email    EmailConfig    `mapstructure:"email"`
}

type PushoverConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	AppToken     string        `mapstructure:"app_token"`
	UserKey      string        `mapstructure:"user_key"`
	DefaultTitle string        `mapstructure:"default_title"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type EmailConfig struct {
	Provider       string `mapstructure:"provider"` // sendgrid, smtp
	APIKey         string `mapstructure:"api_key"`
	From           string `mapstructure:"from"`
	FromName       string `mapstructure:"from_name"`
	DefaultSubject string `mapstructure:"default_subject"`
	SMTPHost       string `mapstructure:"smtp_host"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	SMTPUser       string `mapstructure:"smtp_user"`
	SMTPPassword   string `mapstructure:"smtp_password"`
	SMTPUseTLS     bool   `mapstructure:"smtp_use_tls"`
}

type OpenTelemetryConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Jaeger      JaegerConfig      `mapstructure:"jaeger"`
	ServiceName string            `mapstructure:"service_name"`
	Attributes  map[string]string `mapstructure:"attributes"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level    string          `mapstructure:"level"`
	Format   string          `mapstructure:"format"`
	Output   string          `mapstructure:"output"`
	Sampling LoggingSampling `mapstructure:"sampling"`
}

type LoggingSampling struct {
	Enabled    bool `mapstructure:"enabled"`
	Initial    int  `mapstructure:"initial"`
	Thereafter int  `mapstructure:"thereafter"`
}

type RateLimitingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	ByUser      bool          `mapstructure:"by_user"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

type CacheConfig struct {
	AudioTTL        time.Duration `mapstructure:"audio_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type RegionConfig struct {
	Timezone string `mapstructure:"timezone"`
	Locale   string `mapstructure:"locale"`
}
