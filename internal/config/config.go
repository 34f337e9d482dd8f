package config

import "time"

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Session   SessionConfig   `yaml:"session"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	CORS      CORSConfig      `yaml:"cors"`
}

type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
}

type UpstreamConfig struct {
	BaseURL      string  `yaml:"base_url"`
	APIKey       string  `yaml:"api_key"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	// BufferedStreams forces the buffered-under-the-hood relay mode for
	// callers that request streaming.
	BufferedStreams bool `yaml:"buffered_streams"`
}

type SessionConfig struct {
	// Secret signs session tokens. When empty a random secret is generated
	// per boot and all sessions are invalidated on restart.
	Secret       string `yaml:"secret"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

type OAuthConfig struct {
	Providers map[string]OAuthProviderConfig `yaml:"providers"`
}

type OAuthProviderConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	UserInfoURL  string   `yaml:"userinfo_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

type RateLimitConfig struct {
	// UserPerMinute caps each identity (or each address when anonymous).
	UserPerMinute int `yaml:"user_per_minute"`
	// AnonPerMinute caps each address regardless of identity. Keep it below
	// UserPerMinute.
	AnonPerMinute int `yaml:"anon_per_minute"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type TelemetryConfig struct {
	LogLevel    string `yaml:"log_level"`
	MetricsPort int    `yaml:"metrics_port"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     120 * time.Second,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 30 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:      "https://router.huggingface.co/v1",
			Model:        "deepseek-ai/DeepSeek-V3.2-Exp",
			SystemPrompt: "你是hypvegpt",
			MaxTokens:    1024,
			Temperature:  0.7,
		},
		RateLimit: RateLimitConfig{
			UserPerMinute: 30,
			AnonPerMinute: 10,
		},
		Redis: RedisConfig{
			PoolSize: 50,
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			MetricsPort: 9090,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
	}
}
