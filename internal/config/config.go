package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	SiteID string `mapstructure:"site_id"`

	HTTP      HTTPConfig      `mapstructure:"http"`
	DB        DBConfig        `mapstructure:"db"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Gradebook GradebookConfig `mapstructure:"gradebook"`
	Log       LogConfig       `mapstructure:"log"`
	Retry     RetryConfig     `mapstructure:"retry"`
}

type HTTPConfig struct {
	Addr        string   `mapstructure:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DBConfig struct {
	Driver string `mapstructure:"driver"` // sqlite|postgres
	DSN    string `mapstructure:"dsn"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"` // optional; checked when set
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"` // empty: in-process locking
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type AMQPConfig struct {
	URL      string `mapstructure:"url"` // empty: no event consumer or publisher
	Exchange string `mapstructure:"exchange"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

type GradebookConfig struct {
	BaseURL      string        `mapstructure:"base_url"` // empty: passback disabled
	TokenURL     string        `mapstructure:"token_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Scopes       []string      `mapstructure:"scopes"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
	Dev   bool   `mapstructure:"dev"`
}

type RetryConfig struct {
	Attempts int           `mapstructure:"attempts"`
	Backoff  time.Duration `mapstructure:"backoff"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site_id", "local")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "10s")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "completion")
	v.SetDefault("amqp.queue", "completion.activity")
	v.SetDefault("amqp.prefetch", 16)
	v.SetDefault("gradebook.base_url", "")
	v.SetDefault("gradebook.token_url", "")
	v.SetDefault("gradebook.client_id", "")
	v.SetDefault("gradebook.client_secret", "")
	v.SetDefault("gradebook.scopes", []string{})
	v.SetDefault("gradebook.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.dev", false)
	v.SetDefault("retry.attempts", 5)
	v.SetDefault("retry.backoff", "20ms")
}

// Load reads defaults, then config.yaml from dir (optional), then COMPLETION_* env vars.
// Nested keys map to env with underscores, e.g. COMPLETION_DB_DRIVER.
func Load(dir string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("COMPLETION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.HTTP.CORSOrigins = cleanList(cfg.HTTP.CORSOrigins)
	cfg.Gradebook.Scopes = cleanList(cfg.Gradebook.Scopes)
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db driver %q", c.DB.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret required (COMPLETION_JWT_SECRET)")
	}
	if c.Gradebook.BaseURL != "" && c.Gradebook.TokenURL == "" {
		return errors.New("gradebook token url required when passback is enabled")
	}
	return nil
}

// env lists come in as one comma separated string
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
