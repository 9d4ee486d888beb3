package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/hvac-owl/internal/domain/channels"
)

type Config struct {
	Server struct {
		Port            int      `yaml:"port"`
		ReadTimeout     Duration `yaml:"readTimeout"`
		WriteTimeout    Duration `yaml:"writeTimeout"`
		ShutdownTimeout Duration `yaml:"shutdownTimeout"`
		CORSOrigins     []string `yaml:"corsOrigins"`
		APIKeys         []string `yaml:"apiKeys"`
		RateLimit       struct {
			Requests int      `yaml:"requests"`
			Window   Duration `yaml:"window"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	OpenAI struct {
		APIKey    string `yaml:"apiKey"`
		BaseURL   string `yaml:"baseURL"`
		Model     string `yaml:"model"`
		OwlModel  string `yaml:"owlModel"`
		MaxTokens int    `yaml:"maxTokens"`
	} `yaml:"openai"`

	Analysis struct {
		UploadDir    string   `yaml:"uploadDir"`
		MaxFiles     int      `yaml:"maxFiles"`
		MaxFileSize  int64    `yaml:"maxFileSize"`
		AllowedTypes []string `yaml:"allowedTypes"`
		Timeout      Duration `yaml:"timeout"`
		Concurrency  int      `yaml:"concurrency"`
		PromptsFile  string   `yaml:"promptsFile"`
	} `yaml:"analysis"`

	Slack struct {
		BotToken     string `yaml:"botToken"`
		APIURL       string `yaml:"apiURL"`
		HistoryLimit int    `yaml:"historyLimit"`
		RecapDays    int    `yaml:"recapDays"`
		MaxRetries   int    `yaml:"maxRetries"`
	} `yaml:"slack"`

	Owl struct {
		Channels   string `yaml:"channels"` // "name=ID,name2=ID2"
		Schedule   string `yaml:"schedule"` // cron spec, empty = disabled
		PostDigest bool   `yaml:"postDigest"`
	} `yaml:"owl"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | memory
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	App struct {
		Env         string `yaml:"env"`
		VersionFile string `yaml:"versionFile"`
	} `yaml:"app"`
}

// Duration accepts "90s" style strings in yaml
type Duration time.Duration

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load baca file config.yaml; file boleh tidak ada, env tetap dipakai
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}
	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	setString(&c.App.Env, "APP_ENV", "NODE_ENV")
	setString(&c.Owl.Channels, "PROJECT_CHANNELS")
	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.URL, "DATABASE_URL")

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = p
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(30 * time.Second)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(120 * time.Second)
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.Server.RateLimit.Requests == 0 {
		c.Server.RateLimit.Requests = 10
	}
	if c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = Duration(time.Minute)
	}
	if c.OpenAI.OwlModel == "" {
		c.OpenAI.OwlModel = c.OpenAI.Model
	}
	if c.Analysis.UploadDir == "" {
		c.Analysis.UploadDir = os.TempDir()
	}
	if c.Analysis.Timeout == 0 {
		c.Analysis.Timeout = Duration(90 * time.Second)
	}
	if c.Analysis.Concurrency == 0 {
		c.Analysis.Concurrency = 3
	}
	if c.Slack.HistoryLimit == 0 {
		c.Slack.HistoryLimit = 100
	}
	if c.Slack.RecapDays == 0 {
		c.Slack.RecapDays = 14
	}
	if c.Slack.MaxRetries == 0 {
		c.Slack.MaxRetries = 3
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.App.Env == "" {
		c.App.Env = "development"
	}
	if c.App.VersionFile == "" {
		c.App.VersionFile = "version.json"
	}
}

// IsProduction hides error details from clients
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "production")
}

// ProjectChannels channel list used by GET /api/channels and the sync job
func (c *Config) ProjectChannels() []channels.ProjectChannel {
	return channels.ParseProjectChannels(c.Owl.Channels)
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN key=value DSN for lib/pq
func (c *Config) PostgresDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	ssl := c.Database.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		ssl,
	)
}
