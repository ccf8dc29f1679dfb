package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrMissingCredential = errors.New("missing language model credential")

type Config struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	DatabaseURL    string        `env:"DATABASE_URL" envDefault:"docgpt.db"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5m"`
	SecureCookies  bool          `env:"SECURE_COOKIES" envDefault:"false"`

	UploadDir     string `env:"UPLOAD_DIR" envDefault:"."`
	UploadStorage string `env:"UPLOAD_STORAGE" envDefault:"local"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	SessionSecret    string        `env:"SESSION_SECRET,notEmpty,required"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SessionCacheSize int           `env:"SESSION_CACHE_SIZE" envDefault:"256"`

	AgentBackend     string `env:"AGENT_BACKEND" envDefault:"langchain"`
	AgentModel       string `env:"AGENT_MODEL" envDefault:"gpt-4o-mini"`
	ProviderKeyEnv   string `env:"AGENT_PROVIDER_KEY_ENV" envDefault:"OPENAI_API_KEY"`
	ProviderEndpoint string `env:"AGENT_PROVIDER_ENDPOINT"`

	SiteAttempts    int           `env:"SITE_ATTEMPTS" envDefault:"5"`
	SiteRetryDelay  time.Duration `env:"SITE_RETRY_DELAY" envDefault:"3s"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	YoutubeLanguage string        `env:"YOUTUBE_LANGUAGE" envDefault:"pt"`
	PdfParser       string        `env:"PDF_PARSER" envDefault:"fitz"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	switch cfg.UploadStorage {
	case "local":
	case "s3":
		if cfg.S3AccessKeyID == "" || cfg.S3SecretAccessKey == "" {
			log.Println("Warning: UPLOAD_STORAGE is s3, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing.")
		}
	default:
		return nil, fmt.Errorf("invalid UPLOAD_STORAGE '%s': expected local or s3", cfg.UploadStorage)
	}

	if cfg.SiteAttempts < 1 {
		return nil, fmt.Errorf("SITE_ATTEMPTS must be at least 1, got %d", cfg.SiteAttempts)
	}

	return &cfg, nil
}

// ProviderKey reads the language model API key from the process environment.
// It is looked up each time a chat is bound rather than once at start up.
func ProviderKey(name string) (string, error) {
	key := strings.TrimSpace(os.Getenv(name))
	if key == "" {
		return "", fmt.Errorf("%w: environment variable %s is not set", ErrMissingCredential, name)
	}
	return key, nil
}
