package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"

	"docgpt-backend/internal/config"
	"docgpt-backend/internal/storage"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// NewUploadProvider builds the object store uploads are kept in.
func NewUploadProvider(ctx context.Context, cfg *config.Config) (storage.Provider, error) {
	switch cfg.UploadStorage {
	case "local":
		return storage.NewLocalProvider(cfg.UploadDir)
	case "s3":
		return storage.NewS3Provider(ctx, storage.S3ProviderConfig{
			S3EndpointURL:     cfg.S3EndpointURL,
			S3AccessKeyID:     cfg.S3AccessKeyID,
			S3SecretAccessKey: cfg.S3SecretAccessKey,
			S3Region:          cfg.S3Region,
		})
	default:
		return nil, fmt.Errorf("invalid upload storage '%s'", cfg.UploadStorage)
	}
}
