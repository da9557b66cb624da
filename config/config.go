package config

import (
	"encoding/base64"
	"fmt"
	"os"
)

// The signing secret must survive brute-force against HS256; anything
// shorter than 32 bytes is refused outright.
const MinJWTSecretBytes = 32

type Config struct {
	FigmaClientID     string
	FigmaClientSecret string
	FigmaRedirectURI  string
	// StateSeed is the legacy static OAuth state. It is still required at
	// startup but superseded by the per-request state nonce.
	StateSeed string

	JWTSecret   []byte
	FrontendURL string

	DevMode  bool
	HostPort string

	DynamoDBEndpoint  string
	DynamoDBTable     string
	RedisEndpoint     string
	SQSEndpoint       string
	InvalidationQueue string
}

// Load reads process configuration from the environment. Any missing or
// invalid required value is an error; the caller is expected to treat it
// as fatal, there is no degraded mode without OAuth credentials or a
// signing secret.
func Load() (Config, error) {
	cfg := Config{
		FigmaClientID:     os.Getenv("BAI_FIGMA_CLIENT_ID"),
		FigmaClientSecret: os.Getenv("BAI_FIGMA_CLIENT_SECRET"),
		FigmaRedirectURI:  os.Getenv("BAI_FIGMA_REDIRECT_URI"),
		StateSeed:         os.Getenv("BAI_FIGMA_STATE"),
		FrontendURL:       os.Getenv("BAI_FRONTEND_URL"),
		DevMode:           os.Getenv("DEV_MODE") == "true",
		HostPort:          os.Getenv("HOST_PORT"),
		DynamoDBEndpoint:  os.Getenv("DYNAMODB_ENDPOINT"),
		DynamoDBTable:     os.Getenv("DYNAMODB_TABLE"),
		RedisEndpoint:     os.Getenv("REDIS_ENDPOINT"),
		SQSEndpoint:       os.Getenv("SQS_ENDPOINT"),
		InvalidationQueue: os.Getenv("BAI_INVALIDATION_QUEUE"),
	}

	required := map[string]string{
		"BAI_FIGMA_CLIENT_ID":     cfg.FigmaClientID,
		"BAI_FIGMA_CLIENT_SECRET": cfg.FigmaClientSecret,
		"BAI_FIGMA_REDIRECT_URI":  cfg.FigmaRedirectURI,
		"BAI_FIGMA_STATE":         cfg.StateSeed,
		"BAI_FRONTEND_URL":        cfg.FrontendURL,
	}
	for name, value := range required {
		if value == "" {
			return Config{}, fmt.Errorf("missing required environment variable %s", name)
		}
	}

	rawSecret := os.Getenv("BAI_JWT_SECRET")
	if rawSecret == "" {
		return Config{}, fmt.Errorf("missing required environment variable BAI_JWT_SECRET")
	}
	secret, err := base64.StdEncoding.DecodeString(rawSecret)
	if err != nil {
		return Config{}, fmt.Errorf("BAI_JWT_SECRET is not valid base64: %w", err)
	}
	if len(secret) < MinJWTSecretBytes {
		return Config{}, fmt.Errorf("BAI_JWT_SECRET must decode to at least %d bytes, got %d", MinJWTSecretBytes, len(secret))
	}
	cfg.JWTSecret = secret

	if cfg.HostPort == "" {
		cfg.HostPort = "8080"
	}
	if cfg.DynamoDBTable == "" {
		cfg.DynamoDBTable = "FigmaProxy"
	}

	return cfg, nil
}
