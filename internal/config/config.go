package config

import (
	"encoding/base64"
	"fmt"
)

type Config struct {
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	// PortRetries bounds the fallback scan when the configured port is
	// already taken.
	PortRetries int
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}

	return base64.StdEncoding.DecodeString(base64Secret)
}

func NewConfig(serverAddr, base64Secret string, allowedOrigins []string, portRetries int) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if portRetries < 0 {
		return nil, fmt.Errorf("port retries cannot be negative")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}

	return &Config{
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		PortRetries:    portRetries,
	}, nil
}
