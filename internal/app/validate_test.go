package app

import (
	"strings"
	"testing"

	"dialogd/pkg/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Security.APIKeys.Backend = []string{"bk"}
	return cfg
}

func TestValidateConfig(t *testing.T) {
	if err := validateConfig(baseConfig(), "/tmp/db"); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestValidateConfigEmptyDBPath(t *testing.T) {
	err := validateConfig(baseConfig(), "")
	if err == nil || !strings.Contains(err.Error(), "database path") {
		t.Fatalf("expected db path error, got %v", err)
	}
}

func TestValidateConfigHalfTLS(t *testing.T) {
	cfg := baseConfig()
	cfg.Server.TLS.CertFile = "/etc/tls/cert.pem"
	err := validateConfig(cfg, "/tmp/db")
	if err == nil || !strings.Contains(err.Error(), "TLS") {
		t.Fatalf("expected TLS error, got %v", err)
	}
}

func TestValidateConfigNoKeys(t *testing.T) {
	err := validateConfig(&config.Config{}, "/tmp/db")
	if err == nil || !strings.Contains(err.Error(), "API keys") {
		t.Fatalf("expected key error, got %v", err)
	}
}

func TestValidateConfigNegativeLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.Limits.MaxMessageBytes = -1
	if err := validateConfig(cfg, "/tmp/db"); err == nil {
		t.Fatalf("expected limit error")
	}
}
