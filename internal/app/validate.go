package app

import (
	"fmt"
	"os"

	"dialogd/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the loaded
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(cfg *config.Config, dbPath string) error {
	// DB path must be present
	if dbPath == "" {
		return fmt.Errorf("database path is empty: set --db flag, DIALOGD_DB_PATH env, or server.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := cfg.Server.TLS.CertFile
	key := cfg.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	// API access always requires keys; refuse to start wide open.
	keys := len(cfg.Security.APIKeys.Backend) + len(cfg.Security.APIKeys.Frontend) + len(cfg.Security.APIKeys.Admin)
	if keys == 0 {
		return fmt.Errorf("no API keys configured: set security.api_keys or DIALOGD_API_*_KEYS env")
	}

	if cfg.Limits.MaxMessageBytes < 0 {
		return fmt.Errorf("limits.max_message_bytes must not be negative")
	}

	return nil
}
