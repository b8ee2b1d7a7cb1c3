package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Lookup resolves a secret by name. A NAME_FILE variable wins over NAME so
// that credentials can be mounted as files (/run/secrets/...). Returns
// fallback when neither is set.
func Lookup(name, fallback string) (string, error) {
	if path := os.Getenv(name + "_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read secret file %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if value := os.Getenv(name); value != "" {
		return value, nil
	}

	return fallback, nil
}

// Optional is Lookup that swallows file errors and falls back instead.
func Optional(name, fallback string) string {
	value, err := Lookup(name, fallback)
	if err != nil {
		return fallback
	}
	return value
}

// Override replaces *dst with the secret when one is configured.
func Override(dst *string, name string) error {
	value, err := Lookup(name, "")
	if err != nil {
		return err
	}
	if value != "" {
		*dst = value
	}
	return nil
}
