package config

import (
	"log/slog"
	"strings"

	"github.com/zalando/go-keyring"
)

// SecretStore resolves named secrets that should not live in the settings file.
type SecretStore interface {
	Secret(account string) string
}

// KeyringStore reads secrets from the OS keyring under KeyringService.
type KeyringStore struct {
	Service string
}

// NewKeyringStore returns a store bound to the application keyring service.
func NewKeyringStore() KeyringStore {
	return KeyringStore{Service: KeyringService}
}

// Secret returns the stored value, or "" when absent or the keyring is unavailable
// (headless servers commonly have no secret service).
func (k KeyringStore) Secret(account string) string {
	v, err := keyring.Get(k.Service, account)
	if err != nil {
		slog.Debug(MsgSecretMissing,
			LogKeyComponent, CompConfig,
			LogKeySecret, account,
			LogKeyError, err,
		)
		return ""
	}
	return v
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" becomes "jo***@example.com".
func RedactEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "***@***"
	}
	name := parts[0]
	if len(name) > 2 {
		return name[:2] + "***@" + parts[1]
	}
	return "***@" + parts[1]
}
