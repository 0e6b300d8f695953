package secretstore

import (
	"fmt"

	"github.com/systmms/sbomflow/internal/config"
)

// supportedTypes lists the secret store backends this build knows about.
var supportedTypes = map[string]bool{
	"aws.ssm":            true,
	"aws.secretsmanager": true,
	"memory":             true,
}

// FromConfig creates a secret store instance from configuration.
func FromConfig(cfg config.SecretStoreConfig) (Store, error) {
	if !supportedTypes[cfg.Type] {
		return nil, fmt.Errorf("unknown secret store type: %s", cfg.Type)
	}

	switch cfg.Type {
	case "aws.ssm":
		return NewParameterStore(cfg.Config)
	case "aws.secretsmanager":
		return NewSecretsManagerStore(cfg.Config)
	case "memory":
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown secret store type: %s", cfg.Type)
}

// IsSupported reports whether the given store type is available.
func IsSupported(storeType string) bool {
	return supportedTypes[storeType]
}
