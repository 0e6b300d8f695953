// Package credentials owns the lifecycle of the secrets the pipeline needs
// to talk to the analyzer: the administrative password and the Automation
// team's API key. Both are bootstrapped on first use and rotated on demand,
// with the secret store as the single source of truth.
package credentials

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/systmms/sbomflow/internal/analyzer"
	pipelineerrors "github.com/systmms/sbomflow/internal/errors"
	"github.com/systmms/sbomflow/internal/logging"
	"github.com/systmms/sbomflow/internal/metrics"
	"github.com/systmms/sbomflow/internal/secretstore"
)

// Secret names in the store. Fixed so concurrent execution units converge
// on the same values.
const (
	APIKeySecretName        = "DT_API_KEY"
	AdminPasswordSecretName = "DT_ROOT_PWD"
)

const generatedPasswordLength = 32

// Manager bootstraps, retrieves, and rotates the analyzer credentials. It
// implements analyzer.KeySource.
type Manager struct {
	store           secretstore.Store
	client          *analyzer.Client
	adminUser       string
	defaultPassword string
	logger          *logging.Logger
	metrics         *metrics.PipelineMetrics
}

// NewManager creates a credential lifecycle manager. defaultPassword is the
// analyzer's well-known out-of-the-box admin password, consumed exactly
// once during admin rotation.
func NewManager(store secretstore.Store, client *analyzer.Client, adminUser, defaultPassword string, logger *logging.Logger) *Manager {
	return &Manager{
		store:           store,
		client:          client,
		adminUser:       adminUser,
		defaultPassword: defaultPassword,
		logger:          logger,
		metrics:         metrics.NewPipelineMetrics(),
	}
}

// APIKey returns the current automation API key. If the store has no key
// yet (absent or the EMPTY placeholder), the one-time bootstrap discovers
// the Automation team's default key, elevates its permissions, and
// persists it. A populated store answers without any network call.
func (m *Manager) APIKey(ctx context.Context) (string, error) {
	value, err := m.store.Get(ctx, APIKeySecretName)
	switch {
	case err == nil && value != secretstore.Empty:
		return value, nil
	case err != nil && !secretstore.IsNotFound(err):
		return "", err
	}
	return m.bootstrapAPIKey(ctx)
}

// RotateAPIKey asks the analyzer to rotate the current key, persists the
// replacement, and returns it. The old key is no longer accepted once this
// returns.
func (m *Manager) RotateAPIKey(ctx context.Context) (string, error) {
	oldKey, err := m.APIKey(ctx)
	if err != nil {
		return "", err
	}

	jwt, err := m.AdminToken(ctx)
	if err != nil {
		return "", err
	}

	newKey, err := m.client.RotateKey(ctx, jwt, oldKey)
	if err != nil {
		return "", err
	}

	if err := m.store.Put(ctx, APIKeySecretName, newKey); err != nil {
		// The analyzer already invalidated the old key. The replacement is
		// logged in the clear so an operator can write it into the store by
		// hand; it is unrecoverable otherwise.
		m.logger.Error("automation API key rotated on the analyzer but not persisted; store it manually as %s: %s", APIKeySecretName, newKey)
		return "", err
	}

	m.metrics.RecordKeyRotation()
	m.logger.Info("rotated automation API key: %s", logging.Secret(newKey))
	return newKey, nil
}

// AdminPassword returns the analyzer's admin password, performing the
// one-time rotation away from the well-known default if the store holds
// nothing yet. The rotation is an explicit provision-then-re-read; it
// terminates in one extra lookup under correct operation.
func (m *Manager) AdminPassword(ctx context.Context) (string, error) {
	value, err := m.store.Get(ctx, AdminPasswordSecretName)
	switch {
	case err == nil && value != secretstore.Empty:
		return value, nil
	case err != nil && !secretstore.IsNotFound(err):
		return "", err
	}

	if err := m.rotateAdminPassword(ctx); err != nil {
		return "", err
	}

	// Re-read as a self-consistency check against the store actually
	// holding what was just written.
	value, err = m.store.Get(ctx, AdminPasswordSecretName)
	if err != nil {
		return "", err
	}
	if value == secretstore.Empty {
		return "", pipelineerrors.SecretStoreError{
			Name: AdminPasswordSecretName,
			Op:   "get",
			Err:  fmt.Errorf("admin password still unpopulated after rotation"),
		}
	}
	return value, nil
}

// AdminToken resolves the admin password (rotating first if needed) and
// exchanges it for a session token. Tokens are never persisted; the
// analyzer's sessions are treated as non-durable.
func (m *Manager) AdminToken(ctx context.Context) (string, error) {
	password, err := m.AdminPassword(ctx)
	if err != nil {
		return "", err
	}
	return m.client.Login(ctx, m.adminUser, password)
}

// bootstrapAPIKey performs the one-time Automation key provisioning.
func (m *Manager) bootstrapAPIKey(ctx context.Context) (string, error) {
	m.logger.Info("no automation API key in the store, bootstrapping")

	jwt, err := m.AdminToken(ctx)
	if err != nil {
		return "", err
	}

	teams, err := m.client.Teams(ctx, jwt)
	if err != nil {
		return "", err
	}

	team, err := findAutomationTeam(teams)
	if err != nil {
		return "", err
	}

	key := team.APIKeys[0].Key
	for _, permission := range analyzer.AutomationPermissions {
		if err := m.client.GrantTeamPermission(ctx, jwt, permission, team.UUID); err != nil {
			return "", err
		}
	}

	if err := m.store.Put(ctx, APIKeySecretName, key); err != nil {
		return "", err
	}

	m.metrics.RecordBootstrap()
	m.logger.Info("bootstrapped automation API key for team %s", team.UUID)
	return key, nil
}

// rotateAdminPassword replaces the well-known default admin password with a
// fresh random credential and persists it.
func (m *Manager) rotateAdminPassword(ctx context.Context) error {
	m.logger.Info("admin password unpopulated, rotating away from the default")

	newPassword, err := generateCredential(generatedPasswordLength)
	if err != nil {
		return err
	}

	if err := m.client.ForceChangePassword(ctx, m.adminUser, m.defaultPassword, newPassword); err != nil {
		return err
	}

	return m.store.Put(ctx, AdminPasswordSecretName, newPassword)
}

// findAutomationTeam locates the Automation team in the listing. Its
// absence is a fatal misconfiguration, not a retryable failure.
func findAutomationTeam(teams []analyzer.Team) (analyzer.Team, error) {
	for _, team := range teams {
		if team.Name != analyzer.AutomationTeamName {
			continue
		}
		if len(team.APIKeys) == 0 {
			return analyzer.Team{}, pipelineerrors.ConfigurationError{
				Message:    fmt.Sprintf("the %s team has no API keys", analyzer.AutomationTeamName),
				Suggestion: "Generate an API key for the Automation team in the analyzer",
			}
		}
		return team, nil
	}
	return analyzer.Team{}, pipelineerrors.ConfigurationError{
		Message:    fmt.Sprintf("no team named %q exists in the analyzer", analyzer.AutomationTeamName),
		Suggestion: "Create the Automation team before starting the pipeline",
	}
}

// generateCredential creates a cryptographically random credential drawn
// from an alphanumeric charset.
func generateCredential(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	randomBytes := make([]byte, length)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	credential := make([]byte, length)
	for i := range randomBytes {
		credential[i] = charset[randomBytes[i]%byte(len(charset))]
	}
	return string(credential), nil
}
