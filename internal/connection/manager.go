// Package connection manages users' OAuth connections to job boards: storing
// encrypted tokens, refreshing them and tracking connection health.
package connection

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/jobboard"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/oauth"
	"github.com/sells-group/jobsearch-cli/internal/registry"
	"github.com/sells-group/jobsearch-cli/internal/store"
	"github.com/sells-group/jobsearch-cli/internal/vault"
)

var (
	// ErrConnectionNotFound is returned for missing connections or ones owned
	// by another user.
	ErrConnectionNotFound = eris.New("connection: not found")
	// ErrNoRefreshToken is returned when refreshing a connection that has no
	// stored refresh token.
	ErrNoRefreshToken = eris.New("connection: no refresh token")
)

// Store is the persistence the manager needs.
type Store interface {
	UpsertConnection(ctx context.Context, conn *model.Connection) error
	GetConnection(ctx context.Context, id string) (*model.Connection, error)
	ListConnections(ctx context.Context, userID string) ([]model.Connection, error)
	SaveConnectionTokens(ctx context.Context, conn *model.Connection) error
	RevokeConnection(ctx context.Context, id string) error
	MarkConnectionSynced(ctx context.Context, id string, at time.Time) error
	MarkConnectionError(ctx context.Context, id, msg string) (bool, error)
	ListRefreshableConnections(ctx context.Context, before time.Time, limit int) ([]model.Connection, error)
	ExpireConnections(ctx context.Context, now time.Time) (int64, error)
}

// Refresher exchanges a refresh token for new tokens.
type Refresher interface {
	RefreshAccessToken(ctx context.Context, provider, refreshToken string) (*oauth.Token, error)
}

// Manager owns connection lifecycle.
type Manager struct {
	store     Store
	vault     *vault.Vault
	registry  *registry.Registry
	refresher Refresher
	nowFunc   func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock sets the manager's time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.nowFunc = now }
}

// NewManager creates a Manager. refresher may be nil when no provider
// supports OAuth refresh.
func NewManager(st Store, v *vault.Vault, reg *registry.Registry, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:     st,
		vault:     v,
		registry:  reg,
		refresher: refresher,
		nowFunc:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Manager) now() time.Time {
	return m.nowFunc().UTC()
}

// CreateConnection encrypts the tokens and upserts the user's connection to
// providerID as active. expiresIn is in seconds; 0 means no known expiry.
func (m *Manager) CreateConnection(ctx context.Context, userID, providerID, accessToken, refreshToken string, expiresIn int64) (*model.Connection, error) {
	if !m.registry.Supports(providerID) {
		return nil, eris.Wrapf(registry.ErrUnknownProvider, "connection: create %s", providerID)
	}

	encAccess, err := m.vault.EncryptString(accessToken)
	if err != nil {
		return nil, eris.Wrap(err, "connection: encrypt access token")
	}
	var encRefresh string
	if refreshToken != "" {
		if encRefresh, err = m.vault.EncryptString(refreshToken); err != nil {
			return nil, eris.Wrap(err, "connection: encrypt refresh token")
		}
	}

	conn := &model.Connection{
		UserID:                userID,
		ProviderID:            providerID,
		Status:                model.StatusActive,
		EncryptedAccessToken:  encAccess,
		EncryptedRefreshToken: encRefresh,
		TokenExpiresAt:        m.expiry(expiresIn),
	}
	if err := m.store.UpsertConnection(ctx, conn); err != nil {
		return nil, eris.Wrap(err, "connection: create")
	}

	zap.L().Info("connection: created",
		zap.String("user_id", userID),
		zap.String("provider", providerID),
		zap.String("connection_id", conn.ID),
	)
	return conn, nil
}

func (m *Manager) expiry(expiresIn int64) *time.Time {
	if expiresIn <= 0 {
		return nil
	}
	t := m.now().Add(time.Duration(expiresIn) * time.Second)
	return &t
}

// Get loads a connection owned by userID.
func (m *Manager) Get(ctx context.Context, userID, connectionID string) (*model.Connection, error) {
	conn, err := m.store.GetConnection(ctx, connectionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrConnectionNotFound, "connection %s", connectionID)
		}
		return nil, eris.Wrapf(err, "connection: get %s", connectionID)
	}
	if conn.UserID != userID {
		return nil, eris.Wrapf(ErrConnectionNotFound, "connection %s", connectionID)
	}
	return conn, nil
}

// RefreshConnection swaps the stored refresh token for a new access token.
// Any failure after loading marks the connection as errored.
func (m *Manager) RefreshConnection(ctx context.Context, userID, connectionID string) (*model.Connection, error) {
	conn, err := m.Get(ctx, userID, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.HasRefreshToken() {
		return nil, eris.Wrapf(ErrNoRefreshToken, "connection %s", connectionID)
	}
	if err := m.refresh(ctx, conn); err != nil {
		m.markError(ctx, conn, err)
		return nil, err
	}
	return conn, nil
}

func (m *Manager) refresh(ctx context.Context, conn *model.Connection) error {
	if m.refresher == nil {
		return eris.Wrapf(oauth.ErrProviderNotConfigured, "connection: refresh %s", conn.ProviderID)
	}

	refreshToken, err := m.vault.DecryptString(conn.EncryptedRefreshToken)
	if err != nil {
		return eris.Wrap(err, "connection: decrypt refresh token")
	}
	tok, err := m.refresher.RefreshAccessToken(ctx, conn.ProviderID, refreshToken)
	if err != nil {
		return eris.Wrapf(err, "connection: refresh %s", conn.ID)
	}

	encAccess, err := m.vault.EncryptString(tok.AccessToken)
	if err != nil {
		return eris.Wrap(err, "connection: encrypt access token")
	}
	conn.EncryptedAccessToken = encAccess
	if tok.RefreshToken != "" {
		if conn.EncryptedRefreshToken, err = m.vault.EncryptString(tok.RefreshToken); err != nil {
			return eris.Wrap(err, "connection: encrypt refresh token")
		}
	}
	conn.TokenExpiresAt = m.expiry(tok.ExpiresIn)

	if err := m.store.SaveConnectionTokens(ctx, conn); err != nil {
		return eris.Wrapf(err, "connection: save refreshed %s", conn.ID)
	}
	zap.L().Info("connection: token refreshed",
		zap.String("connection_id", conn.ID),
		zap.String("provider", conn.ProviderID),
	)
	return nil
}

// DisconnectConnection revokes a connection and discards its tokens.
func (m *Manager) DisconnectConnection(ctx context.Context, userID, connectionID string) error {
	conn, err := m.Get(ctx, userID, connectionID)
	if err != nil {
		return err
	}
	if err := m.store.RevokeConnection(ctx, conn.ID); err != nil {
		return eris.Wrapf(err, "connection: disconnect %s", connectionID)
	}
	zap.L().Info("connection: disconnected",
		zap.String("connection_id", conn.ID),
		zap.String("provider", conn.ProviderID),
	)
	return nil
}

// ListConnections returns every connection of userID.
func (m *Manager) ListConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	conns, err := m.store.ListConnections(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "connection: list for %s", userID)
	}
	return conns, nil
}

// CheckHealth reports the state of each of userID's connections.
func (m *Manager) CheckHealth(ctx context.Context, userID string) ([]model.ConnectionHealth, error) {
	conns, err := m.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := m.now()
	out := make([]model.ConnectionHealth, 0, len(conns))
	for _, c := range conns {
		out = append(out, model.ConnectionHealth{
			ConnectionID:   c.ID,
			ProviderID:     c.ProviderID,
			ProviderName:   m.registry.DisplayName(c.ProviderID),
			IsConnected:    c.Usable(now),
			Status:         c.Status,
			LastSyncAt:     c.LastSyncAt,
			ErrorMessage:   c.ErrorMessage,
			RequiresReauth: c.Status == model.StatusExpired || c.Status == model.StatusError,
		})
	}
	return out, nil
}

// ActiveConnections returns userID's connections that are active and not
// past their token expiry.
func (m *Manager) ActiveConnections(ctx context.Context, userID string) ([]model.Connection, error) {
	conns, err := m.ListConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := m.now()
	out := conns[:0]
	for _, c := range conns {
		if c.Usable(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

// AccessToken decrypts the access token of a connection snapshot. An
// integrity failure marks the connection as errored.
func (m *Manager) AccessToken(ctx context.Context, conn *model.Connection) (string, error) {
	tok, err := m.vault.DecryptString(conn.EncryptedAccessToken)
	if err != nil {
		if errors.Is(err, vault.ErrTokenIntegrity) {
			m.markError(ctx, conn, err)
		}
		return "", eris.Wrapf(err, "connection: access token for %s", conn.ID)
	}
	return tok, nil
}

// ValidateConnection asks the provider whether the stored access token is
// still accepted. A rejection or failure marks the connection as errored.
func (m *Manager) ValidateConnection(ctx context.Context, userID, connectionID string) (bool, error) {
	conn, err := m.Get(ctx, userID, connectionID)
	if err != nil {
		return false, err
	}
	client, err := m.registry.Client(conn.ProviderID)
	if err != nil {
		return false, err
	}
	tok, err := m.AccessToken(ctx, conn)
	if err != nil {
		return false, err
	}

	ok, err := client.ValidateToken(ctx, tok)
	if err != nil {
		m.markError(ctx, conn, err)
		return false, eris.Wrapf(err, "connection: validate %s", connectionID)
	}
	if !ok {
		m.markError(ctx, conn, eris.New("token rejected by provider"))
	}
	return ok, nil
}

// MarkSynced records a successful fetch. Only the sync time is written, so
// tokens or status changed since conn was loaded survive.
func (m *Manager) MarkSynced(ctx context.Context, conn *model.Connection) error {
	now := m.now()
	if err := m.store.MarkConnectionSynced(ctx, conn.ID, now); err != nil {
		return eris.Wrapf(err, "connection: mark synced %s", conn.ID)
	}
	conn.LastSyncAt = &now
	return nil
}

// MarkError flags conn as errored with msg. A connection revoked in the
// meantime stays revoked.
func (m *Manager) MarkError(ctx context.Context, conn *model.Connection, msg string) error {
	ok, err := m.store.MarkConnectionError(ctx, conn.ID, msg)
	if err != nil {
		return eris.Wrapf(err, "connection: mark error %s", conn.ID)
	}
	if ok {
		conn.Status = model.StatusError
		conn.ErrorMessage = msg
	}
	return nil
}

// markError is MarkError for paths already returning another error.
func (m *Manager) markError(ctx context.Context, conn *model.Connection, cause error) {
	if err := m.MarkError(ctx, conn, cause.Error()); err != nil {
		zap.L().Warn("connection: record error state failed",
			zap.String("connection_id", conn.ID),
			zap.Error(err),
		)
	}
}

// HandleFetchError marks conn as errored when err means its token is no
// longer usable (auth rejection or integrity failure).
func (m *Manager) HandleFetchError(ctx context.Context, conn *model.Connection, err error) {
	if jobboard.IsAuthError(err) || errors.Is(err, vault.ErrTokenIntegrity) {
		m.markError(ctx, conn, err)
	}
}

// DueForRefresh returns active connections with a refresh token whose
// access token expires within window.
func (m *Manager) DueForRefresh(ctx context.Context, window time.Duration, limit int) ([]model.Connection, error) {
	conns, err := m.store.ListRefreshableConnections(ctx, m.now().Add(window), limit)
	if err != nil {
		return nil, eris.Wrap(err, "connection: list due for refresh")
	}
	return conns, nil
}

// ExpireStale flips active connections past expiry with no refresh token to
// expired and returns how many changed.
func (m *Manager) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	n, err := m.store.ExpireConnections(ctx, now)
	if err != nil {
		return 0, eris.Wrap(err, "connection: expire stale")
	}
	if n > 0 {
		zap.L().Info("connection: expired stale connections", zap.Int64("count", n))
	}
	return n, nil
}
