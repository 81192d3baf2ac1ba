package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"calendar-sync/core/cache"
	"calendar-sync/core/constants"
	"calendar-sync/core/errors"
	"calendar-sync/core/logger"
	auditEntity "calendar-sync/modules/audit/entity"
	auditService "calendar-sync/modules/audit/service"
	"calendar-sync/modules/calendar/entity"
	"calendar-sync/modules/calendar/provider"
	"calendar-sync/modules/calendar/repository"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
)

// Scopes requested at consent: write events, read the calendar list.
var Scopes = []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope}

// Connection is an authenticated provider client bound to the credential it was built from.
type Connection struct {
	Client     provider.Client
	Credential *entity.Credential
}

// CalendarID returns the target calendar, defaulting to the primary one.
func (c *Connection) CalendarID() string {
	if c.Credential == nil || c.Credential.CalendarID == "" {
		return constants.DefaultCalendarID
	}
	return c.Credential.CalendarID
}

// ClientFactory turns an authenticated HTTP client into a provider client.
type ClientFactory func(ctx context.Context, httpClient *http.Client) (provider.Client, error)

type TokenManager interface {
	BuildAuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error)
	// GetValidClient returns nil, nil when the user has no usable credential.
	GetValidClient(ctx context.Context, userID uuid.UUID) (*Connection, error)
	Invalidate(ctx context.Context, userID uuid.UUID, reason error) error
	IsConnected(ctx context.Context, userID uuid.UUID) (bool, error)
	ForgetConnected(ctx context.Context, userID uuid.UUID)
}

type TokenManagerConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURI    string
	RefreshLeeway  time.Duration
	RequestTimeout time.Duration
	ConnectedTTL   time.Duration
}

// NewOAuthConfig builds the Google OAuth client configuration.
func NewOAuthConfig(cfg TokenManagerConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

type tokenManager struct {
	oauth     *oauth2.Config
	cfg       TokenManagerConfig
	repo      repository.CredentialRepository
	audit     auditService.Recorder
	cache     cache.Cache
	newClient ClientFactory
	now       func() time.Time
}

func NewTokenManager(
	oauthConfig *oauth2.Config,
	cfg TokenManagerConfig,
	repo repository.CredentialRepository,
	audit auditService.Recorder,
	cache cache.Cache,
	newClient ClientFactory,
) TokenManager {
	if newClient == nil {
		newClient = GoogleClientFactory
	}
	return &tokenManager{
		oauth:     oauthConfig,
		cfg:       cfg,
		repo:      repo,
		audit:     audit,
		cache:     cache,
		newClient: newClient,
		now:       time.Now,
	}
}

func GoogleClientFactory(ctx context.Context, httpClient *http.Client) (provider.Client, error) {
	return provider.NewGoogleClient(ctx, httpClient)
}

// BuildAuthorizationURL always forces consent so Google issues a refresh token.
func (m *tokenManager) BuildAuthorizationURL(state string) string {
	return m.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (m *tokenManager) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	token, err := m.oauth.Exchange(ctx, code)
	if err != nil {
		logger.Error("TokenManager:ExchangeCode:Error", "error", err)
		return nil, errors.NewAppError(errors.ErrAuthExchangeFailed, "Authorization code is invalid or expired", err)
	}
	return token, nil
}

func (m *tokenManager) GetValidClient(ctx context.Context, userID uuid.UUID) (*Connection, error) {
	cred, err := m.repo.GetActive(ctx, userID, constants.ProviderGoogle)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "Failed to load calendar credential", err)
	}
	if cred == nil {
		return nil, nil
	}

	if cred.ExpiresWithin(m.now(), m.cfg.RefreshLeeway) {
		if !m.refresh(ctx, cred) {
			return nil, nil
		}
	}

	client, err := m.buildClient(ctx, cred)
	if err != nil {
		return nil, err
	}
	return &Connection{Client: client, Credential: cred}, nil
}

// refresh exchanges the refresh token for a new access token. Failure deactivates the credential.
func (m *tokenManager) refresh(ctx context.Context, cred *entity.Credential) bool {
	token, err := m.fetchToken(ctx, cred)
	if err != nil {
		logger.Warn("TokenManager:Refresh:Error", "error", err, "user_id", cred.UserID)

		if _, derr := m.repo.Deactivate(ctx, cred.UserID, cred.Provider); derr != nil {
			logger.Error("TokenManager:Refresh:Deactivate:Error", "error", derr, "user_id", cred.UserID)
		}
		m.ForgetConnected(ctx, cred.UserID)
		m.record(ctx, auditEntity.NewFailure(cred.UserID, "", auditEntity.ActionTokenRefresh, err, auditEntity.JSONB{
			"kind": provider.Classify(err).Kind,
		}))
		return false
	}

	refreshToken := cred.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = token.RefreshToken
	}
	if err := m.repo.UpdateTokens(ctx, cred.ID, token.AccessToken, refreshToken, token.Expiry); err != nil {
		// The new token is still usable for this call; the next call refreshes again.
		logger.Error("TokenManager:Refresh:UpdateTokens:Error", "error", err, "user_id", cred.UserID)
	}

	cred.AccessToken = token.AccessToken
	cred.RefreshToken = refreshToken
	cred.TokenExpiresAt = token.Expiry

	m.record(ctx, auditEntity.NewSuccess(cred.UserID, "", auditEntity.ActionTokenRefresh, auditEntity.JSONB{
		"expires_at": token.Expiry.UTC().Format(time.RFC3339),
	}))
	logger.Info("TokenManager:Refresh:Success", "user_id", cred.UserID, "expires_at", token.Expiry)
	return true
}

func (m *tokenManager) fetchToken(ctx context.Context, cred *entity.Credential) (*oauth2.Token, error) {
	if cred.RefreshToken == "" {
		return nil, fmt.Errorf("credential %s has no refresh token", cred.ID)
	}

	ctx, cancel := m.withTimeout(ctx)
	defer cancel()

	token, err := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned no access token")
	}
	return token, nil
}

func (m *tokenManager) buildClient(ctx context.Context, cred *entity.Credential) (provider.Client, error) {
	httpClient := oauth2.NewClient(ctx, m.newPersistingSource(ctx, cred))
	httpClient.Timeout = m.cfg.RequestTimeout

	client, err := m.newClient(ctx, httpClient)
	if err != nil {
		logger.Error("TokenManager:BuildClient:Error", "error", err, "user_id", cred.UserID)
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create calendar client", err)
	}
	return client, nil
}

// persistingSource refreshes the access token when it expires while a connection
// is in use (long batches) and writes every new token back to the credential row.
type persistingSource struct {
	m    *tokenManager
	ctx  context.Context
	base oauth2.TokenSource

	mu     sync.Mutex
	cred   *entity.Credential
	failed error
}

func (m *tokenManager) newPersistingSource(ctx context.Context, cred *entity.Credential) oauth2.TokenSource {
	current := &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       cred.TokenExpiresAt,
	}
	refreshCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: m.cfg.RequestTimeout})
	return &persistingSource{
		m:    m,
		ctx:  ctx,
		base: m.oauth.TokenSource(refreshCtx, current),
		cred: cred,
	}
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A rejected refresh token stays rejected for the life of this connection.
	if s.failed != nil {
		return nil, s.failed
	}

	token, err := s.base.Token()
	if err != nil {
		kind := provider.Classify(err).Kind
		if kind == provider.KindAuthExpired {
			s.failed = err
		}
		logger.Warn("TokenManager:PersistingSource:Refresh:Error", "error", err, "user_id", s.cred.UserID)
		s.m.record(s.ctx, auditEntity.NewFailure(s.cred.UserID, "", auditEntity.ActionTokenRefresh, err, auditEntity.JSONB{
			"kind": kind,
		}))
		return nil, err
	}
	if token.AccessToken == s.cred.AccessToken {
		return token, nil
	}

	refreshToken := s.cred.RefreshToken
	if token.RefreshToken != "" {
		refreshToken = token.RefreshToken
	}
	if err := s.m.repo.UpdateTokens(s.ctx, s.cred.ID, token.AccessToken, refreshToken, token.Expiry); err != nil {
		logger.Error("TokenManager:PersistingSource:UpdateTokens:Error", "error", err, "user_id", s.cred.UserID)
	}
	s.cred.AccessToken = token.AccessToken
	s.cred.RefreshToken = refreshToken
	s.cred.TokenExpiresAt = token.Expiry

	s.m.record(s.ctx, auditEntity.NewSuccess(s.cred.UserID, "", auditEntity.ActionTokenRefresh, auditEntity.JSONB{
		"expires_at":  token.Expiry.UTC().Format(time.RFC3339),
		"mid_session": true,
	}))
	logger.Info("TokenManager:PersistingSource:Refreshed", "user_id", s.cred.UserID, "expires_at", token.Expiry)
	return token, nil
}

// Invalidate deactivates the user's credential after the provider rejected it.
func (m *tokenManager) Invalidate(ctx context.Context, userID uuid.UUID, reason error) error {
	changed, err := m.repo.Deactivate(ctx, userID, constants.ProviderGoogle)
	if err != nil {
		return errors.NewAppError(errors.ErrUpdateFailed, "Failed to deactivate calendar credential", err)
	}
	m.ForgetConnected(ctx, userID)

	if changed {
		logger.Warn("TokenManager:Invalidate", "user_id", userID, "reason", reason)
		m.record(ctx, auditEntity.NewFailure(userID, "", auditEntity.ActionInvalidate, reason, nil))
	}
	return nil
}

// IsConnected answers from a short-lived per-user cache entry before hitting the database.
func (m *tokenManager) IsConnected(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := connectedKey(userID)
	if val, err := m.cache.Get(ctx, key); err == nil {
		return val == "1", nil
	}

	cred, err := m.repo.GetActive(ctx, userID, constants.ProviderGoogle)
	if err != nil {
		return false, errors.NewAppError(errors.ErrGetFailed, "Failed to load calendar credential", err)
	}

	val := "0"
	if cred != nil {
		val = "1"
	}
	if err := m.cache.Set(ctx, key, val, m.cfg.ConnectedTTL); err != nil {
		logger.Warn("TokenManager:IsConnected:CacheSet:Error", "error", err, "user_id", userID)
	}
	return cred != nil, nil
}

func (m *tokenManager) ForgetConnected(ctx context.Context, userID uuid.UUID) {
	if err := m.cache.Del(ctx, connectedKey(userID)); err != nil {
		logger.Warn("TokenManager:ForgetConnected:Error", "error", err, "user_id", userID)
	}
}

// withTimeout bounds a token endpoint call and routes it through a client with the same timeout.
func (m *tokenManager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: m.cfg.RequestTimeout})
	if m.cfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, m.cfg.RequestTimeout)
}

func (m *tokenManager) record(ctx context.Context, entry *auditEntity.SyncLogEntry) {
	if m.audit == nil {
		return
	}
	_ = m.audit.Record(ctx, entry)
}

func connectedKey(userID uuid.UUID) string {
	return fmt.Sprintf(constants.RedisKeyCalendarConnected, constants.ProviderGoogle, userID)
}
