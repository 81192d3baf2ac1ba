package service

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"calendar-sync/core/cache"
	auditEntity "calendar-sync/modules/audit/entity"
	"calendar-sync/modules/calendar/entity"
	"calendar-sync/modules/calendar/provider"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

type fakeCredentialRepo struct {
	mu       sync.Mutex
	creds    map[uuid.UUID]*entity.Credential
	updates  int
	getCalls int
}

func newFakeCredentialRepo(creds ...*entity.Credential) *fakeCredentialRepo {
	r := &fakeCredentialRepo{creds: map[uuid.UUID]*entity.Credential{}}
	for _, c := range creds {
		r.creds[c.UserID] = c
	}
	return r
}

func (r *fakeCredentialRepo) GetActive(_ context.Context, userID uuid.UUID, _ string) (*entity.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	c, ok := r.creds[userID]
	if !ok || !c.IsActive {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCredentialRepo) Upsert(_ context.Context, cred *entity.Credential) (*entity.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := *cred
	if prev, ok := r.creds[cred.UserID]; ok {
		saved.ID = prev.ID
		if saved.RefreshToken == "" {
			saved.RefreshToken = prev.RefreshToken
		}
	} else {
		saved.ID = uuid.New()
	}
	saved.IsActive = true
	saved.UpdatedAt = time.Now()
	r.creds[cred.UserID] = &saved
	cp := saved
	return &cp, nil
}

func (r *fakeCredentialRepo) UpdateTokens(_ context.Context, id uuid.UUID, access, refresh string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.creds {
		if c.ID == id {
			c.AccessToken, c.RefreshToken, c.TokenExpiresAt = access, refresh, expiresAt
			r.updates++
		}
	}
	return nil
}

func (r *fakeCredentialRepo) Deactivate(_ context.Context, userID uuid.UUID, _ string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok || !c.IsActive {
		return false, nil
	}
	c.IsActive = false
	return true, nil
}

func (r *fakeCredentialRepo) UpdatePreferences(_ context.Context, userID uuid.UUID, _ string, calendarID string, prefs entity.SyncPreferences) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.creds[userID]
	if !ok || !c.IsActive {
		return sql.ErrNoRows
	}
	c.CalendarID = calendarID
	c.SyncPreferences = prefs
	return nil
}

func (r *fakeCredentialRepo) get(userID uuid.UUID) entity.Credential {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.creds[userID]
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []*auditEntity.SyncLogEntry
}

func (f *fakeRecorder) Record(_ context.Context, e *auditEntity.SyncLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.Action+":"+e.Status)
	}
	return out
}

type stubClient struct {
	calendars []provider.Calendar
	err       error
}

func (s *stubClient) InsertEvent(context.Context, string, *calendar.Event) (*calendar.Event, error) {
	return nil, s.err
}

func (s *stubClient) UpdateEvent(context.Context, string, string, *calendar.Event) (*calendar.Event, error) {
	return nil, s.err
}

func (s *stubClient) DeleteEvent(context.Context, string, string) error { return s.err }

func (s *stubClient) FindEventByAssignment(context.Context, string, string) (*calendar.Event, error) {
	return nil, s.err
}

func (s *stubClient) ListCalendars(context.Context) ([]provider.Calendar, error) {
	return s.calendars, s.err
}

type tokenServer struct {
	*httptest.Server
	mu       sync.Mutex
	calls    int
	failWith string
	grants   []url.Values
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		ts.mu.Lock()
		ts.calls++
		ts.grants = append(ts.grants, r.PostForm)
		fail := ts.failWith
		ts.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if fail != "" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"` + fail + `","error_description":"Token has been expired or revoked."}`))
			return
		}
		if r.PostForm.Get("grant_type") == "authorization_code" {
			_, _ = w.Write([]byte(`{"access_token":"exchanged","refresh_token":"refresh-1","token_type":"Bearer","expires_in":3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *tokenServer) fail(code string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failWith = code
}

func (ts *tokenServer) callCount() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.calls
}

type tokenHarness struct {
	tm       *tokenManager
	repo     *fakeCredentialRepo
	recorder *fakeRecorder
	cache    *cache.MemoryCache
	server   *tokenServer
	client   *stubClient
	now      time.Time
}

func newTokenHarness(t *testing.T, creds ...*entity.Credential) *tokenHarness {
	t.Helper()
	h := &tokenHarness{
		repo:     newFakeCredentialRepo(creds...),
		recorder: &fakeRecorder{},
		cache:    cache.NewMemoryCache(),
		server:   newTokenServer(t),
		client:   &stubClient{},
		now:      time.Now(),
	}
	cfg := TokenManagerConfig{
		ClientID:       "client-id",
		ClientSecret:   "client-secret",
		RedirectURI:    "http://localhost:7070/api/v1/public/calendar/callback",
		RefreshLeeway:  60 * time.Second,
		RequestTimeout: 5 * time.Second,
		ConnectedTTL:   time.Minute,
	}
	oauthCfg := NewOAuthConfig(cfg)
	oauthCfg.Endpoint = oauth2.Endpoint{
		AuthURL:   h.server.URL + "/auth",
		TokenURL:  h.server.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
	factory := func(context.Context, *http.Client) (provider.Client, error) { return h.client, nil }

	h.tm = NewTokenManager(oauthCfg, cfg, h.repo, h.recorder, h.cache, factory).(*tokenManager)
	h.tm.now = func() time.Time { return h.now }
	return h
}

func credentialExpiringIn(d time.Duration) *entity.Credential {
	c := &entity.Credential{
		UserID:         uuid.New(),
		Provider:       "google",
		AccessToken:    "old-access",
		RefreshToken:   "refresh-1",
		TokenExpiresAt: time.Now().Add(d),
		CalendarID:     "primary",
		IsActive:       true,
	}
	c.ID = uuid.New()
	return c
}

func TestTokenManager_BuildAuthorizationURL(t *testing.T) {
	h := newTokenHarness(t)

	raw := h.tm.BuildAuthorizationURL("state-123")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Contains(t, q.Get("scope"), "calendar.events")
	assert.Equal(t, "client-id", q.Get("client_id"))
}

func TestTokenManager_ExchangeCode(t *testing.T) {
	h := newTokenHarness(t)

	tok, err := h.tm.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "exchanged", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)

	h.server.fail("invalid_grant")
	_, err = h.tm.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_EXCHANGE_FAILED")
}

func TestTokenManager_GetValidClient_NoCredential(t *testing.T) {
	h := newTokenHarness(t)

	conn, err := h.tm.GetValidClient(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.Zero(t, h.server.callCount())
}

func TestTokenManager_GetValidClient_FreshTokenSkipsRefresh(t *testing.T) {
	cred := credentialExpiringIn(time.Hour)
	h := newTokenHarness(t, cred)

	conn, err := h.tm.GetValidClient(context.Background(), cred.UserID)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Same(t, h.client, conn.Client)
	assert.Equal(t, "old-access", conn.Credential.AccessToken)
	assert.Equal(t, "primary", conn.CalendarID())
	assert.Zero(t, h.server.callCount())
	assert.Empty(t, h.recorder.actions())
}

func TestTokenManager_GetValidClient_RefreshesNearExpiry(t *testing.T) {
	cred := credentialExpiringIn(30 * time.Second)
	h := newTokenHarness(t, cred)

	conn, err := h.tm.GetValidClient(context.Background(), cred.UserID)
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "refreshed", conn.Credential.AccessToken)

	stored := h.repo.get(cred.UserID)
	assert.Equal(t, "refreshed", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.True(t, stored.TokenExpiresAt.After(time.Now().Add(30*time.Minute)))
	assert.True(t, stored.IsActive)
	assert.Equal(t, 1, h.repo.updates)
	assert.Equal(t, "refresh_token", h.server.grants[0].Get("grant_type"))
	assert.Equal(t, []string{"token_refresh:success"}, h.recorder.actions())
}

func TestTokenManager_GetValidClient_FailedRefreshDeactivates(t *testing.T) {
	cred := credentialExpiringIn(30 * time.Second)
	h := newTokenHarness(t, cred)
	h.server.fail("invalid_grant")
	ctx := context.Background()

	conn, err := h.tm.GetValidClient(ctx, cred.UserID)
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.False(t, h.repo.get(cred.UserID).IsActive)
	assert.Equal(t, []string{"token_refresh:failure"}, h.recorder.actions())
	assert.Equal(t, provider.KindAuthExpired, h.recorder.entries[0].Details["kind"])

	conn, err = h.tm.GetValidClient(ctx, cred.UserID)
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.Equal(t, 1, h.server.callCount())
}

func TestTokenManager_GetValidClient_MissingRefreshToken(t *testing.T) {
	cred := credentialExpiringIn(-time.Minute)
	cred.RefreshToken = ""
	h := newTokenHarness(t, cred)

	conn, err := h.tm.GetValidClient(context.Background(), cred.UserID)
	require.NoError(t, err)
	assert.Nil(t, conn)
	assert.Zero(t, h.server.callCount())
	assert.False(t, h.repo.get(cred.UserID).IsActive)
}

func TestTokenManager_InvalidateAndConnectedCache(t *testing.T) {
	cred := credentialExpiringIn(time.Hour)
	h := newTokenHarness(t, cred)
	ctx := context.Background()

	connected, err := h.tm.IsConnected(ctx, cred.UserID)
	require.NoError(t, err)
	assert.True(t, connected)

	connected, err = h.tm.IsConnected(ctx, cred.UserID)
	require.NoError(t, err)
	assert.True(t, connected)
	assert.Equal(t, 1, h.repo.getCalls, "second lookup is served from cache")

	require.NoError(t, h.tm.Invalidate(ctx, cred.UserID, assert.AnError))
	assert.False(t, h.repo.get(cred.UserID).IsActive)
	assert.Equal(t, []string{"invalidate:failure"}, h.recorder.actions())

	connected, err = h.tm.IsConnected(ctx, cred.UserID)
	require.NoError(t, err)
	assert.False(t, connected)

	require.NoError(t, h.tm.Invalidate(ctx, cred.UserID, assert.AnError))
	assert.Len(t, h.recorder.actions(), 1, "invalidating an inactive credential is not logged again")
}

func TestCredential_ExpiresWithin(t *testing.T) {
	now := time.Now()
	c := &entity.Credential{TokenExpiresAt: now.Add(30 * time.Second)}
	assert.True(t, c.ExpiresWithin(now, time.Minute))
	c.TokenExpiresAt = now.Add(2 * time.Minute)
	assert.False(t, c.ExpiresWithin(now, time.Minute))
	assert.True(t, strings.HasPrefix(connectedKey(uuid.Nil), "calendar:connected:google:"))
}

// apiRecorder stands in for the Calendar API and only accepts the refreshed access token.
type apiRecorder struct {
	*httptest.Server
	mu      sync.Mutex
	headers []string
}

func newAPIRecorder(t *testing.T) *apiRecorder {
	t.Helper()
	a := &apiRecorder{}
	a.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.headers = append(a.headers, r.Header.Get("Authorization"))
		a.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer refreshed" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(a.Close)
	return a
}

func (a *apiRecorder) seen() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.headers...)
}

func TestTokenManager_ClientRefreshesTokenThatExpiresAfterLookup(t *testing.T) {
	cred := credentialExpiringIn(-time.Minute)
	h := newTokenHarness(t, cred)
	// The lookup happens while the token still has minutes left.
	h.now = time.Now().Add(-10 * time.Minute)

	var httpClient *http.Client
	h.tm.newClient = func(_ context.Context, hc *http.Client) (provider.Client, error) {
		httpClient = hc
		return h.client, nil
	}
	api := newAPIRecorder(t)

	conn, err := h.tm.GetValidClient(context.Background(), cred.UserID)
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.NotNil(t, httpClient)
	assert.Zero(t, h.server.callCount())

	for i := 0; i < 2; i++ {
		resp, err := httpClient.Get(api.URL + "/calendars/primary/events")
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, []string{"Bearer refreshed", "Bearer refreshed"}, api.seen())
	assert.Equal(t, 1, h.server.callCount())
	assert.Equal(t, 1, h.repo.updates)

	stored := h.repo.get(cred.UserID)
	assert.True(t, stored.IsActive)
	assert.Equal(t, "refreshed", stored.AccessToken)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
	assert.True(t, stored.TokenExpiresAt.After(time.Now().Add(30*time.Minute)))
	assert.Equal(t, "refreshed", conn.Credential.AccessToken)
	assert.Equal(t, []string{"token_refresh:success"}, h.recorder.actions())
}

func TestTokenManager_ClientRefreshFailureSurfacesAuthExpired(t *testing.T) {
	cred := credentialExpiringIn(-time.Minute)
	h := newTokenHarness(t, cred)
	h.now = time.Now().Add(-10 * time.Minute)
	h.server.fail("invalid_grant")

	var httpClient *http.Client
	h.tm.newClient = func(_ context.Context, hc *http.Client) (provider.Client, error) {
		httpClient = hc
		return h.client, nil
	}
	api := newAPIRecorder(t)

	_, err := h.tm.GetValidClient(context.Background(), cred.UserID)
	require.NoError(t, err)

	_, err = httpClient.Get(api.URL + "/calendars/primary/events")
	require.Error(t, err)
	assert.Equal(t, provider.KindAuthExpired, provider.Classify(err).Kind)
	assert.Empty(t, api.seen(), "no request goes out with the expired token")

	_, err = httpClient.Get(api.URL + "/calendars/primary/events")
	require.Error(t, err)
	assert.Equal(t, 1, h.server.callCount(), "a rejected refresh is not retried")
	assert.Equal(t, []string{"token_refresh:failure"}, h.recorder.actions())
	assert.Zero(t, h.repo.updates)
}
