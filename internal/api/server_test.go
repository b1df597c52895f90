package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/connection"
	"github.com/sells-group/jobsearch-cli/internal/jobboard/mocks"
	"github.com/sells-group/jobsearch-cli/internal/match"
	"github.com/sells-group/jobsearch-cli/internal/metrics"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/oauth"
	"github.com/sells-group/jobsearch-cli/internal/registry"
	"github.com/sells-group/jobsearch-cli/internal/search"
	"github.com/sells-group/jobsearch-cli/internal/store"
	"github.com/sells-group/jobsearch-cli/internal/vault"
)

type fakeSearch struct {
	lastUser  string
	lastReq   model.SearchRequest
	lastLimit int
	result    *model.SearchResult
	err       error
}

func (f *fakeSearch) SearchAllPlatforms(_ context.Context, userID string, req model.SearchRequest) (*model.SearchResult, error) {
	f.lastUser, f.lastReq = userID, req
	return f.result, f.err
}

func (f *fakeSearch) AvailableProviders(_ context.Context, userID string) ([]string, error) {
	f.lastUser = userID
	return []string{"indeed"}, f.err
}

func (f *fakeSearch) JobDetails(_ context.Context, _, providerID, externalID string) (*model.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Listing{ProviderID: providerID, ExternalID: externalID, Title: "Go Engineer"}, nil
}

func (f *fakeSearch) History(_ context.Context, userID string, limit int) ([]model.SearchHistoryEntry, error) {
	f.lastUser, f.lastLimit = userID, limit
	return []model.SearchHistoryEntry{{ID: "h1", UserID: userID}}, f.err
}

type fakeConnections struct {
	created      []string
	disconnected string
	err          error
}

func (f *fakeConnections) CreateConnection(_ context.Context, userID, providerID, access, refresh string, expiresIn int64) (*model.Connection, error) {
	f.created = append(f.created, userID, providerID, access, refresh)
	return &model.Connection{ID: "c1", UserID: userID, ProviderID: providerID, Status: model.StatusActive}, f.err
}

func (f *fakeConnections) ListConnections(_ context.Context, userID string) ([]model.Connection, error) {
	return []model.Connection{{ID: "c1", UserID: userID, EncryptedAccessToken: "secret"}}, f.err
}

func (f *fakeConnections) CheckHealth(context.Context, string) ([]model.ConnectionHealth, error) {
	return []model.ConnectionHealth{{ConnectionID: "c1", RequiresReauth: true}}, f.err
}

func (f *fakeConnections) RefreshConnection(_ context.Context, _, id string) (*model.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Connection{ID: id, Status: model.StatusActive}, nil
}

func (f *fakeConnections) DisconnectConnection(_ context.Context, _, id string) error {
	f.disconnected = id
	return f.err
}

type fakeOAuth struct {
	state    vault.State
	stateErr error
	token    *oauth.Token
}

func (f *fakeOAuth) AuthorizationURL(provider, userID string) (string, error) {
	if provider != "linkedin" {
		return "", eris.Wrap(oauth.ErrProviderNotConfigured, provider)
	}
	return "https://auth.example/authorize?user=" + userID, nil
}

func (f *fakeOAuth) VerifyState(string, string) (vault.State, error) {
	return f.state, f.stateErr
}

func (f *fakeOAuth) ExchangeCodeForToken(context.Context, string, string) (*oauth.Token, error) {
	return f.token, nil
}

type fakeMatcher struct{ err error }

func (f fakeMatcher) CalculateJobMatches(context.Context, string) ([]model.MatchScore, error) {
	return []model.MatchScore{{JobID: "indeed:1", Score: 0.9, Reasons: []string{}}}, f.err
}

type fakeProfiles struct {
	saved *model.Preference
}

func (f *fakeProfiles) GetPreference(context.Context, string) (*model.Preference, error) {
	if f.saved == nil {
		return nil, store.ErrNotFound
	}
	return f.saved, nil
}

func (f *fakeProfiles) SavePreference(_ context.Context, p *model.Preference) error {
	f.saved = p
	return nil
}

type fakeResumes struct{}

func (fakeResumes) Import(_ context.Context, _, text string) ([]string, error) {
	return strings.Fields(text), nil
}

type fixture struct {
	search   *fakeSearch
	conns    *fakeConnections
	oauth    *fakeOAuth
	profiles *fakeProfiles
	handler  http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.New(
		registry.Entry{Client: mocks.NewMockClient(t, "indeed"), Metadata: registry.Metadata{DisplayName: "Indeed", Regions: []string{registry.GlobalRegion}}},
		registry.Entry{Client: mocks.NewMockClient(t, "reed"), Metadata: registry.Metadata{DisplayName: "Reed", Regions: []string{"GB"}}},
	)
	require.NoError(t, err)

	f := &fixture{
		search:   &fakeSearch{result: &model.SearchResult{Jobs: []model.Listing{}, ProvidersUsed: []string{}}},
		conns:    &fakeConnections{},
		oauth:    &fakeOAuth{state: vault.State{UserID: "u1", Provider: "linkedin"}, token: &oauth.Token{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 3600}},
		profiles: &fakeProfiles{},
	}
	f.handler = NewServer(Deps{
		Registry:    reg,
		Search:      f.search,
		Connections: f.conns,
		OAuth:       f.oauth,
		Matches:     fakeMatcher{},
		Profiles:    f.profiles,
		Resumes:     fakeResumes{},
		Metrics:     metrics.New(),
	}).Routes()
	return f
}

type response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, body string, user bool) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user {
		req.Header.Set(UserHeader, "u1")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	var resp response
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"status":"ok"}`, string(resp.Data))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/api/job-boards/search/history", "", false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, UserHeader)
}

func TestSearch(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodPost, "/api/job-boards/search", `{"query":"golang","providers":["indeed"]}`, true)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"jobs":[],"total_count":0,"premium_count":0,"providers_used":[],"search_duration_ms":0,"has_more":false}`, string(resp.Data))
	assert.Equal(t, "u1", f.search.lastUser)
	assert.Equal(t, "golang", f.search.lastReq.Query)
	assert.Equal(t, []string{"indeed"}, f.search.lastReq.Providers)
}

func TestSearch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"query":`},
		{"unknown field", `{"q":"go"}`},
		{"bad job type", `{"query":"go","job_type":"gig"}`},
		{"bad country", `{"query":"go","country":"USA"}`},
		{"negative salary", `{"query":"go","salary_min":-1}`},
		{"inverted salary", `{"query":"go","salary_min":200,"salary_max":100}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			code, resp := f.do(t, http.MethodPost, "/api/job-boards/search", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSearch_InternalErrorHidesDetail(t *testing.T) {
	f := newFixture(t)
	f.search.err = errors.New("pq: connection refused to 10.0.0.5")
	code, resp := f.do(t, http.MethodPost, "/api/job-boards/search", `{"query":"go"}`, true)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal Server Error", resp.Error)
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, http.MethodGet, "/api/job-boards/search/history", "", true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, defaultHistoryLimit, f.search.lastLimit)

	f.do(t, http.MethodGet, "/api/job-boards/search/history?limit=500", "", true)
	assert.Equal(t, maxHistoryLimit, f.search.lastLimit)

	code, _ = f.do(t, http.MethodGet, "/api/job-boards/search/history?limit=abc", "", true)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProviders(t *testing.T) {
	f := newFixture(t)

	_, resp := f.do(t, http.MethodGet, "/api/job-boards/providers", "", true)
	var all []registry.Metadata
	require.NoError(t, json.Unmarshal(resp.Data, &all))
	assert.Len(t, all, 2)

	_, resp = f.do(t, http.MethodGet, "/api/job-boards/providers?region=us", "", true)
	var us []registry.Metadata
	require.NoError(t, json.Unmarshal(resp.Data, &us))
	require.Len(t, us, 1)
	assert.Equal(t, "indeed", us[0].ID)

	_, resp = f.do(t, http.MethodGet, "/api/job-boards/providers/available", "", true)
	assert.JSONEq(t, `["indeed"]`, string(resp.Data))
}

func TestJobDetails(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/api/job-boards/indeed/jobs/abc-1", "", true)
	require.Equal(t, http.StatusOK, code)
	var job model.Listing
	require.NoError(t, json.Unmarshal(resp.Data, &job))
	assert.Equal(t, "indeed", job.ProviderID)
	assert.Equal(t, "abc-1", job.ExternalID)

	f.search.err = eris.Wrap(search.ErrJobNotFound, "job indeed:abc-1")
	code, _ = f.do(t, http.MethodGet, "/api/job-boards/indeed/jobs/abc-1", "", true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestConnections(t *testing.T) {
	f := newFixture(t)

	code, resp := f.do(t, http.MethodGet, "/api/job-boards/connections", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(resp.Data), "secret")

	_, resp = f.do(t, http.MethodGet, "/api/job-boards/connections/health", "", true)
	assert.Contains(t, string(resp.Data), `"requires_reauth":true`)

	code, _ = f.do(t, http.MethodPost, "/api/job-boards/connections/c9/refresh", "", true)
	assert.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodDelete, "/api/job-boards/connections/c9", "", true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "c9", f.conns.disconnected)
}

func TestConnections_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{eris.Wrap(connection.ErrConnectionNotFound, "c9"), http.StatusNotFound},
		{eris.Wrap(connection.ErrNoRefreshToken, "c9"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.conns.err = tt.err
			code, resp := f.do(t, http.MethodPost, "/api/job-boards/connections/c9/refresh", "", true)
			assert.Equal(t, tt.want, code)
			assert.False(t, resp.Success)
		})
	}
}

func TestOAuthAuthorize(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/api/oauth/linkedin/authorize", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"authorization_url":"https://auth.example/authorize?user=u1"}`, string(resp.Data))

	code, _ = f.do(t, http.MethodGet, "/api/oauth/dice/authorize", "", true)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestOAuthCallback(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/api/oauth/linkedin/callback?code=abc&state=xyz", "", false)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"u1", "linkedin", "at", "rt"}, f.conns.created)
}

func TestOAuthCallback_Errors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		stateErr error
	}{
		{"missing code", "?state=xyz", nil},
		{"provider denied", "?error=access_denied", nil},
		{"expired state", "?code=abc&state=old", eris.Wrapf(vault.ErrExpiredState, "issued %s ago", 11*time.Minute)},
		{"invalid state", "?code=abc&state=bad", vault.ErrInvalidState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.oauth.stateErr = tt.stateErr
			code, resp := f.do(t, http.MethodGet, "/api/oauth/linkedin/callback"+tt.query, "", false)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, resp.Success)
			assert.Empty(t, f.conns.created)
		})
	}
}

func TestMatches(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodGet, "/api/matches", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), `"job_id":"indeed:1"`)
}

func TestErrorStatus_PreferencesNotFound(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errorStatus(eris.Wrap(match.ErrPreferencesNotFound, "user u1")))
	assert.Equal(t, http.StatusNotFound, errorStatus(eris.Wrap(search.ErrNoConnection, "indeed")))
	assert.Equal(t, http.StatusNotFound, errorStatus(registry.ErrUnknownProvider))
}

func TestPreferences(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodGet, "/api/preferences", "", true)
	assert.Equal(t, http.StatusNotFound, code)

	body := `{"user_id":"someone-else","desired_titles":["Go Engineer"],"remote_preference":"remote","job_types":["full-time"]}`
	code, _ = f.do(t, http.MethodPut, "/api/preferences", body, true)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, f.profiles.saved)
	assert.Equal(t, "u1", f.profiles.saved.UserID)

	code, resp := f.do(t, http.MethodGet, "/api/preferences", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(resp.Data), "Go Engineer")

	code, _ = f.do(t, http.MethodPut, "/api/preferences", `{"remote_preference":"moon"}`, true)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestImportResume(t *testing.T) {
	f := newFixture(t)
	code, resp := f.do(t, http.MethodPost, "/api/resume", "Go SQL", true)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"skills":["Go","SQL"]}`, string(resp.Data))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/job-boards/search", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", UserHeader)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
