// Package oauth wraps golang.org/x/oauth2 for job board authorization code
// flows. State tokens are issued and verified by the vault package.
package oauth

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"

	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/vault"
)

// ErrProviderNotConfigured is returned for providers without an OAuth client.
var ErrProviderNotConfigured = eris.New("oauth: provider not configured")

// knownEndpoints fill in auth and token URLs the config leaves empty.
var knownEndpoints = map[string]oauth2.Endpoint{
	"linkedin": linkedin.Endpoint,
	"indeed": {
		AuthURL:  "https://secure.indeed.com/oauth/v2/authorize",
		TokenURL: "https://apis.indeed.com/oauth/v2/tokens",
	},
}

// defaultScopes apply when a client block lists none.
var defaultScopes = map[string][]string{
	"linkedin": {"r_liteprofile", "r_emailaddress", "w_member_social"},
	"indeed":   {"employer_access"},
}

// Token is the result of a code exchange or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds; 0 when unknown.
	ExpiresIn int64
}

// Service holds one oauth2.Config per configured provider.
type Service struct {
	configs    map[string]*oauth2.Config
	states     *vault.StateIssuer
	httpClient *http.Client
	nowFunc    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithHTTPClient sets the client used for token endpoint calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithStateIssuer replaces the state issuer.
func WithStateIssuer(si *vault.StateIssuer) Option {
	return func(s *Service) { s.states = si }
}

// WithClock sets the clock used to convert token expiry into seconds.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.nowFunc = now }
}

// New builds a Service from cfg. Providers without a client id are skipped.
func New(cfg config.OAuthConfig, opts ...Option) *Service {
	s := &Service{
		configs: make(map[string]*oauth2.Config),
		states:  vault.NewStateIssuer(),
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(s)
	}

	backend := strings.TrimRight(cfg.BackendURL, "/")
	for provider, pc := range cfg.Clients {
		if pc.ClientID == "" {
			continue
		}
		endpoint := knownEndpoints[provider]
		if pc.AuthURL != "" {
			endpoint.AuthURL = pc.AuthURL
		}
		if pc.TokenURL != "" {
			endpoint.TokenURL = pc.TokenURL
		}
		// Credentials go in the form body, matching the providers' token endpoints.
		endpoint.AuthStyle = oauth2.AuthStyleInParams

		scopes := pc.Scopes
		if len(scopes) == 0 {
			scopes = defaultScopes[provider]
		}
		s.configs[provider] = &oauth2.Config{
			ClientID:     pc.ClientID,
			ClientSecret: pc.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  backend + "/api/oauth/" + provider + "/callback",
			Scopes:       scopes,
		}
	}
	return s
}

// Configured reports whether provider has an OAuth client.
func (s *Service) Configured(provider string) bool {
	_, ok := s.configs[provider]
	return ok
}

// Providers returns the configured provider ids, sorted.
func (s *Service) Providers() []string {
	out := make([]string, 0, len(s.configs))
	for id := range s.configs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// States returns the issuer used to sign authorization state.
func (s *Service) States() *vault.StateIssuer {
	return s.states
}

func (s *Service) config(provider string) (*oauth2.Config, error) {
	c, ok := s.configs[provider]
	if !ok {
		return nil, eris.Wrapf(ErrProviderNotConfigured, "provider %s", provider)
	}
	return c, nil
}

// AuthorizationURL returns the provider consent URL carrying a fresh state
// token bound to userID.
func (s *Service) AuthorizationURL(provider, userID string) (string, error) {
	c, err := s.config(provider)
	if err != nil {
		return "", err
	}
	return c.AuthCodeURL(s.states.Issue(userID, provider)), nil
}

// VerifyState decodes a callback state token and checks it names provider.
func (s *Service) VerifyState(provider, state string) (vault.State, error) {
	st, err := s.states.Verify(state)
	if err != nil {
		return vault.State{}, err
	}
	if st.Provider != provider {
		return vault.State{}, eris.Wrapf(vault.ErrInvalidState, "oauth: state issued for %s, not %s", st.Provider, provider)
	}
	return st, nil
}

// ExchangeCodeForToken trades an authorization code for tokens.
func (s *Service) ExchangeCodeForToken(ctx context.Context, provider, code string) (*Token, error) {
	c, err := s.config(provider)
	if err != nil {
		return nil, err
	}
	tok, err := c.Exchange(s.clientContext(ctx), code)
	if err != nil {
		return nil, eris.Wrapf(err, "oauth: exchange code for %s", provider)
	}
	return s.token(tok), nil
}

// RefreshAccessToken obtains a new access token from a refresh token. The
// returned RefreshToken is empty unless the provider rotated it.
func (s *Service) RefreshAccessToken(ctx context.Context, provider, refreshToken string) (*Token, error) {
	c, err := s.config(provider)
	if err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, eris.Errorf("oauth: refresh %s: empty refresh token", provider)
	}

	tok, err := c.TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, eris.Wrapf(err, "oauth: refresh token for %s", provider)
	}
	out := s.token(tok)
	if out.RefreshToken == refreshToken {
		out.RefreshToken = ""
	}
	return out, nil
}

func (s *Service) clientContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *Service) token(tok *oauth2.Token) *Token {
	out := &Token{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}
	switch {
	case tok.ExpiresIn > 0:
		out.ExpiresIn = tok.ExpiresIn
	case !tok.Expiry.IsZero():
		if secs := math.Round(tok.Expiry.Sub(s.nowFunc()).Seconds()); secs > 0 {
			out.ExpiresIn = int64(secs)
		}
	}
	return out
}
