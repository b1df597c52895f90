package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

func (s *Server) handleOAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	authURL, err := s.deps.OAuth.AuthorizationURL(provider, userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"authorization_url": authURL})
}

// handleOAuthCallback finishes the code flow and stores the connection for
// the user named in the state token.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()

	if oauthErr := q.Get("error"); oauthErr != "" {
		writeError(w, r, eris.Wrapf(errBadRequest, "authorization denied: %s", oauthErr))
		return
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, r, eris.Wrap(errBadRequest, "code and state are required"))
		return
	}

	st, err := s.deps.OAuth.VerifyState(provider, state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := s.deps.OAuth.ExchangeCodeForToken(r.Context(), provider, code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	conn, err := s.deps.Connections.CreateConnection(r.Context(), st.UserID, provider,
		tok.AccessToken, tok.RefreshToken, tok.ExpiresIn)
	if err != nil {
		writeError(w, r, err)
		return
	}

	zap.L().Info("api: provider connected",
		zap.String("user_id", st.UserID),
		zap.String("provider", provider),
	)
	writeData(w, http.StatusOK, conn)
}
