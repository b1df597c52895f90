package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/connection"
	"github.com/sells-group/jobsearch-cli/internal/match"
	"github.com/sells-group/jobsearch-cli/internal/oauth"
	"github.com/sells-group/jobsearch-cli/internal/registry"
	"github.com/sells-group/jobsearch-cli/internal/resume"
	"github.com/sells-group/jobsearch-cli/internal/search"
	"github.com/sells-group/jobsearch-cli/internal/store"
	"github.com/sells-group/jobsearch-cli/internal/vault"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks client input errors raised by the handlers.
var errBadRequest = eris.New("api: bad request")

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError maps err to a status. Server errors hide their detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = http.StatusText(status)
	}
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

func errorStatus(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, vault.ErrExpiredState),
		errors.Is(err, vault.ErrInvalidState),
		errors.Is(err, connection.ErrNoRefreshToken),
		errors.Is(err, resume.ErrEmptyResume):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, connection.ErrConnectionNotFound),
		errors.Is(err, registry.ErrUnknownProvider),
		errors.Is(err, oauth.ErrProviderNotConfigured),
		errors.Is(err, search.ErrNoConnection),
		errors.Is(err, search.ErrJobNotFound),
		errors.Is(err, match.ErrPreferencesNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return eris.Wrapf(errBadRequest, "invalid request body: %v", err)
	}
	return nil
}
