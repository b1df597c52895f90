package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req model.SearchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.SalaryMin != nil && req.SalaryMax != nil && *req.SalaryMin > *req.SalaryMax {
		writeError(w, r, eris.Wrap(errBadRequest, "salary_min exceeds salary_max"))
		return
	}

	res, err := s.deps.Search.SearchAllPlatforms(r.Context(), userFrom(r), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, eris.Wrapf(errBadRequest, "invalid limit %q", raw))
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := s.deps.Search.History(r.Context(), userFrom(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if region := strings.TrimSpace(r.URL.Query().Get("region")); region != "" {
		writeData(w, http.StatusOK, s.deps.Registry.ByRegion(strings.ToUpper(region)))
		return
	}
	writeData(w, http.StatusOK, s.deps.Registry.AllMetadata())
}

func (s *Server) handleAvailableProviders(w http.ResponseWriter, r *http.Request) {
	ids, err := s.deps.Search.AvailableProviders(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ids)
}

func (s *Server) handleJobDetails(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Search.JobDetails(r.Context(), userFrom(r),
		chi.URLParam(r, "provider"), chi.URLParam(r, "externalID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, job)
}

func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := s.deps.Connections.ListConnections(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, conns)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health, err := s.deps.Connections.CheckHealth(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, health)
}

func (s *Server) handleRefreshConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := s.deps.Connections.RefreshConnection(r.Context(), userFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, conn)
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Connections.DisconnectConnection(r.Context(), userFrom(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"status": string(model.StatusRevoked)})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.Matches == nil {
		http.NotFound(w, r)
		return
	}
	matches, err := s.deps.Matches.CalculateJobMatches(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, matches)
}

func (s *Server) handleGetPreference(w http.ResponseWriter, r *http.Request) {
	if s.deps.Profiles == nil {
		http.NotFound(w, r)
		return
	}
	pref, err := s.deps.Profiles.GetPreference(r.Context(), userFrom(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pref)
}

func (s *Server) handleSavePreference(w http.ResponseWriter, r *http.Request) {
	if s.deps.Profiles == nil {
		http.NotFound(w, r)
		return
	}
	var pref model.Preference
	if err := decodeJSON(w, r, &pref); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.validate.Struct(pref); err != nil {
		writeError(w, r, err)
		return
	}
	pref.UserID = userFrom(r)
	if err := s.deps.Profiles.SavePreference(r.Context(), &pref); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pref)
}

// handleImportResume reads the résumé as the raw request body.
func (s *Server) handleImportResume(w http.ResponseWriter, r *http.Request) {
	if s.deps.Resumes == nil {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, eris.Wrapf(errBadRequest, "read resume: %v", err))
		return
	}
	skills, err := s.deps.Resumes.Import(r.Context(), userFrom(r), string(body))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"skills": skills})
}
