package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"lumina/internal/core"
	"lumina/internal/gemini"
	"lumina/internal/ledger"
)

const insightCacheKey = "insight"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleTransactions serves the collection: GET lists the ledger newest
// first, POST records a manual entry.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, core.SortByDateDesc(s.store.List()))
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	var tx core.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		slog.ErrorContext(r.Context(), "Transaction decode error", "error", err)
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if strings.TrimSpace(tx.ID) == "" {
		tx.ID = uuid.New().String()
	}
	tx = tx.WithDefaults()

	if err := s.store.Add(r.Context(), tx); err != nil {
		if errors.Is(err, ledger.ErrDuplicateID) {
			writeError(w, http.StatusConflict, "transaction id already exists")
			return
		}
		slog.WarnContext(r.Context(), "Transaction rejected", "id", tx.ID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.insightCache.Delete(insightCacheKey)
	writeJSON(w, http.StatusCreated, tx)
}

// handleTransactionByID serves /api/transactions/{id}; only DELETE is
// supported. Deleting an unknown id is a no-op and still answers 204.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	s.store.Remove(r.Context(), id)
	s.insightCache.Delete(insightCacheKey)
	w.WriteHeader(http.StatusNoContent)
}

type parseRequest struct {
	Text string `json:"text"`
}

// handleParseTransaction adds a transaction extracted from free-form text.
// Unusable input answers 422 so the client can rephrase; a collaborator
// outage answers 503 without touching the store.
func (s *Server) handleParseTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.parser == nil {
		writeError(w, http.StatusServiceUnavailable, "transaction parsing is not configured")
		return
	}

	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	tx, err := s.parser.ParseTransaction(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, gemini.ErrNoResult) {
			writeError(w, http.StatusUnprocessableEntity, "could not extract a transaction; try rephrasing with an amount and category")
			return
		}
		slog.ErrorContext(r.Context(), "Transaction parse error", "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
		return
	}

	tx.ID = uuid.New().String()
	if err := s.store.Add(r.Context(), tx); err != nil {
		slog.ErrorContext(r.Context(), "Parsed transaction rejected", "id", tx.ID, "error", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.insightCache.Delete(insightCacheKey)
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, core.Summarize(s.store.List()))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, core.CategoryBreakdown(s.store.List()))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	window := s.trendWindow
	if v := strings.TrimSpace(r.URL.Query().Get("window")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			window = n
		}
	}
	writeJSON(w, http.StatusOK, core.RecentTrend(s.store.List(), window))
}

type insightResponse struct {
	Advice string `json:"advice"`
}

// handleInsight serves a short spending tip. The result is cached for the
// configured TTL; without an advisor the static fallback is returned.
func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if advice, found := s.insightCache.Get(insightCacheKey); found {
		slog.DebugContext(r.Context(), "Insight cache hit")
		writeJSON(w, http.StatusOK, insightResponse{Advice: advice})
		return
	}

	advice := gemini.FallbackAdvice
	if s.advisor != nil {
		advice = s.advisor.GenerateAdvice(r.Context(), s.store.List())
	}

	s.insightCache.Set(insightCacheKey, advice)
	writeJSON(w, http.StatusOK, insightResponse{Advice: advice})
}
