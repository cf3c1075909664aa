package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fintrail/statement-ingest/internal/domain/categorization"
	"github.com/fintrail/statement-ingest/internal/domain/statement/bankcfg"
)

// ConfigStore is the config repository surface the admin API needs.
type ConfigStore interface {
	SaveConfig(ctx context.Context, cfg bankcfg.ParserConfig) (bankcfg.ParserConfig, error)
	GetConfig(ctx context.Context, bankCode string) (bankcfg.ParserConfig, error)
	ListActiveConfigs(ctx context.Context) ([]bankcfg.ParserConfig, error)
	DeactivateConfig(ctx context.Context, bankCode string) error
	SetFieldMapping(ctx context.Context, m bankcfg.FieldMapping) (bankcfg.FieldMapping, error)
	ListActiveFieldMappings(ctx context.Context) ([]bankcfg.FieldMapping, error)
	ListFieldMappingHistory(ctx context.Context, bankCode string) ([]bankcfg.FieldMapping, error)
}

// Refresher swaps in a new parser config snapshot after an admin write.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// NarrationSearcher exposes the narration diagnostics for keyword tuning.
type NarrationSearcher interface {
	SimilarUncategorized(query string, limit int) ([]categorization.NarrationHit, error)
	NarrationGroups(query string, limit int) ([]categorization.NarrationGroup, error)
}

// AdminHandler serves the parser config and field mapping CRUD plus the
// narration search diagnostic.
type AdminHandler struct {
	repo     ConfigStore
	store    Refresher
	searcher NarrationSearcher
	logger   *slog.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(repo ConfigStore, store Refresher, searcher NarrationSearcher, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{repo: repo, store: store, searcher: searcher, logger: logger}
}

// UpsertConfig handles POST /api/v1/admin/bank-configs. Writes a new version
// and refreshes the live snapshot.
func (h *AdminHandler) UpsertConfig(w http.ResponseWriter, r *http.Request) {
	var cfg bankcfg.ParserConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := h.repo.SaveConfig(r.Context(), cfg)
	if err != nil {
		h.logger.Error("save bank config", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "save config failed")
		return
	}
	h.refresh(r.Context())

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "config": saved})
}

// GetConfig handles GET /api/v1/admin/bank-configs/{code}.
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.repo.GetConfig(r.Context(), r.PathValue("code"))
	if err != nil {
		if errors.Is(err, bankcfg.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "config not found")
			return
		}
		h.logger.Error("get bank config", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "get config failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "config": cfg})
}

// ListConfigs handles GET /api/v1/admin/bank-configs.
func (h *AdminHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.repo.ListActiveConfigs(r.Context())
	if err != nil {
		h.logger.Error("list bank configs", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "list configs failed")
		return
	}
	if configs == nil {
		configs = []bankcfg.ParserConfig{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "configs": configs})
}

// DeactivateConfig handles DELETE /api/v1/admin/bank-configs/{code}. The bank
// falls back to its built-in config on the next snapshot.
func (h *AdminHandler) DeactivateConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.DeactivateConfig(r.Context(), r.PathValue("code")); err != nil {
		if errors.Is(err, bankcfg.ErrConfigNotFound) {
			writeError(w, http.StatusNotFound, "config not found")
			return
		}
		h.logger.Error("deactivate bank config", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "deactivate config failed")
		return
	}
	h.refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SetFieldMapping handles POST /api/v1/admin/field-mappings.
func (h *AdminHandler) SetFieldMapping(w http.ResponseWriter, r *http.Request) {
	var m bankcfg.FieldMapping
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	saved, err := h.repo.SetFieldMapping(r.Context(), m)
	if err != nil {
		h.logger.Error("set field mapping", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "set field mapping failed")
		return
	}
	h.refresh(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mapping": saved})
}

// ListFieldMappings handles GET /api/v1/admin/field-mappings. With a bankCode
// query parameter it returns full version history for that bank.
func (h *AdminHandler) ListFieldMappings(w http.ResponseWriter, r *http.Request) {
	var (
		mappings []bankcfg.FieldMapping
		err      error
	)
	if code := r.URL.Query().Get("bankCode"); code != "" {
		mappings, err = h.repo.ListFieldMappingHistory(r.Context(), code)
	} else {
		mappings, err = h.repo.ListActiveFieldMappings(r.Context())
	}
	if err != nil {
		h.logger.Error("list field mappings", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "list field mappings failed")
		return
	}
	if mappings == nil {
		mappings = []bankcfg.FieldMapping{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "mappings": mappings})
}

// SearchNarrations handles GET /api/v1/admin/narrations/search?q=...&limit=...
// It surfaces uncategorized narrations similar to the query so keyword rules
// can be tuned against real data.
func (h *AdminHandler) SearchNarrations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	hits, err := h.searcher.SimilarUncategorized(query, limit)
	if err != nil {
		h.logger.Error("narration search", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "narration search failed")
		return
	}
	if hits == nil {
		hits = []categorization.NarrationHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "hits": hits, "count": len(hits)})
}

// GroupNarrations handles GET /api/v1/admin/narrations/groups?q=...&limit=...
// It clusters matching narrations by merchant, collapsing per-transaction
// reference numbers, so one group suggests one keyword rule.
func (h *AdminHandler) GroupNarrations(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	groups, err := h.searcher.NarrationGroups(query, limit)
	if err != nil {
		h.logger.Error("narration grouping", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "narration grouping failed")
		return
	}
	if groups == nil {
		groups = []categorization.NarrationGroup{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "groups": groups, "count": len(groups)})
}

// refresh swaps the live snapshot; failures are logged, the stale snapshot
// keeps serving until the next cron refresh.
func (h *AdminHandler) refresh(ctx context.Context) {
	if h.store == nil {
		return
	}
	if err := h.store.Refresh(ctx); err != nil {
		h.logger.Warn("snapshot refresh after admin write", slog.Any("error", err))
	}
}
