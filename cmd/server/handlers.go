package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brunobiangulo/godex"
	"github.com/brunobiangulo/godex/store"
)

type handler struct {
	engine godex.Engine
}

func newHandler(e godex.Engine) *handler {
	return &handler{engine: e}
}

func routes(h *handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /crawl", h.handleCrawl)
	mux.HandleFunc("POST /crawl/entity", h.handleCrawlEntity)
	mux.HandleFunc("GET /crawls", h.handleListCrawls)
	mux.HandleFunc("GET /pokemon", h.handleListPokemon)
	mux.HandleFunc("GET /pokemon/{slug}", h.handleGetPokemon)
	mux.HandleFunc("GET /pokemon/{slug}/evolution", h.handleEvolution)
	mux.HandleFunc("GET /pokemon/{slug}/family", h.handleFamily)
	mux.HandleFunc("GET /evolutions", h.handleTransitions)
	mux.HandleFunc("GET /stats", h.handleStats)
	mux.HandleFunc("GET /export.json", h.handleExportJSON)
	mux.HandleFunc("GET /export.xlsx", h.handleExportXLSX)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

// POST /crawl
// Runs a full crawl. The body is optional.
func (h *handler) handleCrawl(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Minute)
	defer cancel()

	var req struct {
		Limit     int      `json:"limit,omitempty"`
		Slugs     []string `json:"slugs,omitempty"`
		Abilities *bool    `json:"abilities,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var opts []godex.CrawlOption
	if req.Limit > 0 {
		opts = append(opts, godex.WithLimit(req.Limit))
	}
	if len(req.Slugs) > 0 {
		opts = append(opts, godex.WithSlugs(req.Slugs...))
	}
	if req.Abilities != nil && !*req.Abilities {
		opts = append(opts, godex.WithoutAbilities())
	}

	res, err := h.engine.Crawl(ctx, opts...)
	if err != nil {
		writeError(w, http.StatusBadGateway, "crawl failed")
		slog.Error("crawl error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /crawl/entity
func (h *handler) handleCrawlEntity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	p, err := h.engine.CrawlEntity(ctx, req.URL)
	if err != nil {
		if errors.Is(err, godex.ErrUnexpectedPage) {
			writeError(w, http.StatusBadRequest, "url is not a detail page")
			return
		}
		writeError(w, http.StatusBadGateway, "crawl failed")
		slog.Error("crawl entity error", "url", req.URL, "error", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /crawls?limit=N
func (h *handler) handleListCrawls(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	runs, err := h.engine.Crawls(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list crawls")
		slog.Error("list crawls error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"crawls": runs})
}

// GET /pokemon
func (h *handler) handleListPokemon(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pokemon")
		slog.Error("list pokemon error", "error", err)
		return
	}
	if list == nil {
		list = []store.Pokemon{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pokemon": list})
}

// GET /pokemon/{slug}
func (h *handler) handleGetPokemon(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	p, err := h.engine.Get(r.Context(), slug)
	if err != nil {
		h.lookupError(w, slug, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GET /pokemon/{slug}/evolution
func (h *handler) handleEvolution(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	s, err := h.engine.Evolution(r.Context(), slug)
	if err != nil {
		h.lookupError(w, slug, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// GET /pokemon/{slug}/family
func (h *handler) handleFamily(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	family, err := h.engine.Family(r.Context(), slug)
	if err != nil {
		h.lookupError(w, slug, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"family": family})
}

// GET /evolutions?min_level=N&source_type=T&target_type=T
func (h *handler) handleTransitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.TransitionFilter
	if v := q.Get("min_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid min_level")
			return
		}
		f.MinLevel = &n
	}
	f.SourceType = strings.TrimSpace(q.Get("source_type"))
	f.TargetType = strings.TrimSpace(q.Get("target_type"))

	rows, err := h.engine.Transitions(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query evolutions")
		slog.Error("query transitions error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(rows),
		"evolutions": rows,
	})
}

// GET /stats
func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read catalog")
		slog.Error("stats error", "error", err)
		return
	}
	multi, err := h.engine.MultiTyped(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read catalog")
		slog.Error("stats error", "error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{
		"pokemon":     len(list),
		"multi_typed": multi,
	})
}

// GET /export.json
func (h *handler) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "application/json", "godex.json", h.engine.ExportJSON)
}

// GET /export.xlsx
func (h *handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "godex.xlsx", h.engine.ExportXLSX)
}

// export buffers the whole file so a failure can still become a JSON error.
func (h *handler) export(w http.ResponseWriter, r *http.Request, contentType, filename string,
	write func(context.Context, io.Writer) error) {
	var buf bytes.Buffer
	if err := write(r.Context(), &buf); err != nil {
		writeError(w, http.StatusInternalServerError, "export failed")
		slog.Error("export error", "file", filename, "error", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *handler) lookupError(w http.ResponseWriter, slug string, err error) {
	switch {
	case errors.Is(err, godex.ErrNotFound):
		writeError(w, http.StatusNotFound, "pokemon not found")
	case errors.Is(err, godex.ErrNoEvolution):
		writeError(w, http.StatusNotFound, "no evolution data")
	default:
		writeError(w, http.StatusInternalServerError, "lookup failed")
		slog.Error("lookup error", "slug", slug, "error", err)
	}
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
