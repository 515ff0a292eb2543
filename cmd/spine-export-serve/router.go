package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/ruslano69/spine-export/pkg/editor"
	"github.com/ruslano69/spine-export/pkg/preview"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
	"github.com/ruslano69/spine-export/pkg/writers"
)

const maxRequestBody = 8 << 20

// NewRouter собирает chi-маршрутизатор сервиса
func NewRouter(cfg *ServeConfig, opener source.Opener) http.Handler {
	r := chi.NewRouter()

	r.Use(zerologMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Preview.Timeout + 5*time.Second))

	h := &previewHandler{limits: cfg.Preview, opener: opener}

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/preview", h.Preview)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type previewHandler struct {
	limits PreviewConfig
	opener source.Opener
}

// previewRequest - тело POST /api/preview
type previewRequest struct {
	Specification json.RawMessage `json:"specification,omitempty"`
	URL           string          `json:"url"`
	// Mappings - имена маппингов; пусто - все включенные
	Mappings  []string `json:"mappings,omitempty"`
	MaxTables int      `json:"max_tables,omitempty"`
	MaxRows   int      `json:"max_rows,omitempty"`
}

type previewTable struct {
	Name string  `json:"name"`
	Rows [][]any `json:"rows"`
}

type mappingPreview struct {
	Name   string         `json:"name"`
	Tables []previewTable `json:"tables"`
}

type previewResponse struct {
	URL      string           `json:"url"`
	Mappings []mappingPreview `json:"mappings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Preview строит предпросмотр маппингов спецификации для одной базы
func (h *previewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if len(req.Specification) == 0 || string(req.Specification) == "null" {
		writeError(w, http.StatusBadRequest, "specification is required")
		return
	}
	spec := &specification.Specification{}
	if err := json.Unmarshal(req.Specification, spec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid specification: "+err.Error())
		return
	}
	if err := selectMappings(spec, req.Mappings); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.limits.Timeout)
	defer cancel()

	logger := log.Logger
	o := preview.New(editor.New(spec, nil, nil), []string{req.URL}, preview.Options{
		MaxTables: bound(req.MaxTables, h.limits.MaxTables),
		MaxRows:   bound(req.MaxRows, h.limits.MaxRows),
		Workers:   h.limits.Workers,
		Opener:    h.opener,
		Logger:    &logger,
	})
	defer o.Close()

	if err := o.Wait(ctx); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		writeError(w, status, "preview interrupted: "+err.Error())
		return
	}

	resp := previewResponse{URL: req.URL, Mappings: []mappingPreview{}}
	for _, item := range spec.WritePlan() {
		tables, _ := o.Tables(req.URL, item.Name)
		resp.Mappings = append(resp.Mappings, mappingPreview{Name: item.Name, Tables: toPreviewTables(tables)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// selectMappings выключает маппинги, не вошедшие в names
func selectMappings(spec *specification.Specification, names []string) error {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		if !spec.Has(n) {
			return fmt.Errorf("%w: %s", specification.ErrUnknownMapping, n)
		}
		wanted[n] = true
	}
	for _, n := range spec.Names() {
		if !wanted[n] {
			spec.Entry(n).Enabled = false
		}
	}
	return nil
}

// bound ограничивает запрошенное значение верхней границей сервиса
func bound(requested, limit int) int {
	if requested <= 0 || (limit > 0 && requested > limit) {
		return limit
	}
	return requested
}

func toPreviewTables(tables []writers.Table) []previewTable {
	out := make([]previewTable, 0, len(tables))
	for _, t := range tables {
		rows := t.Rows
		if rows == nil {
			rows = [][]any{}
		}
		out = append(out, previewTable{Name: t.Name, Rows: rows})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
