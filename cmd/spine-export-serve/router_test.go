package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ruslano69/spine-export/pkg/mapping"
	"github.com/ruslano69/spine-export/pkg/source"
	"github.com/ruslano69/spine-export/pkg/specification"
)

// newTestRouter создает маршрутизатор с базой в памяти memory://serve
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	db := source.NewMemory()
	db.AddEntityClass("unit")
	db.AddEntity("unit", "u1")
	db.AddEntity("unit", "u2")
	db.AddEntity("unit", "u3")
	db.AddAlternative("Base", "")
	source.RegisterMemory("serve", db)
	t.Cleanup(func() { source.UnregisterMemory("serve") })

	cfg := DefaultConfig()
	cfg.Preview.MaxRows = 2
	return NewRouter(cfg, source.Default())
}

func specJSON(t *testing.T) json.RawMessage {
	t.Helper()
	spec := specification.New("serve", specification.FormatCSV)
	for _, tp := range []mapping.Type{mapping.TypeEntities, mapping.TypeAlternatives} {
		e, err := specification.NewEntry(tp)
		if err != nil {
			t.Fatalf("NewEntry: %v", err)
		}
		if err := spec.Add(string(tp), e); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	data, err := json.Marshal(spec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return data
}

// post отправляет POST с JSON-телом и возвращает ResponseRecorder
func post(h http.Handler, path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, req)
	return rw
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)
	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d", rw.Code)
	}
	if !strings.Contains(rw.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rw.Body.String())
	}
}

func TestPreview_AllMappings(t *testing.T) {
	h := newTestRouter(t)
	rw := post(h, "/api/preview", previewRequest{Specification: specJSON(t), URL: "memory://serve"})
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rw.Code, rw.Body.String())
	}

	var resp previewResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Mappings) != 2 {
		t.Fatalf("mappings = %d, want 2", len(resp.Mappings))
	}
	if resp.Mappings[0].Name != "entities" || resp.Mappings[1].Name != "alternatives" {
		t.Errorf("mapping order = %s, %s", resp.Mappings[0].Name, resp.Mappings[1].Name)
	}
	units := resp.Mappings[0].Tables
	if len(units) != 1 {
		t.Fatalf("entities tables = %d", len(units))
	}
	// Число строк ограничено конфигурацией сервиса
	if len(units[0].Rows) != 2 {
		t.Errorf("rows = %d, want 2 (service bound)", len(units[0].Rows))
	}
}

func TestPreview_SelectedMappingAndBounds(t *testing.T) {
	h := newTestRouter(t)
	rw := post(h, "/api/preview", previewRequest{
		Specification: specJSON(t),
		URL:           "memory://serve",
		Mappings:      []string{"entities"},
		MaxRows:       1,
	})
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rw.Code, rw.Body.String())
	}
	var resp previewResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Mappings) != 1 || resp.Mappings[0].Name != "entities" {
		t.Fatalf("mappings = %+v", resp.Mappings)
	}
	if rows := resp.Mappings[0].Tables[0].Rows; len(rows) != 1 {
		t.Errorf("rows = %d, want 1", len(rows))
	}
}

func TestPreview_SourceErrorTable(t *testing.T) {
	h := newTestRouter(t)
	rw := post(h, "/api/preview", previewRequest{
		Specification: specJSON(t),
		URL:           "memory://absent",
		Mappings:      []string{"entities"},
	})
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d", rw.Code)
	}
	var resp previewResponse
	if err := json.Unmarshal(rw.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	tables := resp.Mappings[0].Tables
	if len(tables) != 1 || tables[0].Name != "error" {
		t.Fatalf("tables = %+v, want error table", tables)
	}
}

func TestPreview_BadRequests(t *testing.T) {
	h := newTestRouter(t)
	tests := []struct {
		name   string
		body   any
		status int
	}{
		{"no url", previewRequest{Specification: specJSON(t)}, http.StatusBadRequest},
		{"no specification", previewRequest{URL: "memory://serve"}, http.StatusBadRequest},
		{"bad specification", previewRequest{Specification: json.RawMessage(`{"output_format":"pdf"}`), URL: "memory://serve"}, http.StatusBadRequest},
		{"unknown mapping", previewRequest{Specification: specJSON(t), URL: "memory://serve", Mappings: []string{"nope"}}, http.StatusNotFound},
		{"not json", "plain text", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rw := post(h, "/api/preview", tt.body)
			if rw.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rw.Code, tt.status, rw.Body.String())
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestRouter(t)
	post(h, "/api/preview", previewRequest{Specification: specJSON(t), URL: "memory://serve"})

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rw.Code != http.StatusOK {
		t.Fatalf("status = %d", rw.Code)
	}
	body := rw.Body.String()
	for _, want := range []string{"spine_export_preview_workers_total", "spine_export_serve_requests_total"} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics miss %s", want)
		}
	}
}

func TestBound(t *testing.T) {
	tests := []struct{ requested, limit, want int }{
		{0, 50, 50},
		{10, 50, 10},
		{100, 50, 50},
		{-1, 50, 50},
		{10, 0, 10},
	}
	for _, tt := range tests {
		if got := bound(tt.requested, tt.limit); got != tt.want {
			t.Errorf("bound(%d, %d) = %d, want %d", tt.requested, tt.limit, got, tt.want)
		}
	}
}
