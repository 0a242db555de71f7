package server

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/Dataste0/quality-pipeline/internal/database"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Server is the read-only status dashboard.
type Server struct {
	db    *database.DB
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// Status is the dashboard summary, also served as JSON.
type Status struct {
	Queue   QueueCounts      `json:"queue"`
	Latest  *SnapshotSummary `json:"latest_snapshot"`
	Reports []ReportSummary  `json:"recent_runs"`
}

type QueueCounts struct {
	Enqueued    int `json:"enqueued"`
	Processing  int `json:"processing"`
	Transformed int `json:"transformed"`
	Failed      int `json:"failed"`
	SyncReady   int `json:"olap_sync_ready"`
	Synced      int `json:"olap_synced"`
}

type SnapshotSummary struct {
	ID            int64  `json:"id"`
	CreatedAt     string `json:"created_at"`
	Entries       int    `json:"entries"`
	Projects      int    `json:"projects"`
	WeeksWithData int    `json:"weeks_with_data"`
	ValidFiles    int    `json:"valid_files"`
}

type ReportSummary struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	DryRun     bool   `json:"dry_run"`
	OK         bool   `json:"ok"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
}

// New creates a new Server.
func New(db *database.DB) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"join": strings.Join,
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// Each page gets its own clone of base so "title" and "content" do not collide.
	pageNames := []string{"index.html", "item.html", "report.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{db: db, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/items/", s.handleItem)
	s.mux.HandleFunc("/reports/", s.handleReport)
	s.mux.HandleFunc("/api/status", s.handleAPIStatus)
}

// Status collects queue counts, the latest snapshot and recent runs.
func (s *Server) Status() (*Status, error) {
	stats, err := s.db.GetQueueStats()
	if err != nil {
		return nil, err
	}
	st := &Status{Queue: QueueCounts(*stats), Reports: []ReportSummary{}}

	snaps, err := s.db.ListSnapshots(1)
	if err != nil {
		return nil, err
	}
	if len(snaps) > 0 {
		latest := SnapshotSummary(snaps[0])
		st.Latest = &latest
	}

	reports, err := s.db.ListRunReports(10)
	if err != nil {
		return nil, err
	}
	for _, r := range reports {
		st.Reports = append(st.Reports, ReportSummary{
			ID:         r.ID,
			Mode:       r.Mode,
			DryRun:     r.DryRun,
			OK:         r.OK,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
		})
	}
	return st, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	st, err := s.Status()
	if err != nil {
		slog.Error("loading status", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	recent, err := s.db.ListItems("", 25)
	if err != nil {
		slog.Error("listing items", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "index.html", map[string]any{
		"Status": st,
		"Items":  recent,
	})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/items/"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	item, err := s.db.GetItem(id)
	if errors.Is(err, database.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("loading item", "item", id, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.render(w, "item.html", map[string]any{
		"Item": item,
		"Info": indentJSON(item.TransformInfo),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	runID := strings.TrimPrefix(r.URL.Path, "/reports/")
	if runID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	report, err := s.db.GetRunReport(runID)
	if err != nil {
		slog.Error("loading report", "run", runID, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if report == nil {
		http.NotFound(w, r)
		return
	}

	s.render(w, "report.html", map[string]any{
		"Report": report,
	})
}

func (s *Server) handleAPIStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.Status()
	if err != nil {
		slog.Error("loading status", "err", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(st); err != nil {
		slog.Error("encoding status", "err", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base.html", data); err != nil {
		slog.Error("rendering template", "template", name, "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// indentJSON pretty-prints a JSON blob, returning it unchanged if invalid.
func indentJSON(s string) string {
	if s == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(s), "", "  "); err != nil {
		return s
	}
	return buf.String()
}

// Serve starts the HTTP server on the given port.
func Serve(db *database.DB, port int) error {
	srv, err := New(db)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	slog.Info("server listening", "url", "http://"+addr)
	hs := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return hs.ListenAndServe()
}
