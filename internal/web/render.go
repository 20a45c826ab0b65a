package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/hpungsan/wishpair/internal/errors"
	"github.com/hpungsan/wishpair/internal/ops"
	"github.com/hpungsan/wishpair/internal/wish"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
}

// BoardCard is one wish on the board with its memo pre-rendered.
type BoardCard struct {
	wish.Wish
	MemoHTML template.HTML
}

// BoardPageData is the template data for the pair board.
type BoardPageData struct {
	PageData
	Board      *ops.BoardOutput
	Cards      []BoardCard
	Next       []wish.Wish
	Categories []wish.Category
	Category   string
	Priority   string
	Status     string
	Sort       string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"formatTime": formatTime,
		"formatUnix": formatUnix,
		"deref":      deref,
		"hasValue":   hasValue,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"board": "board.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error as JSON when the client asks for it,
// otherwise as the error page.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, log *logrus.Logger, err error) {
	if wantsJSON(req) {
		renderAPIError(w, log, err)
		return
	}

	wErr := toWishError(log, err)
	r.renderPageStatus(w, wErr.Status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", wErr.Status),
			Version: r.version,
		},
		StatusCode: wErr.Status,
		Message:    wErr.Message,
	})
}

// renderAPIError writes {"error":{"code","message","status"}}.
// Internal causes are logged, never sent.
func renderAPIError(w http.ResponseWriter, log *logrus.Logger, err error) {
	wErr := toWishError(log, err)
	renderJSON(w, wErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(wErr.Code),
			"message": wErr.Message,
			"status":  wErr.Status,
		},
	})
}

func toWishError(log *logrus.Logger, err error) *errors.WishError {
	wErr, ok := errors.As(err)
	if !ok {
		wErr = errors.NewInternal(err)
	}
	if wErr.Code == errors.ErrInternal && log != nil {
		log.WithError(err).Error("request failed")
	}
	return wErr
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
// goldmark drops raw HTML by default, so memos cannot inject markup.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a time as "2006-01-02 15:04" UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04")
}

// formatUnix formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatUnix(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// deref dereferences a pointer, returning the zero value if nil.
func deref(v any) any {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(rv.Type().Elem()).Interface()
		}
		return rv.Elem().Interface()
	}
	return v
}

// hasValue checks if a pointer value is non-nil.
func hasValue(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return !rv.IsNil()
	}
	return true
}
