// Package admin serves the log viewer page over HTTP: the full file contents
// and a clear form protected by a per-session token.
package admin

import (
	"context"
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/modoterra/rawlog/pkg/logfile"
	"github.com/modoterra/rawlog/pkg/logger"
	"github.com/modoterra/rawlog/pkg/session"
)

// Page notices.
const (
	NoticeCleared     = "Log file cleared successfully."
	NoticeClearFailed = "Failed to clear the log file."
)

// DefaultPath is the route the page is served on when none is configured.
const DefaultPath = "/rawlog"

const (
	cookieName = "rawlog_session"
	tokenField = "token"
	clearField = "clear_logs"
)

// Config wires the page to a logger and a token store.
type Config struct {
	Path     string
	Log      *logger.Logger
	Sessions *session.Store
	Logger   *slog.Logger
}

func (c Config) path() string {
	p := strings.TrimRight(c.Path, "/")
	if p == "" {
		return DefaultPath
	}
	return p
}

// Node is a toolbar shortcut.
type Node struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Href  string `json:"href"`
	Meta  Meta   `json:"meta"`
}

// Meta carries presentation hints for a toolbar node.
type Meta struct {
	Class string `json:"class"`
	Title string `json:"title"`
}

// Toolbar returns the shortcut linking to the page.
func Toolbar(cfg Config) Node {
	return Node{
		ID:    "rawlog",
		Title: "View Logs",
		Href:  cfg.path(),
		Meta: Meta{
			Class: "rawlog-toolbar-item",
			Title: "View rawlog Logs",
		},
	}
}

// ToolbarHandler serves the shortcut node as JSON.
func ToolbarHandler(cfg Config) http.Handler {
	node := Toolbar(cfg)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(node)
	})
}

// Handler returns a mux serving the page at cfg.Path and the toolbar node at
// cfg.Path + "/toolbar".
func Handler(cfg Config) http.Handler {
	if cfg.Sessions == nil {
		cfg.Sessions = session.NewStore(session.DefaultTTL)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &page{cfg: cfg}

	mux := http.NewServeMux()
	mux.Handle(cfg.path(), p)
	mux.Handle(cfg.path()+"/toolbar", ToolbarHandler(cfg))
	return mux
}

type page struct {
	cfg Config
}

type pageData struct {
	Title    string
	Action   string
	Token    string
	Notice   string
	Failed   bool
	Contents string
}

func (p *page) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p.render(w, r, "", false)
	case http.MethodPost:
		p.clear(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (p *page) clear(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if _, ok := r.PostForm[clearField]; !ok {
		p.render(w, r, "", false)
		return
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil {
		p.cfg.Logger.Warn("clear rejected", "reason", "no session cookie")
		http.Error(w, session.ErrInvalidToken.Error(), http.StatusForbidden)
		return
	}
	if err := p.cfg.Sessions.Check(cookie.Value, r.PostForm.Get(tokenField)); err != nil {
		p.cfg.Logger.Warn("clear rejected", "err", err)
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	if err := p.cfg.Log.Lifecycle().Clear(ctx); err != nil {
		p.render(w, r, NoticeClearFailed, true)
		return
	}
	p.cfg.Logger.Info("log file cleared", "path", p.cfg.Log.Path(), "remote", r.RemoteAddr)
	p.render(w, r, NoticeCleared, false)
}

func (p *page) render(w http.ResponseWriter, r *http.Request, notice string, failed bool) {
	sid := ""
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		sid = c.Value
	} else {
		sid = session.NewID()
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    sid,
			Path:     p.cfg.path(),
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	token, _ := p.cfg.Sessions.Issue(sid)

	contents, err := logfile.ReadAll(p.cfg.Log.Path())
	if err != nil {
		p.cfg.Logger.Error("read log file", "path", p.cfg.Log.Path(), "err", err)
		contents = ""
	}

	data := pageData{
		Title:    "rawlog",
		Action:   p.cfg.path(),
		Token:    token,
		Notice:   notice,
		Failed:   failed,
		Contents: contents,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.Execute(w, data); err != nil {
		p.cfg.Logger.Error("render admin page", "err", err)
	}
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<div class="wrap">
<h1>{{.Title}}</h1>
{{- if .Notice}}
<div class="notice {{if .Failed}}notice-error{{else}}notice-success{{end}}"><p>{{.Notice}}</p></div>
{{- end}}
<form method="post" action="{{.Action}}">
<input type="hidden" name="token" value="{{.Token}}">
<input type="submit" name="clear_logs" value="Clear Logs">
</form>
{{- if .Contents}}
<pre style="background: #f3f3f3; border: 1px solid #ccc; padding: 1em;">{{.Contents}}</pre>
{{- else}}
<p>No logs found.</p>
{{- end}}
</div>
</body>
</html>
`))
