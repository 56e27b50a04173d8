package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gadevtools/internal/auth"
)

// NotFoundTemplate is rendered when a page cannot be.
const NotFoundTemplate = "404.html"

// PartialsGlob selects templates parsed together with every page.
const PartialsGlob = "partials/*.html"

// ErrPageNotFound is returned for slugs meta.yaml does not know.
var ErrPageNotFound = errors.New("page not found")

// PageData is the data every page template executes with.
type PageData struct {
	Site    *Meta
	Project *Project
	Page    *Page
	Data    map[string]interface{}
}

// Renderer renders the page templates of a site.
type Renderer struct {
	meta   *Meta
	dir    string
	tokens auth.TokenProvider
	cache  bool
	logger *slog.Logger

	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewRenderer creates a renderer for templates under dir. With cache set,
// parsed templates are kept; otherwise they are read from disk on every
// render. tokens may be nil.
func NewRenderer(meta *Meta, dir string, tokens auth.TokenProvider, cache bool, logger *slog.Logger) *Renderer {
	return &Renderer{
		meta:      meta,
		dir:       dir,
		tokens:    tokens,
		cache:     cache,
		logger:    logger.With(slog.String("component", "site_renderer")),
		templates: make(map[string]*template.Template),
	}
}

// Meta returns the site metadata.
func (r *Renderer) Meta() *Meta {
	return r.meta
}

// TemplateName returns the template file for a project page.
func TemplateName(project, page string) string {
	if project == IndexSlug || project == "" {
		return "index.html"
	}
	if page == "" {
		page = IndexSlug
	}
	return project + "/" + page + ".html"
}

// RenderPage writes the page for project and page to w. If anything goes
// wrong the 404 template is written instead and the returned bool is false;
// the error is only returned when the 404 page itself fails.
func (r *Renderer) RenderPage(ctx context.Context, w io.Writer, project, page string, data map[string]interface{}) (bool, error) {
	var buf bytes.Buffer
	err := r.renderPage(ctx, &buf, project, page, data)
	if err == nil {
		_, err = buf.WriteTo(w)
		return true, err
	}

	if errors.Is(err, ErrPageNotFound) {
		r.logger.InfoContext(ctx, "page not found", slog.String("project", project), slog.String("page", page))
	} else {
		r.logger.ErrorContext(ctx, "page render failed",
			slog.String("project", project),
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}

	if err := r.RenderNotFound(ctx, w); err != nil {
		return false, err
	}
	return false, nil
}

func (r *Renderer) renderPage(ctx context.Context, w io.Writer, project, page string, data map[string]interface{}) error {
	proj, pg, ok := r.meta.Page(project, page)
	if !ok {
		return ErrPageNotFound
	}
	return r.RenderTemplate(ctx, w, TemplateName(project, page), PageData{
		Site:    r.meta,
		Project: proj,
		Page:    pg,
		Data:    data,
	})
}

// RenderNotFound writes the 404 page.
func (r *Renderer) RenderNotFound(ctx context.Context, w io.Writer) error {
	return r.RenderTemplate(ctx, w, NotFoundTemplate, PageData{Site: r.meta})
}

// RenderTemplate executes the named template file with data.
func (r *Renderer) RenderTemplate(ctx context.Context, w io.Writer, name string, data interface{}) error {
	tmpl, err := r.lookup(name)
	if err != nil {
		return err
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("executing template %s: %w", name, err)
	}
	return nil
}

func (r *Renderer) lookup(name string) (*template.Template, error) {
	if r.cache {
		r.mu.RLock()
		tmpl, ok := r.templates[name]
		r.mu.RUnlock()
		if ok {
			return tmpl, nil
		}
	}

	tmpl, err := r.parse(name)
	if err != nil {
		return nil, err
	}

	if r.cache {
		r.mu.Lock()
		r.templates[name] = tmpl
		r.mu.Unlock()
	}
	return tmpl, nil
}

func (r *Renderer) parse(name string) (*template.Template, error) {
	path := filepath.Join(r.dir, filepath.FromSlash(name))
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("template %s: %w", name, ErrPageNotFound)
		}
		return nil, err
	}

	files := []string{path}
	partials, err := filepath.Glob(filepath.Join(r.dir, filepath.FromSlash(PartialsGlob)))
	if err != nil {
		return nil, err
	}
	files = append(files, partials...)

	tmpl, err := template.New(filepath.Base(path)).Funcs(r.funcs()).ParseFiles(files...)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	return tmpl, nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"accessToken": func() (string, error) {
			if r.tokens == nil {
				return "", nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			tok, err := r.tokens.Token(ctx)
			if err != nil {
				return "", err
			}
			return tok.AccessToken, nil
		},
		"isProduction": r.meta.IsProduction,
	}
}
