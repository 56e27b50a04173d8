// Package site loads the site metadata (meta.yaml) and renders the page
// templates it describes.
package site

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Environments a site can run in.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// IndexSlug addresses the site root or a project's landing page.
const IndexSlug = "index"

// Meta is the site metadata.
type Meta struct {
	Title    string                 `yaml:"title"`
	Slug     string                 `yaml:"slug"`
	Path     string                 `yaml:"path"`
	Host     string                 `yaml:"host"`
	Env      string                 `yaml:"env"`
	Projects []Project              `yaml:"projects"`
	Extra    map[string]interface{} `yaml:",inline"`
}

// Project is one tool or demo of the site.
type Project struct {
	Title       string                 `yaml:"title"`
	Slug        string                 `yaml:"slug"`
	Path        string                 `yaml:"-"`
	Description string                 `yaml:"description"`
	Pages       []Page                 `yaml:"pages"`
	Extra       map[string]interface{} `yaml:",inline"`
}

// Page is a sub page of a project.
type Page struct {
	Title string                 `yaml:"title"`
	Slug  string                 `yaml:"slug"`
	Path  string                 `yaml:"-"`
	Extra map[string]interface{} `yaml:",inline"`
}

// LoadMeta reads meta.yaml. serverName decides the environment when the
// file does not set one: matching the configured host means production.
func LoadMeta(path, serverName string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read site metadata: %w", err)
	}
	return ParseMeta(data, serverName)
}

// ParseMeta parses meta.yaml content and derives project and page paths.
func ParseMeta(data []byte, serverName string) (*Meta, error) {
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse site metadata: %w", err)
	}

	if meta.Path == "" {
		meta.Path = "/"
	}

	for i := range meta.Projects {
		project := &meta.Projects[i]
		if project.Slug == "" {
			return nil, fmt.Errorf("project %d has no slug", i)
		}
		project.Path = "/" + project.Slug + "/"
		for j := range project.Pages {
			page := &project.Pages[j]
			if page.Slug == "" {
				return nil, fmt.Errorf("page %d of project %q has no slug", j, project.Slug)
			}
			page.Path = project.Path + page.Slug + "/"
		}
	}

	if meta.Env == "" {
		if meta.Host != "" && strings.EqualFold(serverName, meta.Host) {
			meta.Env = EnvProduction
		} else {
			meta.Env = EnvDevelopment
		}
	}
	return &meta, nil
}

// IsProduction reports whether the site runs in production.
func (m *Meta) IsProduction() bool {
	return m.Env == EnvProduction
}

// Project returns the project with the given slug. The index slug yields
// a pseudo project for the site root.
func (m *Meta) Project(slug string) (*Project, bool) {
	if slug == IndexSlug || slug == "" {
		return &Project{Title: m.Title, Slug: m.Slug, Path: m.Path}, true
	}
	for i := range m.Projects {
		if m.Projects[i].Slug == slug {
			return &m.Projects[i], true
		}
	}
	return nil, false
}

// Page returns the page of project with the given slug. The index slug
// yields the project's landing page.
func (m *Meta) Page(projectSlug, pageSlug string) (*Project, *Page, bool) {
	project, ok := m.Project(projectSlug)
	if !ok {
		return nil, nil, false
	}
	if pageSlug == IndexSlug || pageSlug == "" {
		return project, &Page{Slug: project.Slug, Path: project.Path}, true
	}
	for i := range project.Pages {
		if project.Pages[i].Slug == pageSlug {
			return project, &project.Pages[i], true
		}
	}
	return nil, nil, false
}
