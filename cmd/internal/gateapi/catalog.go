package gateapi

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Module is one protected content unit. Asset holds the raw JPEG or PNG
// bytes that get watermarked per request.
type Module struct {
	ID          string
	Title       string
	Description string
	Asset       []byte
}

// ErrModuleNotFound is returned for an unknown content module id.
var ErrModuleNotFound = errors.New("content module not found")

// Catalog lists content modules and serves their assets.
type Catalog interface {
	Modules() []Module
	Module(id string) (Module, error)
}

// MemoryCatalog is a fixed in-memory Catalog.
type MemoryCatalog struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewMemoryCatalog constructs a catalog over the given modules.
func NewMemoryCatalog(modules ...Module) *MemoryCatalog {
	c := &MemoryCatalog{modules: make(map[string]Module, len(modules))}
	for _, m := range modules {
		c.modules[m.ID] = m
	}
	return c
}

func (c *MemoryCatalog) Modules() []Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Module, 0, len(c.modules))
	for _, m := range c.modules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *MemoryCatalog) Module(id string) (Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[strings.TrimSpace(id)]
	if !ok {
		return Module{}, ErrModuleNotFound
	}
	return m, nil
}

// LoadCatalogDir builds a catalog from a directory of image files. Each
// *.jpg/*.jpeg/*.png becomes one module; the file stem is both id and
// title. An empty or missing directory yields an empty catalog, not an
// error, so a server without content still starts.
func LoadCatalogDir(dir string) (*MemoryCatalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return NewMemoryCatalog(), nil
		}
		return nil, err
	}

	var modules []Module
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		stem := strings.TrimSuffix(e.Name(), ext)
		modules = append(modules, Module{
			ID:    stem,
			Title: stem,
			Asset: data,
		})
	}
	return NewMemoryCatalog(modules...), nil
}
