package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/schema"
)

var extensions = []string{".yaml", ".yml", ".json"}

// Store implements ports.FlowStore over a directory of flow documents.
// Names are paths relative to the directory; the extension may be omitted.
type Store struct {
	BasePath string
}

// New creates a store rooted at basePath, "flows" by default.
func New(basePath string) *Store {
	if basePath == "" {
		basePath = "flows"
	}
	return &Store{BasePath: basePath}
}

// Load reads and decodes the document name.
func (s *Store) Load(_ context.Context, name string) (*domain.Flow, error) {
	path, err := s.find(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	flow, err := schema.Decode(data, schema.FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return flow, nil
}

// Save writes flow atomically, as YAML unless name carries a .json extension.
func (s *Store) Save(_ context.Context, name string, flow *domain.Flow) error {
	if err := checkName(name); err != nil {
		return err
	}
	dest := filepath.Join(s.BasePath, filepath.FromSlash(name))
	if !hasExtension(dest) {
		dest += ".yaml"
	}

	data, err := schema.Encode(flow, schema.FormatOf(dest))
	if err != nil {
		return fmt.Errorf("encoding flow %s: %w", name, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to ensure flow directory: %w", err)
	}

	// Temp file in the same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// List returns every flow document under the directory, without extension.
func (s *Store) List(context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") || !hasExtension(path) {
			return nil
		}
		rel, err := filepath.Rel(s.BasePath, path)
		if err != nil {
			return err
		}
		names = append(names, strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel)))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing flows: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the document name.
func (s *Store) Delete(_ context.Context, name string) error {
	path, err := s.find(name)
	if errors.Is(err, domain.ErrFlowNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (s *Store) find(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	base := filepath.Join(s.BasePath, filepath.FromSlash(name))

	candidates := []string{base}
	if !hasExtension(base) {
		candidates = candidates[:0]
		for _, ext := range extensions {
			candidates = append(candidates, base+ext)
		}
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrFlowNotFound, name)
}

// checkName keeps locators inside the store directory.
func checkName(name string) error {
	if name == "" || !filepath.IsLocal(filepath.FromSlash(name)) {
		return fmt.Errorf("invalid flow name %q", name)
	}
	return nil
}

func hasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}
