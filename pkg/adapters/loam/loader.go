package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/aretw0/flowtalk/pkg/schema"
	"github.com/aretw0/loam"
)

// FlowDocument is the front matter of a flow stored in a Loam repository.
// The Markdown body is free documentation and is not read.
type FlowDocument struct {
	Type     string         `json:"type" mapstructure:"type"`
	Vertices map[string]any `json:"vertices" mapstructure:"vertices"`
	Edges    []any          `json:"edges" mapstructure:"edges"`
	EntryIDs []string       `json:"entryIds" mapstructure:"entryIds"`
	Order    []string       `json:"order" mapstructure:"order"`
}

// Loader adapts a Loam repository to ports.FlowLoader.
type Loader struct {
	Repo *loam.TypedRepository[FlowDocument]
}

// New creates a Loam flow loader.
func New(repo *loam.TypedRepository[FlowDocument]) *Loader {
	return &Loader{Repo: repo}
}

// Open initializes a read-only repository at dir.
func Open(dir string) (*Loader, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	repo, err := loam.Init(abs, loam.WithStrict(true), loam.WithReadOnly(true))
	if err != nil {
		return nil, fmt.Errorf("opening loam repository %s: %w", abs, err)
	}
	return New(loam.NewTypedRepository[FlowDocument](repo)), nil
}

// Load fetches the document src ("greeting" finds greeting.md) and decodes
// its front matter as a flow.
func (l *Loader) Load(ctx context.Context, src string) (*domain.Flow, error) {
	doc, err := l.Repo.Get(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFlowNotFound, src, err)
	}

	flow, err := schema.FromMap(toMap(doc.Data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", doc.ID, err)
	}
	return flow, nil
}

// List returns the ids of documents that declare vertices, without extension.
func (l *Loader) List(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	var ids []string
	for _, doc := range docs {
		if len(doc.Data.Vertices) == 0 {
			continue
		}
		ids = append(ids, strings.TrimSuffix(doc.ID, filepath.Ext(doc.ID)))
	}
	sort.Strings(ids)
	return ids, nil
}

func toMap(d FlowDocument) map[string]any {
	m := map[string]any{"vertices": d.Vertices}
	if d.Type != "" {
		m["type"] = d.Type
	}
	if d.Edges != nil {
		m["edges"] = d.Edges
	}
	if len(d.EntryIDs) > 0 {
		m["entryIds"] = d.EntryIDs
	}
	if len(d.Order) > 0 {
		m["order"] = d.Order
	}
	return m
}
