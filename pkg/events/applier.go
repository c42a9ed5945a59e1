package events

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/store"
)

// Applier applies document updates to a persisted document.
type Applier struct {
	Docs   *store.Documents
	Logger *log.Logger
}

// NewApplier returns an Applier writing through docs.
func NewApplier(docs *store.Documents, logger *log.Logger) *Applier {
	if logger == nil {
		logger = log.Default()
	}
	return &Applier{Docs: docs, Logger: logger}
}

// Apply replaces e.Previous with e.Next in the persisted document. It
// reports false, without writing, when either block is empty, there is no
// document, or Previous no longer occurs in it.
func (a *Applier) Apply(ctx context.Context, e DocumentUpdated) (bool, error) {
	if e.Previous == "" || e.Next == "" {
		return false, nil
	}
	doc, err := a.Docs.Document(ctx)
	if store.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	updated := *doc
	if text, ok := document.ReplaceBlock(doc.TextContent, e.Previous, e.Next); ok {
		updated.TextContent = text
	} else if visual, ok := document.ReplaceBlock(doc.VisualContent, e.Previous, e.Next); ok {
		updated.VisualContent = visual
	}
	if updated == *doc {
		return false, nil
	}
	if err := a.Docs.SaveDocument(ctx, updated); err != nil {
		return false, err
	}
	return true, nil
}

// Run applies every update from bus until ctx ends.
func (a *Applier) Run(ctx context.Context, bus Bus) {
	updates, cancel := bus.Subscribe(ctx)
	defer cancel()
	for e := range updates {
		applied, err := a.Apply(ctx, e)
		if err != nil {
			a.Logger.Error("apply document update", "id", e.ID, "error", err)
			continue
		}
		a.Logger.Debug("document update", "id", e.ID, "applied", applied)
	}
}
