// Package memory provides an in-memory storage adapter. It backs
// tests and ephemeral sessions where nothing should touch disk.
package memory

import (
	"context"
	"sync"

	"github.com/mindwtr/mindwtr/internal/model"
	"github.com/mindwtr/mindwtr/internal/storage"
)

// Adapter stores the document in memory. Safe for concurrent use.
type Adapter struct {
	mu    sync.Mutex
	doc   *model.Document
	saves int

	// SaveErr, when set, is returned by every Save call. Tests use it
	// to exercise the queue's retry path.
	SaveErr error
}

var _ storage.Adapter = (*Adapter)(nil)

// New returns an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{doc: model.NewDocument()}
}

// Seed replaces the stored document, bypassing Save accounting.
func (a *Adapter) Seed(doc *model.Document) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.doc = doc.Clone()
}

// Load implements storage.Adapter.
func (a *Adapter) Load(ctx context.Context) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc.Clone(), nil
}

// Save implements storage.Adapter.
func (a *Adapter) Save(ctx context.Context, doc *model.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.SaveErr != nil {
		return a.SaveErr
	}
	a.doc = doc.Clone()
	a.saves++
	return nil
}

// SaveCount reports how many saves have succeeded.
func (a *Adapter) SaveCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saves
}

// Document returns a copy of the currently stored document.
func (a *Adapter) Document() *model.Document {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc.Clone()
}
