// Package directory gives the booking engine read access to the externally
// managed patient, treatment and office lists. Only the name is interpreted
// here; everything else in those documents (contact details, pricing,
// addresses) belongs to their own maintenance tools.
package directory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dermaluz/agenda/internal/docstore"
)

type Entry struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Lookup is the read-only view the engine validates references against.
// Existence is checked at operation time and not re-verified later.
type Lookup interface {
	List(ctx context.Context) ([]Entry, error)
	Exists(ctx context.Context, name string) (bool, error)
}

type docDirectory struct {
	store      *docstore.Store
	collection string
}

func NewPatients(store *docstore.Store) Lookup {
	return &docDirectory{store: store, collection: "patients"}
}

func NewTreatments(store *docstore.Store) Lookup {
	return &docDirectory{store: store, collection: "treatments"}
}

func NewOffices(store *docstore.Store) Lookup {
	return &docDirectory{store: store, collection: "offices"}
}

func (d *docDirectory) List(ctx context.Context) ([]Entry, error) {
	docs, err := d.store.List(ctx, d.collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", d.collection, err)
	}

	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		var payload struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(doc.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", d.collection, doc.ID, err)
		}
		entries = append(entries, Entry{ID: doc.ID, Name: payload.Name})
	}
	return entries, nil
}

func (d *docDirectory) Exists(ctx context.Context, name string) (bool, error) {
	entries, err := d.List(ctx)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if e.Name == name {
			return true, nil
		}
	}
	return false, nil
}
