// Package identity maps human-facing student ids (matricola) to the stable
// internal ids that key grade records.
package identity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// Entry is one row of the mapping table.
type Entry struct {
	ExternalID string `json:"external_id" bson:"external_id"`
	InternalID string `json:"internal_id" bson:"_id"`
	Name       string `json:"name,omitempty" bson:"name,omitempty"`
	Surname    string `json:"surname,omitempty" bson:"surname,omitempty"`
}

// Repository persists the bijective external <-> internal mapping.
type Repository interface {
	// FindByExternal returns shared.ErrStudentNotFound when unknown.
	FindByExternal(ctx context.Context, externalID string) (*Entry, error)

	// FindByInternal returns shared.ErrInternalIDNotFound when unknown.
	FindByInternal(ctx context.Context, internalID string) (*Entry, error)

	// Create fails with shared.ErrStudentAlreadyExists if the external id is taken.
	Create(ctx context.Context, e *Entry) error

	// UpdateExternal moves oldID to newID, keeping the internal id.
	UpdateExternal(ctx context.Context, oldID, newID string) error

	// Delete removes the mapping for externalID.
	Delete(ctx context.Context, externalID string) error

	// List returns all mappings.
	List(ctx context.Context) ([]*Entry, error)
}

// Resolver is the identity service used by every merge engine.
type Resolver struct {
	repo  Repository
	newID func() string
}

// NewResolver creates a Resolver issuing UUIDv4 internal ids.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, newID: uuid.NewString}
}

// Resolve maps an external id to its internal id.
func (r *Resolver) Resolve(ctx context.Context, externalID string) (string, error) {
	id, err := shared.NewExternalID(externalID)
	if err != nil {
		return "", err
	}
	e, err := r.repo.FindByExternal(ctx, id.String())
	if err != nil {
		return "", err
	}
	return e.InternalID, nil
}

// Reverse maps an internal id back to the current external id.
func (r *Resolver) Reverse(ctx context.Context, internalID string) (string, error) {
	e, err := r.repo.FindByInternal(ctx, internalID)
	if err != nil {
		return "", err
	}
	return e.ExternalID, nil
}

// Register adds externalID if unknown and returns its internal id.
// Registering a known id returns the existing mapping; created is false.
func (r *Resolver) Register(ctx context.Context, externalID, name, surname string) (internalID string, created bool, err error) {
	id, err := shared.NewExternalID(externalID)
	if err != nil {
		return "", false, err
	}

	existing, err := r.repo.FindByExternal(ctx, id.String())
	switch {
	case err == nil:
		return existing.InternalID, false, nil
	case !shared.IsNotFound(err):
		return "", false, fmt.Errorf("lookup %s: %w", id, err)
	}

	e := &Entry{
		ExternalID: id.String(),
		InternalID: r.newID(),
		Name:       name,
		Surname:    surname,
	}
	if err := r.repo.Create(ctx, e); err != nil {
		return "", false, fmt.Errorf("register %s: %w", id, err)
	}
	return e.InternalID, true, nil
}

// Rename points newID at oldID's internal id. oldID stops resolving.
func (r *Resolver) Rename(ctx context.Context, oldID, newID string) error {
	from, to, err := r.checkRename(ctx, oldID, newID)
	if err != nil || from == to {
		return err
	}
	return r.repo.UpdateExternal(ctx, from.String(), to.String())
}

// CheckRename reports the error Rename would return without changing the
// mapping.
func (r *Resolver) CheckRename(ctx context.Context, oldID, newID string) error {
	_, _, err := r.checkRename(ctx, oldID, newID)
	return err
}

func (r *Resolver) checkRename(ctx context.Context, oldID, newID string) (shared.ExternalID, shared.ExternalID, error) {
	from, err := shared.NewExternalID(oldID)
	if err != nil {
		return "", "", err
	}
	to, err := shared.NewExternalID(newID)
	if err != nil {
		return "", "", err
	}
	if from == to {
		return from, to, nil
	}

	if _, err := r.repo.FindByExternal(ctx, from.String()); err != nil {
		return "", "", err
	}
	if _, err := r.repo.FindByExternal(ctx, to.String()); err == nil {
		return "", "", shared.WrapError("identity", "Rename", shared.ErrAlreadyExists,
			"target student id already registered", fmt.Errorf("%s", to))
	} else if !shared.IsNotFound(err) {
		return "", "", err
	}
	return from, to, nil
}

// Remove deletes the mapping for externalID and returns the internal id it held.
func (r *Resolver) Remove(ctx context.Context, externalID string) (string, error) {
	id, err := shared.NewExternalID(externalID)
	if err != nil {
		return "", err
	}
	e, err := r.repo.FindByExternal(ctx, id.String())
	if err != nil {
		return "", err
	}
	if err := r.repo.Delete(ctx, id.String()); err != nil {
		return "", err
	}
	return e.InternalID, nil
}

// Directory returns every mapping keyed by internal id.
func (r *Resolver) Directory(ctx context.Context) (map[string]*Entry, error) {
	entries, err := r.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Entry, len(entries))
	for _, e := range entries {
		out[e.InternalID] = e
	}
	return out, nil
}
