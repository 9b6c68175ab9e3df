// Package store persists named motion clips, skeleton documents with an
// identifying name and bookkeeping metadata. The primary backend is
// MongoDB; an in-memory store backs tests and single-shot CLI runs.
package store

import (
	"context"
	"time"

	"github.com/boneforge/boneforge/pkg/errors"
	"github.com/boneforge/boneforge/pkg/graphio"
)

// Clip is a stored skeleton document with metadata.
type Clip struct {
	Name      string            `json:"name" bson:"_id"`
	Document  *graphio.Document `json:"document" bson:"document"`
	CreatedAt time.Time         `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt" bson:"updatedAt"`
}

// Info is the listing view of a clip, without the motion payload.
type Info struct {
	Name      string    `json:"name" bson:"_id"`
	Joints    int       `json:"joints" bson:"joints"`
	Frames    int       `json:"frames" bson:"frames"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Store is a named clip library.
type Store interface {
	// Put stores or replaces a clip under its name.
	Put(ctx context.Context, clip *Clip) error

	// Get retrieves a clip by name. A missing clip is ErrCodeNotFound.
	Get(ctx context.Context, name string) (*Clip, error)

	// List returns summaries of all clips, sorted by name.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a clip by name. A missing clip is ErrCodeNotFound.
	Delete(ctx context.Context, name string) error

	// Close releases backend resources.
	Close(ctx context.Context) error
}

// NewClip assembles a clip from a document, validating the name and
// stamping timestamps.
func NewClip(name string, doc *graphio.Document) (*Clip, error) {
	if err := errors.ValidateClipName(name); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidClip, "clip %q has no document", name)
	}
	now := time.Now().UTC()
	return &Clip{
		Name:      name,
		Document:  doc,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// infoOf derives the listing view from a stored clip.
func infoOf(c *Clip) Info {
	return Info{
		Name:      c.Name,
		Joints:    len(c.Document.Joints),
		Frames:    c.Document.Frames,
		UpdatedAt: c.UpdatedAt,
	}
}
