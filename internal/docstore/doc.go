package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/codekeeper/internal/common"
)

// Doc is a decoded document together with the version it was read at.
type Doc[T any] struct {
	Location Location
	Value    T
	// Version is empty when the document did not exist at read time; the
	// next Save then creates it.
	Version string
}

// Exists reports whether the document existed when it was loaded.
func (d *Doc[T]) Exists() bool {
	return d.Version != ""
}

// Load reads and decodes the document at loc. With missingOK a missing
// document yields a zero value instead of common.ErrorNotFound.
func Load[T any](ctx context.Context, s Store, loc Location, missingOK bool) (*Doc[T], error) {
	d := &Doc[T]{Location: loc}

	obj, err := s.Get(ctx, loc)
	if err != nil {
		if missingOK && errors.Is(err, common.ErrorNotFound) {
			return d, nil
		}
		return nil, fmt.Errorf("load %s: %w", loc, err)
	}

	if len(bytes.TrimSpace(obj.Data)) > 0 {
		if err := json.Unmarshal(obj.Data, &d.Value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", loc, err)
		}
	}
	d.Version = obj.Version

	return d, nil
}

// Save writes the document back, conditional on the version it was loaded
// at, and records the new version.
func (d *Doc[T]) Save(ctx context.Context, s Store, message string) error {
	data, err := Encode(d.Value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.Location, err)
	}

	version, err := s.Put(ctx, d.Location, data, d.Version, message)
	if err != nil {
		return fmt.Errorf("save %s: %w", d.Location, err)
	}
	d.Version = version
	return nil
}

// Encode renders v the way documents are stored: two-space indented JSON
// with a trailing newline.
func Encode(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
