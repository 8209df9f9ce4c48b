// Package storage is the durable key-value layer behind the session, cart
// and booking ledgers. Every value is a string (JSON in practice) stored
// under a flat key, mirroring the browser local storage the ledgers were
// first written against.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("storage: key not found")

// ErrCorrupt is returned by GetJSON when the stored payload cannot be
// decoded. Callers treat it as "absent".
var ErrCorrupt = errors.New("storage: corrupt payload")

// Entry is one write in an atomic Apply batch. When Delete is set the key
// is removed and Value is ignored.
type Entry struct {
	Key    string
	Value  string
	Delete bool
}

// Put returns a write entry.
func Put(key, value string) Entry { return Entry{Key: key, Value: value} }

// Del returns a delete entry.
func Del(key string) Entry { return Entry{Key: key, Delete: true} }

// Store is the persistence contract used by the ledgers.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Apply performs every entry or none of them.
	Apply(ctx context.Context, entries ...Entry) error
}

// GetJSON decodes the value under key into v. It returns ErrNotFound when
// the key is absent and ErrCorrupt (wrapping the decode error) when the
// payload does not parse.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, key, err)
	}
	return nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	e, err := PutJSON(key, v)
	if err != nil {
		return err
	}
	return s.Set(ctx, e.Key, e.Value)
}

// PutJSON encodes v into a write entry for Apply.
func PutJSON(key string, v any) (Entry, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return Put(key, string(b)), nil
}
