// Package storage holds error classification shared by the DynamoDB-backed
// stores. Reads are idempotent and safe to retry on ErrStoreUnavailable;
// conditional writes are not retried blindly.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable wraps transport or availability failures from the
	// backing store.
	ErrStoreUnavailable = errors.New("storage: store unavailable")

	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("storage: document not found")

	// ErrMalformedDocument indicates a persisted document failed schema
	// validation at the store boundary. Readers reject these rather than
	// silently defaulting missing fields.
	ErrMalformedDocument = errors.New("storage: malformed document")
)

// Unavailable tags err as a store-availability failure while preserving the
// original chain for errors.Is / errors.As.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrStoreUnavailable, err)
}

// Malformed reports a document that failed boundary validation.
func Malformed(kind string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedDocument, kind, err)
}
