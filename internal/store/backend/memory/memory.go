// Package memory is an in-process document store used by tests and demos.
package memory

import (
	"context"
	"sync"

	"github.com/vesaa/backdrop/internal/store/common"
)

// Backend keeps documents in a map and counts round trips.
type Backend struct {
	mu   sync.Mutex
	docs map[string][]byte

	gets, puts int

	// GetErr / PutErr, when set, are returned instead of touching the map.
	GetErr error
	PutErr error
}

// New creates an empty Backend.
func New() *Backend {
	return &Backend{docs: make(map[string][]byte)}
}

// Get returns a copy of the document at p.
func (b *Backend) Get(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	if b.GetErr != nil {
		return nil, b.GetErr
	}
	doc, ok := b.docs[p]
	if !ok {
		return nil, common.ErrNotFound
	}
	return append([]byte(nil), doc...), nil
}

// Put replaces the document at p.
func (b *Backend) Put(ctx context.Context, p string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	if b.PutErr != nil {
		return b.PutErr
	}
	b.docs[p] = append([]byte(nil), body...)
	return nil
}

// SetErrors swaps the injected failures under the lock.
func (b *Backend) SetErrors(getErr, putErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.GetErr, b.PutErr = getErr, putErr
}

// Gets is the number of Get calls so far.
func (b *Backend) Gets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets
}

// Puts is the number of Put calls so far.
func (b *Backend) Puts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}

// Raw returns the stored bytes at p, or nil.
func (b *Backend) Raw(p string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.docs[p]...)
}
