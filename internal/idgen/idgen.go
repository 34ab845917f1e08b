// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package idgen is the one place that mints ULIDs, shared by every caller
// that needs a time-ordered, unforgeable identifier: session ids (§4.7),
// event envelope ids (§3's "ULID-like time-ordered" requirement).
package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid"
)

// Generator produces monotonic ULIDs for one clock source. Not safe to
// share a *ulid.MonotonicEntropy across generators, so each Generator owns
// its own.
type Generator struct {
	clock func() time.Time

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New builds a Generator. clock defaults to time.Now if nil.
func New(clock func() time.Time) *Generator {
	if clock == nil {
		clock = time.Now
	}
	return &Generator{clock: clock}
}

// Next returns a new ULID string, ordered after every previous id this
// Generator produced at the same millisecond.
func (g *Generator) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.entropy == nil {
		g.entropy = ulid.Monotonic(entropySource(), 0)
	}
	id, err := ulid.New(ulid.Timestamp(g.clock()), g.entropy)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id.String(), nil
}

// entropySource adapts google/uuid's random generator to an io.Reader of
// entropy for oklog/ulid, so both id schemes in the dependency table share
// one random source instead of importing math/rand directly.
func entropySource() *uuidEntropyReader {
	return &uuidEntropyReader{}
}

type uuidEntropyReader struct{}

func (uuidEntropyReader) Read(p []byte) (int, error) {
	total := len(p)
	for len(p) > 0 {
		u := uuid.New()
		n := copy(p, u[:])
		p = p[n:]
	}
	return total, nil
}
