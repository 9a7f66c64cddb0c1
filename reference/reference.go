// Package reference generates the reference number and timestamp attached to
// every executed statement.
package reference

import (
	"time"

	"github.com/google/uuid"
)

// TimestampLayout is the layout of Reference.Timestamp.
const TimestampLayout = time.RFC3339Nano

// Reference identifies one executed statement.
type Reference struct {
	No        string
	Timestamp string
}

// Generator produces a fresh Reference per call.
type Generator interface {
	Next() Reference
}

// UUIDGenerator issues random (v4) UUID reference numbers.
type UUIDGenerator struct {
	now func() time.Time
}

// Option configures a UUIDGenerator.
type Option func(*UUIDGenerator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *UUIDGenerator) {
		g.now = now
	}
}

// NewGenerator returns a UUID based Generator.
func NewGenerator(opts ...Option) *UUIDGenerator {
	g := &UUIDGenerator{now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Next implements Generator.
func (g *UUIDGenerator) Next() Reference {
	return Reference{
		No:        uuid.NewString(),
		Timestamp: g.now().UTC().Format(TimestampLayout),
	}
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() Reference

// Next implements Generator.
func (f GeneratorFunc) Next() Reference {
	return f()
}
