// Package output writes resolution results to their destinations: the CSV
// dataset file and the console.
package output

import (
	"errors"
	"fmt"

	"pypitypes/internal/resolver"
)

// Result is one completed package resolution, tagged with its position in the
// batch for progress reporting.
type Result struct {
	Index   int
	Total   int
	Outcome resolver.Outcome
}

// Sink is a destination for resolution results. Implementations must be safe
// for concurrent Write calls; the resolver reports completions from worker
// goroutines.
type Sink interface {
	Write(res Result) error
	Close() error
}

// Manager fans results out to every configured sink.
type Manager struct {
	sinks []Sink
}

func NewManager(sinks ...Sink) *Manager {
	m := &Manager{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *Manager) AddSink(s Sink) error {
	if s == nil {
		return errors.New("sink must not be nil")
	}
	m.sinks = append(m.sinks, s)
	return nil
}

func (m *Manager) Write(res Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(res); err != nil {
			errs = append(errs, fmt.Errorf("write %T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}
