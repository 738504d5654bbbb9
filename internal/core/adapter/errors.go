package adapter

import "errors"

var (
	ErrDuplicateAdapter = errors.New("adapter already registered")
	ErrNoSolver         = errors.New("component has no solver")
	// ErrUnsupportedComponent is returned when a component matches an
	// adapter by class but lacks the particle access the adapter needs.
	ErrUnsupportedComponent = errors.New("component does not expose the particles the adapter needs")
)
