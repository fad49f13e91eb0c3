package tracker

import "errors"

var (
	// ErrInvalidInput marks bad caller input: missing channel, unparseable
	// custom kill time, out-of-range values.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownBoss marks an event type absent from the catalog.
	ErrUnknownBoss = errors.New("unknown boss")
	// ErrNotFound marks a record id with no active instance.
	ErrNotFound = errors.New("record not found")
	// ErrNotImplemented marks a backend scheme that is recognized but has
	// no implementation.
	ErrNotImplemented = errors.New("not implemented")
)
