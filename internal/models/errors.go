package models

import "errors"

var (
	ErrPassNotFound       = errors.New("pass not found")
	ErrPassExpired        = errors.New("pass expired")
	ErrSeatNotFound       = errors.New("seat not found")
	ErrDefinitionNotFound = errors.New("pass definition not found")
	ErrSeatUnavailable    = errors.New("seat unavailable")
	ErrPassAlreadySeated  = errors.New("pass already seated")
	ErrInvalidPassKind    = errors.New("invalid pass kind")
	ErrNotOccupied        = errors.New("seat not occupied")
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindNotOccupied
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindNotOccupied:
		return "not_occupied"
	default:
		return "internal"
	}
}

// KindOf classifies err by the sentinel it wraps.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrPassNotFound),
		errors.Is(err, ErrPassExpired),
		errors.Is(err, ErrSeatNotFound),
		errors.Is(err, ErrDefinitionNotFound):
		return KindNotFound
	case errors.Is(err, ErrSeatUnavailable), errors.Is(err, ErrPassAlreadySeated):
		return KindConflict
	case errors.Is(err, ErrInvalidPassKind):
		return KindInvalidInput
	case errors.Is(err, ErrNotOccupied):
		return KindNotOccupied
	}
	return KindInternal
}
