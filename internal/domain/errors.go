package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrTransient    = errors.New("transient failure")
	ErrInvalidInput = errors.New("invalid input")
)
