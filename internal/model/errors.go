package model

import "errors"

var (
	// Precondition errors raised inside mutations
	ErrNoActiveSession = errors.New("no active session")
	ErrAssetNotFound   = errors.New("asset not found")

	// Input rejected before it reaches the store or the API
	ErrInvalidInput = errors.New("invalid input")

	// Local store lifecycle
	ErrStoreClosed = errors.New("store closed")
)
