package domain

import "errors"

var (
	// ErrNotFound is returned by store reads for absent records.
	ErrNotFound = errors.New("record not found")

	// ErrGenerationEmpty marks a generation call that returned an empty or
	// malformed result. The triggering message gets no automated reply.
	ErrGenerationEmpty = errors.New("generation returned empty response")
)
