package uzip

import (
	"errors"
)

var (
	// ErrTruncatedPayload is returned by Extract if the archive ends before the entry's compressed size is copied.
	ErrTruncatedPayload = errors.New("truncated payload")

	// ErrCreateDestination is returned by Extract if the output file cannot be created.
	ErrCreateDestination = errors.New("cannot create destination file")

	// ErrInvalidOutputName is returned by Extract if the sanitized name cannot be used as a file name.
	//
	// This is the case for empty names as well as "." and "..".
	ErrInvalidOutputName = errors.New("invalid output name")
)
