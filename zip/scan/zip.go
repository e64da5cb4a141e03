package scan

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	lfhSig  = 0x04034b50
	cdfhSig = 0x02014b50
	eocdSig = 0x06054b50

	// lfhLen is the length of the fixed-size part of a local file header.
	lfhLen = 30
	// cdfhLen is the length of the fixed-size part of a central directory file header.
	cdfhLen = 46
	// eocdMinLen is the number of bytes of the EOCD record up to and including the central directory offset.
	eocdMinLen = 20
	// eocdLen is the length of the EOCD record without its comment.
	eocdLen = 22
)

var (
	lfhSigBytes  = putUint32(lfhSig)
	cdfhSigBytes = putUint32(cdfhSig)
	eocdSigBytes = putUint32(eocdSig)
)

func putUint32(v uint32) (b []byte) {
	b = make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

const (
	// DefaultMaxNameLength is the default value of [Options.MaxNameLength].
	DefaultMaxNameLength = 200

	// DefaultPlaceholder is the default value of [Options.Placeholder].
	DefaultPlaceholder byte = '_'

	// DefaultBufferSize is the default value of [Options.BufferSize].
	DefaultBufferSize = 16 * 1024
)

var (
	// ErrNoEOCDFound is returned if no EOCD signature was found.
	ErrNoEOCDFound = errors.New("end of central directory not found; most likely not a ZIP file")

	// ErrTruncatedEOCD is returned if the stream ends before the fixed-size part of the EOCD record.
	ErrTruncatedEOCD = errors.New("truncated end of central directory record")

	// ErrTruncatedCentralDirectory is returned if the stream ends in the middle of a central directory file header.
	ErrTruncatedCentralDirectory = errors.New("truncated central directory")

	// ErrInvalidCDFH is returned if a central directory file header does not start with its signature.
	ErrInvalidCDFH = errors.New("invalid central directory file header signature")

	// ErrNameTooLong is returned if a central directory file name is longer than [Options.MaxNameLength].
	ErrNameTooLong = errors.New("file name too long")

	// ErrCorruptedEntry is the sentinel wrapped by every CorruptedEntryError.
	ErrCorruptedEntry = errors.New("corrupted entry")
)

// CorruptedEntryError is returned by ReadLocalHeader if the local file header does not agree with its central
// directory file header.
type CorruptedEntryError struct {
	// Name is the sanitized name of the entry.
	Name string
	// Offset is the local header offset recorded in the central directory.
	Offset uint32
	// Reason describes the failed check.
	Reason string
}

func (e *CorruptedEntryError) Error() string {
	return fmt.Sprintf(`corrupted entry "%s" at offset 0x%08x: %s`, e.Name, e.Offset, e.Reason)
}

func (e *CorruptedEntryError) Unwrap() error {
	return ErrCorruptedEntry
}

// Options customises how the archive is scanned.
type Options struct {
	// Ctx can be given to cancel the scanning.
	Ctx context.Context

	// MaxBytes can be given to limit the number of bytes scanned backwards for the EOCD signature.
	//
	// By default, the zero value scans the entire stream.
	MaxBytes int64

	// MaxNameLength is the longest file name accepted from the central directory.
	//
	// Longer names fail the central directory read with ErrNameTooLong. By default, DefaultMaxNameLength is used.
	MaxNameLength int

	// Placeholder replaces every path separator byte in file names.
	//
	// By default, DefaultPlaceholder is used.
	Placeholder byte

	// BufferSize is the size of the read buffer used for scanning and for reading the central directory.
	//
	// By default, DefaultBufferSize is used.
	BufferSize int
}

func newOptions(optFns []func(*Options)) (*Options, error) {
	opts := &Options{
		Ctx:           context.Background(),
		MaxNameLength: DefaultMaxNameLength,
		Placeholder:   DefaultPlaceholder,
		BufferSize:    DefaultBufferSize,
	}
	for _, fn := range optFns {
		fn(opts)
	}

	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}

	switch {
	case opts.MaxNameLength <= 0 || opts.MaxNameLength > 0xffff:
		return nil, fmt.Errorf("invalid max name length %d: must be in range [1, 65535]", opts.MaxNameLength)
	case opts.Placeholder == 0 || isSeparator(opts.Placeholder):
		return nil, fmt.Errorf("invalid placeholder %q: must be a non-zero byte that is not a path separator", opts.Placeholder)
	case opts.BufferSize < 4:
		opts.BufferSize = DefaultBufferSize
	}

	return opts, nil
}
