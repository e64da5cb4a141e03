package scan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// EOCDRecord models the end of central directory record of a ZIP file.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#End_of_central_directory_record_(EOCD).
type EOCDRecord struct {
	// Offset is the offset of the EOCD signature, relative to start of archive.
	Offset int64
	// DiskNumber is number of this disk.
	DiskNumber uint16
	// CDDiskOffset is disk where central directory starts.
	CDDiskOffset uint16
	// CDCountOnDisk is the number of central directory records on this disk.
	CDCountOnDisk uint16
	// CDCount is the total number of central directory records.
	CDCount uint16
	// CDSize is size of central directory (bytes).
	CDSize uint32
	// CDOffset is offset of start of central directory, relative to start of archive.
	CDOffset uint32
	// CommentLength is the length of the archive comment, or 0 if the stream ends before the field.
	CommentLength uint16
}

// EntryCount returns the number of central directory file headers to read.
//
// The count is the 16-bit field at offset 8 of the record. Spanned archives are not supported so it is always the same
// as CDCount for well-formed archives.
func (r EOCDRecord) EntryCount() int {
	return int(r.CDCountOnDisk)
}

// FindEOCD scans the given src backwards from its last byte for the EOCD signature.
//
// Returns the offset where the last occurrence of the signature begins, or ErrNoEOCDFound if the scan reaches the start
// of src (or [Options.MaxBytes]) without a match. The EOCD record may be followed by a comment of unknown length so
// its position cannot be computed from the end of the stream. A comment that happens to contain the signature bytes
// will produce a false match.
func FindEOCD(src io.ReadSeeker, optFns ...func(*Options)) (int64, error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return -1, err
	}

	return findEOCD(src, opts)
}

func findEOCD(src io.ReadSeeker, opts *Options) (int64, error) {
	size, err := src.Seek(0, io.SeekEnd)
	if err != nil {
		return -1, fmt.Errorf("find EOCD: determine size error: %w", err)
	}

	var (
		// buf holds the window being scanned; windows are read from the end of src towards its start.
		buf = make([]byte, opts.BufferSize)
		// matched is the number of signature bytes matched so far, starting from the last one.
		matched int
		end     = size
		limit   int64
	)

	if opts.MaxBytes > 0 {
		limit = max(0, size-opts.MaxBytes)
	}

	for end > limit {
		select {
		case <-opts.Ctx.Done():
			return -1, opts.Ctx.Err()
		default:
		}

		start := max(limit, end-int64(len(buf)))
		b := buf[:end-start]

		if _, err = src.Seek(start, io.SeekStart); err != nil {
			return -1, fmt.Errorf("find EOCD: set read offset at %d from start error: %w", start, err)
		}
		if _, err = io.ReadFull(src, b); err != nil {
			return -1, fmt.Errorf("find EOCD: read %d bytes at offset %d error: %w", len(b), start, err)
		}

		for i := len(b) - 1; i >= 0; i-- {
			switch c := b[i]; {
			case c == eocdSigBytes[3-matched]:
				matched++
			case c == eocdSigBytes[3]:
				matched = 1
			default:
				matched = 0
			}

			if matched == 4 {
				return start + int64(i), nil
			}
		}

		end = start
	}

	return -1, ErrNoEOCDFound
}

// ReadEOCD reads the EOCD record whose signature starts at the given offset.
//
// Returns ErrTruncatedEOCD if src ends before the central directory offset field.
func ReadEOCD(src io.ReadSeeker, offset int64) (r EOCDRecord, err error) {
	if _, err = src.Seek(offset, io.SeekStart); err != nil {
		return r, fmt.Errorf("read EOCD: set read offset at %d from start error: %w", offset, err)
	}

	b := make([]byte, eocdLen)
	n, err := io.ReadFull(src, b)
	switch {
	case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF):
		return r, fmt.Errorf("read EOCD: read error: %w", err)
	case n < eocdMinLen:
		return r, fmt.Errorf("read EOCD: %w: need at least %d bytes, got %d", ErrTruncatedEOCD, eocdMinLen, n)
	}

	return unmarshalEOCDRecord(offset, b[:n])
}

// unmarshalEOCDRecord decodes at least the first 20 bytes of the EOCD record.
//
// The comment length is only decoded if b contains the full 22-byte record.
func unmarshalEOCDRecord(offset int64, b []byte) (r EOCDRecord, err error) {
	if len(b) < eocdMinLen {
		return r, fmt.Errorf("read EOCD: %w: need at least %d bytes, got %d", ErrTruncatedEOCD, eocdMinLen, len(b))
	}

	if !bytes.Equal(eocdSigBytes, b[:4]) {
		return r, fmt.Errorf("read EOCD: mismatched signature, got 0x%x, expected 0x%x", b[:4], eocdSigBytes)
	}

	r = EOCDRecord{
		Offset:        offset,
		DiskNumber:    binary.LittleEndian.Uint16(b[4:6]),
		CDDiskOffset:  binary.LittleEndian.Uint16(b[6:8]),
		CDCountOnDisk: binary.LittleEndian.Uint16(b[8:10]),
		CDCount:       binary.LittleEndian.Uint16(b[10:12]),
		CDSize:        binary.LittleEndian.Uint32(b[12:16]),
		CDOffset:      binary.LittleEndian.Uint32(b[16:20]),
	}
	if len(b) >= eocdLen {
		r.CommentLength = binary.LittleEndian.Uint16(b[20:22])
	}

	return r, nil
}
