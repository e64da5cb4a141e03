package scan

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// LocalHeader is the fixed-size part of a local file header that has been validated against its Entry.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Local_file_header.
type LocalHeader struct {
	// Offset is the offset of the local file header, relative to start of archive.
	Offset int64
	// Method is the compression method recorded in the local file header.
	Method uint16
	// NameLength is the length of the file name field. It always equals [Entry.NameLength].
	NameLength uint16
	// ExtraLength is the length of the local copy of the extra field.
	//
	// This can legitimately differ from [Entry.ExtraLength] so it must be used to find the start of the payload.
	ExtraLength uint16
}

// DataOffset returns the offset of the first payload byte, relative to start of archive.
func (h LocalHeader) DataOffset() int64 {
	return h.Offset + lfhLen + int64(h.NameLength) + int64(h.ExtraLength)
}

// ReadLocalHeader seeks src to [Entry.Offset] and reads the local file header there.
//
// The header is checked against the given central directory entry: it must start with the local file header signature
// and must declare the same file name length. A *CorruptedEntryError (which wraps ErrCorruptedEntry) is returned if
// either check fails or if src ends before the end of the fixed-size header. Upon a successful return, src is
// positioned immediately after the fixed-size header, i.e. at the start of the file name.
func ReadLocalHeader(src io.ReadSeeker, e Entry) (h LocalHeader, err error) {
	if _, err = src.Seek(int64(e.Offset), io.SeekStart); err != nil {
		return h, fmt.Errorf("read local file header: set read offset to 0x%x error: %w", e.Offset, err)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	switch readN, err := bb.ReadFrom(io.LimitReader(src, lfhLen)); {
	case err != nil && !errors.Is(err, io.EOF):
		return h, fmt.Errorf("read local file header: read error: %w", err)
	case readN < lfhLen:
		return h, &CorruptedEntryError{
			Name:   e.Name,
			Offset: e.Offset,
			Reason: fmt.Sprintf("truncated local file header: expected %d bytes, got %d", lfhLen, readN),
		}
	}

	if h, err = unmarshalLocalFileHeader(([lfhLen]byte)(bb.B)); err != nil {
		return h, &CorruptedEntryError{Name: e.Name, Offset: e.Offset, Reason: err.Error()}
	}

	if h.NameLength != e.NameLength {
		return h, &CorruptedEntryError{
			Name:   e.Name,
			Offset: e.Offset,
			Reason: fmt.Sprintf("mismatched file name length: central directory has %d, local file header has %d", e.NameLength, h.NameLength),
		}
	}

	h.Offset = int64(e.Offset)
	return h, nil
}

// unmarshalLocalFileHeader decodes the fixed-size part of a local file header.
func unmarshalLocalFileHeader(b [lfhLen]byte) (h LocalHeader, err error) {
	data := &struct {
		Signature        uint32
		ReaderVersion    uint16
		Flags            uint16
		Method           uint16
		ModifiedTime     uint16
		ModifiedDate     uint16
		CRC32            uint32
		CompressedSize   uint32
		UncompressedSize uint32
		FileNameLength   uint16
		ExtraFieldLength uint16
	}{}

	if !bytes.Equal(lfhSigBytes, b[:4]) {
		return h, fmt.Errorf("mismatched signature, got 0x%x, expected 0x%x", b[:4], lfhSigBytes)
	}

	if err = binary.Read(bytes.NewReader(b[:]), binary.LittleEndian, data); err != nil {
		return h, fmt.Errorf("unmarshal error: %w", err)
	}

	return LocalHeader{
		Method:      data.Method,
		NameLength:  data.FileNameLength,
		ExtraLength: data.ExtraFieldLength,
	}, nil
}
