package scan

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"
)

// Entry is the descriptor of one file stored in the archive, read from its central directory file header.
//
// See https://en.wikipedia.org/wiki/ZIP_(file_format)#Central_directory_file_header_(CDFH).
type Entry struct {
	// Name is the sanitized file name that is safe to use as a base name on the local file system.
	Name string
	// RawName is the file name exactly as stored in the central directory.
	RawName []byte

	// Method is the compression method. It is informational only since entries are never decompressed.
	Method uint16
	// Flags is the general purpose bit flag.
	Flags uint16
	// CRC32 is the checksum of the uncompressed data. It is informational only.
	CRC32 uint32
	// CompressedSize is the number of payload bytes stored in the archive.
	CompressedSize uint32
	// UncompressedSize is informational only.
	UncompressedSize uint32

	// NameLength is the length of the file name field.
	NameLength uint16
	// ExtraLength is the length of the central directory copy of the extra field.
	ExtraLength uint16
	// CommentLength is the length of the file comment field.
	CommentLength uint16

	// Offset is the offset of the local file header, relative to start of archive.
	Offset uint32
}

// Encrypted returns true if the general purpose bit flag marks the entry as encrypted.
func (e Entry) Encrypted() bool {
	return e.Flags&0x1 != 0
}

// CentralDirectory finds and reads the whole central directory of the archive in src.
//
// It is FindEOCD, ReadEOCD, and ReadCentralDirectory run in sequence. The returned entries are in the order they
// appear in the central directory.
func CentralDirectory(src io.ReadSeeker, optFns ...func(*Options)) (EOCDRecord, []Entry, error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return EOCDRecord{}, nil, err
	}

	offset, err := findEOCD(src, opts)
	if err != nil {
		return EOCDRecord{}, nil, err
	}

	r, err := ReadEOCD(src, offset)
	if err != nil {
		return r, nil, err
	}

	entries, err := readCentralDirectory(src, r, opts)
	return r, entries, err
}

// ReadCentralDirectory reads exactly [EOCDRecord.EntryCount] central directory file headers starting at
// [EOCDRecord.CDOffset].
//
// Only the file name of each header is read; the extra field and comment are skipped. Failing to read any header in
// full is fatal and returns ErrTruncatedCentralDirectory. A file name longer than [Options.MaxNameLength] returns
// ErrNameTooLong.
func ReadCentralDirectory(src io.ReadSeeker, r EOCDRecord, optFns ...func(*Options)) ([]Entry, error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return nil, err
	}

	return readCentralDirectory(src, r, opts)
}

func readCentralDirectory(src io.ReadSeeker, r EOCDRecord, opts *Options) ([]Entry, error) {
	if _, err := src.Seek(int64(r.CDOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("read central directory: set read offset to start of central directory (0x%x) error: %w", r.CDOffset, err)
	}

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	var (
		// br wraps src to provide buffered read.
		br      = bufio.NewReaderSize(src, opts.BufferSize)
		n       = r.EntryCount()
		entries = make([]Entry, 0, n)
	)

	for i := 0; i < n; i++ {
		select {
		case <-opts.Ctx.Done():
			return nil, opts.Ctx.Err()
		default:
		}

		bb.Reset()
		switch readN, err := bb.ReadFrom(io.LimitReader(br, cdfhLen)); {
		case err != nil:
			return nil, fmt.Errorf("read CD file header [%d/%d]: read error: %w", i+1, n, err)
		case readN < cdfhLen:
			return nil, fmt.Errorf("read CD file header [%d/%d]: %w: expected %d bytes, got %d", i+1, n, ErrTruncatedCentralDirectory, cdfhLen, readN)
		}

		e, err := unmarshalCDFileHeader(([cdfhLen]byte)(bb.B))
		if err != nil {
			return nil, fmt.Errorf("read CD file header [%d/%d]: %w", i+1, n, err)
		}

		if int(e.NameLength) > opts.MaxNameLength {
			return nil, fmt.Errorf("read CD file header [%d/%d]: %w: %d bytes exceeds limit of %d", i+1, n, ErrNameTooLong, e.NameLength, opts.MaxNameLength)
		}

		e.RawName = make([]byte, e.NameLength)
		switch readN, err := io.ReadFull(br, e.RawName); {
		case err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF):
			return nil, fmt.Errorf("read CD file header [%d/%d]: read file name error: %w", i+1, n, err)
		case readN < int(e.NameLength):
			return nil, fmt.Errorf("read CD file header [%d/%d]: read file name: %w: expected %d bytes, got %d", i+1, n, ErrTruncatedCentralDirectory, e.NameLength, readN)
		}
		e.Name = sanitizeName(e.RawName, opts.Placeholder)

		// the extra field and comment are not needed so only advance past them.
		skip := int(e.ExtraLength) + int(e.CommentLength)
		switch discarded, err := br.Discard(skip); {
		case err != nil && !errors.Is(err, io.EOF):
			return nil, fmt.Errorf("read CD file header [%d/%d]: skip extra field and comment error: %w", i+1, n, err)
		case discarded < skip:
			return nil, fmt.Errorf("read CD file header [%d/%d]: skip extra field and comment: %w: expected %d bytes, got %d", i+1, n, ErrTruncatedCentralDirectory, skip, discarded)
		}

		entries = append(entries, e)
	}

	return entries, nil
}

// unmarshalCDFileHeader decodes the fixed-size part of a central directory file header.
func unmarshalCDFileHeader(b [cdfhLen]byte) (e Entry, err error) {
	data := &struct {
		Signature         uint32
		CreatorVersion    uint16
		ReaderVersion     uint16
		Flags             uint16
		Method            uint16
		ModifiedTime      uint16
		ModifiedDate      uint16
		CRC32             uint32
		CompressedSize    uint32
		UncompressedSize  uint32
		FileNameLength    uint16
		ExtraFieldLength  uint16
		FileCommentLength uint16
		DiskNumber        uint16
		InternalAttrs     uint16
		ExternalAttrs     uint32
		Offset            uint32
	}{}

	if !bytes.Equal(cdfhSigBytes, b[:4]) {
		return e, fmt.Errorf("%w: got 0x%x, expected 0x%x", ErrInvalidCDFH, b[:4], cdfhSigBytes)
	}

	if err = binary.Read(bytes.NewReader(b[:]), binary.LittleEndian, data); err != nil {
		return e, fmt.Errorf("unmarshal error: %w", err)
	}

	return Entry{
		Method:           data.Method,
		Flags:            data.Flags,
		CRC32:            data.CRC32,
		CompressedSize:   data.CompressedSize,
		UncompressedSize: data.UncompressedSize,
		NameLength:       data.FileNameLength,
		ExtraLength:      data.ExtraFieldLength,
		CommentLength:    data.FileCommentLength,
		Offset:           data.Offset,
	}, nil
}
