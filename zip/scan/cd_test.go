package scan

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/nguyengg/uzip/internal/ziptest"
	"github.com/stretchr/testify/assert"
)

func TestCentralDirectory(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{
			Name: "a.txt",
			Data: []byte("abcd"),
		},
		{
			Name:         "path/to/b.txt",
			Data:         []byte("hello, world!"),
			Method:       8,
			CentralExtra: []byte{0x55, 0x54, 0x05, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00},
			Comment:      []byte("a comment"),
		},
		{
			Name: `windows\style.txt`,
		},
	}, []byte("archive comment"))

	r, entries, err := CentralDirectory(bytes.NewReader(a.Bytes))
	assert.NoErrorf(t, err, "CentralDirectory(...) error = %v", err)
	assert.Equal(t, 3, r.EntryCount())
	assert.Equal(t, []Entry{
		{
			Name:             "a.txt",
			RawName:          []byte("a.txt"),
			CRC32:            0xed82cd11,
			CompressedSize:   4,
			UncompressedSize: 4,
			NameLength:       5,
			Offset:           uint32(a.Offsets[0]),
		},
		{
			Name:             "path_to_b.txt",
			RawName:          []byte("path/to/b.txt"),
			Method:           8,
			CRC32:            0x58988d13,
			CompressedSize:   13,
			UncompressedSize: 13,
			NameLength:       13,
			ExtraLength:      9,
			CommentLength:    9,
			Offset:           uint32(a.Offsets[1]),
		},
		{
			Name:       "windows_style.txt",
			RawName:    []byte(`windows\style.txt`),
			NameLength: 17,
			Offset:     uint32(a.Offsets[2]),
		},
	}, entries)
}

func TestCentralDirectory_Empty(t *testing.T) {
	a := ziptest.Build(nil, nil)

	r, entries, err := CentralDirectory(bytes.NewReader(a.Bytes))
	assert.NoErrorf(t, err, "CentralDirectory(...) error = %v", err)
	assert.Equal(t, 0, r.EntryCount())
	assert.Empty(t, entries)
}

func TestCentralDirectory_Placeholder(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a/b/c.txt"}}, nil)

	_, entries, err := CentralDirectory(bytes.NewReader(a.Bytes), func(options *Options) {
		options.Placeholder = '-'
	})
	assert.NoErrorf(t, err, "CentralDirectory(...) error = %v", err)
	assert.Equal(t, "a-b-c.txt", entries[0].Name)
}

func TestCentralDirectory_InvalidOptions(t *testing.T) {
	a := ziptest.Build(nil, nil)

	_, _, err := CentralDirectory(bytes.NewReader(a.Bytes), func(options *Options) {
		options.Placeholder = '/'
	})
	assert.Errorf(t, err, "CentralDirectory(...) with '/' placeholder should have failed")

	_, _, err = CentralDirectory(bytes.NewReader(a.Bytes), func(options *Options) {
		options.MaxNameLength = 0x10000
	})
	assert.Errorf(t, err, "CentralDirectory(...) with too large max name length should have failed")
}

func TestCentralDirectory_NameTooLong(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "abcd"},
		{Name: "abcde"},
	}, nil)

	_, _, err := CentralDirectory(bytes.NewReader(a.Bytes), func(options *Options) {
		options.MaxNameLength = 4
	})
	assert.ErrorIsf(t, err, ErrNameTooLong, "CentralDirectory(...) error = %v, want ErrNameTooLong", err)

	_, entries, err := CentralDirectory(bytes.NewReader(a.Bytes), func(options *Options) {
		options.MaxNameLength = 5
	})
	assert.NoErrorf(t, err, "CentralDirectory(...) error = %v", err)
	assert.Len(t, entries, 2)
}

func TestCentralDirectory_Truncated(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a.txt", Data: []byte("abcd")}}, nil)

	// point the central directory 10 bytes before the EOCD so that only 32 bytes are left to read.
	data := bytes.Clone(a.Bytes)
	binary.LittleEndian.PutUint32(data[a.EOCDOffset+16:], uint32(a.EOCDOffset-10))

	_, _, err := CentralDirectory(bytes.NewReader(data))
	assert.ErrorIsf(t, err, ErrTruncatedCentralDirectory, "CentralDirectory(...) error = %v, want ErrTruncatedCentralDirectory", err)
}

func TestCentralDirectory_TruncatedName(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a.txt"}}, nil)

	// the central directory file header claims a name far longer than what is left in the stream.
	data := bytes.Clone(a.Bytes)
	binary.LittleEndian.PutUint16(data[a.CDOffset+28:], 150)

	_, _, err := CentralDirectory(bytes.NewReader(data))
	assert.ErrorIsf(t, err, ErrTruncatedCentralDirectory, "CentralDirectory(...) error = %v, want ErrTruncatedCentralDirectory", err)
}

func TestCentralDirectory_CountMismatch(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{{Name: "a.txt"}}, bytes.Repeat([]byte("c"), 30))

	// the EOCD claims two entries but the second read hits the EOCD itself.
	data := bytes.Clone(a.Bytes)
	binary.LittleEndian.PutUint16(data[a.EOCDOffset+8:], 2)

	_, _, err := CentralDirectory(bytes.NewReader(data))
	assert.ErrorIsf(t, err, ErrInvalidCDFH, "CentralDirectory(...) error = %v, want ErrInvalidCDFH", err)
}

func TestReadCentralDirectory_EntryCountFromEOCD(t *testing.T) {
	a := ziptest.Build([]ziptest.Entry{
		{Name: "a.txt"},
		{Name: "b.txt"},
		{Name: "c.txt"},
	}, nil)

	// only the requested number of headers is read even if there are more.
	entries, err := ReadCentralDirectory(bytes.NewReader(a.Bytes), EOCDRecord{CDCountOnDisk: 2, CDOffset: uint32(a.CDOffset)})
	assert.NoErrorf(t, err, "ReadCentralDirectory(...) error = %v", err)
	assert.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
}
