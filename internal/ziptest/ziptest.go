// Package ziptest lays out ZIP archives byte by byte for tests.
//
// Unlike archive/zip, the layout can be made inconsistent on purpose (different local and central extra fields,
// mismatched file name lengths) and every offset is reported back so that tests can corrupt specific bytes.
package ziptest

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// Entry is a stored file to be written by Build.
type Entry struct {
	Name string
	Data []byte

	// Method is written to both headers as-is; Data is never compressed.
	Method uint16
	// LocalExtra is the extra field of the local file header.
	LocalExtra []byte
	// CentralExtra is the extra field of the central directory file header.
	CentralExtra []byte
	// Comment is the file comment in the central directory file header.
	Comment []byte
	// LocalName replaces Name in the local file header if not nil.
	LocalName []byte
}

// Archive is the result of Build.
type Archive struct {
	Bytes []byte

	// Offsets contains the local file header offset of each entry, in the order given to Build.
	Offsets []int64
	// DataOffsets contains the offset of the first payload byte of each entry.
	DataOffsets []int64
	// CDOffset is the offset of the central directory.
	CDOffset int64
	// EOCDOffset is the offset of the end of central directory signature.
	EOCDOffset int64
}

// Build writes local file headers and payloads, then the central directory, then the EOCD record with the given
// archive comment.
func Build(entries []Entry, comment []byte) Archive {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}

	return BuildWithOrder(entries, comment, order)
}

// BuildWithOrder is a variant of Build that writes the central directory file headers in the given order.
//
// order[j] is the index of the entry whose header is the j-th one in the central directory. The local file headers and
// payloads are still written in the order of entries, so are Archive.Offsets and Archive.DataOffsets.
func BuildWithOrder(entries []Entry, comment []byte, order []int) Archive {
	var (
		buf = &bytes.Buffer{}
		a   = Archive{}
		w   = func(v any) {
			if b, ok := v.([]byte); ok {
				buf.Write(b)
				return
			}

			if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
				panic(err)
			}
		}
	)

	for _, e := range entries {
		localName := []byte(e.Name)
		if e.LocalName != nil {
			localName = e.LocalName
		}

		a.Offsets = append(a.Offsets, int64(buf.Len()))

		w([]byte("\x50\x4b\x03\x04"))
		w(uint16(20)) // version needed
		w(uint16(0))  // flags
		w(e.Method)
		w(uint16(0))    // mod time
		w(uint16(0x21)) // mod date, 1980-01-01
		w(crc32.ChecksumIEEE(e.Data))
		w(uint32(len(e.Data)))
		w(uint32(len(e.Data)))
		w(uint16(len(localName)))
		w(uint16(len(e.LocalExtra)))
		w(localName)
		w(e.LocalExtra)

		a.DataOffsets = append(a.DataOffsets, int64(buf.Len()))
		w(e.Data)
	}

	a.CDOffset = int64(buf.Len())
	for _, i := range order {
		e := entries[i]
		w([]byte("\x50\x4b\x01\x02"))
		w(uint16(20)) // version made by
		w(uint16(20)) // version needed
		w(uint16(0))  // flags
		w(e.Method)
		w(uint16(0))
		w(uint16(0x21))
		w(crc32.ChecksumIEEE(e.Data))
		w(uint32(len(e.Data)))
		w(uint32(len(e.Data)))
		w(uint16(len(e.Name)))
		w(uint16(len(e.CentralExtra)))
		w(uint16(len(e.Comment)))
		w(uint16(0)) // disk number start
		w(uint16(0)) // internal attributes
		w(uint32(0)) // external attributes
		w(uint32(a.Offsets[i]))
		w([]byte(e.Name))
		w(e.CentralExtra)
		w(e.Comment)
	}
	cdSize := int64(buf.Len()) - a.CDOffset

	a.EOCDOffset = int64(buf.Len())
	w([]byte("\x50\x4b\x05\x06"))
	w(uint16(0)) // disk number
	w(uint16(0)) // disk with central directory
	w(uint16(len(order)))
	w(uint16(len(order)))
	w(uint32(cdSize))
	w(uint32(a.CDOffset))
	w(uint16(len(comment)))
	w(comment)

	a.Bytes = buf.Bytes()
	return a
}
