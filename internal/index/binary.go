package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// magicNumber identifies docsearch index files (ASCII "DSIX").
	magicNumber = 0x44534958
	// formatVersion is the current file format version.
	formatVersion = 1
)

var (
	ErrInvalidMagic   = errors.New("index: invalid magic number")
	ErrInvalidVersion = errors.New("index: unsupported format version")
)

// fileHeader precedes the contiguous little-endian float32 vector data.
type fileHeader struct {
	Magic       uint32
	Version     uint32
	Dimension   uint32
	Reserved    uint32
	VectorCount uint64
}

// WriteTo writes the index in binary format: a fixed header followed by
// Size()*Dim() little-endian float32 values.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	header := fileHeader{
		Magic:       magicNumber,
		Version:     formatVersion,
		Dimension:   uint32(f.dim),
		VectorCount: uint64(f.Size()),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return 0, err
	}
	if err := binary.Write(w, binary.LittleEndian, f.data); err != nil {
		return 0, err
	}
	return int64(binary.Size(&header)) + int64(len(f.data))*4, nil
}

// ReadFlat reads an index previously written with WriteTo.
func ReadFlat(r io.Reader) (*Flat, error) {
	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("index: read header: %w", err)
	}
	if header.Magic != magicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidVersion, header.Version)
	}
	const (
		maxDimension = 100_000
		maxVectors   = 100_000_000
		maxElements  = 1 << 30
	)
	if header.Dimension == 0 || header.Dimension > maxDimension {
		return nil, fmt.Errorf("index: header dimension %d out of range", header.Dimension)
	}
	if header.VectorCount > maxVectors {
		return nil, fmt.Errorf("index: vector count %d exceeds limit", header.VectorCount)
	}
	if header.VectorCount*uint64(header.Dimension) > maxElements {
		return nil, fmt.Errorf("index: header claims %d vectors of dimension %d, too large",
			header.VectorCount, header.Dimension)
	}

	f := &Flat{dim: int(header.Dimension)}
	f.data = make([]float32, int(header.VectorCount)*f.dim)
	if err := binary.Read(r, binary.LittleEndian, f.data); err != nil {
		return nil, fmt.Errorf("index: read vectors: %w", err)
	}
	return f, nil
}
