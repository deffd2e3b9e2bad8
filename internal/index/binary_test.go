package index

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func TestBinaryRoundTrip(t *testing.T) {
	f, _ := NewFlat(3)
	if err := f.Add([][]float32{
		{1, 2, 3},
		{4, 5, 6},
		{0, 0, 1},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	got, err := ReadFlat(&buf)
	if err != nil {
		t.Fatalf("ReadFlat failed: %v", err)
	}
	if got.Dim() != f.Dim() || got.Size() != f.Size() {
		t.Fatalf("Shape mismatch: got %dx%d, want %dx%d", got.Size(), got.Dim(), f.Size(), f.Dim())
	}
	for i := 0; i < f.Size(); i++ {
		if !reflect.DeepEqual(got.Vector(i), f.Vector(i)) {
			t.Errorf("Vector %d mismatch: %v vs %v", i, got.Vector(i), f.Vector(i))
		}
	}
}

func TestBinaryRoundTripEmpty(t *testing.T) {
	f, _ := NewFlat(8)
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	got, err := ReadFlat(&buf)
	if err != nil {
		t.Fatalf("ReadFlat failed: %v", err)
	}
	if got.Size() != 0 || got.Dim() != 8 {
		t.Errorf("Expected empty 8-dim index, got %dx%d", got.Size(), got.Dim())
	}
}

func TestReadFlatInvalidMagic(t *testing.T) {
	data := make([]byte, 64)
	if _, err := ReadFlat(bytes.NewReader(data)); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}
}

func TestReadFlatCorruptHeader(t *testing.T) {
	cases := []struct {
		name   string
		header fileHeader
	}{
		{"zero dimension", fileHeader{Magic: magicNumber, Version: formatVersion, Dimension: 0, VectorCount: 1}},
		{"huge dimension", fileHeader{Magic: magicNumber, Version: formatVersion, Dimension: 0xFFFFFFFF, VectorCount: 99_999_999}},
		{"huge vector count", fileHeader{Magic: magicNumber, Version: formatVersion, Dimension: 4, VectorCount: 1 << 40}},
		{"oversized product", fileHeader{Magic: magicNumber, Version: formatVersion, Dimension: 100_000, VectorCount: 100_000_000}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := binary.Write(&buf, binary.LittleEndian, &tc.header); err != nil {
				t.Fatal(err)
			}
			// Must reject the header without attempting the allocation.
			if _, err := ReadFlat(&buf); err == nil {
				t.Error("Expected error for corrupt header")
			}
		})
	}
}

func TestReadFlatTruncated(t *testing.T) {
	f, _ := NewFlat(3)
	_ = f.Add([][]float32{{1, 2, 3}, {4, 5, 6}})

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	truncated := buf.Bytes()[:buf.Len()-5]
	if _, err := ReadFlat(bytes.NewReader(truncated)); err == nil {
		t.Error("Expected error for truncated data")
	}
}
