package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/caption-ml/caption/internal/tensor"
)

// File is a fully parsed .capt checkpoint.
type File struct {
	Header  Header
	Flags   uint32
	Tensors map[string]*tensor.Tensor
}

// Read parses a .capt file from disk.
func Read(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint: %w", err)
	}
	defer f.Close()

	magic := make([]byte, len(MagicBytes))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("reading magic bytes: %w", err)
	}
	if string(magic) != MagicBytes {
		return nil, fmt.Errorf("not a checkpoint file: bad magic %q", magic)
	}

	var version, flags uint32
	if err := binary.Read(f, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("reading format version: %w", err)
	}
	if version != FormatVersion {
		return nil, fmt.Errorf("unsupported checkpoint format version %d", version)
	}
	if err := binary.Read(f, binary.LittleEndian, &flags); err != nil {
		return nil, fmt.Errorf("reading flags: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(f, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("reading header size: %w", err)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(f, headerJSON); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("parsing checkpoint header: %w", err)
	}

	payloadStart := int64(len(MagicBytes)) + 4 + 4 + 8 + int64(headerSize)
	if pad := (HeaderAlignment - payloadStart%HeaderAlignment) % HeaderAlignment; pad > 0 {
		payloadStart += pad
	}

	tensors := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		shape := tensor.Shape(meta.Shape)
		if want := int64(shape.NumElements()) * 4; want != meta.Size {
			return nil, fmt.Errorf("tensor %q: shape %v needs %d bytes, header says %d", meta.Name, shape, want, meta.Size)
		}
		raw := make([]byte, meta.Size)
		if _, err := f.ReadAt(raw, payloadStart+meta.Offset); err != nil {
			return nil, fmt.Errorf("reading tensor %q: %w", meta.Name, err)
		}
		t := tensor.MustNew(shape.Clone(), tensor.CPU)
		data := t.Data()
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		tensors[meta.Name] = t
	}

	return &File{Header: header, Flags: flags, Tensors: tensors}, nil
}
