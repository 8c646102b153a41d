package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/caption-ml/caption/internal/tensor"
)

// Write serializes the named tensors and training metadata to path. The
// file is written to a temporary name and renamed into place so a crash
// never leaves a truncated checkpoint behind.
func Write(path string, tensors map[string]*tensor.Tensor, training TrainingMeta, flags uint32) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	metas := make([]TensorMeta, 0, len(names))
	var offset int64
	for _, name := range names {
		t := tensors[name]
		size := int64(t.NumElements()) * 4
		metas = append(metas, TensorMeta{
			Name:   name,
			Shape:  append([]int(nil), t.Shape()...),
			Offset: offset,
			Size:   size,
		})
		offset += size
	}

	headerJSON, err := json.Marshal(Header{
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Tensors:       metas,
		Training:      training,
	})
	if err != nil {
		return fmt.Errorf("marshaling checkpoint header: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".capt-*")
	if err != nil {
		return fmt.Errorf("creating checkpoint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeBody(tmp, headerJSON, names, tensors, flags); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing checkpoint temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming checkpoint into place: %w", err)
	}
	return nil
}

func writeBody(f *os.File, headerJSON []byte, names []string, tensors map[string]*tensor.Tensor, flags uint32) error {
	if _, err := f.Write([]byte(MagicBytes)); err != nil {
		return fmt.Errorf("writing magic bytes: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(FormatVersion)); err != nil {
		return fmt.Errorf("writing format version: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, flags); err != nil {
		return fmt.Errorf("writing flags: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("writing header size: %w", err)
	}
	if _, err := f.Write(headerJSON); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	// Pad so the payload starts on an alignment boundary.
	pos := int64(len(MagicBytes)) + 4 + 4 + 8 + int64(len(headerJSON))
	if pad := (HeaderAlignment - pos%HeaderAlignment) % HeaderAlignment; pad > 0 {
		if _, err := f.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("writing alignment padding: %w", err)
		}
	}

	for _, name := range names {
		data := tensors[name].Data()
		buf := make([]byte, len(data)*4)
		for i, v := range data {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
		if _, err := f.Write(buf); err != nil {
			return fmt.Errorf("writing tensor %q: %w", name, err)
		}
	}
	return nil
}
