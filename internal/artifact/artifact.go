// Package artifact encodes compiled chunks into the binary image consumed by
// the virtual machine, and decodes such images back.
//
// Layout, all integers big-endian:
//
//	magic u32 | version u32 | constant count u32 | constants...
//	function count u32 | per function: name index u32, argc u8, regcount u8,
//	instruction count u32, instructions u32...
//
// Each constant is a tag byte followed by its payload: 1 int64, 2 float64
// (IEEE 754 bits), 3 string (u32 byte length then UTF-8, no terminator).
package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xirelogy/go-epsilon/internal/bytecode"
)

const (
	Magic   uint32 = 0x45564D00 // "EVM\x00"
	Version uint32 = 1

	TagInt    byte = 1
	TagFloat  byte = 2
	TagString byte = 3

	// RegisterCount is written for every function regardless of how many
	// registers the code uses.
	RegisterCount byte = 255
)

var (
	ErrUnsupportedConstant = errors.New("unsupported constant type")
	ErrBadMagic            = errors.New("not an artifact: bad magic")
	ErrBadVersion          = errors.New("unsupported artifact version")
	ErrTruncated           = errors.New("artifact truncated")
)

// EncodeError reports a constant that has no wire representation.
type EncodeError struct {
	Index int
	Value interface{}
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("constant %d: %v %T", e.Index, ErrUnsupportedConstant, e.Value)
}

func (e *EncodeError) Unwrap() error {
	return ErrUnsupportedConstant
}

// Function is one entry of the function table.
type Function struct {
	NameIndex     uint32
	ArgCount      byte
	RegisterCount byte
	Code          []bytecode.Instruction
}

// Image is a decoded artifact.
type Image struct {
	Version   uint32
	Constants []interface{}
	Functions []Function
}

// Chunk rebuilds a chunk from the constants and the first function. Line
// information is not part of the format.
func (img *Image) Chunk() *bytecode.Chunk {
	chunk := bytecode.NewChunk()
	chunk.Consts = append(chunk.Consts, img.Constants...)
	if len(img.Functions) > 0 {
		fn := img.Functions[0]
		chunk.Code = append(chunk.Code, fn.Code...)
		chunk.Registers = int(fn.RegisterCount)
	}
	return chunk
}

// Marshal encodes chunk as a single-function image. Nothing is returned if
// any constant cannot be encoded.
func Marshal(chunk *bytecode.Chunk) ([]byte, error) {
	buf := make([]byte, 0, 16+9*len(chunk.Consts)+14+4*len(chunk.Code))
	buf = binary.BigEndian.AppendUint32(buf, Magic)
	buf = binary.BigEndian.AppendUint32(buf, Version)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(chunk.Consts)))
	for i, c := range chunk.Consts {
		var err error
		if buf, err = appendConstant(buf, i, c); err != nil {
			return nil, err
		}
	}

	buf = binary.BigEndian.AppendUint32(buf, 1) // function count
	buf = binary.BigEndian.AppendUint32(buf, 0) // name index
	buf = append(buf, 0, RegisterCount)        // argc, regcount
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(chunk.Code)))
	for _, ins := range chunk.Code {
		buf = binary.BigEndian.AppendUint32(buf, uint32(ins))
	}
	return buf, nil
}

func appendConstant(buf []byte, index int, v interface{}) ([]byte, error) {
	switch val := v.(type) {
	case int64:
		buf = append(buf, TagInt)
		return binary.BigEndian.AppendUint64(buf, uint64(val)), nil
	case int:
		buf = append(buf, TagInt)
		return binary.BigEndian.AppendUint64(buf, uint64(int64(val))), nil
	case int32:
		buf = append(buf, TagInt)
		return binary.BigEndian.AppendUint64(buf, uint64(int64(val))), nil
	case float64:
		buf = append(buf, TagFloat)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(val)), nil
	case float32:
		buf = append(buf, TagFloat)
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(float64(val))), nil
	case string:
		buf = append(buf, TagString)
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(val)))
		return append(buf, val...), nil
	default:
		return nil, &EncodeError{Index: index, Value: v}
	}
}

// WriteFile encodes chunk and commits it to path atomically: the image is
// written to a temporary file in the same directory and renamed over path
// only once complete. On failure path is left as it was.
func WriteFile(path string, chunk *bytecode.Chunk) error {
	data, err := Marshal(chunk)
	if err != nil {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("artifact: write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("artifact: sync %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("artifact: chmod %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		committed = true
		return fmt.Errorf("artifact: rename %s: %w", path, err)
	}
	committed = true
	return nil
}

// ReadFile reads and decodes the artifact at path.
func ReadFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", path, err)
	}
	return Unmarshal(data)
}

// Unmarshal decodes an image produced by Marshal.
func Unmarshal(data []byte) (*Image, error) {
	r := &reader{data: data}

	magic := r.u32()
	if r.err == nil && magic != Magic {
		return nil, fmt.Errorf("artifact: %w (0x%08X)", ErrBadMagic, magic)
	}
	img := &Image{Version: r.u32()}
	if r.err == nil && img.Version != Version {
		return nil, fmt.Errorf("artifact: %w %d", ErrBadVersion, img.Version)
	}

	count := r.u32()
	for i := uint32(0); i < count && r.err == nil; i++ {
		tag := r.u8()
		switch tag {
		case TagInt:
			img.Constants = append(img.Constants, int64(r.u64()))
		case TagFloat:
			img.Constants = append(img.Constants, math.Float64frombits(r.u64()))
		case TagString:
			n := r.u32()
			img.Constants = append(img.Constants, string(r.bytes(int(n))))
		default:
			if r.err == nil {
				return nil, fmt.Errorf("artifact: constant %d: unknown tag %d at offset %d", i, tag, r.off-1)
			}
		}
	}

	fnCount := r.u32()
	for i := uint32(0); i < fnCount && r.err == nil; i++ {
		fn := Function{
			NameIndex:     r.u32(),
			ArgCount:      r.u8(),
			RegisterCount: r.u8(),
		}
		n := r.u32()
		for j := uint32(0); j < n && r.err == nil; j++ {
			fn.Code = append(fn.Code, bytecode.Instruction(r.u32()))
		}
		img.Functions = append(img.Functions, fn)
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.off != len(data) {
		return nil, fmt.Errorf("artifact: %d trailing bytes after offset %d", len(data)-r.off, r.off)
	}
	return img, nil
}

// reader decodes big-endian fields and remembers the first short read.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("artifact: %w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
