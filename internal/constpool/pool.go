// Package constpool implements the deduplicated typed constant pool
// used by IR and bytecode: two insertions with equal (type, bytes)
// return the identical handle.
package constpool

import (
	"encoding/binary"
	"math"

	"upp/internal/types"
)

// Handle identifies one constant within the pool.
type Handle int

// Entry is one resident constant.
type Entry struct {
	Type  *types.Type
	Bytes []byte
}

// Pool is an append-only arena of typed byte blobs, indexed both by
// handle and by (type handle, bytes) for deduplication.
type Pool struct {
	entries []Entry
	index   map[key]Handle
}

type key struct {
	typeHandle uint64
	bytes      string
}

// New creates an empty constant pool.
func New() *Pool {
	return &Pool{index: make(map[key]Handle, 256)}
}

// Insert deduplicates (t, bytes) and returns its handle.
func (p *Pool) Insert(t *types.Type, bytes []byte) Handle {
	k := key{typeHandle: t.Handle, bytes: string(bytes)}
	if h, ok := p.index[k]; ok {
		return h
	}
	h := Handle(len(p.entries))
	p.entries = append(p.entries, Entry{Type: t, Bytes: append([]byte(nil), bytes...)})
	p.index[k] = h
	return h
}

// Get returns the entry for a handle.
func (p *Pool) Get(h Handle) Entry {
	return p.entries[h]
}

// Len reports the number of distinct constants held.
func (p *Pool) Len() int { return len(p.entries) }

// Convenience encoders for the common scalar widths; the bytecode
// generator and the bake evaluator both need these when interning
// literal and computed constants.

func EncodeInt64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

func EncodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func EncodeInt32(v int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(v))
	return b
}

func EncodeFloat64(v float64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	return b
}

func EncodeFloat32(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func EncodeBool(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

func EncodeString(v string) []byte {
	return []byte(v)
}

func DecodeInt64(b []byte) int64 {
	return int64(binary.LittleEndian.Uint64(b))
}

func DecodeInt32(b []byte) int32 {
	return int32(binary.LittleEndian.Uint32(b))
}

func DecodeFloat64(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func DecodeFloat32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func DecodeBool(b []byte) bool {
	return len(b) > 0 && b[0] != 0
}
