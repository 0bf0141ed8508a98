package interp

import "encoding/binary"

// regionBase identifies which of the four address regions addr falls
// in; addr 0 is the reserved null pointer and never resolves.
func regionBase(addr int64) (int64, bool) {
	switch {
	case addr == 0:
		return 0, false
	case addr >= heapBase:
		return heapBase, true
	case addr >= stackBase:
		return stackBase, true
	case addr >= globalBase:
		return globalBase, true
	case addr >= constBase:
		return constBase, true
	default:
		return 0, false
	}
}

// bytesFor returns a slice of n live bytes starting at addr, growing
// the heap region on demand (the heap's backing buffer only grows as
// far as something has actually addressed into it).
func (m *Machine) bytesFor(addr int64, n int) []byte {
	base, ok := regionBase(addr)
	if !ok {
		m.fault("null or invalid pointer dereference")
	}
	off := int(addr - base)
	if off < 0 {
		m.fault("invalid address 0x%x", addr)
	}
	switch base {
	case constBase:
		if off+n > len(m.prog.ConstantBytes) {
			m.fault("constant read out of bounds")
		}
		return m.prog.ConstantBytes[off : off+n]
	case globalBase:
		if off+n > len(m.globals) {
			m.fault("global read out of bounds")
		}
		return m.globals[off : off+n]
	case stackBase:
		if off+n > len(m.stack) {
			m.fault("stack access out of bounds")
		}
		return m.stack[off : off+n]
	case heapBase:
		return m.heap.bytes(off, n)
	default:
		m.fault("unreachable memory region")
		return nil
	}
}

func (m *Machine) readBytes(addr int64, n int) []byte {
	return append([]byte(nil), m.bytesFor(addr, n)...)
}

func (m *Machine) writeBytes(addr int64, data []byte) {
	copy(m.bytesFor(addr, len(data)), data)
}

// frameAddr turns an in-frame byte offset (as every bcgen operand
// expresses locals, params and scratch) into an absolute virtual
// address in the current frame's stack region.
func (m *Machine) frameAddr(off int32) int64 {
	return m.curFrame().base + int64(off)
}

func (m *Machine) readFrame(off int32, n int) []byte {
	return m.readBytes(m.frameAddr(off), n)
}

func (m *Machine) writeFrame(off int32, data []byte) {
	m.writeBytes(m.frameAddr(off), data)
}

func (m *Machine) readAddrAt(off int32) int64 {
	return int64(binary.LittleEndian.Uint64(m.readFrame(off, 8)))
}

func (m *Machine) writeAddrAt(off int32, addr int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(addr))
	m.writeFrame(off, b[:])
}

func (m *Machine) move(dst, src int32, size int32) {
	m.writeFrame(dst, m.readFrame(src, int(size)))
}
