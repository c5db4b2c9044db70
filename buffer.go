package webcodecs

// byteBuffer carries pixel or bitstream bytes together with their ownership.
// Borrowed buffers alias caller memory and must be retained (copied) before
// anything outlives the call that produced them; owned buffers are private to
// the holder. Frame and chunk constructors route every payload through this
// type so the no-aliasing-after-submit contract is carried by the type rather
// than by convention at each call site.
type byteBuffer struct {
	data  []byte
	owned bool
}

// borrowBytes wraps caller memory without copying.
func borrowBytes(data []byte) byteBuffer {
	return byteBuffer{data: data}
}

// adoptBytes takes ownership of a slice the caller promises not to reuse.
func adoptBytes(data []byte) byteBuffer {
	return byteBuffer{data: data, owned: true}
}

// retain returns an owned buffer: a copy when borrowed, itself when already
// owned.
func (b byteBuffer) retain() byteBuffer {
	if b.owned || b.data == nil {
		return b
	}
	dup := make([]byte, len(b.data))
	copy(dup, b.data)
	return byteBuffer{data: dup, owned: true}
}

// clone returns an independent owned copy regardless of current ownership.
func (b byteBuffer) clone() byteBuffer {
	if b.data == nil {
		return byteBuffer{}
	}
	dup := make([]byte, len(b.data))
	copy(dup, b.data)
	return byteBuffer{data: dup, owned: true}
}

// release drops the backing slice. A released buffer reports len 0 and
// released() true.
func (b *byteBuffer) release() {
	b.data = nil
	b.owned = false
}

func (b byteBuffer) released() bool { return b.data == nil }

func (b byteBuffer) len() int { return len(b.data) }
