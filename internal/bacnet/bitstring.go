package bacnet

// BitString is an immutable BACnet bit string. Bit 0 is the most significant
// bit of the first content octet, as on the wire.
type BitString struct {
	bits []byte
	n    int
}

// NewBitString returns a bit string of n cleared bits.
func NewBitString(n int) BitString {
	if n < 0 {
		n = 0
	}
	return BitString{bits: make([]byte, (n+7)/8), n: n}
}

// BitStringFromUint builds an n-bit string where bit i is (v>>i)&1.
func BitStringFromUint(v uint32, n int) BitString {
	if n > 32 {
		n = 32
	}
	bs := NewBitString(n)
	for i := 0; i < n; i++ {
		if v&(1<<i) != 0 {
			bs.bits[i/8] |= 0x80 >> (i % 8)
		}
	}
	return bs
}

func (b BitString) Len() int { return b.n }

func (b BitString) Bit(i int) bool {
	if i < 0 || i >= b.n {
		return false
	}
	return b.bits[i/8]&(0x80>>(i%8)) != 0
}

// WithBit returns a copy of b with bit i set to v. Bits beyond the current
// length extend the string.
func (b BitString) WithBit(i int, v bool) BitString {
	n := b.n
	if i >= n {
		n = i + 1
	}
	out := NewBitString(n)
	copy(out.bits, b.bits)
	if v {
		out.bits[i/8] |= 0x80 >> (i % 8)
	} else {
		out.bits[i/8] &^= 0x80 >> (i % 8)
	}
	return out
}

// Truncate keeps the first n bits.
func (b BitString) Truncate(n int) BitString {
	if n >= b.n {
		return b
	}
	out := NewBitString(n)
	copy(out.bits, b.bits[:len(out.bits)])
	if rem := n % 8; rem != 0 {
		out.bits[len(out.bits)-1] &= byte(0xFF << (8 - rem))
	}
	return out
}

// Uint32 packs the first 32 bits so that bit i lands at (1<<i).
func (b BitString) Uint32() uint32 {
	var v uint32
	for i := 0; i < b.n && i < 32; i++ {
		if b.Bit(i) {
			v |= 1 << i
		}
	}
	return v
}

func (b BitString) content() []byte {
	unused := 0
	if rem := b.n % 8; rem != 0 {
		unused = 8 - rem
	}
	out := make([]byte, 0, 1+len(b.bits))
	out = append(out, byte(unused))
	return append(out, b.bits...)
}

func decodeBitString(content []byte) (BitString, error) {
	if len(content) == 0 {
		return BitString{}, ErrTruncated
	}
	unused := int(content[0])
	if unused > 7 || (len(content) == 1 && unused != 0) {
		return BitString{}, ErrUnexpectedTag
	}
	n := (len(content)-1)*8 - unused
	return BitString{bits: append([]byte(nil), content[1:]...), n: n}, nil
}
