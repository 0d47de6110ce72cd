package arena

import "bytes"

// ByteView is a read-only window over an arena's whole buffer.
type ByteView struct {
	owner *Arena
	data  []byte
}

// Len returns the buffer size.
func (v ByteView) Len() int {
	return len(v.data)
}

// At returns byte i.
func (v ByteView) At(i int) byte {
	v.owner.mustBeLive()
	return v.data[i]
}

// CopyTo copies the buffer into dst and returns the bytes copied.
func (v ByteView) CopyTo(dst []byte) int {
	v.owner.mustBeLive()
	return copy(dst, v.data)
}

// Equal reports whether the buffer holds exactly b.
func (v ByteView) Equal(b []byte) bool {
	v.owner.mustBeLive()
	return bytes.Equal(v.data, b)
}

// IsZero reports whether every byte is zero.
func (v ByteView) IsZero() bool {
	v.owner.mustBeLive()
	for _, b := range v.data {
		if b != 0 {
			return false
		}
	}
	return true
}
