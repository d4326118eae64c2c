// Package view implements the bounded packet read cursor described in the
// simulator's data model: a slice-backed window with three anchors (current,
// last commit, and the absolute original range) supporting typed big-endian
// reads, rollback to the last commit, and peek-from-end.
//
// Ported from the C++ util_view::View class: pointer pairs become slice
// index pairs, and std::out_of_range becomes a plain bool/error return —
// truncation is an expected outcome here, not an exception.
package view

import (
	"encoding/binary"

	"flowlab.dev/flowlab/internal/errors"
)

// Cursor is a bounded read cursor over a byte slice.
type Cursor struct {
	buf []byte

	begin, end     int // current view [begin, end)
	beginCP, endCP int // checkpoint (last commit)
	beginAbs       int // absolute (original) range, fixed for the Cursor's life
	endAbs         int
}

// NewCursor creates a Cursor over buf[0:len(buf)].
func NewCursor(buf []byte) *Cursor {
	return &Cursor{
		buf:      buf,
		begin:    0,
		end:      len(buf),
		beginCP:  0,
		endCP:    len(buf),
		beginAbs: 0,
		endAbs:   len(buf),
	}
}

// NewCursorN creates a Cursor over buf[0:n], where n may differ from
// len(buf) when the caller knows the original (pre-truncation) wire length.
func NewCursorN(buf []byte, n int) *Cursor {
	end := n
	if end > len(buf) {
		end = len(buf)
	}
	return &Cursor{
		buf:      buf,
		begin:    0,
		end:      end,
		beginCP:  0,
		endCP:    end,
		beginAbs: 0,
		endAbs:   n,
	}
}

// Sufficient reports whether n bytes remain in the current view.
func (c *Cursor) Sufficient(n int) bool {
	return c.begin+n <= c.end
}

// Discard advances the start of the view by n bytes.
func (c *Cursor) Discard(n int) error {
	if !c.Sufficient(n) {
		return errors.New(errors.Truncated, "insufficient bytes to discard")
	}
	c.begin += n
	return nil
}

// DiscardEnd retracts the end of the view by n bytes.
func (c *Cursor) DiscardEnd(n int) error {
	if !c.Sufficient(n) {
		return errors.New(errors.Truncated, "insufficient bytes to discard from end")
	}
	c.end -= n
	return nil
}

// Bytes returns the number of bytes remaining in the current view.
func (c *Cursor) Bytes() int { return c.end - c.begin }

// CommittedBytes returns the number of bytes in the last-committed view.
func (c *Cursor) CommittedBytes() int { return c.endCP - c.beginCP }

// AbsoluteBytes returns the number of bytes in the original view.
func (c *Cursor) AbsoluteBytes() int { return c.endAbs - c.beginAbs }

// PendingBytes returns bytes consumed since the last commit.
func (c *Cursor) PendingBytes() int { return c.CommittedBytes() - c.Bytes() }

// Commit moves the checkpoint to the current view.
func (c *Cursor) Commit() {
	c.beginCP = c.begin
	c.endCP = c.end
}

// Rollback restores the current view to the last checkpoint.
func (c *Cursor) Rollback() {
	c.begin = c.beginCP
	c.end = c.endCP
}

// Revert restores the current view to the original absolute range.
func (c *Cursor) Revert() {
	c.begin = c.beginAbs
	c.end = c.endAbs
	if c.end > len(c.buf) {
		c.end = len(c.buf)
	}
}

// Peek8 reads one byte without advancing the cursor.
func (c *Cursor) Peek8() (uint8, error) {
	if !c.Sufficient(1) {
		return 0, errors.New(errors.Truncated, "insufficient bytes to read u8")
	}
	return c.buf[c.begin], nil
}

// Peek16 reads a big-endian uint16 without advancing the cursor.
func (c *Cursor) Peek16() (uint16, error) {
	if !c.Sufficient(2) {
		return 0, errors.New(errors.Truncated, "insufficient bytes to read u16")
	}
	return binary.BigEndian.Uint16(c.buf[c.begin:]), nil
}

// Peek32 reads a big-endian uint32 without advancing the cursor.
func (c *Cursor) Peek32() (uint32, error) {
	if !c.Sufficient(4) {
		return 0, errors.New(errors.Truncated, "insufficient bytes to read u32")
	}
	return binary.BigEndian.Uint32(c.buf[c.begin:]), nil
}

// PeekBytes returns, without advancing, a view of the next n bytes.
func (c *Cursor) PeekBytes(n int) ([]byte, error) {
	if !c.Sufficient(n) {
		return nil, errors.New(errors.Truncated, "insufficient bytes to peek")
	}
	return c.buf[c.begin : c.begin+n], nil
}

// Get8 reads and advances past one byte.
func (c *Cursor) Get8() (uint8, error) {
	v, err := c.Peek8()
	if err != nil {
		return 0, err
	}
	c.begin++
	return v, nil
}

// Get16 reads and advances past a big-endian uint16.
func (c *Cursor) Get16() (uint16, error) {
	v, err := c.Peek16()
	if err != nil {
		return 0, err
	}
	c.begin += 2
	return v, nil
}

// Get32 reads and advances past a big-endian uint32.
func (c *Cursor) Get32() (uint32, error) {
	v, err := c.Peek32()
	if err != nil {
		return 0, err
	}
	c.begin += 4
	return v, nil
}

// GetBytes reads and advances past n bytes, returning a view (not a copy).
func (c *Cursor) GetBytes(n int) ([]byte, error) {
	b, err := c.PeekBytes(n)
	if err != nil {
		return nil, err
	}
	c.begin += n
	return b, nil
}

// PeekEnd48 reads the last 6 bytes of the view without advancing, used for
// MAC addresses packed into the low 48 bits of a uint64.
func (c *Cursor) PeekEnd48() (uint64, error) {
	if !c.Sufficient(6) {
		return 0, errors.New(errors.Truncated, "insufficient bytes to read end-anchored mac")
	}
	b := c.buf[c.end-6 : c.end]
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v, nil
}
