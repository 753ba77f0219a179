/*
NAME
  bytestream.go

DESCRIPTION
  bytestream.go provides a seekable, buffered byte source used by the
  codec parsers to scan and consume elementary-stream bytes without each
  parser reimplementing buffering and refill.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>
  Dan Kortschak <dan@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package bytestream provides a buffered, seekable byte source and a
// bit-level reader over it, used by the elementary-stream codec parsers.
package bytestream

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrSticky is returned by reads made after the ByteStream's error flag has
// been set; the stream quietly produces zeros for bounded reads so callers
// fail cleanly at the next validity check rather than act on stale data.
var ErrSticky = errors.New("bytestream: read after sticky error")

// defaultBufSize is the standard buffer size used when none is given.
const defaultBufSize = 4 << 10

// ByteStream is a seekable byte stream with an internal buffer. Reads
// beyond the buffered window trigger a refill from the underlying reader;
// back-seeks within the buffered window are served without touching the
// underlying reader.
type ByteStream struct {
	r io.Reader
	s io.Seeker // non-nil if r also implements io.Seeker.

	buf []byte // internal buffer; buf[:store] holds valid bytes.
	pos int    // read position within buf.

	store int // number of valid bytes currently in buf.
	base  int64 // absolute stream offset of buf[0].

	eof   bool
	eob   bool // end-of-buffer: last refill returned 0 bytes at end of file.
	erred bool
}

// New returns a new ByteStream reading from r, with an internal buffer of
// the given capacity. If bufSize is 0, a default size is used. If r also
// implements io.Seeker, back-seeks outside the buffered window are served
// by seeking the underlying reader; otherwise such seeks fail.
func New(r io.Reader, bufSize int) *ByteStream {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	bs := &ByteStream{r: r, buf: make([]byte, 0, bufSize)}
	if s, ok := r.(io.Seeker); ok {
		bs.s = s
	}
	return bs
}

// Error reports whether the stream's sticky error flag is set.
func (bs *ByteStream) Error() bool { return bs.erred }

// EOF reports whether the stream has reached end-of-file.
func (bs *ByteStream) EOF() bool { return bs.eof }

// Offset returns the absolute stream offset of the next byte to be read.
func (bs *ByteStream) Offset() int64 { return bs.base + int64(bs.pos) }

// fail sets the sticky error flag. Once set, all subsequent reads
// (Get*/Show*) quietly return zero values.
func (bs *ByteStream) fail() {
	bs.erred = true
}

// ensure guarantees that n bytes are available for reading at buf[pos:],
// refilling and compacting the buffer as needed. It reports whether n
// bytes are now available.
func (bs *ByteStream) ensure(n int) bool {
	if bs.erred {
		return false
	}
	for bs.store-bs.pos < n {
		if !bs.refill() {
			return bs.store-bs.pos >= n
		}
	}
	return true
}

// refill reads more data into the buffer, compacting first if necessary.
// It reports whether any forward progress was possible.
func (bs *ByteStream) refill() bool {
	if bs.eof {
		return false
	}
	if bs.pos > 0 {
		n := copy(bs.buf[:cap(bs.buf)], bs.buf[bs.pos:bs.store])
		bs.base += int64(bs.pos)
		bs.store = n
		bs.pos = 0
		bs.buf = bs.buf[:bs.store]
	}
	if bs.store == cap(bs.buf) {
		// Buffer full of unconsumed data but caller wants more: grow it.
		grown := make([]byte, bs.store, cap(bs.buf)*2)
		copy(grown, bs.buf)
		bs.buf = grown
	}
	n, err := bs.r.Read(bs.buf[bs.store:cap(bs.buf)])
	bs.buf = bs.buf[:bs.store+n]
	bs.store += n
	if err != nil {
		if err == io.EOF {
			bs.eof = true
		} else {
			bs.fail()
			return false
		}
	}
	if n == 0 {
		bs.eob = bs.eof
		return false
	}
	return true
}

// IsEnd reports whether fewer than remaining bytes are available between
// the current position and the end of stream.
func (bs *ByteStream) IsEnd(remaining int) bool {
	if bs.ensure(remaining) {
		return false
	}
	return bs.store-bs.pos < remaining
}

// Skip advances the read position by n bytes.
func (bs *ByteStream) Skip(n int) error {
	for n > 0 {
		avail := bs.store - bs.pos
		if avail == 0 {
			if !bs.refill() {
				if bs.eof {
					return io.EOF
				}
				return ErrSticky
			}
			continue
		}
		d := n
		if d > avail {
			d = avail
		}
		bs.pos += d
		n -= d
	}
	return nil
}

// ReadSeek seeks to offset relative to whence (io.SeekStart, io.SeekCurrent,
// io.SeekEnd is not supported). A back-seek within the buffered window is
// served without touching the underlying reader; otherwise the underlying
// reader must be seekable.
func (bs *ByteStream) ReadSeek(offset int64, whence int) error {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = bs.Offset() + offset
	default:
		return errors.New("bytestream: unsupported whence")
	}
	if target >= bs.base && target <= bs.base+int64(bs.store) {
		bs.pos = int(target - bs.base)
		bs.eof = false
		return nil
	}
	if bs.s == nil {
		return errors.New("bytestream: seek outside buffer on unseekable source")
	}
	_, err := bs.s.Seek(target, io.SeekStart)
	if err != nil {
		bs.fail()
		return err
	}
	bs.base = target
	bs.pos = 0
	bs.store = 0
	bs.buf = bs.buf[:0]
	bs.eof = false
	return nil
}

// peek returns the n bytes starting offset bytes past the current
// position, without consuming them, returning nil and false on failure
// (sticky error or EOF).
func (bs *ByteStream) peek(offset, n int) ([]byte, bool) {
	if !bs.ensure(offset + n) {
		return nil, false
	}
	return bs.buf[bs.pos+offset : bs.pos+offset+n], true
}

// ShowByte returns the byte at offset from the current position without
// consuming it.
func (bs *ByteStream) ShowByte(offset int) (byte, bool) {
	b, ok := bs.peek(offset, 1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

// ShowBE16 returns the big-endian uint16 at offset without consuming it.
func (bs *ByteStream) ShowBE16(offset int) (uint16, bool) {
	b, ok := bs.peek(offset, 2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(b), true
}

// ShowBE24 returns the big-endian 24-bit value at offset without consuming
// it.
func (bs *ByteStream) ShowBE24(offset int) (uint32, bool) {
	b, ok := bs.peek(offset, 3)
	if !ok {
		return 0, false
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), true
}

// ShowBE32 returns the big-endian uint32 at offset without consuming it.
func (bs *ByteStream) ShowBE32(offset int) (uint32, bool) {
	b, ok := bs.peek(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

// ShowBE64 returns the big-endian uint64 at offset without consuming it.
func (bs *ByteStream) ShowBE64(offset int) (uint64, bool) {
	b, ok := bs.peek(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint64(b), true
}

// ShowLE16 returns the little-endian uint16 at offset without consuming it.
func (bs *ByteStream) ShowLE16(offset int) (uint16, bool) {
	b, ok := bs.peek(offset, 2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

// ShowLE32 returns the little-endian uint32 at offset without consuming it.
func (bs *ByteStream) ShowLE32(offset int) (uint32, bool) {
	b, ok := bs.peek(offset, 4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

// ShowLE64 returns the little-endian uint64 at offset without consuming it.
func (bs *ByteStream) ShowLE64(offset int) (uint64, bool) {
	b, ok := bs.peek(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// GetByte consumes and returns the next byte.
func (bs *ByteStream) GetByte() (byte, bool) {
	b, ok := bs.ShowByte(0)
	if !ok {
		return 0, false
	}
	bs.pos++
	return b, true
}

// GetBE16 consumes and returns the next big-endian uint16.
func (bs *ByteStream) GetBE16() (uint16, bool) {
	v, ok := bs.ShowBE16(0)
	if !ok {
		return 0, false
	}
	bs.pos += 2
	return v, true
}

// GetBE24 consumes and returns the next big-endian 24-bit value.
func (bs *ByteStream) GetBE24() (uint32, bool) {
	v, ok := bs.ShowBE24(0)
	if !ok {
		return 0, false
	}
	bs.pos += 3
	return v, true
}

// GetBE32 consumes and returns the next big-endian uint32.
func (bs *ByteStream) GetBE32() (uint32, bool) {
	v, ok := bs.ShowBE32(0)
	if !ok {
		return 0, false
	}
	bs.pos += 4
	return v, true
}

// GetBE64 consumes and returns the next big-endian uint64.
func (bs *ByteStream) GetBE64() (uint64, bool) {
	v, ok := bs.ShowBE64(0)
	if !ok {
		return 0, false
	}
	bs.pos += 8
	return v, true
}

// GetLE16 consumes and returns the next little-endian uint16.
func (bs *ByteStream) GetLE16() (uint16, bool) {
	v, ok := bs.ShowLE16(0)
	if !ok {
		return 0, false
	}
	bs.pos += 2
	return v, true
}

// GetLE32 consumes and returns the next little-endian uint32.
func (bs *ByteStream) GetLE32() (uint32, bool) {
	v, ok := bs.ShowLE32(0)
	if !ok {
		return 0, false
	}
	bs.pos += 4
	return v, true
}

// GetLE64 consumes and returns the next little-endian uint64.
func (bs *ByteStream) GetLE64() (uint64, bool) {
	v, ok := bs.ShowLE64(0)
	if !ok {
		return 0, false
	}
	bs.pos += 8
	return v, true
}

// Read reads up to len(p) bytes, consuming them, satisfying io.Reader so a
// ByteStream can itself be wrapped (e.g. by bufio or an expgolomb reader).
func (bs *ByteStream) Read(p []byte) (int, error) {
	if bs.erred {
		return 0, ErrSticky
	}
	if bs.store-bs.pos == 0 {
		if !bs.refill() {
			if bs.eof {
				return 0, io.EOF
			}
			return 0, ErrSticky
		}
	}
	n := copy(p, bs.buf[bs.pos:bs.store])
	bs.pos += n
	return n, nil
}

// GetBytes consumes and returns the next n bytes as a copy.
func (bs *ByteStream) GetBytes(n int) ([]byte, bool) {
	b, ok := bs.peek(0, n)
	if !ok {
		return nil, false
	}
	out := make([]byte, n)
	copy(out, b)
	bs.pos += n
	return out, true
}
