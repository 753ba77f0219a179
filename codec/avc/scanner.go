package avc

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/expgolomb"
)

var errEmptyNAL = errors.New("avc: empty NAL unit")

// rawNAL is one scanned NAL unit: its EBSP bytes (header included, with
// emulation-prevention bytes still present) and whether it was introduced
// by a long (4-byte) start code.
type rawNAL struct {
	ebsp      []byte
	longStart bool
}

// nalScanner scans an Annex-B byte stream for NAL units delimited by
// 00 00 01 / 00 00 00 01 start codes. Trailing zero bytes preceding a
// start code are not included in the preceding NAL's payload; they are
// folded into the following start code's length, promoting a short start
// code to a long one, per spec.md section 4.4.
type nalScanner struct {
	bs          *bytestream.ByteStream
	started     bool
	pendingLong bool
	done        bool
}

func newNALScanner(bs *bytestream.ByteStream) *nalScanner {
	return &nalScanner{bs: bs}
}

// findStartCode advances past bytes until a start code's trailing 0x01 is
// consumed, returning the number of zero bytes that preceded it.
func (sc *nalScanner) findStartCode() (int, error) {
	zeros := 0
	for {
		b, ok := sc.bs.GetByte()
		if !ok {
			if sc.bs.EOF() {
				return 0, io.EOF
			}
			return 0, bytestream.ErrSticky
		}
		switch {
		case b == 0x00:
			zeros++
		case b == 0x01 && zeros >= 2:
			return zeros, nil
		default:
			zeros = 0
		}
	}
}

// Next returns the next NAL unit's raw EBSP bytes, or io.EOF when the
// stream is exhausted.
func (sc *nalScanner) Next() (*rawNAL, error) {
	if sc.done {
		return nil, io.EOF
	}
	if !sc.started {
		zeros, err := sc.findStartCode()
		if err != nil {
			sc.done = true
			return nil, err
		}
		sc.started = true
		sc.pendingLong = zeros >= 3
	}

	var payload []byte
	zeros := 0
	for {
		b, ok := sc.bs.GetByte()
		if !ok {
			if sc.bs.EOF() {
				sc.done = true
				return &rawNAL{ebsp: payload, longStart: sc.pendingLong}, nil
			}
			return nil, bytestream.ErrSticky
		}
		if b == 0x00 {
			zeros++
			continue
		}
		if b == 0x01 && zeros >= 2 {
			cur := &rawNAL{ebsp: payload, longStart: sc.pendingLong}
			sc.pendingLong = zeros >= 3
			return cur, nil
		}
		for i := 0; i < zeros; i++ {
			payload = append(payload, 0x00)
		}
		zeros = 0
		payload = append(payload, b)
	}
}

// parseNAL parses a raw scanned NAL's header and strips emulation
// prevention bytes from its payload to produce the RBSP.
func parseNAL(raw *rawNAL) (*NALUnit, error) {
	if len(raw.ebsp) == 0 {
		return nil, errEmptyNAL
	}
	forbiddenZero, refIdc, typ, err := ParseNALHeader(raw.ebsp[0])
	if err != nil {
		return nil, err
	}
	rbsp := expgolomb.EBSPToRBSP(raw.ebsp[1:])
	return &NALUnit{
		ForbiddenZeroBit: forbiddenZero,
		RefIdc:           refIdc,
		Type:             typ,
		RBSP:             rbsp,
		EBSPLen:          len(raw.ebsp),
	}, nil
}
