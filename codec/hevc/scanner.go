package hevc

import (
	"io"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/expgolomb"
)

var errEmptyNAL = errors.New("hevc: empty NAL unit")

// rawNAL mirrors codec/avc's scanned-unit shape; HEVC Annex-B framing
// uses the identical start-code/trailing-zero-attribution rule.
type rawNAL struct {
	ebsp []byte
}

type nalScanner struct {
	bs      *bytestream.ByteStream
	started bool
	done    bool
}

func newNALScanner(bs *bytestream.ByteStream) *nalScanner { return &nalScanner{bs: bs} }

func (sc *nalScanner) findStartCode() error {
	zeros := 0
	for {
		b, ok := sc.bs.GetByte()
		if !ok {
			if sc.bs.EOF() {
				return io.EOF
			}
			return bytestream.ErrSticky
		}
		switch {
		case b == 0x00:
			zeros++
		case b == 0x01 && zeros >= 2:
			return nil
		default:
			zeros = 0
		}
	}
}

func (sc *nalScanner) Next() (*rawNAL, error) {
	if sc.done {
		return nil, io.EOF
	}
	if !sc.started {
		if err := sc.findStartCode(); err != nil {
			sc.done = true
			return nil, err
		}
		sc.started = true
	}
	var payload []byte
	zeros := 0
	for {
		b, ok := sc.bs.GetByte()
		if !ok {
			if sc.bs.EOF() {
				sc.done = true
				return &rawNAL{ebsp: payload}, nil
			}
			return nil, bytestream.ErrSticky
		}
		if b == 0x00 {
			zeros++
			continue
		}
		if b == 0x01 && zeros >= 2 {
			return &rawNAL{ebsp: payload}, nil
		}
		for i := 0; i < zeros; i++ {
			payload = append(payload, 0x00)
		}
		zeros = 0
		payload = append(payload, b)
	}
}

func parseNAL(raw *rawNAL) (*NALUnit, error) {
	if len(raw.ebsp) < 2 {
		return nil, errEmptyNAL
	}
	typ, layerID, temporalID, err := ParseNALHeader(raw.ebsp[0], raw.ebsp[1])
	if err != nil {
		return nil, err
	}
	rbsp := expgolomb.EBSPToRBSP(raw.ebsp[2:])
	return &NALUnit{Type: typ, LayerID: layerID, TemporalID: temporalID, RBSP: rbsp, EBSPLen: len(raw.ebsp)}, nil
}
