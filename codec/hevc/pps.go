package hevc

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/expgolomb"
)

// PPS holds the picture parameter set fields this importer needs.
type PPS struct {
	ID               int
	SPSID            int
	DependentSliceSegmentsEnabledFlag bool
	OutputFlagPresentFlag             bool
	NumExtraSliceHeaderBits           uint64

	raw []byte
}

// ParsePPS parses a NAL unit's RBSP as a picture parameter set.
func ParsePPS(nal *NALUnit) (*PPS, error) {
	if nal.Type != NALTypePPS {
		return nil, errors.Errorf("hevc: not a PPS NAL (type %d)", nal.Type)
	}
	src := bytestream.New(bytes.NewReader(nal.RBSP), len(nal.RBSP)+8)
	br := bytestream.NewBitReader(src)

	p := &PPS{}
	var err error
	readBits := func(n int) uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = br.Get(n)
		return v
	}
	readBit := func() bool { return readBits(1) == 1 }
	readUE := func() uint64 {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = expgolomb.ReadUE(br)
		return v
	}

	p.ID = int(readUE())
	p.SPSID = int(readUE())
	p.DependentSliceSegmentsEnabledFlag = readBit()
	p.OutputFlagPresentFlag = readBit()
	p.NumExtraSliceHeaderBits = readBits(3)

	if err != nil {
		return nil, errors.Wrap(err, "hevc: parsing PPS")
	}
	return p, nil
}

func (p *PPS) setRaw(ebsp []byte) { p.raw = append([]byte(nil), ebsp...) }
func (p *PPS) Raw() []byte        { return p.raw }
