package eac3

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
)

func TestProbeSingleFrame(t *testing.T) {
	// strmtyp=0, substreamid=0, frmsiz=95 (->192 bytes), fscod=0 (48000),
	// numblkscod=3 (6 blocks), acmod=2 (stereo), lfeon=0.
	frmsiz := uint16(95)
	b2 := byte((frmsiz >> 8) & 0x7)
	b3 := byte(frmsiz)
	b4 := byte(0<<6) | byte(3<<4) | byte(2<<1) | 0
	hdr := []byte{0x0b, 0x77, b2, b3, b4}
	rest := bytes.Repeat([]byte{0xAA}, 192-5)
	data := append(hdr, rest...)

	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}
	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Frequency != 48000 {
		t.Errorf("Frequency = %d, want 48000", summary.Frequency)
	}
	if summary.Channels != 2 {
		t.Errorf("Channels = %d, want 2", summary.Channels)
	}
	if summary.SamplesInFrame != 6*256 {
		t.Errorf("SamplesInFrame = %d, want %d", summary.SamplesInFrame, 6*256)
	}
}

func TestProbeRejectsBadSync(t *testing.T) {
	bs := bytestream.New(bytes.NewReader(make([]byte, 8)), 16)
	im := &Importer{src: bs}
	if _, err := im.Probe(); err == nil {
		t.Error("expected error for missing syncword")
	}
}
