package ac3

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
)

func TestProbeSingleFrame(t *testing.T) {
	// fscod=0 (48000), frmsizecod=0 -> 64 words -> 128 bytes.
	// bsid=8, bsmod=0; acmod=2 (stereo) in the following byte.
	hdr := []byte{0x0b, 0x77, 0x00, 0x00, 0x00 << 6, 8 << 3, 2 << 5}
	rest := bytes.Repeat([]byte{0xAA}, 128-len(hdr))
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
	if summary.SamplesInFrame != samplesPerFrame {
		t.Errorf("SamplesInFrame = %d, want %d", summary.SamplesInFrame, samplesPerFrame)
	}
}

func TestProbeRejectsBadSync(t *testing.T) {
	bs := bytestream.New(bytes.NewReader(make([]byte, 8)), 16)
	im := &Importer{src: bs}
	if _, err := im.Probe(); err == nil {
		t.Error("expected error for missing syncword")
	}
}
