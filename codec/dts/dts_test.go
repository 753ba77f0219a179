package dts

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
)

func TestProbeSingleFrame(t *testing.T) {
	hdr := []byte{
		0x00, 0x7c, 0x01, 0xf0, 0xb4,
		0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
	data := append([]byte{0x7f, 0xfe, 0x80, 0x01}, hdr...)
	data = append(data, bytes.Repeat([]byte{0x55}, 14)...) // fsize(32) - 18 = 14

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
	if summary.SamplesInFrame != 1024 {
		t.Errorf("SamplesInFrame = %d, want 1024", summary.SamplesInFrame)
	}
	if len(im.Frames) != 1 || len(im.Frames[0].Data) != len(data) {
		t.Errorf("frame length mismatch: got %d frames", len(im.Frames))
	}
}

func TestProbeRejectsBadSync(t *testing.T) {
	bs := bytestream.New(bytes.NewReader(make([]byte, 20)), 32)
	im := &Importer{src: bs}
	if _, err := im.Probe(); err == nil {
		t.Error("expected error for missing syncword")
	}
}
