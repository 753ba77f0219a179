package amr

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
)

func TestProbeNarrowband(t *testing.T) {
	// FT=7 -> 244 bits -> 31 bytes, mode-set 12.2 kbit/s.
	toc := byte(7 << 3)
	payload := bytes.Repeat([]byte{0x11}, 31)
	data := append(append([]byte{}, magicNB...), append([]byte{toc}, payload...)...)

	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}
	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Frequency != 8000 {
		t.Errorf("Frequency = %d, want 8000", summary.Frequency)
	}
	if summary.SampleType != "samr" {
		t.Errorf("SampleType = %q, want samr", summary.SampleType)
	}
}

func TestProbeWideband(t *testing.T) {
	// FT=9 -> SID, 40 bits -> 5 bytes.
	toc := byte(9 << 3)
	payload := bytes.Repeat([]byte{0x22}, 5)
	data := append(append([]byte{}, magicWB...), append([]byte{toc}, payload...)...)

	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}
	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Frequency != 16000 {
		t.Errorf("Frequency = %d, want 16000", summary.Frequency)
	}
	if summary.SampleType != "sawb" {
		t.Errorf("SampleType = %q, want sawb", summary.SampleType)
	}
}

func TestProbeRejectsMissingMagic(t *testing.T) {
	bs := bytestream.New(bytes.NewReader([]byte("not amr data")), 32)
	im := &Importer{src: bs}
	if _, err := im.Probe(); err == nil {
		t.Error("expected error for missing magic")
	}
}
