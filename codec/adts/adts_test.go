package adts

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
	imp "github.com/ausocean/av/importer"
)

// adtsFrame builds a minimal 7-byte-header ADTS frame (no CRC) carrying
// the given payload, 2 channels, 44100 Hz (freqIdx 4).
func adtsFrame(payload []byte) []byte {
	frameLength := uint16(7 + len(payload))
	const freqIdx = 4     // 44100 Hz
	const chanCfg = 2     // stereo

	hdr := make([]byte, 7)
	hdr[0] = 0xff
	hdr[1] = 0xf1 // syncword cont. + MPEG-4 + layer 00 + protection_absent=1
	hdr[2] = (1 << 6) | (freqIdx << 2) | byte(chanCfg>>2)
	hdr[3] = byte((chanCfg&0x3)<<6) | byte(frameLength>>11)
	hdr[4] = byte(frameLength >> 3)
	hdr[5] = byte(frameLength<<5) | 0x1f
	hdr[6] = 0xfc
	return append(hdr, payload...)
}

func TestProbeSingleFrame(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 20)
	data := adtsFrame(payload)
	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}

	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Channels != 2 {
		t.Errorf("Channels = %d, want 2", summary.Channels)
	}
	if summary.Frequency != 44100 {
		t.Errorf("Frequency = %d, want 44100", summary.Frequency)
	}
	if summary.SamplesInFrame != samplesPerFrame {
		t.Errorf("SamplesInFrame = %d, want %d", summary.SamplesInFrame, samplesPerFrame)
	}

	sample, status, err := im.GetAccessUnit(0)
	if err != nil || status != imp.StatusOK {
		t.Fatalf("GetAccessUnit: status=%v err=%v", status, err)
	}
	if len(sample.Data) != len(data) {
		t.Errorf("sample length = %d, want %d", len(sample.Data), len(data))
	}
	if sample.RAFlags&imp.RASync == 0 {
		t.Error("expected sync flag set on first ADTS frame")
	}
	if sample.PreRoll.Distance != 1 {
		t.Errorf("PreRoll.Distance = %d, want 1", sample.PreRoll.Distance)
	}

	_, status, err = im.GetAccessUnit(0)
	if err != nil || status != imp.StatusEOF {
		t.Fatalf("expected EOF after single frame, got status=%v err=%v", status, err)
	}
}

func TestProbeRejectsBadSyncword(t *testing.T) {
	bs := bytestream.New(bytes.NewReader([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}), 16)
	im := &Importer{src: bs}
	if _, err := im.Probe(); err == nil {
		t.Error("expected error for missing syncword")
	}
}
