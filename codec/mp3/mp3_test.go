package mp3

import (
	"bytes"
	"testing"

	"github.com/ausocean/av/bytestream"
	imp "github.com/ausocean/av/importer"
)

// mpegFrame builds a minimal MPEG-1 Layer III frame header (128 kbps,
// 44100 Hz, stereo, no padding) followed by zero bytes of payload
// sized to match the computed frame length.
func mpegFrame() []byte {
	// bitrateIdx 9 -> 128 kbps (V1 layer III table), sampleRateIdx 0 -> 44100.
	hdr := []byte{0xff, 0xfb, 0x90, 0x00}
	frameSize := 144*128*1000/44100 + 0
	payload := make([]byte, frameSize-4)
	return append(hdr, payload...)
}

func TestProbeSingleFrame(t *testing.T) {
	data := mpegFrame()
	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}

	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Frequency != 44100 {
		t.Errorf("Frequency = %d, want 44100", summary.Frequency)
	}
	if summary.Channels != 2 {
		t.Errorf("Channels = %d, want 2", summary.Channels)
	}
	if summary.SamplesInFrame != 1152 {
		t.Errorf("SamplesInFrame = %d, want 1152", summary.SamplesInFrame)
	}

	sample, status, err := im.GetAccessUnit(0)
	if err != nil || status != imp.StatusOK {
		t.Fatalf("GetAccessUnit: status=%v err=%v", status, err)
	}
	if len(sample.Data) != len(data) {
		t.Errorf("sample length = %d, want %d", len(sample.Data), len(data))
	}
	if sample.PreRoll.Distance != 1 {
		t.Errorf("PreRoll.Distance = %d, want 1", sample.PreRoll.Distance)
	}
}

func TestProbeSkipsLeadingID3v2(t *testing.T) {
	// 10-byte ID3v2 header: "ID3", version 2 bytes, flags byte, then a
	// synchsafe size of 5 (tag body is 5 bytes of padding).
	id3 := append([]byte("ID3"), 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05)
	id3 = append(id3, make([]byte, 5)...)
	data := append(append([]byte{}, id3...), mpegFrame()...)
	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}

	summary, err := im.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if summary.Frequency != 44100 {
		t.Errorf("Frequency = %d, want 44100", summary.Frequency)
	}
}

func TestProbeStopsAtID3v1Trailer(t *testing.T) {
	data := append(append([]byte{}, mpegFrame()...), mpegFrame()...)
	trailer := append([]byte("TAG"), make([]byte, 125)...)
	data = append(data, trailer...)
	bs := bytestream.New(bytes.NewReader(data), len(data)+8)
	im := &Importer{src: bs}

	if _, err := im.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, status, err := im.GetAccessUnit(0); err != nil || status != imp.StatusOK {
			t.Fatalf("GetAccessUnit(%d): status=%v err=%v", i, status, err)
		}
	}
	if _, status, err := im.GetAccessUnit(0); err != nil || status != imp.StatusEOF {
		t.Fatalf("expected EOF after the two real frames, got status=%v err=%v", status, err)
	}
}

func TestReservoirDistance(t *testing.T) {
	var r reservoir
	// First frame: nothing to borrow from, still costs one dependency.
	if d := r.distance(0, 100); d != 1 {
		t.Errorf("distance(0, 100) = %d, want 1", d)
	}
	// Second frame borrows 50 bytes, entirely within the first frame's
	// main data: one prior dependency plus itself.
	if d := r.distance(50, 80); d != 2 {
		t.Errorf("distance(50, 80) = %d, want 2", d)
	}
	// Third frame borrows 150 bytes, reaching back across both prior
	// frames (100+80=180 >= 150 after two steps): two dependencies plus
	// itself.
	if d := r.distance(150, 60); d != 3 {
		t.Errorf("distance(150, 60) = %d, want 3", d)
	}
}

func TestParseHeaderRejectsBadSync(t *testing.T) {
	if _, err := parseHeader([]byte{0x00, 0x00, 0x00, 0x00}); err == nil {
		t.Error("expected error for missing syncword")
	}
}

func TestParseHeaderRejectsFreeBitrate(t *testing.T) {
	// bitrateIdx 0 is "free" bitrate, unsupported here.
	if _, err := parseHeader([]byte{0xff, 0xfb, 0x00, 0xc0}); err == nil {
		t.Error("expected error for free-format bitrate")
	}
}
