package av1

import "testing"

func TestReadLEB128(t *testing.T) {
	cases := []struct {
		in   []byte
		want uint64
		n    int
	}{
		{[]byte{0x00}, 0, 1},
		{[]byte{0x7f}, 127, 1},
		{[]byte{0x80, 0x01}, 128, 2},
		{[]byte{0xe5, 0x8e, 0x26}, 624485, 3},
	}
	for _, c := range cases {
		got, n, err := readLEB128(c.in)
		if err != nil {
			t.Fatalf("readLEB128(%v): %v", c.in, err)
		}
		if got != c.want || n != c.n {
			t.Errorf("readLEB128(%v) = (%d,%d), want (%d,%d)", c.in, got, n, c.want, c.n)
		}
	}
}

func TestSplitOBUsSingleFrame(t *testing.T) {
	// obu_header: type=2 (TEMPORAL_DELIMITER), has_size_field=1, ext=0.
	td := []byte{0x12, 0x00} // header byte + leb128 size=0
	frame, err := splitOBUs(td)
	if err != nil {
		t.Fatalf("splitOBUs: %v", err)
	}
	if len(frame) != 1 || frame[0].Type != OBUTemporalDelimiter {
		t.Errorf("got %+v, want one TEMPORAL_DELIMITER OBU", frame)
	}
}
