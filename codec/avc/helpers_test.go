package avc

import (
	"bytes"

	"github.com/ausocean/av/bytestream"
)

func newTestByteStream(b []byte) *bytestream.ByteStream {
	return bytestream.New(bytes.NewReader(b), len(b)+8)
}
