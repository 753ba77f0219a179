package expgolomb

// EBSPToRBSP converts an Encapsulated Byte Sequence Payload to a Raw Byte
// Sequence Payload by removing emulation-prevention bytes: whenever the
// pattern 00 00 03 is seen, the 00 00 is emitted and the 03 is dropped.
func EBSPToRBSP(ebsp []byte) []byte {
	rbsp := make([]byte, 0, len(ebsp))
	zeros := 0
	for _, b := range ebsp {
		if zeros >= 2 && b == 0x03 {
			zeros = 0
			continue
		}
		rbsp = append(rbsp, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return rbsp
}

// RBSPToEBSP converts a Raw Byte Sequence Payload to an Encapsulated Byte
// Sequence Payload by inserting an emulation-prevention byte (0x03)
// whenever two consecutive zero bytes would otherwise be followed by a
// byte in the range 0x00-0x03. The output never contains 00 00 00,
// 00 00 01, 00 00 02 or 00 00 03 outside of an inserted emulation-
// prevention byte.
func RBSPToEBSP(rbsp []byte) []byte {
	ebsp := make([]byte, 0, len(rbsp)+len(rbsp)/2+1)
	zeros := 0
	for _, b := range rbsp {
		if zeros >= 2 && b <= 0x03 {
			ebsp = append(ebsp, 0x03)
			zeros = 0
		}
		ebsp = append(ebsp, b)
		if b == 0x00 {
			zeros++
		} else {
			zeros = 0
		}
	}
	return ebsp
}
