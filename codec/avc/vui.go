package avc

// sarTable maps standard aspect_ratio_idc values (Table E-1) to a
// sample aspect ratio; idc 255 (Extended_SAR) carries an explicit
// width/height instead and is handled by the caller.
var sarTable = map[uint8][2]uint64{
	1: {1, 1}, 2: {12, 11}, 3: {10, 11}, 4: {16, 11}, 5: {40, 33},
	6: {24, 11}, 7: {20, 11}, 8: {32, 11}, 9: {80, 33}, 10: {18, 11},
	11: {15, 11}, 12: {64, 33}, 13: {160, 99}, 14: {4, 3}, 15: {3, 2}, 16: {2, 1},
}

// parseVUI consumes the vui_parameters() syntax structure (Annex E.1.1),
// retaining only the fields this importer needs: sample aspect ratio,
// colour description, and HRD presence (the latter gates filler-NAL
// tolerance per spec.md section 4.4). readBits propagates sticky read
// errors back to the caller's closure state, same as readBit/readUE.
func parseVUI(s *SPS, readBit func() bool, readUE func() uint64, readBits func(n int) uint64) {
	if readBit() { // aspect_ratio_info_present_flag
		idc := uint8(readBits(8))
		if idc == 255 {
			s.AspectRatioWidth = readBits(16)
			s.AspectRatioHeight = readBits(16)
		} else if sar, ok := sarTable[idc]; ok {
			s.AspectRatioWidth, s.AspectRatioHeight = sar[0], sar[1]
		}
	}
	if readBit() { // overscan_info_present_flag
		readBit() // overscan_appropriate_flag
	}
	if readBit() { // video_signal_type_present_flag
		readBits(3) // video_format
		s.VideoFullRangeFlag = readBit()
		if readBit() { // colour_description_present_flag
			s.ColourPrimaries = uint8(readBits(8))
			s.TransferCharacteristics = uint8(readBits(8))
			s.MatrixCoefficients = uint8(readBits(8))
		}
	}
	if readBit() { // chroma_loc_info_present_flag
		readUE()
		readUE()
	}
	if readBit() { // timing_info_present_flag
		readBits(32)
		readBits(32)
		readBit()
	}
	nalHRD := readBit()
	if nalHRD {
		skipHRDParameters(readBit, readUE, readBits)
	}
	vclHRD := readBit()
	if vclHRD {
		skipHRDParameters(readBit, readUE, readBits)
	}
	s.VUIHRDPresent = nalHRD || vclHRD
	if nalHRD || vclHRD {
		readBit() // low_delay_hrd_flag
	}
	readBit() // pic_struct_present_flag
	if readBit() { // bitstream_restriction_flag
		readBit()
		readUE()
		readUE()
		readUE()
		readUE()
		readUE()
	}
}

// skipHRDParameters consumes an hrd_parameters() syntax structure
// (Annex E.1.2); only used to keep bit position correct.
func skipHRDParameters(readBit func() bool, readUE func() uint64, readBits func(n int) uint64) {
	cpbCntMinus1 := readUE()
	readBits(4) // bit_rate_scale
	readBits(4) // cpb_size_scale
	for i := uint64(0); i <= cpbCntMinus1; i++ {
		readUE() // bit_rate_value_minus1
		readUE() // cpb_size_value_minus1
		readBit()
	}
	readBits(5)
	readBits(5)
	readBits(5)
	readBits(5)
}
