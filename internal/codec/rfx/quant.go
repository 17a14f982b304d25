package rfx

// Subband layout for 64×64 tile coefficient buffer (linear/packed format):
// see rfx.go for offset constants (OffsetHL1, OffsetLH1, etc.)
//
// Quantization values range 6-15. The encoder right-shifts each DWT
// coefficient by (quantValue - 6); the decoder reverses this with a
// left shift by the same amount. The 6-bias keeps the entropy coder's
// input within its effective dynamic range across all ten subbands.

// Quantize applies forward quantization to DWT coefficients in place.
// The buffer uses linear/packed layout matching the subband offsets.
func Quantize(buffer []int16, quant *SubbandQuant) {
	if quant == nil || len(buffer) < TilePixels {
		return
	}

	quantBlock(buffer[OffsetHL1:OffsetHL1+SizeL1], quant.HL1)
	quantBlock(buffer[OffsetLH1:OffsetLH1+SizeL1], quant.LH1)
	quantBlock(buffer[OffsetHH1:OffsetHH1+SizeL1], quant.HH1)

	quantBlock(buffer[OffsetHL2:OffsetHL2+SizeL2], quant.HL2)
	quantBlock(buffer[OffsetLH2:OffsetLH2+SizeL2], quant.LH2)
	quantBlock(buffer[OffsetHH2:OffsetHH2+SizeL2], quant.HH2)

	quantBlock(buffer[OffsetHL3:OffsetHL3+SizeL3], quant.HL3)
	quantBlock(buffer[OffsetLH3:OffsetLH3+SizeL3], quant.LH3)
	quantBlock(buffer[OffsetHH3:OffsetHH3+SizeL3], quant.HH3)
	quantBlock(buffer[OffsetLL3:OffsetLL3+SizeL3], quant.LL3)
}

// Dequantize applies inverse quantization to DWT coefficients in place.
func Dequantize(buffer []int16, quant *SubbandQuant) {
	if quant == nil || len(buffer) < TilePixels {
		return
	}

	dequantBlock(buffer[OffsetHL1:OffsetHL1+SizeL1], quant.HL1)
	dequantBlock(buffer[OffsetLH1:OffsetLH1+SizeL1], quant.LH1)
	dequantBlock(buffer[OffsetHH1:OffsetHH1+SizeL1], quant.HH1)

	dequantBlock(buffer[OffsetHL2:OffsetHL2+SizeL2], quant.HL2)
	dequantBlock(buffer[OffsetLH2:OffsetLH2+SizeL2], quant.LH2)
	dequantBlock(buffer[OffsetHH2:OffsetHH2+SizeL2], quant.HH2)

	dequantBlock(buffer[OffsetHL3:OffsetHL3+SizeL3], quant.HL3)
	dequantBlock(buffer[OffsetLH3:OffsetLH3+SizeL3], quant.LH3)
	dequantBlock(buffer[OffsetHH3:OffsetHH3+SizeL3], quant.HH3)
	dequantBlock(buffer[OffsetLL3:OffsetLL3+SizeL3], quant.LL3)
}

// quantShift returns the (quantValue - 6) shift, clamped at zero.
func quantShift(quantValue uint8) uint8 {
	if quantValue <= 6 {
		return 0
	}
	return quantValue - 6
}

func quantBlock(data []int16, quantValue uint8) {
	shift := quantShift(quantValue)
	if shift == 0 {
		return
	}
	for i := range data {
		// round toward nearest before truncating, matching the
		// reference encoder's rounding bias
		v := data[i]
		half := int16(1) << (shift - 1)
		if v >= 0 {
			data[i] = (v + half) >> shift
		} else {
			data[i] = -((-v + half) >> shift)
		}
	}
}

func dequantBlock(data []int16, quantValue uint8) {
	shift := quantShift(quantValue)
	if shift == 0 {
		return
	}
	for i := range data {
		data[i] <<= shift
	}
}
