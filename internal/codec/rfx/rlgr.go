package rfx

import "github.com/dvorak-labs/rdpwire/internal/bitio"

// RLGR (Run-Length Golomb-Rice) entropy coding, adaptive between a
// run-length/literal mode (k > 0) and a plain Golomb-Rice mode (k == 0).
// RLGR1 codes one coefficient per GR symbol; RLGR3 packs two coefficients
// per GR symbol. See MS-RDPRFX 3.1.8.1.7.

// RLGRDecode decodes RLGR-encoded data into a coefficient array.
// mode: RLGR1 for Y component, RLGR3 for Cb/Cr
// output: pre-allocated int16 slice of size TilePixels (4096)
func RLGRDecode(data []byte, mode int, output []int16) error {
	if len(output) < TilePixels {
		return ErrBufferTooSmall
	}

	for i := range output {
		output[i] = 0
	}

	if len(data) == 0 {
		return nil
	}

	br := bitio.NewReader(data)

	k := uint32(1)
	kp := uint32(8)
	kr := uint32(1)
	krp := uint32(8)

	idx := 0

	for idx < TilePixels && br.RemainingBits() > 0 {
		if k != 0 {
			nIdx := br.CountLeadingZeros()
			if br.RemainingBits() == 0 {
				return ErrRLGRDecodeError
			}

			runLength := 0
			for i := 0; i < nIdx; i++ {
				runLength += 1 << k
				kp += UP_GR
				if kp > KPMAX {
					kp = KPMAX
				}
				k = kp >> LSGR
			}

			if k > 0 && br.RemainingBits() >= int(k) {
				remainder := br.GetBits(int(k))
				runLength += int(remainder)
			}

			for i := 0; i < runLength && idx < TilePixels; i++ {
				output[idx] = 0
				idx++
			}

			if idx >= TilePixels {
				break
			}

			if br.RemainingBits() == 0 {
				return ErrRLGRDecodeError
			}
			sign := br.GetBit()

			nIdx = br.CountLeadingOnes()
			if br.RemainingBits() == 0 && nIdx == 0 {
				return ErrRLGRDecodeError
			}

			mag := uint32(0)
			if kr > 0 && br.RemainingBits() >= int(kr) {
				mag = br.GetBits(int(kr))
			}
			mag |= uint32(nIdx) << kr

			updateKrDecrease(&krp, nIdx)
			kr = krp >> LSGR

			if kp >= DN_GR {
				kp -= DN_GR
			} else {
				kp = 0
			}
			k = kp >> LSGR

			value := int16(mag + 1)
			if sign != 0 {
				value = -value
			}
			output[idx] = value
			idx++

		} else if mode == RLGR1 {
			nIdx := br.CountLeadingOnes()
			if br.RemainingBits() == 0 && nIdx == 0 {
				return ErrRLGRDecodeError
			}

			mag := uint32(0)
			if kr > 0 && br.RemainingBits() >= int(kr) {
				mag = br.GetBits(int(kr))
			}
			mag |= uint32(nIdx) << kr

			updateKrDecrease(&krp, nIdx)
			kr = krp >> LSGR

			var value int16
			if mag == 0 {
				value = 0
				kp += UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
				k = kp >> LSGR
			} else {
				if (mag & 1) != 0 {
					value = -int16((mag + 1) >> 1)
				} else {
					value = int16(mag >> 1)
				}
				if kp >= DQ_GR {
					kp -= DQ_GR
				} else {
					kp = 0
				}
				k = kp >> LSGR
			}

			output[idx] = value
			idx++

		} else {
			nIdx := br.CountLeadingOnes()
			if br.RemainingBits() == 0 && nIdx == 0 {
				return ErrRLGRDecodeError
			}

			code := uint32(0)
			if kr > 0 && br.RemainingBits() >= int(kr) {
				code = br.GetBits(int(kr))
			}
			code |= uint32(nIdx) << kr

			updateKrDecrease(&krp, nIdx)
			kr = krp >> LSGR

			nIdx2 := bitLength(code)

			var val1, val2 uint32
			if nIdx2 > 0 {
				if br.RemainingBits() < nIdx2 {
					return ErrRLGRDecodeError
				}
				val1 = br.GetBits(nIdx2)
			}
			val2 = code - val1

			if val1 != 0 && val2 != 0 {
				if kp >= 2*DQ_GR {
					kp -= 2 * DQ_GR
				} else {
					kp = 0
				}
			} else if val1 == 0 && val2 == 0 {
				kp += 2 * UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			}
			k = kp >> LSGR

			output[idx] = decodeGRValue(val1)
			idx++

			if idx >= TilePixels {
				break
			}

			output[idx] = decodeGRValue(val2)
			idx++
		}
	}

	return nil
}

// RLGREncode encodes a coefficient array using adaptive RLGR, the
// inverse of RLGRDecode. input must hold exactly TilePixels values.
func RLGREncode(input []int16, mode int) ([]byte, error) {
	if len(input) < TilePixels {
		return nil, ErrBufferTooSmall
	}

	bw := bitio.NewWriter()

	k := uint32(1)
	kp := uint32(8)
	kr := uint32(1)
	krp := uint32(8)

	idx := 0
	for idx < TilePixels {
		if k != 0 {
			runLength := 0
			for idx+runLength < TilePixels && input[idx+runLength] == 0 {
				runLength++
			}

			localK := k
			localKp := kp
			sum := 0
			nIdx := 0
			for {
				step := 1 << localK
				if sum+step <= runLength {
					sum += step
					localKp += UP_GR
					if localKp > KPMAX {
						localKp = KPMAX
					}
					localK = localKp >> LSGR
					nIdx++
				} else {
					break
				}
			}
			remainder := runLength - sum

			for i := 0; i < nIdx; i++ {
				bw.PutBit(0)
			}
			bw.PutBit(1)
			if localK > 0 {
				bw.PutBits(uint32(remainder), int(localK))
			}
			kp, k = localKp, localK

			idx += runLength
			if idx >= TilePixels {
				break
			}

			v := input[idx]
			sign := uint32(0)
			mag := uint32(v) - 1
			if v < 0 {
				sign = 1
				mag = uint32(-v) - 1
			}

			bw.PutBit(sign)

			nIdxOnes := mag >> kr
			writeUnaryOnes(bw, nIdxOnes)
			if kr > 0 {
				bw.PutBits(mag&((1<<kr)-1), int(kr))
			}

			updateKrDecrease(&krp, int(nIdxOnes))
			kr = krp >> LSGR

			if kp >= DN_GR {
				kp -= DN_GR
			} else {
				kp = 0
			}
			k = kp >> LSGR

			idx++

		} else if mode == RLGR1 {
			v := input[idx]
			mag := encodeGRValue(v)

			nIdxOnes := mag >> kr
			writeUnaryOnes(bw, nIdxOnes)
			if kr > 0 {
				bw.PutBits(mag&((1<<kr)-1), int(kr))
			}

			updateKrDecrease(&krp, int(nIdxOnes))
			kr = krp >> LSGR

			if v == 0 {
				kp += UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			} else {
				if kp >= DQ_GR {
					kp -= DQ_GR
				} else {
					kp = 0
				}
			}
			k = kp >> LSGR

			idx++

		} else {
			v1 := input[idx]
			var v2 int16
			if idx+1 < TilePixels {
				v2 = input[idx+1]
			}

			val1 := encodeGRValue(v1)
			val2 := encodeGRValue(v2)
			code := val1 + val2

			nIdxOnes := code >> kr
			writeUnaryOnes(bw, nIdxOnes)
			if kr > 0 {
				bw.PutBits(code&((1<<kr)-1), int(kr))
			}

			updateKrDecrease(&krp, int(nIdxOnes))
			kr = krp >> LSGR

			nIdx2 := bitLength(code)
			if nIdx2 > 0 {
				bw.PutBits(val1, nIdx2)
			}

			if val1 != 0 && val2 != 0 {
				if kp >= 2*DQ_GR {
					kp -= 2 * DQ_GR
				} else {
					kp = 0
				}
			} else if val1 == 0 && val2 == 0 {
				kp += 2 * UQ_GR
				if kp > KPMAX {
					kp = KPMAX
				}
			}
			k = kp >> LSGR

			if idx+1 < TilePixels {
				idx += 2
			} else {
				idx++
			}
		}
	}

	return bw.Flush(), nil
}

func writeUnaryOnes(bw *bitio.Writer, n uint32) {
	for i := uint32(0); i < n; i++ {
		bw.PutBit(1)
	}
	bw.PutBit(0)
}

func updateKrDecrease(krp *uint32, nIdx int) {
	if nIdx == 0 {
		if *krp >= 2 {
			*krp -= 2
		} else {
			*krp = 0
		}
	} else if nIdx > 1 {
		*krp += uint32(nIdx)
		if *krp > KPMAX {
			*krp = KPMAX
		}
	}
}

func bitLength(v uint32) int {
	n := 0
	for v > 0 {
		v >>= 1
		n++
	}
	return n
}

// decodeGRValue maps an unsigned GR code back to a signed coefficient:
// 0 -> 0; even -> positive (code/2); odd -> negative ((code+1)/2).
func decodeGRValue(code uint32) int16 {
	if code == 0 {
		return 0
	}
	if code&1 != 0 {
		return -int16((code + 1) >> 1)
	}
	return int16(code >> 1)
}

// encodeGRValue is the inverse of decodeGRValue.
func encodeGRValue(v int16) uint32 {
	if v == 0 {
		return 0
	}
	if v > 0 {
		return uint32(v) * 2
	}
	return uint32(-v)*2 - 1
}
