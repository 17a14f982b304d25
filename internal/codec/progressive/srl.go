package progressive

import "github.com/dvorak-labs/rdpwire/internal/bitio"

const (
	srlKpInit  = 8
	srlUpGR    = 4
	srlDnGR    = 6
	srlKPMax   = 80
)

// srlDecoder implements the sign-run-length bitstream used by
// upgrade-pass refinement: runs of implicit zero coefficients
// interleaved with explicit signed magnitudes, driven by the same
// adaptive kp parameter the RLGR coder uses.
type srlDecoder struct {
	br *bitio.Reader
	kp int
	nz int  // remaining implicit zeros in the current run
	mode int // 0 = zero-encoding phase, 1 = unary-magnitude phase
}

func newSRLDecoder(br *bitio.Reader) *srlDecoder {
	return &srlDecoder{br: br, kp: srlKpInit}
}

func clampSRL(v int) int {
	if v < 0 {
		return 0
	}
	if v > srlKPMax {
		return srlKPMax
	}
	return v
}

// next decodes one symbol, consuming a magnitude of numBits bits when
// a nonzero value is read.
func (d *srlDecoder) next(numBits int) int16 {
	k := d.kp >> 3

	if d.nz > 0 {
		d.nz--
		return 0
	}

	if d.mode == 0 {
		bit := d.br.GetBit()
		if bit == 0 {
			d.nz = 1 << k
			d.kp = clampSRL(d.kp + srlUpGR)
			d.nz--
			return 0
		}
		d.mode = 1
		if k > 0 {
			d.nz = int(d.br.GetBits(k))
			if d.nz > 0 {
				d.nz--
				return 0
			}
		}
	}

	d.mode = 0 // the symbol after this magnitude starts in zero-encoding again
	sign := d.br.GetBit()
	d.kp = clampSRL(d.kp - srlDnGR)

	if numBits == 1 {
		if sign != 0 {
			return -1
		}
		return 1
	}

	max := (1 << uint(numBits)) - 1
	mag := 0
	for mag < max {
		bit := d.br.GetBit()
		if bit == 0 {
			break
		}
		mag++
	}
	if mag == 0 {
		mag = 1
	}
	if sign != 0 {
		return int16(-mag)
	}
	return int16(mag)
}
