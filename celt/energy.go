package celt

import "github.com/mycrl/aquarana/rangecoding"

// Band energies are kept in log2 units, one slot per band for each of two
// channels: index band + c*MaxBands. Mono streams still carry both slots.

// unquantCoarseEnergy decodes the coarse (6 dB resolution) band energies and
// adds them to the time and frequency prediction held in oldE.
//
// Reference: libopus celt/quant_bands.c unquant_coarse_energy()
func unquantCoarseEnergy(rd *rangecoding.Decoder, start, end int, oldE []float64, intra bool, lm, channels int) {
	probIdx := 0
	coef := predCoef[lm]
	beta := betaCoef[lm]
	if intra {
		probIdx = 1
		coef = 0
		beta = betaIntra
	}
	prob := &eProbModel[lm][probIdx]

	var prev [2]float64
	budget := rd.StorageBits()
	for i := start; i < end; i++ {
		for c := 0; c < channels; c++ {
			var qi int
			tell := rd.Tell()
			switch {
			case budget-tell >= 15:
				pi := 2 * min(i, 20)
				qi = decodeLaplace(rd, uint32(prob[pi])<<7, int(prob[pi+1])<<6)
			case budget-tell >= 2:
				qi = rd.DecodeICDF(smallEnergyICDF, 2)
				qi = (qi >> 1) ^ -(qi & 1)
			case budget-tell >= 1:
				qi = -rd.DecodeBit(1)
			default:
				qi = -1
			}
			q := float64(qi)

			idx := i + c*MaxBands
			oldE[idx] = max(-9.0, oldE[idx])
			tmp := coef*oldE[idx] + prev[c] + q
			oldE[idx] = max(energyFloor, tmp)
			prev[c] = prev[c] + q - beta*q
		}
	}
}

// unquantFineEnergy refines each band with fineQuant[i] raw bits per channel.
//
// Reference: libopus celt/quant_bands.c unquant_fine_energy()
func unquantFineEnergy(rd *rangecoding.Decoder, start, end int, oldE []float64, fineQuant []int, channels int) {
	for i := start; i < end; i++ {
		fq := fineQuant[i]
		if fq <= 0 {
			continue
		}
		for c := 0; c < channels; c++ {
			q2 := rd.DecodeRawBits(uint(fq))
			offset := (float64(q2)+0.5)*float64(int(1)<<(14-fq))/16384.0 - 0.5
			oldE[i+c*MaxBands] += offset
		}
	}
}

// unquantEnergyFinalise spends the bits left after shape decoding on one
// more fine energy bit per band, first for bands with priority 0 and then
// for priority 1.
//
// Reference: libopus celt/quant_bands.c unquant_energy_finalise()
func unquantEnergyFinalise(rd *rangecoding.Decoder, start, end int, oldE []float64, fineQuant, finePriority []int, bitsLeft, channels int) {
	for prio := 0; prio < 2; prio++ {
		for i := start; i < end && bitsLeft >= channels; i++ {
			if fineQuant[i] >= maxFineBits || finePriority[i] != prio {
				continue
			}
			for c := 0; c < channels; c++ {
				q2 := rd.DecodeRawBits(1)
				offset := (float64(q2) - 0.5) * float64(int(1)<<(14-fineQuant[i]-1)) / 16384.0
				oldE[i+c*MaxBands] += offset
			}
			bitsLeft -= channels
		}
	}
}
