package pipelinestore

import "testing"

func TestComputeTimestampQuantizationParamsDefaultResolution(t *testing.T) {
	params := ComputeTimestampQuantizationParams(1.0, 0)

	if params.RightShift != 12 {
		t.Errorf("RightShift = %d, want 12", params.RightShift)
	}
	if params.QuantizationMask == 0 {
		t.Error("QuantizationMask is 0, want at least some high bits set")
	}
}

func TestComputeTimestampQuantizationParamsLargerPeriodCoarserMask(t *testing.T) {
	// A device whose raw tick already spans far more than the target
	// resolution (period >> resolution) needs more low bits masked off
	// than one whose tick is much finer than the resolution.
	fine := ComputeTimestampQuantizationParams(10, 100)
	coarse := ComputeTimestampQuantizationParams(10000, 100)

	fineZeroBits := countTrailingZeros(fine.QuantizationMask)
	coarseZeroBits := countTrailingZeros(coarse.QuantizationMask)
	if coarseZeroBits <= fineZeroBits {
		t.Errorf("coarse-period mask (%d trailing zero bits) should exceed fine-period mask (%d)", coarseZeroBits, fineZeroBits)
	}
}

func countTrailingZeros(mask uint32) int {
	if mask == 0 {
		return 32
	}
	n := 0
	for mask&1 == 0 {
		n++
		mask >>= 1
	}
	return n
}
