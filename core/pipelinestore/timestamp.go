package pipelinestore

import (
	"fmt"

	"golang.org/x/image/math/fixed"

	"github.com/gogpu/wgpucore/hal"
)

const timestampQuantizationWGSL = `
struct Timestamps {
  low: array<u32>,
};

@group(0) @binding(0) var<storage, read_write> low_bits: array<u32>;
@group(0) @binding(1) var<storage, read_write> high_bits: array<u32>;
@group(0) @binding(2) var<storage, read> availability: array<u32>;

struct Params {
  multiplier_low: u32,
  multiplier_high: u32,
  right_shift: u32,
  quantization_mask: u32,
  count: u32,
};
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
  let i = gid.x;
  if (i >= params.count) {
    return;
  }
  if (availability[i] == 0u) {
    low_bits[i] = 0u;
    high_bits[i] = 0u;
    return;
  }
  // (low, high) * period-derived fixed-point multiplier, shifted right,
  // masked by the quantization mask. 64-bit arithmetic is carried out in
  // 32-bit halves because the shader operates in 32-bit integer math.
  let product = u64_mul(low_bits[i], high_bits[i], params.multiplier_low, params.multiplier_high);
  let shifted = u64_shr(product, params.right_shift);
  low_bits[i] = shifted & params.quantization_mask;
  high_bits[i] = 0u;
}

fn u64_mul(al: u32, ah: u32, bl: u32, bh: u32) -> vec2<u32> {
  // Truncated 64-bit multiply from three 32-bit partial products: lo is
  // al*bl modulo 2^32 and hi is ah*bl + al*bh; the carry out of al*bl
  // and the ah*bh term are dropped.
  let lo = al * bl;
  let hi = ah * bl + al * bh;
  return vec2<u32>(lo, hi);
}

fn u64_shr(v: vec2<u32>, shift: u32) -> u32 {
  if (shift == 0u) {
    return v.x;
  }
  if (shift >= 32u) {
    return v.y >> (shift - 32u);
  }
  return (v.x >> shift) | (v.y << (32u - shift));
}
`

// TimestampQuantizationParams are the uniform values the
// timestamp-quantization compute shader reads from its Params binding.
type TimestampQuantizationParams struct {
	MultiplierLow    uint32
	MultiplierHigh   uint32
	RightShift       uint32
	QuantizationMask uint32
}

// defaultQuantizationResolutionNS is the granularity GPU timestamp query
// results are rounded down to before being exposed to callers, matching
// the coarse resolution browsers expose GPU timers at to resist timing
// side-channels.
const defaultQuantizationResolutionNS = 100

// ComputeTimestampQuantizationParams derives the fixed-point
// multiply-shift-mask parameters the timestamp-quantization compute
// shader needs from a device's tick period in nanoseconds (as returned by
// hal.Queue.GetTimestampPeriod) and a target quantization resolution.
// resolutionNS <= 0 uses defaultQuantizationResolutionNS.
//
// The periodNS/resolutionNS ratio is carried as a 52.12 fixed-point value
// (golang.org/x/image/math/fixed.Int52_12) rather than float math, so the
// multiplier the shader applies is an exact integer derived once on the
// CPU instead of accumulating floating-point error across every timestamp
// it quantizes.
func ComputeTimestampQuantizationParams(periodNS float32, resolutionNS float64) TimestampQuantizationParams {
	if resolutionNS <= 0 {
		resolutionNS = defaultQuantizationResolutionNS
	}

	ratio := float64(periodNS) / resolutionNS
	const fixedShift = 12 // matches fixed.Int52_12's fractional bits
	q := fixed.Int52_12(ratio * (1 << fixedShift))
	multiplier := uint64(q)

	// Mask off enough low bits of the shifted result to round every
	// quantized tick down to a multiple of one resolution step.
	maskBits := uint32(0)
	for (uint64(1) << maskBits) < uint64(ratio+0.5) && maskBits < 31 {
		maskBits++
	}

	return TimestampQuantizationParams{
		MultiplierLow:    uint32(multiplier),
		MultiplierHigh:   uint32(multiplier >> 32),
		RightShift:       fixedShift,
		QuantizationMask: ^uint32(0) << maskBits,
	}
}

// GetTimestampQuantization returns the device-scoped singleton compute
// pipeline that multiplies 64-bit timestamps by a device-period-derived
// fixed-point multiplier, shifts, masks, and zeroes unavailable entries.
// Cached once per Store since each Store belongs to one device.
func (s *Store) GetTimestampQuantization() (hal.ComputePipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timestampQuant != nil {
		return s.timestampQuant, nil
	}
	p, err := s.buildTimestampQuantization()
	if err != nil {
		return nil, err
	}
	s.timestampQuant = p
	return p, nil
}

func (s *Store) buildTimestampQuantization() (hal.ComputePipeline, error) {
	module, err := compileShaderModule(s.device, "internal-timestamp-quantization", timestampQuantizationWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile timestamp-quantization shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-timestamp-quantization-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create timestamp-quantization layout: %w", err)
	}
	return s.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "internal-timestamp-quantization",
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: "cs_main"},
	})
}
