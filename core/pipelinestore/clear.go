package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// MaxColorTargets bounds the fixed-size arrays the pipeline-store keys
// use in place of slices, so the keys stay comparable (valid Go map
// keys). It matches types.DefaultLimits().MaxColorAttachments.
const MaxColorTargets = 8

// PLSLayout describes a pixel-local-storage layout: the per-slot storage
// formats a render pass's fragment shader may read and write alongside
// its color attachments. A zero-value PLSLayout (Count == 0) means "no
// PLS in use" and is the common case.
type PLSLayout struct {
	Count  uint8
	Slots  [4]types.TextureFormat
}

// ClearKey identifies one clear-with-draw pipeline variant: the color
// target formats, sample count, depth-stencil format, PLS layout, and
// which attachments this particular pipeline clears.
type ClearKey struct {
	ColorFormats        [MaxColorTargets]types.TextureFormat
	ColorFormatCount     uint8
	SampleCount          uint32
	DepthStencilFormat   types.TextureFormat
	PLS                  PLSLayout
	AttachmentsToClear   uint32 // bitmask over ColorFormats indices
}

const clearWithDrawWGSL = `
struct ClearColors {
  values: array<vec4<u32>, 8>,
};
@group(0) @binding(0) var<uniform> clear: ClearColors;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  // Fullscreen 3-vertex triangle; no vertex buffers bound.
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
  // Bit-exact big-int reinterpretation happens target-side: the pipeline
  // is built per-format so the output type already matches (uint/sint/
  // float), and the uniform carries the raw bit pattern.
  return bitcast<vec4<f32>>(clear.values[0]);
}
`

// GetClearWithDraw returns the cached clear-with-draw pipeline for key,
// compiling it on first use. The pipeline writes constant clear colors,
// sourced from a uniform buffer, to exactly the masked color attachments
// (writes disabled elsewhere) and never touches depth/stencil.
func (s *Store) GetClearWithDraw(key ClearKey) (hal.RenderPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLocked(s.clearWithDraw, key, func() (hal.RenderPipeline, error) {
		return s.buildClearWithDraw(key)
	})
}

func (s *Store) buildClearWithDraw(key ClearKey) (hal.RenderPipeline, error) {
	module, err := compileShaderModule(s.device, "internal-clear-with-draw", clearWithDrawWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile clear-with-draw shader: %w", err)
	}

	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "internal-clear-with-draw-layout",
	})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create clear-with-draw layout: %w", err)
	}

	targets := make([]types.ColorTargetState, 0, key.ColorFormatCount)
	for i := uint8(0); i < key.ColorFormatCount; i++ {
		writeMask := types.ColorWriteMaskAll
		if key.AttachmentsToClear&(1<<i) == 0 {
			writeMask = 0
		}
		targets = append(targets, types.ColorTargetState{
			Format:    key.ColorFormats[i],
			WriteMask: writeMask,
		})
	}

	var ds *hal.DepthStencilState
	if key.DepthStencilFormat != types.TextureFormatUndefined {
		ds = &hal.DepthStencilState{
			Format:            key.DepthStencilFormat,
			DepthWriteEnabled: false,
			DepthCompare:      types.CompareFunctionAlways,
		}
	}

	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label: "internal-clear-with-draw",
		Layout: layout,
		Vertex: hal.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Primitive: types.PrimitiveState{
			Topology: types.PrimitiveTopologyTriangleList,
		},
		DepthStencil: ds,
		Multisample: types.MultisampleState{
			Count: key.SampleCount,
			Mask:  0xFFFFFFFF,
		},
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
	})
}
