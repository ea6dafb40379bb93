package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// StencilBlitKey identifies one R8-to-stencil blit pipeline family:
// destination format and source view dimension.
type StencilBlitKey struct {
	DestinationFormat types.TextureFormat
	ViewDimension     types.TextureViewDimension
}

const stencilClearWGSL = `
@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}
@fragment
fn fs_main() {}
`

const stencilBitBlitWGSLTemplate = `
@group(0) @binding(0) var src: texture_2d<u32>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) {
  let texel = textureLoad(src, vec2<i32>(pos.xy), 0).r;
  if ((texel & %dU) == 0u) {
    discard;
  }
  // Writing nothing else: this pipeline's stencil-op state is configured
  // to set bit %d of the stencil attachment on pass.
}
`

// GetStencilClear returns the device-scoped "clear stencil to 0"
// pipeline used by the R8-to-stencil blit, compiling it on first use.
func (s *Store) GetStencilClear() (hal.RenderPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stencilClear != nil {
		return s.stencilClear, nil
	}
	p, err := s.buildStencilClear()
	if err != nil {
		return nil, err
	}
	s.stencilClear = p
	return p, nil
}

func (s *Store) buildStencilClear() (hal.RenderPipeline, error) {
	module, err := compileShaderModule(s.device, "internal-stencil-clear", stencilClearWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile stencil-clear shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-stencil-clear-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create stencil-clear layout: %w", err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:     "internal-stencil-clear",
		Layout:    layout,
		Vertex:    hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		DepthStencil: &hal.DepthStencilState{
			Format:           types.TextureFormatStencil8,
			StencilFront:     hal.StencilFaceState{PassOp: hal.StencilOperationZero, Compare: types.CompareFunctionAlways},
			StencilBack:      hal.StencilFaceState{PassOp: hal.StencilOperationZero, Compare: types.CompareFunctionAlways},
			StencilWriteMask: 0xFF,
		},
		Multisample: types.DefaultMultisampleState(),
	})
}

// GetStencilBitBlit returns the pipeline that sets bit `bit` (0-7) of the
// stencil attachment wherever the source R8 texel has that bit set,
// discarding elsewhere, compiling it on first use.
func (s *Store) GetStencilBitBlit(key StencilBlitKey, bit uint8) (hal.RenderPipeline, error) {
	if bit > 7 {
		return nil, fmt.Errorf("pipelinestore: stencil bit index %d out of range [0,7]", bit)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.stencilBlitBits[key]
	if set[bit] != nil {
		return set[bit], nil
	}
	p, err := s.buildStencilBitBlit(key, bit)
	if err != nil {
		return nil, err
	}
	set[bit] = p
	s.stencilBlitBits[key] = set
	return p, nil
}

func (s *Store) buildStencilBitBlit(key StencilBlitKey, bit uint8) (hal.RenderPipeline, error) {
	wgsl := fmt.Sprintf(stencilBitBlitWGSLTemplate, uint32(1)<<bit, bit)
	label := fmt.Sprintf("internal-stencil-bit-blit-%d", bit)
	module, err := compileShaderModule(s.device, label, wgsl)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile %s shader: %w", label, err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: label + "-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create %s layout: %w", label, err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:     label,
		Layout:    layout,
		Vertex:    hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		DepthStencil: &hal.DepthStencilState{
			Format:           key.DestinationFormat,
			StencilFront:     hal.StencilFaceState{PassOp: hal.StencilOperationReplace, Compare: types.CompareFunctionAlways},
			StencilBack:      hal.StencilFaceState{PassOp: hal.StencilOperationReplace, Compare: types.CompareFunctionAlways},
			StencilWriteMask: 1 << bit,
		},
		Multisample: types.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
		},
	})
}
