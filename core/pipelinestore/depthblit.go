package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// types16Key exists only because Depth16Unorm is the sole destination
// format the RG8-to-depth16unorm blit ever targets; the store still
// keys it so a second request returns the cached pipeline instead of a
// constant.
type types16Key struct{}

const rg8ToDepth16WGSL = `
@group(0) @binding(0) var src: texture_2d<u32>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @builtin(frag_depth) f32 {
  let texel = textureLoad(src, vec2<i32>(pos.xy), 0).rg;
  // Reassemble the two 8-bit channels into a uint16, normalize to [0,1].
  let depth16 = (texel.r & 0xFFu) | ((texel.g & 0xFFu) << 8u);
  return f32(depth16) / 65535.0;
}
`

// GetRG8ToDepth16Blit returns the pipeline that reads a two-channel
// 8-bit uint texel, reassembles it into a uint16, and writes the
// normalized value to frag_depth.
func (s *Store) GetRG8ToDepth16Blit() (hal.RenderPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLocked(s.depth16Blit, types16Key{}, func() (hal.RenderPipeline, error) {
		return s.buildRG8ToDepth16Blit()
	})
}

func (s *Store) buildRG8ToDepth16Blit() (hal.RenderPipeline, error) {
	module, err := compileShaderModule(s.device, "internal-rg8-to-depth16-blit", rg8ToDepth16WGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile rg8-to-depth16 shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-rg8-to-depth16-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create rg8-to-depth16 layout: %w", err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:     "internal-rg8-to-depth16-blit",
		Layout:    layout,
		Vertex:    hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		DepthStencil: &hal.DepthStencilState{
			Format:            types.TextureFormatDepth16Unorm,
			DepthWriteEnabled: true,
			DepthCompare:      types.CompareFunctionAlways,
		},
		Multisample: types.DefaultMultisampleState(),
		Fragment:    &hal.FragmentState{Module: module, EntryPoint: "fs_main"},
	})
}

// DepthBlitKey identifies one depth-to-depth blit pipeline: the
// destination depth format.
type DepthBlitKey struct {
	DestinationFormat types.TextureFormat
}

const depthToDepthWGSL = `
@group(0) @binding(0) var src: texture_depth_2d;
@group(0) @binding(1) var src_sampler: sampler;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @builtin(frag_depth) f32 {
  return textureLoad(src, vec2<i32>(pos.xy), 0);
}
`

// GetDepthToDepthBlit returns the pipeline that copies depth across
// texture views via a texture-sampling fragment shader writing
// frag_depth, compiling it on first use.
func (s *Store) GetDepthToDepthBlit(key DepthBlitKey) (hal.RenderPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLocked(s.depthBlit, key, func() (hal.RenderPipeline, error) {
		return s.buildDepthToDepthBlit(key)
	})
}

func (s *Store) buildDepthToDepthBlit(key DepthBlitKey) (hal.RenderPipeline, error) {
	module, err := compileShaderModule(s.device, "internal-depth-to-depth-blit", depthToDepthWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile depth-to-depth shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-depth-to-depth-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create depth-to-depth layout: %w", err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:     "internal-depth-to-depth-blit",
		Layout:    layout,
		Vertex:    hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		DepthStencil: &hal.DepthStencilState{
			Format:            key.DestinationFormat,
			DepthWriteEnabled: true,
			DepthCompare:      types.CompareFunctionAlways,
		},
		Multisample: types.DefaultMultisampleState(),
		Fragment:    &hal.FragmentState{Module: module, EntryPoint: "fs_main"},
	})
}
