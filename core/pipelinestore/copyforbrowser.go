package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// CopyForBrowserStep is a bit in the copy-for-browser shader's
// steps_mask uniform: each bit gates one pipeline stage so a single
// compiled shader serves every combination of flags.
type CopyForBrowserStep uint32

const (
	CopyForBrowserUnpremultiply CopyForBrowserStep = 1 << iota
	CopyForBrowserDecodeTransferFunction
	CopyForBrowserApplyGamutMatrix
	CopyForBrowserEncodeTransferFunction
	CopyForBrowserPremultiply
	CopyForBrowserExtraSRGBDecode
)

// CopyForBrowserSourceKind distinguishes the two key spaces
// copy-for-browser pipelines are cached on separately: a plain 2D
// texture source, and an external-texture source.
type CopyForBrowserSourceKind uint8

const (
	CopyForBrowserSource2D CopyForBrowserSourceKind = iota
	CopyForBrowserSourceExternal
)

// CopyForBrowserKey identifies one copy-for-browser pipeline.
type CopyForBrowserKey struct {
	DestinationFormat types.TextureFormat
}

// SupportedCopyForBrowserSourceFormats is the exact source-format set
// the copy-for-browser path supports.
var SupportedCopyForBrowserSourceFormats = []types.TextureFormat{
	types.TextureFormatBGRA8Unorm,
	types.TextureFormatRGBA8Unorm,
	types.TextureFormatRGBA16Float,
}

// SupportedCopyForBrowserDestinationFormats is the exact destination-format
// set the copy-for-browser path supports, including the sRGB variants of
// RGBA8Unorm/BGRA8Unorm.
var SupportedCopyForBrowserDestinationFormats = []types.TextureFormat{
	types.TextureFormatR8Unorm,
	types.TextureFormatR16Float,
	types.TextureFormatR32Float,
	types.TextureFormatRG8Unorm,
	types.TextureFormatRG16Float,
	types.TextureFormatRG32Float,
	types.TextureFormatRGBA8Unorm,
	types.TextureFormatRGBA8UnormSrgb,
	types.TextureFormatBGRA8Unorm,
	types.TextureFormatBGRA8UnormSrgb,
	types.TextureFormatRGB10A2Unorm,
	types.TextureFormatRGBA16Float,
	types.TextureFormatRGBA32Float,
}

func formatInList(format types.TextureFormat, list []types.TextureFormat) bool {
	for _, f := range list {
		if f == format {
			return true
		}
	}
	return false
}

const copyForBrowserWGSLTemplate = `
struct CopyParams {
  steps_mask: u32,
  gamut_matrix: mat3x3<f32>,
};
@group(0) @binding(0) var<uniform> params: CopyParams;
@group(0) @binding(1) var src: %s;
@group(0) @binding(2) var src_sampler: sampler;

const STEP_UNPREMULTIPLY: u32 = 0x1u;
const STEP_DECODE_TF: u32 = 0x2u;
const STEP_GAMUT: u32 = 0x4u;
const STEP_ENCODE_TF: u32 = 0x8u;
const STEP_PREMULTIPLY: u32 = 0x10u;
const STEP_EXTRA_SRGB_DECODE: u32 = 0x20u;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
  var color = textureSample(src, src_sampler, pos.xy);
  if ((params.steps_mask & STEP_UNPREMULTIPLY) != 0u && color.a > 0.0) {
    color = vec4<f32>(color.rgb / color.a, color.a);
  }
  if ((params.steps_mask & STEP_DECODE_TF) != 0u) {
    color = vec4<f32>(pow(color.rgb, vec3<f32>(2.2)), color.a);
  }
  if ((params.steps_mask & STEP_GAMUT) != 0u) {
    color = vec4<f32>(params.gamut_matrix * color.rgb, color.a);
  }
  if ((params.steps_mask & STEP_ENCODE_TF) != 0u) {
    color = vec4<f32>(pow(color.rgb, vec3<f32>(1.0 / 2.2)), color.a);
  }
  if ((params.steps_mask & STEP_PREMULTIPLY) != 0u) {
    color = vec4<f32>(color.rgb * color.a, color.a);
  }
  if ((params.steps_mask & STEP_EXTRA_SRGB_DECODE) != 0u) {
    color = vec4<f32>(pow(color.rgb, vec3<f32>(2.2)), color.a);
  }
  return color;
}
`

func (s *Store) getCopyForBrowser(kind CopyForBrowserSourceKind, key CopyForBrowserKey) (hal.RenderPipeline, error) {
	if !formatInList(key.DestinationFormat, SupportedCopyForBrowserDestinationFormats) {
		return nil, fmt.Errorf("pipelinestore: format %v is not a supported copy-for-browser destination", key.DestinationFormat)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.copyForBrowser2D
	if kind == CopyForBrowserSourceExternal {
		m = s.copyForBrowserXT
	}
	return getOrCreateLocked(m, key, func() (hal.RenderPipeline, error) {
		return s.buildCopyForBrowser(kind, key)
	})
}

// GetCopyForBrowser2D returns the copy-for-browser pipeline for a plain
// 2D texture source, compiling it on first use.
func (s *Store) GetCopyForBrowser2D(key CopyForBrowserKey) (hal.RenderPipeline, error) {
	return s.getCopyForBrowser(CopyForBrowserSource2D, key)
}

// GetCopyForBrowserExternalTexture returns the copy-for-browser pipeline
// for an external-texture source, compiling it on first use; keyed
// separately from the 2D-source variant.
func (s *Store) GetCopyForBrowserExternalTexture(key CopyForBrowserKey) (hal.RenderPipeline, error) {
	return s.getCopyForBrowser(CopyForBrowserSourceExternal, key)
}

func (s *Store) buildCopyForBrowser(kind CopyForBrowserSourceKind, key CopyForBrowserKey) (hal.RenderPipeline, error) {
	textureType := "texture_2d<f32>"
	label := "internal-copy-for-browser-2d"
	if kind == CopyForBrowserSourceExternal {
		textureType = "texture_external"
		label = "internal-copy-for-browser-external"
	}
	wgsl := fmt.Sprintf(copyForBrowserWGSLTemplate, textureType)

	module, err := compileShaderModule(s.device, label, wgsl)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile %s shader: %w", label, err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: label + "-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create %s layout: %w", label, err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:       label,
		Layout:      layout,
		Vertex:      hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive:   types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		Multisample: types.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []types.ColorTargetState{{Format: key.DestinationFormat, WriteMask: types.ColorWriteMaskAll}},
		},
	})
}
