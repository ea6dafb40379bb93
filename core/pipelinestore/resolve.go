package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// ResolveKey identifies one resolve-with-draw pipeline: destination
// color format and sample count.
type ResolveKey struct {
	DestinationFormat types.TextureFormat
	SampleCount       uint32
}

const resolveWithDrawWGSLTemplate = `
@group(0) @binding(0) var src: texture_multisampled_2d<f32>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
  var sum = vec4<f32>(0.0);
  for (var i: u32 = 0u; i < %du; i = i + 1u) {
    sum = sum + textureLoad(src, vec2<i32>(pos.xy), i32(i));
  }
  return sum / f32(%d);
}
`

// GetResolveWithDraw returns the pipeline that averages N multisampled
// color texels into a single-sample destination, compiling it on first
// use.
func (s *Store) GetResolveWithDraw(key ResolveKey) (hal.RenderPipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLocked(s.resolveWithDraw, key, func() (hal.RenderPipeline, error) {
		return s.buildResolveWithDraw(key)
	})
}

func (s *Store) buildResolveWithDraw(key ResolveKey) (hal.RenderPipeline, error) {
	wgsl := fmt.Sprintf(resolveWithDrawWGSLTemplate, key.SampleCount, key.SampleCount)
	module, err := compileShaderModule(s.device, "internal-resolve-with-draw", wgsl)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile resolve-with-draw shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-resolve-with-draw-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create resolve-with-draw layout: %w", err)
	}
	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:       "internal-resolve-with-draw",
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

// ExpandResolveKey identifies one expand-resolve-with-draw pipeline:
// which attachments to expand, which are resolve targets, their
// formats, sample count, and the pass's depth-stencil format.
type ExpandResolveKey struct {
	ColorFormats     [MaxColorTargets]types.TextureFormat
	ColorFormatCount uint8
	ExpandMask       uint32 // bitmask of attachments to initialize from their resolve target
	ResolveMask      uint32 // bitmask of attachments that have a resolve target at all
	SampleCount      uint32
	DepthStencilFormat types.TextureFormat
}

const expandResolveWGSL = `
@group(0) @binding(0) var resolved: texture_2d<f32>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> @builtin(position) vec4<f32> {
  let x = f32((idx << 1u) & 2u) * 2.0 - 1.0;
  let y = f32(idx & 2u) * 2.0 - 1.0;
  return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
  // Initializes the MSAA attachment from its resolve target so a
  // downstream ExpandResolveTexture-loadOp render pass appears to load
  // from the resolve target.
  return textureLoad(resolved, vec2<i32>(pos.xy), 0);
}
`

// GetExpandResolveWithDraw returns the pipeline that initializes an MSAA
// attachment from its resolve target before a render pass whose loadOp
// is ExpandResolveTexture. Callers must skip invoking this entirely when
// ExpandMask is zero — a pass with nothing to expand is a no-op path
// with no pipeline built at all.
func (s *Store) GetExpandResolveWithDraw(key ExpandResolveKey) (hal.RenderPipeline, error) {
	if key.ExpandMask == 0 {
		return nil, fmt.Errorf("pipelinestore: GetExpandResolveWithDraw called with an empty expand mask; caller must skip this path entirely")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return getOrCreateLocked(s.expandResolve, key, func() (hal.RenderPipeline, error) {
		return s.buildExpandResolveWithDraw(key)
	})
}

func (s *Store) buildExpandResolveWithDraw(key ExpandResolveKey) (hal.RenderPipeline, error) {
	module, err := compileShaderModule(s.device, "internal-expand-resolve", expandResolveWGSL)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile expand-resolve shader: %w", err)
	}
	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "internal-expand-resolve-layout"})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create expand-resolve layout: %w", err)
	}

	targets := make([]types.ColorTargetState, 0, key.ColorFormatCount)
	for i := uint8(0); i < key.ColorFormatCount; i++ {
		writeMask := types.ColorWriteMaskAll
		if key.ExpandMask&(1<<i) == 0 {
			writeMask = 0
		}
		targets = append(targets, types.ColorTargetState{Format: key.ColorFormats[i], WriteMask: writeMask})
	}

	var ds *hal.DepthStencilState
	if key.DepthStencilFormat != types.TextureFormatUndefined {
		ds = &hal.DepthStencilState{Format: key.DepthStencilFormat, DepthCompare: types.CompareFunctionAlways}
	}

	return s.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:        "internal-expand-resolve",
		Layout:       layout,
		Vertex:       hal.VertexState{Module: module, EntryPoint: "vs_main"},
		Primitive:    types.PrimitiveState{Topology: types.PrimitiveTopologyTriangleList},
		DepthStencil: ds,
		Multisample:  types.MultisampleState{Count: key.SampleCount, Mask: 0xFFFFFFFF},
		Fragment:     &hal.FragmentState{Module: module, EntryPoint: "fs_main", Targets: targets},
	})
}
