package pipelinestore

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// The single-draw and multi-draw validation shaders share the same
// per-draw comparison logic: 64-thread workgroups over the draws in one
// batch, reading batch metadata and the untrusted source indirect
// buffer, and writing either a validated copy or an all-zero record into
// the trusted output buffer.
const indirectValidateCommon = `
struct DrawMeta {
  input_offset: u32,
  output_offset: u32,
  index_count_low: u32,
  index_count_high: u32,
  index_offset_elements: u32,
  duplicate_base_vertex_instance: u32,
  is_indexed: u32,
  validation_enabled: u32,
  use_first_index_bias: u32,
  allow_indirect_first_instance: u32,
};

struct BatchData {
  num_draws: u32,
  _pad0: u32,
  _pad1: u32,
  _pad2: u32,
  draws: array<DrawMeta>,
};

@group(0) @binding(0) var<storage, read> batch: BatchData;
@group(0) @binding(1) var<storage, read> source: array<u32>;
@group(0) @binding(2) var<storage, read_write> output: array<u32>;

fn zero_output(base: u32, words: u32) {
  for (var i: u32 = 0u; i < words; i = i + 1u) {
    output[base + i] = 0u;
  }
}

fn copy_draw(meta: DrawMeta, words: u32) {
  for (var i: u32 = 0u; i < words; i = i + 1u) {
    output[meta.output_offset + i] = source[meta.input_offset + i];
  }
  if (meta.duplicate_base_vertex_instance != 0u) {
    output[meta.output_offset + words] = source[meta.input_offset + 3u];
    output[meta.output_offset + words + 1u] = source[meta.input_offset + 4u];
  }
  if (meta.is_indexed != 0u && meta.use_first_index_bias != 0u) {
    output[meta.output_offset + 2u] = source[meta.input_offset + 2u] + meta.index_offset_elements;
  }
}

fn validate_and_copy(meta: DrawMeta) {
  let words = select(4u, 5u, meta.is_indexed != 0u);

  if (meta.validation_enabled == 0u) {
    copy_draw(meta, words);
    return;
  }

  let first_instance = select(source[meta.input_offset + 4u], source[meta.input_offset + 4u], meta.is_indexed != 0u);
  if (meta.allow_indirect_first_instance == 0u && first_instance != 0u) {
    zero_output(meta.output_offset, words + select(0u, 2u, meta.duplicate_base_vertex_instance != 0u));
    return;
  }

  if (meta.is_indexed == 0u) {
    copy_draw(meta, words);
    return;
  }

  // firstIndex + indexCount must not overflow the bound index buffer.
  // High half >= 2 means the maximum representable sum (<= 0x1_FFFF_FFFE)
  // can never exceed the element count, so the draw is always safe.
  if (meta.index_count_high >= 2u) {
    copy_draw(meta, words);
    return;
  }

  let first_index = source[meta.input_offset + 2u];
  let index_count = source[meta.input_offset];
  let max_index_count = meta.index_count_low - first_index;
  if (index_count > max_index_count) {
    zero_output(meta.output_offset, words + select(0u, 2u, meta.duplicate_base_vertex_instance != 0u));
    return;
  }
  copy_draw(meta, words);
}
`

const singleDrawValidateWGSL = indirectValidateCommon + `
@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
  let id = gid.x;
  if (id >= batch.num_draws) {
    return;
  }
  validate_and_copy(batch.draws[id]);
}
`

const multiDrawValidateWGSL = indirectValidateCommon + `
@group(0) @binding(3) var<storage, read> draw_count_buffer: array<u32>;

struct MultiDrawParams {
  max_draw_count: u32,
  draw_count_offset_words: u32,
  has_count_buffer: u32,
};
@group(0) @binding(4) var<uniform> multi: MultiDrawParams;

@compute @workgroup_size(64)
fn cs_main(@builtin(global_invocation_id) gid: vec3<u32>) {
  let id = gid.x;
  var actual_count = multi.max_draw_count;
  if (multi.has_count_buffer != 0u) {
    actual_count = min(draw_count_buffer[multi.draw_count_offset_words], multi.max_draw_count);
  }
  if (id >= actual_count || id >= batch.num_draws) {
    return;
  }
  validate_and_copy(batch.draws[id]);
}
`

// GetSingleDrawValidate returns the device-scoped singleton compute
// pipeline that validates and rewrites a batch of single (non-count-
// buffer) indirect draws into the trusted scratch output buffer.
func (s *Store) GetSingleDrawValidate() (hal.ComputePipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.singleDrawValidate != nil {
		return s.singleDrawValidate, nil
	}
	p, err := s.buildIndirectValidate("internal-indirect-validate-single", singleDrawValidateWGSL, false)
	if err != nil {
		return nil, err
	}
	s.singleDrawValidate = p
	return p, nil
}

// GetMultiDrawValidate returns the device-scoped singleton compute
// pipeline that validates and rewrites a batch of multi-draw-indirect
// calls, honoring an optional GPU-resident draw-count buffer.
func (s *Store) GetMultiDrawValidate() (hal.ComputePipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.multiDrawValidate != nil {
		return s.multiDrawValidate, nil
	}
	p, err := s.buildIndirectValidate("internal-indirect-validate-multi", multiDrawValidateWGSL, true)
	if err != nil {
		return nil, err
	}
	s.multiDrawValidate = p
	return p, nil
}

func (s *Store) buildIndirectValidate(label, wgsl string, multi bool) (hal.ComputePipeline, error) {
	module, err := compileShaderModule(s.device, label, wgsl)
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: compile %s shader: %w", label, err)
	}

	entries := []types.BindGroupLayoutEntry{
		{Binding: 0, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage}},
		{Binding: 1, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage}},
		{Binding: 2, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeStorage}},
	}
	if multi {
		entries = append(entries,
			types.BindGroupLayoutEntry{Binding: 3, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeReadOnlyStorage}},
			types.BindGroupLayoutEntry{Binding: 4, Visibility: types.ShaderStageCompute, Buffer: &types.BufferBindingLayout{Type: types.BufferBindingTypeUniform}},
		)
	}

	bgl, err := s.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: label + "-bgl", Entries: entries})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create %s bind group layout: %w", label, err)
	}

	layout, err := s.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "-layout",
		BindGroupLayouts: []hal.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, fmt.Errorf("pipelinestore: create %s layout: %w", label, err)
	}

	if multi {
		s.multiDrawValidateLayout = bgl
	} else {
		s.singleDrawValidateLayout = bgl
	}

	return s.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: "cs_main"},
	})
}

// SingleDrawValidateLayout returns the bind group layout the single-draw
// validation pipeline expects at group 0, populated once
// GetSingleDrawValidate has built the pipeline.
func (s *Store) SingleDrawValidateLayout() hal.BindGroupLayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.singleDrawValidateLayout
}

// MultiDrawValidateLayout returns the bind group layout the multi-draw
// validation pipeline expects at group 0, populated once
// GetMultiDrawValidate has built the pipeline.
func (s *Store) MultiDrawValidateLayout() hal.BindGroupLayout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.multiDrawValidateLayout
}
