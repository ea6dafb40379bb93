package core

import (
	"errors"

	"github.com/gogpu/wgpucore/hal"
)

func (d *Device) snatchedHAL() (hal.Device, *SnatchGuard, error) {
	guard := d.snatchLock.Read()
	halDevice, err := d.raw.GetOrErr(guard, ErrDeviceDestroyed)
	if err != nil {
		guard.Release()
		return nil, nil, err
	}
	return halDevice, guard, nil
}

// CreateSampler creates or reuses a content-cached sampler (spec C2): a
// sampler with fields identical to an already-live one (ignoring Label) is
// never created twice.
func (d *Device) CreateSampler(desc *hal.SamplerDescriptor) (*Sampler, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("CreateSampler: descriptor must not be nil")
	}

	blueprintKey := *desc
	blueprintKey.Label = ""
	blueprint := &Sampler{desc: *desc, hash: contentHash64(blueprintKey)}

	return d.samplerCache.GetOrCreate(blueprint, func() (*Sampler, error) {
		halDevice, guard, err := d.snatchedHAL()
		if err != nil {
			return nil, err
		}
		raw, err := halDevice.CreateSampler(desc)
		guard.Release()
		if err != nil {
			return nil, NewValidationErrorf("Sampler", "descriptor", "%s: %v", desc.Label, err)
		}
		return newSampler(raw, d, *desc), nil
	})
}

// CreateShaderModule compiles desc's WGSL source (spec §6's compile_wgsl),
// then creates or reuses a content-cached shader module (spec C2) keyed on
// source alone. allowedExtensions restricts which WGSL `enable` directives
// the module may use.
func (d *Device) CreateShaderModule(desc *hal.ShaderModuleDescriptor, allowedExtensions []string) (*ShaderModule, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("CreateShaderModule: descriptor must not be nil")
	}

	if desc.Source.WGSL != "" {
		if _, err := d.CompileShaderModule(desc.Label, desc.Source.WGSL, allowedExtensions); err != nil {
			return nil, err
		}
	}

	blueprintKey := *desc
	blueprintKey.Label = ""
	blueprint := &ShaderModule{desc: *desc, hash: contentHash64(blueprintKey)}

	return d.shaderModuleCache.GetOrCreate(blueprint, func() (*ShaderModule, error) {
		halDevice, guard, err := d.snatchedHAL()
		if err != nil {
			return nil, err
		}
		raw, err := halDevice.CreateShaderModule(desc)
		guard.Release()
		if err != nil {
			return nil, NewValidationErrorf("ShaderModule", "descriptor", "%s: %v", desc.Label, err)
		}
		return newShaderModule(raw, d, *desc), nil
	})
}

// CreateBindGroupLayout creates or reuses a content-cached bind-group
// layout (spec C2). compatToken is 0 for an explicit, user-authored layout;
// a nonzero token (minted via MintPipelineCompatibilityToken) marks a
// layout as a pipeline's automatically derived default, which is never
// interchangeable with any other layout regardless of entry content.
func (d *Device) CreateBindGroupLayout(desc *hal.BindGroupLayoutDescriptor, compatToken uint64) (*BindGroupLayout, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("CreateBindGroupLayout: descriptor must not be nil")
	}

	blueprintKey := *desc
	blueprintKey.Label = ""
	blueprint := &BindGroupLayout{
		desc:        *desc,
		compatToken: compatToken,
		hash:        contentHash64(blueprintKey, compatToken),
	}

	return d.bindGroupLayoutCache.GetOrCreate(blueprint, func() (*BindGroupLayout, error) {
		halDevice, guard, err := d.snatchedHAL()
		if err != nil {
			return nil, err
		}
		raw, err := halDevice.CreateBindGroupLayout(desc)
		guard.Release()
		if err != nil {
			return nil, NewValidationErrorf("BindGroupLayout", "descriptor", "%s: %v", desc.Label, err)
		}
		return newBindGroupLayout(raw, d, *desc, compatToken), nil
	})
}

// CreatePipelineLayout creates or reuses a content-cached pipeline layout
// (spec C2), keyed on the identity of its referenced bind-group layouts
// (themselves already content-deduped) plus its push-constant ranges.
func (d *Device) CreatePipelineLayout(desc PipelineLayoutDescriptor) (*PipelineLayout, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}

	blueprint := newPipelineLayout(nil, d, desc)

	return d.pipelineLayoutCache.GetOrCreate(blueprint, func() (*PipelineLayout, error) {
		halLayouts := make([]hal.BindGroupLayout, len(desc.BindGroupLayouts))
		for i, l := range desc.BindGroupLayouts {
			halLayouts[i] = l.Raw()
		}
		halDevice, guard, err := d.snatchedHAL()
		if err != nil {
			return nil, err
		}
		raw, err := halDevice.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
			Label:              desc.Label,
			BindGroupLayouts:   halLayouts,
			PushConstantRanges: desc.PushConstantRanges,
		})
		guard.Release()
		if err != nil {
			return nil, NewValidationErrorf("PipelineLayout", "descriptor", "%s: %v", desc.Label, err)
		}
		return newPipelineLayout(raw, d, desc), nil
	})
}

// autoPipelineLayout mints a pipeline-compatibility token and creates a
// fresh, empty bind-group layout set for a pipeline descriptor whose
// Layout is nil ("auto" layout). A full implementation would derive the
// layout from the shader modules' resource bindings via naga's reflection
// data; that derivation is not implemented here, so an
// auto layout currently only provides pipeline-compatibility isolation, not
// binding inference. Callers that need bindings must pass an explicit
// layout.
func (d *Device) autoPipelineLayout(label string) (*PipelineLayout, error) {
	token := d.MintPipelineCompatibilityToken()
	layout, err := d.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: label}, token)
	if err != nil {
		return nil, err
	}
	return d.CreatePipelineLayout(PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: []*BindGroupLayout{layout},
	})
}

// CreateBindGroup creates a bind group against layout. Bind groups are not
// content-cached (spec C2 covers layouts, not groups); each call allocates
// a fresh HAL bind group.
func (d *Device) CreateBindGroup(desc BindGroupDescriptor) (*BindGroup, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc.Layout == nil {
		return nil, errors.New("CreateBindGroup: layout must not be nil")
	}

	halDevice, guard, err := d.snatchedHAL()
	if err != nil {
		return nil, err
	}
	raw, err := halDevice.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  desc.Layout.Raw(),
		Entries: desc.Entries,
	})
	guard.Release()
	if err != nil {
		return nil, NewValidationErrorf("BindGroup", "descriptor", "%s: %v", desc.Label, err)
	}
	return newBindGroup(raw, d, desc.Layout), nil
}

func (d *Device) resolveRenderPipelineLayout(desc *RenderPipelineDescriptor) (*PipelineLayout, error) {
	if desc.Layout != nil {
		return desc.Layout, nil
	}
	return d.autoPipelineLayout(desc.Label)
}

// CreateRenderPipeline creates or reuses a content-cached render pipeline
// (spec C2). A nil Layout requests an automatically derived layout (see
// autoPipelineLayout).
func (d *Device) CreateRenderPipeline(desc RenderPipelineDescriptor) (*RenderPipeline, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}

	layout, err := d.resolveRenderPipelineLayout(&desc)
	if err != nil {
		return nil, err
	}
	desc.Layout = layout

	blueprint := newRenderPipeline(nil, d, desc)

	return d.renderPipelineCache.GetOrCreate(blueprint, func() (*RenderPipeline, error) {
		halDesc := &hal.RenderPipelineDescriptor{
			Label:        desc.Label,
			Layout:       layout.Raw(),
			Primitive:    desc.Primitive,
			DepthStencil: desc.DepthStencil,
			Multisample:  desc.Multisample,
			Vertex: hal.VertexState{
				EntryPoint: desc.Vertex.EntryPoint,
				Buffers:    desc.Vertex.Buffers,
			},
		}
		if desc.Vertex.Module != nil {
			halDesc.Vertex.Module = desc.Vertex.Module.Raw()
		}
		if desc.Fragment != nil {
			halDesc.Fragment = &hal.FragmentState{
				EntryPoint: desc.Fragment.EntryPoint,
				Targets:    desc.Fragment.Targets,
			}
			if desc.Fragment.Module != nil {
				halDesc.Fragment.Module = desc.Fragment.Module.Raw()
			}
		}

		halDevice, guard, err := d.snatchedHAL()
		if err != nil {
			return nil, err
		}
		raw, err := halDevice.CreateRenderPipeline(halDesc)
		guard.Release()
		if err != nil {
			return nil, NewValidationErrorf("RenderPipeline", "descriptor", "%s: %v", desc.Label, err)
		}
		return newRenderPipeline(raw, d, desc), nil
	})
}

func (d *Device) resolveComputePipelineLayout(desc *HALComputePipelineDescriptor) (*PipelineLayout, error) {
	if desc.Layout != nil {
		return desc.Layout, nil
	}
	return d.autoPipelineLayout(desc.Label)
}

// CreateComputePipeline creates or reuses a content-cached compute
// pipeline (spec C2). A nil Layout requests an automatically derived
// layout (see autoPipelineLayout).
func (d *Device) CreateComputePipeline(desc HALComputePipelineDescriptor) (*ComputePipeline, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc.Module == nil {
		return nil, errors.New("CreateComputePipeline: module must not be nil")
	}

	layout, err := d.resolveComputePipelineLayout(&desc)
	if err != nil {
		return nil, err
	}
	desc.Layout = layout

	blueprint := newComputePipeline(nil, d, desc)

	return d.computePipelineCache.GetOrCreate(blueprint, func() (*ComputePipeline, error) {
		halDevice, guard, err := d.snatchedHAL()
		if err != nil {
			return nil, err
		}
		raw, err := halDevice.CreateComputePipeline(&hal.ComputePipelineDescriptor{
			Label:  desc.Label,
			Layout: layout.Raw(),
			Compute: hal.ComputeState{
				Module:     desc.Module.Raw(),
				EntryPoint: desc.EntryPoint,
			},
		})
		guard.Release()
		if err != nil {
			return nil, NewValidationErrorf("ComputePipeline", "descriptor", "%s: %v", desc.Label, err)
		}
		return newComputePipeline(raw, d, desc), nil
	})
}

// CreateTexture creates a texture. Textures are not content-cached.
func (d *Device) CreateTexture(desc *hal.TextureDescriptor) (*Texture, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("CreateTexture: descriptor must not be nil")
	}

	halDevice, guard, err := d.snatchedHAL()
	if err != nil {
		return nil, err
	}
	raw, err := halDevice.CreateTexture(desc)
	guard.Release()
	if err != nil {
		return nil, NewValidationErrorf("Texture", "descriptor", "%s: %v", desc.Label, err)
	}
	return newTexture(raw, d, desc.Format), nil
}

// CreateTextureView creates a view into texture. Views are not
// content-cached.
func (d *Device) CreateTextureView(texture *Texture, desc *hal.TextureViewDescriptor) (*TextureView, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if texture == nil {
		return nil, errors.New("CreateTextureView: texture must not be nil")
	}
	if desc == nil {
		desc = &hal.TextureViewDescriptor{Format: texture.Format()}
	}

	halDevice, guard, err := d.snatchedHAL()
	if err != nil {
		return nil, err
	}
	raw, err := halDevice.CreateTextureView(texture.Raw(), desc)
	guard.Release()
	if err != nil {
		return nil, NewValidationErrorf("TextureView", "descriptor", "%s: %v", desc.Label, err)
	}
	return newTextureView(raw, d, texture), nil
}
