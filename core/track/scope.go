package track

import (
	"fmt"

	"github.com/gogpu/wgpucore/types"
)

// SyncScopeUsageTracker accumulates buffer and texture usage within one
// synchronization scope — a render pass, a compute pass, or a render
// bundle. It is the common engine behind ComputePassResourceUsageTracker
// and RenderPassResourceUsageTracker, which add the render-pass-only
// query-availability bookkeeping on top.
type SyncScopeUsageTracker struct {
	buffers          map[types.BufferHandle]BufferSyncInfo
	textures         map[subresourceKey]SyncInfo
	textureRanges    map[types.TextureViewHandle][]SubresourceRange
	externalTextures map[types.TextureViewHandle]struct{}
}

// NewSyncScopeUsageTracker creates an empty tracker.
func NewSyncScopeUsageTracker() *SyncScopeUsageTracker {
	return &SyncScopeUsageTracker{
		buffers:          make(map[types.BufferHandle]BufferSyncInfo),
		textures:         make(map[subresourceKey]SyncInfo),
		textureRanges:    make(map[types.TextureViewHandle][]SubresourceRange),
		externalTextures: make(map[types.TextureViewHandle]struct{}),
	}
}

// BufferUsedAs merges usage into the per-buffer record. Querying state
// never mutates it; this is the only buffer-side mutator.
func (t *SyncScopeUsageTracker) BufferUsedAs(buffer types.BufferHandle, usage BufferUses, stages types.ShaderStages) {
	add := BufferSyncInfo{Usage: usage, Stages: stages}
	if existing, ok := t.buffers[buffer]; ok {
		t.buffers[buffer] = mergeBufferSync(existing, add)
		return
	}
	t.buffers[buffer] = add
}

// TextureViewUsedAs expands usage to the view's subresource range and
// merges it into the per-subresource record.
func (t *SyncScopeUsageTracker) TextureViewUsedAs(view types.TextureViewHandle, rng SubresourceRange, usage TextureUses, stages types.ShaderStages) {
	add := SyncInfo{Usage: usage, Stages: stages}
	t.textureRanges[view] = append(t.textureRanges[view], rng)

	for mip := rng.BaseMipLevel; mip < rng.BaseMipLevel+rng.MipLevelCount; mip++ {
		for layer := rng.BaseArrayLayer; layer < rng.BaseArrayLayer+rng.ArrayLayerCount; layer++ {
			key := subresourceKey{view: view, aspect: rng.Aspect, mip: mip, layer: layer}
			if existing, ok := t.textures[key]; ok {
				t.textures[key] = mergeTextureSync(existing, add)
				continue
			}
			t.textures[key] = add
		}
	}
}

// ExternalTextureUsed records that an external texture was touched by
// this scope; external textures carry no usage bits of their own, only
// membership in the touched set.
func (t *SyncScopeUsageTracker) ExternalTextureUsed(view types.TextureViewHandle) {
	t.externalTextures[view] = struct{}{}
}

// BindGroupEntryLayout is the subset of a bind-group layout entry needed
// to dispatch AddBindGroup's binding-kind mapping. Callers (the command
// encoder) build one per bound resource from the bind group's layout and
// the concrete resource it binds.
type BindGroupEntryLayout struct {
	Buffer        *types.BufferBindingLayout
	Sampler       *types.SamplerBindingLayout
	Texture       *types.TextureBindingLayout
	Storage       *types.StorageTextureBindingLayout
	InputAttach   bool
	Visibility    types.ShaderStages
	BufferHandle  types.BufferHandle
	TextureHandle types.TextureViewHandle
	TextureRange  SubresourceRange
}

// AddBindGroup dispatches every entry in a bind group's layout to the
// appropriate usage-recording call based on its binding kind. Sampler
// and static-sampler entries record nothing. An input-attachment entry
// reaching this far is a front-end validation bug: front-end validation
// must reject it before a bind group referencing one can ever be
// recorded, so this panics rather than silently dropping it.
func (t *SyncScopeUsageTracker) AddBindGroup(entries []BindGroupEntryLayout) {
	for _, e := range entries {
		switch {
		case e.InputAttach:
			panic("track: input-attachment binding reached AddBindGroup; front end must reject these")
		case e.Buffer != nil:
			switch e.Buffer.Type {
			case types.BufferBindingTypeUniform:
				t.BufferUsedAs(e.BufferHandle, BufferUsesUniform, e.Visibility)
			case types.BufferBindingTypeStorage:
				t.BufferUsedAs(e.BufferHandle, BufferUsesStorageWrite, e.Visibility)
			case types.BufferBindingTypeReadOnlyStorage:
				t.BufferUsedAs(e.BufferHandle, BufferUsesStorageRead, e.Visibility)
			}
		case e.Texture != nil:
			t.TextureViewUsedAs(e.TextureHandle, e.TextureRange, TextureUsesTextureBinding, e.Visibility)
		case e.Storage != nil:
			switch e.Storage.Access {
			case types.StorageTextureAccessWriteOnly:
				t.TextureViewUsedAs(e.TextureHandle, e.TextureRange, TextureUsesWriteOnlyStorageTexture, e.Visibility)
			case types.StorageTextureAccessReadWrite:
				t.TextureViewUsedAs(e.TextureHandle, e.TextureRange, TextureUsesStorageBinding, e.Visibility)
			case types.StorageTextureAccessReadOnly:
				t.TextureViewUsedAs(e.TextureHandle, e.TextureRange, TextureUsesReadOnlyStorageTexture, e.Visibility)
			}
		case e.Sampler != nil:
			// Samplers and static samplers contribute no usage bits.
		}
	}
}

// MergeRenderBundle merges a render bundle's accumulated usage into this
// scope. A bundle texture usage that carries render-attachment bits is
// rejected with an error — those come solely from the pass descriptor,
// since a bundle has no pass descriptor of its own to source them from.
// The check reads the usage recorded at the base subresource of each
// range; buffers are merged before textures and stay merged when an
// error is returned.
func (t *SyncScopeUsageTracker) MergeRenderBundle(bundle *SyncScopeUsageTracker) error {
	for buf, info := range bundle.buffers {
		t.BufferUsedAs(buf, info.Usage, info.Stages)
	}
	for view, ranges := range bundle.textureRanges {
		for _, rng := range ranges {
			key := subresourceKey{view: view, aspect: rng.Aspect, mip: rng.BaseMipLevel, layer: rng.BaseArrayLayer}
			info, ok := bundle.textures[key]
			if !ok {
				continue
			}
			if info.Usage&TextureUsesRenderAttachment != 0 {
				return fmt.Errorf("track: render bundle usage must not carry render-attachment bits")
			}
			t.TextureViewUsedAs(view, rng, info.Usage, info.Stages)
		}
	}
	for view := range bundle.externalTextures {
		t.ExternalTextureUsed(view)
	}
	return nil
}

// BufferUsage is one row of the Acquire() buffer array.
type BufferUsage struct {
	Buffer types.BufferHandle
	Info   BufferSyncInfo
}

// TextureUsage is one row of the Acquire() texture array: one per
// distinct subresource touched.
type TextureUsage struct {
	View   types.TextureViewHandle
	Range  SubresourceRange
	Info   SyncInfo
}

// Acquire consumes the tracker and returns three parallel arrays:
// buffers, per-subresource textures, and external textures. Intended for
// compute passes, which have no query availability bookkeeping;
// RenderPassResourceUsageTracker.Acquire adds a fourth array on top.
func (t *SyncScopeUsageTracker) Acquire() (buffers []BufferUsage, textures []TextureUsage, externalTextures []types.TextureViewHandle) {
	for buf, info := range t.buffers {
		buffers = append(buffers, BufferUsage{Buffer: buf, Info: info})
	}
	for key, info := range t.textures {
		textures = append(textures, TextureUsage{
			View: key.view,
			Range: SubresourceRange{
				Aspect:          key.aspect,
				BaseMipLevel:    key.mip,
				MipLevelCount:   1,
				BaseArrayLayer:  key.layer,
				ArrayLayerCount: 1,
			},
			Info: info,
		})
	}
	for view := range t.externalTextures {
		externalTextures = append(externalTextures, view)
	}
	return buffers, textures, externalTextures
}

// ComputePassResourceUsageTracker is a SyncScopeUsageTracker scoped to a
// compute pass: no query-availability map, no attachment bits.
type ComputePassResourceUsageTracker struct {
	*SyncScopeUsageTracker
}

// NewComputePassResourceUsageTracker creates an empty tracker.
func NewComputePassResourceUsageTracker() *ComputePassResourceUsageTracker {
	return &ComputePassResourceUsageTracker{SyncScopeUsageTracker: NewSyncScopeUsageTracker()}
}

// RenderPassResourceUsageTracker adds the query-availability bit-vector
// map render passes need on top of the shared sync-scope engine.
type RenderPassResourceUsageTracker struct {
	*SyncScopeUsageTracker
	queryAvailability map[types.QuerySetHandle][]bool
}

// NewRenderPassResourceUsageTracker creates an empty tracker.
func NewRenderPassResourceUsageTracker() *RenderPassResourceUsageTracker {
	return &RenderPassResourceUsageTracker{
		SyncScopeUsageTracker: NewSyncScopeUsageTracker(),
		queryAvailability:     make(map[types.QuerySetHandle][]bool),
	}
}

// WriteQuery marks query index as written within this pass.
func (t *RenderPassResourceUsageTracker) WriteQuery(set types.QuerySetHandle, index uint32, count uint32) {
	bits := t.queryAvailability[set]
	for uint32(len(bits)) <= index {
		bits = append(bits, false)
	}
	bits[index] = true
	t.queryAvailability[set] = bits
	_ = count
}

// Acquire consumes the tracker and returns four parallel results for a
// render pass: buffers, textures, external textures, and the
// per-query-set write-availability bit-vectors.
func (t *RenderPassResourceUsageTracker) Acquire() (buffers []BufferUsage, textures []TextureUsage, externalTextures []types.TextureViewHandle, queryAvailability map[types.QuerySetHandle][]bool) {
	buffers, textures, externalTextures = t.SyncScopeUsageTracker.Acquire()
	return buffers, textures, externalTextures, t.queryAvailability
}
