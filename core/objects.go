package core

import (
	"bytes"
	"encoding/gob"
	"hash/fnv"
	"reflect"
	"sync/atomic"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// contentHash64 computes the spec §4.1 content hash for a cache entry: the
// FNV-1a hash of a gob encoding of parts. None of the descriptors cached by
// this package contain maps, so gob's encoding order is stable for equal
// inputs. There is no ecosystem content-hashing library in the example
// corpus (Dawn hand-rolls a field-wise hash per type instead); gob+FNV is
// the standard-library substitute, computed once at construction per the
// spec's "hashing happens once, at construction" invariant.
func contentHash64(parts ...any) uint64 {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	for _, p := range parts {
		if err := enc.Encode(p); err != nil {
			panic("wgpucore: content hash encode: " + err.Error())
		}
	}
	h := fnv.New64a()
	h.Write(buf.Bytes())
	return h.Sum64()
}

// combineHash folds an already-computed hash (typically another cached
// object's ContentHash) into a running FNV-1a accumulator, used when a
// descriptor references other cached objects by pointer instead of value
// (pipeline layouts reference bind-group layouts; pipelines reference a
// layout and shader modules) — gob cannot encode the hal.* interface values
// those objects wrap, so identity is folded in via the child's own hash
// instead.
func combineHash(h uint64, child uint64) uint64 {
	h ^= child
	h *= 1099511628211
	return h
}

func (d *Device) halDeviceLocked() hal.Device {
	if !d.HasHAL() {
		return nil
	}
	guard := d.snatchLock.Read()
	defer guard.Release()
	return d.Raw(guard)
}

// ---------------------------------------------------------------------------
// Sampler (C2 cache)
// ---------------------------------------------------------------------------

// Sampler is a content-cached GPU sampler (spec C2).
type Sampler struct {
	raw       hal.Sampler
	device    *Device
	desc      hal.SamplerDescriptor
	hash      uint64
	destroyed *atomic.Bool
}

func newSampler(raw hal.Sampler, device *Device, desc hal.SamplerDescriptor) *Sampler {
	key := desc
	key.Label = ""
	return &Sampler{
		raw:       raw,
		device:    device,
		desc:      desc,
		hash:      contentHash64(key),
		destroyed: new(atomic.Bool),
	}
}

// ContentHash implements cache.EntryPtr.
func (s *Sampler) ContentHash() uint64 { return s.hash }

// ContentEqual implements cache.EntryPtr: two samplers are interchangeable
// iff every field but Label matches.
func (s *Sampler) ContentEqual(other *Sampler) bool {
	if other == nil {
		return false
	}
	a, b := s.desc, other.desc
	a.Label, b.Label = "", ""
	return a == b
}

// Raw returns the underlying HAL sampler.
func (s *Sampler) Raw() hal.Sampler { return s.raw }

// Destroy releases the sampler's HAL resource. Safe to call more than once;
// only the first call takes effect. Cache entries for content-addressed
// objects are never explicitly removed here — the cache's weak reference
// self-prunes once this is the last strong reference and it is collected.
func (s *Sampler) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := s.device.halDeviceLocked(); hd != nil {
		hd.DestroySampler(s.raw)
	}
}

// ---------------------------------------------------------------------------
// ShaderModule (C2 cache)
// ---------------------------------------------------------------------------

// ShaderModule is a content-cached compiled shader module (spec C2). A
// module's content hash covers its source only, not its debug label, so
// two modules compiled from identical WGSL source share one backend
// resource.
type ShaderModule struct {
	raw       hal.ShaderModule
	device    *Device
	desc      hal.ShaderModuleDescriptor
	hash      uint64
	destroyed *atomic.Bool
}

func newShaderModule(raw hal.ShaderModule, device *Device, desc hal.ShaderModuleDescriptor) *ShaderModule {
	key := desc
	key.Label = ""
	return &ShaderModule{
		raw:       raw,
		device:    device,
		desc:      desc,
		hash:      contentHash64(key),
		destroyed: new(atomic.Bool),
	}
}

// ContentHash implements cache.EntryPtr.
func (m *ShaderModule) ContentHash() uint64 { return m.hash }

// ContentEqual implements cache.EntryPtr.
func (m *ShaderModule) ContentEqual(other *ShaderModule) bool {
	if other == nil {
		return false
	}
	return m.desc.Source.WGSL == other.desc.Source.WGSL &&
		reflect.DeepEqual(m.desc.Source.SPIRV, other.desc.Source.SPIRV)
}

// Raw returns the underlying HAL shader module.
func (m *ShaderModule) Raw() hal.ShaderModule { return m.raw }

// Destroy releases the module's HAL resource. Safe to call more than once.
func (m *ShaderModule) Destroy() {
	if !m.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := m.device.halDeviceLocked(); hd != nil {
		hd.DestroyShaderModule(m.raw)
	}
}

// ---------------------------------------------------------------------------
// BindGroupLayout (C2 cache, pipeline-compatibility token)
// ---------------------------------------------------------------------------

// BindGroupLayout is a content-cached bind-group layout (spec C2). A layout
// minted as a pipeline's default ("auto") layout carries a nonzero
// pipeline-compatibility token (spec §3); it is content-hashed and compared
// together with its entries, so a default layout is never interchangeable
// with a user-authored layout of identical entries (token 0).
type BindGroupLayout struct {
	raw         hal.BindGroupLayout
	device      *Device
	desc        hal.BindGroupLayoutDescriptor
	compatToken uint64
	hash        uint64
	destroyed   *atomic.Bool
}

func newBindGroupLayout(raw hal.BindGroupLayout, device *Device, desc hal.BindGroupLayoutDescriptor, compatToken uint64) *BindGroupLayout {
	key := desc
	key.Label = ""
	return &BindGroupLayout{
		raw:         raw,
		device:      device,
		desc:        desc,
		compatToken: compatToken,
		hash:        contentHash64(key, compatToken),
		destroyed:   new(atomic.Bool),
	}
}

// ContentHash implements cache.EntryPtr.
func (l *BindGroupLayout) ContentHash() uint64 { return l.hash }

// ContentEqual implements cache.EntryPtr. Per spec §3: two layouts with
// token 0 are interchangeable iff content-equal; a nonzero token makes a
// layout interchangeable only with another carrying the identical token
// (i.e. never with anything but itself, since tokens are minted uniquely
// per auto-layout pipeline).
func (l *BindGroupLayout) ContentEqual(other *BindGroupLayout) bool {
	if other == nil || l.compatToken != other.compatToken {
		return false
	}
	return reflect.DeepEqual(l.desc.Entries, other.desc.Entries)
}

// CompatibilityToken returns the layout's pipeline-compatibility token (0
// for explicit, user-authored layouts).
func (l *BindGroupLayout) CompatibilityToken() uint64 { return l.compatToken }

// Raw returns the underlying HAL bind-group layout.
func (l *BindGroupLayout) Raw() hal.BindGroupLayout { return l.raw }

// Entries returns the layout's binding entries, used by the pass
// resource-usage tracker (C4) to dispatch on binding kind.
func (l *BindGroupLayout) Entries() []types.BindGroupLayoutEntry { return l.desc.Entries }

// Destroy releases the layout's HAL resource. Safe to call more than once.
func (l *BindGroupLayout) Destroy() {
	if !l.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := l.device.halDeviceLocked(); hd != nil {
		hd.DestroyBindGroupLayout(l.raw)
	}
}

// ---------------------------------------------------------------------------
// PipelineLayout (C2 cache)
// ---------------------------------------------------------------------------

// PipelineLayoutDescriptor describes a pipeline layout in terms of already
// cached BindGroupLayout objects, rather than raw hal.BindGroupLayout
// interface values, so the pipeline layout's content hash can fold in each
// referenced layout's own hash instead of needing to encode an opaque
// backend handle.
type PipelineLayoutDescriptor struct {
	Label              string
	BindGroupLayouts   []*BindGroupLayout
	PushConstantRanges []hal.PushConstantRange
}

// PipelineLayout is a content-cached pipeline layout (spec C2).
type PipelineLayout struct {
	raw         hal.PipelineLayout
	device      *Device
	layouts     []*BindGroupLayout
	pushConsts  []hal.PushConstantRange
	hash        uint64
	destroyed   *atomic.Bool
}

func newPipelineLayout(raw hal.PipelineLayout, device *Device, desc PipelineLayoutDescriptor) *PipelineLayout {
	h := contentHash64(desc.PushConstantRanges)
	for _, l := range desc.BindGroupLayouts {
		h = combineHash(h, l.ContentHash())
	}
	return &PipelineLayout{
		raw:        raw,
		device:     device,
		layouts:    append([]*BindGroupLayout(nil), desc.BindGroupLayouts...),
		pushConsts: desc.PushConstantRanges,
		hash:       h,
		destroyed:  new(atomic.Bool),
	}
}

// ContentHash implements cache.EntryPtr.
func (p *PipelineLayout) ContentHash() uint64 { return p.hash }

// ContentEqual implements cache.EntryPtr: pointer-identity of each
// referenced bind-group layout (itself already content-deduped) plus
// structural equality of push-constant ranges.
func (p *PipelineLayout) ContentEqual(other *PipelineLayout) bool {
	if other == nil || len(p.layouts) != len(other.layouts) {
		return false
	}
	for i := range p.layouts {
		if p.layouts[i] != other.layouts[i] {
			return false
		}
	}
	return reflect.DeepEqual(p.pushConsts, other.pushConsts)
}

// Raw returns the underlying HAL pipeline layout.
func (p *PipelineLayout) Raw() hal.PipelineLayout { return p.raw }

// BindGroupLayouts returns the layout's bind-group layouts in slot order.
func (p *PipelineLayout) BindGroupLayouts() []*BindGroupLayout { return p.layouts }

// Destroy releases the layout's HAL resource. Safe to call more than once.
func (p *PipelineLayout) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := p.device.halDeviceLocked(); hd != nil {
		hd.DestroyPipelineLayout(p.raw)
	}
}

// ---------------------------------------------------------------------------
// BindGroup (not content-cached — spec C2 lists only layouts, not groups)
// ---------------------------------------------------------------------------

// BindGroupDescriptor describes a bind group in terms of an already cached
// BindGroupLayout.
type BindGroupDescriptor struct {
	Label   string
	Layout  *BindGroupLayout
	Entries []types.BindGroupEntry
}

// BindGroup bundles resources bound together against a BindGroupLayout.
// Bind groups are not content-addressed: the spec's C2 cache list covers
// layouts, pipelines, samplers, shader modules and attachment states, but
// not bind groups themselves (their resource bindings change too often to
// make content-hash reuse worthwhile).
type BindGroup struct {
	raw       hal.BindGroup
	device    *Device
	layout    *BindGroupLayout
	destroyed *atomic.Bool
}

func newBindGroup(raw hal.BindGroup, device *Device, layout *BindGroupLayout) *BindGroup {
	return &BindGroup{raw: raw, device: device, layout: layout, destroyed: new(atomic.Bool)}
}

// Raw returns the underlying HAL bind group.
func (g *BindGroup) Raw() hal.BindGroup { return g.raw }

// Layout returns the layout the bind group was created against, used by
// the pass resource-usage tracker (C4) to look up each entry's binding
// kind.
func (g *BindGroup) Layout() *BindGroupLayout { return g.layout }

// Destroy releases the bind group's HAL resource. Safe to call more than
// once.
func (g *BindGroup) Destroy() {
	if !g.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := g.device.halDeviceLocked(); hd != nil {
		hd.DestroyBindGroup(g.raw)
	}
}

// ---------------------------------------------------------------------------
// RenderPipeline (C2 cache)
// ---------------------------------------------------------------------------

// RenderVertexState mirrors hal.VertexState but references a cached
// ShaderModule pointer instead of the raw hal.ShaderModule interface.
type RenderVertexState struct {
	Module     *ShaderModule
	EntryPoint string
	Buffers    []types.VertexBufferLayout
}

// RenderFragmentState mirrors hal.FragmentState but references a cached
// ShaderModule pointer instead of the raw hal.ShaderModule interface.
type RenderFragmentState struct {
	Module     *ShaderModule
	EntryPoint string
	Targets    []types.ColorTargetState
}

// RenderPipelineDescriptor describes a render pipeline in terms of already
// cached PipelineLayout/ShaderModule objects.
type RenderPipelineDescriptor struct {
	Label        string
	Layout       *PipelineLayout // nil requests an automatic layout
	Vertex       RenderVertexState
	Primitive    types.PrimitiveState
	DepthStencil *hal.DepthStencilState
	Multisample  types.MultisampleState
	Fragment     *RenderFragmentState
}

// RenderPipeline is a content-cached render pipeline (spec C2).
type RenderPipeline struct {
	raw       hal.RenderPipeline
	device    *Device
	layout    *PipelineLayout
	hash      uint64
	destroyed *atomic.Bool
}

func renderPipelineHash(desc RenderPipelineDescriptor) uint64 {
	h := contentHash64(desc.Primitive, desc.DepthStencil, desc.Multisample, desc.Vertex.EntryPoint, desc.Vertex.Buffers)
	if desc.Layout != nil {
		h = combineHash(h, desc.Layout.ContentHash())
	}
	if desc.Vertex.Module != nil {
		h = combineHash(h, desc.Vertex.Module.ContentHash())
	}
	if desc.Fragment != nil {
		h = combineHash(h, contentHash64(desc.Fragment.EntryPoint, desc.Fragment.Targets))
		if desc.Fragment.Module != nil {
			h = combineHash(h, desc.Fragment.Module.ContentHash())
		}
	}
	return h
}

func newRenderPipeline(raw hal.RenderPipeline, device *Device, desc RenderPipelineDescriptor) *RenderPipeline {
	return &RenderPipeline{
		raw:       raw,
		device:    device,
		layout:    desc.Layout,
		hash:      renderPipelineHash(desc),
		destroyed: new(atomic.Bool),
	}
}

// ContentHash implements cache.EntryPtr.
func (p *RenderPipeline) ContentHash() uint64 { return p.hash }

// ContentEqual implements cache.EntryPtr. Since the hash already folds in
// every field that distinguishes two pipelines (including each component's
// own content hash), equality here is the hash comparison the cache
// already performed before calling this; a second, cheap structural check
// on layout pointer identity guards against hash collisions.
func (p *RenderPipeline) ContentEqual(other *RenderPipeline) bool {
	return other != nil && p.hash == other.hash && p.layout == other.layout
}

// Raw returns the underlying HAL render pipeline.
func (p *RenderPipeline) Raw() hal.RenderPipeline { return p.raw }

// Layout returns the pipeline's layout (explicit or auto-generated).
func (p *RenderPipeline) Layout() *PipelineLayout { return p.layout }

// Destroy releases the pipeline's HAL resource. Safe to call more than
// once.
func (p *RenderPipeline) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := p.device.halDeviceLocked(); hd != nil {
		hd.DestroyRenderPipeline(p.raw)
	}
}

// ---------------------------------------------------------------------------
// ComputePipeline (C2 cache)
// ---------------------------------------------------------------------------

// HALComputePipelineDescriptor describes a compute pipeline in terms of
// already cached PipelineLayout/ShaderModule objects. Named distinctly
// from the legacy ID-based ComputePipelineDescriptor in pipeline.go, which
// this HAL-integrated path does not use.
type HALComputePipelineDescriptor struct {
	Label      string
	Layout     *PipelineLayout // nil requests an automatic layout
	Module     *ShaderModule
	EntryPoint string
}

// ComputePipeline is a content-cached compute pipeline (spec C2).
type ComputePipeline struct {
	raw       hal.ComputePipeline
	device    *Device
	layout    *PipelineLayout
	hash      uint64
	destroyed *atomic.Bool
}

func newComputePipeline(raw hal.ComputePipeline, device *Device, desc HALComputePipelineDescriptor) *ComputePipeline {
	h := contentHash64(desc.EntryPoint)
	if desc.Layout != nil {
		h = combineHash(h, desc.Layout.ContentHash())
	}
	if desc.Module != nil {
		h = combineHash(h, desc.Module.ContentHash())
	}
	return &ComputePipeline{
		raw:       raw,
		device:    device,
		layout:    desc.Layout,
		hash:      h,
		destroyed: new(atomic.Bool),
	}
}

// ContentHash implements cache.EntryPtr.
func (p *ComputePipeline) ContentHash() uint64 { return p.hash }

// ContentEqual implements cache.EntryPtr (see RenderPipeline.ContentEqual).
func (p *ComputePipeline) ContentEqual(other *ComputePipeline) bool {
	return other != nil && p.hash == other.hash && p.layout == other.layout
}

// Raw returns the underlying HAL compute pipeline.
func (p *ComputePipeline) Raw() hal.ComputePipeline { return p.raw }

// Layout returns the pipeline's layout (explicit or auto-generated).
func (p *ComputePipeline) Layout() *PipelineLayout { return p.layout }

// Destroy releases the pipeline's HAL resource. Safe to call more than
// once.
func (p *ComputePipeline) Destroy() {
	if !p.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := p.device.halDeviceLocked(); hd != nil {
		hd.DestroyComputePipeline(p.raw)
	}
}

// ---------------------------------------------------------------------------
// Texture / TextureView (not content-cached)
// ---------------------------------------------------------------------------

// Texture wraps a HAL texture. Textures are not content-addressed: two
// textures with identical descriptors are still distinct GPU allocations.
type Texture struct {
	raw       hal.Texture
	device    *Device
	format    types.TextureFormat
	destroyed *atomic.Bool
}

func newTexture(raw hal.Texture, device *Device, format types.TextureFormat) *Texture {
	return &Texture{raw: raw, device: device, format: format, destroyed: new(atomic.Bool)}
}

// Raw returns the underlying HAL texture.
func (t *Texture) Raw() hal.Texture { return t.raw }

// Format returns the texture's format.
func (t *Texture) Format() types.TextureFormat { return t.format }

// Destroy releases the texture's HAL resource. Safe to call more than
// once.
func (t *Texture) Destroy() {
	if !t.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := t.device.halDeviceLocked(); hd != nil {
		hd.DestroyTexture(t.raw)
	}
}

// TextureView wraps a HAL texture view.
type TextureView struct {
	raw       hal.TextureView
	device    *Device
	texture   *Texture
	destroyed *atomic.Bool
}

func newTextureView(raw hal.TextureView, device *Device, texture *Texture) *TextureView {
	return &TextureView{raw: raw, device: device, texture: texture, destroyed: new(atomic.Bool)}
}

// Raw returns the underlying HAL texture view.
func (v *TextureView) Raw() hal.TextureView { return v.raw }

// Texture returns the texture the view was created from.
func (v *TextureView) Texture() *Texture { return v.texture }

// Destroy releases the view's HAL resource. Safe to call more than once.
func (v *TextureView) Destroy() {
	if !v.destroyed.CompareAndSwap(false, true) {
		return
	}
	if hd := v.device.halDeviceLocked(); hd != nil {
		hd.DestroyTextureView(v.raw)
	}
}
