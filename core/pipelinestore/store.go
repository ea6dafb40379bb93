// Package pipelinestore implements the device's internal pipeline store:
// a lazy, keyed cache of the helper render/compute pipelines the device
// compiles on demand to emulate operations the backend cannot do
// directly — clearing via a fullscreen draw, blitting between
// incompatible formats, resolving multisample targets, quantizing
// timestamps, and so on.
//
// Unlike the content-addressed caches in core/cache, the store keeps no
// single-flight bookkeeping: every Get* call holds the store's mutex
// while it looks up and, on a miss, builds the pipeline, so concurrent
// calls for the same key build it once and later calls see the cached
// result. Every stored pipeline is owned by the Store for the device's
// lifetime.
package pipelinestore

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/wgpucore/hal"
)

// Store holds every helper pipeline path's lazily populated map. A Store
// is created once per device and torn down with the device.
type Store struct {
	device hal.Device

	mu               sync.Mutex
	clearWithDraw    map[ClearKey]hal.RenderPipeline
	stencilClear     hal.RenderPipeline
	stencilBlitBits  map[StencilBlitKey][8]hal.RenderPipeline
	depth16Blit      map[types16Key]hal.RenderPipeline
	depthBlit        map[DepthBlitKey]hal.RenderPipeline
	resolveWithDraw  map[ResolveKey]hal.RenderPipeline
	expandResolve    map[ExpandResolveKey]hal.RenderPipeline
	bufferToTexture  map[BufferBlitKey]hal.RenderPipeline
	copyForBrowser2D map[CopyForBrowserKey]hal.RenderPipeline
	copyForBrowserXT map[CopyForBrowserKey]hal.RenderPipeline
	timestampQuant   hal.ComputePipeline
	singleDrawValidate hal.ComputePipeline
	multiDrawValidate  hal.ComputePipeline

	singleDrawValidateLayout hal.BindGroupLayout
	multiDrawValidateLayout  hal.BindGroupLayout
}

// Device returns the backend device this store compiles helper pipelines
// against, so collaborators (the indirect-draw validator) can create the
// scratch buffers and bind groups those pipelines consume.
func (s *Store) Device() hal.Device {
	return s.device
}

// NewStore creates an empty pipeline store bound to a backend device.
func NewStore(device hal.Device) *Store {
	return &Store{
		device:           device,
		clearWithDraw:    make(map[ClearKey]hal.RenderPipeline),
		stencilBlitBits:  make(map[StencilBlitKey][8]hal.RenderPipeline),
		depth16Blit:      make(map[types16Key]hal.RenderPipeline),
		depthBlit:        make(map[DepthBlitKey]hal.RenderPipeline),
		resolveWithDraw:  make(map[ResolveKey]hal.RenderPipeline),
		expandResolve:    make(map[ExpandResolveKey]hal.RenderPipeline),
		bufferToTexture:  make(map[BufferBlitKey]hal.RenderPipeline),
		copyForBrowser2D: make(map[CopyForBrowserKey]hal.RenderPipeline),
		copyForBrowserXT: make(map[CopyForBrowserKey]hal.RenderPipeline),
	}
}

// getOrCreateLocked is the shared get-or-create shape every helper path
// below uses: caller already holds s.mu, so "locked" here just documents
// that the map mutation itself is not further synchronized — the device
// mutex (or other external serialization) is assumed held by whoever
// calls into the Store in the first place, same as Dawn's
// InternalPipelineStore.
func getOrCreateLocked[K comparable, V any](m map[K]V, key K, factory func() (V, error)) (V, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	v, err := factory()
	if err != nil {
		var zero V
		return zero, err
	}
	m[key] = v
	return v, nil
}

// Close releases every helper pipeline and the two validation bind group
// layouts. Render pipelines are destroyed first, in no defined order,
// followed by the compute pipelines and then the layouts.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created []hal.RenderPipeline
	for _, p := range s.clearWithDraw {
		created = append(created, p)
	}
	if s.stencilClear != nil {
		created = append(created, s.stencilClear)
	}
	for _, bits := range s.stencilBlitBits {
		for _, p := range bits {
			if p != nil {
				created = append(created, p)
			}
		}
	}
	for _, p := range s.depth16Blit {
		created = append(created, p)
	}
	for _, p := range s.depthBlit {
		created = append(created, p)
	}
	for _, p := range s.resolveWithDraw {
		created = append(created, p)
	}
	for _, p := range s.expandResolve {
		created = append(created, p)
	}
	for _, p := range s.bufferToTexture {
		created = append(created, p)
	}
	for _, p := range s.copyForBrowser2D {
		created = append(created, p)
	}
	for _, p := range s.copyForBrowserXT {
		created = append(created, p)
	}

	for i := len(created) - 1; i >= 0; i-- {
		s.device.DestroyRenderPipeline(created[i])
	}
	if s.timestampQuant != nil {
		s.device.DestroyComputePipeline(s.timestampQuant)
	}
	if s.singleDrawValidate != nil {
		s.device.DestroyComputePipeline(s.singleDrawValidate)
	}
	if s.multiDrawValidate != nil {
		s.device.DestroyComputePipeline(s.multiDrawValidate)
	}
	if s.singleDrawValidateLayout != nil {
		s.device.DestroyBindGroupLayout(s.singleDrawValidateLayout)
	}
	if s.multiDrawValidateLayout != nil {
		s.device.DestroyBindGroupLayout(s.multiDrawValidateLayout)
	}

	s.clearWithDraw = make(map[ClearKey]hal.RenderPipeline)
	s.stencilBlitBits = make(map[StencilBlitKey][8]hal.RenderPipeline)
	s.stencilClear = nil
	s.depth16Blit = make(map[types16Key]hal.RenderPipeline)
	s.depthBlit = make(map[DepthBlitKey]hal.RenderPipeline)
	s.resolveWithDraw = make(map[ResolveKey]hal.RenderPipeline)
	s.expandResolve = make(map[ExpandResolveKey]hal.RenderPipeline)
	s.bufferToTexture = make(map[BufferBlitKey]hal.RenderPipeline)
	s.copyForBrowser2D = make(map[CopyForBrowserKey]hal.RenderPipeline)
	s.copyForBrowserXT = make(map[CopyForBrowserKey]hal.RenderPipeline)
	s.timestampQuant = nil
	s.singleDrawValidate = nil
	s.multiDrawValidate = nil
	s.singleDrawValidateLayout = nil
	s.multiDrawValidateLayout = nil
}

// Warm prebuilds every helper pipeline that takes no per-use key, so the
// first draw or dispatch that needs one (stencil clear, indirect-draw
// validation, the depth16 reinterpret blit, timestamp quantization) does
// not pay shader-compile latency on the caller's critical path. Each
// pipeline's own Get* method already does the get-or-create locking, so
// the concurrent calls here race harmlessly with each other and with any
// later caller: whichever goroutine gets there first builds it, the rest
// observe the cached result. Returns the first error encountered, if any;
// partially warmed pipelines remain cached for later lazy use.
func (s *Store) Warm(ctx context.Context) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.GetStencilClear()
		return err
	})
	g.Go(func() error {
		_, err := s.GetRG8ToDepth16Blit()
		return err
	})
	g.Go(func() error {
		_, err := s.GetSingleDrawValidate()
		return err
	})
	g.Go(func() error {
		_, err := s.GetMultiDrawValidate()
		return err
	})
	g.Go(func() error {
		_, err := s.GetTimestampQuantization()
		return err
	})
	return g.Wait()
}

func compileShaderModule(device hal.Device, label, wgsl string) (hal.ShaderModule, error) {
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{WGSL: wgsl},
	})
}
