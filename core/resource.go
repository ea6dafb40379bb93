package core

import (
	"sync/atomic"
	"unsafe"

	"github.com/gogpu/wgpucore/core/cache"
	"github.com/gogpu/wgpucore/core/indirect"
	"github.com/gogpu/wgpucore/core/pipelinestore"
	"github.com/gogpu/wgpucore/core/track"
	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// Resource placeholder types - will be properly defined later.
// These types represent the actual WebGPU resources managed by the hub.

// Adapter represents a physical GPU adapter.
type Adapter struct {
	// Info contains information about the adapter.
	Info types.AdapterInfo
	// Features contains the features supported by the adapter.
	Features types.Features
	// Limits contains the resource limits of the adapter.
	Limits types.Limits
	// Backend identifies which graphics backend this adapter uses.
	Backend types.Backend

	// halAdapter is the underlying HAL adapter, or nil for a mock adapter
	// created without a real backend.
	halAdapter hal.Adapter
	// halCapabilities holds the detailed capability info HAL reported when
	// this adapter was enumerated, or nil for a mock adapter.
	halCapabilities *hal.Capabilities
}

// HasHAL reports whether this adapter wraps a concrete HAL adapter. Mock
// adapters created for testing without a real backend do not.
func (a *Adapter) HasHAL() bool {
	return a != nil && a.halAdapter != nil
}

// HALAdapter returns the underlying HAL adapter, or nil if this adapter has
// no HAL backing (see HasHAL).
func (a *Adapter) HALAdapter() hal.Adapter {
	if a == nil {
		return nil
	}
	return a.halAdapter
}

// HALCapabilities returns the detailed capability info HAL reported for this
// adapter, or nil for a mock adapter.
func (a *Adapter) HALCapabilities() *hal.Capabilities {
	if a == nil {
		return nil
	}
	return a.halCapabilities
}

// Device represents a logical GPU device.
//
// A Device wraps a HAL device behind a Snatchable so that destruction can
// race safely against in-flight accesses from other goroutines (the snatch
// pattern, see snatch.go). Devices created through the legacy ID-based hub
// API (core/device.go) leave the HAL-specific fields at their zero values;
// HasHAL reports false for those and most HAL-only operations are no-ops.
type Device struct {
	// Adapter is the adapter this device was created from.
	Adapter AdapterID
	// Label is a debug label for the device.
	Label string
	// Features contains the features enabled on this device.
	Features types.Features
	// Limits contains the resource limits of this device.
	Limits types.Limits
	// Queue is the device's default queue (legacy ID-based API).
	Queue QueueID

	adapterInfo *Adapter
	raw         *Snatchable[hal.Device]
	snatchLock  *SnatchLock

	errorScopeManager *ErrorScopeManager

	state *deviceState

	trackerIndexAllocators *track.TrackerIndexAllocators

	// pipelines holds the device's lazily compiled helper pipelines (clear,
	// blit, resolve, indirect-draw validation, ...). Nil for devices
	// without a HAL backing.
	pipelines *pipelinestore.Store

	// indirectValidator rewrites recorded indirect/indexed-indirect draws
	// into a trusted scratch buffer before a render pass replays them. Nil
	// for devices without a HAL backing.
	indirectValidator *indirect.Validator

	// halQueue is the backend queue associated with this device at open
	// time, used to upload indirect-draw validation metadata ahead of the
	// compute dispatch that consumes it. Nil for devices without a HAL
	// backing.
	halQueue hal.Queue

	// lifecycleState is the C7 state machine (DeviceLifecycleState), stored
	// as atomic.Int32 since it is read from any goroutine issuing API calls
	// and written from whichever goroutine observes a fatal error or calls
	// Destroy.
	lifecycleState atomic.Int32

	// pipelineCompatCounter mints pipeline-compatibility tokens; 0 is
	// reserved for explicit (non-auto) pipeline layouts.
	pipelineCompatCounter atomic.Uint64

	lostEvent             *LostEvent
	asyncTasks            *AsyncTaskManager
	callbacks             *CallbackQueue
	loggingSink           *LoggingSink
	compilationLogLimiter *CompilationLogLimiter
	shaderCompiler        hal.ShaderCompiler

	uncapturedErrorCallback atomic.Pointer[UncapturedErrorCallback]

	// The device's C2 content-addressed object caches. Nil for devices
	// without a HAL backing.
	samplerCache         *cache.Cache[Sampler, *Sampler]
	shaderModuleCache    *cache.Cache[ShaderModule, *ShaderModule]
	bindGroupLayoutCache *cache.Cache[BindGroupLayout, *BindGroupLayout]
	pipelineLayoutCache  *cache.Cache[PipelineLayout, *PipelineLayout]
	renderPipelineCache  *cache.Cache[RenderPipeline, *RenderPipeline]
	computePipelineCache *cache.Cache[ComputePipeline, *ComputePipeline]
}

// deviceState holds a HAL device's mutable bookkeeping behind a pointer, so
// that a Device value can still be copied (as the legacy ID-based hub's
// generic Registry[T,M] storage does) without duplicating an atomic.
type deviceState struct {
	associatedQueue atomic.Pointer[Queue]
}

// NewDevice creates a device wrapping an already-opened HAL device.
//
// The returned device is Alive and HasHAL returns true. halDevice must be
// non-nil; Destroy releases it exactly once via the device's snatch lock.
// halQueue may be nil (e.g. in tests that never record indirect draws);
// IndirectValidator's Process call requires a non-nil queue to upload
// batch metadata.
func NewDevice(halDevice hal.Device, halQueue hal.Queue, adapter *Adapter, features types.Features, limits types.Limits, label string) *Device {
	pipelines := pipelinestore.NewStore(halDevice)
	d := &Device{
		Label:                  label,
		Features:               features,
		Limits:                 limits,
		adapterInfo:            adapter,
		raw:                    NewSnatchable(halDevice),
		snatchLock:             NewSnatchLock(),
		state:                  &deviceState{},
		trackerIndexAllocators: track.NewTrackerIndexAllocators(),
		pipelines:              pipelines,
		indirectValidator:      indirect.NewValidator(halDevice, pipelines, limits),
		halQueue:               halQueue,
		lostEvent:              newLostEvent(),
		asyncTasks:             NewAsyncTaskManager(),
		callbacks:              NewCallbackQueue(),
		loggingSink:            NewLoggingSink(),
		compilationLogLimiter:  NewCompilationLogLimiter(),
		shaderCompiler:         NewNagaShaderCompiler(),
		samplerCache:           cache.New[Sampler, *Sampler](),
		shaderModuleCache:      cache.New[ShaderModule, *ShaderModule](),
		bindGroupLayoutCache:   cache.New[BindGroupLayout, *BindGroupLayout](),
		pipelineLayoutCache:    cache.New[PipelineLayout, *PipelineLayout](),
		renderPipelineCache:    cache.New[RenderPipeline, *RenderPipeline](),
		computePipelineCache:   cache.New[ComputePipeline, *ComputePipeline](),
	}
	d.lifecycleState.Store(int32(DeviceAlive))
	trackResource(uintptr(unsafe.Pointer(d)), "Device") //nolint:gosec // debug tracking uses pointer as unique ID
	return d
}

// HALQueue returns the backend queue associated with this device, or nil
// for devices without a HAL backing.
func (d *Device) HALQueue() hal.Queue {
	if !d.HasHAL() {
		return nil
	}
	return d.halQueue
}

// Pipelines returns the device's internal pipeline store, used by command
// recording to obtain helper render/compute pipelines on demand. Returns
// nil for devices without a HAL backing.
func (d *Device) Pipelines() *pipelinestore.Store {
	if !d.HasHAL() {
		return nil
	}
	return d.pipelines
}

// TimestampQuantizationParams derives the fixed-point multiply-shift-mask
// parameters the timestamp-quantization compute pipeline needs for this
// device's tick period, at the default quantization resolution. Returns
// the zero value for devices without a HAL backing or queue.
func (d *Device) TimestampQuantizationParams() pipelinestore.TimestampQuantizationParams {
	q := d.HALQueue()
	if q == nil {
		return pipelinestore.TimestampQuantizationParams{}
	}
	return pipelinestore.ComputeTimestampQuantizationParams(q.GetTimestampPeriod(), 0)
}

// IndirectValidator returns the device's indirect-draw validator, used by
// command recording to rewrite recorded indirect/indexed-indirect draws
// into validated scratch-buffer parameters before a render pass replays
// them. Returns nil for devices without a HAL backing.
func (d *Device) IndirectValidator() *indirect.Validator {
	if !d.HasHAL() {
		return nil
	}
	return d.indirectValidator
}

// HasHAL reports whether this device wraps a concrete HAL device. Devices
// created via the legacy ID-based hub API do not, and HAL-only accessors
// (SnatchLock, Raw, CreateBuffer, ...) are unavailable on them.
func (d *Device) HasHAL() bool {
	return d != nil && d.raw != nil
}

// IsValid reports whether the device is still alive (not yet destroyed).
// Validity is tied directly to the snatch state of the HAL device: once
// Destroy snatches it there is no path back to valid.
func (d *Device) IsValid() bool {
	if !d.HasHAL() {
		return false
	}
	return !d.raw.IsSnatched()
}

// checkValid returns ErrDeviceDestroyed if the device has been destroyed.
func (d *Device) checkValid() error {
	if !d.IsValid() {
		return ErrDeviceDestroyed
	}
	return nil
}

// SnatchLock returns the device's snatch lock, used to coordinate safe
// access to HAL resources across concurrent goroutines. Returns nil for
// devices without a HAL backing (HasHAL() == false).
func (d *Device) SnatchLock() *SnatchLock {
	if !d.HasHAL() {
		return nil
	}
	return d.snatchLock
}

// Raw returns the underlying HAL device, or nil if it has been destroyed.
// The caller must hold a SnatchGuard obtained from SnatchLock().Read().
func (d *Device) Raw(guard *SnatchGuard) hal.Device {
	if !d.HasHAL() {
		return nil
	}
	v := d.raw.Get(guard)
	if v == nil {
		return nil
	}
	return *v
}

// Destroy releases the underlying HAL device. Safe to call multiple times;
// only the first call has an effect (Snatchable.Snatch is idempotent).
//
// Per spec §4.6, Destroy cancels all outstanding tasks (the async task
// manager is drained and the callback queue's pending callbacks are all
// fired) and transitions the device to Destroyed.
func (d *Device) Destroy() {
	if !d.HasHAL() {
		return
	}

	guard := d.snatchLock.Write()
	v := d.raw.Snatch(guard)
	guard.Release()

	wasAlive := d.lifecycleState.Swap(int32(DeviceDestroyed)) == int32(DeviceAlive)

	if v != nil {
		if d.indirectValidator != nil {
			d.indirectValidator.Close()
		}
		if d.pipelines != nil {
			d.pipelines.Close()
		}
		(*v).Destroy()
		untrackResource(uintptr(unsafe.Pointer(d))) //nolint:gosec // matches trackResource's handle
	}

	if d.asyncTasks != nil {
		d.asyncTasks.WaitAllPendingTasks()
	}
	if d.callbacks != nil {
		d.callbacks.HandleShutDown()
	}
	if wasAlive && d.lostEvent != nil {
		d.lostEvent.Fire(nil, DeviceLostReasonDestroyed, "device destroyed")
	}
}

// AssociatedQueue returns the queue created alongside this device, or nil
// if none has been set via SetAssociatedQueue.
func (d *Device) AssociatedQueue() *Queue {
	if d == nil || d.state == nil {
		return nil
	}
	return d.state.associatedQueue.Load()
}

// SetAssociatedQueue records the queue created alongside this device.
func (d *Device) SetAssociatedQueue(q *Queue) {
	if d == nil || d.state == nil {
		return
	}
	d.state.associatedQueue.Store(q)
}

// Queue represents a command queue for a device.
type Queue struct {
	// Device is the device this queue belongs to.
	Device DeviceID
	// Label is a debug label for the queue.
	Label string
}

// BufferMapState describes the map state of a Buffer, mirroring the W3C
// GPUBufferMapState enum.
type BufferMapState uint8

const (
	// BufferMapStateIdle means the buffer is not mapped and no mapping
	// operation is pending.
	BufferMapStateIdle BufferMapState = iota
	// BufferMapStatePending means a MapAsync call is in flight.
	BufferMapStatePending
	// BufferMapStateMapped means the buffer is currently mapped.
	BufferMapStateMapped
)

// Buffer represents a GPU buffer.
//
// Like Device, Buffer wraps its HAL resource in a Snatchable so destruction
// can race safely with concurrent access via the owning device's snatch
// lock. A zero-value Buffer (no HAL) is considered already destroyed.
type Buffer struct {
	raw    *Snatchable[hal.Buffer]
	device *Device
	usage  types.BufferUsage
	size   uint64
	label  string

	state *bufferState

	initTracker *BufferInitTracker
	tracking    *track.TrackingData
}

// bufferState holds a buffer's mutable bookkeeping behind a pointer, for
// the same copy-safety reason as deviceState.
type bufferState struct {
	mapState atomic.Uint32
}

// NewBuffer wraps a HAL buffer as a core Buffer owned by device.
func NewBuffer(halBuffer hal.Buffer, device *Device, usage types.BufferUsage, size uint64, label string) *Buffer {
	b := &Buffer{
		raw:         NewSnatchable(halBuffer),
		device:      device,
		usage:       usage,
		size:        size,
		label:       label,
		state:       &bufferState{},
		initTracker: NewBufferInitTracker(size),
		tracking:    track.NewTrackingData(nil),
	}
	trackResource(uintptr(unsafe.Pointer(b)), "Buffer") //nolint:gosec // debug tracking uses pointer as unique ID
	return b
}

// HasHAL reports whether this buffer wraps a concrete HAL buffer.
func (b *Buffer) HasHAL() bool {
	return b != nil && b.raw != nil
}

// Device returns the device that owns this buffer, or nil for a HAL-less
// buffer.
func (b *Buffer) Device() *Device {
	if b == nil {
		return nil
	}
	return b.device
}

// Usage returns the usage flags the buffer was created with.
func (b *Buffer) Usage() types.BufferUsage {
	if b == nil {
		return 0
	}
	return b.usage
}

// Size returns the buffer's requested size in bytes.
func (b *Buffer) Size() uint64 {
	if b == nil {
		return 0
	}
	return b.size
}

// Label returns the buffer's debug label.
func (b *Buffer) Label() string {
	if b == nil {
		return ""
	}
	return b.label
}

// Raw returns the underlying HAL buffer, or nil once destroyed. The caller
// must hold a SnatchGuard obtained from the owning device's SnatchLock.
func (b *Buffer) Raw(guard *SnatchGuard) hal.Buffer {
	if !b.HasHAL() {
		return nil
	}
	v := b.raw.Get(guard)
	if v == nil {
		return nil
	}
	return *v
}

// IsDestroyed reports whether the buffer's HAL resource has been released.
// A HAL-less buffer is always considered destroyed.
func (b *Buffer) IsDestroyed() bool {
	if !b.HasHAL() {
		return true
	}
	return b.raw.IsSnatched()
}

// Destroy releases the underlying HAL buffer. Safe to call multiple times.
func (b *Buffer) Destroy() {
	if !b.HasHAL() {
		return
	}
	if b.device == nil || !b.device.HasHAL() {
		return
	}

	guard := b.device.snatchLock.Write()
	v := b.raw.Snatch(guard)
	guard.Release()

	if v != nil {
		(*v).Destroy()
	}
	if b.tracking != nil {
		b.tracking.Release()
	}
	untrackResource(uintptr(unsafe.Pointer(b))) //nolint:gosec // matches trackResource's handle
}

// MapState returns the buffer's current map state.
func (b *Buffer) MapState() BufferMapState {
	if b == nil || b.state == nil {
		return BufferMapStateIdle
	}
	return BufferMapState(b.state.mapState.Load())
}

// SetMapState updates the buffer's map state.
func (b *Buffer) SetMapState(state BufferMapState) {
	if b == nil || b.state == nil {
		return
	}
	b.state.mapState.Store(uint32(state))
}

// IsInitialized reports whether every byte in [offset, offset+size) has
// been marked initialized via MarkInitialized.
func (b *Buffer) IsInitialized(offset, size uint64) bool {
	if b == nil {
		return true
	}
	return b.initTracker.IsInitialized(offset, size)
}

// MarkInitialized marks every byte in [offset, offset+size) as initialized.
func (b *Buffer) MarkInitialized(offset, size uint64) {
	if b == nil {
		return
	}
	b.initTracker.MarkInitialized(offset, size)
}

// TrackingData returns the buffer's resource-tracker bookkeeping, used by
// the pass resource-usage tracker (core/track) to index into per-submission
// usage tables.
func (b *Buffer) TrackingData() *track.TrackingData {
	if b == nil {
		return nil
	}
	return b.tracking
}

// Texture, TextureView, Sampler, BindGroupLayout, PipelineLayout, BindGroup,
// ShaderModule, RenderPipeline and ComputePipeline are defined in objects.go
// as real HAL-backed, content-cached (where applicable) types used by the
// HAL-integrated Device below. CommandEncoder and CommandBuffer here remain
// placeholders used only by the legacy ID-based hub in hub.go; the
// HAL-integrated equivalents are CoreCommandEncoder and CoreCommandBuffer in
// command.go.

// CommandEncoder represents a command encoder.
type CommandEncoder struct{}

// CommandBuffer represents a recorded command buffer.
type CommandBuffer struct{}

// QuerySet represents a set of queries.
type QuerySet struct{}

// Surface represents a rendering surface.
type Surface struct{}
