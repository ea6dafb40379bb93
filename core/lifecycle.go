package core

import (
	"errors"
	"fmt"
	"sync"
)

// DeviceLifecycleState is the device's top-level state, per spec §4.6:
// BeingCreated -> Alive -> BeingDisconnected -> {Disconnected, Destroyed}.
type DeviceLifecycleState int32

const (
	// DeviceBeingCreated is the state from construction until Initialize
	// either succeeds (-> Alive) or fails (-> Disconnected).
	DeviceBeingCreated DeviceLifecycleState = iota
	// DeviceAlive accepts new GPU work and queues callbacks normally.
	DeviceAlive
	// DeviceBeingDisconnected is held only during synchronous teardown
	// inside a fatal-error handler.
	DeviceBeingDisconnected
	// DeviceDisconnected accepts no new work; callbacks still flush.
	DeviceDisconnected
	// DeviceDestroyed is the terminal state after an explicit Destroy():
	// object caches are released and the queue reference is gone.
	DeviceDestroyed
)

// String implements fmt.Stringer.
func (s DeviceLifecycleState) String() string {
	switch s {
	case DeviceBeingCreated:
		return "BeingCreated"
	case DeviceAlive:
		return "Alive"
	case DeviceBeingDisconnected:
		return "BeingDisconnected"
	case DeviceDisconnected:
		return "Disconnected"
	case DeviceDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("DeviceLifecycleState(%d)", int32(s))
	}
}

// DeviceLostReason classifies why a device transitioned out of Alive.
type DeviceLostReason int

const (
	// DeviceLostReasonUnknown covers a backend-surfaced Internal error that
	// forced the device out of Alive.
	DeviceLostReasonUnknown DeviceLostReason = iota
	// DeviceLostReasonDestroyed means the application called Destroy().
	DeviceLostReasonDestroyed
	// DeviceLostReasonInstanceDropped means the owning instance was
	// dropped while the device was still reachable.
	DeviceLostReasonInstanceDropped
	// DeviceLostReasonFailedCreation means Initialize never reached Alive.
	DeviceLostReasonFailedCreation
)

// String implements fmt.Stringer.
func (r DeviceLostReason) String() string {
	switch r {
	case DeviceLostReasonUnknown:
		return "Unknown"
	case DeviceLostReasonDestroyed:
		return "Destroyed"
	case DeviceLostReasonInstanceDropped:
		return "InstanceDropped"
	case DeviceLostReasonFailedCreation:
		return "FailedCreation"
	default:
		return fmt.Sprintf("DeviceLostReason(%d)", int(r))
	}
}

// LostCallback receives the device that was lost, its reason and a message.
// device is nil for InstanceDropped and FailedCreation, matching the spec's
// "device pointer nulled out" requirement for those two reasons.
type LostCallback func(device *Device, reason DeviceLostReason, message string)

// LostEvent is the device's one-shot, future-like device-lost signal. It
// fires at most once; later Fire calls are no-ops.
type LostEvent struct {
	once  sync.Once
	ready chan struct{}

	mu       sync.Mutex
	reason   DeviceLostReason
	message  string
	callback LostCallback
}

func newLostEvent() *LostEvent {
	return &LostEvent{ready: make(chan struct{})}
}

// OnLost registers the callback to fire when the event is signalled. If the
// event has already fired, cb is invoked immediately (on the calling
// goroutine) with a nil device and the recorded reason and message.
func (e *LostEvent) OnLost(cb LostCallback) {
	e.mu.Lock()
	select {
	case <-e.ready:
		reason, message := e.reason, e.message
		e.mu.Unlock()
		if cb != nil {
			cb(nil, reason, message)
		}
		return
	default:
	}
	e.callback = cb
	e.mu.Unlock()
}

// Fire marks the event ready and invokes the registered callback, if any.
// Only the first call has an effect.
func (e *LostEvent) Fire(device *Device, reason DeviceLostReason, message string) {
	e.once.Do(func() {
		e.mu.Lock()
		e.reason = reason
		e.message = message
		cb := e.callback
		e.mu.Unlock()
		close(e.ready)
		if cb != nil {
			cb(device, reason, message)
		}
	})
}

// Poll reports whether the event has fired yet, and if so its reason and
// message. Used by APITick-style polling instead of blocking.
func (e *LostEvent) Poll() (reason DeviceLostReason, message string, fired bool) {
	select {
	case <-e.ready:
	default:
		return 0, "", false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason, e.message, true
}

// Wait blocks until the event fires and returns its reason and message.
func (e *LostEvent) Wait() (DeviceLostReason, string) {
	<-e.ready
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reason, e.message
}

// AsyncTaskManager tracks outstanding worker-pool work (async pipeline
// creation) so Destroy can drain it deterministically. Once draining
// begins, newly submitted tasks are rejected rather than silently
// orphaned after WaitAllPendingTasks has returned.
type AsyncTaskManager struct {
	wg       sync.WaitGroup
	mu       sync.Mutex
	draining bool
}

// NewAsyncTaskManager creates an empty manager.
func NewAsyncTaskManager() *AsyncTaskManager {
	return &AsyncTaskManager{}
}

// Go runs fn on a new goroutine, tracked so WaitAllPendingTasks can observe
// its completion. Returns false without running fn if the manager is
// already draining.
func (m *AsyncTaskManager) Go(fn func()) bool {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return false
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		fn()
	}()
	return true
}

// WaitAllPendingTasks stops accepting new tasks and blocks until every
// previously accepted task has returned. Idempotent.
func (m *AsyncTaskManager) WaitAllPendingTasks() {
	m.mu.Lock()
	m.draining = true
	m.mu.Unlock()
	m.wg.Wait()
}

// queuedCallback is one callback waiting for ExecutionSerial to reach a
// target value before it may fire.
type queuedCallback struct {
	serial uint64
	fn     func()
}

// CallbackQueue holds callbacks gated on a monotonically increasing
// ExecutionSerial, flushed by APITick/InstanceProcessEvents-style polling
// rather than inline with the device lock held (spec §5).
type CallbackQueue struct {
	mu       sync.Mutex
	pending  []queuedCallback
	shutdown bool
}

// NewCallbackQueue creates an empty queue.
func NewCallbackQueue() *CallbackQueue {
	return &CallbackQueue{}
}

// Enqueue schedules fn to run once Flush is called with lastCompleted >=
// serial. If the queue has already been shut down, fn runs immediately.
func (q *CallbackQueue) Enqueue(serial uint64, fn func()) {
	q.mu.Lock()
	if q.shutdown {
		q.mu.Unlock()
		fn()
		return
	}
	q.pending = append(q.pending, queuedCallback{serial: serial, fn: fn})
	q.mu.Unlock()
}

// Flush fires every callback whose serial has completed, removing them from
// the queue. Callbacks run outside the queue's lock.
func (q *CallbackQueue) Flush(lastCompleted uint64) {
	q.mu.Lock()
	var ready []func()
	remaining := q.pending[:0]
	for _, c := range q.pending {
		if c.serial <= lastCompleted {
			ready = append(ready, c.fn)
		} else {
			remaining = append(remaining, c)
		}
	}
	q.pending = remaining
	q.mu.Unlock()

	for _, fn := range ready {
		fn()
	}
}

// HandleShutDown fires every remaining callback (its terminal/lost status
// must already be baked into the closure by whoever enqueued it) and
// rejects further enqueues by running them inline instead of queuing.
func (q *CallbackQueue) HandleShutDown() {
	q.mu.Lock()
	q.shutdown = true
	ready := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, c := range ready {
		c.fn()
	}
}

// LogLevel classifies a device logging-sink emission.
type LogLevel int

const (
	// LogInfo is an informational message (compiler Note).
	LogInfo LogLevel = iota
	// LogWarning is a non-fatal diagnostic.
	LogWarning
	// LogError is an error-level diagnostic that does not by itself lose
	// the device (e.g. a compilation error report).
	LogError
)

// String implements fmt.Stringer.
func (l LogLevel) String() string {
	switch l {
	case LogInfo:
		return "Info"
	case LogWarning:
		return "Warning"
	case LogError:
		return "Error"
	default:
		return fmt.Sprintf("LogLevel(%d)", int(l))
	}
}

// LoggingCallback receives one device logging-sink emission.
type LoggingCallback func(level LogLevel, message string)

// LoggingSink is the device's replaceable logging sink. Per spec §3 it is
// guarded by a shared/exclusive lock: emits take the shared (read) side so
// concurrent emits never block each other, replacement takes the exclusive
// (write) side.
type LoggingSink struct {
	mu sync.RWMutex
	cb LoggingCallback
}

// NewLoggingSink creates an empty sink (no callback installed).
func NewLoggingSink() *LoggingSink {
	return &LoggingSink{}
}

// Emit delivers one message to the installed callback, if any. Safe to call
// re-entrantly from within another Emit; must never be called while
// attempting to Replace from the same goroutine (that would deadlock on the
// RWMutex, same contract the spec describes for Dawn's logging sink).
func (s *LoggingSink) Emit(level LogLevel, message string) {
	s.mu.RLock()
	cb := s.cb
	s.mu.RUnlock()
	if cb != nil {
		cb(level, message)
	}
}

// Replace installs a new callback, taking the exclusive lock so it cannot
// race a concurrent Emit.
func (s *LoggingSink) Replace(cb LoggingCallback) {
	s.mu.Lock()
	s.cb = cb
	s.mu.Unlock()
}

// Clear removes the installed callback. Called before firing the lost
// callback so its memory may be freed safely (spec §4.6).
func (s *LoggingSink) Clear() {
	s.Replace(nil)
}

// compilationLogLimit is the number of compilation-log emissions spec §7
// lets through before the sink starts dropping them.
const compilationLogLimit = 20

// CompilationLogLimiter enforces spec §7's compilation-message rate limit:
// the first 19 compilation-log emissions for a device pass through
// unchanged, the 20th is replaced with a final "limit reached" notice, and
// every later one is dropped. Grounded on Dawn's CompilationMessages rate
// limiting, modeled here as its own type (rather than inline counting in
// EmitCompilationLog) so it can be unit tested against the exact boundary.
type CompilationLogLimiter struct {
	mu    sync.Mutex
	count int
}

// NewCompilationLogLimiter returns a limiter with a fresh count.
func NewCompilationLogLimiter() *CompilationLogLimiter {
	return &CompilationLogLimiter{}
}

// Allow reports whether message should be emitted. emit is the message to
// actually hand to the logging sink: message unchanged for the first 19
// calls, a fixed "limit reached" notice on the 20th, and unused (ok is
// false) for every call after that.
func (l *CompilationLogLimiter) Allow(message string) (emit string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	switch {
	case l.count < compilationLogLimit:
		return message, true
	case l.count == compilationLogLimit:
		return "compilation log rate limit reached; further messages are dropped", true
	default:
		return "", false
	}
}

// UncapturedErrorCallback receives an error that no error scope captured.
type UncapturedErrorCallback func(filter ErrorFilter, message string)

// ErrorKind is the five-way routing taxonomy of spec §7: Validation,
// OutOfMemory and Internal correspond 1:1 with ErrorFilter (the W3C error
// scope's three capturable kinds); DeviceLost and Unimplemented have no
// ErrorFilter equivalent because they are never captured by a scope.
type ErrorKind int

const (
	// ErrorKindValidation is a front-end contract violation.
	ErrorKindValidation ErrorKind = iota
	// ErrorKindOutOfMemory is a resource allocation failure.
	ErrorKindOutOfMemory
	// ErrorKindInternal is an unexpected backend error; fatal unless
	// explicitly allowed for the call.
	ErrorKindInternal
	// ErrorKindDeviceLost always transitions the device to Disconnected.
	ErrorKindDeviceLost
	// ErrorKindUnimplemented is a not-yet-implemented backend path,
	// routed as Internal.
	ErrorKindUnimplemented
)

// InternalError represents a backend-surfaced error the front end did not
// ask for and cannot recover from locally.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) Unwrap() error { return e.Cause }

// UnimplementedError is a well-known placeholder for a backend path that
// has not been written yet. Routed identically to InternalError (spec §7).
type UnimplementedError struct {
	Operation string
}

func (e *UnimplementedError) Error() string {
	return fmt.Sprintf("unimplemented: %s", e.Operation)
}

// OutOfMemoryError represents a resource allocation failure distinct from a
// validation error; it shares Validation's capture/propagation rules but is
// tagged separately so device creation can apply the buffer-creation fast
// path that skips the device lock on success (spec §4.6).
type OutOfMemoryError struct {
	Resource string
	Message  string
}

func (e *OutOfMemoryError) Error() string {
	return fmt.Sprintf("%s: out of memory: %s", e.Resource, e.Message)
}

// classifyError maps an arbitrary error value to its §7 routing kind.
func classifyError(err error) ErrorKind {
	switch {
	case isDeviceLostError(err):
		return ErrorKindDeviceLost
	case IsValidationError(err):
		return ErrorKindValidation
	case isOutOfMemoryError(err):
		return ErrorKindOutOfMemory
	case isUnimplementedError(err):
		return ErrorKindUnimplemented
	default:
		return ErrorKindInternal
	}
}

func isDeviceLostError(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}

func isOutOfMemoryError(err error) bool {
	var oom *OutOfMemoryError
	return errors.As(err, &oom)
}

func isUnimplementedError(err error) bool {
	var ue *UnimplementedError
	return errors.As(err, &ue)
}

func errorKindToFilter(k ErrorKind) ErrorFilter {
	switch k {
	case ErrorKindOutOfMemory:
		return ErrorFilterOutOfMemory
	case ErrorKindInternal, ErrorKindUnimplemented:
		return ErrorFilterInternal
	default:
		return ErrorFilterValidation
	}
}

// AllowedErrorMask enumerates which non-always-allowed error kinds an
// operation tolerates, per spec §7's "allowed-error mask" concept.
// Validation and DeviceLost are always allowed and have no mask bit.
type AllowedErrorMask uint8

const (
	// AllowOutOfMemory lets OutOfMemory errors reach the error-scope stack
	// instead of forcing device loss.
	AllowOutOfMemory AllowedErrorMask = 1 << iota
	// AllowInternal lets Internal (and Unimplemented) errors reach the
	// error-scope stack instead of forcing device loss.
	AllowInternal
)

// ConsumeError routes err per spec §4.6/§7: Validation and DeviceLost are
// always allowed; OutOfMemory/Internal are allowed only if additionalAllowed
// says so. An error outside the allowed set escalates to device loss.
func (d *Device) ConsumeError(err error, additionalAllowed AllowedErrorMask) {
	if err == nil {
		return
	}

	kind := classifyError(err)
	if kind == ErrorKindDeviceLost {
		d.HandleDeviceLost(DeviceLostReasonUnknown, err.Error())
		return
	}

	allowed := kind == ErrorKindValidation ||
		(kind == ErrorKindOutOfMemory && additionalAllowed&AllowOutOfMemory != 0) ||
		(kind == ErrorKindInternal && additionalAllowed&AllowInternal != 0) ||
		(kind == ErrorKindUnimplemented && additionalAllowed&AllowInternal != 0)

	if allowed {
		filter := errorKindToFilter(kind)
		if !d.reportError(filter, err.Error()) {
			d.emitUncapturedError(filter, err.Error())
		}
		return
	}

	d.forceLossFromError(err)
}

// forceLossFromError implements the fatal branch of §4.6: wait for the
// queue to go idle, force-destroy the backend device, transition to
// Disconnected and fire the lost event with reason Unknown.
func (d *Device) forceLossFromError(err error) {
	d.lifecycleState.CompareAndSwap(int32(DeviceAlive), int32(DeviceBeingDisconnected))

	if guard := d.SnatchLock(); guard != nil {
		g := guard.Read()
		raw := d.Raw(g)
		g.Release()
		if raw != nil {
			_ = raw.WaitIdle()
		}
	}

	d.Destroy()
	d.lifecycleState.Store(int32(DeviceDisconnected))
	d.HandleDeviceLost(DeviceLostReasonUnknown, err.Error())
}

// HandleDeviceLost transitions the device out of Alive (if it is not
// already out) and signals the lost event exactly once. Per spec §4.6 the
// device clears its uncaptured-error and logging sinks before firing so the
// callback may free the memory backing them.
func (d *Device) HandleDeviceLost(reason DeviceLostReason, message string) {
	d.lifecycleState.CompareAndSwap(int32(DeviceAlive), int32(DeviceDisconnected))
	d.lifecycleState.CompareAndSwap(int32(DeviceBeingDisconnected), int32(DeviceDisconnected))

	if d.loggingSink != nil {
		d.loggingSink.Clear()
	}
	d.clearUncapturedErrorCallback()

	var devPtr *Device
	if reason != DeviceLostReasonInstanceDropped && reason != DeviceLostReasonFailedCreation {
		devPtr = d
	}
	d.lostEvent.Fire(devPtr, reason, message)

	if d.asyncTasks != nil {
		d.asyncTasks.WaitAllPendingTasks()
	}
	if d.callbacks != nil {
		d.callbacks.HandleShutDown()
	}
}

// State returns the device's current lifecycle state.
func (d *Device) State() DeviceLifecycleState {
	if d == nil {
		return DeviceDestroyed
	}
	return DeviceLifecycleState(d.lifecycleState.Load())
}

// MintPipelineCompatibilityToken returns a new nonzero token to attach to
// every bind-group layout a default ("layout: auto") pipeline layout emits.
// Token 0 is reserved for explicit, user-authored layouts.
func (d *Device) MintPipelineCompatibilityToken() uint64 {
	return d.pipelineCompatCounter.Add(1)
}

// LostEvent returns the device's one-shot device-lost signal.
func (d *Device) LostEvent() *LostEvent {
	return d.lostEvent
}

// SetLoggingCallback replaces the device's logging sink.
func (d *Device) SetLoggingCallback(cb LoggingCallback) {
	if d.loggingSink == nil {
		return
	}
	d.loggingSink.Replace(cb)
}

// EmitLog delivers one message through the device's logging sink. It is
// not rate limited; compilation diagnostics go through EmitCompilationLog,
// which applies CompilationLogLimiter.
func (d *Device) EmitLog(level LogLevel, message string) {
	if d.loggingSink == nil {
		return
	}
	d.loggingSink.Emit(level, message)
}

// EmitCompilationLog delivers a shader-compilation diagnostic message
// through the device's logging sink, subject to the per-device
// CompilationLogLimiter. Use this instead of EmitLog for messages that
// originate from compile_wgsl diagnostics; other logging (deprecation
// warnings, etc.) is not rate limited and should keep using EmitLog.
func (d *Device) EmitCompilationLog(level LogLevel, message string) {
	if d.loggingSink == nil {
		return
	}
	if d.compilationLogLimiter == nil {
		d.loggingSink.Emit(level, message)
		return
	}
	emit, ok := d.compilationLogLimiter.Allow(message)
	if !ok {
		return
	}
	d.loggingSink.Emit(level, emit)
}

// SetUncapturedErrorCallback replaces the device's uncaptured-error
// callback.
func (d *Device) SetUncapturedErrorCallback(cb UncapturedErrorCallback) {
	d.uncapturedErrorCallback.Store(&cb)
}

func (d *Device) emitUncapturedError(filter ErrorFilter, message string) {
	if d.State() != DeviceAlive {
		return
	}
	p := d.uncapturedErrorCallback.Load()
	if p != nil && *p != nil {
		(*p)(filter, message)
	}
}

func (d *Device) clearUncapturedErrorCallback() {
	var nilCb UncapturedErrorCallback
	d.uncapturedErrorCallback.Store(&nilCb)
}

// ensureLifecycle lazily initializes the lifecycle collaborators for
// devices built through paths that do not call NewDevice's full
// constructor (kept for defense-in-depth; NewDevice always initializes
// these eagerly).
func (d *Device) ensureLifecycle() {
	if d.lostEvent == nil {
		d.lostEvent = newLostEvent()
	}
	if d.asyncTasks == nil {
		d.asyncTasks = NewAsyncTaskManager()
	}
	if d.callbacks == nil {
		d.callbacks = NewCallbackQueue()
	}
	if d.loggingSink == nil {
		d.loggingSink = NewLoggingSink()
	}
	if d.compilationLogLimiter == nil {
		d.compilationLogLimiter = NewCompilationLogLimiter()
	}
}
