package indirect

import (
	"fmt"

	"github.com/gogpu/wgpucore/core/pipelinestore"
	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// Validator owns the scratch buffers and compiled compute pipelines that
// turn one render pass's worth of recorded DrawMetadata/MultiDrawMetadata
// into validated, device-trusted draw parameters. One Validator is
// created per device and reused across every command encoder it opens.
type Validator struct {
	device hal.Device
	store  *pipelinestore.Store
	limits types.Limits

	scratch *Scratch

	pendingBindGroups []hal.BindGroup
}

// NewValidator creates a validator bound to a device's pipeline store and
// advertised limits. The pipeline store supplies the compiled
// single/multi-draw validation pipelines (see
// pipelinestore.Store.GetSingleDrawValidate/GetMultiDrawValidate); the
// limits bound how large a single validation dispatch's storage-buffer
// bindings may grow.
func NewValidator(device hal.Device, store *pipelinestore.Store, limits types.Limits) *Validator {
	return &Validator{
		device:  device,
		store:   store,
		limits:  limits,
		scratch: NewScratch(device),
	}
}

// Close releases the validator's scratch buffers and any bind groups
// from its most recent Process call.
func (v *Validator) Close() {
	for _, g := range v.pendingBindGroups {
		v.device.DestroyBindGroup(g)
	}
	v.pendingBindGroups = nil
	v.scratch.Close()
}

// Process batches the given indirect and indexed-indirect draws recorded
// during one render pass, grows the shared scratch buffers if needed,
// uploads each batch's metadata, and records one validation compute pass
// per batch into encoder. On success every draw's Patch field is filled
// in with the scratch output buffer and offset the render pass must
// replay the draw against instead of its originally recorded buffer.
//
// Process assumes the bind groups it created for the PREVIOUS call have
// already been consumed by a submitted and completed command buffer;
// callers that pipeline multiple in-flight encodings per device should
// use one Validator per encoding instead of sharing one across
// concurrently in-flight submissions.
func (v *Validator) Process(encoder hal.CommandEncoder, queue hal.Queue, draws []*DrawMetadata, multiDraws []*MultiDrawMetadata) error {
	batches := buildBatches(draws, multiDraws, v.limits)
	if len(batches) == 0 {
		return nil
	}

	var batchDataSize, outputSize uint64
	for _, b := range batches {
		if end := b.batchDataOffset + uint64(len(b.batchDataBytes)); end > batchDataSize {
			batchDataSize = end
		}
		if end := b.outputOffset + b.outputSize; end > outputSize {
			outputSize = end
		}
	}
	if err := v.scratch.batchData.ensure(batchDataSize); err != nil {
		return err
	}
	if err := v.scratch.output.ensure(outputSize); err != nil {
		return err
	}

	for _, prev := range v.pendingBindGroups {
		v.device.DestroyBindGroup(prev)
	}
	v.pendingBindGroups = v.pendingBindGroups[:0]

	for _, b := range batches {
		queue.WriteBuffer(v.scratch.batchData.buf, b.batchDataOffset, b.batchDataBytes)

		if err := v.dispatchBatch(encoder, b); err != nil {
			return err
		}
	}

	outputBuf := v.scratch.output.buf
	for _, d := range draws {
		d.Patch.Buffer = outputBuf
	}
	for _, m := range multiDraws {
		if m.skip() {
			m.Patch.Buffer = m.Key.Source
			continue
		}
		m.Patch.Buffer = outputBuf
	}

	return nil
}

func (v *Validator) dispatchBatch(encoder hal.CommandEncoder, b *batch) error {
	multi := len(b.multiDraws) > 0

	var pipeline hal.ComputePipeline
	var layout hal.BindGroupLayout
	var err error
	if multi {
		pipeline, err = v.store.GetMultiDrawValidate()
		layout = v.store.MultiDrawValidateLayout()
	} else {
		pipeline, err = v.store.GetSingleDrawValidate()
		layout = v.store.SingleDrawValidateLayout()
	}
	if err != nil {
		return err
	}

	entries := []types.BindGroupEntry{
		{Binding: 0, Resource: types.BufferBinding{
			Buffer: types.BufferHandle(v.scratch.batchData.buf.NativeHandle()),
			Offset: b.batchDataOffset,
			Size:   uint64(len(b.batchDataBytes)),
		}},
		{Binding: 1, Resource: types.BufferBinding{
			Buffer: types.BufferHandle(b.key.Source.NativeHandle()),
			Offset: b.sourceOffset,
			Size:   b.sourceSize,
		}},
		{Binding: 2, Resource: types.BufferBinding{
			Buffer: types.BufferHandle(v.scratch.output.buf.NativeHandle()),
			Offset: b.outputOffset,
			Size:   b.outputSize,
		}},
	}

	if multi {
		m := b.multiDraws[0]
		countBuf := m.DrawCountBuffer
		countOffset := m.DrawCountOffset
		if countBuf == nil {
			// No GPU-resident draw-count buffer: bind the batch-data
			// blob itself to keep the binding valid; the shader never
			// reads it since has_count_buffer is zero.
			countBuf = v.scratch.batchData.buf
			countOffset = b.batchDataOffset
		}
		paramsOffset := b.batchDataOffset + batchHeaderSize + drawMetaSize
		entries = append(entries,
			types.BindGroupEntry{Binding: 3, Resource: types.BufferBinding{
				Buffer: types.BufferHandle(countBuf.NativeHandle()),
				Offset: countOffset,
				Size:   4,
			}},
			types.BindGroupEntry{Binding: 4, Resource: types.BufferBinding{
				Buffer: types.BufferHandle(v.scratch.batchData.buf.NativeHandle()),
				Offset: paramsOffset,
				Size:   multiParamsSize,
			}},
		)
	}

	group, err := v.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "internal-indirect-validate-bind-group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("indirect: create bind group: %w", err)
	}
	v.pendingBindGroups = append(v.pendingBindGroups, group)

	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "internal-indirect-validate"})
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, group, nil)

	workgroups := (b.numDraws() + 63) / 64
	if workgroups == 0 {
		workgroups = 1
	}
	pass.Dispatch(workgroups, 1, 1)
	pass.End()

	return nil
}

// OutputBuffer returns the current validated-output scratch buffer, or
// nil if Process has never grown it. Exposed so callers can register the
// buffer with a render pass's resource-usage tracker as an indirect
// buffer, per the device's normal backend resource tracking.
func (v *Validator) OutputBuffer() hal.Buffer {
	return v.scratch.output.buf
}
