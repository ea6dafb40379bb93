// Package indirect implements the device's indirect-draw validator: the
// subsystem that batches recorded indirect and indexed-indirect draws,
// emits a compute pass that validates and rewrites them into a trusted
// scratch buffer, and reports the final {buffer, offset} each draw must
// be replayed against.
//
// The device cannot trust that an application-supplied indirect-draw
// parameter buffer stays within bounds after recording: the buffer is
// plain GPU memory the application can still write to right up until
// submission. Rather than re-validate at submit time (which would need
// to stall the queue), the validator rewrites every recorded draw's
// parameters into a buffer only the device ever writes, and the pass
// ends up drawing from that copy instead of the original.
package indirect

import "github.com/gogpu/wgpucore/hal"

// DrawType distinguishes indexed from non-indexed indirect draws; it is
// part of a BatchKey because the two use different DrawIndirectArgs
// layouts and only draws of the same type can share a validation batch.
type DrawType uint8

const (
	// DrawTypeNonIndexed is a plain drawIndirect call (4 x u32 args).
	DrawTypeNonIndexed DrawType = iota
	// DrawTypeIndexed is a drawIndexedIndirect call (5 x u32 args).
	DrawTypeIndexed
)

// argWords returns the word count of one DrawIndirectArgs
// (vertexCount, instanceCount, firstVertex, firstInstance) or
// DrawIndexedIndirectArgs (+ baseVertex) record for this draw type.
func (t DrawType) argWords() uint32 {
	if t == DrawTypeIndexed {
		return 5
	}
	return 4
}

// BatchKey groups draws that can be validated within a single compute
// dispatch: they read from the same source indirect buffer, are the
// same draw type, and require the same base-vertex/first-instance
// duplication treatment.
type BatchKey struct {
	// Source is the application-recorded indirect parameter buffer.
	Source hal.Buffer
	// Type is indexed vs. non-indexed.
	Type DrawType
	// Duplicate requests that baseVertex/firstInstance also be written
	// past the end of the normal args, for backends whose indirect draw
	// instruction cannot itself read them from a buffer.
	Duplicate bool
}

// outputDrawWords is the word count of one validated output slot: the
// original args, plus two extra words if duplication is requested.
func (k BatchKey) outputDrawWords() uint32 {
	n := k.Type.argWords()
	if k.Duplicate {
		n += 2
	}
	return n
}

// DrawPatch is filled in by Validator.Process once a draw's final
// position in the scratch output buffer is known; the command encoder
// replays the draw against this buffer/offset instead of the one the
// application originally supplied.
type DrawPatch struct {
	Buffer hal.Buffer
	Offset uint64
}

// DrawMetadata is recorded once per indirect or indexed-indirect draw
// call, at the point it is issued into a render pass.
type DrawMetadata struct {
	Key BatchKey

	// InputOffset is the byte offset into Key.Source where this draw's
	// args begin.
	InputOffset uint64

	// IndexCountLow/IndexCountHigh are the bound index buffer's element
	// count (ignored for non-indexed draws), split into 32-bit halves
	// because the validation shader does 32-bit integer math.
	IndexCountLow  uint32
	IndexCountHigh uint32

	// IndexOffsetElements biases firstIndex by the bound index buffer's
	// offset, for backends with no native index-buffer-offset support.
	IndexOffsetElements uint32
	UseFirstIndexBias   bool

	// AllowIndirectFirstInstance mirrors the device feature of the same
	// name; when false, the validator zeroes any draw with a nonzero
	// firstInstance rather than let an unsupported backend read it.
	AllowIndirectFirstInstance bool

	// ValidationEnabled selects the full validate-and-copy path; when
	// false the draw is unconditionally copied (still applying
	// duplication/bias), matching a caller that has already validated
	// the draw by other means.
	ValidationEnabled bool

	// Patch receives this draw's final {buffer, offset} once batching
	// has run. Non-nil only after Validator.Process returns successfully.
	Patch DrawPatch
}

// MultiDrawMetadata is recorded once per multi-draw-indirect call (a
// single recorded command whose draw count is itself data-dependent).
type MultiDrawMetadata struct {
	Key BatchKey

	// MaxDrawCount upper-bounds the number of draws the call can expand
	// to; it is always known at record time even when the actual count
	// is read from DrawCountBuffer at draw time.
	MaxDrawCount uint32

	// DrawCountBuffer, if non-nil, holds the actual draw count at
	// DrawCountOffset; nil means MaxDrawCount is the actual count.
	DrawCountBuffer hal.Buffer
	DrawCountOffset uint64

	IndexCountLow  uint32
	IndexCountHigh uint32

	IndexOffsetElements        uint32
	UseFirstIndexBias          bool
	AllowIndirectFirstInstance bool
	ValidationEnabled          bool

	// Patch receives the scratch output buffer's base offset for this
	// call's MaxDrawCount validated slots.
	Patch DrawPatch
}

// skip reports whether this multi-draw call can bypass validation
// entirely and read straight from its original buffer: a call with no
// duplication requirement needs no rewrite when it is non-indexed or when
// validation is disabled.
func (m *MultiDrawMetadata) skip() bool {
	return !m.Key.Duplicate && (m.Key.Type == DrawTypeNonIndexed || !m.ValidationEnabled)
}
