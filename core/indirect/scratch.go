package indirect

import (
	"fmt"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// scratchBuffer is a device-owned buffer that only ever grows: once big
// enough for the largest encoding seen so far, it is reused as-is for
// smaller ones. Growing replaces the backing hal.Buffer outright, since
// its previous contents (if any) are always fully overwritten before the
// next read.
type scratchBuffer struct {
	device hal.Device
	label  string
	usage  types.BufferUsage

	buf  hal.Buffer
	size uint64
}

func newScratchBuffer(device hal.Device, label string, usage types.BufferUsage) *scratchBuffer {
	return &scratchBuffer{device: device, label: label, usage: usage}
}

// ensure grows the buffer to at least needed bytes, destroying the
// previous (smaller) buffer if one existed. It is a no-op if the current
// buffer is already large enough.
func (s *scratchBuffer) ensure(needed uint64) error {
	if needed <= s.size && s.buf != nil {
		return nil
	}
	size := needed
	if size == 0 {
		size = 256
	}
	buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
		Label: s.label,
		Size:  size,
		Usage: s.usage,
	})
	if err != nil {
		return fmt.Errorf("indirect: grow %s to %d bytes: %w", s.label, size, err)
	}
	if s.buf != nil {
		s.device.DestroyBuffer(s.buf)
	}
	s.buf = buf
	s.size = size
	return nil
}

func (s *scratchBuffer) destroy() {
	if s.buf != nil {
		s.device.DestroyBuffer(s.buf)
		s.buf = nil
		s.size = 0
	}
}

// Scratch owns the two buffers every validation dispatch shares: the
// batch-metadata blob the CPU uploads each encoding, and the validated
// draw-parameter output the GPU only ever writes and the render pass
// only ever reads (as an indirect buffer). Both grow monotonically for
// the lifetime of the owning device, matching spec guidance that a
// single encoding's worst case sizes these buffers for all later ones.
type Scratch struct {
	batchData *scratchBuffer
	output    *scratchBuffer
}

// NewScratch creates the (initially empty) scratch buffers for a device.
// batchData doubles as a uniform source for MultiDrawParams, so it is
// created with both Storage and Uniform usage.
func NewScratch(device hal.Device) *Scratch {
	return &Scratch{
		batchData: newScratchBuffer(device, "internal-indirect-batch-data",
			types.BufferUsageStorage|types.BufferUsageUniform|types.BufferUsageCopyDst),
		output: newScratchBuffer(device, "internal-indirect-output",
			types.BufferUsageStorage|types.BufferUsageIndirect|types.BufferUsageCopyDst),
	}
}

// Close destroys both scratch buffers. Safe to call on a zero-sized
// Scratch that never allocated anything.
func (s *Scratch) Close() {
	s.batchData.destroy()
	s.output.destroy()
}
