package indirect

import (
	"encoding/binary"

	"github.com/gogpu/wgpucore/types"
)

// drawMetaSize is the byte size of one DrawMeta record in the validation
// shaders' BatchData.draws array: ten little-endian u32 fields, matching
// the struct declared in core/pipelinestore's indirect-validate WGSL.
const drawMetaSize = 40

// batchHeaderSize is the byte offset at which the draws array begins
// within a BatchData blob; num_draws occupies the first four bytes, the
// rest is padding so the runtime-sized array starts 16-byte aligned.
const batchHeaderSize = 16

// multiParamsSize is the byte size of the MultiDrawParams uniform block
// (max_draw_count, draw_count_offset_words, has_count_buffer, padding),
// stored immediately after a multi-draw batch's single DrawMeta record.
const multiParamsSize = 16

func alignDown(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return v - (v % align)
}

func alignUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// batch is one validation compute dispatch: a run of draws sharing a
// BatchKey whose three scratch ranges — the source sub-range being read,
// the batch-metadata blob, and the validated-output sub-range being
// written — all fit within the device's max storage-buffer binding size.
//
// Every offset a draw's DrawMeta record carries (input_offset,
// output_offset) is relative to that draw's BATCH's bound sub-range, not
// an absolute buffer offset: the bind group binds a narrow window into
// the (potentially much larger) source and output buffers, and the
// shader indexes from the start of that window.
type batch struct {
	key BatchKey

	draws      []*DrawMetadata
	multiDraws []*MultiDrawMetadata

	sourceOffset uint64
	sourceSize   uint64

	batchDataOffset uint64
	batchDataBytes  []byte

	outputOffset uint64
	outputSize   uint64
}

func (b *batch) numDraws() uint32 {
	return uint32(len(b.draws) + len(b.multiDraws))
}

// buildBatches runs the §4.5.2 batching algorithm: it walks recorded
// draws in deterministic (recording) order, grouping consecutive draws
// that share a BatchKey into dispatches, and starts a new batch whenever
// the aligned source range, the batch-metadata blob, or the output range
// would exceed maxStorageBufferBindingSize. Every batch's three scratch
// regions are assigned disjoint, alignment-respecting offsets within the
// (separately, monotonically grown) shared batch-data and output scratch
// buffers; the source buffer is the application's own, untouched.
func buildBatches(draws []*DrawMetadata, multiDraws []*MultiDrawMetadata, limits types.Limits) []*batch {
	maxBinding := limits.MaxStorageBufferBindingSize
	align := uint64(limits.MinStorageBufferOffsetAlignment)
	if align == 0 {
		align = 256
	}
	if maxBinding == 0 {
		maxBinding = 1 << 27
	}

	var batches []*batch
	var outputCursor, batchDataCursor uint64

	finish := func(b *batch) {
		b.batchDataBytes = encodeBatchData(b)
		outputCursor = alignUp(b.outputOffset+b.outputSize, align)
		batchDataCursor = alignUp(b.batchDataOffset+uint64(len(b.batchDataBytes)), align)
	}

	start := func(key BatchKey) *batch {
		nb := &batch{
			key:             key,
			batchDataOffset: batchDataCursor,
			outputOffset:    outputCursor,
		}
		batches = append(batches, nb)
		return nb
	}

	var current *batch
	for _, d := range draws {
		drawOutputBytes := uint64(d.Key.outputDrawWords()) * 4
		drawInputEnd := d.InputOffset + uint64(d.Key.Type.argWords())*4

		needNew := current == nil || current.key != d.Key
		if !needNew {
			candidateSourceStart := current.sourceOffset
			if current.sourceOffset == 0 && current.sourceSize == 0 {
				candidateSourceStart = alignDown(d.InputOffset, align)
			} else if d.InputOffset < current.sourceOffset {
				candidateSourceStart = alignDown(d.InputOffset, align)
			}
			candidateSourceEnd := current.sourceOffset + current.sourceSize
			if drawInputEnd > candidateSourceEnd {
				candidateSourceEnd = drawInputEnd
			}
			candidateSourceSize := candidateSourceEnd - candidateSourceStart

			needNew = current.outputSize+drawOutputBytes > maxBinding ||
				candidateSourceSize > maxBinding ||
				batchHeaderSize+uint64(len(current.draws)+1)*drawMetaSize > maxBinding
		}

		if needNew {
			if current != nil {
				finish(current)
			}
			current = start(d.Key)
			current.sourceOffset = alignDown(d.InputOffset, align)
			current.sourceSize = drawInputEnd - current.sourceOffset
		} else {
			newStart := current.sourceOffset
			if d.InputOffset < newStart {
				newStart = alignDown(d.InputOffset, align)
			}
			newEnd := current.sourceOffset + current.sourceSize
			if drawInputEnd > newEnd {
				newEnd = drawInputEnd
			}
			current.sourceOffset = newStart
			current.sourceSize = newEnd - newStart
		}

		d.Patch.Offset = current.outputOffset + current.outputSize
		current.outputSize += drawOutputBytes
		current.draws = append(current.draws, d)
	}
	if current != nil {
		finish(current)
		current = nil
	}

	for _, m := range multiDraws {
		if m.skip() {
			continue
		}
		nb := start(m.Key)
		nb.outputSize = uint64(m.Key.outputDrawWords()) * 4 * uint64(m.MaxDrawCount)
		nb.multiDraws = append(nb.multiDraws, m)
		m.Patch.Offset = nb.outputOffset
		finish(nb)
	}

	return batches
}

// encodeBatchData serializes a batch's DrawMeta records (plus, for a
// multi-draw batch, its single synthetic record and trailing
// MultiDrawParams block) into the byte layout the validation shaders
// expect in their BatchData storage buffer. Every offset written is
// relative to the batch's own bound source/output sub-range.
func encodeBatchData(b *batch) []byte {
	n := len(b.draws) + len(b.multiDraws)
	size := uint64(batchHeaderSize) + uint64(n)*drawMetaSize
	if len(b.multiDraws) > 0 {
		size += multiParamsSize
	}
	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(n))

	put := func(off uint64, v uint32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
	}
	boolWord := func(v bool) uint32 {
		if v {
			return 1
		}
		return 0
	}

	row := uint64(batchHeaderSize)
	for _, d := range b.draws {
		localInput := (d.InputOffset - b.sourceOffset) / 4
		localOutput := (d.Patch.Offset - b.outputOffset) / 4
		put(row+0, uint32(localInput))
		put(row+4, uint32(localOutput))
		put(row+8, d.IndexCountLow)
		put(row+12, d.IndexCountHigh)
		put(row+16, d.IndexOffsetElements)
		put(row+20, boolWord(d.Key.Duplicate))
		put(row+24, boolWord(d.Key.Type == DrawTypeIndexed))
		put(row+28, boolWord(d.ValidationEnabled))
		put(row+32, boolWord(d.UseFirstIndexBias))
		put(row+36, boolWord(d.AllowIndirectFirstInstance))
		row += drawMetaSize
	}
	for _, m := range b.multiDraws {
		localOutput := (m.Patch.Offset - b.outputOffset) / 4
		put(row+0, 0)
		put(row+4, uint32(localOutput))
		put(row+8, m.IndexCountLow)
		put(row+12, m.IndexCountHigh)
		put(row+16, m.IndexOffsetElements)
		put(row+20, boolWord(m.Key.Duplicate))
		put(row+24, boolWord(m.Key.Type == DrawTypeIndexed))
		put(row+28, boolWord(m.ValidationEnabled))
		put(row+32, boolWord(m.UseFirstIndexBias))
		put(row+36, boolWord(m.AllowIndirectFirstInstance))
		row += drawMetaSize

		hasCount := uint32(0)
		if m.DrawCountBuffer != nil {
			hasCount = 1
		}
		put(row+0, m.MaxDrawCount)
		put(row+4, uint32(m.DrawCountOffset/4))
		put(row+8, hasCount)
	}

	return buf
}
