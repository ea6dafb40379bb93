package core

import (
	"errors"

	"github.com/gogpu/wgpucore/hal"
	"github.com/gogpu/wgpucore/types"
)

// validBufferUsageMask is the OR of every BufferUsage bit this device
// core understands. Any bit outside this mask is rejected as unknown.
const validBufferUsageMask = types.BufferUsageMapRead |
	types.BufferUsageMapWrite |
	types.BufferUsageCopySrc |
	types.BufferUsageCopyDst |
	types.BufferUsageIndex |
	types.BufferUsageVertex |
	types.BufferUsageUniform |
	types.BufferUsageStorage |
	types.BufferUsageIndirect |
	types.BufferUsageQueryResolve

// copyBufferAlignment is the alignment wgpu requires of buffer sizes
// submitted to the backend (COPY_BUFFER_ALIGNMENT in the W3C spec). The
// size reported back to callers via Buffer.Size() is the unaligned,
// requested size; only the HAL sees the aligned size.
const copyBufferAlignment = 4

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) / align * align
}

// CreateBuffer validates desc and creates a GPU buffer, per the W3C
// GPUDevice.createBuffer validation steps.
func (d *Device) CreateBuffer(desc *types.BufferDescriptor) (*Buffer, error) {
	if err := d.checkValid(); err != nil {
		return nil, err
	}
	if desc == nil {
		return nil, errors.New("CreateBuffer: descriptor must not be nil")
	}

	if desc.Usage == 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorEmptyUsage, Label: desc.Label}
	}
	if desc.Usage&^validBufferUsageMask != 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorInvalidUsage, Label: desc.Label}
	}
	if desc.Usage&types.BufferUsageMapRead != 0 && desc.Usage&types.BufferUsageMapWrite != 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorMapReadWriteExclusive, Label: desc.Label}
	}
	if desc.Size == 0 {
		return nil, &CreateBufferError{Kind: CreateBufferErrorZeroSize, Label: desc.Label}
	}
	if desc.Size > d.Limits.MaxBufferSize {
		return nil, &CreateBufferError{
			Kind:          CreateBufferErrorMaxBufferSize,
			Label:         desc.Label,
			RequestedSize: desc.Size,
			MaxSize:       d.Limits.MaxBufferSize,
		}
	}

	guard := d.snatchLock.Read()
	halDevice, err := d.raw.GetOrErr(guard, ErrDeviceDestroyed)
	if err != nil {
		guard.Release()
		return nil, err
	}

	halBuffer, err := halDevice.CreateBuffer(&hal.BufferDescriptor{
		Label:            desc.Label,
		Size:             alignUp(desc.Size, copyBufferAlignment),
		Usage:            desc.Usage,
		MappedAtCreation: desc.MappedAtCreation,
	})
	guard.Release()
	if err != nil {
		return nil, &CreateBufferError{Kind: CreateBufferErrorHAL, Label: desc.Label, HALError: err}
	}

	buffer := NewBuffer(halBuffer, d, desc.Usage, desc.Size, desc.Label)
	if desc.MappedAtCreation {
		buffer.SetMapState(BufferMapStateMapped)
		buffer.MarkInitialized(0, desc.Size)
	}

	return buffer, nil
}
