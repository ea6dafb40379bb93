package track

import "github.com/gogpu/wgpucore/types"

// TextureUses represents internal texture usage states for tracking,
// mirroring BufferUses' role for buffers.
type TextureUses uint32

const (
	TextureUsesNone TextureUses = 0
	// TextureUsesCopySrc marks the texture as a copy source.
	TextureUsesCopySrc TextureUses = 1 << iota
	// TextureUsesCopyDst marks the texture as a copy destination.
	TextureUsesCopyDst
	// TextureUsesTextureBinding is a sampled-texture binding.
	TextureUsesTextureBinding
	// TextureUsesStorageBinding is a read-write storage-texture binding.
	TextureUsesStorageBinding
	// TextureUsesReadOnlyStorageTexture is a read-only storage-texture binding.
	TextureUsesReadOnlyStorageTexture
	// TextureUsesWriteOnlyStorageTexture is a write-only storage-texture binding.
	TextureUsesWriteOnlyStorageTexture
	// TextureUsesRenderAttachment marks use as a color/depth-stencil
	// render-pass attachment (recorded from the pass descriptor, never
	// from a bind group).
	TextureUsesRenderAttachment
)

// IsReadOnly reports whether the usage contains only read-only operations.
func (u TextureUses) IsReadOnly() bool {
	writeUsages := TextureUsesCopyDst | TextureUsesStorageBinding | TextureUsesWriteOnlyStorageTexture | TextureUsesRenderAttachment
	return u&writeUsages == 0
}

// IsCompatible reports whether two usages may coexist in the same scope
// without requiring a barrier between them.
func (u TextureUses) IsCompatible(other TextureUses) bool {
	if u == TextureUsesNone || other == TextureUsesNone {
		return true
	}
	if u.IsReadOnly() && other.IsReadOnly() {
		return true
	}
	return u == other
}

// SubresourceRange identifies a texture subresource for usage tracking:
// an aspect mask paired with a mip-level range and an array-layer range.
type SubresourceRange struct {
	Aspect          types.TextureAspectFlags
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32
}

// subresourceKey identifies one concrete (mip, layer) slice within a
// range for merging purposes.
type subresourceKey struct {
	view   types.TextureViewHandle
	aspect types.TextureAspectFlags
	mip    uint32
	layer  uint32
}

// SyncInfo pairs a usage bitset with the shader-stage visibility that
// produced it; every buffer and texture subresource record carries one.
type SyncInfo struct {
	Usage  TextureUses
	Stages types.ShaderStages
}

// BufferSyncInfo is the buffer-side equivalent of SyncInfo.
type BufferSyncInfo struct {
	Usage  BufferUses
	Stages types.ShaderStages
}

func mergeBufferSync(existing, add BufferSyncInfo) BufferSyncInfo {
	return BufferSyncInfo{Usage: existing.Usage | add.Usage, Stages: existing.Stages | add.Stages}
}

func mergeTextureSync(existing, add SyncInfo) SyncInfo {
	return SyncInfo{Usage: existing.Usage | add.Usage, Stages: existing.Stages | add.Stages}
}
