// Copyright 2025 The GoGPU Authors
// SPDX-License-Identifier: MIT

// Package allbackends imports the reference HAL backend implementation.
//
// Import this package for side effects to register it:
//
//	import (
//		_ "github.com/gogpu/wgpucore/hal/allbackends"
//	)
//
// This registers the no-op backend, which is always available and is the
// reference implementation of the hal.Backend/hal.Device/hal.Queue traits
// used by the device core's tests and examples. Real GPU backends
// (Vulkan, Metal, DX12, GLES) are out of scope for this module; they are
// external collaborators per the backend trait in package hal.
//
// After importing, use core.GetBackendProvider or core.SelectBestBackendProvider
// to access registered backends.
package allbackends
