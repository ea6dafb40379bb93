// Package core re-exports the tracker-index vocabulary from core/track so
// that Device and its resources (Buffer, Texture, ...) can refer to
// TrackerIndex without every file importing the subpackage directly.

package core

import "github.com/gogpu/wgpucore/core/track"

// TrackerIndex is a dense index for efficient resource state tracking.
// See core/track for the allocator implementation.
type TrackerIndex = track.TrackerIndex

// InvalidTrackerIndex represents an unassigned tracker index.
const InvalidTrackerIndex = track.InvalidTrackerIndex

// TrackerIndexAllocators manages tracker indices per resource type.
type TrackerIndexAllocators = track.TrackerIndexAllocators

// NewTrackerIndexAllocators creates a new TrackerIndexAllocators.
func NewTrackerIndexAllocators() *TrackerIndexAllocators {
	return track.NewTrackerIndexAllocators()
}
