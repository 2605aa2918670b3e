package library

import (
	"github.com/bits-and-blooms/bloom/v3"
)

// membershipIndex answers saved-track membership queries in O(1). The Bloom
// filter rejects most misses without touching the map; removals only touch
// the map, so the filter may report stale positives which the map check
// then resolves.
type membershipIndex struct {
	trackIDs map[string]struct{}
	bloom    *bloom.BloomFilter
	capacity int
}

func newMembershipIndex(capacity int, falsePositiveRate float64) *membershipIndex {
	if capacity < 0 || capacity > int(^uint(0)>>1) {
		panic("capacity value out of range for uint conversion")
	}
	return &membershipIndex{
		trackIDs: make(map[string]struct{}),
		bloom:    bloom.NewWithEstimates(uint(capacity), falsePositiveRate),
		capacity: capacity,
	}
}

func (mi *membershipIndex) Has(trackID string) bool {
	if !mi.bloom.TestString(trackID) {
		return false
	}
	_, exists := mi.trackIDs[trackID]
	return exists
}

func (mi *membershipIndex) Add(trackID string) {
	if _, exists := mi.trackIDs[trackID]; exists {
		return
	}
	mi.trackIDs[trackID] = struct{}{}
	mi.bloom.AddString(trackID)
}

func (mi *membershipIndex) Remove(trackID string) {
	delete(mi.trackIDs, trackID)
}

func (mi *membershipIndex) Size() int {
	return len(mi.trackIDs)
}

func (mi *membershipIndex) Reset() {
	mi.trackIDs = make(map[string]struct{})
	mi.bloom.ClearAll()
}
