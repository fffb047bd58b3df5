// Package tracker is a minimal in-memory tracker collaborator, grounded
// on TomP2P's TrackerStorage: it records which peers announced
// themselves under a (locationKey, domainKey) pair and answers lookups
// that exclude peers a caller's Bloom filter already knows about. It is a
// test collaborator for the transport core's end-to-end scenarios, not a
// general storage engine: no persistence, no replication.
package tracker

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/kadtransport/pkg/types"
)

type trackerKey struct {
	loc types.Key160
	dom types.Key160
}

type entry struct {
	peer    types.PeerAddress
	expires time.Time
}

// Storage maps (locationKey, domainKey) to the set of peers tracked under
// it, each with its own expiry.
type Storage struct {
	clk clock.Clock

	mu   sync.Mutex
	data map[trackerKey]map[types.PeerID]entry
}

// New creates an empty Storage using clk as its time source (clock.New()
// in production, clock.NewMock() in tests that exercise TTL expiry
// deterministically).
func New(clk clock.Clock) *Storage {
	if clk == nil {
		clk = clock.New()
	}
	return &Storage{clk: clk, data: make(map[trackerKey]map[types.PeerID]entry)}
}

// AddToTracker records that peerAddr announced itself under (loc, dom),
// replacing any earlier entry for the same peer and resetting its TTL.
func (s *Storage) AddToTracker(loc, dom types.Key160, peerAddr types.PeerAddress, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := trackerKey{loc: loc, dom: dom}
	bucket, ok := s.data[key]
	if !ok {
		bucket = make(map[types.PeerID]entry)
		s.data[key] = bucket
	}
	bucket[peerAddr.PeerID] = entry{peer: peerAddr, expires: s.clk.Now().Add(ttl)}
}

// GetFromTracker returns every non-expired peer tracked under (loc, dom),
// excluding any whose PeerID tests positive against bloomFilter (nil
// excludes nothing). Expired entries are pruned lazily as they are
// encountered.
func (s *Storage) GetFromTracker(loc, dom types.Key160, bloomFilter *BloomFilter) map[types.PeerID]types.PeerAddress {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := trackerKey{loc: loc, dom: dom}
	bucket, ok := s.data[key]
	if !ok {
		return map[types.PeerID]types.PeerAddress{}
	}

	now := s.clk.Now()
	out := make(map[types.PeerID]types.PeerAddress)
	for id, e := range bucket {
		if !now.Before(e.expires) {
			delete(bucket, id)
			continue
		}
		if bloomFilter != nil && bloomFilter.Contains(id) {
			continue
		}
		out[id] = e.peer
	}
	return out
}

// Size reports how many non-expired peers are tracked under (loc, dom),
// pruning expired entries as a side effect (spec TTL scenario: size 2 at
// t=0.5s, size 0 at t=1.1s for a 1s TTL).
func (s *Storage) Size(loc, dom types.Key160) int {
	return len(s.GetFromTracker(loc, dom, nil))
}

// StartSweeper runs an active expiry sweep every interval until the
// returned stop function is called, as a backstop for trackers that are
// never read (so expired entries don't accumulate forever). GetFromTracker
// and Size already expire lazily on every call; this only matters for
// buckets nobody queries again.
func (s *Storage) StartSweeper(interval time.Duration) (stop func()) {
	ticker := s.clk.Ticker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

func (s *Storage) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clk.Now()
	for key, bucket := range s.data {
		for id, e := range bucket {
			if !now.Before(e.expires) {
				delete(bucket, id)
			}
		}
		if len(bucket) == 0 {
			delete(s.data, key)
		}
	}
}
