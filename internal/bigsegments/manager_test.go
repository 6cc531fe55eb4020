package bigsegments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/ldlog"
	"github.com/flagcore/flagcore/ldreason"
)

type fakeMembership struct {
	included map[string]bool
}

func (m fakeMembership) CheckMembership(segmentKey string) *bool {
	if v, ok := m.included[segmentKey]; ok {
		return &v
	}
	return nil
}

type fakeStore struct {
	lastUpToDate uint64
	metaErr      error
	membership   map[string]interfaces.BigSegmentMembership
	queries      int
	metaQueries  int
}

func (s *fakeStore) GetMetadata() (interfaces.BigSegmentStoreMetadata, error) {
	s.metaQueries++
	if s.metaErr != nil {
		return interfaces.BigSegmentStoreMetadata{}, s.metaErr
	}
	return interfaces.BigSegmentStoreMetadata{LastUpToDate: s.lastUpToDate}, nil
}

func (s *fakeStore) GetUserMembership(userHash string) (interfaces.BigSegmentMembership, error) {
	s.queries++
	return s.membership[userHash], nil
}

func (s *fakeStore) Close() error { return nil }

func TestGetUserMembershipNotConfigured(t *testing.T) {
	m := NewManager(interfaces.BigSegmentsConfig{}, ldlog.NewDisabledLoggers())
	defer m.Close()

	membership, status := m.GetUserMembership("user1")
	assert.Nil(t, membership)
	assert.Equal(t, ldreason.BigSegmentsStatusNotConfigured, status)
}

func TestGetUserMembershipCachesResult(t *testing.T) {
	hash := HashForUserKey("user1")
	store := &fakeStore{
		lastUpToDate: uint64(time.Now().UnixMilli()),
		membership:   map[string]interfaces.BigSegmentMembership{hash: fakeMembership{included: map[string]bool{"seg1": true}}},
	}
	m := NewManager(interfaces.BigSegmentsConfig{Store: store}, ldlog.NewDisabledLoggers())
	defer m.Close()

	membership, status := m.GetUserMembership("user1")
	require.NotNil(t, membership)
	assert.Equal(t, ldreason.BigSegmentsStatusHealthy, status)
	included := membership.CheckMembership("seg1")
	require.NotNil(t, included)
	assert.True(t, *included)

	_, _ = m.GetUserMembership("user1")
	assert.Equal(t, 1, store.queries, "second lookup should be served from cache")
	assert.Equal(t, 1, store.metaQueries,
		"status must come from the background poller's cache, not a per-lookup GetMetadata call")
}

func TestGetUserMembershipDoesNotFetchMetadataPerLookup(t *testing.T) {
	hash := HashForUserKey("user1")
	store := &fakeStore{
		lastUpToDate: uint64(time.Now().UnixMilli()),
		membership:   map[string]interfaces.BigSegmentMembership{hash: fakeMembership{included: map[string]bool{"seg1": true}}},
	}
	m := NewManager(interfaces.BigSegmentsConfig{Store: store}, ldlog.NewDisabledLoggers())
	defer m.Close()

	for i := 0; i < 5; i++ {
		_, status := m.GetUserMembership("user2") // no membership stored: the nil result is cached after the first lookup
		assert.Equal(t, ldreason.BigSegmentsStatusHealthy, status)
	}
	assert.Equal(t, 1, store.metaQueries,
		"GetMetadata should only run once, from NewManager's initial status fetch, not once per lookup")
}

func TestGetUserMembershipStaleWhenOld(t *testing.T) {
	store := &fakeStore{lastUpToDate: uint64(time.Now().Add(-time.Hour).UnixMilli())}
	m := NewManager(interfaces.BigSegmentsConfig{Store: store, StaleAfter: time.Minute}, ldlog.NewDisabledLoggers())
	defer m.Close()

	_, status := m.GetUserMembership("user1")
	assert.Equal(t, ldreason.BigSegmentsStatusStale, status)
}
