package bigsegments

import (
	"sync/atomic"
	"time"

	"github.com/launchdarkly/ccache"
	"golang.org/x/sync/singleflight"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/internal/evaluation"
	"github.com/flagcore/flagcore/internal/ldlog"
	"github.com/flagcore/flagcore/ldreason"
)

// defaultUserCacheSize and defaultUserCacheTime are used when a BigSegmentsConfig leaves the
// corresponding field at its zero value.
const (
	defaultUserCacheSize      = 1000
	defaultUserCacheTime      = 5 * time.Minute
	defaultStatusPollInterval = 5 * time.Second
	defaultStaleAfter         = 2 * time.Minute
)

// Manager consults a BigSegmentStore for user membership, caching results per hashed user key and
// collapsing concurrent lookups for the same key into a single store call. It also runs a
// background poll of the store's metadata to report Healthy/Stale/StoreError/NotConfigured status.
type Manager struct {
	store        interfaces.BigSegmentStore
	userCache    *ccache.Cache
	userCacheTTL time.Duration
	group        singleflight.Group
	loggers      ldlog.Loggers

	statusPollInterval time.Duration
	staleAfter         time.Duration
	closeCh            chan struct{}
	statusCh           chan ldreason.BigSegmentsStatus

	// cachedStatus holds the last status pollStatus computed (ldreason.BigSegmentsStatus).
	// GetUserMembership reads this instead of hitting the store, so a cache-hit lookup never
	// makes a blocking GetMetadata call of its own.
	cachedStatus atomic.Value
}

// NewManager constructs a Manager from a BigSegmentsConfig. If config.Store is nil, the returned
// Manager reports BigSegmentsStatusNotConfigured for every lookup and never polls.
func NewManager(config interfaces.BigSegmentsConfig, loggers ldlog.Loggers) *Manager {
	userCacheSize := config.UserCacheSize
	if userCacheSize <= 0 {
		userCacheSize = defaultUserCacheSize
	}
	userCacheTTL := config.UserCacheTime
	if userCacheTTL <= 0 {
		userCacheTTL = defaultUserCacheTime
	}
	statusPollInterval := config.StatusPollInterval
	if statusPollInterval <= 0 {
		statusPollInterval = defaultStatusPollInterval
	}
	staleAfter := config.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}

	m := &Manager{
		store:              config.Store,
		userCache:          ccache.New(ccache.Configure().MaxSize(int64(userCacheSize))),
		userCacheTTL:       userCacheTTL,
		loggers:            loggers,
		statusPollInterval: statusPollInterval,
		staleAfter:         staleAfter,
		closeCh:            make(chan struct{}),
		statusCh:           make(chan ldreason.BigSegmentsStatus, 1),
	}
	if m.store != nil {
		m.cachedStatus.Store(m.currentStatus())
		go m.pollStatus()
	} else {
		m.cachedStatus.Store(ldreason.BigSegmentsStatusNotConfigured)
	}
	return m
}

// GetUserMembership returns the cached or freshly-fetched membership for userKey, along with the
// current store status. It satisfies evaluation.BigSegmentProvider.
func (m *Manager) GetUserMembership(userKey string) (evaluation.BigSegmentMembership, ldreason.BigSegmentsStatus) {
	if m.store == nil {
		return nil, ldreason.BigSegmentsStatusNotConfigured
	}

	status := m.readStatus()
	hash := HashForUserKey(userKey)

	if item := m.userCache.Get(hash); item != nil && !item.Expired() {
		membership, _ := item.Value().(evaluation.BigSegmentMembership)
		return membership, status
	}

	result, err, _ := m.group.Do(hash, func() (interface{}, error) {
		membership, err := m.store.GetUserMembership(hash)
		if err != nil {
			return nil, err
		}
		m.userCache.Set(hash, membership, m.userCacheTTL)
		return membership, nil
	})
	if err != nil {
		m.loggers.Warnf("big segments: could not query store for user: %s", err)
		return nil, ldreason.BigSegmentsStatusStoreError
	}
	membership, _ := result.(evaluation.BigSegmentMembership)
	return membership, status
}

// readStatus returns the status pollStatus last computed, without touching the store.
func (m *Manager) readStatus() ldreason.BigSegmentsStatus {
	if v := m.cachedStatus.Load(); v != nil {
		return v.(ldreason.BigSegmentsStatus)
	}
	return ldreason.BigSegmentsStatusNotConfigured
}

func (m *Manager) currentStatus() ldreason.BigSegmentsStatus {
	meta, err := m.store.GetMetadata()
	if err != nil {
		return ldreason.BigSegmentsStatusStoreError
	}
	if meta.LastUpToDate == 0 {
		return ldreason.BigSegmentsStatusStale
	}
	age := time.Since(time.UnixMilli(int64(meta.LastUpToDate)))
	if age > m.staleAfter {
		return ldreason.BigSegmentsStatusStale
	}
	return ldreason.BigSegmentsStatusHealthy
}

func (m *Manager) pollStatus() {
	ticker := time.NewTicker(m.statusPollInterval)
	defer ticker.Stop()

	last := m.readStatus()
	for {
		select {
		case <-m.closeCh:
			return
		case <-ticker.C:
			current := m.currentStatus()
			m.cachedStatus.Store(current)
			if current != last {
				select {
				case m.statusCh <- current:
				default:
				}
				last = current
			}
		}
	}
}

// StatusChanges returns a channel that receives a value whenever the store's computed status
// changes. The channel is never closed; Close only stops the poller that sends on it.
func (m *Manager) StatusChanges() <-chan ldreason.BigSegmentsStatus {
	return m.statusCh
}

// Close stops the background status poller and the underlying store.
func (m *Manager) Close() error {
	select {
	case <-m.closeCh:
	default:
		close(m.closeCh)
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}
