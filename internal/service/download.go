package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joeblew999/plat-mapper/internal/measure"
)

// ErrDownloadNotFound is returned for unknown, expired or consumed tokens.
var ErrDownloadNotFound = errors.New("download not found")

// DefaultDownloadTTL is how long a staged export can be fetched.
const DefaultDownloadTTL = 10 * time.Minute

type stagedDownload struct {
	d       measure.Download
	expires time.Time
}

// DownloadStore stages exports behind one-shot tokens.
type DownloadStore struct {
	ttl   time.Duration
	now   func() time.Time
	items map[string]stagedDownload
	mu    sync.Mutex
}

// NewDownloadStore creates a store whose tokens expire after ttl.
func NewDownloadStore(ttl time.Duration) *DownloadStore {
	if ttl <= 0 {
		ttl = DefaultDownloadTTL
	}
	return &DownloadStore{ttl: ttl, now: time.Now, items: make(map[string]stagedDownload)}
}

// Put stages a download and returns its token.
func (s *DownloadStore) Put(d measure.Download) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	token := uuid.NewString()
	s.items[token] = stagedDownload{d: d, expires: s.now().Add(s.ttl)}
	return token
}

// Take returns a staged download and releases it.
func (s *DownloadStore) Take(token string) (measure.Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[token]
	delete(s.items, token)
	if !ok || s.now().After(item.expires) {
		return measure.Download{}, ErrDownloadNotFound
	}
	return item.d, nil
}

// Len returns the number of staged downloads.
func (s *DownloadStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *DownloadStore) sweep() {
	now := s.now()
	for k, v := range s.items {
		if now.After(v.expires) {
			delete(s.items, k)
		}
	}
}
