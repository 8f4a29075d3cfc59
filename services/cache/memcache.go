package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheService implements CacheService using memcache. Keys are prefixed
// with a namespace (normally the run ID) so entries from one pipeline run are
// never read by another.
type MemcacheService struct {
	client    *memcache.Client
	namespace string
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr, namespace string) *MemcacheService {
	return &MemcacheService{
		client:    memcache.New(serverAddr),
		namespace: namespace,
	}
}

// key hashes the namespaced key: memcache keys are limited to 250 bytes
// without spaces, and university names are neither short nor ASCII.
func (m *MemcacheService) key(key string) string {
	sum := sha1.Sum([]byte(m.namespace + "\x00" + key))
	return "tcas:" + hex.EncodeToString(sum[:])
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(m.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        m.key(key),
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(m.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}
