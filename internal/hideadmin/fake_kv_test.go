package hideadmin

import (
	"context"
	"sync"
)

// memKV 为测试用的内存 KV，同时实现 VersionStore。
type memKV struct {
	mu       sync.Mutex
	data     map[string]string
	versions map[string]int64
	getErr   error
	putErr   error
	gets     int
	puts     int
}

func newMemKV() *memKV {
	return &memKV{data: map[string]string{}, versions: map[string]int64{}}
}

func (m *memKV) GetAppSetting(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) UpsertAppSetting(ctx context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.data[key] = value
	return nil
}

func (m *memKV) BumpCacheInvalidation(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[key]++
	return nil
}

func (m *memKV) GetCacheInvalidationVersion(ctx context.Context, key string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.versions[key]
	return v, ok, nil
}

func (m *memKV) set(key, value string) {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
}

func (m *memKV) setGetErr(err error) {
	m.mu.Lock()
	m.getErr = err
	m.mu.Unlock()
}

func (m *memKV) setPutErr(err error) {
	m.mu.Lock()
	m.putErr = err
	m.mu.Unlock()
}

func (m *memKV) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

var testDefaults = Defaults{
	FeatureEnabled: true,
	LoginSlug:      DefaultLoginSlug,
	NotFoundURL:    "https://example.com/404",
}
