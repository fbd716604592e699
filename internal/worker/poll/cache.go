package poll

import (
	"sync"
	"time"
)

// Entry は1セッション分の未読数キャッシュ。
type Entry struct {
	Count     int64
	FetchedAt time.Time
}

// Cache はセッションIDをキーとする未読数のインメモリキャッシュ。
// ポーラーが書き込み、ナビゲーションエンドポイントが読み取る。
// 値はポーリング間隔の分だけ古い可能性がある。
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache は空のCacheを生成する。
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]Entry),
	}
}

// Get は指定セッションのキャッシュ済み未読数を返す。
// キャッシュが存在しない場合は2番目の戻り値がfalseになる。
func (c *Cache) Get(sessionID string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[sessionID]
	return entry, ok
}

// Set は指定セッションの未読数を記録する。
func (c *Cache) Set(sessionID string, count int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sessionID] = Entry{
		Count:     count,
		FetchedAt: time.Now(),
	}
}

// Delete は指定セッションのキャッシュを削除する。
func (c *Cache) Delete(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sessionID)
}

// Retain はactiveIDsに含まれないセッションのキャッシュをまとめて削除する。
// ログアウトや期限切れで消えたセッションのエントリをポーリングサイクルごとに回収する。
func (c *Cache) Retain(activeIDs map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.entries {
		if _, ok := activeIDs[id]; !ok {
			delete(c.entries, id)
		}
	}
}

// Len は現在のエントリ数を返す。テストおよびメトリクス用。
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
