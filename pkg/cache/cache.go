// Package cache 为数据源抓取结果提供短TTL的两级缓存
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Key 根据操作名和参数生成稳定的缓存键
// 参数按键名排序后序列化，与传入顺序无关
func Key(op string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(op)
	b.WriteByte(':')
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, params[k])
	}

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Cache 带TTL的缓存接口，过期采用惰性淘汰
type Cache interface {
	// Get 返回未过期的缓存值；过期键视为未命中并在本次读取时删除
	Get(key string, ttl time.Duration) ([]byte, bool)
	Set(key string, value []byte)
}

type memoryEntry struct {
	value    []byte
	storedAt time.Time
}

// MemoryCache 进程内缓存，最快，进程退出即失效
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory 创建进程内缓存
func NewMemory() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// Get 返回未过期的缓存值
func (c *MemoryCache) Get(key string, ttl time.Duration) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.storedAt) > ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

// Set 写入缓存值
func (c *MemoryCache) Set(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: value, storedAt: c.now()}
}

// fileEntry 落盘格式
type fileEntry struct {
	Value     []byte    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// FileCache 文件缓存，进程重启后仍可用
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFile 创建文件缓存，dir为空时使用 ~/.cache/asharesync
func NewFile(dir string) (*FileCache, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("获取用户目录失败: %w", err)
		}
		dir = filepath.Join(home, ".cache", "asharesync")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	return &FileCache{dir: dir, now: time.Now}, nil
}

// Get 返回未过期的缓存值，过期文件在本次读取时删除
func (c *FileCache) Get(key string, ttl time.Duration) ([]byte, bool) {
	path := filepath.Join(c.dir, key+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var e fileEntry
	if err := json.Unmarshal(data, &e); err != nil {
		// 损坏的缓存文件当作未命中处理
		os.Remove(path)
		return nil, false
	}
	if c.now().Sub(e.Timestamp) > ttl {
		os.Remove(path)
		return nil, false
	}
	return e.Value, true
}

// Set 写入缓存文件，写失败只影响缓存命中率，静默忽略
func (c *FileCache) Set(key string, value []byte) {
	e := fileEntry{Value: value, Timestamp: c.now()}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(c.dir, key+".json"), data, 0o644)
}

// TieredCache 两级缓存: 先查内存，再查文件；文件命中时回填内存
type TieredCache struct {
	memory *MemoryCache
	file   *FileCache
}

// NewTiered 组合内存与文件缓存，file可以为nil(只用内存)
func NewTiered(memory *MemoryCache, file *FileCache) *TieredCache {
	return &TieredCache{memory: memory, file: file}
}

// Get 依次查内存、文件两级缓存
func (c *TieredCache) Get(key string, ttl time.Duration) ([]byte, bool) {
	if v, ok := c.memory.Get(key, ttl); ok {
		return v, true
	}
	if c.file == nil {
		return nil, false
	}
	v, ok := c.file.Get(key, ttl)
	if ok {
		c.memory.Set(key, v)
	}
	return v, ok
}

// Set 同时写两级缓存
func (c *TieredCache) Set(key string, value []byte) {
	c.memory.Set(key, value)
	if c.file != nil {
		c.file.Set(key, value)
	}
}
