package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestKeyOrderIndependent(t *testing.T) {
	a := Key("stock_info", map[string]string{"code": "000001", "source": "em"})
	b := Key("stock_info", map[string]string{"source": "em", "code": "000001"})
	if a != b {
		t.Errorf("参数顺序不同时键不一致: %s != %s", a, b)
	}
}

func TestKeyDistinguishesOpAndParams(t *testing.T) {
	base := Key("stock_info", map[string]string{"code": "000001"})

	if got := Key("stock_hist", map[string]string{"code": "000001"}); got == base {
		t.Error("不同操作名应生成不同的键")
	}
	if got := Key("stock_info", map[string]string{"code": "600000"}); got == base {
		t.Error("不同参数应生成不同的键")
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemory()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", []byte("v"))

	if _, ok := c.Get("k", time.Minute); !ok {
		t.Fatal("未过期的键应命中")
	}

	// 推过TTL后视为未命中，且惰性删除
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("k", time.Minute); ok {
		t.Fatal("过期的键不应命中")
	}
	if len(c.entries) != 0 {
		t.Error("过期键应在读取时被删除")
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("创建文件缓存失败: %v", err)
	}

	c.Set("k", []byte(`{"最新":"10.5"}`))

	v, ok := c.Get("k", time.Minute)
	if !ok {
		t.Fatal("文件缓存应命中")
	}
	if !bytes.Equal(v, []byte(`{"最新":"10.5"}`)) {
		t.Errorf("缓存值不一致: %s", v)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	c, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("创建文件缓存失败: %v", err)
	}
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k", []byte("v"))
	now = now.Add(time.Hour)

	if _, ok := c.Get("k", time.Minute); ok {
		t.Error("过期的文件缓存不应命中")
	}
}

func TestTieredRepopulatesMemory(t *testing.T) {
	file, err := NewFile(t.TempDir())
	if err != nil {
		t.Fatalf("创建文件缓存失败: %v", err)
	}
	mem := NewMemory()
	c := NewTiered(mem, file)

	// 只写文件层，模拟进程重启后内存为空
	file.Set("k", []byte("v"))

	if _, ok := c.Get("k", time.Minute); !ok {
		t.Fatal("文件层命中时两级缓存应命中")
	}

	// 文件命中后应回填内存层
	if _, ok := mem.Get("k", time.Minute); !ok {
		t.Error("文件命中后内存层应被回填")
	}
}

func TestTieredMemoryOnly(t *testing.T) {
	c := NewTiered(NewMemory(), nil)

	c.Set("k", []byte("v"))
	if _, ok := c.Get("k", time.Minute); !ok {
		t.Error("纯内存模式应命中")
	}
}
