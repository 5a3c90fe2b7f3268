package cache

import (
	"errors"
	"testing"
	"time"
)

func TestGetInstance(t *testing.T) {
	inst := GetInstance()
	if inst == nil {
		t.Fatal("GetInstance returned nil")
	}
	if GetInstance() != inst {
		t.Error("GetInstance should return same instance")
	}
}

func TestSet_Get(t *testing.T) {
	c := NewCache()
	c.Set("process|SMT", 7, 0, nil)
	got, ok := c.Get("process|SMT")
	if !ok {
		t.Fatal("Get: want true")
	}
	if got != 7 {
		t.Errorf("Get = %v, want 7", got)
	}
	c.Delete("process|SMT")
	if _, ok := c.Get("process|SMT"); ok {
		t.Error("Delete: key should be gone")
	}
}

func TestTTL(t *testing.T) {
	c := NewCache()
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", "v", time.Minute, nil)
	if _, ok := c.Get("k"); !ok {
		t.Fatal("fresh key missing")
	}
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get("k"); ok {
		t.Error("expired key still present")
	}
}

func TestDeleteByTag(t *testing.T) {
	c := NewCache()
	c.Set("a", 1, 0, []string{"catalog"})
	c.Set("b", 2, 0, []string{"catalog", "route"})
	c.Set("c", 3, 0, nil)
	c.DeleteByTag("catalog")
	if _, ok := c.Get("a"); ok {
		t.Error("a should be gone")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("b should be gone")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should remain")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewCache()
	calls := 0
	load := func() (interface{}, error) {
		calls++
		return "loaded", nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(Key("route", "P-100"), 0, nil, load)
		if err != nil || v != "loaded" {
			t.Fatalf("GetOrLoad = %v, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("load calls = %d, want 1", calls)
	}

	boom := errors.New("boom")
	if _, err := c.GetOrLoad("x", 0, nil, func() (interface{}, error) { return nil, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if _, ok := c.Get("x"); ok {
		t.Error("failed load must not be cached")
	}
}

func TestKey(t *testing.T) {
	if got := Key("cap", "P-1", 3); got != "cap|P-1|3" {
		t.Errorf("Key = %q", got)
	}
}
