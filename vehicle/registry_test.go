package vehicle

import (
	"sync"
	"testing"
)

// TestRegistryLastWriteWins 验证重复注册整体替换旧值，清除后为空。
func TestRegistryLastWriteWins(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Get(); ok {
		t.Fatalf("expected empty registry")
	}

	r.Set("c1", Target{Host: "10.0.0.5", Port: 6000})
	r.Set("c2", Target{Host: "10.0.0.9", Port: 7000})
	got, ok := r.Get()
	if !ok || got.Host != "10.0.0.9" || got.Port != 7000 {
		t.Fatalf("got %+v ok=%v", got, ok)
	}

	r.Clear()
	if _, ok := r.Get(); ok {
		t.Fatalf("expected empty after clear")
	}
	// Clear 幂等
	r.Clear()
}

// TestRegistryClearOwner 验证只有注册归属连接的断开才会注销目标。
func TestRegistryClearOwner(t *testing.T) {
	r := NewRegistry()
	r.Set("owner", Target{Host: "10.0.0.5", Port: 6000})

	if r.ClearOwner("someone-else") {
		t.Fatalf("unexpected clear by non-owner")
	}
	if _, ok := r.Get(); !ok {
		t.Fatalf("target lost")
	}

	if !r.ClearOwner("owner") {
		t.Fatalf("owner clear failed")
	}
	if _, ok := r.Get(); ok {
		t.Fatalf("expected empty after owner clear")
	}
	if r.ClearOwner("owner") {
		t.Fatalf("expected no-op on second clear")
	}
}

// TestRegistryConcurrentAccess 验证并发 set/get/clear 下读方不会观察到半写状态。
func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	targets := []Target{
		{Host: "10.0.0.1", Port: 6001},
		{Host: "10.0.0.2", Port: 6002},
		{Host: "10.0.0.3", Port: 6003},
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				r.Set("w", targets[(n+j)%len(targets)])
				if j%7 == 0 {
					r.Clear()
				}
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 2000; j++ {
			got, ok := r.Get()
			if !ok {
				continue
			}
			valid := false
			for _, want := range targets {
				if got == want {
					valid = true
					break
				}
			}
			if !valid {
				t.Errorf("torn read: %+v", got)
				return
			}
		}
	}()
	wg.Wait()
}
