package di

import (
	"sync"
	"sync/atomic"
	"testing"
)

type greeter struct{ name string }

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := NewContainer()
	c.Register("name", "arb")

	var builds atomic.Int32
	tok := NewToken[*greeter]("test.Greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) *greeter {
		builds.Add(1)
		return &greeter{name: sr.Get("name").(string)}
	})

	if builds.Load() != 0 {
		t.Fatal("factory ran before first Get")
	}

	var wg sync.WaitGroup
	results := make([]*greeter, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = GetToken(c, tok)
		}(i)
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("factory ran %d times, want 1", builds.Load())
	}
	for _, g := range results {
		if g != results[0] {
			t.Fatal("expected the same instance for every Get")
		}
	}
	if results[0].name != "arb" {
		t.Errorf("name = %q", results[0].name)
	}
}

func TestGet_UnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown service")
		}
	}()
	NewContainer().Get("missing")
}

func TestFactory_ResolvesDependencies(t *testing.T) {
	c := NewContainer()
	a := NewToken[int]("a")
	b := NewToken[int]("b")
	RegisterToken(c, a, func(ServiceRegistry) int { return 20 })
	RegisterToken(c, b, func(sr ServiceRegistry) int { return GetToken(sr, a) + 1 })

	if got := GetToken(c, b); got != 21 {
		t.Errorf("b = %d, want 21", got)
	}
	if !c.Has("a") || c.Has("c") {
		t.Error("Has returned wrong result")
	}
}
