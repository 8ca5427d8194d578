package policy

import (
	"testing"
	"time"

	"github.com/lucasew/offlinepages/internal/eviction"
)

func TestProvider_GetPolicy(t *testing.T) {
	p := New(DefaultPolicy, DefaultPolicies())

	got := p.GetPolicy(LastN)
	if got.PageLimit != 20 {
		t.Errorf("expected last_n page limit 20, got %d", got.PageLimit)
	}

	got = p.GetPolicy("unknown")
	if got != DefaultPolicy {
		t.Errorf("expected default policy for unknown namespace, got %+v", got)
	}
}

func TestProvider_Replace(t *testing.T) {
	initial := map[string]eviction.LifetimePolicy{
		"a": {PageLimit: 1, ExpirationPeriod: time.Hour},
	}
	p := New(DefaultPolicy, initial)

	// Mutating the caller's map must not leak into the provider.
	initial["a"] = eviction.LifetimePolicy{PageLimit: 99}
	if got := p.GetPolicy("a"); got.PageLimit != 1 {
		t.Fatalf("expected page limit 1, got %d", got.PageLimit)
	}

	fallback := eviction.LifetimePolicy{PageLimit: 3}
	p.Replace(fallback, map[string]eviction.LifetimePolicy{
		"b": {PageLimit: 2},
	})

	if got := p.GetPolicy("a"); got != fallback {
		t.Errorf("expected fallback after replace, got %+v", got)
	}
	if got := p.GetPolicy("b"); got.PageLimit != 2 {
		t.Errorf("expected page limit 2, got %d", got.PageLimit)
	}
}

func TestProvider_Namespaces(t *testing.T) {
	p := New(DefaultPolicy, map[string]eviction.LifetimePolicy{
		"z": {PageLimit: 1},
		"a": {PageLimit: 2},
	})

	names := p.Namespaces()
	if len(names) != 2 || names[0] != "a" || names[1] != "z" {
		t.Errorf("expected [a z], got %v", names)
	}
}
