// Package policy maps offline page namespaces to their lifetime policies.
package policy

import (
	"slices"
	"sync"
	"time"

	"github.com/lucasew/offlinepages/internal/eviction"
)

const day = 24 * time.Hour

// Built-in namespaces.
const (
	Bookmark       = "bookmark"
	LastN          = "last_n"
	AsyncLoading   = "async_loading"
	CustomTabs     = "custom_tabs"
	Download       = "download"
	NTPSuggestions = "ntp_suggestions"
)

// DefaultPolicy applies to namespaces without an explicit policy.
var DefaultPolicy = eviction.LifetimePolicy{
	PageLimit:        eviction.UnlimitedPages,
	ExpirationPeriod: 30 * day,
}

// DefaultPolicies returns the policies of the built-in namespaces.
func DefaultPolicies() map[string]eviction.LifetimePolicy {
	return map[string]eviction.LifetimePolicy{
		Bookmark:       {PageLimit: eviction.UnlimitedPages, ExpirationPeriod: 7 * day},
		LastN:          {PageLimit: 20, ExpirationPeriod: 2 * day},
		AsyncLoading:   {PageLimit: eviction.UnlimitedPages, ExpirationPeriod: 30 * day},
		CustomTabs:     {PageLimit: eviction.UnlimitedPages, ExpirationPeriod: 2 * day},
		Download:       {PageLimit: eviction.UnlimitedPages, ExpirationPeriod: 0},
		NTPSuggestions: {PageLimit: eviction.UnlimitedPages, ExpirationPeriod: 30 * day},
	}
}

// Provider implements eviction.PolicyProvider over an in-memory table that
// can be replaced at runtime.
type Provider struct {
	mu       sync.RWMutex
	fallback eviction.LifetimePolicy
	policies map[string]eviction.LifetimePolicy
}

// New creates a Provider. Namespaces missing from policies use fallback.
func New(fallback eviction.LifetimePolicy, policies map[string]eviction.LifetimePolicy) *Provider {
	p := &Provider{}
	p.Replace(fallback, policies)
	return p
}

// GetPolicy returns the policy of namespace.
func (p *Provider) GetPolicy(namespace string) eviction.LifetimePolicy {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if policy, ok := p.policies[namespace]; ok {
		return policy
	}
	return p.fallback
}

// Replace swaps the whole policy table.
func (p *Provider) Replace(fallback eviction.LifetimePolicy, policies map[string]eviction.LifetimePolicy) {
	table := make(map[string]eviction.LifetimePolicy, len(policies))
	for ns, policy := range policies {
		table[ns] = policy
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = fallback
	p.policies = table
}

// Namespaces returns the namespaces with an explicit policy, sorted.
func (p *Provider) Namespaces() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.policies))
	for ns := range p.policies {
		names = append(names, ns)
	}
	slices.Sort(names)
	return names
}
