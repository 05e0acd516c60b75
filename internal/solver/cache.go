package solver

import "github.com/gnoverse/impact/internal/formula"

// Checker is a satisfiability oracle with a session lifetime.
type Checker interface {
	IsUnsat(f formula.Formula) (bool, error)
	Close() error
}

// CacheStats counts cache lookups.
type CacheStats struct {
	Hits   int
	Misses int
}

// CachingProver memoizes IsUnsat answers by formula text. Errors are not
// cached.
type CachingProver struct {
	inner Checker
	cache map[string]bool
	stats CacheStats
}

// NewCachingProver wraps inner.
func NewCachingProver(inner Checker) *CachingProver {
	return &CachingProver{inner: inner, cache: make(map[string]bool)}
}

func (p *CachingProver) IsUnsat(f formula.Formula) (bool, error) {
	key := f.String()
	if unsat, ok := p.cache[key]; ok {
		p.stats.Hits++
		return unsat, nil
	}
	unsat, err := p.inner.IsUnsat(f)
	if err != nil {
		return false, err
	}
	p.stats.Misses++
	p.cache[key] = unsat
	return unsat, nil
}

// Close closes the wrapped checker.
func (p *CachingProver) Close() error {
	return p.inner.Close()
}

// Stats returns the lookup counters.
func (p *CachingProver) Stats() CacheStats { return p.stats }
