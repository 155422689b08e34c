// Package trading implements order validation, pricing and atomic
// settlement against the ledger.
package trading

import "sync"

// portfolioLocks serializes ledger writes per portfolio: settlements
// and external cash movements against the same portfolio queue up, so
// cash and positions are always validated against settled state.
// Different portfolios proceed concurrently.
type portfolioLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPortfolioLocks() *portfolioLocks {
	return &portfolioLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for one portfolio, creating it on first use.
// Lock entries are never removed; the set of portfolios is small.
func (p *portfolioLocks) get(portfolioID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.locks[portfolioID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[portfolioID] = l
	}
	return l
}
