// Package ranking keeps the latest composite score of every account per peer
// group and answers where a score falls among its peers.
package ranking

import "sync"

// minPeers is the smallest group size for which a percentile is meaningful.
const minPeers = 2

type board struct {
	root *node
	byID map[string]scoreFP
}

// Ranker is safe for concurrent use.
type Ranker struct {
	mu     sync.RWMutex
	groups map[string]*board
}

// New creates an empty Ranker.
func New() *Ranker {
	return &Ranker{groups: make(map[string]*board)}
}

// Record stores score as the latest composite of id within group and returns
// the score it replaced, if any.
func (r *Ranker) Record(group, id string, score float64) (previous float64, ok bool) {
	ns := toFixedPoint(score)

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.groups[group]
	if b == nil {
		b = &board{byID: make(map[string]scoreFP)}
		r.groups[group] = b
	}
	if old, exists := b.byID[id]; exists {
		b.root = deleteNode(b.root, id, old)
		previous, ok = toFloat(old), true
	}
	b.byID[id] = ns
	b.root = insert(b.root, id, ns)
	return previous, ok
}

// Latest returns the recorded score of id within group.
func (r *Ranker) Latest(group, id string) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b := r.groups[group]; b != nil {
		if s, ok := b.byID[id]; ok {
			return toFloat(s), nil
		}
	}
	return 0, ErrNotFound
}

// Percentile places score among the recorded scores of group using the
// mid-rank convention: the share strictly below plus half the ties, on a
// 0-100 scale. ok is false when the group has fewer than two members.
func (r *Ranker) Percentile(group string, score float64) (float64, bool) {
	ns := toFixedPoint(score)

	r.mu.RLock()
	defer r.mu.RUnlock()

	b := r.groups[group]
	if b == nil || len(b.byID) < minPeers {
		return 0, false
	}
	below := countBelow(b.root, ns, false)
	atOrBelow := countBelow(b.root, ns, true)
	n := float64(nsize(b.root))
	return 100 * (float64(below) + float64(atOrBelow-below)/2) / n, true
}

// Count returns the number of members of group.
func (r *Ranker) Count(group string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if b := r.groups[group]; b != nil {
		return len(b.byID)
	}
	return 0
}
