package access

import "sync"

// Registry holds access rules kept sorted by priority (descending) at
// insertion time. Rules with equal priority keep registration order.
type Registry struct {
	mu    sync.RWMutex
	rules []*Rule
}

// NewRegistry creates an empty rule registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register inserts a rule at its priority position
func (r *Registry) Register(rule *Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos := len(r.rules)
	for i, existing := range r.rules {
		if existing.Priority < rule.Priority {
			pos = i
			break
		}
	}

	r.rules = append(r.rules, nil)
	copy(r.rules[pos+1:], r.rules[pos:])
	r.rules[pos] = rule
}

// Remove deletes a rule by ID
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, rule := range r.rules {
		if rule.ID == id {
			r.rules = append(r.rules[:i], r.rules[i+1:]...)
			return true
		}
	}
	return false
}

// Rules returns the rules in evaluation order
func (r *Registry) Rules() []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of registered rules
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}
