package aggregates

import "strings"

// Guard names the concurrency control an aggregate applies to every write.
type Guard string

const (
	// GuardVersionCAS compares the caller's expected version and bumps it in the same UPDATE.
	GuardVersionCAS Guard = "version_cas"
	// GuardAdvisoryLock serializes writers on a per-key transaction lock (postgres only).
	GuardAdvisoryLock Guard = "advisory_lock"
)

// Contract describes the table an aggregate owns, how it guards writes and which write operations
// it exposes. Operation names double as metric labels.
type Contract struct {
	Name       string
	Table      string
	Guard      Guard
	Operations []string
}

// Aggregate is implemented by every write boundary.
type Aggregate interface {
	Contract() Contract
}

// Op returns the qualified operation name, e.g. "Performance.ReviewDraft.Transition". It panics on
// an operation the contract does not declare so a typo fails the first test that reaches it.
func (c Contract) Op(name string) string {
	name = strings.TrimSpace(name)
	for _, op := range c.Operations {
		if op == name {
			return c.Name + "." + name
		}
	}
	panic("aggregates: " + c.Name + " has no operation " + name)
}

// LockKey scopes an advisory lock to the contract's table.
func (c Contract) LockKey(parts ...string) string {
	return c.Table + ":" + strings.Join(parts, ":")
}
