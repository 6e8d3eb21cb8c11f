package planner

// Hash is an opaque fingerprint of some observable (printer info,
// file listing). Any comparable value works; concrete printers use
// whatever hash they already compute.
type Hash [32]byte

// ChangeTracker collapses a stream of observed hashes into a single
// "something changed, tell the server once" flag. It starts clean,
// with no hash recorded, so the first observation is always a change.
type ChangeTracker struct {
	last    Hash
	hasLast bool
	dirty   bool
}

// SetHash records a freshly observed hash. It returns true and marks
// the tracker dirty if the hash differs from the last recorded one
// (or none was recorded yet). It does not clear dirty; only
// MarkClean does that.
func (c *ChangeTracker) SetHash(h Hash) bool {
	if c.hasLast && h == c.last {
		return false
	}
	c.last = h
	c.hasLast = true
	c.dirty = true
	return true
}

// MarkDirty forces the tracker into the dirty state regardless of hash.
func (c *ChangeTracker) MarkDirty() {
	c.dirty = true
}

// MarkClean records the last observed hash as "reported" and clears
// the dirty flag.
func (c *ChangeTracker) MarkClean() {
	c.dirty = false
}

// IsDirty reports whether the tracker has unreported changes.
func (c *ChangeTracker) IsDirty() bool {
	return c.dirty
}
