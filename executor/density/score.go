package density

// Score is the targeting weight of one cell. Count is the number of surviving
// ship placements covering the cell, optionally inflated by the hit-adjacency
// skew. Locked marks a cell pinned by the hit-line heuristic; a locked cell
// outranks every unlocked one no matter the counts, and skew multiplication
// never changes a locked cell's rank.
type Score struct {
	Count  int32
	Locked bool
}

// Exceeds reports whether s strictly outranks other. Locked beats unlocked,
// two locked scores tie, and unlocked scores compare by count.
func (s Score) Exceeds(other Score) bool {
	if s.Locked != other.Locked {
		return s.Locked
	}
	if s.Locked {
		return false
	}
	return s.Count > other.Count
}
