package workout

import "github.com/claude/ironsession/internal/models"

type setSlot struct {
	exercise string
	set      int
}

// Ledger is the append-only, deduplicated list of sets completed in the
// current session, kept in LogSet order. It is not safe for concurrent use;
// the coordinator guards it.
type Ledger struct {
	entries []models.SetLogRow
	seen    map[setSlot]struct{}
	counts  map[string]int
	highest map[string]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		seen:    make(map[setSlot]struct{}),
		counts:  make(map[string]int),
		highest: make(map[string]int),
	}
}

// Append adds r unless its (exercise, set number) is already present.
// Returns false for a duplicate.
func (l *Ledger) Append(r models.SetLogRow) bool {
	slot := setSlot{r.ExerciseName, r.SetNumber}
	if _, ok := l.seen[slot]; ok {
		return false
	}
	l.seen[slot] = struct{}{}
	l.entries = append(l.entries, r)
	l.counts[r.ExerciseName]++
	if r.SetNumber > l.highest[r.ExerciseName] {
		l.highest[r.ExerciseName] = r.SetNumber
	}
	return true
}

// Has reports whether the set was already logged.
func (l *Ledger) Has(exercise string, setNumber int) bool {
	_, ok := l.seen[setSlot{exercise, setNumber}]
	return ok
}

// CountFor returns the number of sets logged for exercise.
func (l *Ledger) CountFor(exercise string) int {
	return l.counts[exercise]
}

// NextSetNumber returns the 1-based set number expected next for exercise.
func (l *Ledger) NextSetNumber(exercise string) int {
	return l.highest[exercise] + 1
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a copy of the entries in insertion order.
func (l *Ledger) Entries() []models.SetLogRow {
	out := make([]models.SetLogRow, len(l.entries))
	copy(out, l.entries)
	return out
}
