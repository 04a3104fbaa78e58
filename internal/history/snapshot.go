package history

import "github.com/i474232898/weather-lookup/internal/weather"

// Row is a record plus its row-level state.
type Row struct {
	weather.QueryRecord
	Expanded bool
	Editing  bool
	Pending  bool
}

// Snapshot is an immutable copy of the table used for rendering.
type Snapshot struct {
	Status   Status
	Attempt  int
	Error    string
	Rows     []Row
	HasMore  bool
	Edit     *Edit
	Pending  int64
	Deleting bool
}

// Empty reports a finished load that returned nothing.
func (s Snapshot) Empty() bool {
	return len(s.Rows) == 0 && s.Status == StatusLoaded
}

// Placeholder reports whether the list is still on its first fetch and
// nothing can be shown yet.
func (s Snapshot) Placeholder() bool {
	return len(s.Rows) == 0 && (s.Status.InProgress() || s.Status == StatusIdle)
}

// Row returns the row for id.
func (s Snapshot) Row(id int64) (Row, bool) {
	for _, r := range s.Rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

// Snapshot copies the current state.
func (t *Table) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		Status:   t.status,
		Attempt:  t.attempt,
		Error:    t.err,
		HasMore:  t.hasMore,
		Pending:  t.pending,
		Deleting: t.deleting,
		Rows:     make([]Row, 0, len(t.records)),
	}
	if t.edit != nil {
		e := *t.edit
		s.Edit = &e
	}
	for _, r := range t.records {
		s.Rows = append(s.Rows, Row{
			QueryRecord: r,
			Expanded:    r.ID == t.expanded,
			Editing:     t.edit != nil && t.edit.ID == r.ID,
			Pending:     r.ID == t.pending,
		})
	}
	return s
}
