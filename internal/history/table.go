// Package history implements the stored-query table: paginated loading with
// bounded retry, single-row editing, payload expansion and confirmed delete.
//
// A Table is shared by the web frontend and the terminal client. All methods
// are safe for concurrent use; blocking operations take a context and
// observers are notified after every state change.
package history

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/retry"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// Status is the list-level state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusConnecting Status = "connecting"
	StatusLoaded     Status = "loaded"
	StatusError      Status = "error"
)

// InProgress reports whether a page fetch is in flight.
func (s Status) InProgress() bool {
	return s == StatusLoading || s == StatusConnecting
}

const (
	DefaultPageSize      = 20
	DefaultRetryAttempts = 4
	DefaultRetryDelay    = 2 * time.Second
)

// MsgDateOrder is the inline edit error for an inverted date range.
const MsgDateOrder = "Start date must be before or equal to end date."

var (
	ErrNotFound   = errors.New("record not in table")
	ErrNotEditing = errors.New("no row is being edited")
	ErrSaving     = errors.New("save already in flight")
	ErrDateOrder  = errors.New("start date after end date")
	ErrNoPending  = errors.New("no delete pending")
	ErrBusy       = errors.New("page fetch already in flight")
)

// Store is the slice of the API client the table needs.
type Store interface {
	ListQueries(ctx context.Context, skip, limit int) ([]weather.QueryRecord, error)
	UpdateQuery(ctx context.Context, id int64, patch weather.QueryUpdate) (weather.QueryRecord, error)
	DeleteQuery(ctx context.Context, id int64) error
}

// Options configures a Table. Zero values take the defaults above.
type Options struct {
	PageSize int
	Retry    retry.Policy
	// OnChange is called, outside the lock, after every state change.
	OnChange func(Snapshot)
}

// EditForm holds the values of the row being edited.
type EditForm struct {
	Location  string
	StartDate string
	EndDate   string
}

// Edit is the single active edit target.
type Edit struct {
	ID     int64
	Form   EditForm
	Saving bool
	Err    string
}

// Table is the query history state machine.
type Table struct {
	store    Store
	pageSize int
	policy   retry.Policy
	onChange func(Snapshot)

	mu       sync.Mutex
	records  []weather.QueryRecord
	status   Status
	attempt  int
	err      string
	hasMore  bool
	loadSeq  uint64
	edit     *Edit
	expanded int64
	pending  int64
	deleting bool
}

// New creates a Table in the idle state; call Load to fetch the first page.
func New(store Store, opts Options) *Table {
	size := opts.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	policy := opts.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.Fixed(DefaultRetryAttempts, DefaultRetryDelay)
	}
	return &Table{
		store:    store,
		pageSize: size,
		policy:   policy,
		onChange: opts.OnChange,
		status:   StatusIdle,
	}
}

// PageSize returns the configured page size.
func (t *Table) PageSize() int { return t.pageSize }

// Load fetches the first page, replacing the list.
func (t *Table) Load(ctx context.Context) error {
	return t.load(ctx, 0, false)
}

// Reload replaces the list starting at offset zero. A fetch already in
// flight is superseded and its result discarded.
func (t *Table) Reload(ctx context.Context) error {
	return t.load(ctx, 0, false)
}

// ReloadHook returns a callback the parent view can invoke to force a
// first-page reload, e.g. after creating a record elsewhere on the page.
func (t *Table) ReloadHook() func(context.Context) error {
	return t.Reload
}

// LoadMore appends the next page to the list.
func (t *Table) LoadMore(ctx context.Context) error {
	t.mu.Lock()
	if t.status.InProgress() {
		t.mu.Unlock()
		return ErrBusy
	}
	skip := len(t.records)
	t.mu.Unlock()
	return t.load(ctx, skip, true)
}

func (t *Table) load(ctx context.Context, skip int, appendPage bool) error {
	t.mu.Lock()
	t.loadSeq++
	seq := t.loadSeq
	t.status = StatusLoading
	t.attempt = 1
	t.err = ""
	t.mu.Unlock()
	t.notify()

	var page []weather.QueryRecord
	err := retry.Do(ctx, t.policy, func(ctx context.Context, attempt int) error {
		p, err := t.store.ListQueries(ctx, skip, t.pageSize)
		if err != nil {
			return err
		}
		page = p
		return nil
	}, func(attempt int, err error) {
		log.Printf("INFO: history page skip=%d attempt %d failed: %v", skip, attempt, err)
		t.mu.Lock()
		if seq == t.loadSeq {
			t.status = StatusConnecting
			t.attempt = attempt + 1
		}
		t.mu.Unlock()
		t.notify()
	})

	t.mu.Lock()
	if seq != t.loadSeq {
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		t.status = StatusError
		t.err = apiclient.Message(lastFailure(err))
		t.mu.Unlock()
		t.notify()
		log.Printf("ERROR: history page skip=%d: %v", skip, err)
		return err
	}

	if appendPage {
		t.records = append(t.records, page...)
	} else {
		t.records = page
		t.prune()
	}
	t.hasMore = len(page) == t.pageSize
	t.status = StatusLoaded
	t.mu.Unlock()
	t.notify()
	return nil
}

func lastFailure(err error) error {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Last
	}
	return err
}

// prune drops row-level state pointing at records no longer listed.
func (t *Table) prune() {
	if t.edit != nil && t.indexOf(t.edit.ID) < 0 {
		t.edit = nil
	}
	if t.expanded != 0 && t.indexOf(t.expanded) < 0 {
		t.expanded = 0
	}
	if t.pending != 0 && t.indexOf(t.pending) < 0 {
		t.pending = 0
	}
}

func (t *Table) indexOf(id int64) int {
	for i, r := range t.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// StartEdit makes id the active edit target, replacing any other.
func (t *Table) StartEdit(id int64) error {
	t.mu.Lock()
	i := t.indexOf(id)
	if i < 0 {
		t.mu.Unlock()
		return ErrNotFound
	}
	if t.edit != nil && t.edit.Saving {
		t.mu.Unlock()
		return ErrSaving
	}
	r := t.records[i]
	t.edit = &Edit{
		ID:   id,
		Form: EditForm{Location: r.Location, StartDate: r.StartDate, EndDate: r.EndDate},
	}
	t.mu.Unlock()
	t.notify()
	return nil
}

// SetForm replaces the edit form values.
func (t *Table) SetForm(form EditForm) error {
	t.mu.Lock()
	if t.edit == nil {
		t.mu.Unlock()
		return ErrNotEditing
	}
	t.edit.Form = form
	t.mu.Unlock()
	t.notify()
	return nil
}

// CancelEdit returns the row to viewing.
func (t *Table) CancelEdit() {
	t.mu.Lock()
	if t.edit != nil && t.edit.Saving {
		t.mu.Unlock()
		return
	}
	t.edit = nil
	t.mu.Unlock()
	t.notify()
}

// SaveEdit submits the changed fields. An inverted date range is rejected
// without a network call; any failure leaves the row editing with Err set.
func (t *Table) SaveEdit(ctx context.Context) error {
	t.mu.Lock()
	if t.edit == nil {
		t.mu.Unlock()
		return ErrNotEditing
	}
	if t.edit.Saving {
		t.mu.Unlock()
		return ErrSaving
	}
	form := t.edit.Form
	if d, ok := weather.NormalizeDate(form.StartDate); ok {
		form.StartDate = d
	}
	if d, ok := weather.NormalizeDate(form.EndDate); ok {
		form.EndDate = d
	}
	if form.StartDate != "" && form.EndDate != "" && form.StartDate > form.EndDate {
		t.edit.Err = MsgDateOrder
		t.mu.Unlock()
		t.notify()
		return ErrDateOrder
	}
	id := t.edit.ID
	i := t.indexOf(id)
	if i < 0 {
		t.edit = nil
		t.mu.Unlock()
		t.notify()
		return ErrNotFound
	}
	patch := diff(t.records[i], form)
	if patch.IsEmpty() {
		t.edit = nil
		t.mu.Unlock()
		t.notify()
		return nil
	}
	t.edit.Saving = true
	t.edit.Err = ""
	t.mu.Unlock()
	t.notify()

	updated, err := t.store.UpdateQuery(ctx, id, patch)

	t.mu.Lock()
	if err != nil {
		if t.edit != nil && t.edit.ID == id {
			t.edit.Saving = false
			t.edit.Err = apiclient.Message(err)
		}
		t.mu.Unlock()
		t.notify()
		return err
	}
	if i := t.indexOf(id); i >= 0 {
		t.records[i] = updated
	}
	if t.edit != nil && t.edit.ID == id {
		t.edit = nil
	}
	t.mu.Unlock()
	t.notify()
	return nil
}

// diff builds a patch holding only the fields that changed.
func diff(rec weather.QueryRecord, form EditForm) weather.QueryUpdate {
	var patch weather.QueryUpdate
	if form.Location != "" && form.Location != rec.Location {
		loc := form.Location
		patch.Location = &loc
	}
	if form.StartDate != "" && form.StartDate != rec.StartDate {
		start := form.StartDate
		patch.StartDate = &start
	}
	if form.EndDate != "" && form.EndDate != rec.EndDate {
		end := form.EndDate
		patch.EndDate = &end
	}
	return patch
}

// ToggleExpand shows or hides the raw payload of id. Only one row is
// expanded at a time.
func (t *Table) ToggleExpand(id int64) error {
	t.mu.Lock()
	if t.indexOf(id) < 0 {
		t.mu.Unlock()
		return ErrNotFound
	}
	if t.expanded == id {
		t.expanded = 0
	} else {
		t.expanded = id
	}
	t.mu.Unlock()
	t.notify()
	return nil
}

// RequestDelete asks for confirmation before deleting id.
func (t *Table) RequestDelete(id int64) error {
	t.mu.Lock()
	if t.indexOf(id) < 0 {
		t.mu.Unlock()
		return ErrNotFound
	}
	t.pending = id
	t.mu.Unlock()
	t.notify()
	return nil
}

// CancelDelete dismisses the confirmation.
func (t *Table) CancelDelete() {
	t.mu.Lock()
	if t.deleting {
		t.mu.Unlock()
		return
	}
	t.pending = 0
	t.mu.Unlock()
	t.notify()
}

// ConfirmDelete deletes the pending record and removes it from the list
// without re-fetching. A failure becomes the table error and keeps the row.
func (t *Table) ConfirmDelete(ctx context.Context) error {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		return ErrNoPending
	}
	if t.deleting {
		t.mu.Unlock()
		return ErrBusy
	}
	id := t.pending
	t.deleting = true
	t.mu.Unlock()
	t.notify()

	err := t.store.DeleteQuery(ctx, id)

	t.mu.Lock()
	t.deleting = false
	t.pending = 0
	if err != nil {
		t.err = apiclient.Message(err)
		t.mu.Unlock()
		t.notify()
		return err
	}
	if i := t.indexOf(id); i >= 0 {
		t.records = append(t.records[:i:i], t.records[i+1:]...)
	}
	if t.edit != nil && t.edit.ID == id {
		t.edit = nil
	}
	if t.expanded == id {
		t.expanded = 0
	}
	t.mu.Unlock()
	t.notify()
	return nil
}

func (t *Table) notify() {
	if t.onChange == nil {
		return
	}
	t.onChange(t.Snapshot())
}
