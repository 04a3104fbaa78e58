package history

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-lookup/internal/apiclient"
	"github.com/i474232898/weather-lookup/internal/retry"
	"github.com/i474232898/weather-lookup/internal/testutil"
	"github.com/i474232898/weather-lookup/internal/weather"
)

// fakeStore counts calls and fails the first listFailures list requests.
type fakeStore struct {
	mu           sync.Mutex
	records      []weather.QueryRecord
	listFailures int
	listCalls    int
	updateCalls  int
	deleteCalls  int
	deleteErr    error
}

func (f *fakeStore) ListQueries(_ context.Context, skip, limit int) ([]weather.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listFailures > 0 {
		f.listFailures--
		return nil, &apiclient.Error{Kind: apiclient.KindConnectivity, Message: apiclient.MsgConnectivity}
	}
	out := []weather.QueryRecord{}
	for i := skip; i < len(f.records) && len(out) < limit; i++ {
		out = append(out, f.records[i])
	}
	return out, nil
}

func (f *fakeStore) UpdateQuery(_ context.Context, id int64, patch weather.QueryUpdate) (weather.QueryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	for i, r := range f.records {
		if r.ID == id {
			f.records[i] = patch.Apply(r)
			return f.records[i], nil
		}
	}
	return weather.QueryRecord{}, &apiclient.Error{Kind: apiclient.KindNotFound, Message: "Query not found"}
}

func (f *fakeStore) DeleteQuery(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return f.deleteErr
}

func records(n int) []weather.QueryRecord {
	out := make([]weather.QueryRecord, n)
	for i := range out {
		out[i] = weather.QueryRecord{
			ID:        int64(i + 1),
			Location:  "City",
			StartDate: "2024-01-01",
			EndDate:   "2024-01-02",
		}
	}
	return out
}

func newTable(store Store, size int) *Table {
	return New(store, Options{PageSize: size, Retry: retry.Fixed(DefaultRetryAttempts, 0)})
}

func ids(s Snapshot) []int64 {
	out := make([]int64, 0, len(s.Rows))
	for _, r := range s.Rows {
		out = append(out, r.ID)
	}
	return out
}

func TestNewTableDefaults(t *testing.T) {
	tbl := New(&fakeStore{}, Options{})
	assert.Equal(t, DefaultPageSize, tbl.PageSize())
	assert.Equal(t, retry.Fixed(4, DefaultRetryDelay), tbl.policy)
	assert.Equal(t, StatusIdle, tbl.Snapshot().Status)
	assert.True(t, tbl.Snapshot().Placeholder())
}

func TestLoadSucceedsOnFourthAttempt(t *testing.T) {
	store := &fakeStore{records: records(3), listFailures: 3}
	var seen []Status
	var mu sync.Mutex
	tbl := New(store, Options{
		Retry: retry.Fixed(4, 0),
		OnChange: func(s Snapshot) {
			mu.Lock()
			seen = append(seen, s.Status)
			mu.Unlock()
		},
	})

	require.NoError(t, tbl.Load(context.Background()))

	snap := tbl.Snapshot()
	assert.Equal(t, StatusLoaded, snap.Status)
	assert.Empty(t, snap.Error)
	assert.Equal(t, []int64{1, 2, 3}, ids(snap))
	assert.Equal(t, 4, store.listCalls)
	assert.Contains(t, seen, StatusConnecting)
	assert.Equal(t, StatusLoading, seen[0])
}

func TestLoadFailsAfterFourAttempts(t *testing.T) {
	store := &fakeStore{records: records(3), listFailures: 4}
	tbl := newTable(store, 20)

	err := tbl.Load(context.Background())
	var exhausted *retry.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 4, exhausted.Attempts)

	snap := tbl.Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Equal(t, apiclient.MsgConnectivity, snap.Error)
	assert.Equal(t, 4, store.listCalls)
}

func TestLoadMoreAppendsInFetchOrder(t *testing.T) {
	store := &fakeStore{records: records(45)}
	tbl := newTable(store, 20)
	ctx := context.Background()

	require.NoError(t, tbl.Load(ctx))
	snap := tbl.Snapshot()
	assert.Len(t, snap.Rows, 20)
	assert.True(t, snap.HasMore)

	require.NoError(t, tbl.LoadMore(ctx))
	snap = tbl.Snapshot()
	assert.Len(t, snap.Rows, 40)
	assert.True(t, snap.HasMore)

	require.NoError(t, tbl.LoadMore(ctx))
	snap = tbl.Snapshot()
	assert.Len(t, snap.Rows, 45)
	assert.False(t, snap.HasMore)

	for i, id := range ids(snap) {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestReloadIsIdempotent(t *testing.T) {
	store := &fakeStore{records: records(30)}
	tbl := newTable(store, 20)
	ctx := context.Background()

	require.NoError(t, tbl.Load(ctx))
	require.NoError(t, tbl.LoadMore(ctx))
	require.NoError(t, tbl.Reload(ctx))
	first := tbl.Snapshot()
	require.NoError(t, tbl.ReloadHook()(ctx))
	second := tbl.Snapshot()

	assert.Len(t, first.Rows, 20)
	assert.Equal(t, first, second)
}

func TestSaveEditRejectsInvertedRangeLocally(t *testing.T) {
	store := &fakeStore{records: records(2)}
	tbl := newTable(store, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.StartEdit(1))
	require.NoError(t, tbl.SetForm(EditForm{Location: "City", StartDate: "2024-03-10", EndDate: "2024-03-01"}))

	err := tbl.SaveEdit(context.Background())
	require.ErrorIs(t, err, ErrDateOrder)
	assert.Equal(t, 0, store.updateCalls)

	snap := tbl.Snapshot()
	require.NotNil(t, snap.Edit)
	assert.Equal(t, MsgDateOrder, snap.Edit.Err)
	row, _ := snap.Row(1)
	assert.True(t, row.Editing)
}

func TestSaveEditComparesUnpaddedDatesAsDates(t *testing.T) {
	store := &fakeStore{records: records(1)}
	tbl := newTable(store, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.StartEdit(1))
	require.NoError(t, tbl.SetForm(EditForm{Location: "City", StartDate: "2024-02-01", EndDate: "2024-1-15"}))
	require.ErrorIs(t, tbl.SaveEdit(context.Background()), ErrDateOrder)
	assert.Equal(t, 0, store.updateCalls)

	require.NoError(t, tbl.SetForm(EditForm{Location: "City", StartDate: "2024-1-5", EndDate: "2024-01-10"}))
	require.NoError(t, tbl.SaveEdit(context.Background()))
	assert.Equal(t, 1, store.updateCalls)

	row, ok := tbl.Snapshot().Row(1)
	require.True(t, ok)
	assert.Equal(t, "2024-01-05", row.StartDate)
	assert.Equal(t, "2024-01-10", row.EndDate)
}

func TestSaveEditSendsOnlyChangedFields(t *testing.T) {
	store := &fakeStore{records: records(2)}
	tbl := newTable(store, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.StartEdit(2))
	require.NoError(t, tbl.SetForm(EditForm{Location: "City", StartDate: "2024-01-01", EndDate: "2024-01-09"}))
	require.NoError(t, tbl.SaveEdit(context.Background()))

	snap := tbl.Snapshot()
	assert.Nil(t, snap.Edit)
	row, ok := snap.Row(2)
	require.True(t, ok)
	assert.Equal(t, "City", row.Location)
	assert.Equal(t, "2024-01-01", row.StartDate)
	assert.Equal(t, "2024-01-09", row.EndDate)
	assert.Equal(t, 1, store.updateCalls)
}

func TestSaveEditWithoutChangesSkipsNetwork(t *testing.T) {
	store := &fakeStore{records: records(1)}
	tbl := newTable(store, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.StartEdit(1))
	require.NoError(t, tbl.SaveEdit(context.Background()))
	assert.Equal(t, 0, store.updateCalls)
	assert.Nil(t, tbl.Snapshot().Edit)
}

func TestOneRowEditableAtATime(t *testing.T) {
	tbl := newTable(&fakeStore{records: records(3)}, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.StartEdit(1))
	require.NoError(t, tbl.StartEdit(3))

	snap := tbl.Snapshot()
	editing := 0
	for _, r := range snap.Rows {
		if r.Editing {
			editing++
			assert.Equal(t, int64(3), r.ID)
		}
	}
	assert.Equal(t, 1, editing)

	tbl.CancelEdit()
	assert.Nil(t, tbl.Snapshot().Edit)
	assert.ErrorIs(t, tbl.SaveEdit(context.Background()), ErrNotEditing)
	assert.ErrorIs(t, tbl.StartEdit(99), ErrNotFound)
}

func TestToggleExpandIsOrthogonalToEdit(t *testing.T) {
	tbl := newTable(&fakeStore{records: records(2)}, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.StartEdit(1))
	require.NoError(t, tbl.ToggleExpand(1))
	row, _ := tbl.Snapshot().Row(1)
	assert.True(t, row.Expanded)
	assert.True(t, row.Editing)

	require.NoError(t, tbl.ToggleExpand(2))
	snap := tbl.Snapshot()
	r1, _ := snap.Row(1)
	r2, _ := snap.Row(2)
	assert.False(t, r1.Expanded)
	assert.True(t, r2.Expanded)

	require.NoError(t, tbl.ToggleExpand(2))
	r2, _ = tbl.Snapshot().Row(2)
	assert.False(t, r2.Expanded)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	store := &fakeStore{records: records(3)}
	tbl := newTable(store, 20)
	require.NoError(t, tbl.Load(context.Background()))

	assert.ErrorIs(t, tbl.ConfirmDelete(context.Background()), ErrNoPending)

	require.NoError(t, tbl.RequestDelete(2))
	assert.Equal(t, int64(2), tbl.Snapshot().Pending)
	tbl.CancelDelete()
	assert.Zero(t, tbl.Snapshot().Pending)
	assert.Equal(t, 0, store.deleteCalls)

	require.NoError(t, tbl.RequestDelete(2))
	require.NoError(t, tbl.ConfirmDelete(context.Background()))
	assert.Equal(t, []int64{1, 3}, ids(tbl.Snapshot()))
	assert.Equal(t, 1, store.listCalls)
}

func TestDeleteFailureKeepsRows(t *testing.T) {
	store := &fakeStore{records: records(2), deleteErr: &apiclient.Error{Kind: apiclient.KindUpstream, Message: apiclient.MsgUpstream}}
	tbl := newTable(store, 20)
	require.NoError(t, tbl.Load(context.Background()))

	require.NoError(t, tbl.RequestDelete(1))
	require.Error(t, tbl.ConfirmDelete(context.Background()))

	snap := tbl.Snapshot()
	assert.Equal(t, apiclient.MsgUpstream, snap.Error)
	assert.Equal(t, []int64{1, 2}, ids(snap))
	assert.Zero(t, snap.Pending)
}

func TestSupersededLoadIsDiscarded(t *testing.T) {
	store := &blockingStore{
		fakeStore: &fakeStore{records: records(5)},
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	tbl := newTable(store, 2)

	done := make(chan error, 1)
	go func() { done <- tbl.Load(context.Background()) }()
	<-store.entered

	store.fakeStore.mu.Lock()
	store.fakeStore.records = records(1)
	store.fakeStore.mu.Unlock()

	require.NoError(t, tbl.Reload(context.Background()))
	close(store.release)
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1}, ids(tbl.Snapshot()))
	assert.Equal(t, StatusLoaded, tbl.Snapshot().Status)
}

// blockingStore parks the first list call until release is closed.
type blockingStore struct {
	*fakeStore
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStore) ListQueries(ctx context.Context, skip, limit int) ([]weather.QueryRecord, error) {
	page, err := b.fakeStore.ListQueries(ctx, skip, limit)
	if b.calls.Add(1) == 1 {
		close(b.entered)
		<-b.release
	}
	return page, err
}

func TestAgainstBackend(t *testing.T) {
	backend := testutil.NewBackend(t)
	client, err := apiclient.New(apiclient.Config{BaseURL: backend.URL()})
	require.NoError(t, err)
	ctx := context.Background()

	created, err := client.CreateQuery(ctx, weather.QueryCreate{Location: "Paris", StartDate: "2024-01-01", EndDate: "2024-01-05"})
	require.NoError(t, err)
	backend.Seed(2)

	tbl := New(client, Options{Retry: retry.Fixed(4, 0)})
	require.NoError(t, tbl.Load(ctx))
	row, ok := tbl.Snapshot().Row(created.ID)
	require.True(t, ok)
	assert.Equal(t, "Paris", row.Location)
	assert.Equal(t, "2024-01-01", row.StartDate)
	assert.Equal(t, "2024-01-05", row.EndDate)

	listed := backend.Calls("/api/queries/")
	require.NoError(t, tbl.RequestDelete(created.ID))
	require.NoError(t, tbl.ConfirmDelete(ctx))
	assert.Equal(t, listed, backend.Calls("/api/queries/"))
	_, ok = tbl.Snapshot().Row(created.ID)
	assert.False(t, ok)

	require.NoError(t, tbl.Reload(ctx))
	_, ok = tbl.Snapshot().Row(created.ID)
	assert.False(t, ok)
	assert.Len(t, tbl.Snapshot().Rows, 2)
}

func TestBackendRetryThenLoad(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Seed(1)
	backend.Fail("/api/queries/", 3, 503, ``)
	client, err := apiclient.New(apiclient.Config{BaseURL: backend.URL()})
	require.NoError(t, err)

	tbl := New(client, Options{Retry: retry.Fixed(4, 0)})
	require.NoError(t, tbl.Load(context.Background()))
	assert.Equal(t, StatusLoaded, tbl.Snapshot().Status)
	assert.Equal(t, 4, backend.Calls("/api/queries/"))
}

func TestSaveEditBackendErrorStaysEditing(t *testing.T) {
	backend := testutil.NewBackend(t)
	backend.Seed(1)
	client, err := apiclient.New(apiclient.Config{BaseURL: backend.URL()})
	require.NoError(t, err)
	tbl := New(client, Options{Retry: retry.Fixed(1, 0)})
	require.NoError(t, tbl.Load(context.Background()))

	backend.Fail("/api/queries/1", 1, 422, `{"detail":[{"msg":"location too long"}]}`)
	require.NoError(t, tbl.StartEdit(1))
	require.NoError(t, tbl.SetForm(EditForm{Location: "Somewhere else", StartDate: "2024-01-01", EndDate: "2024-01-02"}))
	require.Error(t, tbl.SaveEdit(context.Background()))

	snap := tbl.Snapshot()
	require.NotNil(t, snap.Edit)
	assert.False(t, snap.Edit.Saving)
	assert.Equal(t, "location too long", snap.Edit.Err)
}
