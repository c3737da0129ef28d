package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"moneytrack/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memRepo 内存实现的持久化协作方
type memRepo struct {
	mu        sync.Mutex
	rows      []models.Transaction
	createErr error
	updateErr error
	deleteErr error
	listErr   error
}

func (r *memRepo) ListByUser(_ context.Context, userID uint) ([]models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Transaction
	for _, tx := range r.rows {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.rows = append(r.rows, *tx)
	return nil
}

func (r *memRepo) Update(_ context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	for i := range r.rows {
		if r.rows[i].ID == tx.ID && r.rows[i].UserID == tx.UserID {
			r.rows[i] = *tx
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *memRepo) Delete(_ context.Context, userID uint, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserID == userID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

var testCategories = StaticCategories{
	models.TypeIncome:  {"Salary", "Freelance", "Other"},
	models.TypeExpense: {"Food", "Shopping", "Other"},
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func openStore(t *testing.T, repo *memRepo, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), 1, repo, testCategories, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func expenseDraft(amount float64) Draft {
	return Draft{Type: models.TypeExpense, Category: "Food", Description: "Groceries", Amount: amount, Date: day(2024, 1, 10)}
}

func TestOpen_LoadsOwnerRows(t *testing.T) {
	repo := &memRepo{rows: []models.Transaction{
		{ID: "a", UserID: 1, Type: models.TypeIncome, Category: "Salary", Amount: 1000},
		{ID: "b", UserID: 2, Type: models.TypeExpense, Category: "Food", Amount: 10},
	}}
	s := openStore(t, repo)
	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "a", list[0].ID)
}

func TestOpen_RepositoryError(t *testing.T) {
	repo := &memRepo{listErr: errors.New("db down")}
	_, err := Open(context.Background(), 1, repo, testCategories)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}

func TestAdd_AssignsIDAndCreatedAt(t *testing.T) {
	fixed := time.Date(2024, 1, 10, 9, 30, 0, 0, time.Local)
	repo := &memRepo{}
	s := openStore(t, repo, WithClock(func() time.Time { return fixed }))

	tx, err := s.Add(context.Background(), Draft{
		Type:        models.TypeExpense,
		Category:    " food ",
		Description: "  Lunch ",
		Amount:      12.5,
		Date:        time.Date(2024, 1, 10, 18, 45, 0, 0, time.Local),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, uint(1), tx.UserID)
	assert.Equal(t, "Food", tx.Category)
	assert.Equal(t, "Lunch", tx.Description)
	assert.Equal(t, fixed, tx.CreatedAt)
	assert.Equal(t, day(2024, 1, 10), tx.Date)

	assert.Len(t, repo.rows, 1)
	assert.Equal(t, []models.Transaction{tx}, s.List())
}

func TestAdd_RejectsInvalidAmount(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)

	for _, amount := range []float64{0, -5, 0.004, 12.345, 1e12} {
		_, err := s.Add(context.Background(), expenseDraft(amount))
		fe, ok := AsFieldErrors(err)
		require.True(t, ok)
		assert.True(t, fe.Has("amount"))
	}
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, repo.rows)
}

func TestAdd_RepositoryFailureLeavesListUnchanged(t *testing.T) {
	repo := &memRepo{createErr: errors.New("connection refused")}
	s := openStore(t, repo)

	_, err := s.Add(context.Background(), expenseDraft(10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 0, s.Len())
}

func TestAdd_ConcurrentIDsAreDistinct(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)

	const n = 50
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Add(context.Background(), expenseDraft(1))
			if err == nil {
				ids <- tx.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, n, s.Len())
}

func TestUpdate_ReplacesRecordKeepingIdentity(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)
	orig, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)

	updated, err := s.Update(context.Background(), orig.ID, Draft{
		Type:        models.TypeIncome,
		Category:    "Salary",
		Description: "Refund",
		Amount:      30,
		Date:        day(2024, 2, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, orig.ID, updated.ID)
	assert.Equal(t, orig.CreatedAt, updated.CreatedAt)
	assert.Equal(t, models.TypeIncome, updated.Type)

	got, err := s.Get(orig.ID)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, "Refund", repo.rows[0].Description)
}

func TestUpdate_NotFound(t *testing.T) {
	s := openStore(t, &memRepo{})
	_, err := s.Update(context.Background(), "missing", expenseDraft(10))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_DurableNotFound(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)
	tx, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)
	repo.rows = nil

	_, err = s.Update(context.Background(), tx.ID, expenseDraft(20))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)
	a, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)
	b, err := s.Add(context.Background(), expenseDraft(20))
	require.NoError(t, err)

	require.NoError(t, s.Remove(context.Background(), a.ID))
	assert.Equal(t, []models.Transaction{b}, s.List())
	assert.Len(t, repo.rows, 1)
}

func TestRemove_NonexistentKeepsList(t *testing.T) {
	s := openStore(t, &memRepo{})
	_, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)

	err = s.Remove(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len())
}

func TestRemove_RepositoryError(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)
	tx, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)

	repo.deleteErr = errors.New("timeout")
	err = s.Remove(context.Background(), tx.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len())
}

func TestSubscribe_DeliversSnapshots(t *testing.T) {
	s := openStore(t, &memRepo{})
	sub := s.Subscribe()
	defer sub.Close()

	initial := <-sub.C
	assert.Empty(t, initial)

	tx, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)
	snap := <-sub.C
	assert.Equal(t, []models.Transaction{tx}, snap)
}

func TestSubscribe_SlowConsumerSeesLatest(t *testing.T) {
	s := openStore(t, &memRepo{})
	sub := s.Subscribe()
	defer sub.Close()

	for i := 1; i <= 3; i++ {
		_, err := s.Add(context.Background(), expenseDraft(float64(i)))
		require.NoError(t, err)
	}
	snap := <-sub.C
	assert.Len(t, snap, 3)

	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected snapshot of %d", len(extra))
	default:
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	s := openStore(t, &memRepo{})
	sub := s.Subscribe()
	<-sub.C
	sub.Close()
	sub.Close()

	_, ok := <-sub.C
	assert.False(t, ok)

	_, err := s.Add(context.Background(), expenseDraft(5))
	require.NoError(t, err)
}

func TestClose_ReleasesSubscriptions(t *testing.T) {
	s, err := Open(context.Background(), 1, &memRepo{}, testCategories)
	require.NoError(t, err)
	sub := s.Subscribe()
	<-sub.C

	s.Close()
	s.Close()
	_, ok := <-sub.C
	assert.False(t, ok)
	sub.Close()

	_, err = s.Add(context.Background(), expenseDraft(5))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Remove(context.Background(), "x"), ErrClosed)

	late := s.Subscribe()
	_, ok = <-late.C
	assert.False(t, ok)
}

func TestListener_ReceivesChanges(t *testing.T) {
	var changes []Change
	var sizes []int
	l := ListenerFunc(func(_ context.Context, c Change, snap []models.Transaction) {
		changes = append(changes, c)
		sizes = append(sizes, len(snap))
	})
	s := openStore(t, &memRepo{}, WithListener(l))

	tx, err := s.Add(context.Background(), expenseDraft(10))
	require.NoError(t, err)
	_, err = s.Update(context.Background(), tx.ID, expenseDraft(15))
	require.NoError(t, err)
	require.NoError(t, s.Remove(context.Background(), tx.ID))

	require.Len(t, changes, 3)
	assert.Equal(t, OpAdd, changes[0].Op)
	assert.Equal(t, OpUpdate, changes[1].Op)
	assert.Equal(t, 15.0, changes[1].Transaction.Amount)
	assert.Equal(t, OpRemove, changes[2].Op)
	assert.Equal(t, []int{1, 1, 0}, sizes)
}

func TestReload(t *testing.T) {
	repo := &memRepo{}
	s := openStore(t, repo)
	repo.rows = append(repo.rows, models.Transaction{ID: "ext", UserID: 1, Type: models.TypeIncome, Amount: 5})

	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 1, s.Len())
}
