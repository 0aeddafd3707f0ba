package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/domain"
	"libradesk/internal/ids"
	"libradesk/internal/storage"
)

// failingKV fails every Put for the keys in failPut.
type failingKV struct {
	*storage.Memory
	failPut map[string]bool
	puts    []string
}

func (f *failingKV) Put(ctx context.Context, key string, data []byte) error {
	f.puts = append(f.puts, key)
	if f.failPut[key] {
		return errors.New("disk on fire")
	}
	return f.Memory.Put(ctx, key, data)
}

func newTestStore(t *testing.T, kv storage.KV) *Store {
	t.Helper()
	s := New(kv,
		WithIDGenerator(ids.NewSequence("id")),
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, s.Load(context.Background()))
	return s
}

func TestLoadEmptyBackend(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	snap := s.Snapshot()
	assert.Empty(t, snap.Users)
	assert.Empty(t, snap.Books)
	assert.Empty(t, snap.Loans)
}

func TestLoadExistingCollections(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory(0)
	require.NoError(t, storage.Save(ctx, kv, UsersKey, []domain.User{{ID: "u1", Name: "Ana", Email: "ana@x.com"}}))
	require.NoError(t, storage.Save(ctx, kv, BooksKey, []domain.Book{{ID: "b1", Title: "Dune", Available: true}}))

	s := newTestStore(t, kv)
	snap := s.Snapshot()
	require.Len(t, snap.Users, 1)
	require.Len(t, snap.Books, 1)
	assert.Empty(t, snap.Loans)

	u, ok := snap.User("u1")
	require.True(t, ok)
	assert.Equal(t, "Ana", u.Name)
}

func TestLoadFailureIsStorageError(t *testing.T) {
	kv := storage.NewMemory(0)
	require.NoError(t, kv.Put(context.Background(), BooksKey, []byte("garbage")))

	s := New(kv)
	err := s.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrStorage)
}

func TestUpdateCommitsTouchedCollectionsOnly(t *testing.T) {
	kv := &failingKV{Memory: storage.NewMemory(0)}
	s := newTestStore(t, kv)

	err := s.Update(context.Background(), "test", func(tx *Tx) error {
		tx.InsertUser(domain.User{ID: tx.NewUserID(), Name: "Ana", Email: "ana@x.com"})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{UsersKey}, kv.puts)

	persisted, err := storage.Load[domain.User](context.Background(), kv, UsersKey)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot().Users, persisted)
	assert.Equal(t, "id-1", persisted[0].ID)
}

func TestUpdateCallbackErrorWritesNothing(t *testing.T) {
	kv := &failingKV{Memory: storage.NewMemory(0)}
	s := newTestStore(t, kv)

	err := s.Update(context.Background(), "test", func(tx *Tx) error {
		tx.InsertUser(domain.User{ID: "u1", Name: "Ana"})
		return domain.ErrValidation
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, kv.puts)
	assert.Empty(t, s.Snapshot().Users)
}

func TestUpdatePartialFailureCompensates(t *testing.T) {
	ctx := context.Background()
	kv := &failingKV{Memory: storage.NewMemory(0)}
	s := newTestStore(t, kv)

	require.NoError(t, s.Update(ctx, "seed", func(tx *Tx) error {
		tx.InsertBook(domain.Book{ID: "b1", Title: "Dune", Available: true})
		return nil
	}))

	kv.failPut = map[string]bool{BooksKey: true}
	kv.puts = nil
	err := s.Update(ctx, "lend", func(tx *Tx) error {
		b, _ := tx.View().Book("b1")
		b.Available = false
		if err := tx.ReplaceBook(b); err != nil {
			return err
		}
		tx.InsertLoan(domain.Loan{ID: "l1", BookID: "b1", Status: domain.LoanActive, LoanDate: tx.Now()})
		return nil
	})
	require.ErrorIs(t, err, domain.ErrStorage)
	// loans saved, books failed, loans restored
	assert.Equal(t, []string{LoansKey, BooksKey, LoansKey}, kv.puts)

	snap := s.Snapshot()
	assert.Empty(t, snap.Loans)
	book, _ := snap.Book("b1")
	assert.True(t, book.Available)

	loans, err := storage.Load[domain.Loan](ctx, kv, LoansKey)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestUpdateDoesNotLeakUncommittedState(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, "seed", func(tx *Tx) error {
		tx.InsertUser(domain.User{ID: "u1", Name: "Ana", Email: "a@x"})
		return nil
	}))
	before := s.Snapshot()

	_ = s.Update(ctx, "abort", func(tx *Tx) error {
		require.NoError(t, tx.ReplaceUser(domain.User{ID: "u1", Name: "Bia", Email: "b@x"}))
		require.NoError(t, tx.DeleteUser("u1"))
		return errors.New("abort")
	})
	assert.Equal(t, before, s.Snapshot())
}

func TestNewIDSkipsTakenIDs(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, "seed", func(tx *Tx) error {
		tx.InsertUser(domain.User{ID: "id-1"})
		tx.InsertUser(domain.User{ID: "id-2"})
		return nil
	}))

	var got string
	require.NoError(t, s.Update(ctx, "new", func(tx *Tx) error {
		got = tx.NewUserID()
		return nil
	}))
	assert.Equal(t, "id-3", got)
}

func TestReplaceMissingIsNotFound(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	err := s.Update(context.Background(), "x", func(tx *Tx) error {
		return tx.ReplaceBook(domain.Book{ID: "nope"})
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t, storage.NewMemory(0))
	ret := time.Now()
	require.NoError(t, s.Update(context.Background(), "seed", func(tx *Tx) error {
		tx.InsertLoan(domain.Loan{ID: "l1", Status: domain.LoanReturned, ReturnDate: &ret})
		return nil
	}))

	snap := s.Snapshot()
	snap.Loans[0].Status = domain.LoanActive
	*snap.Loans[0].ReturnDate = time.Time{}

	again := s.Snapshot()
	assert.Equal(t, domain.LoanReturned, again.Loans[0].Status)
	assert.False(t, again.Loans[0].ReturnDate.IsZero())
}

func TestStatsAndViolations(t *testing.T) {
	snap := Snapshot{
		Users: []domain.User{{ID: "u1"}, {ID: "u2"}},
		Books: []domain.Book{
			{ID: "b1", Available: false},
			{ID: "b2", Available: true},
			{ID: "b3", Available: false},
		},
		Loans: []domain.Loan{
			{ID: "l1", BookID: "b1", Status: domain.LoanActive},
			{ID: "l2", BookID: "b2", Status: domain.LoanReturned},
		},
	}
	assert.Equal(t, Stats{TotalUsers: 2, TotalBooks: 3, AvailableBooks: 1, ActiveLoans: 1}, snap.Stats())
	assert.Equal(t, []string{"b3: unavailable without an active loan"}, snap.Violations())
	assert.Len(t, snap.AvailableBooks(), 1)
}
