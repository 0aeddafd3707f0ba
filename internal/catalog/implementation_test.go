package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libradesk/internal/domain"
	"libradesk/internal/ids"
	"libradesk/internal/storage"
	"libradesk/internal/store"
)

func newTestService(t *testing.T) (Service, *store.Store, storage.KV) {
	t.Helper()
	kv := storage.NewMemory(0)
	st := store.New(kv, store.WithIDGenerator(ids.NewSequence("b")))
	require.NoError(t, st.Load(context.Background()))
	return NewService(st, nil), st, kv
}

func strPtr(s string) *string { return &s }

func TestAddBook(t *testing.T) {
	svc, _, kv := newTestService(t)
	ctx := context.Background()

	book, err := svc.AddBook(ctx, NewBookFields("Dune", "Herbert", 1965, "SciFi"))
	require.NoError(t, err)
	assert.Equal(t, domain.Book{ID: "b-1", Title: "Dune", Author: "Herbert", Year: 1965, Genre: "SciFi", Available: true}, *book)

	persisted, err := storage.Load[domain.Book](ctx, kv, store.BooksKey)
	require.NoError(t, err)
	assert.Equal(t, []domain.Book{*book}, persisted)
}

func TestAddBookValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	valid := NewBookFields("Dune", "Herbert", 1965, "SciFi")
	tests := []struct {
		name   string
		mutate func(f *BookFields)
	}{
		{"missing title", func(f *BookFields) { f.Title = nil }},
		{"blank author", func(f *BookFields) { f.Author = strPtr("  ") }},
		{"missing year", func(f *BookFields) { f.Year = nil }},
		{"non numeric year", func(f *BookFields) { f.Year = strPtr("nineteen") }},
		{"fractional year", func(f *BookFields) { f.Year = strPtr("1965.5") }},
		{"empty genre", func(f *BookFields) { f.Genre = strPtr("") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := valid
			tt.mutate(&f)
			_, err := svc.AddBook(ctx, f)
			assert.ErrorIs(t, err, domain.ErrValidation)

			books, _ := svc.ListBooks(ctx)
			assert.Empty(t, books)
		})
	}
}

func TestAddBookTrimsYear(t *testing.T) {
	svc, _, _ := newTestService(t)
	f := NewBookFields("Dune", "Herbert", 0, "SciFi")
	f.Year = strPtr(" 1965 ")
	book, err := svc.AddBook(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1965, book.Year)
}

func TestUpdateBookPreservesAvailability(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	book, err := svc.AddBook(ctx, NewBookFields("Dune", "Herbert", 1965, "SciFi"))
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, "lend", func(tx *store.Tx) error {
		b, _ := tx.View().Book(book.ID)
		b.Available = false
		return tx.ReplaceBook(b)
	}))

	updated, err := svc.UpdateBook(ctx, book.ID, BookFields{Title: strPtr("Dune Messiah"), Year: strPtr("1969")})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, "Herbert", updated.Author)
	assert.Equal(t, 1969, updated.Year)
	assert.False(t, updated.Available)
}

func TestUpdateBookErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	book, err := svc.AddBook(ctx, NewBookFields("Dune", "Herbert", 1965, "SciFi"))
	require.NoError(t, err)

	_, err = svc.UpdateBook(ctx, "ghost", BookFields{Title: strPtr("X")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.UpdateBook(ctx, book.ID, BookFields{Year: strPtr("soon")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, _ := svc.GetBook(ctx, book.ID)
	assert.Equal(t, 1965, got.Year)
}

func TestRemoveBook(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	free, err := svc.AddBook(ctx, NewBookFields("Dune", "Herbert", 1965, "SciFi"))
	require.NoError(t, err)
	lent, err := svc.AddBook(ctx, NewBookFields("Emma", "Austen", 1815, "Novel"))
	require.NoError(t, err)

	require.NoError(t, st.Update(ctx, "lend", func(tx *store.Tx) error {
		b, _ := tx.View().Book(lent.ID)
		b.Available = false
		return tx.ReplaceBook(b)
	}))

	require.NoError(t, svc.RemoveBook(ctx, free.ID))
	_, err = svc.GetBook(ctx, free.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.RemoveBook(ctx, lent.ID), domain.ErrConflict)
	_, err = svc.GetBook(ctx, lent.ID)
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.RemoveBook(ctx, "ghost"), domain.ErrNotFound)
}

func TestListAvailableBooks(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()
	a, _ := svc.AddBook(ctx, NewBookFields("Dune", "Herbert", 1965, "SciFi"))
	b, _ := svc.AddBook(ctx, NewBookFields("Emma", "Austen", 1815, "Novel"))

	require.NoError(t, st.Update(ctx, "lend", func(tx *store.Tx) error {
		book, _ := tx.View().Book(a.ID)
		book.Available = false
		return tx.ReplaceBook(book)
	}))

	available, err := svc.ListAvailableBooks(ctx)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, b.ID, available[0].ID)
}
