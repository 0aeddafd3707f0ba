// Package store owns the user, book and loan collections. It loads them once
// from a storage backend and writes every collection an operation touched
// back in full before the operation returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libradesk/internal/domain"
	"libradesk/internal/ids"
	"libradesk/internal/storage"
)

// Collection keys, one per entity kind.
const (
	UsersKey = "library_users"
	BooksKey = "library_books"
	LoansKey = "library_loans"
)

// Store is the in-memory entity store. It is safe for concurrent use; all
// operations are serialized.
type Store struct {
	mu     sync.Mutex
	kv     storage.KV
	ids    ids.Generator
	now    func() time.Time
	logger *slog.Logger
	tracer trace.Tracer

	users []domain.User
	books []domain.Book
	loans []domain.Loan
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator replaces the default time+entropy id generator.
func WithIDGenerator(g ids.Generator) Option {
	return func(s *Store) { s.ids = g }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for commit failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New returns an empty store backed by kv. Call Load before use.
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		ids:    ids.NewTimeRandom(""),
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
		tracer: otel.Tracer("libradesk/store"),
		users:  []domain.User{},
		books:  []domain.Book{},
		loans:  []domain.Loan{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory collections with what the backend holds.
func (s *Store) Load(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "store.load")
	defer span.End()

	users, err := storage.Load[domain.User](ctx, s.kv, UsersKey)
	if err != nil {
		return storageErr(span, err)
	}
	books, err := storage.Load[domain.Book](ctx, s.kv, BooksKey)
	if err != nil {
		return storageErr(span, err)
	}
	loans, err := storage.Load[domain.Loan](ctx, s.kv, LoansKey)
	if err != nil {
		return storageErr(span, err)
	}

	s.mu.Lock()
	s.users, s.books, s.loans = users, books, loans
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("users", len(users)),
		attribute.Int("books", len(books)),
		attribute.Int("loans", len(loans)),
	)
	s.logger.Info("collections loaded", "users", len(users), "books", len(books), "loans", len(loans))
	return nil
}

// Close closes the storage backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Snapshot returns copies of the committed collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Users: append(make([]domain.User, 0, len(s.users)), s.users...),
		Books: append(make([]domain.Book, 0, len(s.books)), s.books...),
		Loans: cloneLoans(s.loans),
	}
}

// Update runs fn against working copies of the collections. When fn returns
// an error nothing is written. Otherwise every collection fn modified is
// saved in full and only then becomes visible to readers.
func (s *Store) Update(ctx context.Context, op string, fn func(tx *Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "store.update", trace.WithAttributes(attribute.String("operation", op)))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		store: s,
		now:   s.now(),
		users: s.users,
		books: s.books,
		loans: s.loans,
	}
	if err := fn(tx); err != nil {
		span.SetAttributes(attribute.String("rejected", domain.Kind(err)))
		return err
	}
	if !tx.dirty() {
		return nil
	}
	if err := s.commit(ctx, tx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		return err
	}

	s.users, s.books, s.loans = tx.users, tx.books, tx.loans
	return nil
}

type write struct {
	key     string
	save    func(context.Context) error
	restore func(context.Context) error
}

// commit saves the dirty collections of tx, loans first, then books, then
// users. If a save fails the collections already written in this commit are
// saved again with their previous contents.
func (s *Store) commit(ctx context.Context, tx *Tx) error {
	var writes []write
	if tx.loansDirty {
		next, prev := tx.loans, s.loans
		writes = append(writes, write{
			key:     LoansKey,
			save:    func(ctx context.Context) error { return storage.Save(ctx, s.kv, LoansKey, next) },
			restore: func(ctx context.Context) error { return storage.Save(ctx, s.kv, LoansKey, prev) },
		})
	}
	if tx.booksDirty {
		next, prev := tx.books, s.books
		writes = append(writes, write{
			key:     BooksKey,
			save:    func(ctx context.Context) error { return storage.Save(ctx, s.kv, BooksKey, next) },
			restore: func(ctx context.Context) error { return storage.Save(ctx, s.kv, BooksKey, prev) },
		})
	}
	if tx.usersDirty {
		next, prev := tx.users, s.users
		writes = append(writes, write{
			key:     UsersKey,
			save:    func(ctx context.Context) error { return storage.Save(ctx, s.kv, UsersKey, next) },
			restore: func(ctx context.Context) error { return storage.Save(ctx, s.kv, UsersKey, prev) },
		})
	}

	for i, w := range writes {
		err := w.save(ctx)
		if err == nil {
			continue
		}
		for _, done := range writes[:i] {
			s.logger.Warn("compensating partial commit", "collection", done.key, "cause", err)
			// The caller's context may be what failed the save.
			if rerr := done.restore(context.WithoutCancel(ctx)); rerr != nil {
				s.logger.Error("failed to compensate partial commit", "collection", done.key, "error", rerr)
			}
		}
		return fmt.Errorf("%w: %w", domain.ErrStorage, err)
	}
	return nil
}

func storageErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errors.Is(err, domain.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorage, err)
}

func cloneLoans(in []domain.Loan) []domain.Loan {
	out := make([]domain.Loan, len(in))
	for i, l := range in {
		out[i] = cloneLoan(l)
	}
	return out
}

func cloneLoan(l domain.Loan) domain.Loan {
	if l.ReturnDate != nil {
		d := *l.ReturnDate
		l.ReturnDate = &d
	}
	return l
}
