package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"

	"libradesk/internal/catalog"
	"libradesk/internal/circulation"
	"libradesk/internal/domain"
	"libradesk/internal/membership"
	"libradesk/internal/storage"
	"libradesk/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Library is a complete library desk whose backend sits behind a FaultyKV.
type Library struct {
	KV    *FaultyKV
	Store *store.Store
	Users membership.Service
	Books catalog.Service
	Loans circulation.Service

	logger *slog.Logger
}

// NewLibrary loads a library from backend with fault injection in front of
// it.
func NewLibrary(ctx context.Context, backend storage.KV, logger *slog.Logger) (*Library, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kv := NewFaultyKV(backend)
	st := store.New(kv, store.WithLogger(logger))
	if err := st.Load(ctx); err != nil {
		return nil, err
	}
	loans, err := circulation.NewService(st, logger, nil)
	if err != nil {
		return nil, err
	}
	return &Library{
		KV:     kv,
		Store:  st,
		Users:  membership.NewService(st, logger),
		Books:  catalog.NewService(st, logger),
		Loans:  loans,
		logger: logger,
	}, nil
}

// Seed registers users and books so experiments have something to lend.
func (l *Library) Seed(ctx context.Context, users, books int) error {
	for i := 1; i <= users; i++ {
		name := fmt.Sprintf("Reader %d", i)
		if _, err := l.Users.RegisterUser(ctx, membership.NewUserFields(name, fmt.Sprintf("reader%d@example.com", i))); err != nil {
			return err
		}
	}
	for i := 1; i <= books; i++ {
		if _, err := l.Books.AddBook(ctx, catalog.NewBookFields(fmt.Sprintf("Volume %d", i), "Anonymous", 1900+i, "Reference")); err != nil {
			return err
		}
	}
	return nil
}

// Metrics shared by every experiment. All of them must read zero.
func (l *Library) invariantMetrics() []Metric {
	return []Metric{
		{
			Name: "invariant_violations",
			Query: func(ctx context.Context) (float64, error) {
				return float64(len(l.Store.Snapshot().Violations())), nil
			},
			Threshold: Threshold{Operator: "==", Value: 0},
		},
		{
			Name: "persisted_violations",
			Query: func(ctx context.Context) (float64, error) {
				snap, err := l.persisted(ctx)
				if err != nil {
					return 0, err
				}
				return float64(len(snap.Violations())), nil
			},
			Threshold: Threshold{Operator: "==", Value: 0},
		},
		{
			Name: "persisted_divergence",
			Query: func(ctx context.Context) (float64, error) {
				snap, err := l.persisted(ctx)
				if err != nil {
					return 0, err
				}
				same, err := sameState(snap, l.Store.Snapshot())
				if err != nil || same {
					return 0, err
				}
				return 1, nil
			},
			Threshold: Threshold{Operator: "==", Value: 0},
		},
	}
}

// persisted reads the collections straight from the wrapped backend.
func (l *Library) persisted(ctx context.Context) (store.Snapshot, error) {
	fresh := store.New(l.KV.Inner(), store.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err := fresh.Load(ctx); err != nil {
		return store.Snapshot{}, err
	}
	return fresh.Snapshot(), nil
}

func sameState(a, b store.Snapshot) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, err
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, err
	}
	return string(ab) == string(bb), nil
}

// churn lends every available book and returns every active loan, rounds
// times. Errors are collected, not fatal.
func (l *Library) churn(ctx context.Context, rounds int) error {
	var errs []error
	for r := 0; r < rounds; r++ {
		snap := l.Store.Snapshot()
		for i, b := range snap.AvailableBooks() {
			if len(snap.Users) == 0 {
				break
			}
			user := snap.Users[(i+r)%len(snap.Users)]
			if _, err := l.Loans.CreateLoan(ctx, user.ID, b.ID); err != nil {
				errs = append(errs, err)
			}
		}
		for _, loan := range l.Store.Snapshot().Loans {
			if !loan.IsActive() {
				continue
			}
			if _, err := l.Loans.ReturnLoan(ctx, loan.ID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (l *Library) clearFaults() Action {
	return Action{
		Type:   "clear-faults",
		Target: "storage",
		Execute: func(ctx context.Context) error {
			l.KV.Clear()
			return nil
		},
	}
}

func (l *Library) inject(target string, fault Fault) Action {
	return Action{
		Type:   "inject-fault",
		Target: target,
		Execute: func(ctx context.Context) error {
			l.KV.Inject(fault)
			return nil
		},
	}
}

func invariantAssertions() []Assertion {
	return []Assertion{
		{
			Metric:    "invariant_violations",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "every book is unavailable exactly when one active loan holds it",
		},
		{
			Metric:    "persisted_divergence",
			Condition: func(v float64) bool { return v == 0 },
			Message:   "persisted collections match the in-memory state",
		},
	}
}

// RegisterExperiments registers the library experiments with the engine.
func (e *Engine) RegisterExperiments(lib *Library) {
	e.RegisterExperiment(lib.BookWriteFailureExperiment())
	e.RegisterExperiment(lib.LoanWriteFailureExperiment(2))
	e.RegisterExperiment(lib.StorageFullExperiment())
	e.RegisterExperiment(lib.ConcurrentLoanRaceExperiment(20, 2*time.Millisecond))
}

// BookWriteFailureExperiment fails every write of the book collection, so
// each loan operation fails after its loan collection was already written.
func (l *Library) BookWriteFailureExperiment() Experiment {
	return Experiment{
		Name:        "book-collection-write-failure",
		Hypothesis:  "A loan whose book update cannot be persisted leaves no trace in memory or storage",
		SteadyState: l.invariantMetrics(),
		Method:      []Action{l.inject("library_books", Fault{Op: OpPut, Key: store.BooksKey, Fail: true})},
		Workload: []Action{{
			Type:    "loan-churn",
			Target:  "circulation",
			Execute: func(ctx context.Context) error { return l.churn(ctx, 3) },
		}},
		Rollback:   []Action{l.clearFaults()},
		Validation: invariantAssertions(),
	}
}

// LoanWriteFailureExperiment lets okWrites loan collection writes through and
// fails the rest.
func (l *Library) LoanWriteFailureExperiment(okWrites int) Experiment {
	return Experiment{
		Name:        "loan-collection-write-failure",
		Hypothesis:  "Loans keep working until the loan collection fails and never split from book availability",
		SteadyState: l.invariantMetrics(),
		Method: []Action{l.inject("library_loans", Fault{
			Op: OpPut, Key: store.LoansKey, After: okWrites, Fail: true,
		})},
		Workload: []Action{{
			Type:    "loan-churn",
			Target:  "circulation",
			Execute: func(ctx context.Context) error { return l.churn(ctx, 3) },
		}},
		Rollback:   []Action{l.clearFaults()},
		Validation: invariantAssertions(),
	}
}

// StorageFullExperiment makes every write report an exhausted quota.
func (l *Library) StorageFullExperiment() Experiment {
	var quotaErrors atomic.Int64
	return Experiment{
		Name:       "storage-quota-exhausted",
		Hypothesis: "With storage full every mutation is rejected as a quota error and state is unchanged",
		SteadyState: l.invariantMetrics(),
		Method: []Action{l.inject("storage", Fault{Op: OpPut, Fail: true, Err: storage.ErrQuotaExceeded})},
		Workload: []Action{{
			Type:   "loan-churn",
			Target: "circulation",
			Execute: func(ctx context.Context) error {
				err := l.churn(ctx, 1)
				var joined interface{ Unwrap() []error }
				if errors.As(err, &joined) {
					for _, e := range joined.Unwrap() {
						if errors.Is(e, storage.ErrQuotaExceeded) && errors.Is(e, domain.ErrStorage) {
							quotaErrors.Add(1)
						}
					}
				}
				return err
			},
		}},
		Rollback: []Action{l.clearFaults()},
		Validation: append(invariantAssertions(), Assertion{
			Metric:    "invariant_violations",
			Condition: func(float64) bool { return quotaErrors.Load() > 0 },
			Message:   "writes were rejected with quota errors",
		}),
	}
}

// ConcurrentLoanRaceExperiment slows every write and has concurrency
// borrowers reach for the same book at once.
func (l *Library) ConcurrentLoanRaceExperiment(concurrency int, latency time.Duration) Experiment {
	var granted atomic.Int64
	return Experiment{
		Name:        "concurrent-loan-race",
		Hypothesis:  "Concurrent requests for one book produce exactly one loan",
		SteadyState: l.invariantMetrics(),
		Method:      []Action{l.inject("storage", Fault{Op: OpPut, Latency: latency})},
		Workload: []Action{{
			Type:   "concurrent-requests",
			Target: "circulation",
			Execute: func(ctx context.Context) error {
				snap := l.Store.Snapshot()
				available := snap.AvailableBooks()
				if len(available) == 0 || len(snap.Users) == 0 {
					return errors.New("no available book to race for")
				}
				book := available[0]

				var wg sync.WaitGroup
				for i := 0; i < concurrency; i++ {
					user := snap.Users[i%len(snap.Users)]
					wg.Add(1)
					go func() {
						defer wg.Done()
						if _, err := l.Loans.CreateLoan(ctx, user.ID, book.ID); err == nil {
							granted.Add(1)
						} else if !errors.Is(err, domain.ErrConflict) {
							l.logger.WarnContext(ctx, "unexpected loan failure", "error", err)
						}
					}()
				}
				wg.Wait()
				return nil
			},
		}},
		Rollback: []Action{l.clearFaults()},
		Validation: append(invariantAssertions(), Assertion{
			Metric:    "invariant_violations",
			Condition: func(float64) bool { return granted.Load() == 1 },
			Message:   "exactly one concurrent request was granted the book",
		}),
	}
}
