package store

import (
	"fmt"
	"time"

	"libradesk/internal/domain"
)

// Tx gives an Update callback access to working copies of the collections.
// A collection is copied the first time it is modified, so committed state
// is never touched before the commit succeeds.
type Tx struct {
	store *Store
	now   time.Time

	users []domain.User
	books []domain.Book
	loans []domain.Loan

	usersDirty bool
	booksDirty bool
	loansDirty bool
}

// Now is the timestamp of the operation.
func (tx *Tx) Now() time.Time {
	return tx.now
}

// View returns the working state for lookups. The slices are shared with tx
// and must not be modified.
func (tx *Tx) View() Snapshot {
	return Snapshot{Users: tx.users, Books: tx.books, Loans: tx.loans}
}

func (tx *Tx) dirty() bool {
	return tx.usersDirty || tx.booksDirty || tx.loansDirty
}

func (tx *Tx) newID(taken func(string) bool) string {
	for {
		id := tx.store.ids.Next()
		if !taken(id) {
			return id
		}
	}
}

// NewUserID returns an id no user has.
func (tx *Tx) NewUserID() string {
	return tx.newID(func(id string) bool { _, ok := tx.View().User(id); return ok })
}

// NewBookID returns an id no book has.
func (tx *Tx) NewBookID() string {
	return tx.newID(func(id string) bool { _, ok := tx.View().Book(id); return ok })
}

// NewLoanID returns an id no loan has.
func (tx *Tx) NewLoanID() string {
	return tx.newID(func(id string) bool { _, ok := tx.View().Loan(id); return ok })
}

func (tx *Tx) mutUsers() {
	if !tx.usersDirty {
		tx.users = append([]domain.User(nil), tx.users...)
		tx.usersDirty = true
	}
}

func (tx *Tx) mutBooks() {
	if !tx.booksDirty {
		tx.books = append([]domain.Book(nil), tx.books...)
		tx.booksDirty = true
	}
}

func (tx *Tx) mutLoans() {
	if !tx.loansDirty {
		tx.loans = cloneLoans(tx.loans)
		tx.loansDirty = true
	}
}

// InsertUser appends u.
func (tx *Tx) InsertUser(u domain.User) {
	tx.mutUsers()
	tx.users = append(tx.users, u)
}

// ReplaceUser overwrites the user with u.ID in place.
func (tx *Tx) ReplaceUser(u domain.User) error {
	for i := range tx.users {
		if tx.users[i].ID == u.ID {
			tx.mutUsers()
			tx.users[i] = u
			return nil
		}
	}
	return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
}

// DeleteUser removes the user with id.
func (tx *Tx) DeleteUser(id string) error {
	for i := range tx.users {
		if tx.users[i].ID == id {
			tx.mutUsers()
			tx.users = append(tx.users[:i], tx.users[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
}

// InsertBook appends b.
func (tx *Tx) InsertBook(b domain.Book) {
	tx.mutBooks()
	tx.books = append(tx.books, b)
}

// ReplaceBook overwrites the book with b.ID in place.
func (tx *Tx) ReplaceBook(b domain.Book) error {
	for i := range tx.books {
		if tx.books[i].ID == b.ID {
			tx.mutBooks()
			tx.books[i] = b
			return nil
		}
	}
	return fmt.Errorf("%w: book %s", domain.ErrNotFound, b.ID)
}

// DeleteBook removes the book with id.
func (tx *Tx) DeleteBook(id string) error {
	for i := range tx.books {
		if tx.books[i].ID == id {
			tx.mutBooks()
			tx.books = append(tx.books[:i], tx.books[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: book %s", domain.ErrNotFound, id)
}

// InsertLoan appends l.
func (tx *Tx) InsertLoan(l domain.Loan) {
	tx.mutLoans()
	tx.loans = append(tx.loans, cloneLoan(l))
}

// ReplaceLoan overwrites the loan with l.ID in place.
func (tx *Tx) ReplaceLoan(l domain.Loan) error {
	for i := range tx.loans {
		if tx.loans[i].ID == l.ID {
			tx.mutLoans()
			tx.loans[i] = cloneLoan(l)
			return nil
		}
	}
	return fmt.Errorf("%w: loan %s", domain.ErrNotFound, l.ID)
}
