// internal/catalog/domain.go
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"libradesk/internal/domain"
)

// BookFields carries raw form values for a book. Year stays a string until
// it is validated; a nil field was not supplied.
type BookFields struct {
	Title  *string
	Author *string
	Year   *string
	Genre  *string
}

// NewBookFields builds fields with every value supplied.
func NewBookFields(title, author string, year int, genre string) BookFields {
	y := strconv.Itoa(year)
	return BookFields{Title: &title, Author: &author, Year: &y, Genre: &genre}
}

// apply merges the supplied fields into b. Availability is never touched.
func (f BookFields) apply(b domain.Book) (domain.Book, error) {
	for _, field := range []struct {
		name string
		raw  *string
		dst  *string
	}{
		{"title", f.Title, &b.Title},
		{"author", f.Author, &b.Author},
		{"genre", f.Genre, &b.Genre},
	} {
		if field.raw == nil {
			continue
		}
		v := strings.TrimSpace(*field.raw)
		if v == "" {
			return b, fmt.Errorf("%w: %s is required", domain.ErrValidation, field.name)
		}
		*field.dst = v
	}
	if f.Year != nil {
		year, err := parseYear(*f.Year)
		if err != nil {
			return b, err
		}
		b.Year = year
	}
	return b, nil
}

// validateNew checks that every field a new book needs was supplied.
func (f BookFields) validateNew() error {
	var missing []string
	for _, field := range []struct {
		name string
		raw  *string
	}{
		{"title", f.Title},
		{"author", f.Author},
		{"year", f.Year},
		{"genre", f.Genre},
	} {
		if field.raw == nil || strings.TrimSpace(*field.raw) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

func parseYear(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: year is required", domain.ErrValidation)
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: year %q is not a whole number", domain.ErrValidation, raw)
	}
	return year, nil
}
