// internal/membership/domain.go
package membership

import (
	"fmt"
	"strings"

	"libradesk/internal/domain"
)

// UserFields carries raw form values for a user. A nil field was not
// supplied.
type UserFields struct {
	Name  *string
	Email *string
}

// NewUserFields builds fields with both values supplied.
func NewUserFields(name, email string) UserFields {
	return UserFields{Name: &name, Email: &email}
}

// apply merges the supplied fields into u. Supplied values are trimmed and
// must not be empty.
func (f UserFields) apply(u domain.User) (domain.User, error) {
	if f.Name != nil {
		name := strings.TrimSpace(*f.Name)
		if name == "" {
			return u, fmt.Errorf("%w: name is required", domain.ErrValidation)
		}
		u.Name = name
	}
	if f.Email != nil {
		email := strings.TrimSpace(*f.Email)
		if email == "" {
			return u, fmt.Errorf("%w: email is required", domain.ErrValidation)
		}
		u.Email = email
	}
	return u, nil
}

// validateNew checks that every field a registration needs was supplied.
func (f UserFields) validateNew() error {
	var missing []string
	if f.Name == nil || strings.TrimSpace(*f.Name) == "" {
		missing = append(missing, "name")
	}
	if f.Email == nil || strings.TrimSpace(*f.Email) == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
