package customer

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"
)

const (
	TypeShipping       = "shipping"
	DefaultCountryCode = "IN"
)

// Customer is a storefront customer. Nullable profile fields are filled incrementally and never
// overwritten once set.
type Customer struct {
	ID          uuid.UUID `json:"id" db:"id"`
	AuthID      *string   `json:"auth_id,omitempty" db:"auth_id"`
	Email       string    `json:"email" db:"email"`
	Phone       *string   `json:"phone,omitempty" db:"phone"`
	FirstName   *string   `json:"first_name,omitempty" db:"first_name"`
	LastName    *string   `json:"last_name,omitempty" db:"last_name"`
	Address1    *string   `json:"address1,omitempty" db:"address1"`
	Address2    *string   `json:"address2,omitempty" db:"address2"`
	City        *string   `json:"city,omitempty" db:"city"`
	Province    *string   `json:"province,omitempty" db:"province"`
	Zip         *string   `json:"zip,omitempty" db:"zip"`
	CountryCode *string   `json:"country_code,omitempty" db:"country_code"`
	Type        string    `json:"type" db:"type"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Address is a postal address as submitted at checkout or printed on an invoice.
type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2"`
	City        string `json:"city"`
	Province    string `json:"province"`
	Zip         string `json:"zip"`
	CountryCode string `json:"country_code"`
}

// IsEmpty reports whether the address carries no street-level information.
func (a Address) IsEmpty() bool {
	return strings.TrimSpace(a.Address1) == "" && strings.TrimSpace(a.City) == ""
}

// Address returns the stored profile address.
func (c *Customer) Address() Address {
	return Address{
		FirstName:   deref(c.FirstName),
		LastName:    deref(c.LastName),
		Phone:       deref(c.Phone),
		Address1:    deref(c.Address1),
		Address2:    deref(c.Address2),
		City:        deref(c.City),
		Province:    deref(c.Province),
		Zip:         deref(c.Zip),
		CountryCode: deref(c.CountryCode),
	}
}

// Patch lists profile fields to fill. A nil field is left alone.
type Patch struct {
	AuthID      *string
	Phone       *string
	FirstName   *string
	LastName    *string
	Address1    *string
	Address2    *string
	City        *string
	Province    *string
	Zip         *string
	CountryCode *string
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p == Patch{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
