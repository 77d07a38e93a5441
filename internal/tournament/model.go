// Package tournament stores tournaments and serves them over HTTP. Every
// storage result leaves the package as an outcome.Envelope.
package tournament

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/quizmeet/internal/errs"
)

// Entity is the name used in response messages and logs.
const Entity = "Tournament"

const dateLayout = "2006-01-02"

// Date is a calendar day, encoded in JSON as "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate returns the given day at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), t.Month(), t.Day())
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("date %q: want YYYY-MM-DD", s)
	}
	d.Time = t
	return nil
}

// Tournament is one stored tournament.
type Tournament struct {
	ID           uuid.UUID `json:"id"`
	Organization string    `json:"organization"`
	Name         string    `json:"name"`
	Breadcrumb   string    `json:"breadcrumb"`
	FromDate     Date      `json:"from_date"`
	ToDate       Date      `json:"to_date"`
	Venue        string    `json:"venue"`
	City         string    `json:"city"`
	Region       string    `json:"region"`
	Country      string    `json:"country"`
	Contact      string    `json:"contact"`
	ContactEmail string    `json:"contact_email"`
	IsPublic     bool      `json:"is_public"`
	ShortInfo    string    `json:"short_info"`
	Info         string    `json:"info"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Changeset holds the writable fields for create and update.
type Changeset struct {
	Organization string `json:"organization"`
	Name         string `json:"name"`
	Breadcrumb   string `json:"breadcrumb"`
	FromDate     Date   `json:"from_date"`
	ToDate       Date   `json:"to_date"`
	Venue        string `json:"venue"`
	City         string `json:"city"`
	Region       string `json:"region"`
	Country      string `json:"country"`
	Contact      string `json:"contact"`
	ContactEmail string `json:"contact_email"`
	IsPublic     bool   `json:"is_public"`
	ShortInfo    string `json:"short_info"`
	Info         string `json:"info"`
}

// Validate rejects changesets the schema would refuse anyway.
func (c Changeset) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.Breadcrumb) == "" {
		missing = append(missing, "breadcrumb")
	}
	if c.FromDate.IsZero() {
		missing = append(missing, "from_date")
	}
	if c.ToDate.IsZero() {
		missing = append(missing, "to_date")
	}
	if len(missing) > 0 {
		return errs.New(errs.ErrKindInvalidInput, "missing required fields: "+strings.Join(missing, ", "))
	}
	if c.FromDate.After(c.ToDate.Time) {
		return errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("from_date %s is after to_date %s", c.FromDate, c.ToDate))
	}
	return nil
}

// Page selects one page of a listing. Page is zero based.
type Page struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// Normalize clamps the page into the accepted range.
func (p Page) Normalize() Page {
	if p.Page < 0 {
		p.Page = 0
	}
	switch {
	case p.PageSize <= 0:
		p.PageSize = DefaultPageSize
	case p.PageSize > MaxPageSize:
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset is the number of rows skipped before this page.
func (p Page) Offset() int {
	return p.Page * p.PageSize
}

// Deleted is the body returned after a successful delete.
type Deleted struct {
	ID uuid.UUID `json:"id"`
}
