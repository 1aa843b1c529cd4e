package domain

import "time"

// Department represents an organizational unit that owns support staff
// and routed tickets.
type Department struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
