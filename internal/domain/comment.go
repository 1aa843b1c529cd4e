package domain

import "time"

// Comment is one append-only entry in a ticket thread. AuthorRole records
// the author's role at posting time; entries are never edited or deleted
// except through ticket cascade delete.
type Comment struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorRole Role
	Content    string
	CreatedAt  time.Time
}
