package models

import (
	"strings"

	"github.com/uptrace/bun"
)

const (
	GenderMale   = "M"
	GenderFemale = "F"
	GenderOther  = "O"
)

// Ticket delivery status, owned by the delivery tooling. The scanner reads
// it for email subjects but never changes it.
const (
	TicketNotSent  = "N"
	TicketModified = "M"
	TicketSent     = "S"
)

// Registration is the aggregate the whole scanner revolves around. Its
// integer primary key is what gets signed into printed codes.
type Registration struct {
	bun.BaseModel `bun:"table:registrations,alias:r"`

	ID            int64  `bun:"id,pk,autoincrement"`
	EventID       int64  `bun:"event_id,notnull"`
	Numero        string `bun:"numero,nullzero"`
	CategoryID    int64  `bun:"category_id,notnull"`
	ContactEmails string `bun:"contact_emails,nullzero"`
	FullName      string `bun:"full_name,notnull"`
	Gender        string `bun:"gender,nullzero"`
	UUID          string `bun:"uuid,nullzero"`
	TicketStatus  string `bun:"ticket_status,notnull,default:'N'"`
	Canceled      bool   `bun:"canceled,notnull,default:false"`
	WalletToken   string `bun:"wallet_token,nullzero"`

	Event    *TicketEvent        `bun:"rel:belongs-to,join:event_id=id"`
	Category *TicketCategory     `bun:"rel:belongs-to,join:category_id=id"`
	Metas    []*RegistrationMeta `bun:"rel:has-many,join:id=registration_id"`
	Actions  []*ScannerAction    `bun:"rel:has-many,join:id=registration_id"`
}

// ContactEmailList splits the stored comma-joined emails.
func (r *Registration) ContactEmailList() []string {
	if r.ContactEmails == "" {
		return nil
	}
	return strings.Split(r.ContactEmails, ",")
}

// ContactEmail returns the primary contact email, empty if none.
func (r *Registration) ContactEmail() string {
	emails := r.ContactEmailList()
	if len(emails) == 0 {
		return ""
	}
	return emails[0]
}

// MetaMap flattens the metas into the property->value map the scan screen
// displays.
func (r *Registration) MetaMap() map[string]string {
	meta := make(map[string]string, len(r.Metas))
	for _, m := range r.Metas {
		meta[m.Property] = m.Value
	}
	return meta
}

// RegistrationMeta is one free-form property attached by import (bus number,
// table assignment...). Unique per (registration, property).
type RegistrationMeta struct {
	bun.BaseModel `bun:"table:registration_metas,alias:rm"`

	ID             int64  `bun:"id,pk,autoincrement"`
	RegistrationID int64  `bun:"registration_id,notnull"`
	Property       string `bun:"property,notnull"`
	Value          string `bun:"value,nullzero"`

	Registration *Registration `bun:"rel:belongs-to,join:registration_id=id"`
}
