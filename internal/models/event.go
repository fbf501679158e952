package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketEvent struct {
	bun.BaseModel `bun:"table:ticket_events,alias:te"`

	ID                  int64     `bun:"id,pk,autoincrement"`
	Name                string    `bun:"name,notnull"`
	SendTicketsUntil    time.Time `bun:"send_tickets_until,nullzero"`
	TicketTemplate      string    `bun:"ticket_template,nullzero"`
	MosaicoURL          string    `bun:"mosaico_url,nullzero"`
	GoogleWalletClassID string    `bun:"google_wallet_class_id,nullzero"`
	StartDate           time.Time `bun:"start_date,nullzero"`
	EndDate             time.Time `bun:"end_date,nullzero"`

	ScanPoints []*ScanPoint      `bun:"rel:has-many,join:id=event_id"`
	Categories []*TicketCategory `bun:"rel:has-many,join:id=event_id"`
}

// TicketCategory drives presentation on the scan screen (name and colors).
// It is set at import time and never touched by the scanner.
type TicketCategory struct {
	bun.BaseModel `bun:"table:ticket_categories,alias:tc"`

	ID              int64  `bun:"id,pk,autoincrement"`
	EventID         int64  `bun:"event_id,notnull"`
	ImportKey       string `bun:"import_key,nullzero"`
	Name            string `bun:"name,notnull"`
	Color           string `bun:"color,nullzero"`
	BackgroundColor string `bun:"background_color,nullzero"`
	MosaicoURL      string `bun:"mosaico_url,nullzero"`

	Event *TicketEvent `bun:"rel:belongs-to,join:event_id=id"`
}
