package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ActionType is the closed set of things staff can do with a code.
type ActionType string

const (
	ActionScan     ActionType = "scan"
	ActionEntrance ActionType = "entrance"
	ActionCancel   ActionType = "cancel"
)

// Valid reports whether t is one of the known action types.
func (t ActionType) Valid() bool {
	switch t {
	case ActionScan, ActionEntrance, ActionCancel:
		return true
	}
	return false
}

// ScannerAction is one row of the append-only scan log. Rows are never
// updated or deleted; display order is newest first (descending pk).
type ScannerAction struct {
	bun.BaseModel `bun:"table:scanner_actions,alias:sa"`

	ID             int64      `bun:"id,pk,autoincrement"`
	Type           ActionType `bun:"type,notnull"`
	RegistrationID int64      `bun:"registration_id,notnull"`
	PointID        *int64     `bun:"point_id"`
	Person         string     `bun:"person,notnull"`
	Time           time.Time  `bun:"time,notnull,default:current_timestamp"`

	Registration *Registration `bun:"rel:belongs-to,join:registration_id=id"`
	Point        *ScanPoint    `bun:"rel:belongs-to,join:point_id=id"`
}
