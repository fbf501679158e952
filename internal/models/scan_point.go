package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ScanPoint is a physical gate or station. Count toggles the live "inside"
// counter on the scan screen for that gate.
type ScanPoint struct {
	bun.BaseModel `bun:"table:scan_points,alias:sp"`

	ID      int64  `bun:"id,pk,autoincrement"`
	EventID int64  `bun:"event_id,notnull"`
	Name    string `bun:"name,notnull"`
	Count   bool   `bun:"count,notnull,default:false"`

	Event *TicketEvent `bun:"rel:belongs-to,join:event_id=id"`
	Seqs  []*ScanSeq   `bun:"rel:has-many,join:id=point_id"`
}

// ScanSeq marks the start of a new scan sequence for a point. Occupancy and
// the visible action history only consider actions recorded after the most
// recent marker.
type ScanSeq struct {
	bun.BaseModel `bun:"table:scan_seqs,alias:seq"`

	ID      int64     `bun:"id,pk,autoincrement"`
	PointID int64     `bun:"point_id,notnull"`
	Created time.Time `bun:"created,notnull,default:current_timestamp"`

	Point *ScanPoint `bun:"rel:belongs-to,join:point_id=id"`
}
