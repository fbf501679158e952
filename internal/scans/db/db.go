package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"ms-scanner/internal/models"
)

// ErrRegistrationCanceled is returned by AppendActionGated when the
// registration was already canceled; the service collapses it into the
// public invalid-code error.
var ErrRegistrationCanceled = errors.New("registration canceled")

type DB struct {
	Bun *bun.DB
}

// GetRegistrationByID loads a registration with the relations the scan
// screen needs. sql.ErrNoRows is returned untouched so callers can tell
// "missing" from real storage failures.
func (d *DB) GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error) {
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Relation("Event").
		Relation("Category").
		Relation("Metas").
		Where("r.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// GetRegistrationByWalletToken loads a registration addressed by its wallet
// download token. Both the id and the token must match; registrations
// without a token are unreachable this way.
func (d *DB) GetRegistrationByWalletToken(ctx context.Context, id int64, token string) (*models.Registration, error) {
	if token == "" {
		return nil, sql.ErrNoRows
	}
	var reg models.Registration
	err := d.Bun.NewSelect().
		Model(&reg).
		Relation("Event").
		Relation("Category").
		Where("r.id = ?", id).
		Where("r.wallet_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (d *DB) GetPoint(ctx context.Context, id int64) (*models.ScanPoint, error) {
	var point models.ScanPoint
	err := d.Bun.NewSelect().
		Model(&point).
		Where("sp.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &point, nil
}

func (d *DB) GetEvent(ctx context.Context, id int64) (*models.TicketEvent, error) {
	var event models.TicketEvent
	err := d.Bun.NewSelect().
		Model(&event).
		Where("te.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// FirstPointForEvent returns the lowest-id scan point of an event, used as
// the fallback when a scanner does not say which gate it is.
func (d *DB) FirstPointForEvent(ctx context.Context, eventID int64) (*models.ScanPoint, error) {
	var point models.ScanPoint
	err := d.Bun.NewSelect().
		Model(&point).
		Where("sp.event_id = ?", eventID).
		Order("sp.id ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &point, nil
}

// AppendActionGated appends one action inside a transaction that re-reads
// the canceled flag first, so the check-then-append sequence cannot
// interleave with a concurrent cancel of the same registration. With
// setCanceled the flag is flipped in the same transaction; the flip and the
// CANCEL row land together or not at all.
func (d *DB) AppendActionGated(ctx context.Context, action *models.ScannerAction, setCanceled bool) error {
	if action.Time.IsZero() {
		action.Time = time.Now().UTC()
	}
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var reg models.Registration
		if err := tx.NewSelect().
			Model(&reg).
			Column("r.id", "r.canceled").
			Where("r.id = ?", action.RegistrationID).
			Limit(1).
			Scan(ctx); err != nil {
			return err
		}
		if reg.Canceled {
			return ErrRegistrationCanceled
		}

		if _, err := tx.NewInsert().Model(action).Exec(ctx); err != nil {
			return err
		}

		if setCanceled {
			if _, err := tx.NewUpdate().
				Model((*models.Registration)(nil)).
				Set("canceled = ?", true).
				Where("id = ?", action.RegistrationID).
				Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListActiveActions returns the registration's actions still visible on the
// scan screen, newest first. An action is hidden as soon as a sequence
// boundary for its point is stamped at or after its time; actions without a
// point are always visible.
func (d *DB) ListActiveActions(ctx context.Context, registrationID int64) ([]*models.ScannerAction, error) {
	var actions []*models.ScannerAction
	err := d.Bun.NewSelect().
		Model(&actions).
		Relation("Point").
		Where("sa.registration_id = ?", registrationID).
		Where("sa.point_id IS NULL OR NOT EXISTS (SELECT 1 FROM scan_seqs WHERE scan_seqs.point_id = sa.point_id AND scan_seqs.created >= sa.time)").
		Order("sa.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return actions, nil
}

// LatestSeq returns the most recent sequence boundary for a point, nil if
// the point never had one.
func (d *DB) LatestSeq(ctx context.Context, pointID int64) (*models.ScanSeq, error) {
	var seq models.ScanSeq
	err := d.Bun.NewSelect().
		Model(&seq).
		Where("seq.point_id = ?", pointID).
		Order("seq.created DESC", "seq.id DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seq, nil
}

// CreateSeq stamps a new sequence boundary for a point. The point must
// exist; nothing else is validated.
func (d *DB) CreateSeq(ctx context.Context, pointID int64) (*models.ScanSeq, error) {
	if _, err := d.GetPoint(ctx, pointID); err != nil {
		return nil, err
	}
	seq := &models.ScanSeq{
		PointID: pointID,
		Created: time.Now().UTC(),
	}
	if _, err := d.Bun.NewInsert().Model(seq).Exec(ctx); err != nil {
		return nil, err
	}
	return seq, nil
}

// CountEntrancesSince counts ENTRANCE actions at a point, optionally only
// those strictly after a sequence boundary.
func (d *DB) CountEntrancesSince(ctx context.Context, pointID int64, since *time.Time) (int, error) {
	q := d.Bun.NewSelect().
		Model((*models.ScannerAction)(nil)).
		Where("sa.type = ?", models.ActionEntrance).
		Where("sa.point_id = ?", pointID)
	if since != nil {
		q = q.Where("sa.time > ?", *since)
	}
	return q.Count(ctx)
}
