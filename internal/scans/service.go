package scans

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"ms-scanner/internal/codes"
	"ms-scanner/internal/logger"
	"ms-scanner/internal/models"
	"ms-scanner/internal/scans/db"
	"ms-scanner/internal/scans/metrics"
)

// ErrInvalidActionType marks a mutating call with a type outside
// {entrance, cancel}; handlers answer 400, not 404.
var ErrInvalidActionType = errors.New("invalid action type")

// ErrUnknownPoint marks a sequence request for a point that does not exist.
var ErrUnknownPoint = errors.New("unknown scan point")

type DBLayer interface {
	GetRegistrationByID(ctx context.Context, id int64) (*models.Registration, error)
	GetPoint(ctx context.Context, id int64) (*models.ScanPoint, error)
	GetEvent(ctx context.Context, id int64) (*models.TicketEvent, error)
	FirstPointForEvent(ctx context.Context, eventID int64) (*models.ScanPoint, error)
	AppendActionGated(ctx context.Context, action *models.ScannerAction, setCanceled bool) error
	ListActiveActions(ctx context.Context, registrationID int64) ([]*models.ScannerAction, error)
	CreateSeq(ctx context.Context, pointID int64) (*models.ScanSeq, error)
	LatestSeq(ctx context.Context, pointID int64) (*models.ScanSeq, error)
	CountEntrancesSince(ctx context.Context, pointID int64, since *time.Time) (int, error)
}

type RegistrationLocks interface {
	LockRegistration(ctx context.Context, registrationID int64, owner string) (bool, error)
	UnlockRegistration(ctx context.Context, registrationID int64, owner string) error
}

type KafkaPublisher interface {
	PublishActionRecorded(registration *models.Registration, action *models.ScannerAction) error
}

// Counters is the outcome-counter sink; *metrics.Metrics satisfies it.
type Counters interface {
	IncScan(result string)
	IncStateChange(result string)
}

// ScanService drives registrations through their admission lifecycle.
type ScanService struct {
	Codec   *codes.Codec
	DB      DBLayer
	Locks   RegistrationLocks
	Kafka   KafkaPublisher
	Metrics Counters
	Logger  *logger.Logger
}

func NewScanService(codec *codes.Codec, dbl DBLayer, locks RegistrationLocks, kafka KafkaPublisher, counters Counters) *ScanService {
	return &ScanService{Codec: codec, DB: dbl, Locks: locks, Kafka: kafka, Metrics: counters}
}

// Counter increments are fire-and-forget; a missing or broken metrics sink
// never fails a scan.
func (s *ScanService) incScan(result string) {
	if s.Metrics != nil {
		s.Metrics.IncScan(result)
	}
}

func (s *ScanService) incStateChange(result string) {
	if s.Metrics != nil {
		s.Metrics.IncStateChange(result)
	}
}

// The scan log carries registration ids only, never presented codes.
func (s *ScanService) logScan(action string, registrationID int64, message string) {
	if s.Logger != nil {
		s.Logger.LogScan(action, registrationID, message)
	}
}

func (s *ScanService) logError(message string) {
	if s.Logger != nil {
		s.Logger.Error("SCAN", message)
	}
}

// registrationFromCode decodes and loads in one step. The failure label
// distinguishes bad codes from unknown registrations for metrics only; the
// returned error is the same invalid-code kind either way so callers cannot
// probe which identifiers exist.
func (s *ScanService) registrationFromCode(ctx context.Context, code string) (*models.Registration, string, error) {
	id, err := s.Codec.DecodeAndVerify(code)
	if err != nil {
		return nil, metrics.ResultInvalidCode, err
	}

	reg, err := s.DB.GetRegistrationByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, metrics.ResultMissingCode, fmt.Errorf("%w: no registration for identifier", codes.ErrInvalidCode)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load registration: %w", err)
	}
	return reg, "", nil
}

// checkEventMatch rejects scans presented at a point (or claiming an event)
// that does not own the registration. Externally indistinguishable from a
// bad code.
func checkEventMatch(reg *models.Registration, point *models.ScanPoint, eventID *int64) error {
	if point != nil && point.EventID != reg.EventID {
		return fmt.Errorf("%w: scan point belongs to another event", codes.ErrInvalidCode)
	}
	if eventID != nil && *eventID != reg.EventID {
		return fmt.Errorf("%w: registration belongs to another event", codes.ErrInvalidCode)
	}
	return nil
}

// appendLocked serializes the append through the per-registration redis
// lock, then runs the gated transaction. Registrations never share locks,
// so scans for distinct tickets proceed in parallel.
func (s *ScanService) appendLocked(ctx context.Context, action *models.ScannerAction, setCanceled bool) error {
	if s.Locks != nil {
		owner := uuid.New().String()
		ok, err := s.Locks.LockRegistration(ctx, action.RegistrationID, owner)
		if err != nil {
			return fmt.Errorf("redis lock error: %w", err)
		}
		if !ok {
			return fmt.Errorf("registration %d is locked by another scan", action.RegistrationID)
		}
		defer func() {
			if err := s.Locks.UnlockRegistration(ctx, action.RegistrationID, owner); err != nil {
				s.logError(fmt.Sprintf("Failed to release registration lock %d: %v", action.RegistrationID, err))
			}
		}()
	}
	return s.DB.AppendActionGated(ctx, action, setCanceled)
}

// ScanCode records a SCAN for the registration behind code and returns it
// with its sequence-scoped action history. A canceled registration is
// rejected like an unknown code.
func (s *ScanService) ScanCode(ctx context.Context, code, operator string, point *models.ScanPoint, eventID *int64) (*models.Registration, error) {
	reg, label, err := s.registrationFromCode(ctx, code)
	if err != nil {
		if label != "" {
			s.incScan(label)
		}
		return nil, err
	}

	if err := checkEventMatch(reg, point, eventID); err != nil {
		s.incScan(metrics.ResultInvalidCode)
		return nil, err
	}

	if reg.Canceled {
		s.incScan(metrics.ResultInvalidCode)
		return nil, fmt.Errorf("%w: ticket canceled", codes.ErrInvalidCode)
	}

	action := &models.ScannerAction{
		Type:           models.ActionScan,
		RegistrationID: reg.ID,
		PointID:        pointID(point),
		Person:         operator,
	}
	if err := s.appendLocked(ctx, action, false); err != nil {
		if errors.Is(err, db.ErrRegistrationCanceled) {
			s.incScan(metrics.ResultInvalidCode)
			return nil, fmt.Errorf("%w: ticket canceled", codes.ErrInvalidCode)
		}
		return nil, err
	}
	s.incScan(metrics.ResultSuccess)
	s.logScan(string(models.ActionScan), reg.ID, "recorded by "+operator)

	if s.Kafka != nil {
		if err := s.Kafka.PublishActionRecorded(reg, action); err != nil {
			s.logError(fmt.Sprintf("Kafka publish failed for scan on registration %d: %v", reg.ID, err))
		}
	}

	reg.Actions, err = s.DB.ListActiveActions(ctx, reg.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load action history: %w", err)
	}
	return reg, nil
}

// MarkRegistration records an ENTRANCE or CANCEL. A CANCEL flips the
// canceled flag in the same transaction as the action row, so of two
// concurrent cancels exactly one wins and the other sees the flag.
func (s *ScanService) MarkRegistration(ctx context.Context, code string, actionType models.ActionType, operator string, point *models.ScanPoint) (*models.Registration, error) {
	if actionType != models.ActionEntrance && actionType != models.ActionCancel {
		return nil, fmt.Errorf("%w: %q", ErrInvalidActionType, actionType)
	}

	reg, label, err := s.registrationFromCode(ctx, code)
	if err != nil {
		if label != "" {
			s.incStateChange(label)
		}
		return nil, err
	}

	if err := checkEventMatch(reg, point, nil); err != nil {
		s.incStateChange(metrics.ResultInvalidCode)
		return nil, err
	}

	if reg.Canceled {
		s.incStateChange(metrics.ResultInvalidCode)
		return nil, fmt.Errorf("%w: ticket canceled", codes.ErrInvalidCode)
	}

	action := &models.ScannerAction{
		Type:           actionType,
		RegistrationID: reg.ID,
		PointID:        pointID(point),
		Person:         operator,
	}
	if err := s.appendLocked(ctx, action, actionType == models.ActionCancel); err != nil {
		if errors.Is(err, db.ErrRegistrationCanceled) {
			s.incStateChange(metrics.ResultInvalidCode)
			return nil, fmt.Errorf("%w: ticket canceled", codes.ErrInvalidCode)
		}
		return nil, err
	}
	if actionType == models.ActionCancel {
		reg.Canceled = true
	}
	s.incStateChange(string(actionType))
	s.logScan(string(actionType), reg.ID, "recorded by "+operator)

	if s.Kafka != nil {
		if err := s.Kafka.PublishActionRecorded(reg, action); err != nil {
			s.logError(fmt.Sprintf("Kafka publish failed for %s on registration %d: %v", actionType, reg.ID, err))
		}
	}

	return reg, nil
}

// CreateSequence stamps a new sequence boundary, resetting the live
// occupancy for that point without touching history.
func (s *ScanService) CreateSequence(ctx context.Context, pointID int64) (*models.ScanSeq, error) {
	seq, err := s.DB.CreateSeq(ctx, pointID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPoint, pointID)
	}
	if err != nil {
		return nil, err
	}
	return seq, nil
}

// Occupancy returns the "currently inside" count for a counting point:
// entrances recorded strictly after the latest sequence boundary, or over
// all time if the point never had one. Nil for non-counting points.
func (s *ScanService) Occupancy(ctx context.Context, point *models.ScanPoint) (*int, error) {
	if point == nil || !point.Count {
		return nil, nil
	}

	var since *time.Time
	seq, err := s.DB.LatestSeq(ctx, point.ID)
	if err != nil {
		return nil, err
	}
	if seq != nil {
		since = &seq.Created
	}

	count, err := s.DB.CountEntrancesSince(ctx, point.ID, since)
	if err != nil {
		return nil, err
	}
	return &count, nil
}

// ResolvePoint finds the scan point a request is talking about: the point
// parameter when it names one, otherwise the event's first point, otherwise
// none. Mirrors how scanners in the field omit the point on single-gate
// events.
func (s *ScanService) ResolvePoint(ctx context.Context, pointParam, eventParam string) *models.ScanPoint {
	if id, err := strconv.ParseInt(pointParam, 10, 64); err == nil {
		if point, err := s.DB.GetPoint(ctx, id); err == nil {
			return point
		}
	}
	if eventID, err := strconv.ParseInt(eventParam, 10, 64); err == nil {
		if point, err := s.DB.FirstPointForEvent(ctx, eventID); err == nil {
			return point
		}
	}
	return nil
}

// ResolveEventID parses and verifies the event parameter, nil when absent
// or unknown.
func (s *ScanService) ResolveEventID(ctx context.Context, eventParam string) *int64 {
	id, err := strconv.ParseInt(eventParam, 10, 64)
	if err != nil {
		return nil
	}
	event, err := s.DB.GetEvent(ctx, id)
	if err != nil {
		return nil
	}
	return &event.ID
}

func pointID(point *models.ScanPoint) *int64 {
	if point == nil {
		return nil
	}
	return &point.ID
}
