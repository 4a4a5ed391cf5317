package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"needsmatch/internal/events"
	"needsmatch/internal/utils"
	"needsmatch/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	eventTableName  = "events"
	signupTableName = "event_signups"
)

var (
	eventColumns  = utils.StructTagValues(types.Event{})
	signupColumns = utils.StructTagValues(types.EventSignup{})
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Event(ctx context.Context, eventID string) (*types.Event, error) {
	return event(ctx, r.pool, eventID, false)
}

// Events lists events by start time. An empty needID lists all of them.
func (r *EventRepository) Events(ctx context.Context, needID string) ([]*types.Event, error) {
	builder := psql().Select(eventColumns...).From(eventTableName).OrderBy("starts_at ASC", "id ASC")
	if needID != "" {
		builder = builder.Where(sq.Eq{"need_id": needID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate events query: %w", err)
	}

	var list = make([]*types.Event, 0)
	if err := pgxscan.Select(ctx, r.pool, &list, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}

	return list, nil
}

func (r *EventRepository) CreateEvent(ctx context.Context, e *types.Event) error {
	now := time.Now()
	e.ID = utils.NanoID()
	e.CreatedAt = now
	e.UpdatedAt = now

	query, args, err := psql().Insert(eventTableName).SetMap(utils.StructToMap(e)).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert event query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	if isForeignKeyViolation(err) {
		return types.ErrNeedNotFound
	}
	return utils.ErrorWrapOrNil(err, "failed to create event")
}

func (r *EventRepository) UpdateEvent(ctx context.Context, eventID string, e *types.Event) error {
	e.ID = eventID
	e.UpdatedAt = time.Now()

	query, args, err := psql().Update(eventTableName).
		SetMap(map[string]any{
			"title":           e.Title,
			"description":     e.Description,
			"location":        e.Location,
			"starts_at":       e.StartsAt,
			"ends_at":         e.EndsAt,
			"volunteer_slots": e.VolunteerSlots,
			"updated_at":      e.UpdatedAt,
		}).
		Where(sq.Eq{"id": eventID}).
		Suffix("RETURNING " + strings.Join(eventColumns, ", ")).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update event query for event %s: %w", eventID, err)
	}

	err = pgxscan.Get(ctx, r.pool, e, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return types.ErrEventNotFound
		}
		return fmt.Errorf("failed to update event %s: %w", eventID, err)
	}

	return nil
}

func (r *EventRepository) DeleteEvent(ctx context.Context, eventID string) error {
	query, args, err := psql().Delete(eventTableName).Where(sq.Eq{"id": eventID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate delete event query for event %s: %w", eventID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}

	if tag.RowsAffected() == 0 {
		return types.ErrEventNotFound
	}

	return nil
}

func (r *EventRepository) Signups(ctx context.Context, eventID string) ([]*types.EventSignup, error) {
	return signups(ctx, r.pool, eventID)
}

// Signup adds a user to an event, or re-applies an existing signup. The
// event row is locked so two concurrent signups cannot both take the last
// slot.
func (r *EventRepository) Signup(ctx context.Context, eventID, userID string) (*types.EventSignup, error) {
	var signup types.EventSignup

	err := withTx(ctx, r.pool, func(tx pgx.Tx) error {
		e, err := event(ctx, tx, eventID, true)
		if err != nil {
			return err
		}

		all, err := signups(ctx, tx, eventID)
		if err != nil {
			return err
		}

		var current *types.EventSignup
		for _, s := range all {
			if s.UserID == userID {
				current = s
				break
			}
		}

		confirmed, _ := events.Counts(all)
		status := events.SignupStatus(current, confirmed, e.VolunteerSlots)

		now := time.Now()
		query, args, err := psql().Insert(signupTableName).
			Columns("event_id", "user_id", "status", "created_at", "updated_at").
			Values(eventID, userID, status, now, now).
			Suffix("ON CONFLICT (event_id, user_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at").
			Suffix("RETURNING " + strings.Join(signupColumns, ", ")).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to generate upsert signup query: %w", err)
		}

		err = pgxscan.Get(ctx, tx, &signup, query, args...)
		if err != nil {
			if isForeignKeyViolation(err) {
				return types.ErrUserNotFound
			}
			return fmt.Errorf("failed to upsert signup: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &signup, nil
}

// Cancel marks a signup cancelled without deleting it. When a confirmed
// volunteer drops out, the longest-waiting waitlisted volunteer takes the
// freed slot and is returned as promoted.
func (r *EventRepository) Cancel(ctx context.Context, eventID, userID string) (cancelled, promoted *types.EventSignup, err error) {
	err = withTx(ctx, r.pool, func(tx pgx.Tx) error {
		e, err := event(ctx, tx, eventID, true)
		if err != nil {
			return err
		}

		all, err := signups(ctx, tx, eventID)
		if err != nil {
			return err
		}

		for _, s := range all {
			if s.UserID == userID {
				cancelled = s
				break
			}
		}
		if cancelled == nil {
			return types.ErrSignupNotFound
		}
		if cancelled.Status == types.SignupStatusCancelled {
			return nil
		}

		wasConfirmed := cancelled.Status == types.SignupStatusConfirmed
		now := time.Now()
		if err := setSignupStatus(ctx, tx, cancelled, types.SignupStatusCancelled, now); err != nil {
			return err
		}

		if !wasConfirmed {
			return nil
		}

		confirmed, _ := events.Counts(all)
		next := events.NextInLine(all)
		if next == nil || confirmed >= e.VolunteerSlots {
			return nil
		}

		if err := setSignupStatus(ctx, tx, next, types.SignupStatusConfirmed, now); err != nil {
			return err
		}
		promoted = next
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return cancelled, promoted, nil
}

func event(ctx context.Context, q pgxscan.Querier, eventID string, forUpdate bool) (*types.Event, error) {
	builder := psql().Select(eventColumns...).From(eventTableName).Where(sq.Eq{"id": eventID})
	if forUpdate {
		builder = builder.Suffix("FOR UPDATE")
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event query: %w", err)
	}

	var e types.Event
	err = pgxscan.Get(ctx, q, &e, query, args...)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, types.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to fetch event %s: %w", eventID, err)
	}

	return &e, nil
}

func signups(ctx context.Context, q pgxscan.Querier, eventID string) ([]*types.EventSignup, error) {
	query, args, err := psql().Select(signupColumns...).From(signupTableName).
		Where(sq.Eq{"event_id": eventID}).
		OrderBy("created_at ASC", "user_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signups query: %w", err)
	}

	var list = make([]*types.EventSignup, 0)
	if err := pgxscan.Select(ctx, q, &list, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch signups for event %s: %w", eventID, err)
	}

	return list, nil
}

func setSignupStatus(ctx context.Context, tx pgx.Tx, s *types.EventSignup, status types.SignupStatus, now time.Time) error {
	query, args, err := psql().Update(signupTableName).
		Set("status", status).
		Set("updated_at", now).
		Where(sq.Eq{"event_id": s.EventID, "user_id": s.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate signup status query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to set signup status: %w", err)
	}

	s.Status = status
	s.UpdatedAt = now
	return nil
}
