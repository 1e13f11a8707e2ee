// Package store persists hospitals and appointments in Postgres and answers
// the scheduling questions the dialogue engine asks before booking.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/medicare-voice/intake/internal/conversation"
	"github.com/medicare-voice/intake/pkg/logging"
)

var storeTracer = otel.Tracer("intake.internal.store")

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository answers scheduling queries against Postgres. A slot is a
// (hospital, date, time) triple; it stays bookable while the number of
// existing appointments is below the configured capacity.
type Repository struct {
	db       querier
	capacity int
	logger   *logging.Logger
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool, capacity int, logger *logging.Logger) *Repository {
	if pool == nil {
		panic("store: pgx pool required")
	}
	return newRepositoryWithQuerier(pool, capacity, logger)
}

func newRepositoryWithQuerier(db querier, capacity int, logger *logging.Logger) *Repository {
	if capacity <= 0 {
		capacity = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{db: db, capacity: capacity, logger: logger}
}

// HospitalExists reports whether the hospital id is registered, and its name.
func (r *Repository) HospitalExists(ctx context.Context, id int) (bool, string, error) {
	ctx, span := storeTracer.Start(ctx, "store.hospital_exists")
	defer span.End()
	span.SetAttributes(attribute.Int("intake.hospital_id", id))

	var name string
	err := r.db.QueryRow(ctx, `SELECT name FROM hospitals WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("store: hospital lookup: %w", err)
	}
	return true, name, nil
}

// SlotAvailable reports whether the (hospital, date, time) slot still has
// capacity.
func (r *Repository) SlotAvailable(ctx context.Context, hospitalID int, date, timeOfDay string) (bool, error) {
	ctx, span := storeTracer.Start(ctx, "store.slot_available")
	defer span.End()
	span.SetAttributes(attribute.Int("intake.hospital_id", hospitalID))

	normalized := NormalizeDate(date)
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments WHERE hospital_id = $1 AND date = $2 AND time = $3`,
		hospitalID, normalized, timeOfDay,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("store: slot count: %w", err)
	}
	return count < r.capacity, nil
}

// CreateAppointment inserts the confirmed draft and returns the new row id.
func (r *Repository) CreateAppointment(ctx context.Context, d *conversation.Draft) (int64, error) {
	ctx, span := storeTracer.Start(ctx, "store.create_appointment")
	defer span.End()

	if d == nil || d.HospitalID == nil {
		return 0, errors.New("store: draft missing hospital id")
	}
	span.SetAttributes(attribute.Int("intake.hospital_id", *d.HospitalID))

	alert := d.Alert
	if alert == nil {
		alert = []string{}
	}

	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO appointments (patient_name, phone, symptoms, date, time, hospital_id, latitude, longitude, alert, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		d.Patient, d.Phone, d.Symptoms, NormalizeDate(d.Date), d.Time, *d.HospitalID,
		d.Latitude, d.Longitude, alert, time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert appointment: %w", err)
	}
	r.logger.Info("appointment persisted", "appointment_id", id, "hospital_id", *d.HospitalID)
	return id, nil
}

// FindPatientByPhone returns the name used on the caller's most recent
// appointment, so repeat callers can be greeted by name.
func (r *Repository) FindPatientByPhone(ctx context.Context, phone string) (bool, string, error) {
	ctx, span := storeTracer.Start(ctx, "store.find_patient_by_phone")
	defer span.End()

	if strings.TrimSpace(phone) == "" {
		return false, "", nil
	}
	var name string
	err := r.db.QueryRow(ctx,
		`SELECT patient_name FROM appointments WHERE phone = $1 ORDER BY created_at DESC LIMIT 1`,
		phone,
	).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, "", nil
		}
		return false, "", fmt.Errorf("store: patient lookup: %w", err)
	}
	return true, name, nil
}

var ordinalSuffixRE = regexp.MustCompile(`(\d+)(?:st|nd|rd|th)`)

// dateLayouts are tried in order; the first parse wins.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"1/2/2006",
	"1-2-2006",
	"January 2, 2006",
	"January 2 2006",
	"2 January 2006",
}

// NormalizeDate renders a spoken or written date as YYYY-MM-DD. Text that
// matches no known layout is stored verbatim so nothing is lost.
func NormalizeDate(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return cleaned
	}
	cleaned = ordinalSuffixRE.ReplaceAllString(cleaned, "$1")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return strings.TrimSpace(raw)
}
