package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mr1hm/relief-hub/internal/models"
	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteDB struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// One writer at a time; also keeps ":memory:" on a single shared database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db:    db,
		clock: clockwork.NewRealClock(),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

// WithClock replaces the time source used to stamp records with a zero CreatedAt.
func (s *SQLiteDB) WithClock(c clockwork.Clock) *SQLiteDB {
	s.clock = c
	return s
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			state TEXT NOT NULL,
			description TEXT,
			latitude REAL,
			longitude REAL,
			image_ref TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS donations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			amount REAL NOT NULL CHECK (amount > 0),
			payment_method TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reports_state ON reports(state);
		CREATE INDEX IF NOT EXISTS idx_donations_created_at ON donations(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.clock.Now().UTC()
	}
	return t.UTC()
}

func (s *SQLiteDB) AddReport(ctx context.Context, r *models.Report) error {
	id := uuid.NewString()
	createdAt := s.stamp(r.CreatedAt)

	var lat, lng sql.NullFloat64
	if r.Location != nil {
		lat = sql.NullFloat64{Float64: r.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: r.Location.Lng, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, type, severity, state, description, latitude, longitude, image_ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Type, string(r.Severity), r.State, r.Description, lat, lng, r.ImageRef, createdAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("error inserting report: %w", err)
	}

	r.ID = id
	r.CreatedAt = createdAt
	return nil
}

func (s *SQLiteDB) ListReports(ctx context.Context) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, severity, state, description, latitude, longitude, image_ref, created_at
		FROM reports`)
	if err != nil {
		return nil, fmt.Errorf("error querying reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		var (
			r                     models.Report
			severity, createdAt   string
			description, imageRef sql.NullString
			lat, lng              sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &r.Type, &severity, &r.State, &description, &lat, &lng, &imageRef, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		r.Severity = models.Severity(severity)
		r.Description = description.String
		r.ImageRef = imageRef.String
		if lat.Valid && lng.Valid {
			r.Location = &models.Location{Lat: lat.Float64, Lng: lng.Float64}
		}
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("error parsing created_at for report %s: %w", r.ID, err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *SQLiteDB) CountReports(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting reports: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) AddDonation(ctx context.Context, d *models.Donation) error {
	id := uuid.NewString()
	createdAt := s.stamp(d.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donations (id, name, email, amount, payment_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, d.Name, d.Email, d.Amount, string(d.PaymentMethod), createdAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("error inserting donation: %w", err)
	}

	d.ID = id
	d.CreatedAt = createdAt
	return nil
}

func (s *SQLiteDB) ListDonations(ctx context.Context) ([]models.Donation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, amount, payment_method, created_at
		FROM donations
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("error querying donations: %w", err)
	}
	defer rows.Close()

	donations := make([]models.Donation, 0)
	for rows.Next() {
		var (
			d                 models.Donation
			method, createdAt string
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Amount, &method, &createdAt); err != nil {
			return nil, fmt.Errorf("error scanning donation: %w", err)
		}
		d.PaymentMethod = models.PaymentMethod(method)
		if d.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("error parsing created_at for donation %s: %w", d.ID, err)
		}
		donations = append(donations, d)
	}
	return donations, rows.Err()
}

func (s *SQLiteDB) AddUser(ctx context.Context, u *models.User) error {
	id := uuid.NewString()
	createdAt := s.stamp(u.CreatedAt)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, u.Name, strings.ToLower(u.Email), u.PasswordHash, createdAt.Format(timeLayout),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return fmt.Errorf("error inserting user: %w", err)
	}

	u.ID = id
	u.Email = strings.ToLower(u.Email)
	u.CreatedAt = createdAt
	return nil
}

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *SQLiteDB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u         models.User
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("error scanning user: %w", err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("error parsing created_at for user %s: %w", u.ID, err)
	}
	u.CreatedAt = t
	return &u, nil
}
