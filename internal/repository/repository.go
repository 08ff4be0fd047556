package repository

import (
	"context"
	"errors"

	"github.com/mr1hm/relief-hub/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// ReportRepository stores disaster reports. AddReport assigns ID (and
// CreatedAt when the caller left it zero); nothing updates or deletes a report.
type ReportRepository interface {
	AddReport(ctx context.Context, r *models.Report) error
	ListReports(ctx context.Context) ([]models.Report, error)
	CountReports(ctx context.Context) (int64, error)
}

type DonationRepository interface {
	AddDonation(ctx context.Context, d *models.Donation) error
	ListDonations(ctx context.Context) ([]models.Donation, error) // newest first
}

type UserRepository interface {
	AddUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store is everything the API needs from a backend.
type Store interface {
	ReportRepository
	DonationRepository
	UserRepository
	Ping(ctx context.Context) error
	Close() error
}
