package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/relief-hub/internal/imagestore"
	"github.com/mr1hm/relief-hub/internal/metrics"
	"github.com/mr1hm/relief-hub/internal/models"
	"github.com/mr1hm/relief-hub/internal/repository"
)

const defaultUploadTimeout = 30 * time.Second

// Publisher is told about every stored report. It must not block.
type Publisher interface {
	Publish(r *models.Report)
}

// Service is the ingestion and retrieval path for disaster reports.
type Service struct {
	repo          repository.ReportRepository
	images        imagestore.Store
	publisher     Publisher
	metrics       *metrics.Metrics
	logger        *slog.Logger
	clock         clockwork.Clock
	uploadTimeout time.Duration
}

// NewService wires the service. images and publisher may be nil; a nil
// image store rejects submissions that carry an image.
func NewService(repo repository.ReportRepository, images imagestore.Store, publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.NewMetricsForTesting()
	}
	return &Service{
		repo:          repo,
		images:        images,
		publisher:     publisher,
		metrics:       m,
		logger:        logger,
		clock:         clockwork.NewRealClock(),
		uploadTimeout: defaultUploadTimeout,
	}
}

func (s *Service) WithClock(c clockwork.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) WithUploadTimeout(d time.Duration) *Service {
	if d > 0 {
		s.uploadTimeout = d
	}
	return s
}

// Create validates sub, stores its image (if any) and then the report, and
// hands the stored report to the publisher. The image is written first so a
// stored report never references a missing file; if the report write fails
// the image is left unreferenced.
func (s *Service) Create(ctx context.Context, sub Submission) (*models.Report, error) {
	report, err := Validate(sub)
	if err != nil {
		s.metrics.ReportRejections.WithLabelValues("validation").Inc()
		return nil, err
	}

	if sub.Image != nil {
		ref, err := s.saveImage(ctx, sub.Image)
		if err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				s.metrics.ReportRejections.WithLabelValues("validation").Inc()
			} else {
				s.metrics.ReportRejections.WithLabelValues("image").Inc()
			}
			return nil, err
		}
		report.ImageRef = ref
	}

	report.CreatedAt = s.clock.Now().UTC()

	if err := s.repo.AddReport(ctx, report); err != nil {
		s.metrics.ReportRejections.WithLabelValues("storage").Inc()
		s.logger.Error("store report failed", "type", report.Type, "state", report.State, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	s.metrics.ReportsCreated.Inc()

	if s.publisher != nil {
		published := *report
		s.publisher.Publish(&published)
	}

	s.logger.Info("report created", "id", report.ID, "type", report.Type, "severity", report.Severity, "state", report.State)
	return report, nil
}

func (s *Service) saveImage(ctx context.Context, up *Upload) (string, error) {
	if s.images == nil {
		return "", invalid("image", "image uploads are not enabled")
	}
	if up.Content == nil {
		return "", invalid("image", "image is empty")
	}

	contentType, err := imagestore.Inspect(up.Content)
	if err != nil {
		return "", invalid("image", "%v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	start := s.clock.Now()
	ref, err := s.images.Save(ctx, imagestore.GenerateName(up.Filename), contentType, up.Content)
	s.metrics.ImageUploadDuration.Observe(s.clock.Since(start).Seconds())
	if err != nil {
		s.logger.Error("save image failed", "filename", up.Filename, "error", err)
		return "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return ref, nil
}

// List returns every stored report, unfiltered.
func (s *Service) List(ctx context.Context) ([]models.Report, error) {
	reports, err := s.repo.ListReports(ctx)
	if err != nil {
		s.logger.Error("list reports failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if reports == nil {
		reports = []models.Report{}
	}
	return reports, nil
}

func (s *Service) Count(ctx context.Context) (int64, error) {
	n, err := s.repo.CountReports(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return n, nil
}
