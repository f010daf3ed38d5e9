package report

import (
	"context"
	"fmt"
	"time"

	"gcx-supplier-go/audit"
	"gcx-supplier-go/database"
	"gcx-supplier-go/metrics"
	"gcx-supplier-go/models"
	"gcx-supplier-go/requirements"
	"gcx-supplier-go/storage"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceOptions struct {
	Store   storage.Store
	Audit   *audit.Recorder
	Metrics *metrics.Metrics
	Policy  requirements.Policy
	Logger  *zap.Logger
	Now     func() time.Time
	// Timeout bounds one generation, including the snapshot read.
	Timeout time.Duration
}

// Service reads a consistent snapshot and renders it.
type Service struct {
	db      *gorm.DB
	gen     *Generator
	store   storage.Store
	audit   *audit.Recorder
	metrics *metrics.Metrics
	policy  requirements.Policy
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

func NewService(db *gorm.DB, gen *Generator, opts ServiceOptions) *Service {
	s := &Service{
		db:      db,
		gen:     gen,
		store:   opts.Store,
		audit:   opts.Audit,
		metrics: opts.Metrics,
		policy:  opts.Policy,
		logger:  opts.Logger,
		now:     opts.Now,
		timeout: opts.Timeout,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("report")
	if s.now == nil {
		s.now = time.Now
	}
	if s.audit == nil {
		s.audit = audit.NewRecorder(s.now)
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}
	return s
}

// Generate renders the report for application id. With persist set the
// bytes are also written to the store under the tracking code.
func (s *Service) Generate(ctx context.Context, id uint, persist bool, actor audit.Actor) (*Report, error) {
	started := time.Now()
	rep, err := s.generate(ctx, id, persist, actor)
	s.metrics.Report(started, err)
	if err != nil {
		s.logger.Warn("report generation failed", zap.Uint("application_id", id), zap.Error(err))
		return nil, err
	}
	s.logger.Info("report generated",
		zap.Uint("application_id", id),
		zap.Int("bytes", len(rep.Bytes)),
		zap.Bool("persisted", rep.StorageRef != ""),
		zap.Duration("elapsed", time.Since(started)))
	return rep, nil
}

func (s *Service) generate(ctx context.Context, id uint, persist bool, actor audit.Actor) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	agg, err := database.LoadAggregate(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	res := requirements.Resolve(requirements.InputFrom(agg), s.policy)
	for _, w := range res.Warnings {
		s.logger.Warn("requirement resolution", zap.Uint("application_id", id), zap.String("warning", w))
	}

	rep, err := s.gen.Render(agg, res, s.now())
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("report generation: %w", err)
	}
	if !persist {
		return rep, nil
	}
	if s.store == nil {
		return nil, fmt.Errorf("report storage is not configured")
	}

	key := "reports/" + agg.Application.TrackingCode + "/" + rep.FileName
	ref, err := s.store.Put(ctx, key, rep.Bytes)
	if err != nil {
		return nil, fmt.Errorf("store report: %w", err)
	}
	rep.StorageRef = ref

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.audit.Record(tx, audit.Entry{
			ApplicationID: id,
			Actor:         actor,
			Action:        models.ActionGenerateReport,
			Resource:      "REPORT",
			Metadata:      map[string]interface{}{"storage_ref": ref, "hash": rep.Hash},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}
