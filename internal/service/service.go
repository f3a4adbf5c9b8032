package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dan9191/credit-risk/internal/analytics"
	"github.com/Dan9191/credit-risk/internal/capital"
	"github.com/Dan9191/credit-risk/internal/concentration"
	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/earlywarning"
	"github.com/Dan9191/credit-risk/internal/ifrs9"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/Dan9191/credit-risk/internal/stress"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials is returned by Login for a wrong user or password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNoReport is returned while no analysis run has completed
	ErrNoReport = errors.New("no analysis report available")

	// ErrRunInProgress is returned when a run is requested while another one
	// has not finished
	ErrRunInProgress = errors.New("analysis run already in progress")
)

const (
	paymentHistoryMonths = 12
	topExposures         = 10
	tokenTTL             = 24 * time.Hour
)

// Store is the persistence the service reads snapshots from and writes
// results to
type Store interface {
	LoadSnapshot(ctx context.Context, asOf time.Time) (models.Snapshot, error)
	LoadRiskLimits(ctx context.Context) ([]models.RiskLimit, error)
	UpdateLimitUtilization(ctx context.Context, limits []models.RiskLimit) error
	LoadPayments(ctx context.Context, since time.Time) ([]models.PaymentRecord, error)
	LoadRatingChanges(ctx context.Context, since time.Time) ([]models.RatingChange, error)
	LoadMacro(ctx context.Context, since time.Time) ([]models.MacroObservation, error)
	LoadDefaultEvents(ctx context.Context) ([]models.DefaultEvent, error)
	LoadPriorProvisions(ctx context.Context, before time.Time) (map[int64]float64, error)
	SaveProvisions(ctx context.Context, date time.Time, provisions []models.Provision) error
	SaveAlerts(ctx context.Context, alerts []models.Alert) error
}

// MacroSource supplies economic indicators from outside the database
type MacroSource interface {
	Observations(ctx context.Context, asOf time.Time) ([]models.MacroObservation, error)
	KeyRate(ctx context.Context) (float64, error)
}

// Notifier delivers alerts to risk managers
type Notifier interface {
	SendAlertDigest(alerts []models.Alert, asOf time.Time) error
}

// Observer is told about every finished run
type Observer interface {
	ObserveReport(r *Report)
	RunFinished(err error, elapsed time.Duration)
}

// Option configures optional collaborators of the service
type Option func(*Service)

// WithMacroSource adds an external indicator source to every run
func WithMacroSource(m MacroSource) Option {
	return func(s *Service) { s.macro = m }
}

// WithNotifier mails urgent and critical alerts after every run
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithObserver registers a run observer
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// Service handles business logic
type Service struct {
	repo   Store
	log    *logrus.Logger
	config *config.Config

	staging       *ifrs9.Engine
	rwa           *capital.Engine
	concentration *concentration.Engine
	warnings      *earlywarning.Engine
	stress        *stress.Engine

	macro    MacroSource
	notifier Notifier
	observer Observer
	now      func() time.Time

	running atomic.Bool

	mu       sync.RWMutex
	latest   *Report
	snapshot models.Snapshot
}

// NewService initializes a new service and its calculation engines
func NewService(repo Store, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	risk := cfg.Risk
	staging := ifrs9.NewEngine(risk.IFRS9, log.WithField("component", "ifrs9"))
	rwa := capital.NewEngine(risk.Capital, risk.Regulatory, log.WithField("component", "capital"))
	s := &Service{
		repo:          repo,
		log:           log,
		config:        cfg,
		staging:       staging,
		rwa:           rwa,
		concentration: concentration.NewEngine(risk.Concentration, log.WithField("component", "concentration")),
		warnings: earlywarning.NewEngine(earlywarning.NewConfig(risk), earlywarning.DefaultChecks(),
			log.WithField("component", "earlywarning")),
		stress: stress.NewEngine(risk.Stress, staging, rwa, log.WithField("component", "stress")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the analyst credentials and returns a JWT token
func (s *Service) Login(username, password string) (string, error) {
	if username != s.config.APIUser || s.config.APIPasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.APIPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(s.now().Add(tokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("User logged in: %s", username)
	return tokenString, nil
}

// Latest returns the most recent report
func (s *Service) Latest() (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, ErrNoReport
	}
	return s.latest, nil
}

func (s *Service) latestSnapshot() (models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return models.Snapshot{}, ErrNoReport
	}
	return s.snapshot, nil
}

// Scenarios lists the configured stress scenarios
func (s *Service) Scenarios() []models.StressScenario {
	return s.stress.Scenarios()
}

// RunScenario applies one named scenario to the snapshot of the latest run
func (s *Service) RunScenario(key string) (models.StressResult, error) {
	snap, err := s.latestSnapshot()
	if err != nil {
		return models.StressResult{}, err
	}
	return s.stress.RunNamed(snap, key)
}

// Sensitivity sweeps one stress parameter over the snapshot of the latest run
func (s *Service) Sensitivity(parameter string, values []float64) (models.SensitivityResult, error) {
	snap, err := s.latestSnapshot()
	if err != nil {
		return models.SensitivityResult{}, err
	}
	return s.stress.Sensitivity(snap, parameter, values)
}

// RunAnalysis loads the portfolio as of the given date, runs every engine,
// persists provisions, alerts and limit utilization and publishes the
// report. Only one run executes at a time.
func (s *Service) RunAnalysis(ctx context.Context, asOf time.Time) (*Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	start := s.now()
	report, snap, err := s.analyze(ctx, asOf)
	if s.observer != nil {
		s.observer.RunFinished(err, s.now().Sub(start))
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"as_of": asOf.Format(time.DateOnly),
			"error": err,
		}).Error("Analysis run failed")
		return nil, err
	}

	s.mu.Lock()
	s.latest = report
	s.snapshot = snap
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.ObserveReport(report)
	}
	if s.notifier != nil {
		if err := s.notifier.SendAlertDigest(report.Alerts, asOf); err != nil {
			s.log.Warnf("Failed to send alert digest: %v", err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"run_id":    report.RunID,
		"as_of":     asOf.Format(time.DateOnly),
		"contracts": report.Summary.Contracts,
		"total_ecl": report.ECL.Summary.TotalECL,
		"alerts":    len(report.Alerts),
		"elapsed":   s.now().Sub(start).String(),
	}).Info("Analysis run completed")
	return report, nil
}

func (s *Service) analyze(ctx context.Context, asOf time.Time) (*Report, models.Snapshot, error) {
	snap, err := s.repo.LoadSnapshot(ctx, asOf)
	if err != nil {
		return nil, snap, err
	}
	if len(snap.Contracts) == 0 {
		return nil, snap, models.ErrNoPortfolio
	}

	report := &Report{
		RunID:       uuid.NewString(),
		AsOf:        asOf,
		GeneratedAt: s.now(),
	}

	// Impairment
	report.ECL = s.staging.CalculatePortfolio(snap)
	prior, err := s.repo.LoadPriorProvisions(ctx, asOf)
	if err != nil {
		return nil, snap, err
	}
	report.Provisions = ifrs9.BuildProvisions(report.ECL.Details, prior, asOf)

	// Capital
	rows := s.rwa.CreditRiskRWA(snap)
	report.Capital = s.rwa.RequirementsFromRows(rows)
	report.CapitalMetrics = capital.Metrics(report.Capital)
	report.RWAByRating = capital.RWAByRating(rows)
	report.CapitalBase = s.rwa.CapitalBase(report.Capital)
	report.LargeExposures = s.rwa.LargeExposures(snap, report.CapitalBase)

	// Concentration and limits
	if report.Concentration, err = s.concentration.AnalyzeAll(snap); err != nil {
		return nil, snap, fmt.Errorf("failed to analyze concentration: %w", err)
	}
	report.TopExposures = s.concentration.TopExposures(snap, topExposures)
	report.Matrix = s.concentration.Matrix(snap)
	limits, err := s.repo.LoadRiskLimits(ctx)
	if err != nil {
		return nil, snap, err
	}
	report.Limits = s.concentration.RevalueLimits(limits, snap)

	// Early warning
	in, err := s.warningInput(ctx, snap, report.Limits)
	if err != nil {
		return nil, snap, err
	}
	res := s.warnings.Evaluate(in)
	report.Alerts = res.Alerts
	report.CheckFailures = res.Failures
	report.AlertSummary = earlywarning.Summarize(res.Alerts)

	// Stress
	if report.Stress, report.StressFailures, err = s.stress.RunAll(ctx, snap); err != nil {
		return nil, snap, err
	}
	report.StressComparison = stress.ComparisonTable(report.Stress)

	report.Summary = analytics.Summary(snap)
	report.RatingDistribution = analytics.RatingDistribution(snap)
	report.NPL = analytics.NPL(snap, report.Provisions)
	report.Delinquency = analytics.Delinquency(in.Payments)
	report.Vintage = analytics.Vintage(snap)
	report.PortfolioTrend = analytics.PortfolioTrend(snap)
	events, err := s.repo.LoadDefaultEvents(ctx)
	if err != nil {
		return nil, snap, err
	}
	report.DefaultTrend = analytics.DefaultTrend(events, asOf)
	report.LossComparison = analytics.ExpectedVsActualLoss(snap, events)

	if s.macro != nil {
		if rate, err := s.macro.KeyRate(ctx); err != nil {
			s.log.Warnf("Failed to get key rate: %v", err)
		} else {
			report.KeyRate = rate
		}
	}

	if err := s.repo.SaveProvisions(ctx, asOf, report.Provisions); err != nil {
		return nil, snap, err
	}
	if err := s.repo.SaveAlerts(ctx, report.Alerts); err != nil {
		return nil, snap, err
	}
	if err := s.repo.UpdateLimitUtilization(ctx, report.Limits); err != nil {
		return nil, snap, err
	}
	return report, snap, nil
}

func (s *Service) warningInput(ctx context.Context, snap models.Snapshot, limits []models.RiskLimit) (earlywarning.Input, error) {
	ew := s.config.Risk.EarlyWarning
	in := earlywarning.Input{AsOf: snap.AsOf, Snapshot: snap, Limits: limits}

	var err error
	months := max(paymentHistoryMonths, ew.TrendWindowMonths)
	if in.Payments, err = s.repo.LoadPayments(ctx, snap.AsOf.AddDate(0, -months, 0)); err != nil {
		return in, err
	}
	if in.RatingChanges, err = s.repo.LoadRatingChanges(ctx, snap.AsOf.AddDate(0, 0, -ew.DowngradeWindowDays)); err != nil {
		return in, err
	}
	if in.Macro, err = s.repo.LoadMacro(ctx, snap.AsOf.AddDate(0, -ew.MacroWindowMonths, 0)); err != nil {
		return in, err
	}
	if s.macro != nil {
		external, err := s.macro.Observations(ctx, snap.AsOf)
		if err != nil {
			s.log.Warnf("Failed to load external economic data: %v", err)
		}
		in.Macro = append(in.Macro, external...)
	}
	return in, nil
}
