package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dan9191/credit-risk/internal/config"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/Dan9191/credit-risk/internal/stress"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var asOf = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

type fakeStore struct {
	snapshot   models.Snapshot
	limits     []models.RiskLimit
	macro      []models.MacroObservation
	defaults   []models.DefaultEvent
	loadErr    error
	saveErr    error
	entered    chan struct{}
	release    chan struct{}
	provisions []models.Provision
	alerts     []models.Alert
	updated    []models.RiskLimit
}

func (f *fakeStore) LoadSnapshot(ctx context.Context, date time.Time) (models.Snapshot, error) {
	if f.entered != nil {
		close(f.entered)
		<-f.release
	}
	if f.loadErr != nil {
		return models.Snapshot{}, f.loadErr
	}
	snap := f.snapshot
	snap.AsOf = date
	return snap, nil
}

func (f *fakeStore) LoadRiskLimits(context.Context) ([]models.RiskLimit, error) {
	return f.limits, nil
}

func (f *fakeStore) UpdateLimitUtilization(_ context.Context, limits []models.RiskLimit) error {
	f.updated = limits
	return nil
}

func (f *fakeStore) LoadPayments(context.Context, time.Time) ([]models.PaymentRecord, error) {
	return nil, nil
}

func (f *fakeStore) LoadRatingChanges(context.Context, time.Time) ([]models.RatingChange, error) {
	return nil, nil
}

func (f *fakeStore) LoadMacro(context.Context, time.Time) ([]models.MacroObservation, error) {
	return f.macro, nil
}

func (f *fakeStore) LoadDefaultEvents(context.Context) ([]models.DefaultEvent, error) {
	return f.defaults, nil
}

func (f *fakeStore) LoadPriorProvisions(context.Context, time.Time) (map[int64]float64, error) {
	return map[int64]float64{1: 100}, nil
}

func (f *fakeStore) SaveProvisions(_ context.Context, _ time.Time, provisions []models.Provision) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.provisions = provisions
	return nil
}

func (f *fakeStore) SaveAlerts(_ context.Context, alerts []models.Alert) error {
	f.alerts = alerts
	return nil
}

type fakeMacro struct {
	rateErr error
}

func (fakeMacro) Observations(context.Context, time.Time) ([]models.MacroObservation, error) {
	return []models.MacroObservation{{Region: "Deutschland", Date: asOf, UnemploymentRate: 9, ConfidenceIndex: 100}}, nil
}

func (m fakeMacro) KeyRate(context.Context) (float64, error) {
	return 4.15, m.rateErr
}

type fakeNotifier struct {
	sent []models.Alert
}

func (n *fakeNotifier) SendAlertDigest(alerts []models.Alert, _ time.Time) error {
	n.sent = alerts
	return nil
}

type fakeObserver struct {
	reports  int
	finished []error
}

func (o *fakeObserver) ObserveReport(*Report) { o.reports++ }

func (o *fakeObserver) RunFinished(err error, _ time.Duration) {
	o.finished = append(o.finished, err)
}

func testPortfolio() models.Snapshot {
	origination := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Snapshot{Contracts: []models.Contract{
		{ContractID: 1, CustomerID: 1, CustomerName: "Bau AG", Rating: models.ParseRating("BBB"),
			Industry: "Baugewerbe", Region: "Berlin", Segment: models.SegmentCorporate, CreditworthinessIndex: 55,
			ProductType: models.ProductLoan, OriginationDate: origination, TermMonths: 60, InterestRate: 0.05,
			CreditLimit: 500000, UtilizedLimit: 400000, OutstandingBalance: 400000, CollateralValue: 200000,
			CollateralType: models.CollateralRealEstate, Status: models.StatusActive, MaxDaysPastDue: 95},
		{ContractID: 2, CustomerID: 2, CustomerName: "Hotel KG", Rating: models.ParseRating("A"),
			Industry: "Tourismus", Region: "Hamburg", Segment: models.SegmentSME, CreditworthinessIndex: 70,
			ProductType: models.ProductCreditLine, OriginationDate: origination, TermMonths: 36, InterestRate: 0.06,
			CreditLimit: 200000, UtilizedLimit: 100000, OutstandingBalance: 100000,
			CollateralType: models.CollateralNone, Status: models.StatusActive, PD: models.Float(0.02)},
		{ContractID: 3, CustomerID: 3, CustomerName: "Handel GmbH", Rating: models.ParseRating("B"),
			Industry: "Einzelhandel", Region: "Berlin", Segment: models.SegmentSME, CreditworthinessIndex: 45,
			ProductType: models.ProductLoan, OriginationDate: origination, TermMonths: 48, InterestRate: 0.07,
			CreditLimit: 150000, UtilizedLimit: 150000, OutstandingBalance: 150000,
			CollateralType: models.CollateralNone, Status: models.StatusActive},
		{ContractID: 4, CustomerID: 3, CustomerName: "Handel GmbH", Rating: models.ParseRating("B"),
			Industry: "Einzelhandel", Region: "Berlin", Status: models.StatusClosed},
	}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		JWTSecret:       "test-secret",
		APIUser:         "analyst",
		APIPasswordHash: string(hash),
		Risk:            config.DefaultRiskConfig(),
	}
}

func newTestService(t *testing.T, store Store, opts ...Option) *Service {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	s := NewService(store, log, testConfig(t), opts...)
	s.now = func() time.Time { return asOf.Add(6 * time.Hour) }
	return s
}

func TestRunAnalysis(t *testing.T) {
	store := &fakeStore{
		snapshot: testPortfolio(),
		limits:   []models.RiskLimit{{ID: 1, Type: models.LimitPortfolio, Name: "Gesamt", LimitValue: 1000000}},
		defaults: []models.DefaultEvent{{ContractID: 3, DefaultDate: asOf.AddDate(0, -2, 0), DefaultedAmount: 20000, RecoveredAmount: 5000}},
	}
	notifier := &fakeNotifier{}
	observer := &fakeObserver{}
	svc := newTestService(t, store, WithMacroSource(fakeMacro{}), WithNotifier(notifier), WithObserver(observer))

	report, err := svc.RunAnalysis(context.Background(), asOf)

	require.NoError(t, err)
	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.Equal(t, asOf, report.AsOf)
	assert.Equal(t, 3, report.Summary.Contracts)
	assert.Equal(t, 4.15, report.KeyRate)

	require.Len(t, report.ECL.Details, 3)
	assert.Equal(t, report.Provisions, store.provisions)
	assert.Equal(t, report.Provisions[0].Amount-100, report.Provisions[0].Delta)

	require.Len(t, store.updated, 1)
	assert.Equal(t, 650000.0, store.updated[0].CurrentUtilization)
	assert.InDelta(t, 65, store.updated[0].UtilizationPct, 1e-9)

	require.NotEmpty(t, report.Alerts)
	assert.Equal(t, "PAY_1_20241231", report.Alerts[0].ID)
	assert.Equal(t, models.SeverityUrgent, report.Alerts[0].Severity)
	assert.Equal(t, report.Alerts, store.alerts)
	assert.Equal(t, report.Alerts, notifier.sent)
	assert.Equal(t, len(report.Alerts), report.AlertSummary.Total)
	var macro bool
	for _, a := range report.Alerts {
		if a.Check == "macro_deterioration" && a.AffectedEntity == "Deutschland" {
			macro = true
		}
	}
	assert.True(t, macro, "external indicators feed the rule battery")

	assert.Len(t, report.Stress, len(stress.Predefined()))
	assert.Len(t, report.StressComparison, len(report.Stress))
	assert.Empty(t, report.StressFailures)
	assert.Len(t, report.Concentration, len(models.Dimensions))
	assert.Greater(t, report.Capital.TotalRWA, 0.0)

	require.Len(t, report.DefaultTrend, 1)
	assert.Equal(t, "2024-10", report.DefaultTrend[0].Month)
	assert.Empty(t, report.Vintage, "no cohort has more than five contracts")
	assert.Empty(t, report.PortfolioTrend, "nothing was originated in the last twelve months")
	var recovered float64
	for _, row := range report.LossComparison {
		recovered += row.Recovered
	}
	assert.Equal(t, 5000.0, recovered)

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Same(t, report, latest)
	assert.Equal(t, 1, observer.reports)
	assert.Equal(t, []error{nil}, observer.finished)
}

func TestRunAnalysisLogsDataQualityOnce(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	svc := NewService(&fakeStore{snapshot: testPortfolio()}, log, testConfig(t))
	svc.now = func() time.Time { return asOf }

	report, err := svc.RunAnalysis(context.Background(), asOf)

	require.NoError(t, err)
	require.NotEmpty(t, report.ECL.Warnings)
	for _, w := range report.ECL.Warnings {
		var logged []logrus.Level
		for _, entry := range hook.AllEntries() {
			if entry.Message == w.Message && entry.Data["contract_id"] == w.ContractID {
				logged = append(logged, entry.Level)
			}
		}
		assert.Equal(t, []logrus.Level{logrus.WarnLevel}, logged, w.String())
	}
}

func TestRunAnalysisKeyRateUnavailable(t *testing.T) {
	store := &fakeStore{snapshot: testPortfolio()}
	svc := newTestService(t, store, WithMacroSource(fakeMacro{rateErr: errors.New("timeout")}))

	report, err := svc.RunAnalysis(context.Background(), asOf)

	require.NoError(t, err)
	assert.Zero(t, report.KeyRate)
}

func TestRunAnalysisErrors(t *testing.T) {
	tests := []struct {
		name  string
		store *fakeStore
		want  error
	}{
		{"empty portfolio", &fakeStore{}, models.ErrNoPortfolio},
		{"load failure", &fakeStore{loadErr: errors.New("connection refused")}, nil},
		{"save failure", &fakeStore{snapshot: testPortfolio(), saveErr: errors.New("disk full")}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := &fakeObserver{}
			svc := newTestService(t, tt.store, WithObserver(observer))

			_, err := svc.RunAnalysis(context.Background(), asOf)

			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			_, err = svc.Latest()
			assert.ErrorIs(t, err, ErrNoReport)
			assert.Zero(t, observer.reports)
			require.Len(t, observer.finished, 1)
			assert.Error(t, observer.finished[0])
		})
	}
}

func TestRunAnalysisRejectsOverlappingRuns(t *testing.T) {
	store := &fakeStore{
		snapshot: testPortfolio(),
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	svc := newTestService(t, store)

	done := make(chan error, 1)
	go func() {
		_, err := svc.RunAnalysis(context.Background(), asOf)
		done <- err
	}()
	<-store.entered

	_, err := svc.RunAnalysis(context.Background(), asOf)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(store.release)
	assert.NoError(t, <-done)
}

func TestRunScenarioAndSensitivity(t *testing.T) {
	svc := newTestService(t, &fakeStore{snapshot: testPortfolio()})

	_, err := svc.RunScenario("recession_mild")
	assert.ErrorIs(t, err, ErrNoReport)

	_, err = svc.RunAnalysis(context.Background(), asOf)
	require.NoError(t, err)

	res, err := svc.RunScenario("recession_mild")
	require.NoError(t, err)
	assert.Equal(t, "recession_mild", res.Scenario.Key)
	assert.Greater(t, res.StressedECL, res.BaselineECL)

	_, err = svc.RunScenario("zombie_apocalypse")
	assert.ErrorIs(t, err, models.ErrUnknownScenario)

	sens, err := svc.Sensitivity("pd_multiplier", []float64{1, -1, 2})
	require.NoError(t, err)
	require.Len(t, sens.Points, 2)
	require.Len(t, sens.Failures, 1)
	assert.Equal(t, "sensitivity_pd_multiplier_-1", sens.Failures[0].Scenario)
	assert.Greater(t, sens.Points[1].StressedECL, sens.Points[0].StressedECL)

	_, err = svc.Sensitivity("volatility", []float64{1})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestLogin(t *testing.T) {
	svc := newTestService(t, &fakeStore{})

	token, err := svc.Login("analyst", "s3cret")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return asOf.Add(7 * time.Hour) }))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "analyst", claims.Subject)

	tests := []struct{ user, password string }{
		{"analyst", "wrong"},
		{"intruder", "s3cret"},
		{"", ""},
	}
	for _, tt := range tests {
		_, err := svc.Login(tt.user, tt.password)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
}

func TestLoginWithoutConfiguredPassword(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	cfg := testConfig(t)
	cfg.APIPasswordHash = ""
	svc := NewService(&fakeStore{}, log, cfg)

	_, err := svc.Login("analyst", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
