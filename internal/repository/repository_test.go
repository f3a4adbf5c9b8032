package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)

func newMock(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db), mock
}

var contractColumns = []string{
	"vertrag_id", "kunden_id", "name", "kreditrating", "branche", "region", "kunden_segment",
	"bonitaetsindex", "produkt_typ", "vertragsdatum", "laufzeit_monate", "zinssatz",
	"kreditlimit", "ausgenutztes_limit", "restschuld", "sicherheiten_wert", "sicherheiten_typ",
	"vertrag_status", "pd_wert", "lgd_wert", "ead_wert", "max_verspaetung",
}

func TestLoadSnapshot(t *testing.T) {
	repo, mock := newMock(t)
	origination := time.Date(2022, 1, 15, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(contractColumns).
		AddRow(int64(1), int64(10), "Bau AG", "BBB+", "Baugewerbe", "Berlin", "Mittelstand",
			62.5, "Kreditlinie", origination, int64(36), 0.045,
			200000.0, 150000.0, 150000.0, 50000.0, "Immobilie",
			"aktiv", 0.02, 0.45, 160000.0, int64(35)).
		AddRow(int64(2), int64(11), "Hotel KG", "", "Tourismus", "Bremen", "Privatkunde",
			30.0, "Hypothek", origination, int64(120), 0.03,
			100000.0, 100000.0, 90000.0, 0.0, "",
			"ausfall", nil, nil, nil, int64(0))
	mock.ExpectQuery("FROM risk.kredit_vertraege").WillReturnRows(rows)

	snap, err := repo.LoadSnapshot(context.Background(), asOf)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, asOf, snap.AsOf)
	require.Len(t, snap.Contracts, 2)

	c := snap.Contracts[0]
	assert.Equal(t, "BBB+", c.Rating.String())
	assert.Equal(t, models.ProductCreditLine, c.ProductType)
	assert.Equal(t, models.CollateralRealEstate, c.CollateralType)
	assert.Equal(t, models.StatusActive, c.Status)
	assert.Equal(t, 36, c.TermMonths)
	assert.Equal(t, 35, c.MaxDaysPastDue)
	require.NotNil(t, c.EAD)
	assert.Equal(t, 160000.0, *c.EAD)

	d := snap.Contracts[1]
	assert.False(t, d.Rating.IsRated())
	assert.Equal(t, models.StatusDefaulted, d.Status)
	assert.Equal(t, models.ProductMortgage, d.ProductType)
	assert.Nil(t, d.PD)
	assert.Nil(t, d.LGD)
	assert.Nil(t, d.EAD)
}

func TestLoadSnapshotQueryError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM risk.kredit_vertraege").WillReturnError(errors.New("connection reset"))

	_, err := repo.LoadSnapshot(context.Background(), asOf)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load contracts")
}

func TestLoadRiskLimits(t *testing.T) {
	repo, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"limit_id", "limit_typ", "limit_name", "referenz_wert", "referenz_id", "limit_wert",
		"aktuelle_auslastung", "auslastung_prozent", "ueberschreitung_flag", "ueberschreitung_betrag"}).
		AddRow(int64(1), "gesamt", "Gesamtportfolio Limit", "", nil, 5e7, 4e7, 80.0, false, 0.0).
		AddRow(int64(2), "kunde", "Kundenlimit Bau AG", "Bau AG", int64(10), 1e6, 1.2e6, 120.0, true, 2e5)
	mock.ExpectQuery("FROM risk.risiko_limits").WillReturnRows(rows)

	limits, err := repo.LoadRiskLimits(context.Background())

	require.NoError(t, err)
	require.Len(t, limits, 2)
	assert.Equal(t, models.LimitPortfolio, limits[0].Type)
	assert.Equal(t, models.LimitSingleName, limits[1].Type)
	assert.True(t, limits[1].Breached)
	assert.Nil(t, limits[0].ReferenceID)
	assert.Equal(t, "Bau AG", limits[1].Reference)
	require.NotNil(t, limits[1].ReferenceID)
	assert.Equal(t, int64(10), *limits[1].ReferenceID)
}

func TestLoadPaymentsAndRatingChanges(t *testing.T) {
	repo, mock := newMock(t)
	since := asOf.AddDate(0, -6, 0)
	due := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM risk.zahlungen").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"vertrag_id", "faelligkeitsdatum", "soll_betrag", "ist_betrag", "verspaetung_tage", "offen"}).
			AddRow(int64(1), due, 1000.0, 0.0, int64(45), true))
	mock.ExpectQuery("FROM risk.rating_historie").WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"kunden_id", "name", "altes_rating", "neues_rating", "aenderungsdatum", "aenderungsgrund"}).
			AddRow(int64(10), "Bau AG", "BBB", "B", due, "Umsatzeinbruch"))

	payments, err := repo.LoadPayments(context.Background(), since)
	require.NoError(t, err)
	changes, err := repo.LoadRatingChanges(context.Background(), since)
	require.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, payments, 1)
	assert.Equal(t, 45, payments[0].DaysLate)
	assert.True(t, payments[0].Outstanding)
	require.Len(t, changes, 1)
	assert.Equal(t, 2, models.Notches(changes[0].OldRating, changes[0].NewRating))
}

func TestLoadDefaultEvents(t *testing.T) {
	repo, mock := newMock(t)
	defaulted := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM risk.ausfall_ereignisse").
		WillReturnRows(sqlmock.NewRows([]string{"vertrag_id", "ausfall_datum", "ausgefallener_betrag", "wiederherstellungs_betrag", "wiederherstellungs_quote"}).
			AddRow(int64(7), defaulted, 50000.0, 20000.0, 0.4).
			AddRow(int64(9), defaulted, 12000.0, 0.0, nil))

	events, err := repo.LoadDefaultEvents(context.Background())

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.Len(t, events, 2)
	assert.Equal(t, int64(7), events[0].ContractID)
	assert.Equal(t, 20000.0, events[0].RecoveredAmount)
	require.NotNil(t, events[0].RecoveryRate)
	assert.Equal(t, 0.4, *events[0].RecoveryRate)
	assert.Nil(t, events[1].RecoveryRate)
}

func TestLoadDefaultEventsQueryError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM risk.ausfall_ereignisse").WillReturnError(errors.New("relation does not exist"))

	_, err := repo.LoadDefaultEvents(context.Background())

	assert.ErrorContains(t, err, "failed to load default events")
}

func TestLoadPriorProvisions(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("FROM risk.rueckstellungen").WithArgs(asOf).
		WillReturnRows(sqlmock.NewRows([]string{"vertrag_id", "rueckstellung_betrag"}).
			AddRow(int64(1), 250.0).
			AddRow(int64(2), 1200.0))

	prior, err := repo.LoadPriorProvisions(context.Background(), asOf)

	require.NoError(t, err)
	assert.Equal(t, map[int64]float64{1: 250, 2: 1200}, prior)
}

func TestSaveProvisions(t *testing.T) {
	repo, mock := newMock(t)
	provisions := []models.Provision{
		{ContractID: 1, ReportingDate: asOf, Stage: models.Stage2, ECL12M: 100, ECLLifetime: 300, Amount: 300, PD: 0.05, LGD: 0.4, EAD: 15000, Delta: 50},
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM risk.rueckstellungen").WithArgs(asOf).WillReturnResult(sqlmock.NewResult(0, 3))
	copyIn := mock.ExpectPrepare("COPY")
	copyIn.ExpectExec().
		WithArgs(int64(1), asOf, int64(2), 100.0, 300.0, 300.0, 0.05, 0.4, 15000.0, 50.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	copyIn.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SaveProvisions(context.Background(), asOf, provisions)

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlertsRollsBackOnError(t *testing.T) {
	repo, mock := newMock(t)
	alerts := []models.Alert{
		{ID: "PAY_1_20241231", Check: "payment_delay", Severity: models.SeverityUrgent, CreatedAt: asOf},
		{ID: "PAY_2_20241231", Check: "payment_delay", Severity: models.SeverityWarning, CreatedAt: asOf},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO risk.fruehwarnungen").
		WithArgs("PAY_1_20241231", "payment_delay", "urgent", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), asOf).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO risk.fruehwarnungen").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.SaveAlerts(context.Background(), alerts)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PAY_2_20241231")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateLimitUtilization(t *testing.T) {
	repo, mock := newMock(t)
	limits := []models.RiskLimit{{ID: 7, CurrentUtilization: 900, UtilizationPct: 90, Excess: 0}}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE risk.risiko_limits").
		WithArgs(int64(7), 900.0, 90.0, false, 0.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.UpdateLimitUtilization(context.Background(), limits))
	require.NoError(t, mock.ExpectationsWereMet())
}
