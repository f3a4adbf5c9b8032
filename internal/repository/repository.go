package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dan9191/credit-risk/internal/models"
	"github.com/lib/pq"
)

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return models.Float(v.Float64)
}

// LoadSnapshot reads every contract joined with its customer and the worst
// payment delay on record
func (r *Repository) LoadSnapshot(ctx context.Context, asOf time.Time) (models.Snapshot, error) {
	query := `
		SELECT v.vertrag_id, v.kunden_id, k.name,
			COALESCE(k.kreditrating, ''), COALESCE(k.branche, ''), COALESCE(k.region, ''),
			COALESCE(k.kunden_segment, ''), COALESCE(k.bonitaetsindex, 0),
			v.produkt_typ, v.vertragsdatum, v.laufzeit_monate, v.zinssatz,
			v.kreditlimit, v.ausgenutztes_limit, v.restschuld,
			COALESCE(v.sicherheiten_wert, 0), COALESCE(v.sicherheiten_typ, ''),
			v.vertrag_status, v.pd_wert, v.lgd_wert, v.ead_wert,
			COALESCE((SELECT MAX(z.verspaetung_tage) FROM risk.zahlungen z WHERE z.vertrag_id = v.vertrag_id), 0)
		FROM risk.kredit_vertraege v
		JOIN risk.kunden k ON v.kunden_id = k.kunden_id
		ORDER BY v.vertrag_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load contracts: %w", err)
	}
	defer rows.Close()

	snap := models.Snapshot{AsOf: asOf}
	for rows.Next() {
		var (
			c                                      models.Contract
			rating, segment, product, coll, status string
			pd, lgd, ead                           sql.NullFloat64
		)
		if err := rows.Scan(&c.ContractID, &c.CustomerID, &c.CustomerName,
			&rating, &c.Industry, &c.Region, &segment, &c.CreditworthinessIndex,
			&product, &c.OriginationDate, &c.TermMonths, &c.InterestRate,
			&c.CreditLimit, &c.UtilizedLimit, &c.OutstandingBalance,
			&c.CollateralValue, &coll, &status, &pd, &lgd, &ead, &c.MaxDaysPastDue); err != nil {
			return models.Snapshot{}, fmt.Errorf("failed to scan contract: %w", err)
		}
		c.Rating = models.ParseRating(rating)
		c.Segment = models.ParseSegment(segment)
		c.ProductType = models.ParseProductType(product)
		c.CollateralType = models.ParseCollateralType(coll)
		c.Status = models.ParseStatus(status)
		c.PD, c.LGD, c.EAD = nullable(pd), nullable(lgd), nullable(ead)
		snap.Contracts = append(snap.Contracts, c)
	}
	if err := rows.Err(); err != nil {
		return models.Snapshot{}, fmt.Errorf("failed to load contracts: %w", err)
	}
	return snap, nil
}

// LoadRiskLimits reads the configured risk limits
func (r *Repository) LoadRiskLimits(ctx context.Context) ([]models.RiskLimit, error) {
	query := `
		SELECT limit_id, limit_typ, limit_name, COALESCE(referenz_wert, ''), referenz_id, limit_wert,
			COALESCE(aktuelle_auslastung, 0), COALESCE(auslastung_prozent, 0),
			COALESCE(ueberschreitung_flag, false), COALESCE(ueberschreitung_betrag, 0)
		FROM risk.risiko_limits
		ORDER BY limit_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load risk limits: %w", err)
	}
	defer rows.Close()

	var limits []models.RiskLimit
	for rows.Next() {
		var l models.RiskLimit
		var typ string
		var ref sql.NullInt64
		if err := rows.Scan(&l.ID, &typ, &l.Name, &l.Reference, &ref, &l.LimitValue,
			&l.CurrentUtilization, &l.UtilizationPct, &l.Breached, &l.Excess); err != nil {
			return nil, fmt.Errorf("failed to scan risk limit: %w", err)
		}
		l.Type = models.ParseLimitType(typ)
		if ref.Valid {
			l.ReferenceID = &ref.Int64
		}
		limits = append(limits, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load risk limits: %w", err)
	}
	return limits, nil
}

// UpdateLimitUtilization stores revalued limit figures
func (r *Repository) UpdateLimitUtilization(ctx context.Context, limits []models.RiskLimit) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE risk.risiko_limits
		SET aktuelle_auslastung = $2, auslastung_prozent = $3,
			ueberschreitung_flag = $4, ueberschreitung_betrag = $5
		WHERE limit_id = $1`
	for _, l := range limits {
		if _, err := tx.ExecContext(ctx, query, l.ID, l.CurrentUtilization, l.UtilizationPct, l.Breached, l.Excess); err != nil {
			return fmt.Errorf("failed to update limit %d: %w", l.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit limit update: %w", err)
	}
	return nil
}

// LoadPayments reads payments due on or after since
func (r *Repository) LoadPayments(ctx context.Context, since time.Time) ([]models.PaymentRecord, error) {
	query := `
		SELECT vertrag_id, faelligkeitsdatum, soll_betrag, COALESCE(ist_betrag, 0),
			COALESCE(verspaetung_tage, 0), zahlungsstatus IN ('offen', 'verzoegert', 'ausfall')
		FROM risk.zahlungen
		WHERE faelligkeitsdatum >= $1
		ORDER BY vertrag_id, faelligkeitsdatum`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	defer rows.Close()

	var payments []models.PaymentRecord
	for rows.Next() {
		var p models.PaymentRecord
		if err := rows.Scan(&p.ContractID, &p.DueDate, &p.Amount, &p.PaidAmount, &p.DaysLate, &p.Outstanding); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	return payments, nil
}

// LoadDefaultEvents reads every recorded default, oldest first
func (r *Repository) LoadDefaultEvents(ctx context.Context) ([]models.DefaultEvent, error) {
	query := `
		SELECT vertrag_id, ausfall_datum, COALESCE(ausgefallener_betrag, 0),
			COALESCE(wiederherstellungs_betrag, 0), wiederherstellungs_quote
		FROM risk.ausfall_ereignisse
		ORDER BY ausfall_datum, vertrag_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load default events: %w", err)
	}
	defer rows.Close()

	var events []models.DefaultEvent
	for rows.Next() {
		var e models.DefaultEvent
		var rate sql.NullFloat64
		if err := rows.Scan(&e.ContractID, &e.DefaultDate, &e.DefaultedAmount, &e.RecoveredAmount, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan default event: %w", err)
		}
		e.RecoveryRate = nullable(rate)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load default events: %w", err)
	}
	return events, nil
}

// LoadRatingChanges reads rating history entries since a date
func (r *Repository) LoadRatingChanges(ctx context.Context, since time.Time) ([]models.RatingChange, error) {
	query := `
		SELECT rh.kunden_id, k.name, COALESCE(rh.altes_rating, ''), COALESCE(rh.neues_rating, ''),
			rh.aenderungsdatum, COALESCE(rh.aenderungsgrund, '')
		FROM risk.rating_historie rh
		JOIN risk.kunden k ON rh.kunden_id = k.kunden_id
		WHERE rh.aenderungsdatum >= $1
		ORDER BY rh.aenderungsdatum DESC`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load rating changes: %w", err)
	}
	defer rows.Close()

	var changes []models.RatingChange
	for rows.Next() {
		var rc models.RatingChange
		var older, newer string
		if err := rows.Scan(&rc.CustomerID, &rc.CustomerName, &older, &newer, &rc.ChangedAt, &rc.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan rating change: %w", err)
		}
		rc.OldRating = models.ParseRating(older)
		rc.NewRating = models.ParseRating(newer)
		changes = append(changes, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load rating changes: %w", err)
	}
	return changes, nil
}

// LoadMacro reads economic indicators dated on or after since
func (r *Repository) LoadMacro(ctx context.Context, since time.Time) ([]models.MacroObservation, error) {
	query := `
		SELECT region, COALESCE(branche, ''), datum, COALESCE(arbeitslosenquote, 0),
			COALESCE(insolvenzquote, 0), COALESCE(konjunktur_index, 100)
		FROM risk.wirtschaftsdaten
		WHERE datum >= $1
		ORDER BY datum`
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load economic data: %w", err)
	}
	defer rows.Close()

	var obs []models.MacroObservation
	for rows.Next() {
		var o models.MacroObservation
		if err := rows.Scan(&o.Region, &o.Industry, &o.Date, &o.UnemploymentRate, &o.InsolvencyRate, &o.ConfidenceIndex); err != nil {
			return nil, fmt.Errorf("failed to scan economic data: %w", err)
		}
		obs = append(obs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load economic data: %w", err)
	}
	return obs, nil
}

// LoadPriorProvisions returns the latest provision amount per contract from
// reporting dates before the given date
func (r *Repository) LoadPriorProvisions(ctx context.Context, before time.Time) (map[int64]float64, error) {
	query := `
		SELECT DISTINCT ON (vertrag_id) vertrag_id, rueckstellung_betrag
		FROM risk.rueckstellungen
		WHERE stichtag < $1
		ORDER BY vertrag_id, stichtag DESC`
	rows, err := r.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior provisions: %w", err)
	}
	defer rows.Close()

	prior := make(map[int64]float64)
	for rows.Next() {
		var id int64
		var amount float64
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan provision: %w", err)
		}
		prior[id] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load prior provisions: %w", err)
	}
	return prior, nil
}

// SaveProvisions replaces the provisions of a reporting date. Records of
// other dates are never touched.
func (r *Repository) SaveProvisions(ctx context.Context, date time.Time, provisions []models.Provision) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM risk.rueckstellungen WHERE stichtag = $1`, date); err != nil {
		return fmt.Errorf("failed to clear provisions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema("risk", "rueckstellungen",
		"vertrag_id", "stichtag", "stufe", "ecl_12m", "ecl_lifetime", "rueckstellung_betrag",
		"pd", "lgd", "ead", "aenderung_betrag"))
	if err != nil {
		return fmt.Errorf("failed to prepare provision copy: %w", err)
	}
	for _, p := range provisions {
		if _, err := stmt.ExecContext(ctx, p.ContractID, p.ReportingDate, int64(p.Stage),
			p.ECL12M, p.ECLLifetime, p.Amount, p.PD, p.LGD, p.EAD, p.Delta); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy provision %d: %w", p.ContractID, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush provisions: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close provision copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit provisions: %w", err)
	}
	return nil
}

// SaveAlerts upserts alerts by their deterministic ID
func (r *Repository) SaveAlerts(ctx context.Context, alerts []models.Alert) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO risk.fruehwarnungen (alert_id, pruefung, schweregrad, kategorie, titel, beschreibung,
			betroffene_einheit, einheit_id, messwert, schwellenwert, empfohlene_massnahme, erstellt_am)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (alert_id) DO UPDATE SET
			schweregrad = EXCLUDED.schweregrad, beschreibung = EXCLUDED.beschreibung,
			messwert = EXCLUDED.messwert, erstellt_am = EXCLUDED.erstellt_am`
	for _, a := range alerts {
		if _, err := tx.ExecContext(ctx, query, a.ID, a.Check, string(a.Severity), a.Category, a.Title,
			a.Description, a.AffectedEntity, a.EntityID, a.MetricValue, a.Threshold,
			a.RecommendedAction, a.CreatedAt); err != nil {
			return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit alerts: %w", err)
	}
	return nil
}
