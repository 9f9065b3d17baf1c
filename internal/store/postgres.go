package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fundwatch/compliance-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// check messages and breaches are stored as JSONB.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Asset master ---

func (s *PostgresStore) UpsertAsset(ctx context.Context, rec *model.AssetRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO asset_master (ticker, isin, issuer_name, issuer_group, ucits_eligible)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (ticker) DO UPDATE
		 SET isin = EXCLUDED.isin,
		     issuer_name = EXCLUDED.issuer_name,
		     issuer_group = EXCLUDED.issuer_group,
		     ucits_eligible = EXCLUDED.ucits_eligible`,
		rec.Ticker, rec.ISIN, rec.IssuerName, rec.IssuerGroup, rec.UCITSEligible,
	)
	return err
}

func (s *PostgresStore) GetAsset(ctx context.Context, ticker string) (*model.AssetRecord, error) {
	var rec model.AssetRecord

	err := s.pool.QueryRow(ctx,
		`SELECT ticker, isin, issuer_name, issuer_group, ucits_eligible
		 FROM asset_master WHERE ticker = $1`, ticker).
		Scan(&rec.Ticker, &rec.ISIN, &rec.IssuerName, &rec.IssuerGroup, &rec.UCITSEligible)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, ticker)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset %s: %w", ticker, err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListAssets(ctx context.Context) ([]model.AssetRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ticker, isin, issuer_name, issuer_group, ucits_eligible
		 FROM asset_master ORDER BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.AssetRecord
	for rows.Next() {
		var rec model.AssetRecord
		if err := rows.Scan(&rec.Ticker, &rec.ISIN, &rec.IssuerName, &rec.IssuerGroup, &rec.UCITSEligible); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// --- Fund portfolio ---

func (s *PostgresStore) GetSnapshot(ctx context.Context, fundID string) (*model.PortfolioSnapshot, error) {
	snap := &model.PortfolioSnapshot{
		FundID:    fundID,
		Cash:      decimal.Zero,
		Positions: []model.Position{},
	}

	var cashS string
	err := s.pool.QueryRow(ctx,
		`SELECT cash::TEXT FROM funds WHERE fund_id = $1`, fundID).Scan(&cashS)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Unknown fund: empty snapshot.
	case err != nil:
		return nil, fmt.Errorf("get fund %s: %w", fundID, err)
	default:
		snap.Cash, _ = decimal.NewFromString(cashS)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT ticker, quantity::TEXT, price::TEXT, market_value::TEXT
		 FROM positions WHERE fund_id = $1 ORDER BY ticker`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nav := snap.Cash
	for rows.Next() {
		var p model.Position
		var qtyS, priceS, mvS string
		if err := rows.Scan(&p.Ticker, &qtyS, &priceS, &mvS); err != nil {
			return nil, err
		}
		p.FundID = fundID
		p.Quantity, _ = decimal.NewFromString(qtyS)
		p.Price, _ = decimal.NewFromString(priceS)
		p.MarketValue, _ = decimal.NewFromString(mvS)
		nav = nav.Add(p.MarketValue)
		snap.Positions = append(snap.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap.NAV = nav
	return snap, nil
}

func (s *PostgresStore) UpsertPosition(ctx context.Context, pos *model.Position) error {
	if pos.Quantity.IsZero() {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM positions WHERE fund_id = $1 AND ticker = $2`,
			pos.FundID, pos.Ticker)
		return err
	}

	mv := pos.Quantity.Mul(pos.Price)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (fund_id, ticker, quantity, price, market_value)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (fund_id, ticker) DO UPDATE
		 SET quantity = EXCLUDED.quantity,
		     price = EXCLUDED.price,
		     market_value = EXCLUDED.market_value`,
		pos.FundID, pos.Ticker, pos.Quantity.String(), pos.Price.String(), mv.String(),
	)
	return err
}

func (s *PostgresStore) SetCash(ctx context.Context, fundID string, cash decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO funds (fund_id, cash) VALUES ($1, $2::NUMERIC)
		 ON CONFLICT (fund_id) DO UPDATE SET cash = EXCLUDED.cash`,
		fundID, cash.String(),
	)
	return err
}

// ApplyTrade adjusts the held quantity inside a transaction, re-valuing the
// holding at the trade price. Row-level locking keeps concurrent trades on
// the same position serialized.
func (s *PostgresStore) ApplyTrade(ctx context.Context, req model.TradeRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	qty := req.QuantityDelta
	var heldS string
	err = tx.QueryRow(ctx,
		`SELECT quantity::TEXT FROM positions
		 WHERE fund_id = $1 AND ticker = $2 FOR UPDATE`,
		req.FundID, req.Ticker).Scan(&heldS)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// New position.
	case err != nil:
		return err
	default:
		held, _ := decimal.NewFromString(heldS)
		qty = held.Add(req.QuantityDelta)
	}

	if qty.IsNegative() {
		return fmt.Errorf("store: trade would make %s quantity negative", req.Ticker)
	}

	if qty.IsZero() {
		if _, err := tx.Exec(ctx,
			`DELETE FROM positions WHERE fund_id = $1 AND ticker = $2`,
			req.FundID, req.Ticker); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	mv := qty.Mul(req.TradePrice)
	if _, err := tx.Exec(ctx,
		`INSERT INTO positions (fund_id, ticker, quantity, price, market_value)
		 VALUES ($1, $2, $3::NUMERIC, $4::NUMERIC, $5::NUMERIC)
		 ON CONFLICT (fund_id, ticker) DO UPDATE
		 SET quantity = EXCLUDED.quantity,
		     price = EXCLUDED.price,
		     market_value = EXCLUDED.market_value`,
		req.FundID, req.Ticker, qty.String(), req.TradePrice.String(), mv.String(),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// --- Exposure retrieval ---

// GetFundExposures groups all positions for the fund and sums market value
// conditionally by the candidate issuer name and issuer group. The outer
// join lets positions with no master data row contribute zero.
func (s *PostgresStore) GetFundExposures(ctx context.Context, fundID, issuerName, issuerGroup string) (decimal.Decimal, decimal.Decimal, error) {
	var issuerS, groupS string

	err := s.pool.QueryRow(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN am.issuer_name  = $2 THEN p.market_value ELSE 0 END), 0)::TEXT,
			COALESCE(SUM(CASE WHEN am.issuer_group = $3 THEN p.market_value ELSE 0 END), 0)::TEXT
		 FROM positions p
		 LEFT OUTER JOIN asset_master am ON am.ticker = p.ticker
		 WHERE p.fund_id = $1`,
		fundID, issuerName, issuerGroup).Scan(&issuerS, &groupS)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("get exposures for fund %s: %w", fundID, err)
	}

	issuer, _ := decimal.NewFromString(issuerS)
	group, _ := decimal.NewFromString(groupS)
	return issuer, group, nil
}

// --- Immutable audit log ---

func (s *PostgresStore) InsertCheckRecord(ctx context.Context, rec *model.CheckRecord) error {
	messages, err := json.Marshal(rec.Messages)
	if err != nil {
		return err
	}
	breaches, err := json.Marshal(rec.Breaches)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO compliance_checks
		 (id, fund_id, ticker, quantity_delta, trade_price, overall_pass, messages, breaches, checked_at)
		 VALUES ($1, $2, $3, $4::NUMERIC, $5::NUMERIC, $6, $7::JSONB, $8::JSONB, $9)`,
		rec.ID, rec.FundID, rec.Ticker,
		rec.QuantityDelta.String(), rec.TradePrice.String(),
		rec.OverallPass, messages, breaches, rec.CheckedAt,
	)
	return err
}

func (s *PostgresStore) GetCheckRecordsByFund(ctx context.Context, fundID string) ([]model.CheckRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, fund_id, ticker, quantity_delta::TEXT, trade_price::TEXT,
		        overall_pass, messages, breaches, checked_at
		 FROM compliance_checks WHERE fund_id = $1 ORDER BY checked_at`, fundID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.CheckRecord
	for rows.Next() {
		var rec model.CheckRecord
		var deltaS, priceS string
		var messages, breaches []byte

		if err := rows.Scan(&rec.ID, &rec.FundID, &rec.Ticker, &deltaS, &priceS,
			&rec.OverallPass, &messages, &breaches, &rec.CheckedAt); err != nil {
			return nil, err
		}

		rec.QuantityDelta, _ = decimal.NewFromString(deltaS)
		rec.TradePrice, _ = decimal.NewFromString(priceS)
		if err := json.Unmarshal(messages, &rec.Messages); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(breaches, &rec.Breaches); err != nil {
			return nil, err
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}
