package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type participantRow struct {
	ID              int64          `db:"id"`
	Stage           string         `db:"stage"`
	ScreenshotCount int            `db:"screenshot_count"`
	OfferID         sql.NullString `db:"offer_id"`
	OfferPrice      sql.NullInt64  `db:"offer_price"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r participantRow) record() Record {
	rec := Record{
		Stage:           State(r.Stage),
		ScreenshotCount: r.ScreenshotCount,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.OfferID.Valid {
		rec.Selection = &Selection{OfferID: r.OfferID.String, Price: int(r.OfferPrice.Int64)}
	}
	return rec
}

const (
	selectParticipantSQL = `SELECT id, stage, screenshot_count, offer_id, offer_price, updated_at
		FROM participants WHERE id = $1`
	ensureParticipantSQL = `INSERT INTO participants (id, stage, screenshot_count, updated_at)
		VALUES ($1, $2, 0, $3) ON CONFLICT (id) DO NOTHING`
	writeParticipantSQL = `UPDATE participants
		SET stage = $2, screenshot_count = $3, offer_id = $4, offer_price = $5, updated_at = $6
		WHERE id = $1`
)

type postgresBackend struct {
	db *sqlx.DB
}

// NewPostgresBackend stores records in the participants table (see migrations/).
func NewPostgresBackend(db *sqlx.DB) Backend {
	return &postgresBackend{db: db}
}

func (p *postgresBackend) Name() string { return "postgres" }

func (p *postgresBackend) Load(ctx context.Context, id int64) (Record, bool, error) {
	var row participantRow
	err := p.db.GetContext(ctx, &row, selectParticipantSQL, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return row.record(), true, nil
}

// Update inserts a default row if needed and then locks it with FOR UPDATE,
// so two first-time writers cannot both start from an empty record.
func (p *postgresBackend) Update(ctx context.Context, id int64, fn UpdateFunc) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, ensureParticipantSQL, id, string(StateIdle), time.Now().UTC()); err != nil {
		return fmt.Errorf("ensure row: %w", err)
	}
	var row participantRow
	if err = tx.GetContext(ctx, &row, selectParticipantSQL+" FOR UPDATE", id); err != nil {
		return fmt.Errorf("lock row: %w", err)
	}

	rec := row.record()
	if err = fn(&rec); err != nil {
		return err
	}

	var (
		offerID    sql.NullString
		offerPrice sql.NullInt64
	)
	if rec.Selection != nil {
		offerID = sql.NullString{String: rec.Selection.OfferID, Valid: true}
		offerPrice = sql.NullInt64{Int64: int64(rec.Selection.Price), Valid: true}
	}
	if _, err = tx.ExecContext(ctx, writeParticipantSQL,
		id, string(rec.Stage), rec.ScreenshotCount, offerID, offerPrice, rec.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *postgresBackend) Delete(ctx context.Context, id int64) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	return err
}

func (p *postgresBackend) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM participants WHERE updated_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *postgresBackend) Close() error {
	return p.db.Close()
}
