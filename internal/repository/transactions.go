package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/ledgerline/receipt-recon/constants"
	"github.com/ledgerline/receipt-recon/internal/common"
	"github.com/ledgerline/receipt-recon/internal/entity"
)

type TransactionRepository interface {
	// InsertIfAbsent atomically inserts the transaction unless a row with
	// the same (profile_id, provider_tx_id) already exists, in which case
	// the existing row is returned with duplicated = true and nothing is
	// written. Concurrent callers racing on the same key converge to one row.
	InsertIfAbsent(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, bool, error)
	GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.Transaction, error)
	// ListUnreconciled returns unreconciled rows for the profile, excluding
	// the given ids and any provider_tx_id with the given prefix.
	ListUnreconciled(ctx context.Context, profileID uuid.UUID, excludeIDs []string, excludeProviderPrefix string) ([]*entity.Transaction, error)
	SetIgnoredCandidates(ctx context.Context, profileID, id uuid.UUID, candidateIDs []string) error
	// MarkMatchedPair sets both sides to matched in one transaction; fails
	// if either row is missing or already matched.
	MarkMatchedPair(ctx context.Context, profileID, draftID, candidateID uuid.UUID) error
}

type transactionRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewTransactionRepository(store *Store, logger *slog.Logger) TransactionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &transactionRepository{store: store, logger: logger}
}

var transactionColumns = []string{
	"id", "profile_id", "provider_tx_id", "amount", "tx_date", "description",
	"category", "reconciliation_status", "ignored_candidate_ids",
	"created_at", "updated_at",
}

func (r *transactionRepository) InsertIfAbsent(ctx context.Context, tx *entity.Transaction) (*entity.Transaction, bool, error) {
	now := time.Now().UTC()
	ignored := tx.IgnoredCandidateIDs
	if ignored == nil {
		ignored = []string{}
	}
	ignoredJSON, err := json.Marshal(ignored)
	if err != nil {
		return nil, false, err
	}

	q := r.store.stmt().Insert("transactions").
		Columns(transactionColumns...).
		Values(
			tx.ID.String(),
			tx.ProfileID.String(),
			tx.ProviderTxID,
			tx.Amount,
			tx.Date.UTC().Format(dateLayout),
			tx.Description,
			tx.Category,
			string(tx.ReconciliationStatus),
			string(ignoredJSON),
			now.Format(timeLayout),
			now.Format(timeLayout),
		).
		Suffix("ON CONFLICT (profile_id, provider_tx_id) DO NOTHING")
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, false, err
	}
	res, err := r.store.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to insert transaction", "provider_tx_id", tx.ProviderTxID, "error", err)
		return nil, false, common.WrapError(err, "insert transaction")
	}

	// Either way the row now exists; re-read it so racing callers all see
	// the same stored state.
	stored, err := r.getByProviderTxID(ctx, tx.ProfileID, tx.ProviderTxID)
	if err != nil {
		return nil, false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return stored, false, nil
	}
	return stored, true, nil
}

func (r *transactionRepository) getByProviderTxID(ctx context.Context, profileID uuid.UUID, providerTxID string) (*entity.Transaction, error) {
	q := r.store.stmt().Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"profile_id": profileID.String(), "provider_tx_id": providerTxID})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	tx, err := scanTransactionRow(r.store.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return tx, err
}

func (r *transactionRepository) GetByID(ctx context.Context, profileID, id uuid.UUID) (*entity.Transaction, error) {
	q := r.store.stmt().Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	tx, err := scanTransactionRow(r.store.DB.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return tx, err
}

func (r *transactionRepository) ListUnreconciled(ctx context.Context, profileID uuid.UUID, excludeIDs []string, excludeProviderPrefix string) ([]*entity.Transaction, error) {
	q := r.store.stmt().Select(transactionColumns...).
		From("transactions").
		Where(squirrel.Eq{
			"profile_id":            profileID.String(),
			"reconciliation_status": string(constants.ReconUnreconciled),
		}).
		OrderBy("tx_date DESC")
	if len(excludeIDs) > 0 {
		q = q.Where(squirrel.NotEq{"id": excludeIDs})
	}
	if excludeProviderPrefix != "" {
		q = q.Where(squirrel.NotLike{"provider_tx_id": excludeProviderPrefix + "%"})
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.store.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		r.logger.Error("failed to list unreconciled transactions", "profile_id", profileID, "error", err)
		return nil, common.WrapError(err, "list unreconciled transactions")
	}
	defer rows.Close()

	var out []*entity.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *transactionRepository) SetIgnoredCandidates(ctx context.Context, profileID, id uuid.UUID, candidateIDs []string) error {
	if candidateIDs == nil {
		candidateIDs = []string{}
	}
	ignoredJSON, err := json.Marshal(candidateIDs)
	if err != nil {
		return err
	}
	q := r.store.stmt().Update("transactions").
		Set("ignored_candidate_ids", string(ignoredJSON)).
		Set("updated_at", time.Now().UTC().Format(timeLayout)).
		Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()})
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return err
	}
	res, err := r.store.DB.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return common.WrapError(err, "set ignored candidates")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *transactionRepository) MarkMatchedPair(ctx context.Context, profileID, draftID, candidateID uuid.UUID) error {
	dbTx, err := r.store.DB.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin match transaction")
	}
	defer func() {
		_ = dbTx.Rollback()
	}()

	now := time.Now().UTC().Format(timeLayout)
	for _, id := range []uuid.UUID{draftID, candidateID} {
		q := r.store.stmt().Update("transactions").
			Set("reconciliation_status", string(constants.ReconMatched)).
			Set("updated_at", now).
			Where(squirrel.Eq{"id": id.String(), "profile_id": profileID.String()}).
			Where(squirrel.NotEq{"reconciliation_status": string(constants.ReconMatched)})
		sqlStr, args, err := q.ToSql()
		if err != nil {
			return err
		}
		res, err := dbTx.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return common.WrapError(err, "mark matched")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %s not matchable: %w", id, common.ErrConflict)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return common.WrapError(err, "commit match")
	}
	r.logger.Info("reconciliation pair matched",
		"profile_id", profileID, "draft_id", draftID, "candidate_id", candidateID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransactionRow(row *sql.Row) (*entity.Transaction, error) {
	return scanTransaction(row)
}

func scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var (
		idStr, profileStr, providerTxID, txDate, description string
		amount                                               float64
		category                                             *string
		status, ignoredJSON, createdAt, updatedAt            string
	)
	if err := row.Scan(
		&idStr, &profileStr, &providerTxID, &amount, &txDate, &description,
		&category, &status, &ignoredJSON, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	profileID, err := uuid.Parse(profileStr)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(dateLayout, txDate)
	if err != nil {
		return nil, err
	}
	created, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, err
	}
	updated, err := time.Parse(timeLayout, updatedAt)
	if err != nil {
		return nil, err
	}

	var ignored []string
	if err := json.Unmarshal([]byte(ignoredJSON), &ignored); err != nil {
		return nil, fmt.Errorf("decode ignored candidates: %w", err)
	}

	return &entity.Transaction{
		ID:                   id,
		ProfileID:            profileID,
		ProviderTxID:         providerTxID,
		Amount:               amount,
		Date:                 date,
		Description:          description,
		Category:             category,
		ReconciliationStatus: constants.ReconciliationStatus(status),
		IgnoredCandidateIDs:  ignored,
		CreatedAt:            created,
		UpdatedAt:            updated,
	}, nil
}
