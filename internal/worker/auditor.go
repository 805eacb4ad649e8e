package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// TallyAuditor periodically cross-checks the denormalized counters against
// the authoritative vote rows: for every poll, total_votes must equal the
// vote row count and each choice's votes_count must match its rows. The vote
// transaction keeps these in step; the auditor catches anything that slipped
// in from outside (manual edits, restored backups).
type TallyAuditor struct {
	pool     *pgxpool.Pool
	interval time.Duration
	repair   bool
	logger   *zap.Logger
}

// NewTallyAuditor creates a tally auditor. When repair is true, drifted
// counters are rewritten from the vote rows instead of only being logged.
func NewTallyAuditor(pool *pgxpool.Pool, interval time.Duration, repair bool, logger *zap.Logger) *TallyAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TallyAuditor{pool: pool, interval: interval, repair: repair, logger: logger}
}

// Run executes audits on the configured interval until ctx is done.
func (a *TallyAuditor) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("tally auditor stopping")
			return
		case <-ticker.C:
			if err := a.Audit(ctx); err != nil {
				a.logger.Error("tally audit failed", zap.Error(err))
			}
		}
	}
}

// Audit runs one pass over all polls.
func (a *TallyAuditor) Audit(ctx context.Context) error {
	const pollQ = `SELECT p.id, p.total_votes, COALESCE(v.n, 0)
		FROM polls p
		LEFT JOIN (SELECT poll_id, COUNT(*) AS n FROM votes GROUP BY poll_id) v ON v.poll_id = p.id
		WHERE p.total_votes <> COALESCE(v.n, 0)`
	rows, err := a.pool.Query(ctx, pollQ)
	if err != nil {
		return fmt.Errorf("poll drift query: %w", err)
	}
	defer rows.Close()

	var drifted []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		var stored, actual int
		if err := rows.Scan(&id, &stored, &actual); err != nil {
			return err
		}
		a.logger.Warn("poll counter drift",
			zap.String("poll_id", id.String()),
			zap.Int("total_votes", stored),
			zap.Int("vote_rows", actual),
		)
		drifted = append(drifted, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	const choiceQ = `SELECT c.id, c.poll_id, c.votes_count, COALESCE(v.n, 0)
		FROM choices c
		LEFT JOIN (SELECT choice_id, COUNT(*) AS n FROM votes GROUP BY choice_id) v ON v.choice_id = c.id
		WHERE c.votes_count <> COALESCE(v.n, 0)`
	crows, err := a.pool.Query(ctx, choiceQ)
	if err != nil {
		return fmt.Errorf("choice drift query: %w", err)
	}
	defer crows.Close()

	seen := make(map[uuid.UUID]bool, len(drifted))
	for _, id := range drifted {
		seen[id] = true
	}
	for crows.Next() {
		var choiceID, pollID uuid.UUID
		var stored, actual int
		if err := crows.Scan(&choiceID, &pollID, &stored, &actual); err != nil {
			return err
		}
		a.logger.Warn("choice counter drift",
			zap.String("choice_id", choiceID.String()),
			zap.String("poll_id", pollID.String()),
			zap.Int("votes_count", stored),
			zap.Int("vote_rows", actual),
		)
		if !seen[pollID] {
			seen[pollID] = true
			drifted = append(drifted, pollID)
		}
	}
	if err := crows.Err(); err != nil {
		return err
	}

	if len(drifted) == 0 {
		a.logger.Info("tally audit clean")
		return nil
	}
	if !a.repair {
		return nil
	}
	for _, id := range drifted {
		if err := a.repairPoll(ctx, id); err != nil {
			a.logger.Error("repair failed", zap.String("poll_id", id.String()), zap.Error(err))
			continue
		}
		a.logger.Info("counters repaired", zap.String("poll_id", id.String()))
	}
	return nil
}

// repairPoll rewrites one poll's counters from the vote rows in a single
// transaction.
func (a *TallyAuditor) repairPoll(ctx context.Context, pollID uuid.UUID) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE choices SET votes_count =
		(SELECT COUNT(*) FROM votes WHERE votes.choice_id = choices.id)
		WHERE poll_id = $1`, pollID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE polls SET total_votes =
		(SELECT COUNT(*) FROM votes WHERE votes.poll_id = polls.id)
		WHERE id = $1`, pollID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
