package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-portal/internal/domain"
)

// ErrNoSnapshot is returned when a board has never been recorded.
var ErrNoSnapshot = errors.New("no snapshot recorded")

// SnapshotStore records computed leaderboards so rank history survives
// restarts. It implements app.SnapshotSink.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// SaveSnapshots writes every snapshot of one refresh in a single transaction.
func (s *SnapshotStore) SaveSnapshots(ctx context.Context, snapshots []domain.LeaderboardSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		rows, err := json.Marshal(snap.Rows)
		if err != nil {
			return fmt.Errorf("marshal %s rows: %w", snap.Board, err)
		}
		batch.Queue(
			`INSERT INTO ranking_snapshots (board, category, taken_at, rows) VALUES ($1, $2, $3, $4)`,
			string(snap.Board), snap.Category, snap.UpdatedAt, rows,
		)
	}

	return s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for range snapshots {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert snapshot: %w", err)
			}
		}
		return br.Close()
	})
}

// Latest returns the most recent snapshot of a board.
func (s *SnapshotStore) Latest(ctx context.Context, board domain.Board, category string) (domain.LeaderboardSnapshot, error) {
	history, err := s.History(ctx, board, category, 1)
	if err != nil {
		return domain.LeaderboardSnapshot{}, err
	}
	if len(history) == 0 {
		return domain.LeaderboardSnapshot{}, ErrNoSnapshot
	}
	return history[0], nil
}

// History returns up to limit snapshots of a board, newest first.
func (s *SnapshotStore) History(ctx context.Context, board domain.Board, category string, limit int) ([]domain.LeaderboardSnapshot, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT taken_at, rows FROM ranking_snapshots
		 WHERE board=$1 AND category=$2
		 ORDER BY taken_at DESC, id DESC
		 LIMIT $3`,
		string(board), category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardSnapshot
	for rows.Next() {
		snap := domain.LeaderboardSnapshot{Board: board, Category: category}
		var raw []byte
		if err := rows.Scan(&snap.UpdatedAt, &raw); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(raw, &snap.Rows); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}
