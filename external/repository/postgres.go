package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foxseedlab/gymvoice/internal/repository"
	"github.com/foxseedlab/gymvoice/internal/workout"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `id, owner_id, start_time, end_time, exercises, user_weight, user_height, analysis`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context, filter repository.ListFilter) ([]workout.Session, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM workout_sessions
		 WHERE ($1 = '' OR owner_id = $1)
		 ORDER BY start_time DESC, created_at DESC
		 LIMIT NULLIF($2, 0)`,
		filter.OwnerID, filter.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []workout.Session{}
	for rows.Next() {
		s, err := scanPostgresSession(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*workout.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM workout_sessions WHERE id = $1`, id)
	s, err := scanPostgresSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) Append(ctx context.Context, s workout.Session) error {
	if err := repository.ValidateAppend(s); err != nil {
		return err
	}
	exercises, err := encodeExercises(s.Exercises)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO workout_sessions (id, owner_id, start_time, end_time, exercises, user_weight, user_height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.OwnerID, s.StartTime, *s.EndTime, exercises, s.UserWeight, s.UserHeight)
	if err != nil {
		return fmt.Errorf("insert workout session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateByID(ctx context.Context, id string, patch repository.Patch) error {
	if patch.Empty() {
		return nil
	}
	analysis, err := encodeAnalysis(patch.Analysis)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE workout_sessions SET
		   analysis = COALESCE($2::jsonb, analysis),
		   user_weight = COALESCE($3, user_weight),
		   user_height = COALESCE($4, user_height)
		 WHERE id = $1`,
		id, analysis, patch.UserWeight, patch.UserHeight)
	if err != nil {
		return fmt.Errorf("update workout session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) Shutdown() {
	r.pool.Close()
}

func scanPostgresSession(row pgx.Row) (workout.Session, error) {
	var s workout.Session
	var end time.Time
	var exercises, analysis []byte
	if err := row.Scan(&s.ID, &s.OwnerID, &s.StartTime, &end, &exercises, &s.UserWeight, &s.UserHeight, &analysis); err != nil {
		return workout.Session{}, err
	}
	s.StartTime = s.StartTime.UTC()
	end = end.UTC()
	s.EndTime = &end

	var err error
	if s.Exercises, err = decodeExercises(exercises); err != nil {
		return workout.Session{}, err
	}
	if s.Analysis, err = decodeAnalysis(analysis); err != nil {
		return workout.Session{}, err
	}
	return s, nil
}
