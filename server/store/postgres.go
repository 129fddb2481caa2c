// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Postgres 基于 database/sql 的存储实现（pgx stdlib 驱动）
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// InitSchema 建表。去重语义由两个复合唯一键承载：
// answers(challenge_id, team_id) 与 nonce_flags_used(challenge_id, nonce)。
func (s *Postgres) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(120) UNIQUE NOT NULL,
			score INTEGER NOT NULL DEFAULT 0,
			last_solve TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(80) UNIQUE NOT NULL,
			display_name VARCHAR(120) NOT NULL DEFAULT '',
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'user',
			team_id BIGINT REFERENCES teams(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS challenges (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) NOT NULL,
			points INTEGER NOT NULL,
			min_points INTEGER NOT NULL DEFAULT 0,
			decay_speed INTEGER NOT NULL DEFAULT 12,
			validator VARCHAR(32) NOT NULL,
			answer_hash TEXT NOT NULL DEFAULT '',
			unlocked BOOLEAN NOT NULL DEFAULT FALSE,
			prerequisite TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			challenge_id BIGINT NOT NULL REFERENCES challenges(id),
			team_id BIGINT NOT NULL REFERENCES teams(id),
			solved_at TIMESTAMPTZ NOT NULL,
			first_blood BOOLEAN NOT NULL DEFAULT FALSE,
			answer_hash TEXT NOT NULL DEFAULT '',
			submit_ip VARCHAR(45) NOT NULL DEFAULT '',
			PRIMARY KEY (challenge_id, team_id)
		)`,
		`CREATE TABLE IF NOT EXISTS nonce_flags_used (
			challenge_id BIGINT NOT NULL REFERENCES challenges(id),
			nonce BIGINT NOT NULL,
			team_id BIGINT NOT NULL REFERENCES teams(id),
			used_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (challenge_id, nonce)
		)`,
		`CREATE TABLE IF NOT EXISTS score_history (
			team_id BIGINT NOT NULL REFERENCES teams(id),
			created_at TIMESTAMPTZ NOT NULL,
			score INTEGER NOT NULL,
			PRIMARY KEY (team_id, created_at)
		)`,
		`CREATE TABLE IF NOT EXISTS system_logs (
			id BIGSERIAL PRIMARY KEY,
			type VARCHAR(40) NOT NULL,
			level VARCHAR(20) NOT NULL,
			user_id BIGINT,
			team_id BIGINT,
			challenge_id BIGINT,
			ip_address VARCHAR(45),
			message TEXT NOT NULL,
			details JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// insertIfAbsent 条件插入。两处去重（解题记录、nonce使用记录）共用这一个入口，
// ON CONFLICT DO NOTHING 后按影响行数判断是否发生冲突。
func insertIfAbsent(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (bool, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Postgres) GetChallenge(ctx context.Context, id int64) (*Challenge, error) {
	var ch Challenge
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, points, min_points, decay_speed, validator, answer_hash, unlocked, prerequisite
		FROM challenges WHERE id = $1`, id).
		Scan(&ch.ID, &ch.Name, &ch.Points, &ch.MinPoints, &ch.DecaySpeed,
			&ch.Validator, &ch.AnswerHash, &ch.Unlocked, &ch.Prerequisite)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *Postgres) ListChallenges(ctx context.Context) ([]Challenge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, points, min_points, decay_speed, validator, answer_hash, unlocked, prerequisite
		FROM challenges ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Challenge
	for rows.Next() {
		var ch Challenge
		if err := rows.Scan(&ch.ID, &ch.Name, &ch.Points, &ch.MinPoints, &ch.DecaySpeed,
			&ch.Validator, &ch.AnswerHash, &ch.Unlocked, &ch.Prerequisite); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateChallenge(ctx context.Context, ch *Challenge) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO challenges (name, points, min_points, decay_speed, validator, answer_hash, unlocked, prerequisite)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		ch.Name, ch.Points, ch.MinPoints, ch.DecaySpeed, ch.Validator,
		ch.AnswerHash, ch.Unlocked, ch.Prerequisite).Scan(&ch.ID)
}

func (s *Postgres) UpdateChallenge(ctx context.Context, ch *Challenge) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenges SET name = $1, points = $2, min_points = $3, decay_speed = $4,
			unlocked = $5, prerequisite = $6
		WHERE id = $7`,
		ch.Name, ch.Points, ch.MinPoints, ch.DecaySpeed, ch.Unlocked, ch.Prerequisite, ch.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) SetAnswer(ctx context.Context, id int64, kind, answerHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE challenges SET validator = $1, answer_hash = $2 WHERE id = $3`,
		kind, answerHash, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) GetTeam(ctx context.Context, id int64) (*Team, error) {
	var t Team
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, score, last_solve FROM teams WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.Score, &last)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if last.Valid {
		t.LastSolve = &last.Time
	}
	return &t, nil
}

func (s *Postgres) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, score, last_solve FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Team
	for rows.Next() {
		var t Team
		var last sql.NullTime
		if err := rows.Scan(&t.ID, &t.Name, &t.Score, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			t.LastSolve = &last.Time
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) HasSolved(ctx context.Context, challengeID, teamID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM answers WHERE challenge_id = $1 AND team_id = $2`,
		challengeID, teamID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Postgres) CountSolves(ctx context.Context, challengeID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answers WHERE challenge_id = $1`, challengeID).Scan(&n)
	return n, err
}

func (s *Postgres) SolveCounts(ctx context.Context) (map[int64]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT challenge_id, COUNT(*) FROM answers GROUP BY challenge_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var cid int64
		var n int
		if err := rows.Scan(&cid, &n); err != nil {
			return nil, err
		}
		counts[cid] = n
	}
	return counts, rows.Err()
}

func (s *Postgres) ListTeamAnswers(ctx context.Context, teamID int64) ([]Answer, error) {
	return s.scanAnswers(s.db.QueryContext(ctx, `
		SELECT challenge_id, team_id, solved_at, first_blood, answer_hash, submit_ip
		FROM answers WHERE team_id = $1 ORDER BY solved_at`, teamID))
}

func (s *Postgres) ListAnswers(ctx context.Context) ([]Answer, error) {
	return s.scanAnswers(s.db.QueryContext(ctx, `
		SELECT challenge_id, team_id, solved_at, first_blood, answer_hash, submit_ip
		FROM answers ORDER BY solved_at`))
}

func (s *Postgres) scanAnswers(rows *sql.Rows, err error) ([]Answer, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ChallengeID, &a.TeamID, &a.SolvedAt,
			&a.FirstBlood, &a.AnswerHash, &a.SubmitIP); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) RecordSolve(ctx context.Context, ans Answer, nonce *int64, points int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ok, err := insertIfAbsent(ctx, tx, `
		INSERT INTO answers (challenge_id, team_id, solved_at, first_blood, answer_hash, submit_ip)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (challenge_id, team_id) DO NOTHING`,
		ans.ChallengeID, ans.TeamID, ans.SolvedAt, ans.FirstBlood, ans.AnswerHash, ans.SubmitIP)
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateAnswer
	}

	if nonce != nil {
		ok, err = insertIfAbsent(ctx, tx, `
			INSERT INTO nonce_flags_used (challenge_id, nonce, team_id, used_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (challenge_id, nonce) DO NOTHING`,
			ans.ChallengeID, *nonce, ans.TeamID, ans.SolvedAt)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDuplicateNonce
		}
	}

	var newScore int
	err = tx.QueryRowContext(ctx, `
		UPDATE teams SET score = score + $1, last_solve = $2 WHERE id = $3
		RETURNING score`,
		points, ans.SolvedAt, ans.TeamID).Scan(&newScore)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO score_history (team_id, created_at, score) VALUES ($1, $2, $3)`,
		ans.TeamID, ans.SolvedAt, newScore); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Postgres) SetTeamScore(ctx context.Context, teamID int64, score int, when time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE teams SET score = $1 WHERE id = $2`, score, teamID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO score_history (team_id, created_at, score) VALUES ($1, $2, $3)`,
		teamID, when, score); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Postgres) ListScoreHistory(ctx context.Context, teamID int64) ([]ScoreHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT team_id, created_at, score FROM score_history
		WHERE team_id = $1 ORDER BY created_at`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ScoreHistoryEntry
	for rows.Next() {
		var e ScoreHistoryEntry
		if err := rows.Scan(&e.TeamID, &e.When, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
