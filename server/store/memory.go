// Author: tan91
// GitHub: https://github.com/NUDTTAN91
// Blog: https://blog.csdn.net/ZXW_NUDT

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory 内存存储，测试用。用互斥锁模拟数据库的提交时唯一键检查，
// 语义与 Postgres 实现保持一致。
type Memory struct {
	mu        sync.Mutex
	nextID    int64
	challenge map[int64]*Challenge
	team      map[int64]*Team
	answers   map[[2]int64]*Answer // (challengeID, teamID)
	nonces    map[[2]int64]int64   // (challengeID, nonce) -> teamID
	history   []ScoreHistoryEntry
}

func NewMemory() *Memory {
	return &Memory{
		nextID:    1,
		challenge: make(map[int64]*Challenge),
		team:      make(map[int64]*Team),
		answers:   make(map[[2]int64]*Answer),
		nonces:    make(map[[2]int64]int64),
	}
}

// AddTeam 测试辅助：注册一支队伍
func (s *Memory) AddTeam(name string) *Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &Team{ID: s.nextID, Name: name}
	s.nextID++
	s.team[t.ID] = t
	return t
}

func (s *Memory) GetChallenge(ctx context.Context, id int64) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenge[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (s *Memory) ListChallenges(ctx context.Context) ([]Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Challenge
	for _, ch := range s.challenge {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) CreateChallenge(ctx context.Context, ch *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.ID = s.nextID
	s.nextID++
	cp := *ch
	s.challenge[ch.ID] = &cp
	return nil
}

func (s *Memory) UpdateChallenge(ctx context.Context, ch *Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.challenge[ch.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Name = ch.Name
	cur.Points = ch.Points
	cur.MinPoints = ch.MinPoints
	cur.DecaySpeed = ch.DecaySpeed
	cur.Unlocked = ch.Unlocked
	cur.Prerequisite = ch.Prerequisite
	return nil
}

func (s *Memory) SetAnswer(ctx context.Context, id int64, kind, answerHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenge[id]
	if !ok {
		return ErrNotFound
	}
	ch.Validator = kind
	ch.AnswerHash = answerHash
	return nil
}

func (s *Memory) GetTeam(ctx context.Context, id int64) (*Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.team[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Memory) ListTeams(ctx context.Context) ([]Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Team
	for _, t := range s.team {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Memory) HasSolved(ctx context.Context, challengeID, teamID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.answers[[2]int64{challengeID, teamID}]
	return ok, nil
}

func (s *Memory) CountSolves(ctx context.Context, challengeID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.answers {
		if k[0] == challengeID {
			n++
		}
	}
	return n, nil
}

func (s *Memory) SolveCounts(ctx context.Context) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[int64]int)
	for k := range s.answers {
		counts[k[0]]++
	}
	return counts, nil
}

func (s *Memory) ListTeamAnswers(ctx context.Context, teamID int64) ([]Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Answer
	for _, a := range s.answers {
		if a.TeamID == teamID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolvedAt.Before(out[j].SolvedAt) })
	return out, nil
}

func (s *Memory) ListAnswers(ctx context.Context) ([]Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Answer
	for _, a := range s.answers {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolvedAt.Before(out[j].SolvedAt) })
	return out, nil
}

func (s *Memory) RecordSolve(ctx context.Context, ans Answer, nonce *int64, points int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	akey := [2]int64{ans.ChallengeID, ans.TeamID}
	if _, dup := s.answers[akey]; dup {
		return ErrDuplicateAnswer
	}
	if nonce != nil {
		nkey := [2]int64{ans.ChallengeID, *nonce}
		if _, dup := s.nonces[nkey]; dup {
			return ErrDuplicateNonce
		}
	}
	t, ok := s.team[ans.TeamID]
	if !ok {
		return ErrNotFound
	}

	cp := ans
	s.answers[akey] = &cp
	if nonce != nil {
		s.nonces[[2]int64{ans.ChallengeID, *nonce}] = ans.TeamID
	}
	t.Score += points
	solvedAt := ans.SolvedAt
	t.LastSolve = &solvedAt
	s.history = append(s.history, ScoreHistoryEntry{
		TeamID: ans.TeamID, When: ans.SolvedAt, Score: t.Score,
	})
	return nil
}

func (s *Memory) SetTeamScore(ctx context.Context, teamID int64, score int, when time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.team[teamID]
	if !ok {
		return ErrNotFound
	}
	t.Score = score
	s.history = append(s.history, ScoreHistoryEntry{TeamID: teamID, When: when, Score: score})
	return nil
}

func (s *Memory) ListScoreHistory(ctx context.Context, teamID int64) ([]ScoreHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ScoreHistoryEntry
	for _, e := range s.history {
		if e.TeamID == teamID {
			out = append(out, e)
		}
	}
	return out, nil
}
