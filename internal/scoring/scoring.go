// Package scoring computes per-answer points and replays answer logs into
// leaderboards. Everything here is pure: no I/O, no clocks.
package scoring

import (
	"sort"

	"watchparty-quiz/internal/domain"
)

const (
	// FixedPoints is awarded per correct answer in fixed mode.
	FixedPoints = 100
	// BasePoints is the floor of a correct time-weighted answer.
	BasePoints = 500
	// SpeedPoints is the most a correct answer can earn on top of BasePoints.
	SpeedPoints = 500
)

// Strategy scores a single answer.
type Strategy interface {
	Mode() domain.ScoringMode
	Score(correct bool, duration, timeLeft int) int
}

// Fixed awards a flat FixedPoints per correct answer.
type Fixed struct{}

func (Fixed) Mode() domain.ScoringMode { return domain.ScoringFixed }

func (Fixed) Score(correct bool, _, _ int) int {
	if !correct {
		return 0
	}
	return FixedPoints
}

// TimeWeighted scales a correct answer between BasePoints and
// BasePoints+SpeedPoints by the fraction of time left.
type TimeWeighted struct{}

func (TimeWeighted) Mode() domain.ScoringMode { return domain.ScoringTimeWeighted }

func (TimeWeighted) Score(correct bool, duration, timeLeft int) int {
	if !correct {
		return 0
	}
	if duration <= 0 {
		return BasePoints
	}
	timeLeft = ClampTimeLeft(duration, timeLeft)
	// integer floor of 500 + 500*timeLeft/duration
	return BasePoints + (SpeedPoints*timeLeft)/duration
}

// ClampTimeLeft bounds a client-reported time left to [0, duration].
func ClampTimeLeft(duration, timeLeft int) int {
	if timeLeft < 0 {
		return 0
	}
	if duration < 0 {
		return 0
	}
	if timeLeft > duration {
		return duration
	}
	return timeLeft
}

// ForMode returns the strategy for mode.
func ForMode(mode domain.ScoringMode) (Strategy, error) {
	switch mode {
	case domain.ScoringFixed:
		return Fixed{}, nil
	case domain.ScoringTimeWeighted:
		return TimeWeighted{}, nil
	}
	return nil, domain.Errorf(domain.KindValidation, "unknown scoring mode %q", mode)
}

// Aggregate replays answers for the published questions into a ranked
// leaderboard. members must be in join order; hostID is left out.
//
// Fixed mode rebuilds scores as correct*FixedPoints; time-weighted mode sums
// the scores stored with each answer. Ties break on correct answers, then on
// join order.
func Aggregate(mode domain.ScoringMode, questions []domain.Question, answers []domain.Answer, members []domain.Member, hostID string) []domain.PlayerScore {
	published := make(map[string]domain.Question, len(questions))
	for _, q := range questions {
		if q.Published {
			published[q.ID] = q
		}
	}

	type key struct{ questionID, userID string }
	byKey := make(map[key]domain.Answer, len(answers))
	for _, a := range answers {
		if _, ok := published[a.QuestionID]; !ok {
			continue
		}
		k := key{a.QuestionID, a.UserID}
		// first write wins, the log is append-only
		if _, seen := byKey[k]; !seen {
			byKey[k] = a
		}
	}

	scores := make([]domain.PlayerScore, 0, len(members))
	for _, m := range members {
		if m.UserID == hostID {
			continue
		}
		row := domain.PlayerScore{
			UserID:         m.UserID,
			DisplayName:    m.DisplayName,
			TotalQuestions: len(published),
		}
		summed := 0
		for _, q := range questions {
			if !q.Published {
				continue
			}
			a, ok := byKey[key{q.ID, m.UserID}]
			if !ok {
				continue
			}
			if a.OptionIndex == q.CorrectIndex {
				row.CorrectAnswers++
			}
			summed += a.Score
		}
		if mode == domain.ScoringTimeWeighted {
			row.Score = summed
		} else {
			row.Score = row.CorrectAnswers * FixedPoints
		}
		scores = append(scores, row)
	}

	Rank(scores)
	return scores
}

// Rank sorts rows by score then correct answers, keeping the incoming order
// for full ties, and assigns 1-based ranks by position.
func Rank(rows []domain.PlayerScore) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].CorrectAnswers > rows[j].CorrectAnswers
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
}
