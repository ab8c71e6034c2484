package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"watchparty-quiz/internal/domain"
)

func TestTimeWeightedBounds(t *testing.T) {
	s := TimeWeighted{}
	for duration := domain.MinDurationSeconds; duration <= domain.MaxDurationSeconds; duration++ {
		for left := 0; left <= duration; left++ {
			got := s.Score(true, duration, left)
			require.GreaterOrEqual(t, got, 500, "duration=%d left=%d", duration, left)
			require.LessOrEqual(t, got, 1000, "duration=%d left=%d", duration, left)
			require.Zero(t, s.Score(false, duration, left))
		}
	}
}

func TestTimeWeightedEdges(t *testing.T) {
	s := TimeWeighted{}
	require.Equal(t, 500, s.Score(true, 20, 0))
	require.Equal(t, 1000, s.Score(true, 20, 20))
	require.Equal(t, 750, s.Score(true, 20, 10))
	require.Equal(t, 666, s.Score(true, 15, 5)) // floor(500 + 166.66)
}

func TestTimeWeightedClampsClientTime(t *testing.T) {
	s := TimeWeighted{}
	require.Equal(t, 1000, s.Score(true, 20, 9999))
	require.Equal(t, 500, s.Score(true, 20, -40))
	require.Equal(t, 500, s.Score(true, 0, 10))
}

func TestFixed(t *testing.T) {
	require.Equal(t, 100, Fixed{}.Score(true, 20, 0))
	require.Equal(t, 0, Fixed{}.Score(false, 20, 20))
}

func TestForMode(t *testing.T) {
	s, err := ForMode(domain.ScoringFixed)
	require.NoError(t, err)
	require.Equal(t, domain.ScoringFixed, s.Mode())

	s, err = ForMode(domain.ScoringTimeWeighted)
	require.NoError(t, err)
	require.Equal(t, domain.ScoringTimeWeighted, s.Mode())

	_, err = ForMode("bonus")
	require.ErrorIs(t, err, domain.ErrValidation)
}

func publishedQuestions(n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			ID:              string(rune('a' + i)),
			Options:         []string{"x", "y", "z"},
			CorrectIndex:    1,
			DurationSeconds: 20,
			Published:       true,
			QuestionOrder:   i,
		}
	}
	return qs
}

func members(ids ...string) []domain.Member {
	base := time.Unix(1700000000, 0)
	out := make([]domain.Member, len(ids))
	for i, id := range ids {
		out[i] = domain.Member{UserID: id, DisplayName: id, JoinedAt: base.Add(time.Duration(i) * time.Second), Seq: int64(i + 1)}
	}
	return out
}

func answer(q, user string, option, score int) domain.Answer {
	return domain.Answer{QuestionID: q, UserID: user, OptionIndex: option, Score: score}
}

func TestAggregateFixedScenario(t *testing.T) {
	qs := publishedQuestions(3)
	answers := []domain.Answer{
		answer("a", "A", 1, 100), answer("b", "A", 1, 100), answer("c", "A", 0, 0),
		answer("a", "B", 1, 100), answer("b", "B", 1, 100), answer("c", "B", 1, 100),
	}

	got := Aggregate(domain.ScoringFixed, qs, answers, members("host", "A", "B"), "host")
	require.Len(t, got, 2)
	require.Equal(t, "B", got[0].UserID)
	require.Equal(t, 300, got[0].Score)
	require.Equal(t, 1, got[0].Rank)
	require.Equal(t, "A", got[1].UserID)
	require.Equal(t, 200, got[1].Score)
	require.Equal(t, 2, got[1].CorrectAnswers)
	require.Equal(t, 3, got[1].TotalQuestions)
}

func TestAggregateFixedIgnoresStoredScores(t *testing.T) {
	qs := publishedQuestions(1)
	got := Aggregate(domain.ScoringFixed, qs, []domain.Answer{answer("a", "A", 1, 0)}, members("h", "A"), "h")
	require.Equal(t, 100, got[0].Score)
}

func TestAggregateTieBreaks(t *testing.T) {
	qs := publishedQuestions(3)
	// P1: one fast correct (1000). P2: two slow corrects (500+500). Same score.
	// P3 and P4: identical logs, P3 joined first.
	answers := []domain.Answer{
		answer("a", "P1", 1, 1000),
		answer("a", "P2", 1, 500), answer("b", "P2", 1, 500),
		answer("a", "P4", 1, 700),
		answer("a", "P3", 1, 700),
	}
	ms := members("host", "P1", "P3", "P4", "P2")

	first := Aggregate(domain.ScoringTimeWeighted, qs, answers, ms, "host")
	ids := []string{first[0].UserID, first[1].UserID, first[2].UserID, first[3].UserID}
	require.Equal(t, []string{"P2", "P1", "P3", "P4"}, ids)

	for i := 0; i < 20; i++ {
		again := Aggregate(domain.ScoringTimeWeighted, qs, answers, ms, "host")
		require.Equal(t, first, again)
	}
}

func TestAggregateSkipsDraftsAndUnknownAnswers(t *testing.T) {
	qs := publishedQuestions(2)
	qs[1].Published = false
	answers := []domain.Answer{
		answer("a", "A", 1, 900),
		answer("b", "A", 1, 900),
		answer("zzz", "A", 1, 900),
	}
	got := Aggregate(domain.ScoringTimeWeighted, qs, answers, members("h", "A"), "h")
	require.Equal(t, 900, got[0].Score)
	require.Equal(t, 1, got[0].TotalQuestions)
}

func TestAggregateMembersWithoutAnswers(t *testing.T) {
	got := Aggregate(domain.ScoringTimeWeighted, publishedQuestions(2), nil, members("h", "A", "B"), "h")
	require.Len(t, got, 2)
	require.Equal(t, "A", got[0].UserID)
	require.Equal(t, 0, got[0].Score)
	require.Equal(t, 2, got[1].Rank)
}
