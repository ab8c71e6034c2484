// Package storetest holds the behavioural contract every app.Store must pass.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"watchparty-quiz/internal/app"
	"watchparty-quiz/internal/domain"
)

// Factory returns a fresh, empty store.
type Factory func(t *testing.T) app.Store

// Run executes the store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RoomsAndMembers", func(t *testing.T) { testRoomsAndMembers(t, newStore(t)) })
	t.Run("TransitionCAS", func(t *testing.T) { testTransitionCAS(t, newStore(t)) })
	t.Run("Movies", func(t *testing.T) { testMovies(t, newStore(t)) })
	t.Run("QuestionLimit", func(t *testing.T) { testQuestionLimit(t, newStore(t)) })
	t.Run("PublishOrder", func(t *testing.T) { testPublishOrder(t, newStore(t)) })
	t.Run("AnswersExactlyOnce", func(t *testing.T) { testAnswersExactlyOnce(t, newStore(t)) })
	t.Run("ConcurrentAnswers", func(t *testing.T) { testConcurrentAnswers(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
}

var base = time.Date(2024, 11, 22, 20, 0, 0, 0, time.UTC)

func seedRoom(t *testing.T, s app.Store, id, code string, status domain.RoomStatus) domain.Room {
	t.Helper()
	ctx := context.Background()
	room := domain.Room{ID: id, Code: code, HostID: id + "-host", Status: domain.StatusVoting, CreatedAt: base}
	require.NoError(t, s.CreateRoom(ctx, room, domain.Member{RoomID: id, UserID: room.HostID, DisplayName: "Host", JoinedAt: base}))
	if status != domain.StatusVoting {
		require.NoError(t, s.TransitionRoom(ctx, id, domain.StatusVoting, domain.StatusQuiz, domain.ScoringTimeWeighted))
		room.Status = domain.StatusQuiz
		room.ScoringMode = domain.ScoringTimeWeighted
	}
	return room
}

func draft(roomID, id string, offset time.Duration) domain.Question {
	return domain.Question{
		ID:              id,
		RoomID:          roomID,
		Text:            "Who directed " + id + "?",
		Options:         []string{"A", "B", "C"},
		CorrectIndex:    2,
		DurationSeconds: 20,
		CreatedAt:       base.Add(offset),
	}
}

func testRoomsAndMembers(t *testing.T, s app.Store) {
	ctx := context.Background()
	room := seedRoom(t, s, "r1", "ABCDEF", domain.StatusVoting)

	got, err := s.GetRoomByCode(ctx, "ABCDEF")
	require.NoError(t, err)
	require.Equal(t, room.ID, got.ID)
	require.Equal(t, domain.StatusVoting, got.Status)
	require.Equal(t, room.HostID, got.HostID)

	_, err = s.GetRoom(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = s.CreateRoom(ctx, domain.Room{ID: "r2", Code: "ABCDEF", HostID: "h", Status: domain.StatusVoting, CreatedAt: base},
		domain.Member{RoomID: "r2", UserID: "h", JoinedAt: base})
	require.ErrorIs(t, err, domain.ErrConflict)

	m, created, err := s.AddMember(ctx, domain.Member{RoomID: "r1", UserID: "bob", DisplayName: "Bob", JoinedAt: base.Add(2 * time.Second)})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "Bob", m.DisplayName)

	_, created, err = s.AddMember(ctx, domain.Member{RoomID: "r1", UserID: "amy", DisplayName: "Amy", JoinedAt: base.Add(time.Second)})
	require.NoError(t, err)
	require.True(t, created)

	again, created, err := s.AddMember(ctx, domain.Member{RoomID: "r1", UserID: "bob", DisplayName: "Robert", JoinedAt: base.Add(time.Hour)})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "Bob", again.DisplayName)

	members, err := s.ListMembers(ctx, "r1")
	require.NoError(t, err)
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	require.Equal(t, []string{room.HostID, "amy", "bob"}, ids)

	_, err = s.GetMember(ctx, "r1", "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testTransitionCAS(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedRoom(t, s, "r1", "CASCAS", domain.StatusVoting)

	err := s.TransitionRoom(ctx, "r1", domain.StatusQuiz, domain.StatusFinished, domain.ScoringFixed)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	require.NoError(t, s.TransitionRoom(ctx, "r1", domain.StatusVoting, domain.StatusQuiz, domain.ScoringFixed))
	err = s.TransitionRoom(ctx, "r1", domain.StatusVoting, domain.StatusQuiz, domain.ScoringFixed)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	room, err := s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusQuiz, room.Status)
	require.Equal(t, domain.ScoringFixed, room.ScoringMode)

	err = s.TransitionRoom(ctx, "missing", domain.StatusVoting, domain.StatusQuiz, domain.ScoringFixed)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func testMovies(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedRoom(t, s, "r1", "MOVIES", domain.StatusVoting)

	ok, err := s.HasAcceptedMovie(ctx, "r1")
	require.NoError(t, err)
	require.False(t, ok)

	for i, id := range []string{"m1", "m2"} {
		_, err := s.ProposeMovie(ctx, domain.RoomMovie{ID: id, RoomID: "r1", MovieID: "tmdb-" + id, Title: id, ProposedBy: "r1-host", CreatedAt: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}
	require.NoError(t, s.UpsertMovieVote(ctx, "r1", domain.MovieVote{RoomMovieID: "m1", UserID: "a", Vote: true, VotedAt: base}))
	require.NoError(t, s.UpsertMovieVote(ctx, "r1", domain.MovieVote{RoomMovieID: "m1", UserID: "b", Vote: true, VotedAt: base}))
	require.NoError(t, s.UpsertMovieVote(ctx, "r1", domain.MovieVote{RoomMovieID: "m1", UserID: "b", Vote: false, VotedAt: base.Add(time.Second)}))
	require.ErrorIs(t, s.UpsertMovieVote(ctx, "r1", domain.MovieVote{RoomMovieID: "nope", UserID: "a", Vote: true, VotedAt: base}), domain.ErrNotFound)

	require.NoError(t, s.AcceptMovie(ctx, "r1", "m1"))
	require.NoError(t, s.AcceptMovie(ctx, "r1", "m2"))
	require.ErrorIs(t, s.AcceptMovie(ctx, "r1", "nope"), domain.ErrNotFound)

	movies, err := s.ListMovies(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, movies, 2)
	require.Equal(t, "m2", movies[0].ID)
	require.True(t, movies[0].Accepted)
	require.False(t, movies[1].Accepted)
	require.Equal(t, 1, movies[1].Upvotes)
	require.Equal(t, 1, movies[1].Downvotes)

	ok, err = s.HasAcceptedMovie(ctx, "r1")
	require.NoError(t, err)
	require.True(t, ok)
}

func testQuestionLimit(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedRoom(t, s, "r1", "LIMITS", domain.StatusQuiz)

	for i := 0; i < domain.MaxQuestionsPerRoom; i++ {
		_, err := s.CreateQuestion(ctx, draft("r1", "q"+string(rune('a'+i)), time.Duration(i)*time.Second), domain.MaxQuestionsPerRoom)
		require.NoError(t, err)
	}
	_, err := s.CreateQuestion(ctx, draft("r1", "q16", time.Minute), domain.MaxQuestionsPerRoom)
	require.ErrorIs(t, err, domain.ErrLimitExceeded)
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	require.Equal(t, domain.MaxQuestionsPerRoom, de.Count)

	qs, err := s.ListQuestions(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, qs, domain.MaxQuestionsPerRoom)

	require.NoError(t, s.DeleteDraftQuestion(ctx, "r1", "qa"))
	require.ErrorIs(t, s.DeleteDraftQuestion(ctx, "r1", "qa"), domain.ErrNotFound)
}

func testPublishOrder(t *testing.T, s app.Store) {
	ctx := context.Background()
	seedRoom(t, s, "r1", "PUBLSH", domain.StatusQuiz)

	// inserted out of creation order on purpose
	for _, q := range []domain.Question{
		draft("r1", "third", 3*time.Second),
		draft("r1", "first", 1*time.Second),
		draft("r1", "second", 2*time.Second),
	} {
		_, err := s.CreateQuestion(ctx, q, domain.MaxQuestionsPerRoom)
		require.NoError(t, err)
	}

	at := base.Add(time.Hour)
	published, err := s.PublishQuestions(ctx, "r1", at)
	require.NoError(t, err)
	require.Len(t, published, 3)
	for i, want := range []string{"first", "second", "third"} {
		require.Equal(t, want, published[i].ID)
		require.Equal(t, i, published[i].QuestionOrder)
		require.True(t, published[i].Published)
		require.NotNil(t, published[i].PublishedAt)
		require.True(t, published[i].PublishedAt.Equal(at))
	}

	_, err = s.PublishQuestions(ctx, "r1", at.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrAlreadyPublished)

	qs, err := s.ListQuestions(ctx, "r1")
	require.NoError(t, err)
	for i, q := range qs {
		require.Equal(t, i, q.QuestionOrder)
		require.True(t, q.PublishedAt.Equal(at))
		require.Equal(t, []string{"A", "B", "C"}, q.Options)
	}

	_, err = s.CreateQuestion(ctx, draft("r1", "late", time.Hour), domain.MaxQuestionsPerRoom)
	require.ErrorIs(t, err, domain.ErrAlreadyPublished)
	require.ErrorIs(t, s.DeleteDraftQuestion(ctx, "r1", "first"), domain.ErrAlreadyPublished)

	seedRoom(t, s, "r2", "EMPTYR", domain.StatusQuiz)
	_, err = s.PublishQuestions(ctx, "r2", at)
	require.ErrorIs(t, err, domain.ErrNotReady)
}

func publishedRoom(t *testing.T, s app.Store, id, code string) {
	t.Helper()
	ctx := context.Background()
	seedRoom(t, s, id, code, domain.StatusQuiz)
	_, err := s.CreateQuestion(ctx, draft(id, id+"-q1", 0), domain.MaxQuestionsPerRoom)
	require.NoError(t, err)
	_, err = s.PublishQuestions(ctx, id, base.Add(time.Minute))
	require.NoError(t, err)
}

func testAnswersExactlyOnce(t *testing.T, s app.Store) {
	ctx := context.Background()
	publishedRoom(t, s, "r1", "ANSWER")

	first := domain.Answer{QuestionID: "r1-q1", RoomID: "r1", UserID: "amy", OptionIndex: 2, Correct: true, TimeLeft: 12, Score: 800, AnsweredAt: base.Add(2 * time.Minute)}
	require.NoError(t, s.InsertAnswer(ctx, first))

	second := first
	second.OptionIndex, second.Correct, second.Score = 0, false, 0
	require.ErrorIs(t, s.InsertAnswer(ctx, second), domain.ErrAlreadyAnswered)

	got, err := s.GetAnswer(ctx, "r1-q1", "amy")
	require.NoError(t, err)
	require.Equal(t, 2, got.OptionIndex)
	require.Equal(t, 800, got.Score)
	require.True(t, got.Correct)

	_, err = s.GetAnswer(ctx, "r1-q1", "bob")
	require.ErrorIs(t, err, domain.ErrNotFound)

	answers, err := s.ListAnswers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, answers, 1)

	require.NoError(t, s.TransitionRoom(ctx, "r1", domain.StatusQuiz, domain.StatusFinished, domain.ScoringTimeWeighted))
	late := first
	late.UserID = "bob"
	require.ErrorIs(t, s.InsertAnswer(ctx, late), domain.ErrQuizNotActive)
}

func testConcurrentAnswers(t *testing.T, s app.Store) {
	ctx := context.Background()
	publishedRoom(t, s, "r1", "RACERS")

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, dups int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.InsertAnswer(ctx, domain.Answer{QuestionID: "r1-q1", RoomID: "r1", UserID: "amy", OptionIndex: i % 3, Score: i, AnsweredAt: base.Add(time.Duration(i) * time.Millisecond)})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case domain.KindOf(err) == domain.KindAlreadyAnswered:
				dups++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, 1, ok)
	require.Equal(t, workers-1, dups)
}

func testReset(t *testing.T, s app.Store) {
	ctx := context.Background()
	publishedRoom(t, s, "r1", "RESETR")
	_, _, err := s.AddMember(ctx, domain.Member{RoomID: "r1", UserID: "amy", JoinedAt: base.Add(time.Second)})
	require.NoError(t, err)
	_, err = s.ProposeMovie(ctx, domain.RoomMovie{ID: "m1", RoomID: "r1", MovieID: "tmdb-1", Title: "Heat", ProposedBy: "amy", CreatedAt: base})
	require.NoError(t, err)
	require.NoError(t, s.UpsertMovieVote(ctx, "r1", domain.MovieVote{RoomMovieID: "m1", UserID: "amy", Vote: true, VotedAt: base}))
	require.NoError(t, s.AcceptMovie(ctx, "r1", "m1"))
	require.NoError(t, s.InsertAnswer(ctx, domain.Answer{QuestionID: "r1-q1", RoomID: "r1", UserID: "amy", OptionIndex: 2, Correct: true, Score: 900, AnsweredAt: base.Add(2 * time.Minute)}))

	require.ErrorIs(t, s.ResetRoom(ctx, "r1"), domain.ErrInvalidTransition)
	require.NoError(t, s.TransitionRoom(ctx, "r1", domain.StatusQuiz, domain.StatusFinished, domain.ScoringTimeWeighted))
	require.NoError(t, s.ResetRoom(ctx, "r1"))

	room, err := s.GetRoom(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusVoting, room.Status)
	require.Equal(t, domain.ScoringMode(""), room.ScoringMode)
	require.Equal(t, "RESETR", room.Code)

	qs, err := s.ListQuestions(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, qs)
	answers, err := s.ListAnswers(ctx, "r1")
	require.NoError(t, err)
	require.Empty(t, answers)
	_, err = s.GetAnswer(ctx, "r1-q1", "amy")
	require.ErrorIs(t, err, domain.ErrNotFound)

	accepted, err := s.HasAcceptedMovie(ctx, "r1")
	require.NoError(t, err)
	require.False(t, accepted)
	movies, err := s.ListMovies(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, movies, 1)
	require.Zero(t, movies[0].Upvotes)

	members, err := s.ListMembers(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, members, 2)
}
