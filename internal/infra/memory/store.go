package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"watchparty-quiz/internal/domain"
)

// Store is an in-memory implementation of app.Store. A single mutex makes
// every operation atomic, mirroring the transactions of the SQL store.
type Store struct {
	mu        sync.Mutex
	seq       int64
	rooms     map[string]*domain.Room
	codes     map[string]string
	members   map[string][]*domain.Member
	movies    map[string][]*domain.RoomMovie
	votes     map[string]map[string]domain.MovieVote // roomMovieID -> userID
	questions map[string]*domain.Question
	answers   map[answerKey]domain.Answer
}

type answerKey struct {
	questionID string
	userID     string
}

func NewStore() *Store {
	return &Store{
		rooms:     make(map[string]*domain.Room),
		codes:     make(map[string]string),
		members:   make(map[string][]*domain.Member),
		movies:    make(map[string][]*domain.RoomMovie),
		votes:     make(map[string]map[string]domain.MovieVote),
		questions: make(map[string]*domain.Question),
		answers:   make(map[answerKey]domain.Answer),
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *Store) CreateRoom(_ context.Context, room domain.Room, host domain.Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.codes[room.Code]; taken {
		return domain.Errorf(domain.KindConflict, "room code %s taken", room.Code)
	}
	if _, exists := s.rooms[room.ID]; exists {
		return domain.Errorf(domain.KindConflict, "room %s exists", room.ID)
	}
	r := room
	s.rooms[room.ID] = &r
	s.codes[room.Code] = room.ID
	h := host
	h.Seq = s.nextSeq()
	s.members[room.ID] = append(s.members[room.ID], &h)
	return nil
}

func (s *Store) GetRoom(_ context.Context, roomID string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.Room{}, domain.NotFound("room", roomID)
	}
	return *room, nil
}

func (s *Store) GetRoomByCode(_ context.Context, code string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return domain.Room{}, domain.NotFound("room code", code)
	}
	return *s.rooms[id], nil
}

func (s *Store) TransitionRoom(_ context.Context, roomID string, from, to domain.RoomStatus, mode domain.ScoringMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.NotFound("room", roomID)
	}
	if room.Status != from || !from.CanTransition(to) {
		return domain.InvalidTransition("moving to "+string(to), room.Status)
	}
	room.Status = to
	room.ScoringMode = mode
	return nil
}

func (s *Store) ResetRoom(_ context.Context, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return domain.NotFound("room", roomID)
	}
	if room.Status != domain.StatusFinished {
		return domain.InvalidTransition("resetting to voting", room.Status)
	}
	for id, q := range s.questions {
		if q.RoomID != roomID {
			continue
		}
		delete(s.questions, id)
		for k := range s.answers {
			if k.questionID == id {
				delete(s.answers, k)
			}
		}
	}
	for _, m := range s.movies[roomID] {
		m.Accepted = false
		delete(s.votes, m.ID)
	}
	room.Status = domain.StatusVoting
	room.ScoringMode = ""
	return nil
}

func (s *Store) AddMember(_ context.Context, member domain.Member) (domain.Member, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[member.RoomID]; !ok {
		return domain.Member{}, false, domain.NotFound("room", member.RoomID)
	}
	for _, m := range s.members[member.RoomID] {
		if m.UserID == member.UserID {
			return *m, false, nil
		}
	}
	m := member
	m.Seq = s.nextSeq()
	s.members[member.RoomID] = append(s.members[member.RoomID], &m)
	return m, true, nil
}

func (s *Store) GetMember(_ context.Context, roomID, userID string) (domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[roomID] {
		if m.UserID == userID {
			return *m, nil
		}
	}
	return domain.Member{}, domain.NotFound("member", userID)
}

func (s *Store) ListMembers(_ context.Context, roomID string) ([]domain.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Member, 0, len(s.members[roomID]))
	for _, m := range s.members[roomID] {
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (s *Store) ProposeMovie(_ context.Context, movie domain.RoomMovie) (domain.RoomMovie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[movie.RoomID]; !ok {
		return domain.RoomMovie{}, domain.NotFound("room", movie.RoomID)
	}
	m := movie
	m.Accepted = false
	s.movies[movie.RoomID] = append(s.movies[movie.RoomID], &m)
	return m, nil
}

func (s *Store) findMovie(roomID, roomMovieID string) *domain.RoomMovie {
	for _, m := range s.movies[roomID] {
		if m.ID == roomMovieID {
			return m
		}
	}
	return nil
}

func (s *Store) UpsertMovieVote(_ context.Context, roomID string, vote domain.MovieVote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findMovie(roomID, vote.RoomMovieID) == nil {
		return domain.NotFound("movie", vote.RoomMovieID)
	}
	if s.votes[vote.RoomMovieID] == nil {
		s.votes[vote.RoomMovieID] = make(map[string]domain.MovieVote)
	}
	s.votes[vote.RoomMovieID][vote.UserID] = vote
	return nil
}

func (s *Store) AcceptMovie(_ context.Context, roomID, roomMovieID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findMovie(roomID, roomMovieID) == nil {
		return domain.NotFound("movie", roomMovieID)
	}
	for _, m := range s.movies[roomID] {
		m.Accepted = m.ID == roomMovieID
	}
	return nil
}

func (s *Store) ListMovies(_ context.Context, roomID string) ([]domain.RoomMovie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.RoomMovie, 0, len(s.movies[roomID]))
	for i := len(s.movies[roomID]) - 1; i >= 0; i-- {
		m := *s.movies[roomID][i]
		for _, v := range s.votes[m.ID] {
			if v.Vote {
				m.Upvotes++
			} else {
				m.Downvotes++
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) HasAcceptedMovie(_ context.Context, roomID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.movies[roomID] {
		if m.Accepted {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) roomQuestionsLocked(roomID string) []*domain.Question {
	out := make([]*domain.Question, 0)
	for _, q := range s.questions {
		if q.RoomID == roomID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Published != b.Published {
			return a.Published
		}
		if a.Published && a.QuestionOrder != b.QuestionOrder {
			return a.QuestionOrder < b.QuestionOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return out
}

func (s *Store) CreateQuestion(_ context.Context, question domain.Question, limit int) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[question.RoomID]; !ok {
		return domain.Question{}, domain.NotFound("room", question.RoomID)
	}
	existing := s.roomQuestionsLocked(question.RoomID)
	if len(existing) > 0 && existing[0].Published {
		return domain.Question{}, domain.Errorf(domain.KindAlreadyPublished, "questions were already published")
	}
	if len(existing) >= limit {
		return domain.Question{}, domain.LimitExceeded("questions", limit, len(existing))
	}
	q := question
	q.Options = append([]string(nil), question.Options...)
	q.Published = false
	q.PublishedAt = nil
	q.Seq = s.nextSeq()
	s.questions[q.ID] = &q
	return q, nil
}

func (s *Store) DeleteDraftQuestion(_ context.Context, roomID, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok || q.RoomID != roomID {
		return domain.NotFound("question", questionID)
	}
	if q.Published {
		return domain.Errorf(domain.KindAlreadyPublished, "published questions cannot be deleted")
	}
	delete(s.questions, questionID)
	return nil
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.NotFound("question", questionID)
	}
	return copyQuestion(q), nil
}

func (s *Store) ListQuestions(_ context.Context, roomID string) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := s.roomQuestionsLocked(roomID)
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		out[i] = copyQuestion(q)
	}
	return out, nil
}

func (s *Store) PublishQuestions(_ context.Context, roomID string, at time.Time) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.NotFound("room", roomID)
	}
	if room.Status != domain.StatusQuiz {
		return nil, domain.InvalidTransition("publishing questions", room.Status)
	}
	qs := s.roomQuestionsLocked(roomID)
	if len(qs) == 0 {
		return nil, domain.Errorf(domain.KindNotReady, "no draft questions to publish")
	}
	if qs[0].Published {
		return nil, domain.Errorf(domain.KindAlreadyPublished, "questions were already published")
	}
	out := make([]domain.Question, len(qs))
	for i, q := range qs {
		stamp := at
		q.Published = true
		q.QuestionOrder = i
		q.PublishedAt = &stamp
		out[i] = copyQuestion(q)
	}
	return out, nil
}

func (s *Store) InsertAnswer(_ context.Context, answer domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := answerKey{answer.QuestionID, answer.UserID}
	if _, exists := s.answers[k]; exists {
		return domain.Errorf(domain.KindAlreadyAnswered, "question already answered")
	}
	q, ok := s.questions[answer.QuestionID]
	if !ok {
		return domain.NotFound("question", answer.QuestionID)
	}
	if room := s.rooms[q.RoomID]; !q.Published || room == nil || room.Status != domain.StatusQuiz {
		return domain.Errorf(domain.KindQuizNotActive, "question is not open for answers")
	}
	s.answers[k] = answer
	return nil
}

func (s *Store) GetAnswer(_ context.Context, questionID, userID string) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[answerKey{questionID, userID}]
	if !ok {
		return domain.Answer{}, domain.NotFound("answer", questionID+"/"+userID)
	}
	return a, nil
}

func (s *Store) ListAnswers(_ context.Context, roomID string) ([]domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Answer, 0)
	for _, a := range s.answers {
		if q, ok := s.questions[a.QuestionID]; ok && q.RoomID == roomID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AnsweredAt.Equal(out[j].AnsweredAt) {
			return out[i].AnsweredAt.Before(out[j].AnsweredAt)
		}
		if out[i].QuestionID != out[j].QuestionID {
			return out[i].QuestionID < out[j].QuestionID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func copyQuestion(q *domain.Question) domain.Question {
	out := *q
	out.Options = append([]string(nil), q.Options...)
	if q.PublishedAt != nil {
		at := *q.PublishedAt
		out.PublishedAt = &at
	}
	return out
}
