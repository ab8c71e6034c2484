package domain

// RoomStatus is a room's position in the voting → quiz → finished cycle.
type RoomStatus string

const (
	StatusVoting   RoomStatus = "voting"
	StatusQuiz     RoomStatus = "quiz"
	StatusFinished RoomStatus = "finished"
)

var transitions = map[RoomStatus]RoomStatus{
	StatusVoting:   StatusQuiz,
	StatusQuiz:     StatusFinished,
	StatusFinished: StatusVoting, // host reset
}

// Valid reports whether s is a known status.
func (s RoomStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether s may move directly to next.
func (s RoomStatus) CanTransition(next RoomStatus) bool {
	to, ok := transitions[s]
	return ok && to == next
}

// QuestionState is a question's lifecycle position.
type QuestionState string

const (
	QuestionDraftState QuestionState = "draft"
	QuestionPublished  QuestionState = "published"
)

// Topic is an invalidation channel clients reload state from.
type Topic string

const (
	TopicRoomStatus    Topic = "room-status"
	TopicQuizQuestions Topic = "quiz-questions"
	TopicQuizResults   Topic = "quiz-results"
	TopicRoomMembers   Topic = "room-members"
	TopicRoomMovies    Topic = "room-movies"
)

// Topics lists every invalidation topic.
func Topics() []Topic {
	return []Topic{TopicRoomStatus, TopicQuizQuestions, TopicQuizResults, TopicRoomMembers, TopicRoomMovies}
}

// Valid reports whether t belongs to the closed topic set.
func (t Topic) Valid() bool {
	for _, known := range Topics() {
		if t == known {
			return true
		}
	}
	return false
}

// Invalidation tells subscribers of a room to reload one topic.
type Invalidation struct {
	RoomID string `json:"roomId"`
	Topic  Topic  `json:"topic"`
}
