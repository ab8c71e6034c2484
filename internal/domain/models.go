package domain

import (
	"strings"
	"time"
)

const (
	// MaxQuestionsPerRoom caps how many questions a room can hold.
	MaxQuestionsPerRoom = 15
	MinOptions          = 2
	MaxOptions          = 6
	MinDurationSeconds  = 5
	MaxDurationSeconds  = 60
	// DefaultDurationSeconds is applied when a draft leaves the duration empty.
	DefaultDurationSeconds = 20
	// RoomCodeLength is the length of the shareable room code.
	RoomCodeLength = 6
)

// ScoringMode names the strategy a room was scored with.
type ScoringMode string

const (
	ScoringFixed        ScoringMode = "fixed"
	ScoringTimeWeighted ScoringMode = "time_weighted"
)

// Valid reports whether m is a known scoring mode.
func (m ScoringMode) Valid() bool {
	return m == ScoringFixed || m == ScoringTimeWeighted
}

// Room is a single movie-night session.
type Room struct {
	ID          string      `json:"id"`
	Code        string      `json:"code"`
	HostID      string      `json:"hostId"`
	Status      RoomStatus  `json:"status"`
	ScoringMode ScoringMode `json:"scoringMode,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// IsHost reports whether userID is the room's host.
func (r Room) IsHost(userID string) bool {
	return r.HostID != "" && r.HostID == userID
}

// NormalizeCode canonicalizes a user-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Member is a user's presence in a room. Seq orders members by join.
type Member struct {
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
	Seq         int64     `json:"-"`
}

// QuestionDraft is the author-supplied part of a question, manual or imported.
type QuestionDraft struct {
	Text            string   `json:"text"`
	Options         []string `json:"options"`
	CorrectIndex    int      `json:"correctIndex"`
	DurationSeconds int      `json:"durationSeconds"`
}

// Question is a multiple-choice quiz question scoped to one room.
type Question struct {
	ID              string     `json:"id"`
	RoomID          string     `json:"roomId"`
	Text            string     `json:"text"`
	Options         []string   `json:"options"`
	CorrectIndex    int        `json:"correctIndex"`
	DurationSeconds int        `json:"durationSeconds"`
	Published       bool       `json:"published"`
	QuestionOrder   int        `json:"questionOrder"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	Seq             int64      `json:"-"`
}

// State reports the question's position in its draft/published lifecycle.
func (q Question) State() QuestionState {
	if q.Published {
		return QuestionPublished
	}
	return QuestionDraftState
}

// Answer is one entry in the append-only answer log.
type Answer struct {
	QuestionID  string    `json:"questionId"`
	RoomID      string    `json:"roomId"`
	UserID      string    `json:"userId"`
	OptionIndex int       `json:"optionIndex"`
	Correct     bool      `json:"correct"`
	TimeLeft    int       `json:"timeLeft"`
	Score       int       `json:"score"`
	AnsweredAt  time.Time `json:"answeredAt"`
}

// AnswerReceipt is returned to the player after a successful submission.
type AnswerReceipt struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Score      int    `json:"score"`
}

// PlayerScore is a derived leaderboard row.
type PlayerScore struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"userId"`
	DisplayName    string `json:"displayName"`
	CorrectAnswers int    `json:"correctAnswers"`
	TotalQuestions int    `json:"totalQuestions"`
	Score          int    `json:"score"`
}

// RoomResults is the authoritative leaderboard for a room.
type RoomResults struct {
	RoomID         string        `json:"roomId"`
	Status         RoomStatus    `json:"status"`
	ScoringMode    ScoringMode   `json:"scoringMode"`
	TotalQuestions int           `json:"totalQuestions"`
	Scores         []PlayerScore `json:"scores"`
	ComputedAt     time.Time     `json:"computedAt"`
}

// RoomMovie is a movie proposed in a room.
type RoomMovie struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	MovieID    string    `json:"movieId"`
	Title      string    `json:"title"`
	ProposedBy string    `json:"proposedBy"`
	Accepted   bool      `json:"accepted"`
	CreatedAt  time.Time `json:"createdAt"`
	Upvotes    int       `json:"upvotes"`
	Downvotes  int       `json:"downvotes"`
}

// MovieVote is a member's up/down vote on a proposal.
type MovieVote struct {
	RoomMovieID string    `json:"roomMovieId"`
	UserID      string    `json:"userId"`
	Vote        bool      `json:"vote"`
	VotedAt     time.Time `json:"votedAt"`
}
