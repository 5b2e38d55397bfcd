package domain

import "time"

// Question is a single multiple-choice question. Questions carry no IDs;
// within an attempt they are addressed by position in the sampled set.
type Question struct {
	Text          string   `json:"text"`
	Image         string   `json:"image,omitempty"` // optional diagram URL
	Options       []string `json:"options"`
	CorrectOption int      `json:"correctOption"`
	Explanation   string   `json:"explanation,omitempty"`
}

// QuizSet is the question set served for one attempt: a randomly sampled,
// size-capped subset of a subject's bank. Owned by exactly one session.
type QuizSet struct {
	Subject   string     `json:"subject"`
	Questions []Question `json:"questions"`
}

// SubjectBank is the full stored bank for a subject, from which per-attempt
// quiz sets are sampled.
type SubjectBank struct {
	Subject     string     `json:"subject"`
	Icon        string     `json:"icon,omitempty"`
	Description string     `json:"description,omitempty"`
	Color       string     `json:"color,omitempty"`
	Questions   []Question `json:"questions"`
}

// SubjectInfo is the listing view of a bank, without questions.
type SubjectInfo struct {
	Subject     string `json:"subject"`
	Icon        string `json:"icon,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// AnswerRecord is the committed outcome for one question position.
// Selected is nil when the question was skipped; a skip counts as incorrect.
// Re-answering a position overwrites the prior record.
type AnswerRecord struct {
	Question  string `json:"question"` // denormalized text for audit
	Selected  *int   `json:"selected"`
	Correct   int    `json:"correct"`
	IsCorrect bool   `json:"isCorrect"`
}

// Snapshot is the persisted resume point for an interrupted attempt.
// Each user has at most one; it is overwritten on every checkpoint and
// cleared on successful submission.
type Snapshot struct {
	Subject       string               `json:"subject"`
	Position      int                  `json:"position"`
	Answers       map[int]AnswerRecord `json:"answers"`
	Flagged       []int                `json:"flagged"`
	RemainingTime int                  `json:"remainingTime"` // seconds
	LastUpdated   time.Time            `json:"lastUpdated"`
}

// SubmitReview is shown to the user before final submission.
type SubmitReview struct {
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Total      int `json:"total"`
}

// ScoreSummary is the outcome of a finalized attempt.
type ScoreSummary struct {
	Subject string `json:"subject"`
	Score   int    `json:"score"`
	Total   int    `json:"total"`
}

// User is a student identified by matriculation number.
type User struct {
	MatricNumber string `json:"matricNumber"`
	Name         string `json:"name"`
	Department   string `json:"department"`
	Level        string `json:"level,omitempty"`
}

// Attempt is one completed run through a quiz set.
type Attempt struct {
	Subject        string    `json:"subject"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	AttemptDate    time.Time `json:"attemptDate"`
}

// LeaderboardEntry aggregates a student's scores across all attempts.
type LeaderboardEntry struct {
	Name         string `json:"name"`
	MatricNumber string `json:"matricNumber"`
	Department   string `json:"department"`
	Level        string `json:"level"`
	Score        int    `json:"score"`
	Avatar       string `json:"avatar,omitempty"`
}

// SubjectPerformance groups a student's attempts for one subject.
type SubjectPerformance struct {
	Subject  string  `json:"subject"`
	Attempts []int   `json:"attempts"`
	Average  float64 `json:"average"`
}

// PerformanceReport is the per-student performance view.
type PerformanceReport struct {
	MatricNumber string               `json:"matricNumber"`
	Name         string               `json:"name"`
	Department   string               `json:"department"`
	Performance  []SubjectPerformance `json:"performance"`
}
