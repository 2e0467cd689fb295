package services

import (
	"errors"

	"github.com/closedroom/portal/internal/models"
)

var (
	// ErrAttemptCompleted is returned when answering after the last question.
	ErrAttemptCompleted = errors.New("attempt already completed")
	// ErrNoQuestions flags a survey with an empty question list.
	ErrNoQuestions = errors.New("survey has no questions")
)

// SurveyAttempt drives one pass through a survey. Answers are final once
// submitted: there is no backward navigation, only Restart. Attempts are
// session-scoped and never persisted.
type SurveyAttempt struct {
	survey    *models.Survey
	code      InstrumentCode
	index     int
	scores    []int
	completed bool
}

// NewSurveyAttempt creates an attempt for the survey, resolving the
// instrument code from the title once up front.
func NewSurveyAttempt(sv *models.Survey) *SurveyAttempt {
	return &SurveyAttempt{
		survey: sv,
		code:   ResolveInstrument(sv.Title),
		scores: make([]int, len(sv.Questions)),
	}
}

// Code returns the instrument resolved at construction.
func (a *SurveyAttempt) Code() InstrumentCode { return a.code }

// QuestionIndex is the 0-based index of the next unanswered question.
func (a *SurveyAttempt) QuestionIndex() int { return a.index }

// Completed reports whether the last question has been answered.
func (a *SurveyAttempt) Completed() bool { return a.completed }

// Answer records the chosen option for the current question and advances.
// Answering the last question transitions the attempt to completed.
func (a *SurveyAttempt) Answer(option string) error {
	if len(a.survey.Questions) == 0 {
		return ErrNoQuestions
	}
	if a.completed {
		return ErrAttemptCompleted
	}
	a.scores[a.index] = OptionScore(a.code, a.index, option)
	if a.index < len(a.survey.Questions)-1 {
		a.index++
		return nil
	}
	a.completed = true
	return nil
}

// Restart clears all recorded answers and returns to the first question.
func (a *SurveyAttempt) Restart() {
	a.index = 0
	a.completed = false
	a.scores = make([]int, len(a.survey.Questions))
}

// PerQuestionScores returns a copy of the recorded point values. Entries
// past QuestionIndex are zero until answered.
func (a *SurveyAttempt) PerQuestionScores() []int {
	out := make([]int, len(a.scores))
	copy(out, a.scores)
	return out
}

// Score is the cumulative score over the answers recorded so far.
func (a *SurveyAttempt) Score() float64 {
	return CumulativeScore(a.code, a.scores)
}

// MaxScore is the ceiling for this attempt's instrument.
func (a *SurveyAttempt) MaxScore() float64 {
	return MaxScore(a.code, len(a.survey.Questions))
}

// Result resolves the qualitative bucket for the cumulative score. The
// boolean is false when no declared bucket contains the score; render
// UndeterminedResult in that case rather than failing.
func (a *SurveyAttempt) Result() (models.SurveyResult, bool) {
	return ResolveResult(a.survey.Results, a.Score())
}

// ResultText is the user-facing result line: "Label: Description", or the
// undetermined fallback.
func (a *SurveyAttempt) ResultText() string {
	r, ok := a.Result()
	if !ok {
		return UndeterminedResult
	}
	return r.Label + ": " + r.Description
}
