package services

import (
	"errors"
	"testing"

	"github.com/closedroom/portal/internal/models"
)

func sasiSurvey(questions int) *models.Survey {
	sv := &models.Survey{
		ID:    "s1",
		Title: "SASI донтолтын судалгаа",
		Results: []models.SurveyResult{
			{Label: "Бага", Description: "Эрсдэл бага", MinScore: 18, MaxScore: 41},
			{Label: "Дунд", Description: "Эрсдэл дунд", MinScore: 42, MaxScore: 65},
			{Label: "Өндөр", Description: "Эрсдэл өндөр", MinScore: 66, MaxScore: 90},
		},
	}
	opts := []string{"A. Бүрэн үнэн", "B. Хэсэгчлэн үнэн", "C. Дунд зэрэг", "D. Хэсэгчлэн буруу", "E. Бүрэн буруу"}
	for i := 0; i < questions; i++ {
		sv.Questions = append(sv.Questions, models.SurveyQuestion{Text: "q", Options: opts})
	}
	return sv
}

func TestAttemptWalkthrough(t *testing.T) {
	a := NewSurveyAttempt(sasiSurvey(18))
	if a.Code() != InstrumentSASI {
		t.Fatalf("resolved %q, want SASI", a.Code())
	}
	for i := 0; i < 18; i++ {
		if a.Completed() {
			t.Fatalf("completed early at question %d", i)
		}
		if a.QuestionIndex() != i {
			t.Fatalf("at question %d, index reports %d", i, a.QuestionIndex())
		}
		if err := a.Answer("C. Дунд зэрэг"); err != nil {
			t.Fatalf("answer %d: %v", i, err)
		}
	}
	if !a.Completed() {
		t.Fatal("attempt not completed after last answer")
	}
	if got := a.Score(); got != 54 {
		t.Fatalf("score %v, want 54", got)
	}
	if got := a.MaxScore(); got != 90 {
		t.Fatalf("max %v, want 90", got)
	}
	r, ok := a.Result()
	if !ok || r.Label != "Дунд" {
		t.Fatalf("result %q ok=%v, want Дунд", r.Label, ok)
	}
	if got := a.ResultText(); got != "Дунд: Эрсдэл дунд" {
		t.Fatalf("result text %q", got)
	}
}

func TestAttemptAnswerAfterCompletion(t *testing.T) {
	a := NewSurveyAttempt(sasiSurvey(1))
	if err := a.Answer("A. Бүрэн үнэн"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if err := a.Answer("A. Бүрэн үнэн"); !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("got %v, want ErrAttemptCompleted", err)
	}
}

func TestAttemptEmptySurvey(t *testing.T) {
	a := NewSurveyAttempt(sasiSurvey(0))
	if err := a.Answer("A. Бүрэн үнэн"); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("got %v, want ErrNoQuestions", err)
	}
}

func TestAttemptRestart(t *testing.T) {
	a := NewSurveyAttempt(sasiSurvey(3))
	for i := 0; i < 3; i++ {
		if err := a.Answer("A. Бүрэн үнэн"); err != nil {
			t.Fatalf("answer: %v", err)
		}
	}
	a.Restart()
	if a.QuestionIndex() != 0 || a.Completed() {
		t.Fatalf("restart left index=%d completed=%v", a.QuestionIndex(), a.Completed())
	}
	if got := a.Score(); got != 0 {
		t.Fatalf("restart left score %v", got)
	}
	for _, s := range a.PerQuestionScores() {
		if s != 0 {
			t.Fatal("restart left a recorded answer")
		}
	}
}

// SASI question 1 is reverse keyed; the same option scores differently by
// position.
func TestAttemptReverseKeyedQuestion(t *testing.T) {
	a := NewSurveyAttempt(sasiSurvey(2))
	if err := a.Answer("A. Бүрэн үнэн"); err != nil {
		t.Fatalf("answer 0: %v", err)
	}
	if err := a.Answer("A. Бүрэн үнэн"); err != nil {
		t.Fatalf("answer 1: %v", err)
	}
	got := a.PerQuestionScores()
	if got[0] != 5 || got[1] != 1 {
		t.Fatalf("scores %v, want [5 1]", got)
	}
}

func TestAttemptUnknownTitleScoresZero(t *testing.T) {
	sv := sasiSurvey(2)
	sv.Title = "Энгийн асуумж"
	a := NewSurveyAttempt(sv)
	if a.Code() != InstrumentUnknown {
		t.Fatalf("resolved %q, want unknown", a.Code())
	}
	_ = a.Answer("A. Бүрэн үнэн")
	_ = a.Answer("B. Хэсэгчлэн үнэн")
	if got := a.Score(); got != 0 {
		t.Fatalf("score %v, want 0", got)
	}
}

func TestAttemptResultFallback(t *testing.T) {
	sv := sasiSurvey(1)
	sv.Results = nil
	a := NewSurveyAttempt(sv)
	_ = a.Answer("C. Дунд зэрэг")
	if got := a.ResultText(); got != UndeterminedResult {
		t.Fatalf("got %q, want undetermined fallback", got)
	}
}
