package scoring

import (
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-quiz/internal/model"
)

func question(text, correct string) model.Question {
	return model.Question{
		ID:            uuid.New(),
		Question:      text,
		Options:       []string{correct, "x", "y", "z"},
		CorrectAnswer: correct,
	}
}

func TestScoreCapitalAndArithmetic(t *testing.T) {
	q1 := question("Capital of France?", "Paris")
	q2 := question("Six times seven?", "42")
	bank := []model.Question{q1, q2}

	out := Score(map[string]string{
		q1.ID.String(): "Paris",
		q2.ID.String(): "41",
	}, bank)

	if out.Correct != 1 || out.Total != 2 {
		t.Fatalf("got %d/%d, want 1/2", out.Correct, out.Total)
	}
	if got := out.Percentage.StringFixed(2); got != "50.00" {
		t.Fatalf("percentage = %s, want 50.00", got)
	}
	if !out.Details[0].IsCorrect {
		t.Fatalf("first detail should be correct")
	}
	if out.Details[1].IsCorrect {
		t.Fatalf("second detail should be incorrect")
	}
	if out.Details[1].UserAnswer != "41" || out.Details[1].CorrectAnswer != "42" {
		t.Fatalf("unexpected detail: %+v", out.Details[1])
	}
}

func TestScoreWithoutAnswers(t *testing.T) {
	bank := []model.Question{question("a", "1"), question("b", "2"), question("c", "3")}

	for _, answers := range []map[string]string{nil, {}} {
		out := Score(answers, bank)
		if out.Correct != 0 || !out.Percentage.IsZero() {
			t.Fatalf("got %d correct, %s%%; want 0, 0", out.Correct, out.Percentage)
		}
		for i, d := range out.Details {
			if d.UserAnswer != model.NotAnswered || d.IsCorrect {
				t.Fatalf("detail %d = %+v, want not answered and incorrect", i, d)
			}
		}
	}
}

func TestScoreBlankAnswerIsNotAnswered(t *testing.T) {
	q := question("q", "")
	q.CorrectAnswer = ""
	out := Score(map[string]string{q.ID.String(): ""}, []model.Question{q})
	if out.Correct != 0 || out.Details[0].UserAnswer != model.NotAnswered {
		t.Fatalf("blank answer must not score: %+v", out)
	}
}

func TestScoreIsCaseSensitive(t *testing.T) {
	q := question("Capital of France?", "Paris")
	out := Score(map[string]string{q.ID.String(): "paris"}, []model.Question{q})
	if out.Correct != 0 {
		t.Fatalf("case-insensitive match should not count")
	}
}

func TestScoreKeepsBankOrder(t *testing.T) {
	bank := []model.Question{question("first", "a"), question("second", "b"), question("third", "c")}
	answers := map[string]string{
		bank[2].ID.String(): "c",
		bank[0].ID.String(): "a",
	}

	out := Score(answers, bank)

	for i, d := range out.Details {
		if d.Question != bank[i].Question {
			t.Fatalf("detail %d is %q, want %q", i, d.Question, bank[i].Question)
		}
	}
}

func TestScoreCountsDuplicatesSeparately(t *testing.T) {
	q := question("dup", "a")
	out := Score(map[string]string{q.ID.String(): "a"}, []model.Question{q, q})
	if out.Total != 2 || out.Correct != 2 || len(out.Details) != 2 {
		t.Fatalf("duplicates should be graded twice: %+v", out)
	}
}

func TestScoreIsIdempotent(t *testing.T) {
	bank := []model.Question{question("a", "1"), question("b", "2"), question("c", "3")}
	answers := map[string]string{bank[0].ID.String(): "1", bank[1].ID.String(): "nope"}

	first := Score(answers, bank)
	second := Score(answers, bank)

	if first.Correct != second.Correct || !first.Percentage.Equal(second.Percentage) {
		t.Fatalf("scores differ: %+v vs %+v", first, second)
	}
	if !reflect.DeepEqual(first.Details, second.Details) {
		t.Fatalf("details differ")
	}
}

func TestScoreEmptyBank(t *testing.T) {
	out := Score(map[string]string{"x": "y"}, nil)
	if out.Total != 0 || !out.Percentage.IsZero() || len(out.Details) != 0 {
		t.Fatalf("empty bank: %+v", out)
	}
}

func TestPercentageRounding(t *testing.T) {
	tests := []struct {
		correct, total int
		want           string
	}{
		{1, 3, "33.33"},
		{2, 3, "66.67"},
		{3, 3, "100.00"},
		{0, 7, "0.00"},
	}
	for _, tt := range tests {
		if got := Percentage(tt.correct, tt.total).StringFixed(2); got != tt.want {
			t.Errorf("Percentage(%d, %d) = %s, want %s", tt.correct, tt.total, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0h 0m 0s"},
		{59, "0h 0m 59s"},
		{3661, "1h 1m 1s"},
		{7200, "2h 0m 0s"},
		{-5, "0h 0m 0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.seconds); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
