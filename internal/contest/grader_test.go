package contest

import (
	"errors"
	"testing"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

func sampleProblems() []model.Problem {
	return []model.Problem{
		{ID: 1, CompetitionID: 7, CorrectChoiceIndex: 2, Explanation: "two"},
		{ID: 2, CompetitionID: 7, CorrectChoiceIndex: 0, Explanation: "zero"},
		{ID: 3, CompetitionID: 7, CorrectChoiceIndex: 3, Explanation: "three"},
	}
}

func TestGradeCountsCorrectAnswers(t *testing.T) {
	answers := []model.Answer{
		{ProblemID: 1, ChosenChoiceIndex: 2},
		{ProblemID: 2, ChosenChoiceIndex: 1},
		{ProblemID: 3, ChosenChoiceIndex: 3},
	}

	grades, solved, err := grade(sampleProblems(), answers)
	if err != nil {
		t.Fatalf("grade returned error: %v", err)
	}
	if solved != 2 {
		t.Fatalf("solved = %d, want 2", solved)
	}
	if len(grades) != 3 {
		t.Fatalf("len(grades) = %d, want 3", len(grades))
	}
	if !grades[0].IsCorrect || grades[1].IsCorrect || !grades[2].IsCorrect {
		t.Fatalf("per-problem correctness wrong: %+v", grades)
	}
	if grades[1].CorrectChoiceIndex != 0 || grades[1].Explanation != "zero" {
		t.Fatalf("feedback must carry correct choice and explanation: %+v", grades[1])
	}
}

func TestGradeIsDeterministic(t *testing.T) {
	answers := []model.Answer{
		{ProblemID: 1, ChosenChoiceIndex: 2},
		{ProblemID: 2, ChosenChoiceIndex: 0},
	}

	first, firstSolved, err := grade(sampleProblems(), answers)
	if err != nil {
		t.Fatalf("grade returned error: %v", err)
	}
	for i := 0; i < 5; i++ {
		grades, solved, err := grade(sampleProblems(), answers)
		if err != nil {
			t.Fatalf("grade returned error: %v", err)
		}
		if solved != firstSolved {
			t.Fatalf("solved varied across runs: %d vs %d", solved, firstSolved)
		}
		for j := range grades {
			if grades[j] != first[j] {
				t.Fatalf("grade %d varied across runs: %+v vs %+v", j, grades[j], first[j])
			}
		}
	}
}

func TestGradeUnknownProblemIsFatal(t *testing.T) {
	answers := []model.Answer{
		{ProblemID: 1, ChosenChoiceIndex: 2},
		{ProblemID: 99, ChosenChoiceIndex: 0},
	}

	_, _, err := grade(sampleProblems(), answers)
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("unknown problem id must be ErrInvalidInput, got %v", err)
	}
}
