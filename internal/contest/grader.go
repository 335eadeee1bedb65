package contest

import (
	"fmt"

	"github.com/careerbee/quizrank/internal/model"
	"github.com/careerbee/quizrank/pkg/common"
)

// grade compares a submission against the competition's problem set.
// Pure and side-effect free: persistence happens only after grading succeeds.
// An answer referencing an unknown problem id is fatal, never skipped.
func grade(problems []model.Problem, answers []model.Answer) ([]model.ProblemGrade, int, error) {
	byID := make(map[int64]model.Problem, len(problems))
	for _, p := range problems {
		byID[p.ID] = p
	}

	grades := make([]model.ProblemGrade, 0, len(answers))
	solved := 0
	for _, a := range answers {
		p, ok := byID[a.ProblemID]
		if !ok {
			return nil, 0, fmt.Errorf("%w: unknown problem id %d", common.ErrInvalidInput, a.ProblemID)
		}
		correct := a.ChosenChoiceIndex == p.CorrectChoiceIndex
		if correct {
			solved++
		}
		grades = append(grades, model.ProblemGrade{
			ProblemID:          p.ID,
			IsCorrect:          correct,
			CorrectChoiceIndex: p.CorrectChoiceIndex,
			Explanation:        p.Explanation,
		})
	}
	return grades, solved, nil
}
