package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/tq-random/tq-random/internal/remote"
)

// CreateQuestion adds a question with its choices to the test. When
// correct is set it names the index of the correct choice. A failed
// choice or answer insert removes the question again.
func (s *Service) CreateQuestion(ctx context.Context, userID string, testID int64, text string, choices []string, correct *int) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, invalid("question text is required")
	}
	if err := checkChoices(choices); err != nil {
		return Question{}, err
	}
	if correct != nil && (*correct < 0 || *correct >= len(choices)) {
		return Question{}, invalid("correct index %d out of range", *correct)
	}
	if _, err := s.ownTest(ctx, userID, testID); err != nil {
		return Question{}, err
	}

	row, err := s.store.InsertRow(ctx, remote.TableQuestions, remote.Fields{"test_id": testID, "text": text})
	if err != nil {
		return Question{}, fmt.Errorf("create question: %w", err)
	}
	q := questionFromRow(row)

	for i, c := range choices {
		cr, err := s.store.InsertRow(ctx, remote.TableAnswerChoices, remote.Fields{"question_id": q.ID, "text": strings.TrimSpace(c)})
		if err != nil {
			s.rollback(ctx, q.ID)
			return Question{}, fmt.Errorf("create question: choice %d: %w", i, err)
		}
		q.Choices = append(q.Choices, choiceFromRow(cr))
	}

	if correct != nil {
		id := q.Choices[*correct].ID
		if _, err := s.store.InsertRow(ctx, remote.TableAnswers, remote.Fields{"question_id": q.ID, "answer_choice_id": id}); err != nil {
			s.rollback(ctx, q.ID)
			return Question{}, fmt.Errorf("create question: answer: %w", err)
		}
		q.CorrectChoiceID = &id
	}
	return q, nil
}

// ListQuestions returns the test's questions in id order, each with its
// choices and correct choice.
func (s *Service) ListQuestions(ctx context.Context, userID string, testID int64) ([]Question, error) {
	if _, err := s.ownTest(ctx, userID, testID); err != nil {
		return nil, err
	}
	rows, err := s.store.QueryRows(ctx, remote.TableQuestions, remote.Query{
		Filters: []remote.Filter{remote.Eq("test_id", testID)},
		Order:   remote.Order{Column: "id", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	out := make([]Question, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := rowIDs(rows)
	byID := make(map[int64]int, len(rows))
	for i, r := range rows {
		out = append(out, questionFromRow(r))
		byID[out[i].ID] = i
	}

	crows, err := s.store.QueryRows(ctx, remote.TableAnswerChoices, remote.Query{
		Filters: []remote.Filter{remote.In("question_id", ids...)},
		Order:   remote.Order{Column: "id", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	for _, r := range crows {
		c := choiceFromRow(r)
		if i, ok := byID[c.QuestionID]; ok {
			out[i].Choices = append(out[i].Choices, c)
		}
	}

	arows, err := s.store.QueryRows(ctx, remote.TableAnswers, remote.Query{
		Filters: []remote.Filter{remote.In("question_id", ids...)},
	})
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	for _, r := range arows {
		a := answerFromRow(r)
		if i, ok := byID[a.QuestionID]; ok {
			id := a.ChoiceID
			out[i].CorrectChoiceID = &id
		}
	}
	return out, nil
}

func (s *Service) GetQuestion(ctx context.Context, userID string, questionID int64) (Question, error) {
	row, err := s.ownQuestion(ctx, userID, questionID)
	if err != nil {
		return Question{}, err
	}
	return s.hydrate(ctx, questionFromRow(row))
}

// UpdateQuestion changes the text and reconciles the choices against the
// stored ones.
func (s *Service) UpdateQuestion(ctx context.Context, userID string, questionID int64, text string, choices []string) (Question, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Question{}, invalid("question text is required")
	}
	if err := checkChoices(choices); err != nil {
		return Question{}, err
	}
	row, err := s.ownQuestion(ctx, userID, questionID)
	if err != nil {
		return Question{}, err
	}
	q := questionFromRow(row)
	if q.Text != text {
		row, err = s.store.UpdateRow(ctx, remote.TableQuestions, questionID, remote.Fields{"text": text})
		if err != nil {
			return Question{}, fmt.Errorf("update question %d: %w", questionID, err)
		}
		q = questionFromRow(row)
	}

	existing, err := s.choices(ctx, questionID)
	if err != nil {
		return Question{}, err
	}
	if err := s.applyChoices(ctx, questionID, PlanChoices(existing, choices)); err != nil {
		return Question{}, err
	}
	return s.hydrate(ctx, q)
}

// DeleteQuestion removes the answer, the choices and the question, in
// that order, stopping at the first failure.
func (s *Service) DeleteQuestion(ctx context.Context, userID string, questionID int64) error {
	if _, err := s.ownQuestion(ctx, userID, questionID); err != nil {
		return err
	}
	if err := s.store.DeleteRow(ctx, remote.TableAnswers, remote.Eq("question_id", questionID)); err != nil {
		return fmt.Errorf("delete question %d answer: %w", questionID, err)
	}
	if err := s.store.DeleteRow(ctx, remote.TableAnswerChoices, remote.Eq("question_id", questionID)); err != nil {
		return fmt.Errorf("delete question %d choices: %w", questionID, err)
	}
	if err := s.store.DeleteRow(ctx, remote.TableQuestions, remote.Eq("id", questionID)); err != nil {
		return fmt.Errorf("delete question %d: %w", questionID, err)
	}
	return nil
}

// SetCorrectAnswer marks choiceID as the correct choice of the question.
// The choice must belong to the question.
func (s *Service) SetCorrectAnswer(ctx context.Context, userID string, questionID, choiceID int64) (Answer, error) {
	if _, err := s.ownQuestion(ctx, userID, questionID); err != nil {
		return Answer{}, err
	}
	c, err := s.store.QueryOwnedRow(ctx, remote.TableAnswerChoices, remote.Eq("id", choiceID), remote.Eq("question_id", questionID))
	if err != nil {
		return Answer{}, fmt.Errorf("lookup choice %d: %w", choiceID, err)
	}
	if c == nil {
		return Answer{}, invalid("choice %d does not belong to question %d", choiceID, questionID)
	}

	cur, err := s.store.QueryOwnedRow(ctx, remote.TableAnswers, remote.Eq("question_id", questionID))
	if err != nil {
		return Answer{}, fmt.Errorf("lookup answer of question %d: %w", questionID, err)
	}
	var row remote.Row
	if cur == nil {
		row, err = s.store.InsertRow(ctx, remote.TableAnswers, remote.Fields{"question_id": questionID, "answer_choice_id": choiceID})
	} else {
		row, err = s.store.UpdateRow(ctx, remote.TableAnswers, cur.Int64("id"), remote.Fields{"answer_choice_id": choiceID})
	}
	if err != nil {
		return Answer{}, fmt.Errorf("set answer of question %d: %w", questionID, err)
	}
	return answerFromRow(row), nil
}

func (s *Service) ClearCorrectAnswer(ctx context.Context, userID string, questionID int64) error {
	if _, err := s.ownQuestion(ctx, userID, questionID); err != nil {
		return err
	}
	if err := s.store.DeleteRow(ctx, remote.TableAnswers, remote.Eq("question_id", questionID)); err != nil {
		return fmt.Errorf("clear answer of question %d: %w", questionID, err)
	}
	return nil
}

// choices returns the question's choices in id order.
func (s *Service) choices(ctx context.Context, questionID int64) ([]Choice, error) {
	rows, err := s.store.QueryRows(ctx, remote.TableAnswerChoices, remote.Query{
		Filters: []remote.Filter{remote.Eq("question_id", questionID)},
		Order:   remote.Order{Column: "id", Ascending: true},
	})
	if err != nil {
		return nil, fmt.Errorf("load choices of question %d: %w", questionID, err)
	}
	out := make([]Choice, 0, len(rows))
	for _, r := range rows {
		out = append(out, choiceFromRow(r))
	}
	return out, nil
}

func (s *Service) hydrate(ctx context.Context, q Question) (Question, error) {
	cs, err := s.choices(ctx, q.ID)
	if err != nil {
		return Question{}, err
	}
	q.Choices = cs
	a, err := s.store.QueryOwnedRow(ctx, remote.TableAnswers, remote.Eq("question_id", q.ID))
	if err != nil {
		return Question{}, fmt.Errorf("load answer of question %d: %w", q.ID, err)
	}
	if a != nil {
		id := a.Int64("answer_choice_id")
		q.CorrectChoiceID = &id
	}
	return q, nil
}
