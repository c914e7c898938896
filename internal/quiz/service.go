// Package quiz holds tests, questions and answer choices. Every operation
// takes the acting user id and checks that the user owns the test before
// touching it; the remote store is not trusted to do so.
package quiz

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tq-random/tq-random/internal/remote"
)

const rollbackTimeout = 5 * time.Second

type Service struct {
	store remote.Store
}

func NewService(store remote.Store) *Service { return &Service{store: store} }

/* ---------------- tests ---------------- */

func (s *Service) CreateTest(ctx context.Context, userID, title, description string) (Test, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Test{}, invalid("title is required")
	}
	fields := remote.Fields{"user_id": userID, "title": title, "description": nullable(description)}
	row, err := s.store.InsertRow(ctx, remote.TableTests, fields)
	if err != nil {
		return Test{}, fmt.Errorf("create test: %w", err)
	}
	return testFromRow(row), nil
}

func (s *Service) ListTests(ctx context.Context, userID string, p Page) ([]Test, error) {
	q, err := p.query(userID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.QueryRows(ctx, remote.TableTests, q)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	out := make([]Test, 0, len(rows))
	for _, r := range rows {
		out = append(out, testFromRow(r))
	}
	return out, nil
}

func (s *Service) GetTest(ctx context.Context, userID string, testID int64) (Test, error) {
	row, err := s.ownTest(ctx, userID, testID)
	if err != nil {
		return Test{}, err
	}
	return testFromRow(row), nil
}

func (s *Service) UpdateTest(ctx context.Context, userID string, testID int64, u TestUpdate) (Test, error) {
	row, err := s.ownTest(ctx, userID, testID)
	if err != nil {
		return Test{}, err
	}
	fields := remote.Fields{}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		if t == "" {
			return Test{}, invalid("title is required")
		}
		fields["title"] = t
	}
	if u.Description != nil {
		fields["description"] = nullable(*u.Description)
	}
	if len(fields) == 0 {
		return testFromRow(row), nil
	}
	row, err = s.store.UpdateRow(ctx, remote.TableTests, testID, fields)
	if err != nil {
		return Test{}, fmt.Errorf("update test %d: %w", testID, err)
	}
	return testFromRow(row), nil
}

// DeleteTest removes the test with its questions, choices and answers.
func (s *Service) DeleteTest(ctx context.Context, userID string, testID int64) error {
	if _, err := s.ownTest(ctx, userID, testID); err != nil {
		return err
	}
	rows, err := s.store.QueryRows(ctx, remote.TableQuestions, remote.Query{
		Filters: []remote.Filter{remote.Eq("test_id", testID)},
		Order:   remote.Order{Column: "id", Ascending: true},
	})
	if err != nil {
		return fmt.Errorf("delete test %d: %w", testID, err)
	}
	if ids := rowIDs(rows); len(ids) > 0 {
		if err := s.store.DeleteRow(ctx, remote.TableAnswers, remote.In("question_id", ids...)); err != nil {
			return fmt.Errorf("delete test %d answers: %w", testID, err)
		}
		if err := s.store.DeleteRow(ctx, remote.TableAnswerChoices, remote.In("question_id", ids...)); err != nil {
			return fmt.Errorf("delete test %d choices: %w", testID, err)
		}
		if err := s.store.DeleteRow(ctx, remote.TableQuestions, remote.Eq("test_id", testID)); err != nil {
			return fmt.Errorf("delete test %d questions: %w", testID, err)
		}
	}
	if err := s.store.DeleteRow(ctx, remote.TableTests, remote.Eq("id", testID), remote.Eq("user_id", userID)); err != nil {
		return fmt.Errorf("delete test %d: %w", testID, err)
	}
	return nil
}

/* ---------------- ownership ---------------- */

// ownTest returns the test row when userID owns it.
func (s *Service) ownTest(ctx context.Context, userID string, testID int64) (remote.Row, error) {
	row, err := s.store.QueryOwnedRow(ctx, remote.TableTests, remote.Eq("id", testID), remote.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("ownership check for test %d: %w", testID, err)
	}
	if row != nil {
		return row, nil
	}
	exists, err := s.store.QueryOwnedRow(ctx, remote.TableTests, remote.Eq("id", testID))
	if err != nil {
		return nil, fmt.Errorf("lookup test %d: %w", testID, err)
	}
	if exists == nil {
		return nil, fmt.Errorf("test %d: %w", testID, ErrNotFound)
	}
	return nil, fmt.Errorf("test %d: %w", testID, ErrAccessDenied)
}

// ownQuestion returns the question row when userID owns its test.
func (s *Service) ownQuestion(ctx context.Context, userID string, questionID int64) (remote.Row, error) {
	q, err := s.store.QueryOwnedRow(ctx, remote.TableQuestions, remote.Eq("id", questionID))
	if err != nil {
		return nil, fmt.Errorf("lookup question %d: %w", questionID, err)
	}
	if q == nil {
		return nil, fmt.Errorf("question %d: %w", questionID, ErrNotFound)
	}
	t, err := s.store.QueryOwnedRow(ctx, remote.TableTests, remote.Eq("id", q.Int64("test_id")), remote.Eq("user_id", userID))
	if err != nil {
		return nil, fmt.Errorf("ownership check for question %d: %w", questionID, err)
	}
	if t == nil {
		return nil, fmt.Errorf("question %d: %w", questionID, ErrAccessDenied)
	}
	return q, nil
}

func nullable(s string) any {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return s
}

func rowIDs(rows []remote.Row) []any {
	ids := make([]any, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Int64("id"))
	}
	return ids
}

// rollback undoes a half-created question. It outlives a cancelled ctx
// since the failed insert is often the cancellation itself. Failures are
// logged only; the original error is what the caller sees.
func (s *Service) rollback(ctx context.Context, questionID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()
	if err := s.store.DeleteRow(ctx, remote.TableAnswerChoices, remote.Eq("question_id", questionID)); err != nil {
		log.Printf("quiz: rollback choices of question %d: %v", questionID, err)
	}
	if err := s.store.DeleteRow(ctx, remote.TableQuestions, remote.Eq("id", questionID)); err != nil {
		log.Printf("quiz: rollback question %d: %v", questionID, err)
	}
}
