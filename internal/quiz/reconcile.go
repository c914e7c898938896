package quiz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tq-random/tq-random/internal/remote"
)

type OpKind string

const (
	OpUpdate       OpKind = "update"
	OpInsert       OpKind = "insert"
	OpUnlinkAnswer OpKind = "unlink-answer" // drop the answer pointing at ChoiceID
	OpDelete       OpKind = "delete"
	OpClearAnswer  OpKind = "clear-answer"  // drop the question's answer
	OpClearChoices OpKind = "clear-choices" // drop every choice of the question
)

// Op is one remote operation of a reconciliation. Index is the position
// in the positional walk, -1 for the whole-question clears.
type Op struct {
	Kind     OpKind `json:"kind"`
	Index    int    `json:"index"`
	ChoiceID int64  `json:"choice_id,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (o Op) String() string {
	switch o.Kind {
	case OpInsert:
		return fmt.Sprintf("insert[%d] %q", o.Index, o.Text)
	case OpUpdate:
		return fmt.Sprintf("update[%d] choice %d to %q", o.Index, o.ChoiceID, o.Text)
	case OpClearAnswer, OpClearChoices:
		return string(o.Kind)
	default:
		return fmt.Sprintf("%s[%d] choice %d", o.Kind, o.Index, o.ChoiceID)
	}
}

// PlanChoices diffs existing against next by position. Existing choices
// are walked in id order. Reordering texts without changing the count
// therefore yields updates, not a no-op.
func PlanChoices(existing []Choice, next []string) []Op {
	if len(next) == 0 {
		return []Op{{Kind: OpClearAnswer, Index: -1}, {Kind: OpClearChoices, Index: -1}}
	}

	e := append([]Choice(nil), existing...)
	sort.Slice(e, func(i, j int) bool { return e[i].ID < e[j].ID })

	var ops []Op
	for i := 0; i < len(e) || i < len(next); i++ {
		switch {
		case i < len(e) && i < len(next):
			text := strings.TrimSpace(next[i])
			if strings.TrimSpace(e[i].Text) != text {
				ops = append(ops, Op{Kind: OpUpdate, Index: i, ChoiceID: e[i].ID, Text: text})
			}
		case i < len(next):
			ops = append(ops, Op{Kind: OpInsert, Index: i, Text: strings.TrimSpace(next[i])})
		default:
			ops = append(ops,
				Op{Kind: OpUnlinkAnswer, Index: i, ChoiceID: e[i].ID},
				Op{Kind: OpDelete, Index: i, ChoiceID: e[i].ID})
		}
	}
	return ops
}

// applyChoices runs ops in order and stops at the first failure.
func (s *Service) applyChoices(ctx context.Context, questionID int64, ops []Op) error {
	for i, op := range ops {
		if err := s.applyChoiceOp(ctx, questionID, op); err != nil {
			return &ReconcileError{QuestionID: questionID, Op: op, Applied: i, Err: err}
		}
	}
	return nil
}

func (s *Service) applyChoiceOp(ctx context.Context, questionID int64, op Op) error {
	switch op.Kind {
	case OpUpdate:
		_, err := s.store.UpdateRow(ctx, remote.TableAnswerChoices, op.ChoiceID, remote.Fields{"text": op.Text})
		return err
	case OpInsert:
		_, err := s.store.InsertRow(ctx, remote.TableAnswerChoices, remote.Fields{"question_id": questionID, "text": op.Text})
		return err
	case OpUnlinkAnswer:
		return s.store.DeleteRow(ctx, remote.TableAnswers,
			remote.Eq("question_id", questionID), remote.Eq("answer_choice_id", op.ChoiceID))
	case OpDelete:
		return s.store.DeleteRow(ctx, remote.TableAnswerChoices,
			remote.Eq("id", op.ChoiceID), remote.Eq("question_id", questionID))
	case OpClearAnswer:
		return s.store.DeleteRow(ctx, remote.TableAnswers, remote.Eq("question_id", questionID))
	case OpClearChoices:
		return s.store.DeleteRow(ctx, remote.TableAnswerChoices, remote.Eq("question_id", questionID))
	}
	return fmt.Errorf("unknown op %q", op.Kind)
}

// ReconcileAnswerChoices brings the question's choices in line with next.
// existing must be choices of the question; it is usually the list the
// editor was opened with. The caller must own the question's test.
func (s *Service) ReconcileAnswerChoices(ctx context.Context, userID string, questionID int64, existing []Choice, next []string) error {
	if err := checkChoices(next); err != nil {
		return err
	}
	if _, err := s.ownQuestion(ctx, userID, questionID); err != nil {
		return err
	}
	stored, err := s.choices(ctx, questionID)
	if err != nil {
		return err
	}
	known := make(map[int64]bool, len(stored))
	for _, c := range stored {
		known[c.ID] = true
	}
	seen := make(map[int64]bool, len(existing))
	for _, c := range existing {
		if !known[c.ID] {
			return invalid("choice %d does not belong to question %d", c.ID, questionID)
		}
		if seen[c.ID] {
			return invalid("choice %d listed twice", c.ID)
		}
		seen[c.ID] = true
	}
	return s.applyChoices(ctx, questionID, PlanChoices(existing, next))
}

func checkChoices(next []string) error {
	for i, t := range next {
		if strings.TrimSpace(t) == "" {
			return invalid("choice %d is empty", i)
		}
	}
	return nil
}
