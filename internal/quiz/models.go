package quiz

import (
	"time"

	"github.com/tq-random/tq-random/internal/remote"
)

type Test struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// TestUpdate carries the fields to change; nil means unchanged.
type TestUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type Question struct {
	ID              int64     `json:"id"`
	TestID          int64     `json:"test_id"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"created_at"`
	Choices         []Choice  `json:"choices"`
	CorrectChoiceID *int64    `json:"correct_choice_id"`
}

type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"text"`
}

// Answer links a question to its correct choice. At most one per question.
type Answer struct {
	ID         int64 `json:"id"`
	QuestionID int64 `json:"question_id"`
	ChoiceID   int64 `json:"answer_choice_id"`
}

// Page selects a slice of the owner's tests. ItemsPerPage -1 means all
// rows. An empty SortBy sorts by creation time, newest first.
type Page struct {
	Page         int    `json:"page"`
	ItemsPerPage int    `json:"items_per_page"`
	Search       string `json:"search"`
	SortBy       string `json:"sort_by"`
	Ascending    bool   `json:"ascending"`
}

const defaultItemsPerPage = 10

var sortable = map[string]bool{"id": true, "title": true, "created_at": true}

// query turns a page into a store query over the owner's tests.
func (p Page) query(userID string) (remote.Query, error) {
	q := remote.Query{
		Filters: []remote.Filter{remote.Eq("user_id", userID)},
		Order:   remote.Order{Column: "created_at", Ascending: p.Ascending},
	}
	if p.SortBy != "" {
		if !sortable[p.SortBy] {
			return q, invalid("cannot sort by %q", p.SortBy)
		}
		q.Order.Column = p.SortBy
	}
	if p.Search != "" {
		q.Filters = append(q.Filters, remote.ILike("title", p.Search))
	}

	n := p.ItemsPerPage
	switch {
	case n == -1:
		return q, nil
	case n == 0:
		n = defaultItemsPerPage
	case n < -1:
		return q, invalid("items per page %d", n)
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	from := (page - 1) * n
	q.Range = &remote.Range{From: from, To: from + n - 1}
	return q, nil
}

func testFromRow(r remote.Row) Test {
	t := Test{
		ID:        r.Int64("id"),
		UserID:    r.String("user_id"),
		Title:     r.String("title"),
		CreatedAt: r.Time("created_at"),
	}
	if r["description"] != nil {
		d := r.String("description")
		t.Description = &d
	}
	return t
}

func questionFromRow(r remote.Row) Question {
	return Question{
		ID:        r.Int64("id"),
		TestID:    r.Int64("test_id"),
		Text:      r.String("text"),
		CreatedAt: r.Time("created_at"),
		Choices:   []Choice{},
	}
}

func choiceFromRow(r remote.Row) Choice {
	return Choice{ID: r.Int64("id"), QuestionID: r.Int64("question_id"), Text: r.String("text")}
}

func answerFromRow(r remote.Row) Answer {
	return Answer{ID: r.Int64("id"), QuestionID: r.Int64("question_id"), ChoiceID: r.Int64("answer_choice_id")}
}
