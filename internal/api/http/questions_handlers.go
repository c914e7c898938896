package http

import (
	"net/http"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/quiz"
)

type questionInput struct {
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
	// CorrectIndex is honoured on create only.
	CorrectIndex *int `json:"correct_index,omitempty"`
}

func ListQuestionsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID, ok := idParam(w, r, "testID")
		if !ok {
			return
		}
		qs, err := svc.ListQuestions(r.Context(), authmw.SubjectFromContext(r.Context()), testID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, qs)
	}
}

func CreateQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		testID, ok := idParam(w, r, "testID")
		if !ok {
			return
		}
		var in questionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := svc.CreateQuestion(r.Context(), authmw.SubjectFromContext(r.Context()), testID, in.Text, in.Choices, in.CorrectIndex)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func UpdateQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		var in questionInput
		if !decodeJSON(w, r, &in) {
			return
		}
		q, err := svc.UpdateQuestion(r.Context(), authmw.SubjectFromContext(r.Context()), id, in.Text, in.Choices)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func DeleteQuestionHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		if err := svc.DeleteQuestion(r.Context(), authmw.SubjectFromContext(r.Context()), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ReconcileChoicesHandler takes {"existing": [...], "choices": [...]}.
// existing is the list the editor was opened with.
func ReconcileChoicesHandler(svc *quiz.Service) http.HandlerFunc {
	type in struct {
		Existing []quiz.Choice `json:"existing"`
		Choices  []string      `json:"choices"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		var body in
		if !decodeJSON(w, r, &body) {
			return
		}
		user := authmw.SubjectFromContext(r.Context())
		if err := svc.ReconcileAnswerChoices(r.Context(), user, id, body.Existing, body.Choices); err != nil {
			writeError(w, err)
			return
		}
		q, err := svc.GetQuestion(r.Context(), user, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func SetAnswerHandler(svc *quiz.Service) http.HandlerFunc {
	type in struct {
		ChoiceID int64 `json:"answer_choice_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		var body in
		if !decodeJSON(w, r, &body) {
			return
		}
		a, err := svc.SetCorrectAnswer(r.Context(), authmw.SubjectFromContext(r.Context()), id, body.ChoiceID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func ClearAnswerHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "questionID")
		if !ok {
			return
		}
		if err := svc.ClearCorrectAnswer(r.Context(), authmw.SubjectFromContext(r.Context()), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
