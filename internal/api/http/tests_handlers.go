package http

import (
	"net/http"
	"strconv"

	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/quiz"
)

type testInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func CreateTestHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in testInput
		if !decodeJSON(w, r, &in) {
			return
		}
		t, err := svc.CreateTest(r.Context(), authmw.SubjectFromContext(r.Context()), in.Title, in.Description)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

// ListTestsHandler reads page, items_per_page (-1 for all), search,
// sort_by and sort=asc|desc from the query string.
func ListTestsHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		p := quiz.Page{
			Search:    q.Get("search"),
			SortBy:    q.Get("sort_by"),
			Ascending: q.Get("sort") == "asc",
		}
		var err error
		if v := q.Get("page"); v != "" {
			if p.Page, err = strconv.Atoi(v); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad page"})
				return
			}
		}
		if v := q.Get("items_per_page"); v != "" {
			if p.ItemsPerPage, err = strconv.Atoi(v); err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad items_per_page"})
				return
			}
		}
		ts, err := svc.ListTests(r.Context(), authmw.SubjectFromContext(r.Context()), p)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": ts, "page": p.Page, "items_per_page": p.ItemsPerPage})
	}
}

func GetTestHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "testID")
		if !ok {
			return
		}
		t, err := svc.GetTest(r.Context(), authmw.SubjectFromContext(r.Context()), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func UpdateTestHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "testID")
		if !ok {
			return
		}
		var u quiz.TestUpdate
		if !decodeJSON(w, r, &u) {
			return
		}
		t, err := svc.UpdateTest(r.Context(), authmw.SubjectFromContext(r.Context()), id, u)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func DeleteTestHandler(svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r, "testID")
		if !ok {
			return
		}
		if err := svc.DeleteTest(r.Context(), authmw.SubjectFromContext(r.Context()), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
