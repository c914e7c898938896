package http

import (
	"github.com/go-chi/chi/v5"

	"github.com/tq-random/tq-random/internal/account"
	"github.com/tq-random/tq-random/internal/auth"
	authmw "github.com/tq-random/tq-random/internal/auth/middleware"
	"github.com/tq-random/tq-random/internal/guard"
	"github.com/tq-random/tq-random/internal/quiz"
	"github.com/tq-random/tq-random/internal/rbac"
	"github.com/tq-random/tq-random/internal/remote"
	"github.com/tq-random/tq-random/internal/storage"
)

type Deps struct {
	Backend    remote.Backend
	Quiz       *quiz.Service
	Accounts   *account.Service
	Navigators *guard.Navigators

	// Google is nil when Google sign-in is disabled.
	Google *auth.Google
	// LocalBlobs, when set, is served under /blobs.
	LocalBlobs storage.BlobStore
}

// Mount registers the API under /api and local blobs under /blobs.
func Mount(r chi.Router, d Deps) {
	if d.LocalBlobs != nil {
		r.Route("/blobs", func(br chi.Router) { MountBlobs(br, d.LocalBlobs) })
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(authmw.BearerToken)

		api.Post("/auth/register", RegisterHandler(d.Accounts))
		api.Post("/auth/login", LoginHandler(d.Backend))
		api.Post("/auth/refresh", RefreshHandler(d.Backend))
		api.Post("/auth/logout", LogoutHandler(d.Backend))
		if d.Google != nil {
			api.Get("/auth/google/login", d.Google.LoginHandler())
			api.Get("/auth/google/callback", d.Google.CallbackHandler())
		}

		api.Get("/session", SessionHandler(d.Backend))
		api.Get("/navigation", NavigationHandler(d.Navigators, d.Backend))

		// session → role in context → RBAC
		api.Group(func(pr chi.Router) {
			pr.Use(authmw.RequireSession(d.Backend), authmw.AttachRole(d.Backend))

			pr.With(rbac.Require("profile:view")).Get("/me", MeHandler(d.Backend))
			pr.With(rbac.Require("profile:edit")).Patch("/me", UpdateMeHandler(d.Accounts))
			pr.With(rbac.Require("profile:edit")).Post("/me/avatar", AvatarHandler(d.Accounts))
			pr.With(rbac.Require("profile:view")).Get("/me/pages", PagesHandler(d.Accounts))

			pr.With(rbac.Require("test:view-own")).Get("/tests", ListTestsHandler(d.Quiz))
			pr.With(rbac.Require("test:create")).Post("/tests", CreateTestHandler(d.Quiz))
			pr.With(rbac.Require("test:view-own")).Get("/tests/{testID}", GetTestHandler(d.Quiz))
			pr.With(rbac.Require("test:edit-own")).Patch("/tests/{testID}", UpdateTestHandler(d.Quiz))
			pr.With(rbac.Require("test:delete-own")).Delete("/tests/{testID}", DeleteTestHandler(d.Quiz))

			pr.With(rbac.Require("question:view")).Get("/tests/{testID}/questions", ListQuestionsHandler(d.Quiz))
			pr.With(rbac.Require("question:create")).Post("/tests/{testID}/questions", CreateQuestionHandler(d.Quiz))
			pr.With(rbac.Require("question:edit")).Put("/questions/{questionID}", UpdateQuestionHandler(d.Quiz))
			pr.With(rbac.Require("question:delete")).Delete("/questions/{questionID}", DeleteQuestionHandler(d.Quiz))
			pr.With(rbac.Require("question:edit")).Put("/questions/{questionID}/choices", ReconcileChoicesHandler(d.Quiz))
			pr.With(rbac.Require("question:edit")).Put("/questions/{questionID}/answer", SetAnswerHandler(d.Quiz))
			pr.With(rbac.Require("question:edit")).Delete("/questions/{questionID}/answer", ClearAnswerHandler(d.Quiz))

			if admins, ok := d.Backend.(AdminSetter); ok {
				pr.With(rbac.Require("admin:users")).Patch("/admin/users/{userID}", SetAdminHandler(admins))
			}
		})
	})
}
