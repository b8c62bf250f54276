package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"goongoom/pkg/audit"
)

// Routes constructs the chi router containing all API endpoints.
func (a *API) Routes() (http.Handler, error) {
	if a == nil {
		return nil, errors.New("nil api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(audit.Middleware)
	r.Use(a.authenticate)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users", a.handleRegister)
		r.Get("/users/{username}", a.handleUserProfile)
		r.Get("/users/{username}/friends", a.handleFriends)

		r.Post("/questions", a.handleAsk)
		r.Get("/questions", a.handleListQuestions)
		r.Get("/questions/{id}", a.handleQuestion)
		r.Get("/questions/{id}/number", a.handleAnswerNumber)

		r.Get("/feed", a.handleFeed)
		r.Get("/stats/answers", a.handleAnswerStats)
		r.Get("/push/key", a.handlePushKey)

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)
			r.Get("/me", a.handleMe)
			r.Get("/inbox", a.handleInbox)
			r.Get("/sent", a.handleSent)
			r.Delete("/questions/{id}", a.handleDeleteQuestion)
			r.Post("/questions/{id}/answer", a.handleAnswer)
			r.Get("/push/subscriptions", a.handleListPushSubscriptions)
			r.Post("/push/subscriptions", a.handleSubscribePush)
			r.Delete("/push/subscriptions", a.handleUnsubscribePush)
		})
	})

	return r, nil
}
