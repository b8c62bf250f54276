// Package api exposes the question-and-answer service over HTTP.
package api

import (
	"errors"
	"log"

	"goongoom/pkg/audit"
	"goongoom/pkg/bus"
	"goongoom/services/qna"
)

// NATS subjects carrying domain events.
const (
	questionsTopic = "goongoom.questions.created"
	answersTopic   = "goongoom.answers.created"
)

// Options carries the optional collaborators for the API layer. A nil Bus
// skips event publishing, a nil Recorder disables audit logging, and a nil
// Limiter disables ask quotas.
type Options struct {
	Bus            *bus.Bus
	Recorder       *audit.Recorder
	Limiter        *Limiter
	Logger         *log.Logger
	VAPIDPublicKey string
}

// API wires the domain service, token manager, event bus, audit recorder,
// and rate limiter behind the HTTP handlers.
type API struct {
	service  *qna.Service
	tokens   *TokenManager
	bus      *bus.Bus
	recorder *audit.Recorder
	limiter  *Limiter
	logger   *log.Logger
	pushKey  string
}

// New initialises the API layer.
func New(service *qna.Service, tokens *TokenManager, opts Options) (*API, error) {
	if service == nil {
		return nil, errors.New("service is required")
	}
	if tokens == nil {
		return nil, errors.New("token manager is required")
	}

	return &API{
		service:  service,
		tokens:   tokens,
		bus:      opts.Bus,
		recorder: opts.Recorder,
		limiter:  opts.Limiter,
		logger:   opts.Logger,
		pushKey:  opts.VAPIDPublicKey,
	}, nil
}
