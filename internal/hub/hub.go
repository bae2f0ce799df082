// Package hub is the application layer: meal logs and saved recipes built
// on the shared sync manager and mutation coordinator.
package hub

import (
	"log/slog"
	"math/rand"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/namespace"
	"github.com/james702283/ai-kitchen-health-suite/pkg/realtime"
	"github.com/james702283/ai-kitchen-health-suite/pkg/session"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

const (
	mealLogsCollection     = "mealLogs"
	savedRecipesCollection = "savedRecipes"
)

// Estimator guesses a calorie count for a meal description.
type Estimator func(description string) int

// defaultEstimator picks a pseudo-random value between 200 and 600 kcal.
// Real estimation is a model call behind the Estimator hook.
func defaultEstimator(string) int {
	return 200 + rand.Intn(401)
}

// Options configures a Hub.
type Options struct {
	Session  *session.Session
	Client   store.Client
	Notifier realtime.Notifier

	// Estimate overrides the calorie estimator. Nil means the built-in
	// pseudo-random one.
	Estimate Estimator
}

// Hub exposes the app's collections over a session-scoped sync manager.
type Hub struct {
	session  *session.Session
	manager  *realtime.Manager
	coord    *realtime.Coordinator
	estimate Estimator
	log      *slog.Logger
}

// New wires the sync manager and coordinator to the store client and binds
// handle teardown to the session's principal transitions.
func New(opts Options) (*Hub, error) {
	h := &Hub{
		session:  opts.Session,
		manager:  realtime.NewManager(opts.Client),
		coord:    realtime.NewCoordinator(opts.Client, opts.Notifier),
		estimate: opts.Estimate,
		log:      logger.Get(),
	}
	if h.estimate == nil {
		h.estimate = defaultEstimator
	}

	if err := h.coord.RegisterSchema(mealLogsCollection, mealLogSchema); err != nil {
		return nil, err
	}
	if err := h.coord.RegisterSchema(savedRecipesCollection, recipeSchema); err != nil {
		return nil, err
	}

	session.Bind(opts.Session, h.manager)
	return h, nil
}

// Manager exposes the sync manager, mainly for tests and teardown checks.
func (h *Hub) Manager() *realtime.Manager { return h.manager }

// collectionPath resolves a collection under the signed-in principal.
func (h *Hub) collectionPath(collection string) (string, error) {
	principal, ok := h.session.Principal()
	if !ok {
		return "", apperrors.PermissionDenied("sign in first")
	}
	return namespace.Resolve(h.session.Tenant(), principal, collection)
}
