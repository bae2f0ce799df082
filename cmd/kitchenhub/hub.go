package main

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/james702283/ai-kitchen-health-suite/internal/hub"
	"github.com/james702283/ai-kitchen-health-suite/pkg/notify"
	"github.com/james702283/ai-kitchen-health-suite/pkg/realtime"
	"github.com/james702283/ai-kitchen-health-suite/pkg/session"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// openHub builds a signed-in hub over the configured server. The principal
// comes from the token's subject; the server still verifies the signature
// on every request.
func openHub(opts *rootOptions) (*hub.Hub, *notify.Queue, error) {
	token := opts.cfg.Client.Token
	if token == "" {
		return nil, nil, errors.New("not signed in: set KITCHENHUB_CLIENT_TOKEN (see kitchenhub auth signin)")
	}
	principal, err := tokenSubject(token)
	if err != nil {
		return nil, nil, err
	}

	sess := session.New(opts.cfg.Tenant)
	queue := notify.New()
	h, err := hub.New(hub.Options{
		Session:  sess,
		Client:   opts.client(),
		Notifier: queue,
	})
	if err != nil {
		return nil, nil, err
	}
	sess.SetPrincipal(principal)
	return h, queue, nil
}

// tokenSubject reads the subject claim without verifying the signature.
// Verification happens server-side; the CLI only needs the principal to
// build paths.
func tokenSubject(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("malformed token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", errors.New("token has no subject claim")
	}
	return sub, nil
}

// firstSet waits for the initial materialized set of a freshly opened handle.
func firstSet(h *realtime.Handle) (realtime.Set, error) {
	sets := make(chan realtime.Set, 1)
	remove := h.Listen(realtime.ListenerFuncs{Change: func(s realtime.Set) {
		select {
		case sets <- s:
		default:
		}
	}})
	defer remove()

	select {
	case s := <-sets:
		return s, nil
	case <-time.After(5 * time.Second):
		return nil, errors.New("timed out waiting for the server's first snapshot")
	}
}

// sortedDocs orders a set by creation time for stable terminal output.
func sortedDocs(set realtime.Set) []store.Document {
	docs := make([]store.Document, 0, len(set))
	for _, doc := range set {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	return docs
}
