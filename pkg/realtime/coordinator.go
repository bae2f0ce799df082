package realtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/james702283/ai-kitchen-health-suite/internal/logger"
	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/namespace"
	"github.com/james702283/ai-kitchen-health-suite/pkg/notify"
)

// Notifier receives user-visible success messages. notify.Queue satisfies it.
type Notifier interface {
	Post(message string, ttl time.Duration)
}

// Coordinator serializes create/delete mutations per logical operation key:
// the path for creates, path+id for deletes. A second mutation on an in-flight
// key is rejected with Busy instead of queued, so the caller can disable the
// triggering control. The coordinator never patches local state; visibility
// comes from the next snapshot the subscription delivers.
type Coordinator struct {
	client   storeClient
	notifier Notifier
	log      *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
	schemas  map[string]*gojsonschema.Schema
}

// storeClient is the mutation subset of store.Client.
type storeClient interface {
	Create(ctx context.Context, path string, fields map[string]any) (string, error)
	Delete(ctx context.Context, path string, id string) error
}

// NewCoordinator creates a Coordinator. notifier may be nil.
func NewCoordinator(client storeClient, notifier Notifier) *Coordinator {
	return &Coordinator{
		client:   client,
		notifier: notifier,
		log:      logger.Get(),
		inflight: make(map[string]struct{}),
		schemas:  make(map[string]*gojsonschema.Schema),
	}
}

// RegisterSchema compiles and registers a JSON Schema that Create validates
// fields against for the given collection name.
func (c *Coordinator) RegisterSchema(collection, schemaJSON string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return apperrors.New(apperrors.KindInvalidInput, "invalid schema for "+collection, err)
	}
	c.mu.Lock()
	c.schemas[collection] = schema
	c.mu.Unlock()
	return nil
}

// Create validates fields and issues exactly one store create. There is no
// automatic retry: the store already delivers at-least-once, and blind client
// retries risk duplicate documents.
func (c *Coordinator) Create(ctx context.Context, path string, fields map[string]any) (string, error) {
	if len(fields) == 0 {
		return "", apperrors.InvalidInput("document fields must not be empty")
	}
	if err := c.validate(path, fields); err != nil {
		return "", err
	}

	if !c.acquire(path) {
		return "", apperrors.Busy("a save for this collection is already in flight")
	}
	defer c.release(path)

	id, err := c.client.Create(ctx, path, fields)
	if err != nil {
		c.log.Warn("create failed", "path", path, "error", err)
		return "", err
	}

	c.post("Saved to " + displayName(path) + ".")
	return id, nil
}

// Delete issues exactly one store delete. Callers confirm destructive intent
// before calling; that confirmation is a precondition, not enforced here. The
// active subscription removes the id from the materialized set once the store
// reflects the delete.
func (c *Coordinator) Delete(ctx context.Context, path string, id string) error {
	if id == "" {
		return apperrors.InvalidInput("document id must not be empty")
	}

	key := path + "#" + id
	if !c.acquire(key) {
		return apperrors.Busy("a delete for this document is already in flight")
	}
	defer c.release(key)

	if err := c.client.Delete(ctx, path, id); err != nil {
		c.log.Warn("delete failed", "path", path, "id", id, "error", err)
		return err
	}

	c.post("Deleted from " + displayName(path) + ".")
	return nil
}

func (c *Coordinator) validate(path string, fields map[string]any) error {
	collection := namespace.Collection(path)
	c.mu.Lock()
	schema := c.schemas[collection]
	c.mu.Unlock()
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(fields))
	if err != nil {
		return apperrors.New(apperrors.KindInvalidInput, "document validation failed", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return apperrors.InvalidInput("invalid document: " + strings.Join(msgs, "; "))
}

func (c *Coordinator) acquire(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inflight[key]; busy {
		return false
	}
	c.inflight[key] = struct{}{}
	return true
}

func (c *Coordinator) release(key string) {
	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()
}

func (c *Coordinator) post(message string) {
	if c.notifier != nil {
		c.notifier.Post(message, notify.DefaultTTL)
	}
}

// displayName is the collection segment when the path follows the namespace
// convention, otherwise the full path.
func displayName(path string) string {
	if c := namespace.Collection(path); c != "" {
		return c
	}
	return path
}
