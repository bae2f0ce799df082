package rest

import (
	"bufio"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"

	apperrors "github.com/james702283/ai-kitchen-health-suite/pkg/errors"
	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// subscription consumes one server-sent-events response body.
type subscription struct {
	cancel func()
	body   io.ReadCloser
	snaps  chan store.Snapshot
	errs   chan error
	once   sync.Once
	done   chan struct{}
}

func (s *subscription) Snapshots() <-chan store.Snapshot { return s.snaps }
func (s *subscription) Errors() <-chan error             { return s.errs }

// Close tears down the stream. Safe to call more than once.
func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
		s.body.Close()
	})
	return nil
}

// read parses the SSE wire format: "event:" and "data:" lines, a blank
// line ends each event. The channels close when the stream ends.
func (s *subscription) read(log *slog.Logger, path string) {
	defer close(s.snaps)
	defer close(s.errs)

	scanner := bufio.NewScanner(s.body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	event, data := "", ""
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if event != "" {
				if !s.dispatch(log, path, event, data) {
					return
				}
			}
			event, data = "", ""
		}
	}

	// The server closed the connection without a close event. Surface it
	// as a stream fault unless Close was what ended the read.
	select {
	case <-s.done:
	default:
		s.offerErr(apperrors.Unavailable("watch stream ended unexpectedly", scanner.Err()))
	}
}

// dispatch handles one complete event. It returns false when the stream
// is finished.
func (s *subscription) dispatch(log *slog.Logger, path, event, data string) bool {
	switch event {
	case "connected":
		// Handshake only.
	case "close":
		return false
	case "snapshot":
		var snap store.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			log.Error("malformed snapshot event", "path", path, "error", err)
			s.offerErr(apperrors.Unavailable("decode snapshot", err))
			return true
		}
		select {
		case s.snaps <- snap:
		case <-s.done:
			return false
		}
	case "error":
		var payload struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal([]byte(data), &payload); err != nil {
			s.offerErr(apperrors.Unavailable("decode stream error", err))
			return true
		}
		kind := apperrors.ParseKind(payload.Kind)
		if kind == apperrors.KindUnknown {
			kind = apperrors.KindUnavailable
		}
		s.offerErr(apperrors.New(kind, payload.Message, nil))
	}
	return true
}

func (s *subscription) offerErr(err error) {
	select {
	case s.errs <- err:
	case <-s.done:
	default:
	}
}
