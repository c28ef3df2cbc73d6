package routing

import (
	"log/slog"
	"strings"
	"sync"

	"linetest/internal/eventclient"
)

// UIDSink remembers the last UID delivered by a uid_search_result message.
type UIDSink struct {
	logger *slog.Logger
	notify func(uid string)

	mu  sync.Mutex
	uid string
}

// NewUIDSink returns a sink. notify may be nil.
func NewUIDSink(logger *slog.Logger, notify func(uid string)) *UIDSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &UIDSink{logger: logger, notify: notify}
}

func (s *UIDSink) HandleUIDResult(msg eventclient.Message) {
	if msg.Type != eventclient.TypeUIDSearchResult {
		return
	}
	var res UIDResult
	if err := msg.Decode(&res); err != nil {
		s.logger.Warn("uid_result_decode_failed", "error", err)
		return
	}
	uid := strings.TrimSpace(res.UID)
	if uid == "" {
		s.logger.Warn("uid_result_empty")
		return
	}

	s.mu.Lock()
	s.uid = uid
	s.mu.Unlock()

	s.logger.Info("uid_result_received", "uid", uid)
	if s.notify != nil {
		s.notify(uid)
	}
}

// Last returns the most recent UID and whether one has been received.
func (s *UIDSink) Last() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid, s.uid != ""
}
