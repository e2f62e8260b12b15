package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/retailbill/billsync/internal/report"
	"github.com/retailbill/billsync/internal/syncer"
)

// Handler turns orchestrator status changes into dashboard messages and
// refreshes statistics after every finished run.
type Handler struct {
	server *Server
	source report.Source
	log    logrus.FieldLogger
	now    func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewHandler creates a handler feeding server. source may be nil, in which
// case no statistics are published.
func NewHandler(server *Server, source report.Source, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		server: server,
		source: source,
		log:    logger.WithField("component", "dashboard"),
		now:    time.Now,
	}
}

// OnStatus is a syncer status subscriber.
func (h *Handler) OnStatus(st syncer.Status) {
	h.publish(MessageTypeSyncStatus, st)

	if st.State == syncer.Syncing || st.LastResult == nil {
		return
	}
	h.mu.Lock()
	fresh := st.LastResult.FinishedAt.After(h.lastRun)
	if fresh {
		h.lastRun = st.LastResult.FinishedAt
	}
	h.mu.Unlock()

	if fresh {
		if err := h.RefreshStats(context.Background()); err != nil {
			h.log.WithError(err).Warn("failed to refresh stats")
		}
	}
}

// RefreshStats recomputes dashboard statistics and broadcasts them.
func (h *Handler) RefreshStats(ctx context.Context) error {
	if h.source == nil {
		return nil
	}
	stats, err := report.Dashboard(ctx, h.source, h.now())
	if err != nil {
		return err
	}
	h.publish(MessageTypeStats, stats)
	return nil
}

func (h *Handler) publish(t MessageType, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithError(err).WithField("type", t).Warn("failed to marshal message")
		return
	}
	h.server.Broadcast(Message{Type: t, Timestamp: h.now(), Data: data})
}
