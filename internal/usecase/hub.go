package usecase

import (
	"context"
	"sync"
	"time"

	"tradechat/internal/domain/repository"
	"tradechat/pkg/logger"
)

// Hub hands out one SyncController per authenticated viewer, creating
// them lazily on first access and evicting the ones nobody has touched
// for idleTTL.
type Hub struct {
	repo         repository.MessageRepository
	notifier     Notifier
	pollInterval time.Duration
	idleTTL      time.Duration

	mu          sync.Mutex
	controllers map[string]*SyncController

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(repo repository.MessageRepository, notifier Notifier, pollInterval, idleTTL time.Duration) *Hub {
	return &Hub{
		repo:         repo,
		notifier:     notifier,
		pollInterval: pollInterval,
		idleTTL:      idleTTL,
		controllers:  make(map[string]*SyncController),
	}
}

// Start launches the idle-eviction routine.
func (h *Hub) Start(ctx context.Context) {
	h.ctx, h.cancel = context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(h.idleTTL / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.evictIdle()
			case <-h.ctx.Done():
				return
			}
		}
	}()
}

// Controller returns the viewer's controller, starting a fresh one on
// first access.
func (h *Hub) Controller(userID string) *SyncController {
	h.mu.Lock()
	controller, ok := h.controllers[userID]
	if !ok {
		controller = NewSyncController(userID, h.repo, h.notifier, h.pollInterval)
		h.controllers[userID] = controller
		parent := h.ctx
		if parent == nil {
			parent = context.Background()
		}
		controller.Start(parent)
		logger.Info("hub: started sync controller for user %s", userID)
	}
	h.mu.Unlock()
	return controller
}

// Nudge triggers a re-aggregation for the user if a controller is live.
// Used by the send path so both participants see the new message without
// waiting for the change feed.
func (h *Hub) Nudge(userID string) {
	h.mu.Lock()
	controller, ok := h.controllers[userID]
	h.mu.Unlock()

	if ok {
		controller.Refresh()
	}
}

func (h *Hub) evictIdle() {
	cutoff := time.Now().Add(-h.idleTTL)

	h.mu.Lock()
	var evicted []*SyncController
	for userID, controller := range h.controllers {
		if controller.LastAccess().Before(cutoff) {
			delete(h.controllers, userID)
			evicted = append(evicted, controller)
			logger.Info("hub: evicting idle sync controller for user %s", userID)
		}
	}
	h.mu.Unlock()

	for _, controller := range evicted {
		controller.Stop()
	}
}

// Shutdown stops every controller and the eviction routine.
func (h *Hub) Shutdown() {
	if h.cancel != nil {
		h.cancel()
	}

	h.mu.Lock()
	controllers := make([]*SyncController, 0, len(h.controllers))
	for _, controller := range h.controllers {
		controllers = append(controllers, controller)
	}
	h.controllers = make(map[string]*SyncController)
	h.mu.Unlock()

	for _, controller := range controllers {
		controller.Stop()
	}
}
