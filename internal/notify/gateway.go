package notify

import (
	"context"
	"sync"

	"github.com/arjunmehta/medilens/internal/domain"
	"github.com/arjunmehta/medilens/internal/logger"
)

// LocalGateway is an in-process notification collaborator. Real delivery
// belongs to the platform's notification system; this implementation
// records granted permission and accepted triggers so the engine and the
// HTTP surface have a working counterpart.
type LocalGateway struct {
	mu        sync.Mutex
	granted   bool
	scheduled []domain.ScheduledTrigger
}

func NewLocalGateway(permissionGranted bool) *LocalGateway {
	return &LocalGateway{granted: permissionGranted}
}

func (g *LocalGateway) HasPermission(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted
}

func (g *LocalGateway) RequestPermission(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.granted, nil
}

func (g *LocalGateway) Schedule(ctx context.Context, trigger domain.ScheduledTrigger) error {
	g.mu.Lock()
	g.scheduled = append(g.scheduled, trigger)
	g.mu.Unlock()
	logger.Info("Notification trigger accepted",
		"medicine", trigger.MedicineName,
		"offset_seconds", trigger.OffsetSeconds,
		"priority", trigger.Tone.Priority)
	return nil
}

// Scheduled returns a copy of every accepted trigger.
func (g *LocalGateway) Scheduled() []domain.ScheduledTrigger {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ScheduledTrigger, len(g.scheduled))
	copy(out, g.scheduled)
	return out
}
