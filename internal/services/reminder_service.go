package services

import (
	"context"
	"fmt"
	"time"

	"github.com/arjunmehta/medilens/internal/domain"
	apperrors "github.com/arjunmehta/medilens/internal/errors"
	"github.com/arjunmehta/medilens/internal/logger"
	"github.com/arjunmehta/medilens/internal/utils"
)

const defaultToneID = "standard"

// DefaultTones returns the fixed, ordered tone catalog. Silent carries no
// audible payload and the lowest priority; urgent and alarm map to max.
func DefaultTones() []domain.Tone {
	return []domain.Tone{
		{ID: "gentle", Label: "Gentle chime", Vibration: []int{200, 100, 200}, Priority: "default"},
		{ID: "standard", Label: "Standard", Vibration: []int{300, 150, 300, 150}, Priority: "high"},
		{ID: "urgent", Label: "Urgent", Vibration: []int{500, 100, 500, 100, 500}, Priority: "max"},
		{ID: "alarm", Label: "Alarm", Vibration: []int{800, 200, 800, 200, 800, 200}, Priority: "max"},
		{ID: "silent", Label: "Silent", Vibration: []int{}, Priority: "min", Silent: true},
	}
}

// ReminderService converts user-chosen or inferred times into concrete
// notification triggers. The tone registry and clock are injected so
// behavior is testable with a custom tone set and a fixed wall clock.
type ReminderService struct {
	gateway domain.NotificationGateway
	tones   map[string]domain.Tone
	order   []string
	now     func() time.Time
}

func NewReminderService(gateway domain.NotificationGateway, tones []domain.Tone, now func() time.Time) *ReminderService {
	if len(tones) == 0 {
		tones = DefaultTones()
	}
	if now == nil {
		now = time.Now
	}
	s := &ReminderService{
		gateway: gateway,
		tones:   make(map[string]domain.Tone, len(tones)),
		order:   make([]string, 0, len(tones)),
		now:     now,
	}
	for _, t := range tones {
		s.tones[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return s
}

// Tones returns the catalog in registry order.
func (s *ReminderService) Tones() []domain.Tone {
	out := make([]domain.Tone, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.tones[id])
	}
	return out
}

// Tone resolves a tone id, falling back to the standard tone for unknown
// ids. When the registry has no standard entry either, the first
// registered tone wins.
func (s *ReminderService) Tone(id string) domain.Tone {
	if t, ok := s.tones[id]; ok {
		return t
	}
	if t, ok := s.tones[defaultToneID]; ok {
		return t
	}
	return s.tones[s.order[0]]
}

// BuildTrigger resolves (hour, minute) against the current clock. Today's
// instant is used unless it is not strictly in the future, in which case
// the trigger rolls forward exactly one calendar day. The offset is whole
// seconds, floor division.
func (s *ReminderService) BuildTrigger(req domain.ReminderRequest) domain.ScheduledTrigger {
	now := s.now()
	fireAt := time.Date(now.Year(), now.Month(), now.Day(), req.Hour, req.Minute, 0, 0, now.Location())
	rolled := false
	if !fireAt.After(now) {
		fireAt = fireAt.AddDate(0, 0, 1)
		rolled = true
	}

	tone := s.Tone(req.ToneID)
	return domain.ScheduledTrigger{
		MedicineName:  req.MedicineName,
		FireAt:        fireAt,
		OffsetSeconds: int64(fireAt.Sub(now) / time.Second),
		Title:         "Medication reminder",
		Body:          fmt.Sprintf("Time to take %s", req.MedicineName),
		Tone:          tone,
		RolledToNext:  rolled,
		AutoScheduled: req.Auto,
	}
}

// Schedule builds the trigger and hands it to the notification
// collaborator. A missing permission surfaces as a permission error,
// distinct from a genuine scheduling failure after permission was granted.
func (s *ReminderService) Schedule(ctx context.Context, req domain.ReminderRequest) (*domain.ScheduledTrigger, error) {
	if !s.gateway.HasPermission(ctx) {
		granted, err := s.gateway.RequestPermission(ctx)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrorTypePermission, "NOTIFICATION_PERMISSION", "Notification permission request failed")
		}
		if !granted {
			return nil, apperrors.NewPermissionError("Notification permission not granted")
		}
	}

	trigger := s.BuildTrigger(req)
	if err := s.gateway.Schedule(ctx, trigger); err != nil {
		return nil, apperrors.NewExternalAPIError(err, "notifications")
	}
	logger.Info("Reminder scheduled",
		"medicine", req.MedicineName,
		"offset_seconds", trigger.OffsetSeconds,
		"tone", trigger.Tone.ID,
		"auto", req.Auto)
	return &trigger, nil
}

// AutoSchedule applies the convenience policy: only a scan that produced
// exactly one record with a parseable recommended time is auto-scheduled.
// Multi-medicine scans go through the explicit per-record action instead,
// and every failure here is silent so the scan flow is never blocked.
func (s *ReminderService) AutoSchedule(ctx context.Context, records []domain.MedicineRecord) *domain.ScheduledTrigger {
	if len(records) != 1 {
		return nil
	}
	hour, minute, ok := utils.ParseClock(records[0].RecommendedTime)
	if !ok {
		return nil
	}
	trigger, err := s.Schedule(ctx, domain.ReminderRequest{
		MedicineName: records[0].MedicineName,
		Hour:         hour,
		Minute:       minute,
		ToneID:       defaultToneID,
		Auto:         true,
	})
	if err != nil {
		logger.Debug("Auto reminder skipped", "error", err, "medicine", records[0].MedicineName)
		return nil
	}
	return trigger
}
