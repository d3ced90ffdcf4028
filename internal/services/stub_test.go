package services

import (
	"context"
	"sync"

	"github.com/arjunmehta/medilens/internal/domain"
)

// stubInferencer lets each test control exactly the inference behavior it
// needs; unset functions return zero values.
type stubInferencer struct {
	mu               sync.Mutex
	analyzeFn        func(ctx context.Context, imageData []byte) (string, error)
	interactionsFn   func(ctx context.Context, summary string) (string, error)
	batchFn          func(ctx context.Context, entries []domain.TranslatedFields, targetLang string) ([]domain.TranslatedFields, error)
	textFn           func(ctx context.Context, text, targetLang string) (string, error)
	interactionCalls int
	textCalls        int
}

func (s *stubInferencer) AnalyzeMedicationImage(ctx context.Context, imageData []byte) (string, error) {
	if s.analyzeFn != nil {
		return s.analyzeFn(ctx, imageData)
	}
	return "", nil
}

func (s *stubInferencer) CheckInteractions(ctx context.Context, summary string) (string, error) {
	s.mu.Lock()
	s.interactionCalls++
	s.mu.Unlock()
	if s.interactionsFn != nil {
		return s.interactionsFn(ctx, summary)
	}
	return "", nil
}

func (s *stubInferencer) TranslateBatch(ctx context.Context, entries []domain.TranslatedFields, targetLang string) ([]domain.TranslatedFields, error) {
	if s.batchFn != nil {
		return s.batchFn(ctx, entries, targetLang)
	}
	return entries, nil
}

func (s *stubInferencer) TranslateText(ctx context.Context, text, targetLang string) (string, error) {
	s.mu.Lock()
	s.textCalls++
	s.mu.Unlock()
	if s.textFn != nil {
		return s.textFn(ctx, text, targetLang)
	}
	return text, nil
}

func (s *stubInferencer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interactionCalls
}

// stubGateway is a controllable notification collaborator.
type stubGateway struct {
	mu          sync.Mutex
	hasPerm     bool
	grantOnAsk  bool
	scheduleErr error
	scheduled   []domain.ScheduledTrigger
}

func (g *stubGateway) HasPermission(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasPerm
}

func (g *stubGateway) RequestPermission(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hasPerm = g.grantOnAsk
	return g.grantOnAsk, nil
}

func (g *stubGateway) Schedule(ctx context.Context, trigger domain.ScheduledTrigger) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.scheduleErr != nil {
		return g.scheduleErr
	}
	g.scheduled = append(g.scheduled, trigger)
	return nil
}

func (g *stubGateway) triggers() []domain.ScheduledTrigger {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.ScheduledTrigger, len(g.scheduled))
	copy(out, g.scheduled)
	return out
}

// stubStore records saved scans in memory.
type stubStore struct {
	mu      sync.Mutex
	scans   []domain.ScanResult
	meds    []domain.MedicineRecord
	saveErr error
}

func (s *stubStore) SaveScan(ctx context.Context, scan *domain.ScanResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.scans = append([]domain.ScanResult{*scan}, s.scans...)
	return nil
}

func (s *stubStore) RecentScans(ctx context.Context) ([]domain.ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScanResult, len(s.scans))
	copy(out, s.scans)
	return out, nil
}

func (s *stubStore) SaveActiveMedication(ctx context.Context, record domain.MedicineRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meds = append(s.meds, record)
	return nil
}

func (s *stubStore) ActiveMedications(ctx context.Context) ([]domain.MedicineRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MedicineRecord, len(s.meds))
	copy(out, s.meds)
	return out, nil
}
