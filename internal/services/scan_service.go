package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arjunmehta/medilens/internal/domain"
	apperrors "github.com/arjunmehta/medilens/internal/errors"
	"github.com/arjunmehta/medilens/internal/logger"
)

// ScanService orchestrates one scan: inference, normalization (which
// attaches per-record assessments), the cross-record interaction check,
// the auto-reminder attempt, and persistence. Normalization always
// completes before scoring or analysis run.
type ScanService struct {
	ai           domain.Inferencer
	normalizer   *NormalizerService
	interactions *InteractionService
	reminders    *ReminderService
	store        domain.ScanStore
}

func NewScanService(ai domain.Inferencer, normalizer *NormalizerService, interactions *InteractionService, reminders *ReminderService, store domain.ScanStore) *ScanService {
	return &ScanService{
		ai:           ai,
		normalizer:   normalizer,
		interactions: interactions,
		reminders:    reminders,
		store:        store,
	}
}

// AnalyzeScan runs the full pipeline for one photographed label. Only the
// inference call itself can fail the scan; parse, interaction, reminder
// and storage problems degrade without aborting.
func (s *ScanService) AnalyzeScan(ctx context.Context, imageData []byte) (*domain.ScanResult, error) {
	if len(imageData) == 0 {
		return nil, apperrors.NewValidationError("Image data is empty")
	}

	rawText, err := s.ai.AnalyzeMedicationImage(ctx, imageData)
	if err != nil {
		return nil, apperrors.NewExternalAPIError(err, "inference")
	}

	records := s.normalizer.Normalize(rawText)
	result := &domain.ScanResult{
		ID:        uuid.NewString(),
		Records:   records,
		CreatedAt: time.Now(),
	}

	if len(records) >= 2 {
		report := s.interactions.Analyze(ctx, records)
		result.Interaction = &report
	}

	if trigger := s.reminders.AutoSchedule(ctx, records); trigger != nil {
		logger.Info("Auto reminder created from recommended time",
			"scan_id", result.ID,
			"medicine", trigger.MedicineName,
			"offset_seconds", trigger.OffsetSeconds)
	}

	if err := s.store.SaveScan(ctx, result); err != nil {
		logger.Error("Failed to persist scan", "scan_id", result.ID, "error", err)
	}

	return result, nil
}

// RecentScans lists stored scans newest-first; the storage collaborator
// owns the cap.
func (s *ScanService) RecentScans(ctx context.Context) ([]domain.ScanResult, error) {
	scans, err := s.store.RecentScans(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return scans, nil
}

// SaveActiveMedication adds a record to the user's active medication list.
func (s *ScanService) SaveActiveMedication(ctx context.Context, rec domain.MedicineRecord) error {
	if err := s.store.SaveActiveMedication(ctx, rec); err != nil {
		return apperrors.NewStorageError(err)
	}
	return nil
}

// ActiveMedications lists the user's active medication records.
func (s *ScanService) ActiveMedications(ctx context.Context) ([]domain.MedicineRecord, error) {
	records, err := s.store.ActiveMedications(ctx)
	if err != nil {
		return nil, apperrors.NewStorageError(err)
	}
	return records, nil
}
