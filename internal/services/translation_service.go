package services

import (
	"context"
	"strings"
	"sync"

	"github.com/arjunmehta/medilens/internal/domain"
	apperrors "github.com/arjunmehta/medilens/internal/errors"
	"github.com/arjunmehta/medilens/internal/logger"
)

// TranslationService creates per-scan translation sessions.
type TranslationService struct {
	ai         domain.Inferencer
	sourceLang string
}

func NewTranslationService(ai domain.Inferencer, sourceLang string) *TranslationService {
	return &TranslationService{ai: ai, sourceLang: sourceLang}
}

// NewSession captures the displayed records as a fixed-size array for the
// session's lifetime. Entries are keyed by position, not by record id.
func (s *TranslationService) NewSession(records []domain.MedicineRecord) *TranslationSession {
	source := make([]domain.TranslatedFields, len(records))
	for i, rec := range records {
		source[i] = domain.TranslatedFields{
			Name:     rec.MedicineName,
			Purpose:  rec.CommonUses,
			Warnings: strings.Join(rec.Warnings, "; "),
		}
	}
	return &TranslationSession{
		ai:         s.ai,
		sourceLang: s.sourceLang,
		targetLang: s.sourceLang,
		source:     source,
		entries:    make(map[int]domain.TranslatedFields),
	}
}

// TranslationSession holds per-session translation state. The sequence
// token is the sole cancellation mechanism: a batch response whose token
// no longer matches the current one is discarded, and the entry map is
// only ever replaced wholesale.
type TranslationSession struct {
	mu         sync.Mutex
	ai         domain.Inferencer
	sourceLang string
	targetLang string
	seq        uint64
	source     []domain.TranslatedFields
	entries    map[int]domain.TranslatedFields
}

// SetLanguage switches the session's target language. Every call
// invalidates any in-flight batch and drops the previous language's
// entries immediately, so Speak falls through to the ad-hoc tier while
// the new batch is in flight or after it failed. Switching back to the
// source language issues no request.
func (sess *TranslationSession) SetLanguage(ctx context.Context, target string) error {
	sess.mu.Lock()
	sess.seq++
	token := sess.seq
	sess.targetLang = target
	sess.entries = make(map[int]domain.TranslatedFields)
	if target == sess.sourceLang {
		sess.mu.Unlock()
		return nil
	}
	batch := append([]domain.TranslatedFields(nil), sess.source...)
	sess.mu.Unlock()

	translated, err := sess.ai.TranslateBatch(ctx, batch, target)
	if err != nil {
		logger.Warn("Batch translation failed", "target", target, "error", err)
		return apperrors.NewExternalAPIError(err, "translation")
	}
	if !sess.apply(token, translated) {
		logger.Debug("Discarded stale translation batch", "target", target, "token", token)
	}
	return nil
}

// apply installs a resolved batch unless a newer SetLanguage call has
// superseded it.
func (sess *TranslationSession) apply(token uint64, translated []domain.TranslatedFields) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if token != sess.seq {
		return false
	}
	entries := make(map[int]domain.TranslatedFields, len(translated))
	for i, tf := range translated {
		entries[i] = tf
	}
	sess.entries = entries
	return true
}

// Speak resolves the best available text for speech synthesis:
// the resolved batch entry for the record index, else an ad-hoc
// translation of exactly the requested text when a foreign target is
// active, else the text verbatim. The ad-hoc tier must not be skipped:
// doing so would silently speak untranslated text while the UI claims a
// foreign language is active.
func (sess *TranslationSession) Speak(ctx context.Context, fieldText string, recordIndex int, field domain.TranslationField) (string, error) {
	sess.mu.Lock()
	target := sess.targetLang
	entry, resolved := sess.entries[recordIndex]
	sess.mu.Unlock()

	if target == sess.sourceLang {
		return fieldText, nil
	}
	if resolved {
		if text := pickField(entry, field); text != "" {
			return text, nil
		}
	}
	translated, err := sess.ai.TranslateText(ctx, fieldText, target)
	if err != nil {
		// Degraded, not fatal: speak the original rather than nothing.
		logger.Warn("Ad-hoc translation failed", "target", target, "error", err)
		return fieldText, nil
	}
	return translated, nil
}

// TargetLanguage returns the currently selected target language.
func (sess *TranslationSession) TargetLanguage() string {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.targetLang
}

// Entries returns a copy of the resolved translation map.
func (sess *TranslationSession) Entries() map[int]domain.TranslatedFields {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	out := make(map[int]domain.TranslatedFields, len(sess.entries))
	for k, v := range sess.entries {
		out[k] = v
	}
	return out
}

// Close discards the session state when the scan view goes away.
func (sess *TranslationSession) Close() {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.seq++
	sess.entries = make(map[int]domain.TranslatedFields)
	sess.targetLang = sess.sourceLang
}

func pickField(entry domain.TranslatedFields, field domain.TranslationField) string {
	switch field {
	case domain.FieldName:
		return entry.Name
	case domain.FieldPurpose:
		return entry.Purpose
	case domain.FieldWarnings:
		return entry.Warnings
	}
	return ""
}
