package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/medilens/internal/domain"
)

func sampleRecords() []domain.MedicineRecord {
	return []domain.MedicineRecord{
		{MedicineName: "Paracetamol", CommonUses: "Pain relief", Warnings: domain.StringList{"Avoid alcohol"}},
		{MedicineName: "Cetirizine", CommonUses: "Allergy relief", Warnings: domain.StringList{"May cause drowsiness"}},
	}
}

func frenchBatch(entries []domain.TranslatedFields) []domain.TranslatedFields {
	out := make([]domain.TranslatedFields, len(entries))
	for i, e := range entries {
		out[i] = domain.TranslatedFields{
			Name:     "fr:" + e.Name,
			Purpose:  "fr:" + e.Purpose,
			Warnings: "fr:" + e.Warnings,
		}
	}
	return out
}

func TestSessionStartsInSourceLanguage(t *testing.T) {
	svc := NewTranslationService(&stubInferencer{}, "en")
	sess := svc.NewSession(sampleRecords())

	assert.Equal(t, "en", sess.TargetLanguage())
	assert.Empty(t, sess.Entries())
}

func TestSetLanguagePopulatesEntriesByPosition(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, lang string) ([]domain.TranslatedFields, error) {
			assert.Equal(t, "fr", lang)
			return frenchBatch(entries), nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())

	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))

	entries := sess.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "fr:Paracetamol", entries[0].Name)
	assert.Equal(t, "fr:Allergy relief", entries[1].Purpose)
}

func TestSetLanguageBackToSourceClearsSynchronously(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, _ string) ([]domain.TranslatedFields, error) {
			return frenchBatch(entries), nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))
	require.NotEmpty(t, sess.Entries())

	require.NoError(t, sess.SetLanguage(context.Background(), "en"))
	assert.Empty(t, sess.Entries())
}

func TestStaleBatchResponseDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, _ string) ([]domain.TranslatedFields, error) {
			close(started)
			<-release
			return frenchBatch(entries), nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sess.SetLanguage(context.Background(), "fr")
	}()
	<-started

	// Switch back to the source language while the French batch is still
	// in flight, then let it resolve late.
	require.NoError(t, sess.SetLanguage(context.Background(), "en"))
	close(release)
	wg.Wait()

	assert.Empty(t, sess.Entries(), "stale French response must not populate the map")
	assert.Equal(t, "en", sess.TargetLanguage())
}

func TestNewerBatchSupersedesOlder(t *testing.T) {
	frStarted := make(chan struct{})
	releaseFr := make(chan struct{})
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, lang string) ([]domain.TranslatedFields, error) {
			if lang == "fr" {
				close(frStarted)
				<-releaseFr
			}
			out := make([]domain.TranslatedFields, len(entries))
			for i, e := range entries {
				out[i] = domain.TranslatedFields{Name: lang + ":" + e.Name}
			}
			return out, nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sess.SetLanguage(context.Background(), "fr")
	}()
	<-frStarted

	require.NoError(t, sess.SetLanguage(context.Background(), "hi"))
	close(releaseFr)
	wg.Wait()

	entries := sess.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "hi:Paracetamol", entries[0].Name, "late French batch must not overwrite the Hindi map")
}

func TestBatchFailureYieldsNoEntries(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(context.Context, []domain.TranslatedFields, string) ([]domain.TranslatedFields, error) {
			return nil, errors.New("service unavailable")
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())

	err := sess.SetLanguage(context.Background(), "fr")
	require.Error(t, err)
	assert.Empty(t, sess.Entries())
}

func TestSwitchDropsPreviousLanguageEntriesOnFailure(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, lang string) ([]domain.TranslatedFields, error) {
			if lang == "hi" {
				return nil, errors.New("service unavailable")
			}
			return frenchBatch(entries), nil
		},
		textFn: func(_ context.Context, text, lang string) (string, error) {
			return lang + ":" + text, nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))
	require.Error(t, sess.SetLanguage(context.Background(), "hi"))

	// The French map must not survive the switch: Speak goes ad-hoc in
	// the new target rather than serving the old language.
	assert.Empty(t, sess.Entries())
	text, err := sess.Speak(context.Background(), "Paracetamol", 0, domain.FieldName)
	require.NoError(t, err)
	assert.Equal(t, "hi:Paracetamol", text)
}

func TestSwitchDropsPreviousLanguageEntriesWhileInFlight(t *testing.T) {
	hiStarted := make(chan struct{})
	releaseHi := make(chan struct{})
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, lang string) ([]domain.TranslatedFields, error) {
			if lang == "hi" {
				close(hiStarted)
				<-releaseHi
			}
			out := make([]domain.TranslatedFields, len(entries))
			for i, e := range entries {
				out[i] = domain.TranslatedFields{Name: lang + ":" + e.Name}
			}
			return out, nil
		},
		textFn: func(_ context.Context, text, lang string) (string, error) {
			return lang + ":" + text, nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sess.SetLanguage(context.Background(), "hi")
	}()
	<-hiStarted

	text, err := sess.Speak(context.Background(), "Paracetamol", 0, domain.FieldName)
	require.NoError(t, err)
	assert.Equal(t, "hi:Paracetamol", text, "in-flight switch must not serve the old language")

	close(releaseHi)
	wg.Wait()
	assert.Equal(t, "hi:Paracetamol", sess.Entries()[0].Name)
}

func TestSpeakUsesResolvedBatchEntry(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, _ string) ([]domain.TranslatedFields, error) {
			return frenchBatch(entries), nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))

	text, err := sess.Speak(context.Background(), "Paracetamol", 0, domain.FieldName)
	require.NoError(t, err)
	assert.Equal(t, "fr:Paracetamol", text)
	assert.Equal(t, 0, stub.textCalls, "resolved entries must not trigger ad-hoc calls")
}

func TestSpeakAdHocFallbackWhenNoBatchEntry(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(context.Context, []domain.TranslatedFields, string) ([]domain.TranslatedFields, error) {
			return nil, errors.New("batch failed")
		},
		textFn: func(_ context.Context, text, lang string) (string, error) {
			return lang + ":" + text, nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	_ = sess.SetLanguage(context.Background(), "fr")

	// Target is foreign but no batch entry resolved: the ad-hoc tier must
	// run rather than speaking the raw source text.
	text, err := sess.Speak(context.Background(), "Avoid alcohol", 0, domain.FieldWarnings)
	require.NoError(t, err)
	assert.Equal(t, "fr:Avoid alcohol", text)
	assert.Equal(t, 1, stub.textCalls)
}

func TestSpeakVerbatimInSourceLanguage(t *testing.T) {
	stub := &stubInferencer{}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())

	text, err := sess.Speak(context.Background(), "Pain relief", 0, domain.FieldPurpose)
	require.NoError(t, err)
	assert.Equal(t, "Pain relief", text)
	assert.Equal(t, 0, stub.textCalls)
}

func TestSpeakFailsSoftToOriginalText(t *testing.T) {
	stub := &stubInferencer{
		textFn: func(context.Context, string, string) (string, error) {
			return "", errors.New("translation down")
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))

	text, err := sess.Speak(context.Background(), "Cetirizine", 5, domain.FieldName)
	require.NoError(t, err)
	assert.Equal(t, "Cetirizine", text)
}

func TestCloseDiscardsState(t *testing.T) {
	stub := &stubInferencer{
		batchFn: func(_ context.Context, entries []domain.TranslatedFields, _ string) ([]domain.TranslatedFields, error) {
			return frenchBatch(entries), nil
		},
	}
	sess := NewTranslationService(stub, "en").NewSession(sampleRecords())
	require.NoError(t, sess.SetLanguage(context.Background(), "fr"))

	sess.Close()
	assert.Empty(t, sess.Entries())
	assert.Equal(t, "en", sess.TargetLanguage())
}
