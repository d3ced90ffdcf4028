package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arjunmehta/medilens/internal/domain"
	"github.com/arjunmehta/medilens/internal/services"
)

type fakeInferencer struct {
	scanReply string
}

func (f *fakeInferencer) AnalyzeMedicationImage(context.Context, []byte) (string, error) {
	return f.scanReply, nil
}

func (f *fakeInferencer) CheckInteractions(context.Context, string) (string, error) {
	return `{"has_conflict": false, "severity": "none", "description": "No known interaction."}`, nil
}

func (f *fakeInferencer) TranslateBatch(_ context.Context, entries []domain.TranslatedFields, lang string) ([]domain.TranslatedFields, error) {
	out := make([]domain.TranslatedFields, len(entries))
	for i, e := range entries {
		out[i] = domain.TranslatedFields{Name: lang + ":" + e.Name, Purpose: lang + ":" + e.Purpose, Warnings: lang + ":" + e.Warnings}
	}
	return out, nil
}

func (f *fakeInferencer) TranslateText(_ context.Context, text, lang string) (string, error) {
	return lang + ":" + text, nil
}

type fakeGateway struct{ granted bool }

func (g *fakeGateway) HasPermission(context.Context) bool { return g.granted }

func (g *fakeGateway) RequestPermission(context.Context) (bool, error) { return g.granted, nil }
func (g *fakeGateway) Schedule(context.Context, domain.ScheduledTrigger) error {
	return nil
}

type fakeStore struct{ scans []domain.ScanResult }

func (s *fakeStore) SaveScan(_ context.Context, scan *domain.ScanResult) error {
	s.scans = append(s.scans, *scan)
	return nil
}

func (s *fakeStore) RecentScans(context.Context) ([]domain.ScanResult, error) {
	return s.scans, nil
}

func (s *fakeStore) SaveActiveMedication(context.Context, domain.MedicineRecord) error {
	return nil
}

func (s *fakeStore) ActiveMedications(context.Context) ([]domain.MedicineRecord, error) {
	return nil, nil
}

func newTestServer(granted bool) *Server {
	ai := &fakeInferencer{scanReply: `[{"medicine_name": "Paracetamol", "common_uses": "Pain relief"}]`}
	fraud := services.NewFraudService()
	reminders := services.NewReminderService(&fakeGateway{granted: granted}, nil, nil)
	scans := services.NewScanService(ai, services.NewNormalizerService(fraud), services.NewInteractionService(ai), reminders, &fakeStore{})
	return New(scans, reminders, services.NewTranslationService(ai, "en"))
}

func TestCreateReminderPermissionDenied(t *testing.T) {
	srv := newTestServer(false)

	body, _ := json.Marshal(domain.ReminderRequest{MedicineName: "X", Hour: 8, Minute: 0, ToneID: "standard"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "request_permission", resp["action"])
}

func TestCreateReminderGranted(t *testing.T) {
	srv := newTestServer(true)

	body, _ := json.Marshal(domain.ReminderRequest{MedicineName: "X", Hour: 8, Minute: 0, ToneID: "standard"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var trigger domain.ScheduledTrigger
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trigger))
	assert.Equal(t, "standard", trigger.Tone.ID)
	assert.False(t, trigger.AutoScheduled)
}

func TestCreateReminderRejectsBadTime(t *testing.T) {
	srv := newTestServer(true)

	body, _ := json.Marshal(domain.ReminderRequest{MedicineName: "X", Hour: 25, Minute: 0})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/reminders", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanThenTranslateAndSpeak(t *testing.T) {
	srv := newTestServer(true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader([]byte("jpeg-bytes")))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result domain.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotEmpty(t, result.ID)
	require.Len(t, result.Records, 1)

	langBody := bytes.NewReader([]byte(`{"language": "hi"}`))
	req = httptest.NewRequest(http.MethodPut, "/api/v1/sessions/"+result.ID+"/language", langBody)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	speakBody := bytes.NewReader([]byte(`{"text": "Paracetamol", "record_index": 0, "field": "name"}`))
	req = httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+result.ID+"/speak", speakBody)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var speak map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &speak))
	assert.Equal(t, "hi:Paracetamol", speak["text"])
	assert.Equal(t, "hi", speak["language"])
}

func TestSessionCapEvictsOldest(t *testing.T) {
	srv := newTestServer(true)

	var first string
	for i := 0; i <= maxOpenSessions; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader([]byte("jpeg")))
		rec := httptest.NewRecorder()
		srv.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var result domain.ScanResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		if i == 0 {
			first = result.ID
		}
	}

	_, open := srv.session(first)
	assert.False(t, open, "oldest session must be evicted past the cap")

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Len(t, srv.sessions, maxOpenSessions)
	assert.Len(t, srv.sessionOrder, maxOpenSessions)
}

func TestSpeakUnknownSession(t *testing.T) {
	srv := newTestServer(true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/nope/speak", bytes.NewReader([]byte(`{"text": "x"}`)))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCloseSession(t *testing.T) {
	srv := newTestServer(true)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scans", bytes.NewReader([]byte("jpeg")))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var result domain.ScanResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+result.ID, nil)
	rec = httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, open := srv.session(result.ID)
	assert.False(t, open)
}
