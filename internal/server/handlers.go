package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/arjunmehta/medilens/internal/domain"
	apperrors "github.com/arjunmehta/medilens/internal/errors"
	"github.com/arjunmehta/medilens/internal/logger"
)

const maxUploadBytes = 10 << 20 // 10 MB

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateScan accepts an image as multipart field "image" or as the
// raw request body, runs the scan pipeline and opens a translation
// session for the result.
func (s *Server) handleCreateScan(w http.ResponseWriter, r *http.Request) {
	imageData, err := readImage(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read image upload")
		return
	}

	result, err := s.scans.AnalyzeScan(r.Context(), imageData)
	if err != nil {
		logger.Error("Scan failed", "error", err)
		writeError(w, http.StatusBadGateway, "scan analysis failed")
		return
	}

	s.openSession(result.ID, result.Records)
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleRecentScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.scans.RecentScans(r.Context())
	if err != nil {
		logger.Error("Failed to list scans", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load scan history")
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleActiveMedications(w http.ResponseWriter, r *http.Request) {
	records, err := s.scans.ActiveMedications(r.Context())
	if err != nil {
		logger.Error("Failed to list medications", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load medications")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleSaveMedication(w http.ResponseWriter, r *http.Request) {
	var rec domain.MedicineRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid medication payload")
		return
	}
	if err := s.scans.SaveActiveMedication(r.Context(), rec); err != nil {
		logger.Error("Failed to save medication", "error", err)
		writeError(w, http.StatusInternalServerError, "could not save medication")
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// handleCreateReminder schedules an explicit (non-auto) reminder. A
// permission failure is answered distinctly from a scheduling failure so
// the client can prompt for permission instead of showing a generic error.
func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req domain.ReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid reminder payload")
		return
	}
	if req.Hour < 0 || req.Hour > 23 || req.Minute < 0 || req.Minute > 59 {
		writeError(w, http.StatusBadRequest, "hour or minute out of range")
		return
	}
	req.Auto = false

	trigger, err := s.reminders.Schedule(r.Context(), req)
	if err != nil {
		if apperrors.IsPermission(err) {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"error":  "notification permission required",
				"action": "request_permission",
			})
			return
		}
		logger.Error("Failed to schedule reminder", "error", err)
		writeError(w, http.StatusBadGateway, "could not schedule reminder")
		return
	}
	writeJSON(w, http.StatusCreated, trigger)
}

func (s *Server) handleTones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reminders.Tones())
}

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scan session")
		return
	}
	var req languageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Language == "" {
		writeError(w, http.StatusBadRequest, "invalid language payload")
		return
	}
	if err := sess.SetLanguage(r.Context(), req.Language); err != nil {
		// The display falls back to the original fields; tell the client
		// translation specifically could not be completed.
		writeError(w, http.StatusBadGateway, "could not translate records")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"language": sess.TargetLanguage(),
		"entries":  sess.Entries(),
	})
}

type speakRequest struct {
	Text        string                  `json:"text"`
	RecordIndex int                     `json:"record_index"`
	Field       domain.TranslationField `json:"field"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "unknown scan session")
		return
	}
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid speak payload")
		return
	}
	text, err := sess.Speak(r.Context(), req.Text, req.RecordIndex, req.Field)
	if err != nil {
		writeError(w, http.StatusBadGateway, "could not resolve speech text")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"text":     text,
		"language": sess.TargetLanguage(),
	})
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	s.closeSession(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func readImage(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err == nil {
		file, _, err := r.FormFile("image")
		if err == nil {
			defer file.Close()
			return io.ReadAll(file)
		}
	}
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
