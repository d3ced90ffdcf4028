package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/arjunmehta/medilens/internal/domain"
	"github.com/arjunmehta/medilens/internal/logger"
	"github.com/arjunmehta/medilens/internal/services"
)

// Server is the thin HTTP surface over the engine. Handlers only decode,
// delegate to services and encode; no policy lives here.
type Server struct {
	router       *mux.Router
	httpServer   *http.Server
	scans        *services.ScanService
	reminders    *services.ReminderService
	translations *services.TranslationService

	mu           sync.Mutex
	sessions     map[string]*services.TranslationSession
	sessionOrder []string
}

// Open sessions carry the same bound as the scan history; a client that
// never closes its scan views loses the oldest session instead of
// growing the map without limit.
const maxOpenSessions = 20

func New(scans *services.ScanService, reminders *services.ReminderService, translations *services.TranslationService) *Server {
	s := &Server{
		router:       mux.NewRouter(),
		scans:        scans,
		reminders:    reminders,
		translations: translations,
		sessions:     make(map[string]*services.TranslationSession),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/scans", s.handleCreateScan).Methods(http.MethodPost)
	api.HandleFunc("/scans", s.handleRecentScans).Methods(http.MethodGet)
	api.HandleFunc("/medications", s.handleActiveMedications).Methods(http.MethodGet)
	api.HandleFunc("/medications", s.handleSaveMedication).Methods(http.MethodPost)
	api.HandleFunc("/reminders", s.handleCreateReminder).Methods(http.MethodPost)
	api.HandleFunc("/tones", s.handleTones).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}/language", s.handleSetLanguage).Methods(http.MethodPut)
	api.HandleFunc("/sessions/{id}/speak", s.handleSpeak).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods(http.MethodDelete)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("HTTP server listening", "addr", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// session returns the translation session for a scan id, if one is open.
func (s *Server) session(id string) (*services.TranslationSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) openSession(id string, records []domain.MedicineRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessionOrder = append(s.sessionOrder, id)
	}
	s.sessions[id] = s.translations.NewSession(records)
	for len(s.sessionOrder) > maxOpenSessions {
		oldest := s.sessionOrder[0]
		s.sessionOrder = s.sessionOrder[1:]
		if sess, ok := s.sessions[oldest]; ok {
			sess.Close()
			delete(s.sessions, oldest)
		}
	}
}

func (s *Server) closeSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.Close()
	delete(s.sessions, id)
	for i, sid := range s.sessionOrder {
		if sid == id {
			s.sessionOrder = append(s.sessionOrder[:i], s.sessionOrder[i+1:]...)
			break
		}
	}
}
