package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"campus-quiz-service/internal/app"
	"campus-quiz-service/internal/domain"
)

// Handler serves the stateless REST surface: login, subject listing,
// leaderboard, performance, and the resume-point probe.
type Handler struct {
	service *app.SessionService
}

func NewHandler(service *app.SessionService) *Handler {
	return &Handler{service: service}
}

// Register attaches all REST routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/login", h.Login)
	mux.HandleFunc("/api/quizzes", h.Subjects)
	mux.HandleFunc("/api/leaderboard", h.Leaderboard)
	mux.HandleFunc("/api/performance", h.Performance)
	mux.HandleFunc("/api/resume", h.Resume)
}

type loginRequest struct {
	MatricNumber string `json:"matricNumber"`
	Department   string `json:"department"`
	Level        string `json:"level"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MatricNumber == "" || req.Department == "" {
		writeError(w, http.StatusBadRequest, "missing fields")
		return
	}
	user, err := h.service.Login(r.Context(), req.MatricNumber, req.Department, req.Level)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) Subjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.service.ListSubjects(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) Performance(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.Performance(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

// Resume tells the home page whether the user has an unfinished attempt.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user")
		return
	}
	snap, err := h.service.PendingResume(r.Context(), userID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSubjectNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyQuizSet),
		errors.Is(err, domain.ErrSubjectMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
