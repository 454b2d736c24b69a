package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"district-exam-service/internal/app"
	"district-exam-service/internal/domain"
)

// Handler exposes the exam engine over REST. It only translates typed
// domain failures to status codes; all rules live in the service.
type Handler struct {
	service    *app.ExamService
	boards     app.LeaderboardSource
	adminToken string
}

// NewHandler wires the REST surface. boards is usually a cache in front
// of the service; pass the service itself to skip caching.
func NewHandler(service *app.ExamService, boards app.LeaderboardSource, adminToken string) *Handler {
	if boards == nil {
		boards = service
	}
	return &Handler{service: service, boards: boards, adminToken: adminToken}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /register", h.register)
	mux.HandleFunc("GET /me", h.withUser(h.me))
	mux.HandleFunc("GET /exams", h.listExams)
	mux.HandleFunc("GET /exams/{id}", h.getExam)
	mux.HandleFunc("GET /exams/{id}/questions", h.withUser(h.questions))
	mux.HandleFunc("POST /exams/{id}/submit", h.withUser(h.submit))
	mux.HandleFunc("GET /exams/{id}/review", h.withUser(h.review))
	mux.HandleFunc("GET /exams/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("POST /admin/import", h.withAdmin(h.importExam))
	mux.HandleFunc("GET /admin/metrics", h.withAdmin(h.metrics))
}

type registerRequest struct {
	Name     string `json:"name"`
	District string `json:"district"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	user, err := h.service.Register(r.Context(), req.Name, req.District)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"userId": user.ID})
}

func (h *Handler) me(w http.ResponseWriter, _ *http.Request, user domain.User) {
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) listExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.service.ListExams(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exams)
}

func (h *Handler) getExam(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDFrom(w, r)
	if !ok {
		return
	}
	exam, err := h.service.GetExam(r.Context(), examID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exam)
}

func (h *Handler) questions(w http.ResponseWriter, r *http.Request, user domain.User) {
	examID, ok := examIDFrom(w, r)
	if !ok {
		return
	}
	questions, err := h.service.PublicQuestions(r.Context(), user.ID, examID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

type submitRequest struct {
	Answers json.RawMessage `json:"answers"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, user domain.User) {
	examID, ok := examIDFrom(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	answers, err := decodeAnswers(req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}

	attempt, err := h.service.Submit(r.Context(), user.ID, examID, answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"score": attempt.Score})
}

// decodeAnswers validates the submitted-answers shape: a JSON array of
// strings or nulls, positionally aligned to question order. A null or
// empty element means unanswered.
func decodeAnswers(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, &domain.ValidationError{Field: "answers", Message: "must be an array"}
	}
	var values []*string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, &domain.ValidationError{Field: "answers", Message: "must be an array of strings or nulls"}
	}
	// A JSON null decodes into a nil slice without error; it is not an
	// array and must not spend the user's attempt.
	if values == nil {
		return nil, &domain.ValidationError{Field: "answers", Message: "must be an array"}
	}
	answers := make([]string, len(values))
	for i, v := range values {
		if v != nil {
			answers[i] = *v
		}
	}
	return answers, nil
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, user domain.User) {
	examID, ok := examIDFrom(w, r)
	if !ok {
		return
	}
	review, err := h.service.Review(r.Context(), user.ID, examID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	examID, ok := examIDFrom(w, r)
	if !ok {
		return
	}
	rows, err := h.boards.Leaderboard(r.Context(), examID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (h *Handler) importExam(w http.ResponseWriter, r *http.Request) {
	var imp domain.ExamImport
	if err := json.NewDecoder(r.Body).Decode(&imp); err != nil {
		writeError(w, &domain.ValidationError{Field: "body", Message: "malformed JSON"})
		return
	}
	examID, err := h.service.Import(r.Context(), imp)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "exam imported", "examId": examID})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.service.Metrics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// withUser resolves the X-User-ID header to a registered user before
// calling next.
func (h *Handler) withUser(next func(http.ResponseWriter, *http.Request, domain.User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "user ID required"})
			return
		}
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid user ID"})
			return
		}
		user, err := h.service.Profile(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		next(w, r, user)
	}
}

func (h *Handler) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if h.adminToken == "" || token != h.adminToken {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		next(w, r)
	}
}

func examIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	examID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "exam not found"})
		return 0, false
	}
	return examID, true
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
	Field  string `json:"field,omitempty"`
}

// writeError maps typed domain failures onto status codes. Every
// rejection keeps a distinct body so clients can show a specific message.
func writeError(w http.ResponseWriter, err error) {
	var stateErr *domain.StateError
	var validationErr *domain.ValidationError

	switch {
	case errors.Is(err, domain.ErrExamNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrAttemptNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrAlreadySubmitted):
		writeJSON(w, http.StatusConflict, errorBody{Error: "you have already submitted this exam"})
	case errors.As(err, &stateErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: stateErr.Error(), Reason: stateErr.Reason})
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: validationErr.Error(), Field: validationErr.Field})
	default:
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
