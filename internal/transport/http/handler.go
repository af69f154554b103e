package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"contest-service/internal/app"
	"contest-service/internal/domain"
	"contest-service/internal/metrics"
)

// Handler exposes the contest use cases over HTTP.
type Handler struct {
	service  *app.ContestService
	auth     *AuthService
	metrics  *metrics.Metrics
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewHandler(service *app.ContestService, auth *AuthService, m *metrics.Metrics, log logrus.FieldLogger) *Handler {
	return &Handler{
		service: service,
		auth:    auth,
		metrics: m,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	r.Use(h.instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(h.auth.Middleware)
		r.Post("/contests", h.createContest)
		r.Get("/contests", h.listContests)
		r.Get("/contests/my-contests", h.myContests)
		r.Get("/contests/{id}", h.getContest)
		r.Get("/contests/{id}/attempt", h.contestForAttempt)
		r.Get("/contests/{id}/questions", h.contestQuestions)
		r.Post("/contests/{id}/submit", h.submit)
		r.Get("/contests/{id}/results", h.results)
		r.Get("/contests/{id}/results/live", h.resultsLive)
	})
	return r
}

// instrument records request metrics and logs non-2xx outcomes.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.RequestCounter.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Inc()
		h.metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		if ww.Status() >= 500 {
			h.log.WithFields(logrus.Fields{
				"route":  route,
				"method": r.Method,
				"status": ww.Status(),
			}).Error("request failed")
		}
	})
}

func (h *Handler) createContest(w http.ResponseWriter, r *http.Request) {
	var req createContestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "invalid json body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "invalid request", fieldErrors(err))
		return
	}
	contest, err := h.service.CreateContest(r.Context(), identityFrom(r.Context()), req.draft())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusCreated, map[string]interface{}{
		"contest": h.contestDetail(contest),
	})
}

func (h *Handler) listContests(w http.ResponseWriter, r *http.Request) {
	contests, err := h.service.ActiveContests(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"contests": h.summaries(contests),
		"total":    len(contests),
	})
}

func (h *Handler) myContests(w http.ResponseWriter, r *http.Request) {
	contests, err := h.service.MyContests(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"contests": h.summaries(contests),
		"total":    len(contests),
	})
}

func (h *Handler) getContest(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	contest, err := h.service.GetContest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"contest": h.contestDetail(contest),
	})
}

func (h *Handler) contestForAttempt(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	ident := identityFrom(r.Context())
	contest, status, err := h.service.ContestForAttempt(r.Context(), ident.UserID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	detail := h.contestDetail(contest)
	detail.Questions = nil // the attempt view shows terms and counts, not questions
	writeData(w, http.StatusOK, map[string]interface{}{
		"contest":     detail,
		"user_status": status,
	})
}

func (h *Handler) contestQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	ident := identityFrom(r.Context())
	questions, err := h.service.QuestionsForAttempt(r.Context(), ident.UserID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"questions":       questions,
		"total_questions": len(questions),
	})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.Submissions.WithLabelValues("validation").Inc()
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "invalid json body", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		h.metrics.Submissions.WithLabelValues("validation").Inc()
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "invalid request", fieldErrors(err))
		return
	}

	ident := identityFrom(r.Context())
	attempt, results, err := h.service.Submit(r.Context(), ident.UserID, id, req.submissions())
	if err != nil {
		h.metrics.Submissions.WithLabelValues(submitOutcome(err)).Inc()
		writeDomainError(w, err)
		return
	}

	h.metrics.Submissions.WithLabelValues("ok").Inc()
	if attempt.IsWinning() {
		h.metrics.WinnerSignals.Inc()
	}
	writeData(w, http.StatusOK, map[string]interface{}{
		"attempt": attemptView{Attempt: attempt, Percentage: attempt.Percentage()},
		"results": results,
	})
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	id, ok := contestID(w, r)
	if !ok {
		return
	}
	ranking, err := h.service.Rankings(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeData(w, http.StatusOK, ranking)
}

func contestID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, CodeNotFound, "contest not found", nil)
		return 0, false
	}
	return id, true
}

func submitOutcome(err error) string {
	switch {
	case err == domain.ErrAttemptsExhausted, err == domain.ErrContestNotActive:
		return "forbidden"
	case err == domain.ErrForeignQuestion:
		return "rejected"
	case err == domain.ErrContestNotFound:
		return "not_found"
	default:
		if _, ok := domain.AsValidationError(err); ok {
			return "validation"
		}
		return "error"
	}
}

// attemptView decorates the attempt with its derived percentage.
type attemptView struct {
	domain.Attempt
	Percentage float64 `json:"percentage"`
}

type contestDetail struct {
	domain.Contest
	QuestionsCount int  `json:"questions_count"`
	TermsCount     int  `json:"terms_count"`
	IsLive         bool `json:"is_live"`
}

func (h *Handler) contestDetail(c domain.Contest) contestDetail {
	return contestDetail{
		Contest:        c,
		QuestionsCount: len(c.Questions),
		TermsCount:     len(c.Terms),
		IsLive:         c.IsLive(h.now()),
	}
}

type contestSummary struct {
	ID          int64     `json:"id"`
	CelebrityID int64     `json:"celebrity_id"`
	PlatformID  int64     `json:"platform_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	MaxAttempts int       `json:"max_attempts"`
	IsLive      bool      `json:"is_live"`
}

func (h *Handler) summaries(contests []domain.Contest) []contestSummary {
	now := h.now()
	out := make([]contestSummary, 0, len(contests))
	for _, c := range contests {
		out = append(out, contestSummary{
			ID:          c.ID,
			CelebrityID: c.CelebrityID,
			PlatformID:  c.PlatformID,
			Title:       c.Title,
			Description: c.Description,
			Image:       c.Image,
			StartDate:   c.StartDate,
			EndDate:     c.EndDate,
			MaxAttempts: c.MaxAttempts,
			IsLive:      c.IsLive(now),
		})
	}
	return out
}
