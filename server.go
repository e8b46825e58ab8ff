package main

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server owns the HTTP surface. All state lives in the sqlite stores; the
// server itself is stateless between requests.
type Server struct {
	echo *echo.Echo
	db   *sql.DB
	cfg  Config
}

func NewServer(cfg Config, db *sql.DB) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Printf("http %s %s status=%d duration=%s",
				c.Request().Method, c.Request().RequestURI, c.Response().Status, time.Since(start).Round(time.Millisecond))
			return err
		}
	})

	s := &Server{echo: e, db: db, cfg: cfg}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	api := s.echo.Group("/api")
	api.POST("/notes", s.handleCreateNote)
	api.GET("/notes", s.handleListNotes)
	api.GET("/notes/:id", s.handleGetNote)
	api.PUT("/notes/:id/domain", s.handleCorrectNoteDomain)
	api.GET("/tasks", s.handleListTasks)
	api.POST("/tasks/:id/complete", s.handleCompleteTask)
	api.GET("/plan/daily", s.handleDailyPlan)
	api.GET("/questions/pending", s.handlePendingQuestions)
	api.POST("/questions/:id/answer", s.handleAnswerQuestion)
	api.POST("/questions/:id/skip", s.handleSkipQuestion)
	api.GET("/thresholds", s.handleListThresholds)
	api.POST("/thresholds/:name/adjust", s.handleAdjustThreshold)
	api.GET("/domains", s.handleListDomains)
	api.POST("/domains", s.handleRegisterDomain)
	api.GET("/weights", s.handleListWeights)
	api.GET("/stats/decisions", s.handleDecisionStats)
	api.GET("/stats/categories", s.handleCategoryStats)
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.HTTPHost, s.cfg.HTTPPort)
	log.Printf("HTTP listening on %s", addr)
	return s.echo.Start(addr)
}

// --- DTOs ---

type noteJSON struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Domain    string   `json:"domain"`
	Keywords  []string `json:"keywords"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
}

func toNoteJSON(n Note) noteJSON {
	return noteJSON{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Domain:    n.Domain,
		Keywords:  splitKeywords(n.Keywords),
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		UpdatedAt: n.UpdatedAt.Format(time.RFC3339),
	}
}

type taskJSON struct {
	ID               int64  `json:"id"`
	NoteID           int64  `json:"note_id"`
	Text             string `json:"text"`
	Action           string `json:"action"`
	Priority         string `json:"priority"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	Domain           string `json:"domain"`
	Status           string `json:"status"`
	CreatedAt        string `json:"created_at"`
}

func toTaskJSON(t Task) taskJSON {
	return taskJSON{
		ID:               t.ID,
		NoteID:           t.NoteID,
		Text:             t.Text,
		Action:           t.Action,
		Priority:         t.Priority,
		EstimatedMinutes: t.EstimatedMinutes,
		Domain:           t.Domain,
		Status:           t.Status,
		CreatedAt:        t.CreatedAt.Format(time.RFC3339),
	}
}

type decisionJSON struct {
	Outcome           string  `json:"outcome"`
	Kind              string  `json:"kind"`
	Label             string  `json:"label"`
	RawConfidence     float64 `json:"raw_confidence"`
	BlendedConfidence float64 `json:"blended_confidence"`
	QuestionID        int64   `json:"question_id,omitempty"`
}

func toDecisionJSON(d Decision) decisionJSON {
	return decisionJSON{
		Outcome:           string(d.Outcome),
		Kind:              d.Kind,
		Label:             d.Label,
		RawConfidence:     d.RawConfidence,
		BlendedConfidence: d.BlendedConfidence,
		QuestionID:        d.QuestionID,
	}
}

type questionJSON struct {
	ID             int64    `json:"id"`
	Type           string   `json:"type"`
	Question       string   `json:"question"`
	SubjectType    string   `json:"subject_type"`
	SubjectID      int64    `json:"subject_id"`
	SubjectText    string   `json:"subject_text"`
	CandidateLabel string   `json:"candidate_label"`
	Options        []string `json:"options"`
	Status         string   `json:"status"`
	Answer         string   `json:"answer,omitempty"`
	CreatedAt      string   `json:"created_at"`
}

func toQuestionJSON(q ClarificationQuestion) questionJSON {
	var options []string
	if strings.TrimSpace(q.Options) != "" {
		options = strings.Split(q.Options, ",")
	}
	return questionJSON{
		ID:             q.ID,
		Type:           q.QuestionType,
		Question:       q.QuestionText,
		SubjectType:    q.SubjectType,
		SubjectID:      q.SubjectID,
		SubjectText:    q.SubjectText,
		CandidateLabel: q.CandidateLabel,
		Options:        options,
		Status:         q.Status,
		Answer:         q.Answer,
		CreatedAt:      q.CreatedAt.Format(time.RFC3339),
	}
}

type domainJSON struct {
	ID               int64    `json:"id"`
	Path             string   `json:"path"`
	Name             string   `json:"name"`
	Color            string   `json:"color"`
	TargetPercentage float64  `json:"target_percentage"`
	LearnedKeywords  []string `json:"learned_keywords"`
}

func toDomainJSON(d Domain) domainJSON {
	return domainJSON{
		ID:               d.ID,
		Path:             d.Path,
		Name:             d.Name,
		Color:            d.Color,
		TargetPercentage: d.TargetPercentage,
		LearnedKeywords:  splitKeywords(d.LearnedKeywords),
	}
}

// --- Handlers ---

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type createNoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createNoteResponse struct {
	Note              noteJSON     `json:"note"`
	Routing           decisionJSON `json:"routing"`
	Tasks             []taskJSON   `json:"tasks"`
	SkippedDuplicates int          `json:"skipped_duplicates"`
	PendingQuestions  []int64      `json:"pending_questions"`
}

func (s *Server) handleCreateNote(c echo.Context) error {
	var req createNoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Content) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	result, err := ProcessNote(s.db, s.cfg, req.Title, req.Content)
	if err != nil {
		log.Printf("create note error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}

	resp := createNoteResponse{
		Note:              toNoteJSON(result.Note),
		Routing:           toDecisionJSON(result.Routing),
		Tasks:             []taskJSON{},
		SkippedDuplicates: result.SkippedDupes,
		PendingQuestions:  result.PendingQuestions,
	}
	if resp.PendingQuestions == nil {
		resp.PendingQuestions = []int64{}
	}
	for _, t := range result.Tasks {
		resp.Tasks = append(resp.Tasks, toTaskJSON(t))
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) handleListNotes(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = parsed
	}

	notes, err := ListNotes(s.db, c.QueryParam("domain"), limit)
	if err != nil {
		log.Printf("list notes error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing notes failed")
	}

	out := make([]noteJSON, 0, len(notes))
	for _, n := range notes {
		out = append(out, toNoteJSON(n))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetNote(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	note, err := GetNoteByID(s.db, id)
	if err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "note not found")
	}
	if err != nil {
		log.Printf("get note error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "loading note failed")
	}
	return c.JSON(http.StatusOK, toNoteJSON(note))
}

type correctDomainRequest struct {
	Domain string `json:"domain"`
}

func (s *Server) handleCorrectNoteDomain(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req correctDomainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Domain) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "domain field is required")
	}

	if err := RecordRoutingCorrection(s.db, id, req.Domain); err != nil {
		if err == sql.ErrNoRows {
			return echo.NewHTTPError(http.StatusNotFound, "note not found")
		}
		if strings.HasPrefix(err.Error(), "unknown domain") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Printf("correct note domain error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "correction failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTasks(c echo.Context) error {
	tasks, err := ListTasks(s.db, c.QueryParam("status"), c.QueryParam("domain"), 200)
	if err != nil {
		log.Printf("list tasks error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing tasks failed")
	}
	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskJSON(t))
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCompleteTask(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	if _, err := GetTaskByID(s.db, id); err == sql.ErrNoRows {
		return echo.NewHTTPError(http.StatusNotFound, "task not found")
	} else if err != nil {
		log.Printf("complete task error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "completing task failed")
	}
	if err := CompleteTask(s.db, id); err != nil {
		log.Printf("complete task error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "completing task failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type plannedTaskJSON struct {
	Task          taskJSON `json:"task"`
	Score         float64  `json:"score"`
	SuggestedTime string   `json:"suggested_time"`
}

type dailyPlanResponse struct {
	Current      *plannedTaskJSON  `json:"current_task"`
	Upcoming     []plannedTaskJSON `json:"upcoming"`
	TotalMinutes int               `json:"total_time_minutes"`
	Message      string            `json:"message"`
}

func (s *Server) handleDailyPlan(c echo.Context) error {
	plan, err := GenerateDailyPlan(s.db, s.cfg, time.Now().In(s.cfg.Location))
	if err != nil {
		log.Printf("daily plan error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "planning failed")
	}

	resp := dailyPlanResponse{
		Upcoming:     []plannedTaskJSON{},
		TotalMinutes: plan.TotalMinutes,
		Message:      plan.Message,
	}
	if plan.Current != nil {
		resp.Current = &plannedTaskJSON{
			Task:          toTaskJSON(plan.Current.Task),
			Score:         plan.Current.Score,
			SuggestedTime: plan.Current.SuggestedTime,
		}
	}
	for _, p := range plan.Upcoming {
		resp.Upcoming = append(resp.Upcoming, plannedTaskJSON{
			Task:          toTaskJSON(p.Task),
			Score:         p.Score,
			SuggestedTime: p.SuggestedTime,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePendingQuestions(c echo.Context) error {
	questions, err := GetPendingQuestions(s.db)
	if err != nil {
		log.Printf("pending questions error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing questions failed")
	}
	out := make([]questionJSON, 0, len(questions))
	for _, q := range questions {
		out = append(out, toQuestionJSON(q))
	}
	return c.JSON(http.StatusOK, out)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAnswerQuestion(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	var req answerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	question, err := HandleQuestionAnswer(s.db, id, req.Answer)
	if err != nil {
		if err == sql.ErrNoRows {
			return echo.NewHTTPError(http.StatusNotFound, "question not found")
		}
		if errors.Is(err, ErrQuestionNotPending) {
			return echo.NewHTTPError(http.StatusConflict, "question is not pending")
		}
		log.Printf("answer question error id=%d: %v", id, err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, toQuestionJSON(question))
}

func (s *Server) handleSkipQuestion(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	if err := HandleQuestionSkip(s.db, id); err != nil {
		if errors.Is(err, ErrQuestionNotPending) {
			return echo.NewHTTPError(http.StatusConflict, "question is not pending")
		}
		log.Printf("skip question error id=%d: %v", id, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "skipping question failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "skipped"})
}

func (s *Server) handleListThresholds(c echo.Context) error {
	thresholds, err := GetAllThresholds(s.db)
	if err != nil {
		log.Printf("list thresholds error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing thresholds failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"thresholds": thresholds})
}

type adjustThresholdRequest struct {
	Direction string `json:"direction"`
}

func (s *Server) handleAdjustThreshold(c echo.Context) error {
	name := c.Param("name")
	var req adjustThresholdRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var direction AdjustDirection
	switch req.Direction {
	case "increase":
		direction = AdjustIncrease
	case "decrease":
		direction = AdjustDecrease
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "direction must be 'increase' or 'decrease'")
	}

	value, err := AdjustThreshold(s.db, name, direction)
	if err != nil {
		log.Printf("adjust threshold error name=%s: %v", name, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "adjusting threshold failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"name": name, "value": value})
}

func (s *Server) handleListDomains(c echo.Context) error {
	domains, err := GetActiveDomains(s.db)
	if err != nil {
		log.Printf("list domains error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing domains failed")
	}
	out := make([]domainJSON, 0, len(domains))
	for _, d := range domains {
		out = append(out, toDomainJSON(d))
	}
	return c.JSON(http.StatusOK, out)
}

type registerDomainRequest struct {
	Path             string  `json:"path"`
	Name             string  `json:"name"`
	Color            string  `json:"color"`
	TargetPercentage float64 `json:"target_percentage"`
}

func (s *Server) handleRegisterDomain(c echo.Context) error {
	var req registerDomainRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	domain, err := RegisterDomain(s.db, Domain{
		Path:             req.Path,
		Name:             req.Name,
		Color:            req.Color,
		TargetPercentage: req.TargetPercentage,
	})
	if err != nil {
		if strings.Contains(err.Error(), "domain path") {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		log.Printf("register domain error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "registering domain failed")
	}
	return c.JSON(http.StatusCreated, toDomainJSON(domain))
}

func (s *Server) handleListWeights(c echo.Context) error {
	weights, err := GetAllWeights(s.db)
	if err != nil {
		log.Printf("list weights error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "listing weights failed")
	}
	return c.JSON(http.StatusOK, map[string]any{"weights": weights})
}

func (s *Server) handleDecisionStats(c echo.Context) error {
	days := 28
	if raw := c.QueryParam("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 365 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid days")
		}
		days = parsed
	}

	stats, err := GetDecisionStats(s.db, time.Now().AddDate(0, 0, -days))
	if err != nil {
		log.Printf("decision stats error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "loading stats failed")
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCategoryStats(c echo.Context) error {
	categories, err := GetCategoryAccuracies(s.db, c.QueryParam("kind"))
	if err != nil {
		log.Printf("category stats error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "loading categories failed")
	}
	if categories == nil {
		categories = []CategoryAccuracy{}
	}
	return c.JSON(http.StatusOK, categories)
}

func parseIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}
