package server

import (
	"errors"
	"maps"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/abhisek/predinator/internal/answer"
	"github.com/abhisek/predinator/internal/catalog"
	"github.com/abhisek/predinator/internal/engine"
	"github.com/abhisek/predinator/internal/learning"
	"github.com/abhisek/predinator/internal/model"
	"github.com/abhisek/predinator/internal/service"
	"github.com/abhisek/predinator/internal/store"
)

type gameView struct {
	GameID   string            `json:"game_id"`
	State    engine.GameState  `json:"state"`
	Question *catalog.Question `json:"question"`
	AtLeaf   bool              `json:"at_leaf"`
}

type answerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

type guessResponse struct {
	GameID     string           `json:"game_id"`
	Subject    string           `json:"subject"`
	Confidence float64          `json:"confidence"`
	State      engine.GameState `json:"state"`
}

type learnRequest struct {
	Name       string            `json:"name" binding:"required"`
	Attributes map[string]string `json:"attributes"`
}

type learnResponse struct {
	Saved        bool   `json:"saved"`
	Trained      bool   `json:"trained"`
	ModelVersion string `json:"model_version,omitempty"`
	Error        string `json:"error,omitempty"`
}

type addQuestionRequest struct {
	Guessed          string `json:"guessed" binding:"required"`
	Actual           string `json:"actual" binding:"required"`
	Prompt           string `json:"prompt" binding:"required"`
	AttributeID      string `json:"attribute_id" binding:"required"`
	AnswerForActual  string `json:"answer_for_actual" binding:"required"`
	AnswerForGuessed string `json:"answer_for_guessed" binding:"required"`
}

func (s *Server) health(c *gin.Context) {
	resp := gin.H{"status": "ok", "ready": false}
	if snap := s.svc.Current(); snap != nil {
		resp["ready"] = true
		resp["model_version"] = snap.Version
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listQuestions(c *gin.Context) {
	qs, err := s.svc.Questions()
	if err != nil {
		s.fail(c, err)
		return
	}
	if qs == nil {
		qs = []catalog.Question{}
	}
	c.JSON(http.StatusOK, gin.H{"questions": qs})
}

func (s *Server) createGame(c *gin.Context) {
	e, err := s.svc.NewGame(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	id := uuid.NewString()
	s.respond(c, http.StatusCreated, id, e)
}

func (s *Server) getGame(c *gin.Context) {
	id, e, ok := s.resume(c)
	if !ok {
		return
	}
	s.respond(c, http.StatusOK, id, e)
}

func (s *Server) answer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, e, ok := s.resume(c)
	if !ok {
		return
	}
	if err := s.svc.Answer(e, req.Answer); err != nil {
		s.save(c, id, e)
		s.fail(c, err)
		return
	}
	s.respond(c, http.StatusOK, id, e)
}

func (s *Server) guess(c *gin.Context) {
	id, e, ok := s.resume(c)
	if !ok {
		return
	}
	g, err := s.svc.Guess(e)
	s.save(c, id, e)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, guessResponse{
		GameID:     id,
		Subject:    g.Subject,
		Confidence: g.Confidence,
		State:      e.State(),
	})
}

func (s *Server) learn(c *gin.Context) {
	var req learnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, ok := s.state(c)
	if !ok {
		return
	}
	path := st.PathAnswers()
	prep, err := s.sessions.Prepared(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if prep != nil && prep.SubjectName == strings.TrimSpace(req.Name) {
		maps.Copy(path, prep.PathAnswers)
	}
	res, err := s.svc.LearnNewSubject(c.Request.Context(), req.Name, path, req.Attributes)
	if err != nil && !res.Saved {
		s.fail(c, err)
		return
	}
	resp := learnResponse{Saved: res.Saved, Trained: res.Snapshot != nil}
	if res.Snapshot != nil {
		resp.ModelVersion = res.Snapshot.Version
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) addQuestion(c *gin.Context) {
	var req addQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, ok := s.state(c)
	if !ok {
		return
	}
	prep, err := s.svc.AddQuestion(c.Request.Context(), learning.AddQuestionRequest{
		GuessedName:      req.Guessed,
		ActualName:       req.Actual,
		Path:             st.PathAnswers(),
		Prompt:           req.Prompt,
		AttributeID:      req.AttributeID,
		AnswerForActual:  req.AnswerForActual,
		AnswerForGuessed: req.AnswerForGuessed,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.sessions.SavePrepared(c.Request.Context(), c.Param("id"), *prep); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, prep)
}

func (s *Server) deleteGame(c *gin.Context) {
	if err := s.sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// state loads the stored state for the :id game.
func (s *Server) state(c *gin.Context) (engine.GameState, bool) {
	st, err := s.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return engine.GameState{}, false
	}
	return st, true
}

// resume restores the :id game. A stale game is saved as concluded and
// reported with its state so the client can still learn from the path.
func (s *Server) resume(c *gin.Context) (string, *engine.Engine, bool) {
	id := c.Param("id")
	st, ok := s.state(c)
	if !ok {
		return id, nil, false
	}
	e, err := s.svc.ResumeGame(c.Request.Context(), st)
	if err != nil {
		if e != nil {
			s.save(c, id, e)
		}
		if errors.Is(err, engine.ErrStaleGame) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "game_id": id, "state": e.State()})
			return id, nil, false
		}
		s.fail(c, err)
		return id, nil, false
	}
	return id, e, true
}

// respond saves e and writes the game view.
func (s *Server) respond(c *gin.Context, status int, id string, e *engine.Engine) {
	q, leaf, err := e.NextQuestion()
	if !s.save(c, id, e) {
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	v := gameView{GameID: id, State: e.State(), AtLeaf: leaf}
	if !leaf {
		v.Question = &q
	}
	c.JSON(status, v)
}

func (s *Server) save(c *gin.Context, id string, e *engine.Engine) bool {
	if err := s.sessions.Save(c.Request.Context(), id, e.State()); err != nil {
		s.fail(c, err)
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, answer.ErrInvalidAnswer),
		errors.Is(err, learning.ErrEmptyName),
		errors.Is(err, learning.ErrInvalidAttributeID),
		errors.Is(err, learning.ErrInvalidPrompt):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, learning.ErrDuplicateSubject),
		errors.Is(err, catalog.ErrDuplicateAttribute),
		errors.Is(err, engine.ErrStaleGame),
		errors.Is(err, engine.ErrNotActive),
		errors.Is(err, engine.ErrAtLeaf):
		return http.StatusConflict
	case errors.Is(err, model.ErrModelUnavailable),
		errors.Is(err, service.ErrNoTrainingData),
		errors.Is(err, catalog.ErrCatalogUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
