package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bigbrainhq/bigbrain/internal/domain"
	"github.com/bigbrainhq/bigbrain/internal/errors"
	"github.com/bigbrainhq/bigbrain/internal/event"
	"github.com/bigbrainhq/bigbrain/internal/results"
	"github.com/bigbrainhq/bigbrain/internal/session"
	"github.com/bigbrainhq/bigbrain/internal/telemetry"
)

type Config struct {
	Engine       *gin.Engine
	EventBus     *event.Bus
	Registry     *session.Registry
	Results      *results.Service
	Redis        Redis
	PubsubPrefix string
}

// API translates the admin control surface and the player polling surface
// into registry operations. Handlers are thin: every rule lives in the
// session and results packages.
type API struct {
	registry *session.Registry
	results  *results.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		registry: c.Registry,
		results:  c.Results,
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
	}

	admin := c.Engine.Group("/admin")
	admin.POST("/game/:gameid/mutate", a.MutateGame)
	admin.GET("/session/:sessionid/status", a.SessionStatus)
	admin.GET("/session/:sessionid/results", a.SessionResults)
	admin.GET("/session/:sessionid/leaderboard", a.SessionLeaderboard)

	play := c.Engine.Group("/play")
	play.POST("/join/:sessionid", a.Join)
	play.GET("/:playerid/status", a.PlayerStatus)
	play.GET("/:playerid/question", a.PlayerQuestion)
	play.PUT("/:playerid/answer", a.SubmitAnswer)
	play.GET("/:playerid/answer", a.RevealAnswer)
	play.GET("/:playerid/results", a.PlayerResults)

	if c.EventBus != nil && c.Redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

type mutateRequest struct {
	MutationType string `json:"mutationType"`
}

// MutateGame is the host control endpoint: START creates a session for the
// game, ADVANCE and END act on the game's active session.
func (a *API) MutateGame(c *gin.Context) {
	gameID := c.Param("gameid")

	var req mutateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	switch req.MutationType {
	case "START":
		sessionID, err := a.registry.Start(c.Request.Context(), gameID)
		if err != nil {
			abortError(c, err)
			return
		}
		telemetry.CountSessionStarted()
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"sessionId": sessionID}})

	case "ADVANCE":
		sessionID, err := a.registry.ActiveSession(c.Request.Context(), gameID)
		if err != nil {
			abortError(c, err)
			return
		}
		q, err := a.registry.Advance(c.Request.Context(), sessionID)
		if err != nil {
			abortError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"position": q.Position, "question": q}})

	case "END":
		sessionID, err := a.registry.ActiveSession(c.Request.Context(), gameID)
		if err != nil {
			abortError(c, err)
			return
		}
		if err := a.registry.End(c.Request.Context(), sessionID); err != nil {
			abortError(c, err)
			return
		}
		telemetry.CountSessionEnded()
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"sessionId": sessionID}})

	default:
		abortError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown mutation type %q", req.MutationType)))
	}
}

func (a *API) SessionStatus(c *gin.Context) {
	st, err := a.registry.Status(c.Request.Context(), c.Param("sessionid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": st})
}

// SessionResults returns the per-player ledgers plus the aggregated
// leaderboard and per-question statistics. Only available once ended.
func (a *API) SessionResults(c *gin.Context) {
	snap, err := a.registry.Snapshot(c.Request.Context(), c.Param("sessionid"))
	if err != nil {
		abortError(c, err)
		return
	}

	agg := results.Aggregate(snap)

	players := make([]playerRecord, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, playerRecord{
			Name:    p.Name,
			Answers: p.Answers,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results":     players,
		"leaderboard": leaderboardEntries(agg.Leaderboard),
		"questions":   questionStats(agg.Questions),
	})
}

func (a *API) SessionLeaderboard(c *gin.Context) {
	scores, err := a.results.TopScores(c.Request.Context(), c.Param("sessionid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": scores})
}

type joinRequest struct {
	Name string `json:"name"`
}

func (a *API) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	playerID, err := a.registry.Join(c.Request.Context(), c.Param("sessionid"), req.Name)
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"playerId": playerID})
}

func (a *API) PlayerStatus(c *gin.Context) {
	st, err := a.registry.PlayerStatus(c.Request.Context(), c.Param("playerid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (a *API) PlayerQuestion(c *gin.Context) {
	q, err := a.registry.PlayerQuestion(c.Request.Context(), c.Param("playerid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": q})
}

type answerRequest struct {
	Answers []string `json:"answers"`
	// Position names the question the client is answering. When omitted the
	// answer targets whatever question is current, which is how the original
	// polling clients behave.
	Position *int `json:"position,omitempty"`
}

func (a *API) SubmitAnswer(c *gin.Context) {
	playerID := c.Param("playerid")

	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		q, err := a.registry.PlayerQuestion(c.Request.Context(), playerID)
		if err != nil {
			abortError(c, err)
			return
		}
		position = q.Position
	}

	rec, err := a.registry.SubmitAnswer(c.Request.Context(), playerID, position, req.Answers)
	if err != nil {
		telemetry.CountAnswer(false)
		abortError(c, err)
		return
	}

	telemetry.CountAnswer(true)
	c.JSON(http.StatusOK, gin.H{"answeredAt": rec.AnsweredAt})
}

func (a *API) RevealAnswer(c *gin.Context) {
	vals, err := a.registry.PlayerAnswer(c.Request.Context(), c.Param("playerid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answers": vals})
}

func (a *API) PlayerResults(c *gin.Context) {
	res, err := a.registry.PlayerResults(c.Request.Context(), c.Param("playerid"))
	if err != nil {
		abortError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// abortError renders the structured error envelope used by every endpoint.
func abortError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{"error": e.Message})
}
