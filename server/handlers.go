package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wfunc/hideseek/logger"
	"github.com/wfunc/hideseek/models"
	"github.com/wfunc/hideseek/services"
)

var statusByKind = map[services.Kind]int{
	services.KindValidation:    http.StatusBadRequest,
	services.KindNotFound:      http.StatusNotFound,
	services.KindPrecondition:  http.StatusConflict,
	services.KindConflict:      http.StatusConflict,
	services.KindAuthorization: http.StatusForbidden,
	services.KindStorage:       http.StatusInternalServerError,
}

func writeError(c *gin.Context, err error) {
	kind := services.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := gin.H{"error": kind}

	var se *services.Error
	if errors.As(err, &se) {
		body["message"] = se.Message
		if se.WinnerID != nil {
			body["winnerId"] = *se.WinnerID
		}
	} else {
		body["message"] = "internal error"
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": services.KindValidation, "message": msg})
}

func caller(c *gin.Context) string {
	return c.GetHeader(PlayerHeader)
}

func (s *GameServer) health(c *gin.Context) {
	if err := s.svc.Healthy(c.Request.Context()); err != nil {
		logger.Log.Warnw("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- games ---

func (s *GameServer) createGame(c *gin.Context) {
	var req struct {
		Name *string `json:"name"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	game, err := s.svc.CreateGame(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, game)
}

func (s *GameServer) getGame(c *gin.Context) {
	view, err := s.svc.GetGame(c.Request.Context(), c.Param("gameID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *GameServer) updateGame(c *gin.Context) {
	var req services.UpdateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	view, err := s.svc.UpdateGame(c.Request.Context(), c.Param("gameID"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// --- players ---

type nameRequest struct {
	Name string `json:"name"`
}

func (s *GameServer) joinGame(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	player, err := s.svc.JoinGame(c.Request.Context(), c.Param("gameID"), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, player)
}

func (s *GameServer) renamePlayer(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	player, err := s.svc.RenamePlayer(c.Request.Context(), c.Param("gameID"), c.Param("playerID"), caller(c), req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

func (s *GameServer) leaveGame(c *gin.Context) {
	if err := s.svc.LeaveGame(c.Request.Context(), c.Param("gameID"), c.Param("playerID"), caller(c)); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *GameServer) withdrawPlayer(c *gin.Context) {
	res, err := s.svc.WithdrawPlayer(c.Request.Context(), c.Param("gameID"), c.Param("playerID"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *GameServer) lockIn(c *gin.Context) {
	var req struct {
		PhotoID string `json:"photoId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	player, err := s.svc.LockIn(c.Request.Context(), c.Param("gameID"), c.Param("playerID"), caller(c), req.PhotoID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

// --- landmarks ---

func (s *GameServer) listLandmarks(c *gin.Context) {
	landmarks, err := s.svc.ListLandmarks(c.Request.Context(), c.Param("gameID"), c.Param("playerID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, landmarks)
}

func (s *GameServer) getLandmark(c *gin.Context) {
	landmark, err := s.svc.GetLandmark(c.Request.Context(), c.Param("gameID"), c.Param("playerID"), models.LandmarkType(c.Param("type")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, landmark)
}

func (s *GameServer) setLandmark(c *gin.Context) {
	var req struct {
		PhotoID     *string `json:"photoId"`
		Unavailable bool    `json:"unavailable"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.Unavailable {
		req.PhotoID = nil
	} else if req.PhotoID == nil || *req.PhotoID == "" {
		badRequest(c, "photoId is required unless unavailable is set")
		return
	}
	player, err := s.svc.SetLandmark(c.Request.Context(), c.Param("gameID"), c.Param("playerID"), caller(c),
		models.LandmarkType(c.Param("type")), req.PhotoID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, player)
}

// --- photos ---

func (s *GameServer) createPhoto(c *gin.Context) {
	var req services.CreatePhotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	photo, err := s.svc.CreatePhoto(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, photo)
}

// --- submissions ---

func (s *GameServer) submit(c *gin.Context) {
	var req services.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if req.SeekerID == "" {
		req.SeekerID = caller(c)
	}
	res, err := s.svc.Submit(c.Request.Context(), c.Param("gameID"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *GameServer) listSubmissions(c *gin.Context) {
	subs, err := s.svc.ListSubmissions(c.Request.Context(), c.Param("gameID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// --- hints ---

func (s *GameServer) castHint(c *gin.Context) {
	var body struct {
		SeekerID string          `json:"seekerId"`
		HiderID  string          `json:"hiderId"`
		Type     models.HintType `json:"type"`
		Note     json.RawMessage `json:"note"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	req := services.CastHintRequest{SeekerID: body.SeekerID, HiderID: body.HiderID, Type: body.Type}
	if req.SeekerID == "" {
		req.SeekerID = caller(c)
	}
	if body.Type.Valid() {
		note, err := models.DecodeNote(body.Type, body.Note)
		if err != nil {
			badRequest(c, "note does not match hint type")
			return
		}
		req.Note = note
	}
	hint, err := s.svc.CastHint(c.Request.Context(), c.Param("gameID"), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, hint)
}

func (s *GameServer) listHints(c *gin.Context) {
	hints, err := s.svc.ListHints(c.Request.Context(), c.Param("gameID"), c.Query("seekerId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hints)
}

func (s *GameServer) completeHint(c *gin.Context) {
	var req services.CompleteHintRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	hint, err := s.svc.CompleteHint(c.Request.Context(), c.Param("gameID"), c.Param("hintID"), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hint)
}

func (s *GameServer) cancelHint(c *gin.Context) {
	hint, err := s.svc.CancelHint(c.Request.Context(), c.Param("gameID"), c.Param("hintID"), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hint)
}

type positionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func bindPosition(c *gin.Context) (float64, float64, bool) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Lat == nil || req.Lng == nil {
		badRequest(c, "lat and lng are required")
		return 0, 0, false
	}
	return *req.Lat, *req.Lng, true
}

func (s *GameServer) thermometerReading(c *gin.Context) {
	lat, lng, ok := bindPosition(c)
	if !ok {
		return
	}
	reading, err := s.svc.ThermometerReading(c.Request.Context(), c.Param("gameID"), c.Param("hintID"), caller(c), lat, lng)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

// --- pings ---

func (s *GameServer) recordPing(c *gin.Context) {
	lat, lng, ok := bindPosition(c)
	if !ok {
		return
	}
	ping, err := s.svc.RecordPing(c.Request.Context(), c.Param("gameID"), caller(c), lat, lng)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ping)
}

func (s *GameServer) latestPings(c *gin.Context) {
	pings, err := s.svc.LatestPings(c.Request.Context(), c.Param("gameID"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pings)
}
