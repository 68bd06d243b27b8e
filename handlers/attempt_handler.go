package handlers

import (
	"net/http"

	"testdesk/middleware"
	"testdesk/services"

	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	attemptService *services.AttemptService
	answerService  *services.AnswerService
}

func NewAttemptHandler(attemptService *services.AttemptService, answerService *services.AnswerService) *AttemptHandler {
	return &AttemptHandler{
		attemptService: attemptService,
		answerService:  answerService,
	}
}

func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.StartAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), req.TestID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	var req services.SaveAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.answerService.SaveAnswer(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, answer)
}

func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	var req services.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.attemptService.SubmitAttempt(c.Request.Context(), req.AttemptID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) GetResult(c *gin.Context) {
	result, err := h.attemptService.GetResult(c.Request.Context(), c.Param("attemptId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *AttemptHandler) GetUserResults(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	attempts, err := h.attemptService.GetUserResults(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}

// AuthorizeRoom guards websocket subscriptions. Admins may join any room;
// students only the rooms of their own attempts.
func (h *AttemptHandler) AuthorizeRoom(c *gin.Context) {
	if middleware.HasRole(c, middleware.RoleAdmin) {
		c.Next()
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		c.Abort()
		return
	}

	room := c.Param("room")
	if room == services.RoomAll || room == services.RoomReports {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
		return
	}

	owner, err := h.attemptService.AttemptOwner(c.Request.Context(), room)
	if err != nil {
		respondError(c, err)
		c.Abort()
		return
	}
	if owner != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
		return
	}

	c.Next()
}
