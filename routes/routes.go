package routes

import (
	"log"
	"net/http"

	"testdesk/handlers"
	"testdesk/middleware"
	"testdesk/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origins are enforced by the CORS layer for the REST API
	},
}

type Handlers struct {
	Attempt  *handlers.AttemptHandler
	Question *handlers.QuestionHandler
	Test     *handlers.TestHandler
	Report   *handlers.ReportHandler
}

func SetupRoutes(router *gin.Engine, h Handlers, hub *services.Hub, jwtSecret string) {
	handlers.RegisterValidators()

	// Catalog writes and report moderation
	admin := middleware.RequireRole(middleware.RoleAdmin)

	// API routes, all authenticated
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtSecret))
	{
		attempts := api.Group("/attempts")
		{
			attempts.POST("/start", h.Attempt.StartAttempt)
			attempts.POST("/answer", h.Attempt.SaveAnswer)
			attempts.POST("/submit", h.Attempt.SubmitAttempt)
			attempts.GET("/:attemptId", h.Attempt.GetResult)
		}

		api.GET("/users/me/attempts", h.Attempt.GetUserResults)

		reports := api.Group("/reports")
		{
			reports.POST("", h.Report.CreateReport)
			reports.GET("", admin, h.Report.ListOpen)
			reports.GET("/resolved", admin, h.Report.ListClosed)
			reports.GET("/user", h.Report.ListOpenByUser)
			reports.GET("/user/resolved", h.Report.ListClosedByUser)
			reports.PUT("/:reportId/resolve", admin, h.Report.Resolve)
			reports.PUT("/:reportId/dismiss", admin, h.Report.Dismiss)
		}

		questions := api.Group("/questions")
		{
			questions.POST("", admin, h.Question.CreateQuestion)
			questions.GET("/:id", h.Question.GetQuestion)
		}

		tests := api.Group("/tests")
		{
			tests.POST("", admin, h.Test.CreateTest)
			tests.GET("/:id", h.Test.GetTest)
			tests.POST("/:id/sections", admin, h.Test.AddSection)
		}

		api.POST("/sections/:sectionId/questions", admin, h.Test.AddQuestions)
		api.PUT("/placements/:id/marks", admin, h.Test.UpdatePlacementMarks)
		api.DELETE("/placements/:id", admin, h.Test.RemovePlacement)
	}

	// WebSocket endpoint for attempt and report events
	router.GET("/ws/:room", middleware.AuthMiddleware(jwtSecret), h.Attempt.AuthorizeRoom, func(c *gin.Context) {
		room := c.Param("room")
		userID := c.GetString("user_id")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed for room %s, user %s: %v", room, userID, err)
			return
		}

		hub.RegisterClient(conn, room, userID)
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
