package handlers

import (
	"net/http"

	"testdesk/services"

	"github.com/gin-gonic/gin"
)

type TestHandler struct {
	catalogService *services.CatalogService
}

func NewTestHandler(catalogService *services.CatalogService) *TestHandler {
	return &TestHandler{catalogService: catalogService}
}

func (h *TestHandler) CreateTest(c *gin.Context) {
	var req services.CreateTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	test, err := h.catalogService.CreateTest(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, test)
}

func (h *TestHandler) GetTest(c *gin.Context) {
	test, err := h.catalogService.GetTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, test)
}

func (h *TestHandler) AddSection(c *gin.Context) {
	var req services.CreateSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	section, err := h.catalogService.AddSection(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, section)
}

func (h *TestHandler) AddQuestions(c *gin.Context) {
	var req services.AddQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	added, err := h.catalogService.AddQuestionsToSection(c.Request.Context(), c.Param("sectionId"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"added": added})
}

func (h *TestHandler) UpdatePlacementMarks(c *gin.Context) {
	var req services.UpdateMarksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	placement, err := h.catalogService.UpdatePlacementMarks(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, placement)
}

func (h *TestHandler) RemovePlacement(c *gin.Context) {
	if err := h.catalogService.RemovePlacement(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Question removed from section"})
}
