package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/adapta-backend/internal/logger"
	"github.com/yungbote/adapta-backend/internal/services"
)

type StudentHandler struct {
	students *services.StudentService
	log      *logger.Logger
}

func NewStudentHandler(students *services.StudentService, log *logger.Logger) *StudentHandler {
	return &StudentHandler{students: students, log: log}
}

func (h *StudentHandler) Create(c *gin.Context) {
	var input services.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	student, err := h.students.CreateStudent(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, student)
}

func (h *StudentHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	student, err := h.students.GetStudent(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, student)
}

func (h *StudentHandler) List(c *gin.Context) {
	students, err := h.students.ListStudents(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, students)
}

func (h *StudentHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var input services.StudentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	student, err := h.students.UpdateStudent(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, student)
}

func (h *StudentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	if err := h.students.DeleteStudent(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}
