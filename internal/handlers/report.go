package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/CLDWare/attendance-backend/config"
	"github.com/CLDWare/attendance-backend/internal/attendance"
	contextkeys "github.com/CLDWare/attendance-backend/internal/contextKeys"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/CLDWare/attendance-backend/pkg/logger"
	"github.com/MonkyMars/gecho"
)

// ReportHandler handles reporting and analytics requests
type ReportHandler struct {
	config     *config.Config
	aggregator *attendance.Aggregator
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(cfg *config.Config, aggregator *attendance.Aggregator) *ReportHandler {
	return &ReportHandler{
		config:     cfg,
		aggregator: aggregator,
	}
}

func (h *ReportHandler) courseIDFromPath(w http.ResponseWriter, r *http.Request) (uint, bool) {
	courseIDStr := r.PathValue("id")
	courseID, err := strconv.ParseUint(courseIDStr, 10, 0)
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid course ID, expected positive integer").Send()
		return 0, false
	}
	return uint(courseID), true
}

// handles GET /course/{id}/attendance requests
// Lecturers can query at-risk students and the full percentage list for a course
func (h *ReportHandler) GetCourseAttendance(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()

	courseID, ok := h.courseIDFromPath(w, r)
	if !ok {
		return
	}

	atRisk, err := h.aggregator.AtRisk(ctx, courseID)
	if errors.Is(err, attendance.ErrCourseNotFound) {
		gecho.NotFound(w).WithMessage(fmt.Sprintf("No course with id: %d", courseID)).Send()
		return
	} else if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	all, err := h.aggregator.CoursePercentages(ctx, courseID)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"at_risk":      atRisk,
		"all_students": all,
	}).Send()
}

// GetCourseReport
//
// @Summary		Generate a course attendance report
// @Description	Per-student rows with attended/total/percentage/status, sorted by matric number. Deterministic for unchanged data.
// @Tags			report
// @Produce		json
// @Success		200	{object} apiResponses.BaseResponse
// @Failure		404	{object} apiResponses.NotFoundError
// @Router 			/course/{id}/report	[get]
func (h *ReportHandler) GetCourseReport(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()
	user, ok := ctx.Value(contextkeys.AuthUserKey).(models.User)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	courseID, ok := h.courseIDFromPath(w, r)
	if !ok {
		return
	}

	report, err := h.aggregator.BuildCourseReport(ctx, courseID, user.ID)
	if errors.Is(err, attendance.ErrCourseNotFound) {
		gecho.NotFound(w).WithMessage(fmt.Sprintf("No course with id: %d", courseID)).Send()
		return
	} else if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(report).Send()
}

// handles GET /lecturer/stats requests
// Lecturers can query per-course aggregates for their own courses
func (h *ReportHandler) GetLecturerStats(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()
	user, ok := ctx.Value(contextkeys.AuthUserKey).(models.User)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	stats, err := h.aggregator.LecturerStats(ctx, user.ID)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(stats).Send()
}

// handles GET /analytics/departments requests
// Admins can query department-level attendance averages
func (h *ReportHandler) GetDepartmentAnalytics(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodGet); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()

	stats, err := h.aggregator.DepartmentAverages(ctx)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(stats).Send()
}
