package handlers

import (
	"encoding/json"
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

// SessionHandler handles requests about attendance sessions
type SessionHandler struct {
	config *config.Config
	store  *attendance.Store
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(cfg *config.Config, store *attendance.Store) *SessionHandler {
	return &SessionHandler{
		config: cfg,
		store:  store,
	}
}

func toSessionInfo(session *models.AttendanceSession) map[string]any {
	info := map[string]any{
		"id":          session.ID,
		"course_id":   session.CourseID,
		"lecturer_id": session.LecturerID,
		"token":       session.Token,
		"state":       session.State,
		"created_at":  session.CreatedAt,
		"expires_at":  session.ExpiresAt,
		"mark_count":  session.MarkCount,
	}
	if session.Course.ID != 0 {
		info["course_code"] = session.Course.Code
		info["course_title"] = session.Course.Title
	}
	return info
}

type PostSessionBody struct {
	CourseID *uint `json:"course_id"`
}

// PostSession
//
// @Summary		Open an attendance session
// @Description	Opens a 15 minute attendance window for one of the lecturer's courses. Fails with 409 while the lecturer has another active session.
// @Tags			session
// @Accept			json
// @Produce		json
// @Success		201	{object} apiResponses.BaseResponse
// @Failure		409	{object} apiResponses.BaseError
// @Router 			/session	[post]
func (h *SessionHandler) PostSession(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()
	user, ok := ctx.Value(contextkeys.AuthUserKey).(models.User)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	var body PostSessionBody
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		errMsg := fmt.Sprintf("Error while decoding json: %E", err)
		logger.Err(errMsg)
		gecho.BadRequest(w).WithMessage(errMsg).Send()
		return
	}
	if body.CourseID == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'course_id'").Send()
		return
	}

	session, err := h.store.OpenSession(ctx, user.ID, *body.CourseID)
	if errors.Is(err, attendance.ErrCourseNotFound) {
		gecho.NotFound(w).WithMessage("Course not found or not assigned to you").Send()
		return
	} else if errors.Is(err, attendance.ErrAlreadyActive) {
		gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("You already have an active session").Send()
		return
	} else if err != nil {
		logger.Err(err)
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Created(w).WithData(toSessionInfo(session)).Send()
}

type PostSessionCloseBody struct {
	SessionID *uint `json:"session_id"`
}

// handles POST /session/close requests
// Lecturers can POST this endpoint to close their own session. Idempotent.
func (h *SessionHandler) PostSessionClose(w http.ResponseWriter, r *http.Request) {
	if err := gecho.Handlers.HandleMethod(w, r, http.MethodPost); err != nil {
		err.Send() // Automatically sends 405 Method Not Allowed
		return
	}
	ctx := r.Context()
	user, ok := ctx.Value(contextkeys.AuthUserKey).(models.User)
	if !ok {
		gecho.InternalServerError(w).Send()
		return
	}

	var body PostSessionCloseBody
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.SessionID == nil {
		gecho.BadRequest(w).WithMessage("Missing field 'session_id'").Send()
		return
	}

	session, err := h.store.CloseSession(ctx, *body.SessionID, user.ID)
	if errors.Is(err, attendance.ErrSessionNotFound) {
		gecho.NotFound(w).WithMessage(fmt.Sprintf("No session with id: %d", *body.SessionID)).Send()
		return
	} else if err != nil {
		logger.Err(err)
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(toSessionInfo(session)).Send()
}

// handles GET /session/active requests
// Returns the lecturer's current active session, sweeping expired ones first
func (h *SessionHandler) GetActiveSession(w http.ResponseWriter, r *http.Request) {
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

	session, err := h.store.ActiveSession(ctx, user.ID)
	if err != nil {
		logger.Err(err)
		gecho.InternalServerError(w).Send()
		return
	}
	if session == nil {
		gecho.Success(w).WithData(nil).Send()
		return
	}

	gecho.Success(w).WithData(toSessionInfo(session)).Send()
}

// handles GET /session/history requests
// Lecturers can query this endpoint for their own past sessions
func (h *SessionHandler) GetSessionHistory(w http.ResponseWriter, r *http.Request) {
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

	query := r.URL.Query()
	limit := 20
	if limitStr := query.Get("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}
	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		offset, _ = strconv.Atoi(offsetStr)
	}

	sessions, err := h.store.History(ctx, user.ID, limit, offset)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	sessionInfoArray := []map[string]any{}
	for i := range sessions {
		sessionInfoArray = append(sessionInfoArray, toSessionInfo(&sessions[i]))
	}

	gecho.Success(w).WithData(sessionInfoArray).Send()
}

// handles GET /session/{id}/marks requests
// Lecturers can query the roster of marks for one of their own sessions
func (h *SessionHandler) GetSessionMarks(w http.ResponseWriter, r *http.Request) {
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

	sessionIDStr := r.PathValue("id")
	sessionID, err := strconv.ParseUint(sessionIDStr, 10, 0)
	if err != nil {
		gecho.BadRequest(w).WithMessage("Invalid session ID, expected positive integer").Send()
		return
	}

	marks, err := h.store.SessionMarks(ctx, uint(sessionID), user.ID)
	if errors.Is(err, attendance.ErrSessionNotFound) {
		gecho.NotFound(w).WithMessage(fmt.Sprintf("No session with id: %d", sessionID)).Send()
		return
	} else if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	markInfoArray := []map[string]any{}
	for _, mark := range marks {
		matric := ""
		if mark.Student.MatricNumber != nil {
			matric = *mark.Student.MatricNumber
		}
		markInfoArray = append(markInfoArray, map[string]any{
			"student_id":    mark.StudentID,
			"matric_number": matric,
			"name":          mark.Student.Name,
			"marked_at":     mark.MarkedAt,
		})
	}

	gecho.Success(w).WithData(markInfoArray).Send()
}
