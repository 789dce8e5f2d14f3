package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/CLDWare/attendance-backend/config"
	"github.com/CLDWare/attendance-backend/internal/attendance"
	contextkeys "github.com/CLDWare/attendance-backend/internal/contextKeys"
	"github.com/CLDWare/attendance-backend/internal/token"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/CLDWare/attendance-backend/pkg/logger"
	"github.com/MonkyMars/gecho"
)

// AttendanceHandler handles student-facing attendance requests
type AttendanceHandler struct {
	config     *config.Config
	engine     *attendance.Engine
	store      *attendance.Store
	aggregator *attendance.Aggregator
}

// NewAttendanceHandler creates a new AttendanceHandler
func NewAttendanceHandler(cfg *config.Config, engine *attendance.Engine, store *attendance.Store, aggregator *attendance.Aggregator) *AttendanceHandler {
	return &AttendanceHandler{
		config:     cfg,
		engine:     engine,
		store:      store,
		aggregator: aggregator,
	}
}

type PostMarkBody struct {
	Token *string `json:"token"`
}

// PostMark
//
// @Summary		Redeem a session token
// @Description	Marks the student present for the session the token resolves to. Accepts a bare token or the full scanned link.
// @Tags			attendance
// @Accept			json
// @Produce		json
// @Success		200	{object} apiResponses.BaseResponse
// @Failure		400	{object} apiResponses.BadRequestError
// @Failure		409	{object} apiResponses.BaseError
// @Router 			/attendance/mark	[post]
func (h *AttendanceHandler) PostMark(w http.ResponseWriter, r *http.Request) {
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

	var body PostMarkBody
	err := json.NewDecoder(r.Body).Decode(&body)
	if err != nil {
		gecho.BadRequest(w).WithMessage(err.Error()).Send()
		return
	}
	if body.Token == nil || *body.Token == "" {
		gecho.BadRequest(w).WithMessage("Missing field 'token'").Send()
		return
	}

	// Scanners hand back either the bare token or the encoded link
	tok := token.FromScannedInput(*body.Token)

	record, err := h.engine.Redeem(ctx, tok, user.ID)
	if errors.Is(err, attendance.ErrInvalidOrExpired) {
		gecho.BadRequest(w).WithMessage("Invalid or expired code. Please ask your lecturer for a new one.").Send()
		return
	} else if errors.Is(err, attendance.ErrAlreadyMarked) {
		gecho.NewErr(w).WithStatus(http.StatusConflict).WithMessage("You have already marked attendance for this session").Send()
		return
	} else if err != nil {
		logger.Err(err)
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(map[string]any{
		"session_id": record.SessionID,
		"marked_at":  record.MarkedAt,
	}).Send()
}

// handles GET /attendance requests
// Students can query this endpoint for their own marks
func (h *AttendanceHandler) GetAttendance(w http.ResponseWriter, r *http.Request) {
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

	marks, err := h.store.StudentMarks(ctx, user.ID)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	markInfoArray := []map[string]any{}
	for _, mark := range marks {
		markInfoArray = append(markInfoArray, map[string]any{
			"session_id": mark.SessionID,
			"course_id":  mark.CourseID,
			"marked_at":  mark.MarkedAt,
		})
	}

	gecho.Success(w).WithData(markInfoArray).Send()
}

// handles GET /attendance/stats requests
// Students can query this endpoint for their per-course percentages
func (h *AttendanceHandler) GetAttendanceStats(w http.ResponseWriter, r *http.Request) {
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

	stats, err := h.aggregator.StudentStats(ctx, user.ID)
	if err != nil {
		logger.Err(err.Error())
		gecho.InternalServerError(w).Send()
		return
	}

	gecho.Success(w).WithData(stats).Send()
}
