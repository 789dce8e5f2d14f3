package handlers

import (
	"net/http"

	"github.com/CLDWare/attendance-backend/config"
	contextkeys "github.com/CLDWare/attendance-backend/internal/contextKeys"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/MonkyMars/gecho"
)

// UserHandler handles requests about users
type UserHandler struct {
	config *config.Config
}

// NewUserHandler creates a new user handler
func NewUserHandler(cfg *config.Config) *UserHandler {
	return &UserHandler{
		config: cfg,
	}
}

// handles GET /me requests
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
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

	userInfo := map[string]any{
		"email":         user.Email,
		"name":          user.Name,
		"role":          user.Role,
		"department_id": user.DepartmentID,
	}
	if user.MatricNumber != nil {
		userInfo["matric_number"] = *user.MatricNumber
	}

	gecho.Success(w).WithData(userInfo).Send()
}
