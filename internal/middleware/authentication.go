package middleware

import (
	"context"
	"net/http"
	"time"

	contextkeys "github.com/CLDWare/attendance-backend/internal/contextKeys"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"github.com/MonkyMars/gecho"
	"gorm.io/gorm"
)

// AuthenticationMiddleware resolves the auth session cookie written by the
// external authentication service to a (user, role) identity. It performs no
// authentication itself; it trusts the AuthSession row.
type AuthenticationMiddleware struct {
	DB *gorm.DB
}

// Required checks that a valid identity is present and sets the
// contextkeys.AuthSessionKey and contextkeys.AuthUserKey values on the context
func (mw AuthenticationMiddleware) Required(next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		auth_session, err := r.Cookie("auth_session_token")
		if err == http.ErrNoCookie {
			gecho.Unauthorized(w).WithMessage("'auth_session_token' cookie is required for authenticated requests").Send()
			return
		} else if err != nil {
			gecho.InternalServerError(w).Send()
			return
		}
		ctx := r.Context()

		session, err := gorm.G[models.AuthSession](mw.DB).Where("session_token = ?", auth_session.Value).First(ctx)
		if err == gorm.ErrRecordNotFound {
			gecho.Unauthorized(w).WithMessage("Invalid session").Send()
			return
		} else if err != nil {
			gecho.InternalServerError(w).Send()
			return
		}

		if time.Now().After(session.ExpiresAt) {
			gecho.Unauthorized(w).WithMessage("Session expired").Send()
			return
		}

		user, err := gorm.G[models.User](mw.DB).Where("id = ?", session.UserID).First(ctx)
		if err == gorm.ErrRecordNotFound {
			gecho.Unauthorized(w).WithMessage("Invalid session").Send()
			return
		} else if err != nil {
			gecho.InternalServerError(w).Send()
			return
		}

		ctx = context.WithValue(ctx, contextkeys.AuthSessionKey, session)
		ctx = context.WithValue(ctx, contextkeys.AuthUserKey, user)

		next(w, r.WithContext(ctx))
	}
}

// RequiredRole is Required plus a role gate. The role check is the only
// authorization decision made here; ownership checks live in the handlers.
func (mw AuthenticationMiddleware) RequiredRole(role string, next func(w http.ResponseWriter, r *http.Request)) func(w http.ResponseWriter, r *http.Request) {
	return mw.Required(func(w http.ResponseWriter, r *http.Request) {
		user, ok := r.Context().Value(contextkeys.AuthUserKey).(models.User)
		if !ok {
			gecho.InternalServerError(w).Send()
			return
		}
		if user.Role != role {
			gecho.Forbidden(w).Send()
			return
		}
		next(w, r)
	})
}
