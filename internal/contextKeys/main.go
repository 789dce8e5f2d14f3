package contextkeys

type contextKey string

// Keys set by the identity middleware on the request context.
const (
	AuthSessionKey contextKey = "auth_session"
	AuthUserKey    contextKey = "auth_user"
)
