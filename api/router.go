package api

import (
	"net/http"

	"github.com/MonkyMars/gecho"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"gorm.io/gorm"

	_ "github.com/CLDWare/attendance-backend/docs"

	"github.com/CLDWare/attendance-backend/config"
	"github.com/CLDWare/attendance-backend/internal/attendance"
	"github.com/CLDWare/attendance-backend/internal/feed"
	"github.com/CLDWare/attendance-backend/internal/handlers"
	"github.com/CLDWare/attendance-backend/internal/middleware"
	models "github.com/CLDWare/attendance-backend/pkg/db"
)

// API holds the API dependencies
type API struct {
	versionHandler    *handlers.VersionHandler
	userHandler       *handlers.UserHandler
	sessionHandler    *handlers.SessionHandler
	attendanceHandler *handlers.AttendanceHandler
	reportHandler     *handlers.ReportHandler
	feedHandler       *handlers.FeedHandler
	auth              middleware.AuthenticationMiddleware
}

// NewAPI creates a new API instance
func NewAPI(db *gorm.DB) *API {
	cfg := config.Get()

	store := attendance.NewStore(cfg, db)
	hub := feed.NewHub()
	engine := attendance.NewEngine(store, hub)
	aggregator := attendance.NewAggregator(cfg, db)

	return &API{
		versionHandler:    handlers.NewVersionHandler(cfg),
		userHandler:       handlers.NewUserHandler(cfg),
		sessionHandler:    handlers.NewSessionHandler(cfg, store),
		attendanceHandler: handlers.NewAttendanceHandler(cfg, engine, store, aggregator),
		reportHandler:     handlers.NewReportHandler(cfg, aggregator),
		feedHandler:       handlers.NewFeedHandler(cfg, store, hub),
		auth:              middleware.AuthenticationMiddleware{DB: db},
	}
}

// CreateMux creates and configures the HTTP mux
func (api *API) CreateMux() *http.ServeMux {
	mux := http.NewServeMux()
	api.setupRoutes(mux)
	return mux
}

// setupRoutes configures all the routes.
func (api *API) setupRoutes(mux *http.ServeMux) {
	// Version route
	mux.HandleFunc("/v", api.versionHandler.GetVersion)

	// Current identity
	mux.HandleFunc("/me", api.auth.Required(api.userHandler.GetMe))

	// Lecturer session lifecycle
	mux.HandleFunc("/session", api.auth.RequiredRole(models.RoleLecturer, api.sessionHandler.PostSession))
	mux.HandleFunc("/session/close", api.auth.RequiredRole(models.RoleLecturer, api.sessionHandler.PostSessionClose))
	mux.HandleFunc("/session/active", api.auth.RequiredRole(models.RoleLecturer, api.sessionHandler.GetActiveSession))
	mux.HandleFunc("/session/history", api.auth.RequiredRole(models.RoleLecturer, api.sessionHandler.GetSessionHistory))
	mux.HandleFunc("/session/{id}/marks", api.auth.RequiredRole(models.RoleLecturer, api.sessionHandler.GetSessionMarks))

	// Student attendance
	mux.HandleFunc("/attendance/mark", api.auth.RequiredRole(models.RoleStudent, api.attendanceHandler.PostMark))
	mux.HandleFunc("/attendance", api.auth.RequiredRole(models.RoleStudent, api.attendanceHandler.GetAttendance))
	mux.HandleFunc("/attendance/stats", api.auth.RequiredRole(models.RoleStudent, api.attendanceHandler.GetAttendanceStats))

	// Reporting and analytics
	mux.HandleFunc("/course/{id}/attendance", api.auth.RequiredRole(models.RoleLecturer, api.reportHandler.GetCourseAttendance))
	mux.HandleFunc("/course/{id}/report", api.auth.RequiredRole(models.RoleLecturer, api.reportHandler.GetCourseReport))
	mux.HandleFunc("/lecturer/stats", api.auth.RequiredRole(models.RoleLecturer, api.reportHandler.GetLecturerStats))
	mux.HandleFunc("/analytics/departments", api.auth.RequiredRole(models.RoleAdmin, api.reportHandler.GetDepartmentAnalytics))

	// Live mark feed
	mux.HandleFunc("/ws/feed", api.auth.RequiredRole(models.RoleLecturer, api.feedHandler.GetFeed))

	// API documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// fallback route - must be last because it matches all routes.
	mux.HandleFunc("/", fallBack)
}

// ApplyMiddleware applies middleware to a handler
func ApplyMiddleware(handler http.Handler) http.Handler {
	return middleware.LoggingMiddleware(
		middleware.CORSMiddleware(handler),
	)
}

func fallBack(w http.ResponseWriter, r *http.Request) {
	gecho.NotFound(w).Send()
}
