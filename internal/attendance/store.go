package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/CLDWare/attendance-backend/config"
	"github.com/CLDWare/attendance-backend/internal/token"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"gorm.io/gorm"
)

// Store persists attendance sessions and their state transitions. It holds no
// state of its own between calls; every invariant lives in a database
// constraint so the guarantees survive restarts and multiple instances.
type Store struct {
	config *config.Config
	db     *gorm.DB
}

// NewStore creates a new Store
func NewStore(cfg *config.Config, db *gorm.DB) *Store {
	return &Store{
		config: cfg,
		db:     db,
	}
}

// OpenSession opens a new attendance session for a course the lecturer owns.
// The one-ACTIVE-session-per-lecturer invariant is enforced by the partial
// unique index on the insert itself: two concurrent opens race on the index,
// one commits and the other gets ErrAlreadyActive. There is no window in
// which both can succeed.
func (s *Store) OpenSession(ctx context.Context, lecturerID, courseID uint) (*models.AttendanceSession, error) {
	_, err := gorm.G[models.Course](s.db).Where("id = ? AND lecturer_id = ?", courseID, lecturerID).First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrCourseNotFound
	} else if err != nil {
		return nil, err
	}

	tok, err := token.Generate(s.config.Attendance.TokenBytes)
	if err != nil {
		return nil, err
	}

	session := models.AttendanceSession{
		CourseID:   courseID,
		LecturerID: lecturerID,
		Token:      tok,
		State:      models.SessionStateActive,
		ExpiresAt:  time.Now().Add(s.config.Attendance.SessionDuration),
		MarkCount:  0,
	}
	err = gorm.G[models.AttendanceSession](s.db).Create(ctx, &session)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// The token column is also unique, but a collision on 16 random
		// bytes does not happen; the violated index is the active-lecturer one.
		return nil, ErrAlreadyActive
	} else if err != nil {
		return nil, err
	}

	return &session, nil
}

// CloseSession transitions a session owned by the lecturer to CLOSED.
// Idempotent: closing an already closed session returns it unchanged.
func (s *Store) CloseSession(ctx context.Context, sessionID, lecturerID uint) (*models.AttendanceSession, error) {
	session, err := gorm.G[models.AttendanceSession](s.db).Where("id = ? AND lecturer_id = ?", sessionID, lecturerID).First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, err
	}

	if session.State == models.SessionStateClosed {
		return &session, nil
	}

	_, err = gorm.G[models.AttendanceSession](s.db).Where("id = ?", session.ID).Update(ctx, "state", models.SessionStateClosed)
	if err != nil {
		return nil, err
	}
	session.State = models.SessionStateClosed

	return &session, nil
}

// ActiveSession returns the lecturer's current ACTIVE session, or nil if
// there is none. Before reading it sweeps the lecturer's expired sessions to
// CLOSED, so a stored ACTIVE state past its ExpiresAt is never handed out.
// This keeps correctness independent of the janitor running at all.
func (s *Store) ActiveSession(ctx context.Context, lecturerID uint) (*models.AttendanceSession, error) {
	if err := s.SweepExpired(ctx, lecturerID); err != nil {
		return nil, err
	}

	session, err := gorm.G[models.AttendanceSession](s.db).
		Preload("Course", nil).
		Where("lecturer_id = ? AND state = ?", lecturerID, models.SessionStateActive).
		First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return &session, nil
}

// SweepExpired closes every ACTIVE session of the lecturer whose ExpiresAt
// has passed. A lecturerID of 0 sweeps all lecturers (janitor mode).
func (s *Store) SweepExpired(ctx context.Context, lecturerID uint) error {
	query := s.db.WithContext(ctx).
		Model(&models.AttendanceSession{}).
		Where("state = ? AND expires_at < ?", models.SessionStateActive, time.Now())
	if lecturerID != 0 {
		query = query.Where("lecturer_id = ?", lecturerID)
	}
	return query.Update("state", models.SessionStateClosed).Error
}

// FindRedeemableSession resolves a token to its session, but only while the
// session is ACTIVE and not past its expiry. Unknown, closed and expired
// tokens all yield the same ErrInvalidOrExpired.
func (s *Store) FindRedeemableSession(ctx context.Context, tok string) (*models.AttendanceSession, error) {
	session, err := gorm.G[models.AttendanceSession](s.db).
		Where("token = ? AND state = ? AND expires_at > ?", tok, models.SessionStateActive, time.Now()).
		First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrInvalidOrExpired
	} else if err != nil {
		return nil, err
	}

	return &session, nil
}

// History returns the lecturer's sessions, newest first.
func (s *Store) History(ctx context.Context, lecturerID uint, limit, offset int) ([]models.AttendanceSession, error) {
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	return gorm.G[models.AttendanceSession](s.db).
		Preload("Course", nil).
		Where("lecturer_id = ?", lecturerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(ctx)
}

// SessionMarks returns the marks of one session the lecturer owns.
func (s *Store) SessionMarks(ctx context.Context, sessionID, lecturerID uint) ([]models.AttendanceRecord, error) {
	_, err := gorm.G[models.AttendanceSession](s.db).Where("id = ? AND lecturer_id = ?", sessionID, lecturerID).First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrSessionNotFound
	} else if err != nil {
		return nil, err
	}

	return gorm.G[models.AttendanceRecord](s.db).
		Preload("Student", nil).
		Where("session_id = ?", sessionID).
		Order("marked_at ASC").
		Find(ctx)
}

// StudentMarks returns all marks of one student, newest first.
func (s *Store) StudentMarks(ctx context.Context, studentID uint) ([]models.AttendanceRecord, error) {
	return gorm.G[models.AttendanceRecord](s.db).
		Preload("Session", nil).
		Where("student_id = ?", studentID).
		Order("marked_at DESC").
		Find(ctx)
}
