package db

import (
	"time"

	"gorm.io/gorm"
)

// Session states. CLOSED is terminal; there is no transition back to ACTIVE.
// Expiry is derived (state ACTIVE and now past ExpiresAt) and persisted as
// CLOSED by the lazy read-time sweep or the janitor, whichever comes first.
const (
	SessionStateActive = "ACTIVE"
	SessionStateClosed = "CLOSED"
)

// User roles
const (
	RoleAdmin    = "ADMIN"
	RoleLecturer = "LECTURER"
	RoleStudent  = "STUDENT"
)

type Department struct {
	gorm.Model
	Name string
	Code string `gorm:"unique"`
}

type User struct {
	gorm.Model
	Email        string `gorm:"unique"`
	Name         string
	Role         string
	MatricNumber *string `gorm:"unique"` // Students only, hence nullable
	DepartmentID uint
	Department   Department `gorm:"foreignKey:DepartmentID;references:ID"`
}

type Course struct {
	gorm.Model
	Code         string `gorm:"unique"`
	Title        string
	DepartmentID uint
	Department   Department `gorm:"foreignKey:DepartmentID;references:ID"`
	LecturerID   uint
	Lecturer     User `gorm:"foreignKey:LecturerID;references:ID"`
}

// AttendanceSession is one lecturer-initiated attendance window.
//
// The partial unique index on LecturerID carries the "at most one ACTIVE
// session per lecturer" invariant: concurrent opens race on the insert itself
// and the loser gets a constraint violation, so no separate existence check
// is needed. Token is unique across all sessions ever, so a stale QR can
// never resolve to a newer session.
type AttendanceSession struct {
	gorm.Model
	CourseID   uint
	Course     Course `gorm:"foreignKey:CourseID;references:ID"`
	LecturerID uint   `gorm:"index:idx_attendance_sessions_active_lecturer,unique,where:state = 'ACTIVE'"`
	Lecturer   User   `gorm:"foreignKey:LecturerID;references:ID"`
	Token      string `gorm:"uniqueIndex"`
	State      string `gorm:"default:'ACTIVE'"`
	ExpiresAt  time.Time
	MarkCount  uint // Denormalized; attendance_records rows are the source of truth
}

// AttendanceRecord is one immutable mark for a (session, student) pair.
// The composite unique index is the single serialization point for duplicate
// redemptions: of N concurrent inserts exactly one commits, the rest fail
// with a duplicate-key error.
type AttendanceRecord struct {
	gorm.Model
	SessionID uint              `gorm:"uniqueIndex:ux_attendance_records_session_student"`
	Session   AttendanceSession `gorm:"foreignKey:SessionID;references:ID"`
	StudentID uint              `gorm:"uniqueIndex:ux_attendance_records_session_student"`
	Student   User              `gorm:"foreignKey:StudentID;references:ID"`
	CourseID  uint              // Denormalized from the session for query convenience
	MarkedAt  time.Time
}

// AuthSession rows are written by the external authentication service; this
// backend only reads them to resolve an identity.
type AuthSession struct {
	gorm.Model
	SessionToken string `gorm:"unique"`
	UserID       uint
	User         User `gorm:"foreignKey:UserID;references:ID"`
	ExpiresAt    time.Time
}
