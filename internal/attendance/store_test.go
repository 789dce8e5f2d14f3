package attendance

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/CLDWare/attendance-backend/config"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// File-backed db with a busy timeout so concurrent writers queue up
	// instead of failing with a lock error
	path := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=10000"
	db, err := models.InitialiseDatabaseAt(path)
	if err != nil {
		t.Fatalf("failed to initialise database: %v", err)
	}
	return db
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	config.Reload()
	db := newTestDB(t)
	return NewStore(config.Get(), db), db
}

func seedLecturerAndCourse(t *testing.T, db *gorm.DB) (lecturer models.User, course models.Course) {
	t.Helper()
	ctx := context.Background()

	dept := models.Department{Name: "Computer Science", Code: "CSC"}
	if err := gorm.G[models.Department](db).Create(ctx, &dept); err != nil {
		t.Fatalf("failed to create department: %v", err)
	}

	lecturer = models.User{Email: "lecturer@example.com", Name: "Lecturer", Role: models.RoleLecturer, DepartmentID: dept.ID}
	if err := gorm.G[models.User](db).Create(ctx, &lecturer); err != nil {
		t.Fatalf("failed to create lecturer: %v", err)
	}

	course = models.Course{Code: "CSC301", Title: "Data Structures", DepartmentID: dept.ID, LecturerID: lecturer.ID}
	if err := gorm.G[models.Course](db).Create(ctx, &course); err != nil {
		t.Fatalf("failed to create course: %v", err)
	}
	return lecturer, course
}

func seedStudent(t *testing.T, db *gorm.DB, email, matric string, departmentID uint) models.User {
	t.Helper()

	student := models.User{Email: email, Name: "Student " + matric, Role: models.RoleStudent, MatricNumber: &matric, DepartmentID: departmentID}
	if err := gorm.G[models.User](db).Create(context.Background(), &student); err != nil {
		t.Fatalf("failed to create student: %v", err)
	}
	return student
}

func TestOpenSession(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	session, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}

	if session.State != models.SessionStateActive {
		t.Errorf("expected state %s, got %s", models.SessionStateActive, session.State)
	}
	if session.Token == "" {
		t.Error("expected a non-empty token")
	}
	if session.MarkCount != 0 {
		t.Errorf("expected mark count 0, got %d", session.MarkCount)
	}
	if remaining := time.Until(session.ExpiresAt); remaining <= 0 || remaining > 15*time.Minute {
		t.Errorf("expected expiry within 15 minutes from now, got %v", remaining)
	}
}

func TestOpenSession_CourseNotOwned(t *testing.T) {
	store, db := newTestStore(t)
	_, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	other := models.User{Email: "other@example.com", Name: "Other", Role: models.RoleLecturer, DepartmentID: course.DepartmentID}
	if err := gorm.G[models.User](db).Create(ctx, &other); err != nil {
		t.Fatalf("failed to create lecturer: %v", err)
	}

	_, err := store.OpenSession(ctx, other.ID, course.ID)
	if !errors.Is(err, ErrCourseNotFound) {
		t.Errorf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestOpenSession_AlreadyActive(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	if _, err := store.OpenSession(ctx, lecturer.ID, course.ID); err != nil {
		t.Fatalf("first OpenSession returned error: %v", err)
	}

	_, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("expected ErrAlreadyActive, got %v", err)
	}
}

// Concurrent opens must race on the partial unique index: exactly one wins.
func TestOpenSession_ConcurrentExclusivity(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.OpenSession(ctx, lecturer.ID, course.ID)
		}(i)
	}
	wg.Wait()

	successes := 0
	alreadyActive := 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrAlreadyActive):
			alreadyActive++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if successes != 1 {
		t.Errorf("expected exactly 1 successful open, got %d", successes)
	}
	if alreadyActive != n-1 {
		t.Errorf("expected %d ErrAlreadyActive, got %d", n-1, alreadyActive)
	}
}

func TestOpenSession_TokensNeverReused(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		session, err := store.OpenSession(ctx, lecturer.ID, course.ID)
		if err != nil {
			t.Fatalf("OpenSession returned error: %v", err)
		}
		if seen[session.Token] {
			t.Fatalf("token %q reused across sessions", session.Token)
		}
		seen[session.Token] = true

		if _, err := store.CloseSession(ctx, session.ID, lecturer.ID); err != nil {
			t.Fatalf("CloseSession returned error: %v", err)
		}
	}
}

func TestCloseSession_Idempotent(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	session, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}

	closed, err := store.CloseSession(ctx, session.ID, lecturer.ID)
	if err != nil {
		t.Fatalf("CloseSession returned error: %v", err)
	}
	if closed.State != models.SessionStateClosed {
		t.Errorf("expected state %s, got %s", models.SessionStateClosed, closed.State)
	}

	// Closing again returns the session, not an error
	again, err := store.CloseSession(ctx, session.ID, lecturer.ID)
	if err != nil {
		t.Fatalf("second CloseSession returned error: %v", err)
	}
	if again.State != models.SessionStateClosed {
		t.Errorf("expected state %s, got %s", models.SessionStateClosed, again.State)
	}
}

func TestCloseSession_NotFound(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	if _, err := store.CloseSession(ctx, 12345, lecturer.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for unknown id, got %v", err)
	}

	// A session owned by someone else is indistinguishable from a missing one
	session, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}
	if _, err := store.CloseSession(ctx, session.ID, lecturer.ID+1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for foreign session, got %v", err)
	}
}

func TestActiveSession_LazySweep(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	// An ACTIVE row whose expiry has passed, as the janitor would find it
	expired := models.AttendanceSession{
		CourseID:   course.ID,
		LecturerID: lecturer.ID,
		Token:      "expired-token",
		State:      models.SessionStateActive,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	if err := gorm.G[models.AttendanceSession](db).Create(ctx, &expired); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	session, err := store.ActiveSession(ctx, lecturer.ID)
	if err != nil {
		t.Fatalf("ActiveSession returned error: %v", err)
	}
	if session != nil {
		t.Errorf("expected no active session, got id %d", session.ID)
	}

	// The sweep must have persisted the transition
	swept, err := gorm.G[models.AttendanceSession](db).Where("id = ?", expired.ID).First(ctx)
	if err != nil {
		t.Fatalf("failed to reload session: %v", err)
	}
	if swept.State != models.SessionStateClosed {
		t.Errorf("expected swept state %s, got %s", models.SessionStateClosed, swept.State)
	}
}

func TestActiveSession_ReturnsCurrent(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	opened, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}

	session, err := store.ActiveSession(ctx, lecturer.ID)
	if err != nil {
		t.Fatalf("ActiveSession returned error: %v", err)
	}
	if session == nil || session.ID != opened.ID {
		t.Fatalf("expected active session %d, got %+v", opened.ID, session)
	}
}

func TestFindRedeemableSession(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	opened, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}

	session, err := store.FindRedeemableSession(ctx, opened.Token)
	if err != nil {
		t.Fatalf("FindRedeemableSession returned error: %v", err)
	}
	if session.ID != opened.ID {
		t.Errorf("expected session %d, got %d", opened.ID, session.ID)
	}
}

// Unknown, closed and expired tokens must produce the same error so callers
// can not probe which sessions exist.
func TestFindRedeemableSession_InvalidOrExpired(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	expired := models.AttendanceSession{
		CourseID:   course.ID,
		LecturerID: lecturer.ID,
		Token:      "expired-token",
		State:      models.SessionStateActive,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	if err := gorm.G[models.AttendanceSession](db).Create(ctx, &expired); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	closed := models.AttendanceSession{
		CourseID:   course.ID,
		LecturerID: lecturer.ID,
		Token:      "closed-token",
		State:      models.SessionStateClosed,
		ExpiresAt:  time.Now().Add(10 * time.Minute),
	}
	if err := gorm.G[models.AttendanceSession](db).Create(ctx, &closed); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	for _, tok := range []string{"never-existed", "expired-token", "closed-token"} {
		if _, err := store.FindRedeemableSession(ctx, tok); !errors.Is(err, ErrInvalidOrExpired) {
			t.Errorf("token %q: expected ErrInvalidOrExpired, got %v", tok, err)
		}
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	var ids []uint
	for i := 0; i < 3; i++ {
		session, err := store.OpenSession(ctx, lecturer.ID, course.ID)
		if err != nil {
			t.Fatalf("OpenSession returned error: %v", err)
		}
		ids = append(ids, session.ID)
		if _, err := store.CloseSession(ctx, session.ID, lecturer.ID); err != nil {
			t.Fatalf("CloseSession returned error: %v", err)
		}
		time.Sleep(5 * time.Millisecond) // distinct created_at
	}

	sessions, err := store.History(ctx, lecturer.ID, 10, 0)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(sessions) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != ids[2] || sessions[2].ID != ids[0] {
		t.Errorf("expected newest first order, got %d,%d,%d", sessions[0].ID, sessions[1].ID, sessions[2].ID)
	}
}

func TestSessionMarks_Ownership(t *testing.T) {
	store, db := newTestStore(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	ctx := context.Background()

	session, err := store.OpenSession(ctx, lecturer.ID, course.ID)
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}

	if _, err := store.SessionMarks(ctx, session.ID, lecturer.ID+1); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for foreign session, got %v", err)
	}

	marks, err := store.SessionMarks(ctx, session.ID, lecturer.ID)
	if err != nil {
		t.Fatalf("SessionMarks returned error: %v", err)
	}
	if len(marks) != 0 {
		t.Errorf("expected no marks yet, got %d", len(marks))
	}
}
