package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/CLDWare/attendance-backend/config"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"gorm.io/gorm"
)

func newTestAggregator(t *testing.T) (*Aggregator, *gorm.DB) {
	t.Helper()

	config.Reload()
	db := newTestDB(t)
	return NewAggregator(config.Get(), db), db
}

// seedClosedSessions creates n closed sessions for the course and returns them.
func seedClosedSessions(t *testing.T, db *gorm.DB, course models.Course, n int) []models.AttendanceSession {
	t.Helper()
	ctx := context.Background()

	sessions := make([]models.AttendanceSession, n)
	for i := range sessions {
		sessions[i] = models.AttendanceSession{
			CourseID:   course.ID,
			LecturerID: course.LecturerID,
			Token:      fmt.Sprintf("token-%d-%d", course.ID, i),
			State:      models.SessionStateClosed,
			ExpiresAt:  time.Now().Add(-time.Duration(n-i) * time.Hour),
		}
		if err := gorm.G[models.AttendanceSession](db).Create(ctx, &sessions[i]); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
	}
	return sessions
}

// seedMarks marks the student present for the first `attended` of the sessions.
func seedMarks(t *testing.T, db *gorm.DB, student models.User, sessions []models.AttendanceSession, attended int) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < attended; i++ {
		record := models.AttendanceRecord{
			SessionID: sessions[i].ID,
			StudentID: student.ID,
			CourseID:  sessions[i].CourseID,
			MarkedAt:  sessions[i].ExpiresAt.Add(-5 * time.Minute),
		}
		if err := gorm.G[models.AttendanceRecord](db).Create(ctx, &record); err != nil {
			t.Fatalf("failed to create record: %v", err)
		}
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		attended int
		total    int
		want     int
	}{
		{"zero total", 0, 0, 0},
		{"zero attended", 0, 4, 0},
		{"three of four", 3, 4, 75},
		{"half", 2, 4, 50},
		{"full", 4, 4, 100},
		{"rounds up", 2, 3, 67},
		{"rounds down", 1, 3, 33},
		{"clamped above", 5, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentage(tt.attended, tt.total); got != tt.want {
				t.Errorf("percentage(%d, %d) = %d, want %d", tt.attended, tt.total, got, tt.want)
			}
		})
	}
}

// Scenario: 4 sessions held; one student attends 3 (75%, Good), another
// attends 2 (50%, below the 70 threshold).
func TestCoursePercentages(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	alice := seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)
	bob := seedStudent(t, db, "bob@example.com", "CSC/2023/002", course.DepartmentID)
	ctx := context.Background()

	sessions := seedClosedSessions(t, db, course, 4)
	seedMarks(t, db, alice, sessions, 3)
	seedMarks(t, db, bob, sessions, 2)

	percentages, err := agg.CoursePercentages(ctx, course.ID)
	if err != nil {
		t.Fatalf("CoursePercentages returned error: %v", err)
	}
	if len(percentages) != 2 {
		t.Fatalf("expected 2 students, got %d", len(percentages))
	}

	// Sorted by matric number, so alice first
	if percentages[0].StudentID != alice.ID || percentages[1].StudentID != bob.ID {
		t.Fatalf("expected matric-number order alice,bob; got %d,%d", percentages[0].StudentID, percentages[1].StudentID)
	}

	if p := percentages[0]; p.Attended != 3 || p.Total != 4 || p.Percentage != 75 || p.AtRisk {
		t.Errorf("alice: got attended=%d total=%d pct=%d atRisk=%v, want 3/4 75%% not at risk", p.Attended, p.Total, p.Percentage, p.AtRisk)
	}
	if p := percentages[1]; p.Attended != 2 || p.Total != 4 || p.Percentage != 50 || !p.AtRisk {
		t.Errorf("bob: got attended=%d total=%d pct=%d atRisk=%v, want 2/4 50%% at risk", p.Attended, p.Total, p.Percentage, p.AtRisk)
	}
}

func TestCoursePercentages_UnknownCourse(t *testing.T) {
	agg, _ := newTestAggregator(t)

	if _, err := agg.CoursePercentages(context.Background(), 999); err != ErrCourseNotFound {
		t.Errorf("expected ErrCourseNotFound, got %v", err)
	}
}

// A student who never scanned still appears, at 0%.
func TestCoursePercentages_AbsentStudent(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	seedStudent(t, db, "ghost@example.com", "CSC/2023/001", course.DepartmentID)
	seedClosedSessions(t, db, course, 3)

	percentages, err := agg.CoursePercentages(context.Background(), course.ID)
	if err != nil {
		t.Fatalf("CoursePercentages returned error: %v", err)
	}
	if len(percentages) != 1 {
		t.Fatalf("expected 1 student, got %d", len(percentages))
	}
	if p := percentages[0]; p.Attended != 0 || p.Percentage != 0 || !p.AtRisk {
		t.Errorf("got attended=%d pct=%d atRisk=%v, want 0 0%% at risk", p.Attended, p.Percentage, p.AtRisk)
	}
}

func TestAtRisk_SortedByPercentage(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	alice := seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)
	bob := seedStudent(t, db, "bob@example.com", "CSC/2023/002", course.DepartmentID)
	carol := seedStudent(t, db, "carol@example.com", "CSC/2023/003", course.DepartmentID)

	sessions := seedClosedSessions(t, db, course, 4)
	seedMarks(t, db, alice, sessions, 4) // 100, not at risk
	seedMarks(t, db, bob, sessions, 2)   // 50
	seedMarks(t, db, carol, sessions, 1) // 25

	atRisk, err := agg.AtRisk(context.Background(), course.ID)
	if err != nil {
		t.Fatalf("AtRisk returned error: %v", err)
	}
	if len(atRisk) != 2 {
		t.Fatalf("expected 2 at-risk students, got %d", len(atRisk))
	}
	if atRisk[0].StudentID != carol.ID || atRisk[1].StudentID != bob.ID {
		t.Errorf("expected lowest percentage first (carol, bob), got %d,%d", atRisk[0].StudentID, atRisk[1].StudentID)
	}
}

// With zero sessions nobody has had a chance to attend, so nobody is flagged.
func TestAtRisk_NoSessions(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)

	atRisk, err := agg.AtRisk(context.Background(), course.ID)
	if err != nil {
		t.Fatalf("AtRisk returned error: %v", err)
	}
	if len(atRisk) != 0 {
		t.Errorf("expected no at-risk students for a course without sessions, got %d", len(atRisk))
	}
}

func TestCourseAverage(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	alice := seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)
	bob := seedStudent(t, db, "bob@example.com", "CSC/2023/002", course.DepartmentID)

	sessions := seedClosedSessions(t, db, course, 4)
	seedMarks(t, db, alice, sessions, 3) // 75
	seedMarks(t, db, bob, sessions, 2)   // 50

	avg, ok, err := agg.CourseAverage(context.Background(), course.ID)
	if err != nil {
		t.Fatalf("CourseAverage returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true for a course with sessions")
	}
	if avg != 63 { // round((75+50)/2)
		t.Errorf("expected average 63, got %d", avg)
	}
}

func TestCourseAverage_NoSessions(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)

	_, ok, err := agg.CourseAverage(context.Background(), course.ID)
	if err != nil {
		t.Fatalf("CourseAverage returned error: %v", err)
	}
	if ok {
		t.Error("expected ok=false for a course without sessions")
	}
}

// Courses that never ran are excluded from the department mean, not averaged
// in as 0%.
func TestDepartmentAverages_ExcludesIdleCourses(t *testing.T) {
	agg, db := newTestAggregator(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	alice := seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)
	ctx := context.Background()

	idle := models.Course{Code: "CSC999", Title: "Never Taught", DepartmentID: course.DepartmentID, LecturerID: lecturer.ID}
	if err := gorm.G[models.Course](db).Create(ctx, &idle); err != nil {
		t.Fatalf("failed to create course: %v", err)
	}

	sessions := seedClosedSessions(t, db, course, 4)
	seedMarks(t, db, alice, sessions, 3) // course average 75

	stats, err := agg.DepartmentAverages(ctx)
	if err != nil {
		t.Fatalf("DepartmentAverages returned error: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 department, got %d", len(stats))
	}
	if stats[0].CourseCount != 1 {
		t.Errorf("expected the idle course excluded (count 1), got %d", stats[0].CourseCount)
	}
	if stats[0].AverageAttendance != 75 {
		t.Errorf("expected department average 75, got %d", stats[0].AverageAttendance)
	}
}

func TestLecturerStats(t *testing.T) {
	agg, db := newTestAggregator(t)
	lecturer, course := seedLecturerAndCourse(t, db)
	alice := seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)
	bob := seedStudent(t, db, "bob@example.com", "CSC/2023/002", course.DepartmentID)

	sessions := seedClosedSessions(t, db, course, 4)
	seedMarks(t, db, alice, sessions, 3) // 75
	seedMarks(t, db, bob, sessions, 2)   // 50, at risk

	stats, err := agg.LecturerStats(context.Background(), lecturer.ID)
	if err != nil {
		t.Fatalf("LecturerStats returned error: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 course, got %d", len(stats))
	}

	s := stats[0]
	if s.CourseCode != course.Code {
		t.Errorf("expected course code %s, got %s", course.Code, s.CourseCode)
	}
	if s.TotalSessions != 4 || s.TotalStudents != 2 {
		t.Errorf("got sessions=%d students=%d, want 4 and 2", s.TotalSessions, s.TotalStudents)
	}
	if s.AverageAttendance != 63 || s.AtRiskCount != 1 {
		t.Errorf("got average=%d atRisk=%d, want 63 and 1", s.AverageAttendance, s.AtRiskCount)
	}
}

func TestPercentageFor(t *testing.T) {
	agg, db := newTestAggregator(t)
	_, course := seedLecturerAndCourse(t, db)
	alice := seedStudent(t, db, "alice@example.com", "CSC/2023/001", course.DepartmentID)

	sessions := seedClosedSessions(t, db, course, 4)
	seedMarks(t, db, alice, sessions, 3)

	p, err := agg.PercentageFor(context.Background(), alice.ID, course.ID)
	if err != nil {
		t.Fatalf("PercentageFor returned error: %v", err)
	}
	if p != 75 {
		t.Errorf("expected 75, got %d", p)
	}
}
