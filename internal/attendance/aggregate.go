package attendance

import (
	"context"
	"math"
	"sort"

	"github.com/CLDWare/attendance-backend/config"
	models "github.com/CLDWare/attendance-backend/pkg/db"
	"gorm.io/gorm"
)

// Aggregator computes attendance percentages from recorded marks against the
// total sessions ever opened for a course. A session with zero marks still
// counts toward the denominator: it was a class the student could have
// attended.
type Aggregator struct {
	config *config.Config
	db     *gorm.DB
}

// NewAggregator creates a new Aggregator
func NewAggregator(cfg *config.Config, db *gorm.DB) *Aggregator {
	return &Aggregator{
		config: cfg,
		db:     db,
	}
}

// StudentPercentage is one student's attendance standing in a course.
type StudentPercentage struct {
	StudentID    uint   `json:"student_id"`
	MatricNumber string `json:"matric_number"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Attended     int    `json:"attended"`
	Total        int    `json:"total"`
	Percentage   int    `json:"percentage"`
	AtRisk       bool   `json:"at_risk"`
}

// CourseStats summarizes one course for a lecturer.
type CourseStats struct {
	CourseID          uint   `json:"course_id"`
	CourseCode        string `json:"course_code"`
	CourseTitle       string `json:"course_title"`
	TotalSessions     int    `json:"total_sessions"`
	TotalStudents     int    `json:"total_students"`
	AverageAttendance int    `json:"average_attendance"`
	AtRiskCount       int    `json:"at_risk_count"`
}

// DepartmentStats is one department's average attendance over its courses.
type DepartmentStats struct {
	DepartmentID      uint   `json:"department_id"`
	Name              string `json:"name"`
	Code              string `json:"code"`
	CourseCount       int    `json:"course_count"`
	AverageAttendance int    `json:"average_attendance"`
}

// percentage rounds 100*attended/total and clamps to [0,100]. Zero total is
// defined as 0, never a division.
func percentage(attended, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(100 * float64(attended) / float64(total)))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}

// PercentageFor computes one student's attendance percentage for a course.
func (a *Aggregator) PercentageFor(ctx context.Context, studentID, courseID uint) (int, error) {
	total, err := a.totalSessions(ctx, courseID)
	if err != nil {
		return 0, err
	}

	var attended int64
	err = a.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Where("student_id = ? AND course_id = ?", studentID, courseID).
		Count(&attended).Error
	if err != nil {
		return 0, err
	}

	return percentage(int(attended), total), nil
}

// CoursePercentages computes the standing of every student enrolled in the
// course's department, sorted by matric number for deterministic output.
func (a *Aggregator) CoursePercentages(ctx context.Context, courseID uint) ([]StudentPercentage, error) {
	course, err := gorm.G[models.Course](a.db).Where("id = ?", courseID).First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrCourseNotFound
	} else if err != nil {
		return nil, err
	}

	total, err := a.totalSessions(ctx, courseID)
	if err != nil {
		return nil, err
	}

	students, err := gorm.G[models.User](a.db).
		Where("role = ? AND department_id = ?", models.RoleStudent, course.DepartmentID).
		Find(ctx)
	if err != nil {
		return nil, err
	}

	attendedByStudent, err := a.markCounts(ctx, courseID)
	if err != nil {
		return nil, err
	}

	percentages := make([]StudentPercentage, 0, len(students))
	for _, student := range students {
		attended := attendedByStudent[student.ID]
		p := percentage(attended, total)

		matric := ""
		if student.MatricNumber != nil {
			matric = *student.MatricNumber
		}
		percentages = append(percentages, StudentPercentage{
			StudentID:    student.ID,
			MatricNumber: matric,
			Name:         student.Name,
			Email:        student.Email,
			Attended:     attended,
			Total:        total,
			Percentage:   p,
			AtRisk:       p < a.config.Attendance.AtRiskThreshold,
		})
	}

	sort.Slice(percentages, func(i, j int) bool {
		return percentages[i].MatricNumber < percentages[j].MatricNumber
	})

	return percentages, nil
}

// AtRisk returns the students below the at-risk threshold for a course,
// lowest percentage first. A course with zero sessions flags nobody.
func (a *Aggregator) AtRisk(ctx context.Context, courseID uint) ([]StudentPercentage, error) {
	percentages, err := a.CoursePercentages(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if len(percentages) > 0 && percentages[0].Total == 0 {
		return []StudentPercentage{}, nil
	}

	atRisk := []StudentPercentage{}
	for _, p := range percentages {
		if p.AtRisk {
			atRisk = append(atRisk, p)
		}
	}

	sort.SliceStable(atRisk, func(i, j int) bool {
		return atRisk[i].Percentage < atRisk[j].Percentage
	})

	return atRisk, nil
}

// CourseAverage is the mean of per-student percentages for the course. The
// second return value is false when the course has no sessions; such courses
// are excluded from any higher-level average, not counted as 0%.
func (a *Aggregator) CourseAverage(ctx context.Context, courseID uint) (int, bool, error) {
	percentages, err := a.CoursePercentages(ctx, courseID)
	if err != nil {
		return 0, false, err
	}
	if len(percentages) == 0 || percentages[0].Total == 0 {
		return 0, false, nil
	}

	sum := 0
	for _, p := range percentages {
		sum += p.Percentage
	}
	return int(math.Round(float64(sum) / float64(len(percentages)))), true, nil
}

// LecturerStats summarizes every course of the lecturer.
func (a *Aggregator) LecturerStats(ctx context.Context, lecturerID uint) ([]CourseStats, error) {
	courses, err := gorm.G[models.Course](a.db).Where("lecturer_id = ?", lecturerID).Order("code ASC").Find(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CourseStats, 0, len(courses))
	for _, course := range courses {
		percentages, err := a.CoursePercentages(ctx, course.ID)
		if err != nil {
			return nil, err
		}

		total := 0
		if len(percentages) > 0 {
			total = percentages[0].Total
		}

		average := 0
		atRiskCount := 0
		if total > 0 && len(percentages) > 0 {
			sum := 0
			for _, p := range percentages {
				sum += p.Percentage
				if p.AtRisk {
					atRiskCount++
				}
			}
			average = int(math.Round(float64(sum) / float64(len(percentages))))
		}

		stats = append(stats, CourseStats{
			CourseID:          course.ID,
			CourseCode:        course.Code,
			CourseTitle:       course.Title,
			TotalSessions:     total,
			TotalStudents:     len(percentages),
			AverageAttendance: average,
			AtRiskCount:       atRiskCount,
		})
	}

	return stats, nil
}

// StudentStats returns a student's percentage for every course of their
// department.
func (a *Aggregator) StudentStats(ctx context.Context, studentID uint) ([]CourseStats, error) {
	student, err := gorm.G[models.User](a.db).Where("id = ?", studentID).First(ctx)
	if err != nil {
		return nil, err
	}

	courses, err := gorm.G[models.Course](a.db).Where("department_id = ?", student.DepartmentID).Order("code ASC").Find(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]CourseStats, 0, len(courses))
	for _, course := range courses {
		total, err := a.totalSessions(ctx, course.ID)
		if err != nil {
			return nil, err
		}
		p, err := a.PercentageFor(ctx, studentID, course.ID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, CourseStats{
			CourseID:          course.ID,
			CourseCode:        course.Code,
			CourseTitle:       course.Title,
			TotalSessions:     total,
			AverageAttendance: p,
		})
	}

	return stats, nil
}

// DepartmentAverages computes each department's mean attendance over its
// courses with at least one session. Departments where no course has run
// yet report a zero average and a zero course count.
func (a *Aggregator) DepartmentAverages(ctx context.Context) ([]DepartmentStats, error) {
	departments, err := gorm.G[models.Department](a.db).Order("code ASC").Find(ctx)
	if err != nil {
		return nil, err
	}

	stats := make([]DepartmentStats, 0, len(departments))
	for _, dept := range departments {
		courses, err := gorm.G[models.Course](a.db).Where("department_id = ?", dept.ID).Find(ctx)
		if err != nil {
			return nil, err
		}

		sum := 0
		counted := 0
		for _, course := range courses {
			avg, ok, err := a.CourseAverage(ctx, course.ID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			sum += avg
			counted++
		}

		average := 0
		if counted > 0 {
			average = int(math.Round(float64(sum) / float64(counted)))
		}
		stats = append(stats, DepartmentStats{
			DepartmentID:      dept.ID,
			Name:              dept.Name,
			Code:              dept.Code,
			CourseCount:       counted,
			AverageAttendance: average,
		})
	}

	return stats, nil
}

// totalSessions counts every session ever opened for the course, ACTIVE or
// CLOSED.
func (a *Aggregator) totalSessions(ctx context.Context, courseID uint) (int, error) {
	var total int64
	err := a.db.WithContext(ctx).
		Model(&models.AttendanceSession{}).
		Where("course_id = ?", courseID).
		Count(&total).Error
	return int(total), err
}

// markCounts returns attended counts per student for a course in one query.
func (a *Aggregator) markCounts(ctx context.Context, courseID uint) (map[uint]int, error) {
	var rows []struct {
		StudentID uint
		Attended  int
	}
	err := a.db.WithContext(ctx).
		Model(&models.AttendanceRecord{}).
		Select("student_id, COUNT(*) AS attended").
		Where("course_id = ?", courseID).
		Group("student_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uint]int, len(rows))
	for _, row := range rows {
		counts[row.StudentID] = row.Attended
	}
	return counts, nil
}
