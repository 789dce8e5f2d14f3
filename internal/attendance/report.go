package attendance

import (
	"context"
	"math"
	"time"

	models "github.com/CLDWare/attendance-backend/pkg/db"
	"gorm.io/gorm"
)

// ReportRow is one student's line in a course report. Status is the
// human-readable side of the at-risk flag.
type ReportRow struct {
	MatricNumber string `json:"matric_number"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Attended     int    `json:"attended"`
	Total        int    `json:"total"`
	Percentage   int    `json:"percentage"`
	Status       string `json:"status"`
}

// Report is the full shaped output for one course. Rows are sorted by matric
// number, so generating the same report twice against unchanged data is
// byte-identical; CSV and other renderings are done by consumers.
type Report struct {
	CourseCode        string      `json:"course_code"`
	CourseTitle       string      `json:"course_title"`
	Department        string      `json:"department"`
	GeneratedAt       time.Time   `json:"generated_at"`
	TotalSessions     int         `json:"total_sessions"`
	TotalStudents     int         `json:"total_students"`
	AverageAttendance int         `json:"average_attendance"`
	AtRiskCount       int         `json:"at_risk_count"`
	Students          []ReportRow `json:"students"`
}

// BuildCourseReport shapes the attendance report for a course the lecturer
// owns.
func (a *Aggregator) BuildCourseReport(ctx context.Context, courseID, lecturerID uint) (*Report, error) {
	course, err := gorm.G[models.Course](a.db).
		Preload("Department", nil).
		Where("id = ? AND lecturer_id = ?", courseID, lecturerID).
		First(ctx)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrCourseNotFound
	} else if err != nil {
		return nil, err
	}

	percentages, err := a.CoursePercentages(ctx, courseID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		CourseCode:  course.Code,
		CourseTitle: course.Title,
		Department:  course.Department.Name,
		GeneratedAt: time.Now(),
		Students:    buildRows(percentages),
	}

	sum := 0
	for _, p := range percentages {
		report.TotalStudents++
		report.TotalSessions = p.Total
		sum += p.Percentage
		if p.AtRisk {
			report.AtRiskCount++
		}
	}
	if report.TotalStudents > 0 {
		report.AverageAttendance = int(math.Round(float64(sum) / float64(report.TotalStudents)))
	}

	return report, nil
}

// buildRows is the pure shaping step; input order (matric number) is kept.
func buildRows(percentages []StudentPercentage) []ReportRow {
	rows := make([]ReportRow, 0, len(percentages))
	for _, p := range percentages {
		status := "Good"
		if p.AtRisk {
			status = "At Risk"
		}
		rows = append(rows, ReportRow{
			MatricNumber: p.MatricNumber,
			Name:         p.Name,
			Email:        p.Email,
			Attended:     p.Attended,
			Total:        p.Total,
			Percentage:   p.Percentage,
			Status:       status,
		})
	}
	return rows
}
