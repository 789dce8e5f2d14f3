package db

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func strPtr(s string) *string {
	return &s
}

// SeedDummyData fills the database with a small development dataset: one
// department, a lecturer with a course, three students and a closed session
// with two marks.
func SeedDummyData(db *gorm.DB) error {
	ctx := context.Background()

	dept := Department{
		Name: "Computer Science",
		Code: "CSC",
	}
	if err := gorm.G[Department](db).Create(ctx, &dept); err != nil {
		return err
	}

	lecturer := User{
		Email:        "a.bello@unilag.edu.ng",
		Name:         "Adaeze Bello",
		Role:         RoleLecturer,
		DepartmentID: dept.ID,
	}
	if err := gorm.G[User](db).Create(ctx, &lecturer); err != nil {
		return err
	}

	students := []User{
		{Email: "c.okafor@student.unilag.edu.ng", Name: "Chinedu Okafor", Role: RoleStudent, MatricNumber: strPtr("CSC/2023/001"), DepartmentID: dept.ID},
		{Email: "f.adeyemi@student.unilag.edu.ng", Name: "Funke Adeyemi", Role: RoleStudent, MatricNumber: strPtr("CSC/2023/002"), DepartmentID: dept.ID},
		{Email: "t.musa@student.unilag.edu.ng", Name: "Tunde Musa", Role: RoleStudent, MatricNumber: strPtr("CSC/2023/003"), DepartmentID: dept.ID},
	}
	for i := range students {
		if err := gorm.G[User](db).Create(ctx, &students[i]); err != nil {
			return err
		}
	}

	course := Course{
		Code:         "CSC301",
		Title:        "Data Structures and Algorithms",
		DepartmentID: dept.ID,
		LecturerID:   lecturer.ID,
	}
	if err := gorm.G[Course](db).Create(ctx, &course); err != nil {
		return err
	}

	// A session that ran yesterday and was closed with two students marked
	session := AttendanceSession{
		CourseID:   course.ID,
		LecturerID: lecturer.ID,
		Token:      "seed-token-0001",
		State:      SessionStateClosed,
		ExpiresAt:  time.Now().Add(-24 * time.Hour),
		MarkCount:  2,
	}
	if err := gorm.G[AttendanceSession](db).Create(ctx, &session); err != nil {
		return err
	}

	for _, student := range students[:2] {
		record := AttendanceRecord{
			SessionID: session.ID,
			StudentID: student.ID,
			CourseID:  course.ID,
			MarkedAt:  time.Now().Add(-24 * time.Hour),
		}
		if err := gorm.G[AttendanceRecord](db).Create(ctx, &record); err != nil {
			return err
		}
	}

	return nil
}
