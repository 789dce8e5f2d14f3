package main

import (
	models "github.com/CLDWare/attendance-backend/pkg/db"
)

func main() {
	db, err := models.InitialiseDatabaseAt("test.db")
	if err != nil {
		panic("failed to connect to database: " + err.Error())
	}

	if err := models.SeedDummyData(db); err != nil {
		panic("failed to seed dummy data: " + err.Error())
	}

	println("seeded test.db")
}
