package models

import (
	"log"

	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) {
	err := db.AutoMigrate(
		&DocumentOwner{},
		&DocumentRecord{},
		&History{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
