package model

import "gorm.io/gorm"

// one published revision per template, one scheduled revision per instant
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_revisions_one_published ON revisions (template_id) WHERE status = 'PUBLISHED'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_revisions_scheduled_at ON revisions (template_id, scheduled_publish_at) WHERE status = 'SCHEDULED'`,
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Workspace{}, &Template{}, &Revision{}, &RevisionInjectable{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&Injectable{}, &Membership{}); err != nil {
		return err
	}

	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
