package database

import "askbox/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Order matters for AutoMigrate on databases that enforce foreign keys.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Profile{},
		&models.ProfileManager{},
		&models.Follow{},
		&models.Question{},
		&models.Post{},
		&models.PostLike{},
	}
}
