package repository

import (
	"errors"

	"askbox/internal/database"
	"askbox/internal/models"

	"gorm.io/gorm"
)

// defaultListLimit and maxListLimit bound list queries that take a limit.
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// notFoundOr converts a missing row into NotFound and anything else into Internal.
func notFoundOr(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}
