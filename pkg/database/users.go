package database

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stream-queue-system/pkg/models"
)

// User operations

// UpsertUserByEmail returns the user with the given email, creating it on
// first sight.
func (db *DB) UpsertUserByEmail(ctx context.Context, email, name string) (*models.User, error) {
	candidate := models.User{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Email: email,
		Name:  name,
	}
	if err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&candidate).Error; err != nil {
		return nil, err
	}

	var user models.User
	if err := db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByID returns nil without error when the user does not exist.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
