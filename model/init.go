package model

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

func InstallDB(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&User{},
		&Message{},
		&Plan{},
		&Subscription{},
		&LLMModel{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// SeedDefaults makes sure the guest plan and the configured model exist so a
// fresh database can serve its first turn.
func SeedDefaults(db *gorm.DB, guestPlanID string, modelName string) error {
	var plan Plan
	err := db.Where("id = ?", guestPlanID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		plan = Plan{ID: guestPlanID, Name: "guest", Gem: 3000, Price: 0}
		if err := db.Create(&plan).Error; err != nil {
			return fmt.Errorf("failed to seed guest plan: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}

	if modelName == "" {
		return nil
	}
	var count int64
	if err := db.Model(&LLMModel{}).Where("name = ?", modelName).Count(&count).Error; err != nil {
		return fmt.Errorf("database query failed: %w", err)
	}
	if count > 0 {
		return nil
	}
	if err := db.Create(&LLMModel{Name: modelName, DisplayName: modelName, UserCost: 0.1, ModelCost: 0.4}).Error; err != nil {
		return fmt.Errorf("failed to seed model %s: %w", modelName, err)
	}
	return nil
}
