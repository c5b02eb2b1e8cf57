package model

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 通用主键与时间戳
type BaseModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CentsToFloat 分转元
func CentsToFloat(amount int64) float64 {
	return float64(amount) / 100
}
