package basemodel

import "time"

// BaseModel 提供统一的基础字段：ID、CreatedAt、UpdatedAt。
// 约定与特性：
//  1. ID 为主键，且自增。
//  2. CreatedAt/UpdatedAt 由 GORM 自动维护时间戳。
type BaseModel struct {
	ID        uint64    `json:"id" gorm:"primaryKey;autoIncrement;comment:主键ID"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;comment:创建时间"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime;comment:更新时间"`
}
