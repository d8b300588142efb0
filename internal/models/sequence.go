package models

type Sequence struct {
	ID         uint   `gorm:"primaryKey"`
	EntityType string `gorm:"size:50;not null;uniqueIndex:idx_sequence_entity_year"`
	Year       int    `gorm:"not null;uniqueIndex:idx_sequence_entity_year"`
	Prefix     string `gorm:"size:10;not null"`
	LastNumber int    `gorm:"not null;default:0"`
}
