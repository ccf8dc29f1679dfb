package migration_0

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Schema of the single-user deployment, before accounts existed.

type Chat struct {
	ID        uuid.UUID `gorm:"column:chat_id;type:uuid;primaryKey"`
	Title     string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index"`
	FileType  string    `gorm:"not null"`
	FilePath  *string
	FileURL   *string

	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID        uuid.UUID `gorm:"column:message_id;type:uuid;primaryKey"`
	ChatID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Role      string    `gorm:"not null"`
	Content   string
	Timestamp time.Time `gorm:"index"`
}

func Migration(db *gorm.DB) error {
	return db.AutoMigrate(&Chat{}, &Message{})
}
