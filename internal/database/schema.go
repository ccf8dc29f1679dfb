package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
)

func (r Role) Valid() bool {
	return r == RoleHuman || r == RoleAI
}

type User struct {
	ID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time

	Chats []Chat `gorm:"foreignKey:UserID"`
}

type Chat struct {
	ID        uuid.UUID `gorm:"column:chat_id;type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Title     string
	CreatedAt time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index"`
	FileType  string    `gorm:"not null"`

	// Exactly one of FilePath and FileURL is set, depending on FileType.
	FilePath *string
	FileURL  *string

	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

type Message struct {
	ID        uuid.UUID `gorm:"column:message_id;type:uuid;primaryKey"`
	ChatID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Role      Role      `gorm:"not null"`
	Content   string
	Timestamp time.Time `gorm:"index"`
	Metadata  datatypes.JSON
}
