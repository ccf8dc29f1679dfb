package migration_1

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const LegacyUsername = "legacy"

type User struct {
	ID           uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
}

type Chat struct {
	ID     uuid.UUID  `gorm:"column:chat_id;type:uuid;primaryKey"`
	UserID *uuid.UUID `gorm:"type:uuid;index"`
}

type Message struct {
	Metadata datatypes.JSON
}

// owner and ownedChat describe chats.user_id once every chat has an owner.
type owner struct {
	ID    uuid.UUID   `gorm:"column:user_id;type:uuid;primaryKey"`
	Chats []ownedChat `gorm:"foreignKey:UserID"`
}

func (owner) TableName() string { return "users" }

type ownedChat struct {
	ID     uuid.UUID `gorm:"column:chat_id;type:uuid;primaryKey"`
	UserID uuid.UUID `gorm:"type:uuid;index;not null"`
}

func (ownedChat) TableName() string { return "chats" }

// Migration adds accounts. Chats created before accounts existed are assigned
// to a placeholder user whose password hash can never match.
func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&User{}); err != nil {
		return fmt.Errorf("error creating users table: %w", err)
	}

	if err := db.Migrator().AddColumn(&Chat{}, "UserID"); err != nil {
		return fmt.Errorf("error adding user_id column: %w", err)
	}

	if err := db.Migrator().AddColumn(&Message{}, "Metadata"); err != nil {
		return fmt.Errorf("error adding metadata column: %w", err)
	}

	if err := assignOrphans(db); err != nil {
		return err
	}

	if err := db.Migrator().AlterColumn(&ownedChat{}, "UserID"); err != nil {
		return fmt.Errorf("error making user_id required: %w", err)
	}

	if !db.Migrator().HasConstraint(&owner{}, "Chats") {
		if err := db.Migrator().CreateConstraint(&owner{}, "Chats"); err != nil {
			return fmt.Errorf("error adding chat owner foreign key: %w", err)
		}
	}

	return nil
}

func assignOrphans(db *gorm.DB) error {
	var orphans int64
	if err := db.Model(&Chat{}).Where("user_id IS NULL").Count(&orphans).Error; err != nil {
		return fmt.Errorf("error counting unowned chats: %w", err)
	}
	if orphans == 0 {
		return nil
	}

	legacy := User{ID: uuid.New(), Username: LegacyUsername, PasswordHash: "!", CreatedAt: time.Now().UTC()}
	if err := db.Create(&legacy).Error; err != nil {
		return fmt.Errorf("error creating legacy user: %w", err)
	}

	if err := db.Model(&Chat{}).Where("user_id IS NULL").Update("user_id", legacy.ID).Error; err != nil {
		return fmt.Errorf("error assigning unowned chats: %w", err)
	}

	slog.Info("assigned unowned chats to legacy user", "chats", orphans, "user_id", legacy.ID)

	return nil
}

func Rollback(db *gorm.DB) error {
	if db.Migrator().HasConstraint(&owner{}, "Chats") {
		if err := db.Migrator().DropConstraint(&owner{}, "Chats"); err != nil {
			return fmt.Errorf("error dropping chat owner foreign key: %w", err)
		}
	}

	if err := db.Migrator().DropColumn(&Message{}, "Metadata"); err != nil {
		return fmt.Errorf("error dropping metadata column: %w", err)
	}

	if err := db.Migrator().DropColumn(&Chat{}, "UserID"); err != nil {
		return fmt.Errorf("error dropping user_id column: %w", err)
	}

	if err := db.Migrator().DropTable(&User{}); err != nil {
		return fmt.Errorf("error dropping users table: %w", err)
	}

	return nil
}
