package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	*gorm.DB
}

func NewDatabase(dsn string) (*Database, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// SetMaxIdleConns sets the maximum number of connections in the idle connection pool.
	sqlDB.SetMaxIdleConns(10)

	// SetMaxOpenConns sets the maximum number of open connections to the database.
	sqlDB.SetMaxOpenConns(100)

	// SetConnMaxLifetime sets the maximum amount of time a connection may be reused.
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.Info("Connected to database successfully")

	return &Database{db}, nil
}

func (db *Database) Migrate() error {
	err := db.AutoMigrate(&Account{}, &User{}, &Conversation{}, &Message{}, &TypingIndicator{})
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	slog.Info("Database migration completed")
	return nil
}

// SQL exposes the pool for the hand-written storages.
func (db *Database) SQL() (*sql.DB, error) {
	return db.DB.DB()
}

func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// The structs below only describe the schema; storages talk SQL directly.

type Account struct {
	ID           string    `gorm:"column:id;primaryKey;type:text"`
	Provider     string    `gorm:"column:provider;not null;uniqueIndex:idx_accounts_identity"`
	Subject      string    `gorm:"column:subject;not null;uniqueIndex:idx_accounts_identity"`
	Email        string    `gorm:"column:email;not null;index"`
	PasswordHash []byte    `gorm:"column:password_hash"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

type User struct {
	ID          string `gorm:"column:id;primaryKey;type:text"`
	Email       string `gorm:"column:email;not null"`
	Username    string `gorm:"column:username;not null"`
	DisplayName string `gorm:"column:display_name;not null"`
	AvatarURL   string `gorm:"column:avatar_url;not null;default:''"`
	Status      string `gorm:"column:status;not null;default:'offline';index"`
	LastSeen    int64  `gorm:"column:last_seen;not null;default:0"`
	CreatedAt   int64  `gorm:"column:created_at;not null;autoCreateTime:false"`
}

type Conversation struct {
	ID                   string         `gorm:"column:id;primaryKey;type:text"`
	Type                 string         `gorm:"column:type;not null"`
	ParticipantIDs       pq.StringArray `gorm:"column:participant_ids;type:text[];not null;index:idx_conversations_participants,type:gin"`
	Name                 string         `gorm:"column:name;not null;default:''"`
	DirectKey            *string        `gorm:"column:direct_key;uniqueIndex"`
	LastMessageID        string         `gorm:"column:last_message_id;not null;default:''"`
	LastMessageText      string         `gorm:"column:last_message_text;not null;default:''"`
	LastMessageTimestamp int64          `gorm:"column:last_message_timestamp;not null;default:0"`
	CreatedAt            int64          `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt            int64          `gorm:"column:updated_at;not null;index;autoUpdateTime:false"`
}

type Message struct {
	ID             string         `gorm:"column:id;primaryKey;type:text"`
	ConversationID string         `gorm:"column:conversation_id;not null;index:idx_messages_conversation_ts"`
	SenderID       string         `gorm:"column:sender_id;not null"`
	Text           string         `gorm:"column:text;not null"`
	Timestamp      int64          `gorm:"column:timestamp;not null;index:idx_messages_conversation_ts"`
	ReadBy         pq.StringArray `gorm:"column:read_by;type:text[];not null"`
	Reactions      string         `gorm:"column:reactions;type:jsonb;not null;default:'{}'"`
}

type TypingIndicator struct {
	ConversationID string `gorm:"column:conversation_id;primaryKey;type:text"`
	UserID         string `gorm:"column:user_id;primaryKey;type:text"`
	Username       string `gorm:"column:username;not null"`
	Timestamp      int64  `gorm:"column:timestamp;not null"`
}
