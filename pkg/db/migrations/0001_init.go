package migrations

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

type User struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username         string    `gorm:"type:text;uniqueIndex;not null"`
	SubjectID        string    `gorm:"type:text;uniqueIndex;not null"`
	Locale           string    `gorm:"type:text;not null;default:ko"`
	QuestionSecurity string    `gorm:"type:text;not null;default:anyone"`
	AnsweredSequence int64     `gorm:"type:bigint;not null;default:0"`
	CreatedAt        time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	UpdatedAt        time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Question struct {
	ID           int64      `gorm:"type:bigserial;primaryKey"`
	RecipientID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	SenderID     *uuid.UUID `gorm:"type:uuid;index"`
	Content      string     `gorm:"type:text;not null"`
	IsAnonymous  bool       `gorm:"not null;default:true"`
	AnswerID     *int64     `gorm:"type:bigint"`
	AnsweredAt   *time.Time `gorm:"type:timestamptz"`
	AnswerNumber *int64     `gorm:"type:bigint"`
	CreatedAt    time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	DeletedAt    *time.Time `gorm:"type:timestamptz;index"`
	Recipient    User       `gorm:"foreignKey:RecipientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Answer struct {
	ID         int64      `gorm:"type:bigserial;primaryKey"`
	QuestionID int64      `gorm:"type:bigint;uniqueIndex;not null"`
	Content    string     `gorm:"type:text;not null"`
	CreatedAt  time.Time  `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	DeletedAt  *time.Time `gorm:"type:timestamptz;index"`
	Question   Question   `gorm:"foreignKey:QuestionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type PushSubscription struct {
	ID        int64     `gorm:"type:bigserial;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Endpoint  string    `gorm:"type:text;uniqueIndex;not null"`
	P256dh    string    `gorm:"type:text;not null"`
	Auth      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
	User      User      `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

type Stat struct {
	Key       string    `gorm:"type:text;primaryKey"`
	Count     int64     `gorm:"type:bigint;not null;default:0"`
	UpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime"`
}

type Log struct {
	ID             int64          `gorm:"type:bigserial;primaryKey"`
	IPAddress      *string        `gorm:"type:text"`
	GeoCity        *string        `gorm:"type:text"`
	GeoCountry     *string        `gorm:"type:text"`
	GeoCountryFlag *string        `gorm:"type:text"`
	GeoRegion      *string        `gorm:"type:text"`
	GeoEdgeRegion  *string        `gorm:"type:text"`
	GeoLatitude    *string        `gorm:"type:text"`
	GeoLongitude   *string        `gorm:"type:text"`
	GeoPostalCode  *string        `gorm:"type:text"`
	UserAgent      *string        `gorm:"type:text"`
	Referer        *string        `gorm:"type:text"`
	AcceptLanguage *string        `gorm:"type:text"`
	UserID         *string        `gorm:"type:text;index"`
	Action         string         `gorm:"type:text;not null;index"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	EntityType     *string        `gorm:"type:text"`
	EntityID       *int64         `gorm:"type:bigint"`
	Success        int            `gorm:"type:smallint;not null"`
	ErrorMessage   *string        `gorm:"type:text"`
	CreatedAt      time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (Log) TableName() string { return "logs" }

func upInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).AutoMigrate(
		&User{},
		&Question{},
		&Answer{},
		&PushSubscription{},
		&Stat{},
		&Log{},
	); err != nil {
		return err
	}

	m := gormDB.WithContext(ctx).Migrator()
	if err := m.CreateConstraint(&Question{}, "Recipient"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&Answer{}, "Question"); err != nil {
		return err
	}
	if err := m.CreateConstraint(&PushSubscription{}, "User"); err != nil {
		return err
	}

	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: tx, PreferSimpleProtocol: true}), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return err
	}

	if err := gormDB.WithContext(ctx).Migrator().DropTable(
		&Log{},
		&Stat{},
		&PushSubscription{},
		&Answer{},
		&Question{},
		&User{},
	); err != nil {
		return err
	}

	return nil
}
