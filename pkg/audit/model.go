package audit

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type logModel struct {
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
	UserID         *string        `gorm:"type:text"`
	Action         string         `gorm:"type:text;not null"`
	Payload        datatypes.JSON `gorm:"type:jsonb"`
	EntityType     *string        `gorm:"type:text"`
	EntityID       *int64         `gorm:"type:bigint"`
	Success        int            `gorm:"type:smallint;not null"`
	ErrorMessage   *string        `gorm:"type:text"`
	CreatedAt      time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime"`
}

func (logModel) TableName() string { return "logs" }

// GormSink appends audit entries to the logs table.
type GormSink struct {
	db *gorm.DB
}

// NewGormSink constructs a Sink over the provided ORM handle.
func NewGormSink(db *gorm.DB) (*GormSink, error) {
	if db == nil {
		return nil, errors.New("nil gorm db")
	}
	return &GormSink{db: db}, nil
}

// Append inserts one audit row.
func (s *GormSink) Append(ctx context.Context, entry Entry) error {
	model := logModel{
		IPAddress:      textOrNil(entry.IPAddress),
		GeoCity:        textOrNil(entry.GeoCity),
		GeoCountry:     textOrNil(entry.GeoCountry),
		GeoCountryFlag: textOrNil(entry.GeoCountryFlag),
		GeoRegion:      textOrNil(entry.GeoRegion),
		GeoEdgeRegion:  textOrNil(entry.GeoEdgeRegion),
		GeoLatitude:    textOrNil(entry.GeoLatitude),
		GeoLongitude:   textOrNil(entry.GeoLongitude),
		GeoPostalCode:  textOrNil(entry.GeoPostalCode),
		UserAgent:      textOrNil(entry.UserAgent),
		Referer:        textOrNil(entry.Referer),
		AcceptLanguage: textOrNil(entry.AcceptLanguage),
		UserID:         textOrNil(entry.ActorID),
		Action:         entry.Action,
		EntityType:     textOrNil(string(entry.EntityType)),
		EntityID:       entry.EntityID,
		ErrorMessage:   textOrNil(entry.ErrorMessage),
	}
	if entry.Success {
		model.Success = 1
	}
	if len(entry.Payload) > 0 {
		model.Payload = datatypes.JSON(entry.Payload)
	}

	return s.db.WithContext(ctx).Create(&model).Error
}

func textOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
