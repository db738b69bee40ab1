package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Event types stored in WebsiteEvent.EventType
const (
	EventTypePageview = 1
	EventTypeCustom   = 2
)

// Session holds the visitor attributes shared by all events of one visit
type Session struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	WebsiteID uint   `gorm:"index;not null"`
	Browser   string `gorm:"not null;default:''"`
	OS        string `gorm:"not null;default:''"`
	Device    string `gorm:"not null;default:''"`
	Screen    string `gorm:"not null;default:''"`
	Language  string `gorm:"not null;default:''"`
	Country   string `gorm:"not null;default:''"`
	Region    string `gorm:"not null;default:''"`
	City      string `gorm:"not null;default:''"`
	CreatedAt time.Time
}

// WebsiteEvent is a pageview or a custom event
type WebsiteEvent struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	WebsiteID      uint      `gorm:"index:idx_website_events_site_time,priority:1;not null"`
	SessionID      uint      `gorm:"index;not null"`
	EventType      int       `gorm:"not null;default:1"`
	URLPath        string    `gorm:"not null;default:''"`
	URLQuery       string    `gorm:"not null;default:''"`
	ReferrerDomain string    `gorm:"not null;default:''"`
	ReferrerPath   string    `gorm:"not null;default:''"`
	PageTitle      string    `gorm:"not null;default:''"`
	Hostname       string    `gorm:"not null;default:''"`
	EventName      string    `gorm:"not null;default:''"`
	Tag            string    `gorm:"not null;default:''"`
	EventData      JSON      `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"index:idx_website_events_site_time,priority:2"`
}

// JSON is a raw JSON column
type JSON []byte

// Scan implements sql.Scanner
func (j *JSON) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("store: cannot scan %T into JSON", value)
	}
	if len(*j) > 0 && !json.Valid(*j) {
		return fmt.Errorf("store: invalid JSON value")
	}
	return nil
}

// Value implements driver.Valuer
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON implements the json.Marshaler interface
func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return fmt.Errorf("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}
