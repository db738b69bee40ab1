package websites

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Website represents a tracked website
type Website struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Domain     string    `gorm:"unique;not null" json:"domain"`
	OwnerID    uint      `gorm:"index" json:"owner_id"`
	ShareToken *string   `gorm:"uniqueIndex" json:"share_token"` // If set, metrics are readable with this token
	CreatedAt  time.Time `json:"created_at"`
}

// ErrWebsiteNotFound is returned when a lookup matches no website
var ErrWebsiteNotFound = errors.New("website not found")

// GetWebsiteByID retrieves a website by its ID
func GetWebsiteByID(db *gorm.DB, id uint) (Website, error) {
	var website Website
	if err := db.First(&website, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Website{}, ErrWebsiteNotFound
		}
		return Website{}, fmt.Errorf("unexpected error querying website: %w", err)
	}
	return website, nil
}

// GetWebsiteByDomain retrieves a website by its domain
func GetWebsiteByDomain(db *gorm.DB, domain string) (*Website, error) {
	var website Website
	if err := db.Where("domain = ?", strings.ToLower(domain)).First(&website).Error; err != nil {
		return nil, err
	}
	return &website, nil
}

// GetAllWebsites retrieves all websites
func GetAllWebsites(db *gorm.DB) ([]Website, error) {
	var websites []Website
	if err := db.Order("id").Find(&websites).Error; err != nil {
		return nil, fmt.Errorf("failed to get websites: %w", err)
	}
	return websites, nil
}

// CreateWebsite creates a new website
func CreateWebsite(db *gorm.DB, website *Website) error {
	website.Domain = strings.ToLower(strings.TrimSpace(website.Domain))
	if website.Domain == "" {
		return errors.New("domain cannot be empty")
	}
	website.CreatedAt = time.Now().UTC()
	return db.Create(website).Error
}
