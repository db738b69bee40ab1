package websites

import (
	"crypto/rand"
	"encoding/base64"

	"gorm.io/gorm"
)

// generateToken creates a URL-safe random token of the specified length
func generateToken(length int) string {
	bytes := make([]byte, length)
	rand.Read(bytes)
	return base64.URLEncoding.EncodeToString(bytes)[:length]
}

// EnableSharing generates a share token for the website, enabling token access to its metrics
func EnableSharing(db *gorm.DB, websiteID uint) (string, error) {
	token := generateToken(12)
	result := db.Model(&Website{}).
		Where("id = ?", websiteID).
		Update("share_token", token)
	if result.Error != nil {
		return "", result.Error
	}
	if result.RowsAffected == 0 {
		return "", ErrWebsiteNotFound
	}
	return token, nil
}

// DisableSharing removes the share token, invalidating previously handed out links
func DisableSharing(db *gorm.DB, websiteID uint) error {
	return db.Model(&Website{}).
		Where("id = ?", websiteID).
		Update("share_token", nil).Error
}
