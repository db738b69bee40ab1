package websites

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trafficlens/internal/metrics"
	"trafficlens/internal/users"
)

// Access decides who may read a website's metrics. An admin may read every
// website, an owner their own, and anyone holding the website's share token
// that one website.
type Access struct {
	db *gorm.DB
}

func NewAccess(db *gorm.DB) *Access {
	return &Access{db: db}
}

var _ metrics.Authorizer = (*Access)(nil)

func (a *Access) CanView(ctx context.Context, viewer metrics.Viewer, websiteID uint) (bool, error) {
	db := a.db.WithContext(ctx)

	website, err := GetWebsiteByID(db, websiteID)
	if errors.Is(err, ErrWebsiteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if viewer.ShareToken != "" && website.ShareToken != nil &&
		subtle.ConstantTimeCompare([]byte(viewer.ShareToken), []byte(*website.ShareToken)) == 1 {
		return true, nil
	}

	if viewer.UserID == 0 {
		return false, nil
	}
	if website.OwnerID == viewer.UserID {
		return true, nil
	}

	user, err := users.FindByID(db, viewer.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load user %d: %w", viewer.UserID, err)
	}
	return user.IsAdmin(), nil
}
