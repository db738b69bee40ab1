package websites_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/metrics"
	"trafficlens/internal/testsupport"
	"trafficlens/internal/users"
	"trafficlens/internal/websites"
)

func TestGetWebsiteOrNotFound(t *testing.T) {
	db := testsupport.SetupTestDB(t)

	site := testsupport.CreateTestWebsite(t, db, "  Example.COM ", 0)
	assert.Equal(t, "example.com", site.Domain)

	got, err := websites.GetWebsiteByID(db, site.ID)
	require.NoError(t, err)
	assert.Equal(t, site.ID, got.ID)

	_, err = websites.GetWebsiteByID(db, site.ID+100)
	assert.ErrorIs(t, err, websites.ErrWebsiteNotFound)

	byDomain, err := websites.GetWebsiteByDomain(db, "EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, site.ID, byDomain.ID)
}

func TestCreateWebsiteRejectsEmptyDomain(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	err := websites.CreateWebsite(db, &websites.Website{Domain: "   "})
	assert.Error(t, err)
}

func TestSharing(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	site := testsupport.CreateTestWebsite(t, db, "shared.example", 0)

	token, err := websites.EnableSharing(db, site.ID)
	require.NoError(t, err)
	assert.Len(t, token, 12)

	got, err := websites.GetWebsiteByID(db, site.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ShareToken)
	assert.Equal(t, token, *got.ShareToken)

	require.NoError(t, websites.DisableSharing(db, site.ID))
	got, err = websites.GetWebsiteByID(db, site.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ShareToken)

	_, err = websites.EnableSharing(db, site.ID+100)
	assert.ErrorIs(t, err, websites.ErrWebsiteNotFound)
}

func TestAccessCanView(t *testing.T) {
	db := testsupport.SetupTestDB(t)
	ctx := context.Background()

	owner := testsupport.CreateTestUser(t, db, "owner@example.com", users.RoleViewer)
	other := testsupport.CreateTestUser(t, db, "other@example.com", users.RoleViewer)
	admin := testsupport.CreateTestUser(t, db, "admin@example.com", users.RoleAdmin)

	site := testsupport.CreateTestWebsite(t, db, "private.example", owner.ID)
	token, err := websites.EnableSharing(db, site.ID)
	require.NoError(t, err)

	access := websites.NewAccess(db)

	tests := []struct {
		name      string
		viewer    metrics.Viewer
		websiteID uint
		want      bool
	}{
		{"owner", metrics.Viewer{UserID: owner.ID}, site.ID, true},
		{"admin", metrics.Viewer{UserID: admin.ID}, site.ID, true},
		{"other user", metrics.Viewer{UserID: other.ID}, site.ID, false},
		{"share token", metrics.Viewer{ShareToken: token}, site.ID, true},
		{"wrong token", metrics.Viewer{ShareToken: token + "x"}, site.ID, false},
		{"anonymous", metrics.Viewer{}, site.ID, false},
		{"unknown user", metrics.Viewer{UserID: 9999}, site.ID, false},
		{"missing website", metrics.Viewer{UserID: admin.ID}, site.ID + 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := access.CanView(ctx, tt.viewer, tt.websiteID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("disabled sharing revokes the token", func(t *testing.T) {
		require.NoError(t, websites.DisableSharing(db, site.ID))
		got, err := access.CanView(ctx, metrics.Viewer{ShareToken: token}, site.ID)
		require.NoError(t, err)
		assert.False(t, got)
	})
}
