package channels_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"trafficlens/internal/channels"
)

func TestAggregate(t *testing.T) {
	classifier := channels.Default()

	t.Run("ranks channels by visitors", func(t *testing.T) {
		rows := []channels.Row{
			{Domain: "google.com", Query: "utm_medium=ppc", Visitors: 5},
			{Domain: "", Query: "", Visitors: 3},
			{Domain: "facebook.com", Query: "", Visitors: 2},
		}

		got := classifier.Aggregate(rows)
		want := []channels.Count{
			{Key: channels.PaidSearch, Value: 5},
			{Key: channels.Direct, Value: 3},
			{Key: channels.OrganicSocial, Value: 2},
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("sums repeated channels", func(t *testing.T) {
		rows := []channels.Row{
			{Domain: "google.com", Visitors: 4},
			{Domain: "bing.com", Visitors: 6},
			{Domain: "example.org", Visitors: 7},
			{Domain: "duckduckgo.com", Visitors: 1},
		}

		got := classifier.Aggregate(rows)
		assert.Equal(t, []channels.Count{
			{Key: channels.OrganicSearch, Value: 11},
			{Key: channels.Referral, Value: 7},
		}, got)
	})

	t.Run("output preserves the visitor total", func(t *testing.T) {
		rows := []channels.Row{
			{Domain: "google.com", Query: "utm_medium=cpc", Visitors: 12},
			{Domain: "", Query: "utm_medium=email", Visitors: 9},
			{Domain: "vimeo.com", Visitors: 3},
			{Domain: "", Query: "gclid=1", Visitors: 8},
			{Domain: "", Query: "", Visitors: 40},
			{Domain: "blog.example.org", Visitors: 0},
			{Domain: "etsy.com", Visitors: 2},
		}

		var in, out int64
		for _, r := range rows {
			in += r.Visitors
		}
		for _, c := range classifier.Aggregate(rows) {
			out += c.Value
		}
		assert.Equal(t, in, out)
	})

	t.Run("ties keep first seen order", func(t *testing.T) {
		rows := []channels.Row{
			{Domain: "example.org", Visitors: 2},
			{Domain: "google.com", Visitors: 2},
		}
		got := classifier.Aggregate(rows)
		assert.Equal(t, channels.Referral, got[0].Key)
		assert.Equal(t, channels.OrganicSearch, got[1].Key)
	})

	t.Run("empty input gives empty output", func(t *testing.T) {
		assert.Empty(t, classifier.Aggregate(nil))
	})
}
