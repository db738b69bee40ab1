package channels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/channels"
)

func TestClassify(t *testing.T) {
	classifier := channels.Default()

	tests := []struct {
		name     string
		domain   string
		query    string
		expected channels.Channel
	}{
		{"no referrer and no query is direct", "", "", channels.Direct},
		{"search engine with organic medium", "google.com", "utm_medium=organic", channels.OrganicSearch},
		{"search engine with ppc medium", "google.com", "utm_medium=ppc", channels.PaidSearch},
		{"search engine without campaign", "www.bing.com", "", channels.OrganicSearch},
		{"organic medium without referrer", "", "utm_medium=organic", channels.OrganicSearch},
		{"cpc medium on search engine", "duckduckgo.com", "utm_source=ddg&utm_medium=cpc", channels.PaidSearch},
		{"social network", "facebook.com", "", channels.OrganicSocial},
		{"social network with paid social medium", "linkedin.com", "utm_medium=paid_social", channels.PaidSocial},
		{"social medium without referrer", "", "utm_medium=social", channels.OrganicSocial},
		{"email medium", "", "utm_medium=email", channels.Email},
		{"email never gets a paid prefix", "", "utm_medium=paid-email", channels.Email},
		{"webmail referrer", "outlook.live.com", "", channels.Email},
		{"shopping referrer", "www.amazon.de", "", channels.OrganicShopping},
		{"shopping campaign", "", "utm_campaign=summer-shopping", channels.OrganicShopping},
		{"shopping campaign with retargeting", "", "utm_campaign=shopping&utm_medium=retargeting", channels.PaidShopping},
		{"video referrer", "vimeo.com", "", channels.OrganicVideo},
		{"video medium", "", "utm_medium=video", channels.OrganicVideo},
		{"paid video medium", "twitch.tv", "utm_medium=paid-video", channels.PaidVideo},
		{"youtube is social before video", "youtube.com", "", channels.OrganicSocial},
		{"click identifier", "", "gclid=abc123", channels.PaidAds},
		{"facebook click identifier on unknown referrer", "example.org", "fbclid=xyz", channels.PaidAds},
		{"display medium", "", "utm_medium=display", channels.PaidAds},
		{"affiliate medium", "partner.example", "utm_medium=affiliate", channels.Affiliate},
		{"sms source", "", "utm_source=sms", channels.SMS},
		{"unknown referrer", "blog.example.org", "", channels.Referral},
		{"unknown query without referrer", "", "ref=newsletter-archive", channels.Referral},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, classifier.Classify(tc.domain, tc.query))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	classifier := channels.Default()
	inputs := [][2]string{
		{"google.com", "utm_medium=cpc"},
		{"", "utm_medium=email"},
		{"news.example.com", ""},
	}

	for _, in := range inputs {
		first := classifier.Classify(in[0], in[1])
		for i := 0; i < 20; i++ {
			require.Equal(t, first, classifier.Classify(in[0], in[1]))
		}
	}
}

func TestClassifyAlwaysReturnsKnownChannel(t *testing.T) {
	classifier := channels.Default()
	domains := []string{"", "google.com", "facebook.com", "gmail.com", "etsy.com", "vimeo.com", "example.com"}
	queries := []string{"", "utm_medium=cpc", "utm_medium=email", "gclid=1", "utm_medium=affiliate", "utm_source=sms", "a=b"}

	for _, d := range domains {
		for _, q := range queries {
			ch := classifier.Classify(d, q)
			assert.True(t, ch.IsValid(), "classify(%q, %q) returned %q", d, q, ch)
		}
	}
}

func TestExplainNamesDecidingRule(t *testing.T) {
	classifier := channels.Default()

	ch, rule := classifier.Explain("youtube.com", "")
	assert.Equal(t, channels.OrganicSocial, ch)
	assert.Equal(t, "social", rule)

	ch, rule = classifier.Explain("", "")
	assert.Equal(t, channels.Direct, ch)
	assert.Equal(t, "direct", rule)

	ch, rule = classifier.Explain("example.org", "")
	assert.Equal(t, channels.Referral, ch)
	assert.Equal(t, "referral", rule)
}

func TestRuleMatch(t *testing.T) {
	t.Run("literal is a case sensitive substring test", func(t *testing.T) {
		rule := channels.Literal("google.com")
		assert.True(t, rule.Match("www.google.com"))
		assert.False(t, rule.Match("WWW.GOOGLE.COM"))
		assert.False(t, rule.Match("bing.com"))
	})

	t.Run("empty candidate never matches", func(t *testing.T) {
		assert.False(t, channels.Literal("google.com").Match(""))

		pattern, err := channels.Pattern("utm_medium=.*")
		require.NoError(t, err)
		assert.False(t, pattern.Match(""))
	})

	t.Run("pattern matches anywhere in the query", func(t *testing.T) {
		rule, err := channels.Pattern("utm_medium=(ppc|cpc)")
		require.NoError(t, err)
		assert.True(t, rule.Match("utm_source=google&utm_medium=ppc&utm_campaign=x"))
		assert.False(t, rule.Match("utm_source=google"))
		assert.Equal(t, "utm_medium=(ppc|cpc)", rule.String())
	})

	t.Run("invalid pattern is rejected", func(t *testing.T) {
		_, err := channels.Pattern("utm_medium=(")
		assert.Error(t, err)
	})
}
