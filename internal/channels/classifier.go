package channels

import (
	"fmt"
	"sort"
)

// category pairs the referrer domain list of a channel family with its query pattern
type category struct {
	domains []Rule
	query   Rule
}

func (c category) match(domain, query string) bool {
	return matchAny(c.domains, domain) || c.query.Match(query)
}

// step is one entry of the ordered rule table
type step struct {
	name  string
	match func(domain, query string) bool
	label func(paid bool) Channel
}

// Classifier assigns a Channel to a (referrer domain, query string) pair.
// It is immutable once built and safe for concurrent use.
type Classifier struct {
	paidMedium Rule
	steps      []step
}

// NewClassifier compiles a rule set into a classifier.
func NewClassifier(rs *RuleSet) (*Classifier, error) {
	paidMedium, err := Pattern(rs.PaidMedium)
	if err != nil {
		return nil, fmt.Errorf("paid_medium: %w", err)
	}

	build := func(name string, spec CategorySpec) (category, error) {
		query, err := Pattern(spec.Pattern)
		if err != nil {
			return category{}, fmt.Errorf("%s: %w", name, err)
		}
		return category{domains: compileLiterals(spec.Domains), query: query}, nil
	}

	search, err := build("search", rs.Search)
	if err != nil {
		return nil, err
	}
	social, err := build("social", rs.Social)
	if err != nil {
		return nil, err
	}
	email, err := build("email", rs.Email)
	if err != nil {
		return nil, err
	}
	shopping, err := build("shopping", rs.Shopping)
	if err != nil {
		return nil, err
	}
	video, err := build("video", rs.Video)
	if err != nil {
		return nil, err
	}
	paidAds, err := compileSpecs(rs.PaidAds)
	if err != nil {
		return nil, fmt.Errorf("paid_ads: %w", err)
	}
	affiliate, err := Pattern(rs.Affiliate)
	if err != nil {
		return nil, fmt.Errorf("affiliate: %w", err)
	}
	sms, err := Pattern(rs.SMS)
	if err != nil {
		return nil, fmt.Errorf("sms: %w", err)
	}

	// Order matters: domain lists overlap (youtube.com is both social and video).
	return &Classifier{
		paidMedium: paidMedium,
		steps: []step{
			{name: "search", match: search.match, label: prefixed(OrganicSearch, PaidSearch)},
			{name: "social", match: social.match, label: prefixed(OrganicSocial, PaidSocial)},
			{name: "email", match: email.match, label: fixed(Email)},
			{name: "shopping", match: shopping.match, label: prefixed(OrganicShopping, PaidShopping)},
			{name: "video", match: video.match, label: prefixed(OrganicVideo, PaidVideo)},
			{name: "paidAds", match: queryRules(paidAds), label: fixed(PaidAds)},
			{name: "affiliate", match: queryRules([]Rule{affiliate}), label: fixed(Affiliate)},
			{name: "sms", match: queryRules([]Rule{sms}), label: fixed(SMS)},
		},
	}, nil
}

// MustNewClassifier is like NewClassifier but panics on error.
func MustNewClassifier(rs *RuleSet) *Classifier {
	c, err := NewClassifier(rs)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns a classifier built from the embedded rule set.
func Default() *Classifier {
	return MustNewClassifier(DefaultRuleSet())
}

func prefixed(organic, paid Channel) func(bool) Channel {
	return func(isPaid bool) Channel {
		if isPaid {
			return paid
		}
		return organic
	}
}

func fixed(ch Channel) func(bool) Channel {
	return func(bool) Channel { return ch }
}

func queryRules(rules []Rule) func(domain, query string) bool {
	return func(_, query string) bool {
		return matchAny(rules, query)
	}
}

// Classify returns the channel for a referrer domain and a landing query
// string. It never fails: unmatched traffic is a referral.
func (c *Classifier) Classify(domain, query string) Channel {
	ch, _ := c.Explain(domain, query)
	return ch
}

// Explain is Classify that also names the rule that decided the channel.
func (c *Classifier) Explain(domain, query string) (Channel, string) {
	if domain == "" && query == "" {
		return Direct, "direct"
	}

	// The paid/organic split is decided once from utm_medium and reused by
	// every category that supports it.
	paid := c.paidMedium.Match(query)

	for _, s := range c.steps {
		if s.match(domain, query) {
			return s.label(paid), s.name
		}
	}
	return Referral, "referral"
}

// Aggregate classifies each row and sums visitors per channel. The result is
// sorted by visitors, descending; ties keep the order in which channels were
// first seen.
func (c *Classifier) Aggregate(rows []Row) []Count {
	index := make(map[Channel]int)
	counts := []Count{}

	for _, row := range rows {
		ch := c.Classify(row.Domain, row.Query)
		if ch == "" {
			continue
		}
		i, ok := index[ch]
		if !ok {
			i = len(counts)
			index[ch] = i
			counts = append(counts, Count{Key: ch})
		}
		counts[i].Value += row.Visitors
	}

	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Value > counts[j].Value
	})

	return counts
}
