// Package channels attributes visits to traffic acquisition channels.
//
// A Classifier evaluates an ordered list of rules against the referrer domain
// and the landing page query string of a visit and returns exactly one
// Channel. Domain lists and query patterns come from a RuleSet, which is
// loaded from the embedded rules.yml or from an override file.
package channels

// Channel is a traffic acquisition channel label
type Channel string

const (
	Direct          Channel = "direct"
	OrganicSearch   Channel = "organicSearch"
	PaidSearch      Channel = "paidSearch"
	OrganicSocial   Channel = "organicSocial"
	PaidSocial      Channel = "paidSocial"
	Email           Channel = "email"
	OrganicShopping Channel = "organicShopping"
	PaidShopping    Channel = "paidShopping"
	OrganicVideo    Channel = "organicVideo"
	PaidVideo       Channel = "paidVideo"
	PaidAds         Channel = "paidAds"
	Affiliate       Channel = "affiliate"
	SMS             Channel = "sms"
	Referral        Channel = "referral"
)

// All lists every channel a Classifier can return.
var All = []Channel{
	Direct,
	OrganicSearch, PaidSearch,
	OrganicSocial, PaidSocial,
	Email,
	OrganicShopping, PaidShopping,
	OrganicVideo, PaidVideo,
	PaidAds,
	Affiliate,
	SMS,
	Referral,
}

// Row is one raw acquisition record: the referrer domain and landing query
// string of a group of visits. Empty strings stand for missing values.
type Row struct {
	Domain   string `json:"domain"`
	Query    string `json:"query"`
	Visitors int64  `json:"visitors"`
}

// Count is the number of visitors attributed to a channel
type Count struct {
	Key   Channel `json:"key"`
	Value int64   `json:"value"`
}

// IsValid reports whether ch is one of the known channels.
func (ch Channel) IsValid() bool {
	for _, known := range All {
		if ch == known {
			return true
		}
	}
	return false
}
