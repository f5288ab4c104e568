// Package billing holds the subscription tier catalog and the quota guard
// consulted before metered actions.
package billing

// Unlimited marks a limit that is never reached.
const Unlimited = -1

// Tier identifiers.
const (
	TierFree = "free"
	TierPro  = "pro"
	TierTeam = "team"
)

type Limits struct {
	Brands                int `json:"brands"`
	Platforms             int `json:"platforms"`
	PostsPerMonth         int `json:"postsPerMonth"`
	AIAdaptationsPerMonth int `json:"aiAdaptationsPerMonth"`
	MediaStorageMB        int `json:"mediaStorageMb"`
}

type Features struct {
	Scheduling       bool `json:"scheduling"`
	Analytics        bool `json:"analytics"`
	CustomBranding   bool `json:"customBranding"`
	PrioritySupport  bool `json:"prioritySupport"`
	TeamMembers      int  `json:"teamMembers,omitempty"`
	ApprovalWorkflow bool `json:"approvalWorkflow,omitempty"`
}

type Tier struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Limits   Limits   `json:"limits"`
	Features Features `json:"features"`
}

var tiers = map[string]Tier{
	TierFree: {
		ID:   TierFree,
		Name: "Free",
		Limits: Limits{
			Brands:                1,
			Platforms:             3,
			PostsPerMonth:         30,
			AIAdaptationsPerMonth: 0,
			MediaStorageMB:        50,
		},
	},
	TierPro: {
		ID:   TierPro,
		Name: "Pro",
		Limits: Limits{
			Brands:                5,
			Platforms:             7,
			PostsPerMonth:         Unlimited,
			AIAdaptationsPerMonth: 500,
			MediaStorageMB:        1000,
		},
		Features: Features{Scheduling: true, Analytics: true, CustomBranding: true},
	},
	TierTeam: {
		ID:   TierTeam,
		Name: "Team",
		Limits: Limits{
			Brands:                Unlimited,
			Platforms:             7,
			PostsPerMonth:         Unlimited,
			AIAdaptationsPerMonth: Unlimited,
			MediaStorageMB:        5000,
		},
		Features: Features{
			Scheduling:       true,
			Analytics:        true,
			CustomBranding:   true,
			PrioritySupport:  true,
			TeamMembers:      5,
			ApprovalWorkflow: true,
		},
	},
}

// Catalog returns all tiers ordered free, pro, team.
func Catalog() []Tier {
	return []Tier{tiers[TierFree], tiers[TierPro], tiers[TierTeam]}
}

// LookupTier returns the tier for id; unknown ids resolve to free.
func LookupTier(id string) Tier {
	if t, ok := tiers[id]; ok {
		return t
	}
	return tiers[TierFree]
}
