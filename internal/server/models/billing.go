package models

import "time"

// Subscription is a user's billing tier. A missing row means the free tier.
type Subscription struct {
	UserID           string
	Tier             string
	Status           string
	CurrentPeriodEnd *time.Time
}

// Usage is the counters snapshot the quota guard reads.
type Usage struct {
	Month                string `json:"month"`
	PostsThisMonth       int    `json:"postsThisMonth"`
	AdaptationsThisMonth int    `json:"adaptationsThisMonth"`
	BrandsCount          int    `json:"brandsCount"`
	PlatformsCount       int    `json:"platformsCount"`
}
