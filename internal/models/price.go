package models

import "time"

// CommunityPrice is a shelf price submitted by a user.
type CommunityPrice struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	ShopName          string     `json:"shopName"`
	ShopLocation      string     `json:"shopLocation"`
	Postcode          *string    `json:"postcode"`
	PostcodeArea      *string    `json:"postcodeArea"`
	ItemName          string     `json:"itemName"`
	NormalizedName    string     `json:"normalizedName"`
	Brand             string     `json:"brand"`
	Size              string     `json:"size"`
	Price             float64    `json:"price"`
	PricePerUnit      *float64   `json:"pricePerUnit"`
	IsOffer           bool       `json:"isOffer"`
	OfferDetails      string     `json:"offerDetails"`
	IsVerified        bool       `json:"isVerified"`
	VerificationCount int        `json:"verificationCount"`
	FlagCount         int        `json:"flagCount"`
	SubmittedAt       time.Time  `json:"submittedAt"`
	VerifiedAt        *time.Time `json:"verifiedAt"`
	DaysOld           int        `json:"daysOld"`
}

// PriceVerification is one user's vote on a community price.
type PriceVerification struct {
	ID         string    `json:"id"`
	PriceID    string    `json:"priceId"`
	UserID     string    `json:"userId"`
	IsAccurate bool      `json:"isAccurate"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ShopLocation caches geographic data for shops seen in submissions.
type ShopLocation struct {
	ID           string    `json:"id"`
	ShopName     string    `json:"shopName"`
	Postcode     string    `json:"postcode"`
	PostcodeArea string    `json:"postcodeArea"`
	Town         string    `json:"town"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
