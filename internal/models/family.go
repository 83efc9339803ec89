package models

import "time"

// Family member roles.
const (
	RoleAdmin  = "admin"
	RoleParent = "parent"
	RoleTeen   = "teen"
	RoleChild  = "child"
)

// FamilyAccount groups several users under one subscription.
type FamilyAccount struct {
	ID            string         `json:"id"`
	PrimaryUserID string         `json:"primaryUserId"`
	FamilyName    string         `json:"familyName"`
	FamilyCode    string         `json:"familyCode"`
	MaxMembers    int            `json:"maxMembers"`
	Members       []FamilyMember `json:"members"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// FamilyMember is a user's membership in a family.
type FamilyMember struct {
	ID          string    `json:"id"`
	FamilyID    string    `json:"familyId"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	AgeGroup    string    `json:"ageGroup"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// CanManage reports whether the member may change the family or approve items.
func (m FamilyMember) CanManage() bool {
	return m.Role == RoleAdmin || m.Role == RoleParent
}

// FamilyShoppingItem is an item on the shared family list.
type FamilyShoppingItem struct {
	ID          string     `json:"id"`
	FamilyID    string     `json:"familyId"`
	Name        string     `json:"name"`
	Quantity    float64    `json:"quantity"`
	Unit        string     `json:"unit"`
	RequestedBy string     `json:"requestedBy"`
	IsApproved  bool       `json:"isApproved"`
	ApprovedBy  *string    `json:"approvedBy"`
	IsPurchased bool       `json:"isPurchased"`
	PurchasedBy *string    `json:"purchasedBy"`
	PurchasedAt *time.Time `json:"purchasedAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// FamilyMessage is a note posted to the family board.
type FamilyMessage struct {
	ID        string    `json:"id"`
	FamilyID  string    `json:"familyId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
