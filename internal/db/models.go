package db

// Pair statuses.
const (
	PairAwaiting = "awaiting"
	PairActive   = "active"
)

// User is a registered person or device. Timestamps are Unix seconds.
type User struct {
	ID         string  `json:"id"`
	Email      *string `json:"email"`
	DeviceID   *string `json:"deviceId"`
	PushToken  *string `json:"pushToken"`
	NudgeLevel int     `json:"nudgeLevel"`
	CreatedAt  int64   `json:"createdAt"`
	UpdatedAt  int64   `json:"updatedAt"`
}

// Pair links two users through an invite code.
type Pair struct {
	ID         string  `json:"id"`
	User1ID    string  `json:"user1Id"`
	User2ID    *string `json:"user2Id"`
	InviteCode string  `json:"inviteCode"`
	Status     string  `json:"status"`
	CreatedAt  int64   `json:"createdAt"`
	UpdatedAt  int64   `json:"updatedAt"`
}

// HasMember reports whether userID belongs to the pair.
func (p *Pair) HasMember(userID string) bool {
	if userID == "" {
		return false
	}
	return p.User1ID == userID || (p.User2ID != nil && *p.User2ID == userID)
}

// MemberIDs returns the ids of the users in the pair.
func (p *Pair) MemberIDs() []string {
	ids := []string{p.User1ID}
	if p.User2ID != nil && *p.User2ID != "" {
		ids = append(ids, *p.User2ID)
	}
	return ids
}

// NudgeState is the per-pair record of the last server nudge.
type NudgeState struct {
	PairID       string  `json:"pairId"`
	LastNudgedAt *int64  `json:"lastNudgedAt"`
	LastWishID   *string `json:"lastWishId"`
	UpdatedAt    int64   `json:"updatedAt"`
}
