package http

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type CreateMemberRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Category string `json:"category"`
	IsAdmin  bool   `json:"is_admin"`
	IsBoard  bool   `json:"is_board"`
}

// UpdateMemberRequest leaves omitted fields unchanged.
type UpdateMemberRequest struct {
	Name     *string `json:"name,omitempty"`
	Category *string `json:"category,omitempty"`
	IsAdmin  *bool   `json:"is_admin,omitempty"`
	IsBoard  *bool   `json:"is_board,omitempty"`
}

type MemberResponse struct {
	MemberID  string    `json:"member_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Category  string    `json:"category"`
	Active    bool      `json:"active"`
	IsAdmin   bool      `json:"is_admin"`
	IsBoard   bool      `json:"is_board"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MemberListResponse struct {
	Items []MemberResponse `json:"items"`
}

type CreateAssemblyRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Type             string    `json:"type"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	Location         string    `json:"location"`
	QuorumPercentage int       `json:"quorum_percentage"`
	EligibilityRule  string    `json:"eligibility_rule"`
}

type AssemblyResponse struct {
	AssemblyID       string    `json:"assembly_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Type             string    `json:"type"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	Location         string    `json:"location,omitempty"`
	QuorumPercentage int       `json:"quorum_percentage"`
	Status           string    `json:"status"`
	EligibilityRule  string    `json:"eligibility_rule"`
	MinutesGenerated bool      `json:"minutes_generated"`
	CreatedBy        string    `json:"created_by,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type AssemblyListResponse struct {
	Items []AssemblyResponse `json:"items"`
}

type CreateVotingItemRequest struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	MajorityType     string `json:"majority_type"`
	QuorumPercentage *int   `json:"quorum_percentage,omitempty"`
}

type TallyResponse struct {
	InFavor            int `json:"in_favor"`
	Against            int `json:"against"`
	Abstain            int `json:"abstain"`
	TotalWeightedVotes int `json:"total_weighted_votes"`
}

type ResultsResponse struct {
	VotingItemID     string        `json:"voting_item_id"`
	Tally            TallyResponse `json:"tally"`
	Ballots          int           `json:"ballots"`
	EligibleMembers  int           `json:"eligible_members"`
	QuorumPercentage int           `json:"quorum_percentage"`
	QuorumMet        bool          `json:"quorum_met"`
	MajorityType     string        `json:"majority_type"`
	MajorityReached  bool          `json:"majority_reached"`
	Approved         bool          `json:"approved"`
	Final            bool          `json:"final"`
	ComputedAt       time.Time     `json:"computed_at"`
}

type VotingItemResponse struct {
	VotingItemID     string           `json:"voting_item_id"`
	AssemblyID       string           `json:"assembly_id"`
	Title            string           `json:"title"`
	Description      string           `json:"description,omitempty"`
	MajorityType     string           `json:"majority_type"`
	Status           string           `json:"status"`
	QuorumPercentage int              `json:"quorum_percentage"`
	Position         int              `json:"position"`
	Result           *ResultsResponse `json:"result,omitempty"`
	ClosedAt         *time.Time       `json:"closed_at,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type VotingItemListResponse struct {
	Items []VotingItemResponse `json:"items"`
}

type CastVoteRequest struct {
	Choice string `json:"choice"`
}

// VoteResponse confirms a ballot. It never echoes the choice back so
// secret items leak nothing through the response.
type VoteResponse struct {
	VoteID       string    `json:"vote_id"`
	VotingItemID string    `json:"voting_item_id"`
	AssemblyID   string    `json:"assembly_id"`
	MemberID     string    `json:"member_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateDelegationRequest struct {
	ReceiverID string `json:"receiver_id"`
}

type DelegationResponse struct {
	DelegationID string    `json:"delegation_id"`
	AssemblyID   string    `json:"assembly_id"`
	GiverID      string    `json:"giver_id"`
	ReceiverID   string    `json:"receiver_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type RevokeDelegationResponse struct {
	AssemblyID string `json:"assembly_id"`
	Revoked    bool   `json:"revoked"`
}

type DelegationsForResponse struct {
	AssemblyID string               `json:"assembly_id"`
	MemberID   string               `json:"member_id"`
	Given      *DelegationResponse  `json:"given"`
	Received   []DelegationResponse `json:"received"`
	VoteWeight int                  `json:"vote_weight"`
}

type MinutesResponse struct {
	AssemblyID  string
	FileName    string
	ContentType string
	Content     []byte
}
