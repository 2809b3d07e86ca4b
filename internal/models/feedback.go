package models

import "time"

// Feedback is a message left on a bid. Feedback is append-only.
type Feedback struct {
	Id        string    `db:"id" json:"id"`
	BidId     string    `db:"bid_id" json:"bidId"`
	Message   string    `db:"message" json:"description"`
	CreatorId string    `db:"creator_id" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionRejected Decision = "Rejected"
)

func ValidDecision(d Decision) bool {
	switch d {
	case DecisionApproved, DecisionRejected:
		return true
	default:
		return false
	}
}

// BidDecision is the vote of one responsible employee of the tender owner.
// A later decision of the same employee replaces the earlier one.
type BidDecision struct {
	BidId      string    `db:"bid_id"`
	EmployeeId string    `db:"employee_id"`
	Decision   Decision  `db:"decision"`
	CreatedAt  time.Time `db:"created_at"`
}

// DecisionTally is the state of voting on a bid after a decision was recorded.
type DecisionTally struct {
	Approved    int
	Rejected    int
	Responsible int
}

// DecisionOutcome tells what a tally changes. An empty BidStatus leaves the bid as is.
type DecisionOutcome struct {
	BidStatus   BidStatus
	CloseTender bool
}

type DecisionRule func(DecisionTally) DecisionOutcome
