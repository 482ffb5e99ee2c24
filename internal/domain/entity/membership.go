package entity

import "time"

// GroupMembership places a user in an approver group of a company
type GroupMembership struct {
	CompanyID string    `json:"company_id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
