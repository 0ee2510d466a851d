package models

import (
	"time"

	"gorm.io/gorm"
)

type GitHubRepository struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	OrgName         string         `json:"orgName" gorm:"not null"`
	RepoName        string         `json:"repoName" gorm:"not null"`
	FullName        string         `json:"fullName" gorm:"uniqueIndex;not null"`
	Description     string         `json:"description"`
	PrimaryLanguage string         `json:"primaryLanguage"`
	TeamID          *uint          `json:"teamId"`
	IsActive        bool           `json:"isActive" gorm:"default:true"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`
}

func (GitHubRepository) TableName() string {
	return "github_repositories"
}

// CIFailure links a failed CI workflow run to the ticket created for it. The
// root-cause pipeline uses it to decide whether commit context applies.
type CIFailure struct {
	ID            uint              `json:"id" gorm:"primaryKey"`
	RepoID        uint              `json:"repoId" gorm:"not null;index"`
	Repository    *GitHubRepository `json:"repository" gorm:"foreignKey:RepoID"`
	TicketID      *uint             `json:"ticketId" gorm:"index"`
	WorkflowName  string            `json:"workflowName"`
	CommitSHA     string            `json:"commitSha"`
	BranchName    string            `json:"branchName"`
	FailureReason string            `json:"failureReason"`
	Logs          string            `json:"logs" gorm:"type:text"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func (CIFailure) TableName() string {
	return "ci_failures"
}
