package db

import (
	"database/sql/driver"
	"strings"

	"github.com/kidandcat/tracker/internal/errs"
)

type Role string

const (
	RoleOwner         Role = "OWNER"
	RoleAdministrator Role = "ADMINISTRATOR"
	RoleMember        Role = "MEMBER"
)

func (r Role) Value() (driver.Value, error) { return string(r), nil }

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToUpper(strings.TrimSpace(s))); r {
	case RoleOwner, RoleAdministrator, RoleMember:
		return r, nil
	}
	return "", errs.InvalidArgument("unknown role %q", s)
}

type IssueStatus string

const (
	StatusTodo       IssueStatus = "TODO"
	StatusInProgress IssueStatus = "IN_PROGRESS"
	StatusInReview   IssueStatus = "IN_REVIEW"
	StatusDone       IssueStatus = "DONE"
)

func (s IssueStatus) Value() (driver.Value, error) { return string(s), nil }

func ParseIssueStatus(s string) (IssueStatus, error) {
	switch v := IssueStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return v, nil
	}
	return "", errs.InvalidArgument("unknown issue status %q", s)
}

type IssuePriority string

const (
	PriorityLow    IssuePriority = "LOW"
	PriorityMedium IssuePriority = "MEDIUM"
	PriorityHigh   IssuePriority = "HIGH"
)

func (p IssuePriority) Value() (driver.Value, error) { return string(p), nil }

func ParseIssuePriority(s string) (IssuePriority, error) {
	switch v := IssuePriority(strings.ToUpper(strings.TrimSpace(s))); v {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return v, nil
	}
	return "", errs.InvalidArgument("unknown issue priority %q", s)
}

type IssueType string

const (
	TypeTask    IssueType = "TASK"
	TypeBug     IssueType = "BUG"
	TypeFeature IssueType = "FEATURE"
)

func (t IssueType) Value() (driver.Value, error) { return string(t), nil }

func ParseIssueType(s string) (IssueType, error) {
	switch v := IssueType(strings.ToUpper(strings.TrimSpace(s))); v {
	case TypeTask, TypeBug, TypeFeature:
		return v, nil
	}
	return "", errs.InvalidArgument("unknown issue type %q", s)
}

type MilestoneStatus string

const (
	MilestonePlanned    MilestoneStatus = "PLANNED"
	MilestoneInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneCompleted  MilestoneStatus = "COMPLETED"
)

func (s MilestoneStatus) Value() (driver.Value, error) { return string(s), nil }

func ParseMilestoneStatus(s string) (MilestoneStatus, error) {
	switch v := MilestoneStatus(strings.ToUpper(strings.TrimSpace(s))); v {
	case MilestonePlanned, MilestoneInProgress, MilestoneCompleted:
		return v, nil
	}
	return "", errs.InvalidArgument("unknown milestone status %q", s)
}
