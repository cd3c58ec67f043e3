package domain

import (
	"strings"

	"github.com/google/uuid"
)

// SecurityContext is the caller's resolved identity for one request. It is
// supplied by the authentication layer and never mutated here. A zero UserID
// means the caller is unknown; restricted searches then return empty pages
// rather than falling back to unrestricted access.
type SecurityContext struct {
	UserID string
	Groups []string
}

// Anonymous reports whether no user identity was resolved for the request.
func (s SecurityContext) Anonymous() bool {
	return strings.TrimSpace(s.UserID) == ""
}

// AccessLevel is the permission a policy grants its subject.
type AccessLevel string

const (
	AccessLevelRead  AccessLevel = "READ"
	AccessLevelWrite AccessLevel = "WRITE"
	AccessLevelNone  AccessLevel = "NONE"
)

// SubjectType distinguishes user policies from group policies.
type SubjectType string

const (
	SubjectTypeUser  SubjectType = "user"
	SubjectTypeGroup SubjectType = "group"
)

// AccessPolicy maps a runtime service to a subject's access level. A service
// with no policies at all is unrestricted; once any policy names it, only
// granted subjects may read its process instances.
type AccessPolicy struct {
	ID              uuid.UUID
	ServiceName     string
	ServiceFullName string
	SubjectType     SubjectType
	Subject         string
	Level           AccessLevel
}

// NormalizeServiceName folds a runtime service name for policy matching:
// matching is case-insensitive and hyphen-insensitive.
func NormalizeServiceName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "")
}

// AppliesTo reports whether the policy's subject matches the caller.
func (p AccessPolicy) AppliesTo(sc SecurityContext) bool {
	switch p.SubjectType {
	case SubjectTypeUser:
		return p.Subject == sc.UserID
	case SubjectTypeGroup:
		for _, g := range sc.Groups {
			if p.Subject == g {
				return true
			}
		}
	}
	return false
}

// Grants reports whether the policy allows the given level. WRITE implies
// READ.
func (p AccessPolicy) Grants(level AccessLevel) bool {
	if p.Level == AccessLevelNone {
		return false
	}
	if level == AccessLevelRead {
		return p.Level == AccessLevelRead || p.Level == AccessLevelWrite
	}
	return p.Level == level
}
