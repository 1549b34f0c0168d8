// Package policy decides dashboard reachability and the file-visibility
// constraints for a requester. Decisions are pure functions over the account
// as read from the store; nothing here is cached between requests.
package policy

import (
	"strings"

	"github.com/classvault/apiserver/types"
)

// EffectiveDashboardAccess reports whether the account may reach the
// dashboard. Students are never gated; everyone else follows the
// administrator-controlled flag.
func EffectiveDashboardAccess(user types.User) bool {
	if user.IsStudent {
		return true
	}
	return user.DashboardAccess
}

// Keyword returns the requester's file-visibility keyword, or nil when the
// account carries no restriction. A keyword only ever narrows a result set:
// it is ANDed with the caller's own filters by the file store.
func Keyword(user types.User) *string {
	if user.FileAccessKeyword == nil {
		return nil
	}
	keyword := strings.TrimSpace(*user.FileAccessKeyword)
	if keyword == "" {
		return nil
	}
	return &keyword
}

// FileVisible evaluates the visibility predicate for a single file. The
// store applies the same constraints in SQL; this form exists for callers
// that already hold the records (and for exercising the rules directly).
func FileVisible(user types.User, q types.FileQuery, file types.File) bool {
	if len(q.Types) > 0 && !containsString(q.Types, file.Type) {
		return false
	}
	if q.SearchText != "" && !strings.Contains(strings.ToLower(file.Name), strings.ToLower(q.SearchText)) {
		return false
	}
	if keyword := Keyword(user); keyword != nil && !strings.Contains(file.Name, *keyword) {
		return false
	}
	return true
}

// NormalizeKeyword is the single write-boundary normalization point for the
// administrator keyword mutation: surrounding whitespace is trimmed and an
// empty result clears the restriction.
func NormalizeKeyword(keyword string) *string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}
	return &keyword
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
