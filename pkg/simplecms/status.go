package simplecms

import (
	"fmt"
	"strings"
)

// IsValid reports whether s is one of the known item states.
func (s ItemStatus) IsValid() bool {
	switch s {
	case ItemStatusDraft, ItemStatusPublished, ItemStatusArchived:
		return true
	default:
		return false
	}
}

// ParseItemStatus parses a status string case-insensitively.
// Every state may move to every other state; nothing here restricts transitions.
func ParseItemStatus(s string) (ItemStatus, error) {
	status := ItemStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.IsValid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return status, nil
}

// publishStamp decides whether a transition stamps publishedAt.
// It returns true only when entering published without a prior stamp.
func publishStamp(item *ContentItem, next ItemStatus) bool {
	return next == ItemStatusPublished && item.PublishedAt == nil
}

// ParseSortField validates a sort column; empty selects created_at.
func ParseSortField(s string) (SortField, error) {
	if s == "" {
		return SortByCreatedAt, nil
	}
	switch f := SortField(strings.ToLower(s)); f {
	case SortByCreatedAt, SortByUpdatedAt, SortByPublishedAt, SortBySlug, SortByStatus, SortByVersion:
		return f, nil
	}
	// camelCase aliases used by API clients
	switch s {
	case "createdAt":
		return SortByCreatedAt, nil
	case "updatedAt":
		return SortByUpdatedAt, nil
	case "publishedAt":
		return SortByPublishedAt, nil
	}
	return "", fmt.Errorf("%w: cannot sort by %q", ErrValidation, s)
}

// ParseSortOrder validates a sort direction; empty selects desc.
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(strings.ToLower(s)) {
	case "", SortDesc:
		return SortDesc, nil
	case SortAsc:
		return SortAsc, nil
	}
	return "", fmt.Errorf("%w: unknown sort order %q", ErrValidation, s)
}
