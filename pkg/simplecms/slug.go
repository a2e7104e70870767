package simplecms

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSlugAttempts caps the number of candidates AllocateSlug probes.
const DefaultMaxSlugAttempts = 100

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugSeparators   = regexp.MustCompile(`[\s_-]+`)
)

// Slugify normalizes text into a URL-safe slug. Accents are folded to their
// base letters first so "Café" becomes "cafe", and every Unicode space
// separates words. The result matches
// ^[a-z0-9]+(-[a-z0-9]+)*$ or is empty.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))

	// transform.Chain keeps state, so build one per call.
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}

	// \s in the patterns below is ASCII only
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)

	s = slugInvalidChars.ReplaceAllString(s, "")
	s = slugSeparators.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SlugProbe reports whether candidate is already taken in some namespace.
type SlugProbe func(ctx context.Context, candidate string) (bool, error)

// AllocateSlug returns base if it is free, otherwise the first free
// base-1, base-2, ... candidate. At most maxAttempts candidates are probed.
//
// Probing is not atomic with the insert that follows; storage must enforce
// uniqueness and callers retry on ErrConflict.
func AllocateSlug(ctx context.Context, base string, exists SlugProbe, maxAttempts int) (string, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSlugAttempts
	}

	candidate := base
	for i := 0; i < maxAttempts; i++ {
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i+1)
	}
	return "", fmt.Errorf("%w: no free slug for %q after %d attempts", ErrUnexpected, base, maxAttempts)
}

// slugSource renders the value of the slug-source field as text.
func slugSource(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatNumber(val)
	default:
		return fmt.Sprint(val)
	}
}
