package domain

import (
	"fmt"
	"unicode/utf8"
)

// MaxTextLen is the cap, in characters, on agent actions and observations
// exchanged with an episode.
const MaxTextLen = 2048

// CheckText rejects payloads longer than MaxTextLen characters.
// Episodes never see oversized input; callers validate at the boundary.
func CheckText(s string) error {
	if n := utf8.RuneCountInString(s); n > MaxTextLen {
		return fmt.Errorf("%w: %d > %d characters", ErrInputTooLong, n, MaxTextLen)
	}
	return nil
}
