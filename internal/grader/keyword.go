package grader

import (
	"strings"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// DefaultKeyword approves artifacts that define the requested function.
const DefaultKeyword = "function add"

// Keyword approves an artifact iff it contains a fixed substring.
type Keyword struct {
	keyword string
}

// NewKeyword returns a substring grader. An empty keyword uses DefaultKeyword.
func NewKeyword(keyword string) *Keyword {
	if keyword == "" {
		keyword = DefaultKeyword
	}
	return &Keyword{keyword: keyword}
}

// Grade ignores the task and checks the artifact for the keyword.
func (k *Keyword) Grade(_ string, artifact string) domain.Verdict {
	if strings.Contains(artifact, k.keyword) {
		return domain.Verdict{Passed: true, Feedback: ApprovedFeedback}
	}
	return domain.Verdict{Passed: false, Feedback: RejectedFeedback}
}
