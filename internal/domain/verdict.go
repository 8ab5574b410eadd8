package domain

// Verdict is a grader's judgment of one submitted artifact.
type Verdict struct {
	Passed   bool   `json:"passed"`
	Feedback string `json:"feedback"`
}

// Exchange is one (artifact, feedback) round of an episode transcript.
type Exchange struct {
	Artifact string `json:"artifact"`
	Feedback string `json:"feedback"`
	Passed   bool   `json:"passed"`
}
