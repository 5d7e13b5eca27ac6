package ai

import "context"

// Assessment is the classifier's judgment of one page against the CV.
type Assessment struct {
	IsScholarship bool
	ProgramName   string
	Deadline      string
	OfficialURL   string
	MatchScore    int
	Notes         string
	Reason        string
	Raw           string
}

type Classifier interface {
	Classify(ctx context.Context, pageText, url, cvText string) (*Assessment, error)
}
