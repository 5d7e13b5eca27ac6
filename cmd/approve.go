package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"go.uber.org/zap"

	"github.com/spigell/scholarship-hunter/internal/ingest"
	"github.com/spigell/scholarship-hunter/internal/store"
)

const (
	PromptYes      = "Yes"
	PromptNo       = "No"
	PromptYesToAll = "Yes to all"
)

// promptApprover asks the operator before every append.
type promptApprover struct {
	all    bool
	logger *zap.Logger
	run    func(label string) (string, error)
}

func newPromptApprover(logger *zap.Logger) *promptApprover {
	return &promptApprover{
		logger: logger,
		run: func(label string) (string, error) {
			prompt := promptui.Select{
				Label: label,
				Items: []string{PromptYes, PromptNo, PromptYesToAll},
			}
			_, choice, err := prompt.Run()
			return choice, err
		},
	}
}

func (p *promptApprover) Approve(_ context.Context, rec store.Record) (bool, error) {
	if p.all {
		return true, nil
	}

	label := fmt.Sprintf("Save %q (score %d, deadline %s) %s?", rec.ProgramName, rec.MatchScore, rec.Deadline, rec.URL)
	choice, err := p.run(label)
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
		return false, fmt.Errorf("%w: %w", ingest.ErrStopped, err)
	}
	if err != nil {
		return false, fmt.Errorf("prompt: %w", err)
	}

	switch choice {
	case PromptYes:
		return true, nil
	case PromptYesToAll:
		p.all = true
		p.logger.Info("saving all remaining scholarships without asking")
		return true, nil
	default:
		return false, nil
	}
}
