package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/views/evalprogress"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// RunEvalProgress runs req on svc while showing a live progress view.
// Pressing q stops the run after in-flight pairs; the partial run is
// returned with the cancellation error so it can be resumed.
func RunEvalProgress(ctx context.Context, svc driving.EvalService, req driving.EvalRequest) (*driving.EvalRun, error) {
	if svc == nil {
		return nil, ErrMissingEvalService
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	view := evalprogress.NewView(styles.DefaultStyles(), len(req.Cases)*len(req.Models), cancel)
	p := tea.NewProgram(view)

	req.Progress = func(pr driving.EvalProgress) {
		p.Send(messages.EvalProgressed{Progress: pr})
	}

	var (
		run    *driving.EvalRun
		runErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		run, runErr = svc.Run(ctx, req)
		p.Send(messages.EvalFinished{Run: run, Err: runErr})
	}()

	_, err := p.Run()
	if err != nil {
		cancel()
	}
	<-done

	if err != nil {
		return run, fmt.Errorf("progress view: %w", err)
	}
	return run, runErr
}
