package ui

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/linuxmatters/levelset/internal/loudness"
	"github.com/linuxmatters/levelset/internal/pipeline"
)

// Relay forwards pipeline events and measurement states to whichever program
// is running. Without one, messages are dropped, so a Relay can be wired
// into a measurer before any display exists.
type Relay struct {
	mu      sync.Mutex
	program *tea.Program
}

func (r *Relay) attach(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = p
}

func (r *Relay) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

// Observe is a pipeline.Observer
func (r *Relay) Observe(ev pipeline.Event) {
	r.send(EventMsg(ev))
}

// State is a loudness.StateFunc
func (r *Relay) State(label string, s loudness.State) {
	r.send(PassMsg{Label: label, State: s})
}

// Run shows model while work runs in the background and returns the final
// model once work has returned. Quitting the display cancels the context
// handed to work; Run still waits for work to finish.
func (r *Relay) Run(parent context.Context, model Model, out io.Writer, work func(ctx context.Context)) (Model, error) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithContext(ctx))
	r.attach(p)

	done := make(chan struct{})
	go func() {
		defer close(done)
		work(ctx)
		p.Send(AllCompleteMsg{})
	}()

	final, err := p.Run()
	cancel()
	<-done
	r.attach(nil)

	m, ok := final.(Model)
	if !ok {
		m = model
	}
	if err != nil && !m.Quit {
		if parent.Err() != nil {
			return m, parent.Err()
		}
		return m, fmt.Errorf("progress display: %w", err)
	}
	return m, nil
}

// LineObserver prints one line per finished stage, for terminals without a
// display or when output is redirected.
func LineObserver(w io.Writer, total int) pipeline.Observer {
	var mu sync.Mutex
	finished := 0
	return func(ev pipeline.Event) {
		if !ev.Done {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		finished++
		name := filepath.Base(ev.Path)
		if ev.Err != nil {
			fmt.Fprintf(w, "[%d/%d] %s: %s failed: %s\n", finished, total, name, ev.Stage, firstLine(ev.Err))
			return
		}
		fmt.Fprintf(w, "[%d/%d] %s\n", finished, total, name)
	}
}
