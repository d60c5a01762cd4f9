package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/praveen131106/ivr-modern/internal/presentation/tui"
	"github.com/praveen131106/ivr-modern/pkg/domain"
)

// CallEngine is the part of the engine a console call needs.
type CallEngine interface {
	CreateSession(ctx context.Context) (*domain.TurnResult, error)
	Advance(ctx context.Context, sessionID, raw string, ch domain.Channel) (*domain.TurnResult, error)
	EndSession(ctx context.Context, sessionID string) (*domain.Summary, error)
}

// CallOptions configures an interactive call.
type CallOptions struct {
	In  io.Reader
	Out io.Writer
	// Render formats system prompts. Defaults to tui.Plain.
	Render tui.Renderer
	// JSON emits one turn result per line instead of rendered prompts.
	JSON bool
}

// hangupWords end the call from the console.
var hangupWords = map[string]bool{"q": true, "quit": true, "exit": true, "hangup": true}

// RunCall places one call and relays caller lines until the call ends, the
// caller hangs up, the input is exhausted or ctx is cancelled. The call is
// always ended so its summary is archived.
func RunCall(ctx context.Context, engine CallEngine, opts CallOptions) (*domain.Summary, error) {
	if opts.Render == nil {
		opts.Render = tui.Plain
	}
	c := &console{out: opts.Out, render: opts.Render, json: opts.JSON}

	res, err := engine.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.turn(res); err != nil {
		return nil, err
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines := readLines(readCtx, opts.In)
	runErr := func() error {
		for !res.Terminal {
			if !c.json {
				fmt.Fprint(c.out, "> ")
			}
			var (
				line string
				ok   bool
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case line, ok = <-lines:
			}
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if hangupWords[strings.ToLower(line)] {
				return nil
			}

			ch, err := domain.ResolveChannel("", line)
			if err != nil {
				return err
			}
			res, err = engine.Advance(ctx, res.SessionID, line, ch)
			if err != nil {
				return err
			}
			if err := c.turn(res); err != nil {
				return err
			}
		}
		return nil
	}()

	// The call is ended even when ctx was cancelled.
	summary, err := engine.EndSession(context.WithoutCancel(ctx), res.SessionID)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return summary, runErr
}

type console struct {
	out    io.Writer
	render tui.Renderer
	json   bool
}

func (c *console) turn(res *domain.TurnResult) error {
	if c.json {
		return json.NewEncoder(c.out).Encode(res)
	}
	opts := make([]tui.Option, len(res.Options))
	for i, o := range res.Options {
		opts[i] = tui.Option{Key: o.Key, Label: o.Label}
	}
	text, err := c.render(tui.FormatTurn(res.Message, opts))
	if err != nil {
		return fmt.Errorf("failed to render prompt: %w", err)
	}
	_, err = fmt.Fprint(c.out, text)
	return err
}

// readLines pumps r into a channel until EOF or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// PrintSummary writes a readable end-of-call report.
func PrintSummary(w io.Writer, s *domain.Summary) {
	printSystemMessage(w, "Call %s ended after %d exchanges (%s).", s.SessionID, s.TotalExchanges, s.Duration.Round(time.Millisecond))
	printSystemMessage(w, "Final position: %s/%s", s.FinalFlow, s.FinalState)
	if len(s.CollectedData) > 0 {
		keys := make([]string, 0, len(s.CollectedData))
		for k := range s.CollectedData {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %s = %s\n", k, s.CollectedData[k])
		}
	}
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}
