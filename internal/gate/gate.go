// Package gate implements the blocking human-intervention point. While a
// gate request is pending it holds the engine's single cross-cutting
// exclusion: no other tool runs until the human resumes or the bounded
// fallback wait elapses.
package gate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DoneStatus is the status a completed gate reports back to the planner.
const DoneStatus = "human_done"

// Gate suspends the automated flow and hands control to a human.
type Gate struct {
	mu     sync.Mutex
	out    io.Writer
	resume <-chan string

	pollAttempts int
	pollInterval time.Duration

	logger *zap.Logger
}

// New builds a gate. resume delivers the human's go-ahead; when that channel
// is severed the gate falls back to waiting pollAttempts fixed intervals
// before returning control.
func New(out io.Writer, resume <-chan string, pollAttempts int, pollInterval time.Duration, logger *zap.Logger) *Gate {
	return &Gate{
		out:          out,
		resume:       resume,
		pollAttempts: pollAttempts,
		pollInterval: pollInterval,
		logger:       logger.Named("gate"),
	}
}

// Request renders the prompt and blocks until the human resumes. The
// exclusion lock is held for the whole wait, so concurrent Sync callers
// block with it. A severed resume channel degrades to the bounded poll
// fallback instead of hanging forever.
func (g *Gate) Request(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fmt.Fprintf(g.out, "\n=== HUMAN NEEDED ===\n%s\nPress ENTER here when done.\n", prompt)
	g.logger.Info("Human gate raised.", zap.String("prompt", prompt))

	select {
	case msg, ok := <-g.resume:
		if ok {
			g.logger.Info("Human gate resumed.")
			if strings.TrimSpace(msg) == "" {
				return DoneStatus, nil
			}
			return msg, nil
		}
		// Resume source is gone. Give the human a fixed, bounded window
		// and then take control back.
		g.logger.Warn("Resume channel severed, falling back to bounded wait.",
			zap.Int("attempts", g.pollAttempts),
			zap.Duration("interval", g.pollInterval))
	case <-ctx.Done():
		return "", ctx.Err()
	}

	for i := 0; i < g.pollAttempts; i++ {
		g.logger.Info("Waiting for human intervention.", zap.Int("attempt", i+1))
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.pollInterval):
		}
	}
	g.logger.Info("Bounded wait elapsed, resuming automated flow.")
	return DoneStatus, nil
}

// Sync blocks until no gate request is pending. The tool registry calls it
// before executing anything, which is what makes the gate a global
// exclusion rather than a local wait.
func (g *Gate) Sync() {
	g.mu.Lock()
	g.mu.Unlock()
}

// ConsoleResume adapts a line-oriented reader (stdin in production) into a
// resume channel. The channel closes when the reader ends, which triggers
// the gate's bounded fallback on the next request.
func ConsoleResume(r io.Reader) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			ch <- scanner.Text()
		}
	}()
	return ch
}
