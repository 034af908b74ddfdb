package alerts

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ConsoleSink prints events to a writer, one line per event.
type ConsoleSink struct {
	mu  sync.Mutex
	out io.Writer
	loc *time.Location
}

// NewConsoleSink creates a console sink. A nil writer means stdout.
func NewConsoleSink(out io.Writer, loc *time.Location) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out, loc: loc}
}

func (c *ConsoleSink) Kind() ChannelKind { return ChannelConsole }

func (c *ConsoleSink) Send(_ context.Context, event Event) error {
	msg, ok := Format(event, c.loc)
	if !ok {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintln(c.out, msg.Line()); err != nil {
		return fmt.Errorf("write console alert: %w", err)
	}
	return nil
}
