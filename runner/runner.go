package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/analystmesh/engine"
	"github.com/hupe1980/analystmesh/logging"
)

const (
	DefaultGreeting = "[Agent] I'm an analyst assistant, and I'm happy to answer your questions!"
	DefaultFarewell = "[Agent] All the best!"
	DefaultStopWord = "/stop_conversation"
)

// Asker runs one analyst session per request.
type Asker interface {
	Run(ctx context.Context, request string) engine.Result
}

// Options holds configuration overrides passed to New().
type Options struct {
	Greeting string
	Farewell string
	// StopWord ends the conversation when entered on its own line.
	StopWord string
	// Prompt is written before each request is read.
	Prompt string
	// ShowSQL prints the generated query below the answer.
	ShowSQL bool
	Logger  logging.Logger
}

// Runner is an interactive conversation loop over an Asker. Each request
// line starts a new session.
type Runner struct {
	asker Asker
	in    io.Reader
	out   io.Writer
	opts  Options
}

// New constructs a Runner reading requests from in and writing replies to out.
func New(asker Asker, in io.Reader, out io.Writer, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Greeting: DefaultGreeting,
		Farewell: DefaultFarewell,
		StopWord: DefaultStopWord,
		Prompt:   "[User] ",
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Runner{asker: asker, in: in, out: out, opts: opts}
}

// Converse runs the loop until the stop word, end of input or cancellation
// of ctx. It returns the ids of the sessions it started, in order. A failed
// session is reported to the user and the loop continues.
func (r *Runner) Converse(ctx context.Context) ([]string, error) {
	var sessions []string
	if err := r.println(r.opts.Greeting); err != nil {
		return sessions, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r.in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				readErr <- ctx.Err()
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		if err := r.print(r.opts.Prompt); err != nil {
			return sessions, err
		}

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return sessions, ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			if err := <-readErr; err != nil {
				if ctx.Err() != nil {
					return sessions, ctx.Err()
				}
				return sessions, fmt.Errorf("read request: %w", err)
			}
			return sessions, r.println("\n" + r.opts.Farewell)
		}

		request := strings.TrimSpace(line)
		switch {
		case request == "":
			continue
		case request == r.opts.StopWord:
			return sessions, r.println(r.opts.Farewell)
		}

		res := r.asker.Run(ctx, request)
		if res.SessionID != "" {
			sessions = append(sessions, res.SessionID)
		}
		if err := r.reply(res); err != nil {
			return sessions, err
		}
		if ctx.Err() != nil {
			return sessions, ctx.Err()
		}
	}
}

func (r *Runner) reply(res engine.Result) error {
	if res.Err != nil {
		r.opts.Logger.Warn("runner.session.failed", "session_id", res.SessionID, "error", res.Err.Error())
		msg := "[Agent] Sorry, I could not answer that: " + res.Err.Error()
		if errors.Is(res.Err, engine.ErrEmptyRequest) {
			msg = "[Agent] Please ask a question."
		}
		return r.println(msg)
	}
	if err := r.println("[Agent] " + res.Answer()); err != nil {
		return err
	}
	if r.opts.ShowSQL && res.State.SQL != "" {
		return r.println("[SQL] " + res.State.SQL)
	}
	return nil
}

func (r *Runner) print(s string) error {
	_, err := io.WriteString(r.out, s)
	return err
}

func (r *Runner) println(s string) error {
	return r.print(s + "\n")
}
