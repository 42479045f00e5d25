// Package stdio runs engine jobs over a line-oriented JSON protocol:
// one job object per stdin line, a stream of event frames per job on
// stdout. Logs stay on stderr so stdout carries nothing but frames.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/engine"
)

const maxLineBytes = 1 << 20

// Job is one queued query, decoded from a single input line.
type Job struct {
	JobID            string `json:"jobId,omitempty"`
	Text             string `json:"text"`
	Mode             string `json:"mode,omitempty"`
	LoopDepth        int    `json:"loopDepth,omitempty"`
	AllowMemoryWrite bool   `json:"allowMemoryWrite,omitempty"`
	UserID           string `json:"userId,omitempty"`
	SessionID        string `json:"sessionId,omitempty"`
}

// frame is one output line. Kind selects which fields are set: token
// carries agent and token, iteration_complete carries iteration, error
// carries message, done carries nothing.
type frame struct {
	Kind      string                 `json:"kind"`
	Agent     string                 `json:"agent,omitempty"`
	Token     string                 `json:"token,omitempty"`
	Iteration *engine.IterationTrace `json:"iteration,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Runner pumps jobs from in to out against an engine.
type Runner struct {
	engine *engine.Engine
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// NewRunner wires a runner to its streams. A nil logger falls back to
// the default.
func NewRunner(eng *engine.Engine, in io.Reader, out io.Writer, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{engine: eng, in: in, out: out, logger: logger}
}

// Run processes jobs until EOF or cancellation. Undecodable lines get
// an error frame and the loop moves on; every job, good or bad, closes
// with a done frame.
func (r *Runner) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(line), &job); err != nil {
			r.emit(frame{Kind: "error", Message: "invalid JSON payload"})
			r.emit(frame{Kind: "done"})
			continue
		}
		r.runJob(ctx, &job)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// runJob executes one job, emitting iteration frames as the cycle
// progresses and the vetted answer as token frames at the end.
func (r *Runner) runJob(ctx context.Context, job *Job) {
	defer r.emit(frame{Kind: "done"})

	r.logger.Info("Processing job", "job_id", job.JobID, "mode", job.Mode)

	res, err := r.engine.Process(ctx, &engine.Request{
		Query:            job.Text,
		Mode:             config.Mode(job.Mode),
		Iterations:       job.LoopDepth,
		UserID:           job.UserID,
		SessionID:        job.SessionID,
		AllowMemoryWrite: job.AllowMemoryWrite,
		OnIteration: func(trace engine.IterationTrace) {
			r.emit(frame{Kind: "iteration_complete", Iteration: &trace})
		},
	})
	if err != nil {
		r.emit(frame{Kind: "error", Message: err.Error()})
		return
	}

	// The answer streams only after vetting, so quarantined content
	// never reaches the consumer.
	for _, word := range strings.Fields(res.FinalAnswer) {
		r.emit(frame{Kind: "token", Agent: "synthesis", Token: word + " "})
	}
	r.emit(frame{Kind: "token", Agent: "synthesis", Token: "\n"})
}

func (r *Runner) emit(f frame) {
	data, err := json.Marshal(f)
	if err != nil {
		r.logger.Error("Failed to encode frame", "kind", f.Kind, "error", err)
		return
	}
	if _, err := fmt.Fprintln(r.out, string(data)); err != nil {
		r.logger.Error("Failed to write frame", "error", err)
	}
}
