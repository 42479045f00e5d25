package stdio

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/embedder"
	"github.com/cortexkit/cortex/pkg/engine"
	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/vector"
)

const testDraft = `The dawn ferry is the reliable choice for reaching the island early.
1. The published timetable lists the first crossing at six in the morning.
2. The tide tables align with that departure, so the channel stays navigable the whole hour.
3. The harbor office confirms the dawn run every weekday through the season.
The route has operated for decades with an experienced crew, and the docking procedure is rehearsed daily. Passengers can arrive fifteen minutes before departure, buy tickets at the kiosk, and board from the main pier. This is clearly the definitive option for an early arrival.`

const testAnswer = "Take the dawn ferry: the published schedule, the tide tables, and the harbor office all point to the six o'clock crossing."

func newTestRunner(t *testing.T, in string, out *bytes.Buffer) *Runner {
	t.Helper()

	gw := llm.NewMockProvider(nil)
	gw.RespondFunc = func(req *llm.Request) string {
		switch {
		case strings.Contains(req.System, "query classifier"):
			return `{
  "intent": "get_information",
  "query_type": "logical",
  "labels": ["logical"],
  "label_confidences": {},
  "content": "ferry schedule",
  "metadata": {"source": "user_input"},
  "confidence": 0.9,
  "reasoning_depth": "shallow"
}`
		case strings.Contains(req.System, "synthesis stage"):
			return testAnswer
		case strings.Contains(req.Prompt, "You are an automated critic"):
			return `{"pass": true, "issues": [], "suggested_edits": []}`
		default:
			return testDraft
		}
	}

	cfg := &config.Config{}
	cfg.LLM.Provider = config.LLMProviderMock
	cfg.Memory.Path = t.TempDir()

	vec, err := vector.NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)

	eng, err := engine.New(cfg,
		engine.WithGateway(gw),
		engine.WithEmbedder(embedder.NewHash(64)),
		engine.WithVectorProvider(vec),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	return NewRunner(eng, strings.NewReader(in), out, nil)
}

func decodeFrames(t *testing.T, out *bytes.Buffer) []frame {
	t.Helper()
	var frames []frame
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var f frame
		require.NoError(t, json.Unmarshal([]byte(line), &f), "line: %s", line)
		frames = append(frames, f)
	}
	return frames
}

func framesByKind(frames []frame, kind string) []frame {
	var matched []frame
	for _, f := range frames {
		if f.Kind == kind {
			matched = append(matched, f)
		}
	}
	return matched
}

func TestRunProcessesSingleJob(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, `{"jobId": "j1", "text": "Which ferry reaches the island before breakfast?"}`+"\n", &out)

	require.NoError(t, r.Run(context.Background()))
	frames := decodeFrames(t, &out)
	require.NotEmpty(t, frames)

	iterations := framesByKind(frames, "iteration_complete")
	require.Len(t, iterations, 1)
	require.NotNil(t, iterations[0].Iteration)
	assert.Equal(t, 1, iterations[0].Iteration.Iteration)
	assert.Contains(t, iterations[0].Iteration.Agents, "logical")

	var answer strings.Builder
	for _, f := range framesByKind(frames, "token") {
		assert.Equal(t, "synthesis", f.Agent)
		answer.WriteString(f.Token)
	}
	assert.Equal(t, testAnswer, strings.TrimSpace(answer.String()))

	assert.Equal(t, "done", frames[len(frames)-1].Kind)
	assert.Empty(t, framesByKind(frames, "error"))
}

func TestRunEmitsIterationFramesBeforeTokens(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, `{"text": "Plan the crossing.", "mode": "detailed", "loopDepth": 2}`+"\n", &out)

	require.NoError(t, r.Run(context.Background()))
	frames := decodeFrames(t, &out)

	require.Len(t, framesByKind(frames, "iteration_complete"), 2)

	firstToken := -1
	lastIteration := -1
	for i, f := range frames {
		if f.Kind == "token" && firstToken == -1 {
			firstToken = i
		}
		if f.Kind == "iteration_complete" {
			lastIteration = i
		}
	}
	require.GreaterOrEqual(t, firstToken, 0)
	assert.Less(t, lastIteration, firstToken)
}

func TestRunHandlesGarbageAndBlankLines(t *testing.T) {
	input := `{"text": "Which ferry runs at dawn?"}
not json at all

{"text": "Which ferry runs at dawn?"}
`
	var out bytes.Buffer
	r := newTestRunner(t, input, &out)

	require.NoError(t, r.Run(context.Background()))
	frames := decodeFrames(t, &out)

	errors := framesByKind(frames, "error")
	require.Len(t, errors, 1)
	assert.Equal(t, "invalid JSON payload", errors[0].Message)

	// Every job, including the rejected line, closes with done.
	assert.Len(t, framesByKind(frames, "done"), 3)
	assert.Len(t, framesByKind(frames, "iteration_complete"), 2)
}

func TestRunReportsEngineErrors(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, `{"text": "   "}`+"\n", &out)

	require.NoError(t, r.Run(context.Background()))
	frames := decodeFrames(t, &out)

	errors := framesByKind(frames, "error")
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0].Message, "query is empty")
	assert.Empty(t, framesByKind(frames, "token"))
	assert.Equal(t, "done", frames[len(frames)-1].Kind)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	r := newTestRunner(t, `{"text": "Which ferry runs at dawn?"}`+"\n", &out)

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, framesByKind(decodeFrames(t, &out), "token"))
}

func TestRunReturnsNilOnEOF(t *testing.T) {
	var out bytes.Buffer
	r := newTestRunner(t, "", &out)

	require.NoError(t, r.Run(context.Background()))
	assert.Empty(t, out.String())
}
