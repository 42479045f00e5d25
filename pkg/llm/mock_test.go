package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockProviderQueue(t *testing.T) {
	provider := NewMockProvider(nil)
	provider.Enqueue("first", "second")

	response, err := provider.Generate(context.Background(), &Request{Prompt: "a"})
	require.NoError(t, err)
	assert.Equal(t, "first", response.Text)

	response, err = provider.Generate(context.Background(), &Request{Prompt: "b"})
	require.NoError(t, err)
	assert.Equal(t, "second", response.Text)

	// Queue exhausted: falls back to an acknowledgement.
	response, err = provider.Generate(context.Background(), &Request{Prompt: "c"})
	require.NoError(t, err)
	assert.Contains(t, response.Text, "Acknowledged")

	assert.Equal(t, 3, provider.CallCount())
}

func TestMockProviderRespondFunc(t *testing.T) {
	provider := NewMockProvider(nil)
	provider.RespondFunc = func(req *Request) string {
		if req.ForceJSON {
			return `{"intent":"test"}`
		}
		return "plain"
	}

	response, err := provider.Generate(context.Background(), &Request{Prompt: "x", ForceJSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"test"}`, response.Text)

	response, err = provider.Generate(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "plain", response.Text)
}

func TestMockProviderError(t *testing.T) {
	provider := NewMockProvider(nil)
	provider.Err = assert.AnError

	_, err := provider.Generate(context.Background(), &Request{Prompt: "x"})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = provider.GenerateStreaming(context.Background(), &Request{Prompt: "x"})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestMockProviderStreaming(t *testing.T) {
	provider := NewMockProvider(nil)
	provider.Enqueue("streamed mock response")

	ch, err := provider.GenerateStreaming(context.Background(), &Request{Prompt: "x"})
	require.NoError(t, err)

	var text string
	var sawDone bool
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			text += chunk.Text
		case "done":
			sawDone = true
		}
	}

	assert.Equal(t, "streamed mock response", text)
	assert.True(t, sawDone)
}

func TestMockProviderRecordsRequests(t *testing.T) {
	provider := NewMockProvider(nil)

	_, err := provider.Generate(context.Background(), &Request{
		System: "sys",
		Prompt: "user prompt",
	})
	require.NoError(t, err)

	requests := provider.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "sys", requests[0].System)
	assert.Equal(t, "user prompt", requests[0].Prompt)
}
