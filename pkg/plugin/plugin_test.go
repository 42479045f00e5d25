package plugin

import (
	"errors"
	"net"
	"net/rpc"
	"testing"

	goplugin "github.com/hashicorp/go-plugin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticProvider struct {
	fail bool
}

func (p *staticProvider) Generate(args GenerateArgs) (GenerateReply, error) {
	if p.fail {
		return GenerateReply{}, errors.New("provider down")
	}
	return GenerateReply{
		Text:             "echo: " + args.Prompt,
		PromptTokens:     3,
		CompletionTokens: 5,
		FinishReason:     "stop",
	}, nil
}

func (p *staticProvider) Info() (InfoReply, error) {
	return InfoReply{Model: "static-1", MaxTokens: 512, Temperature: 0.5}, nil
}

// newRPCPair wires an rpcServer and rpcClient over an in-memory pipe.
func newRPCPair(t *testing.T, impl Provider) Provider {
	serverConn, clientConn := net.Pipe()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("Plugin", &rpcServer{impl: impl}))
	go server.ServeConn(serverConn)

	client := rpc.NewClient(clientConn)
	t.Cleanup(func() { _ = client.Close() })

	return &rpcClient{client: client}
}

func TestPluginRPCGenerate(t *testing.T) {
	provider := newRPCPair(t, &staticProvider{})

	reply, err := provider.Generate(GenerateArgs{
		System:      "be brief",
		Prompt:      "hello",
		Temperature: 0.3,
		MaxTokens:   64,
	})
	require.NoError(t, err)

	assert.Equal(t, "echo: hello", reply.Text)
	assert.Equal(t, 3, reply.PromptTokens)
	assert.Equal(t, 5, reply.CompletionTokens)
	assert.Equal(t, "stop", reply.FinishReason)
}

func TestPluginRPCGenerateError(t *testing.T) {
	provider := newRPCPair(t, &staticProvider{fail: true})

	_, err := provider.Generate(GenerateArgs{Prompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider down")
}

func TestPluginRPCInfo(t *testing.T) {
	provider := newRPCPair(t, &staticProvider{})

	info, err := provider.Info()
	require.NoError(t, err)

	assert.Equal(t, "static-1", info.Model)
	assert.Equal(t, 512, info.MaxTokens)
	assert.Equal(t, 0.5, info.Temperature)
}

func TestProviderPluginTransport(t *testing.T) {
	p := &ProviderPlugin{Impl: &staticProvider{}}

	served, err := p.Server(nil)
	require.NoError(t, err)
	assert.IsType(t, &rpcServer{}, served)

	dispensed, err := p.Client(nil, nil)
	require.NoError(t, err)
	_, ok := dispensed.(Provider)
	assert.True(t, ok)
}

func TestHandshake(t *testing.T) {
	assert.Equal(t, uint(1), Handshake.ProtocolVersion)
	assert.Equal(t, "CORTEX_PLUGIN", Handshake.MagicCookieKey)

	_, exists := PluginMap["llm"]
	assert.True(t, exists)

	var _ goplugin.Plugin = (*ProviderPlugin)(nil)
}
