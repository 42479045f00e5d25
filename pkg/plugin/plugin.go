// Package plugin defines the wire protocol for external LLM provider
// plugins. Plugins are separate binaries spoken to over hashicorp
// go-plugin's net/rpc transport; a plugin main calls Serve with its
// Provider implementation, and the host dispenses the "llm" plugin.
package plugin

import (
	"net/rpc"
	"os"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// Handshake rejects binaries that are not cortex provider plugins.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "CORTEX_PLUGIN",
	MagicCookieValue: "cortex_llm_v1",
}

// PluginMap names the plugins a host can dispense.
var PluginMap = map[string]goplugin.Plugin{
	"llm": &ProviderPlugin{},
}

// GenerateArgs is the request payload sent to a plugin.
type GenerateArgs struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	ForceJSON   bool
}

// GenerateReply is the response payload returned by a plugin.
type GenerateReply struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// InfoReply describes the model behind a plugin.
type InfoReply struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// Provider is the interface a plugin binary implements.
type Provider interface {
	Generate(args GenerateArgs) (GenerateReply, error)
	Info() (InfoReply, error)
}

// ProviderPlugin wires a Provider into go-plugin's net/rpc transport.
type ProviderPlugin struct {
	Impl Provider
}

func (p *ProviderPlugin) Server(*goplugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *ProviderPlugin) Client(_ *goplugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClient{client: c}, nil
}

type rpcServer struct {
	impl Provider
}

func (s *rpcServer) Generate(args GenerateArgs, reply *GenerateReply) error {
	result, err := s.impl.Generate(args)
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

func (s *rpcServer) Info(args interface{}, reply *InfoReply) error {
	result, err := s.impl.Info()
	if err != nil {
		return err
	}
	*reply = result
	return nil
}

type rpcClient struct {
	client *rpc.Client
}

func (c *rpcClient) Generate(args GenerateArgs) (GenerateReply, error) {
	var reply GenerateReply
	err := c.client.Call("Plugin.Generate", args, &reply)
	return reply, err
}

func (c *rpcClient) Info() (InfoReply, error) {
	var reply InfoReply
	err := c.client.Call("Plugin.Info", new(interface{}), &reply)
	return reply, err
}

// Serve runs a Provider as a plugin binary. Call it from the plugin's
// main; it blocks until the host disconnects.
func Serve(impl Provider) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins: map[string]goplugin.Plugin{
			"llm": &ProviderPlugin{Impl: impl},
		},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "cortex-plugin",
			Level:  hclog.Info,
			Output: os.Stderr,
		}),
	})
}
