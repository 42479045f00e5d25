package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/cortexkit/cortex/pkg/config"
)

// ConfigInfoCmd prints the resolved configuration with secrets masked.
type ConfigInfoCmd struct{}

func (c *ConfigInfoCmd) Run(cli *CLI) error {
	cfg, loader, err := loadConfig(context.Background(), cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	out, err := yaml.Marshal(cfg.Sanitized())
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	fmt.Print(string(out))
	return nil
}

// ConfigCmd groups configuration tooling subcommands.
type ConfigCmd struct {
	Schema ConfigSchemaCmd `cmd:"" help:"Print the configuration JSON schema."`
}

// ConfigSchemaCmd generates the JSON Schema for the configuration.
// Output goes to stdout so it can be redirected.
type ConfigSchemaCmd struct {
	Compact bool `help:"Compact JSON output (no indentation)."`
}

func (c *ConfigSchemaCmd) Run(cli *CLI) error {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	schema := reflector.Reflect(&config.Config{})
	schema.ID = "https://cortexkit.dev/schemas/config.json"
	schema.Title = "Cortex Configuration Schema"
	schema.Description = "Configuration schema for the cortex engine and server"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	encoder := json.NewEncoder(os.Stdout)
	if !c.Compact {
		encoder.SetIndent("", "  ")
	}
	if err := encoder.Encode(schema); err != nil {
		return fmt.Errorf("failed to encode schema: %w", err)
	}
	return nil
}
