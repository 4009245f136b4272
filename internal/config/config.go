// Package config loads the optional .rpalrc.json file that supplies
// default CLI flags, validated against an embedded JSON schema
// (SPEC_FULL.md §2 "Configuration").
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaSource = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "rpalrc",
	"type": "object",
	"additionalProperties": false,
	"properties": {
		"color": {"type": "boolean"},
		"cacheDir": {"type": "string"},
		"debug": {"type": "boolean"}
	}
}`

// Config holds the CLI defaults an .rpalrc.json may override.
type Config struct {
	Color    *bool  `json:"color,omitempty"`
	CacheDir string `json:"cacheDir,omitempty"`
	// Debug is validated and loaded, but cmd/rpal does not read it; debug
	// logging is switched on only by the RPAL_DEBUG environment variable.
	Debug bool `json:"debug,omitempty"`
}

// Load reads "<dir>/.rpalrc.json". A missing file is not an error — it
// returns a zero Config, leaving the CLI's built-in defaults in place.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ".rpalrc.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	schema, err := jsonschema.CompileString("rpalrc.json", schemaSource)
	if err != nil {
		return nil, fmt.Errorf("config: compiling schema: %w", err)
	}
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("config: %s failed validation: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return &cfg, nil
}
