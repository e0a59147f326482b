package confhttpd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Config is the result of loading and validating a configuration source: a
// TCP port to listen on, the worker pool size, and the routing table built
// from its `location` statements. Directives other than `port`, `workers`,
// and `location` (logging setup, etc.) are recognized by the parser but
// otherwise ignored by the core, per the external interface contract.
type Config struct {
	Port     int
	Workers  int // 0 means Server picks max(2, runtime.NumCPU()).
	Registry *Registry
}

// serverOptions mirrors the top-level scalar directives this server reads,
// the same map-to-struct shape the teacher's own Air struct is populated
// from: gather the matching directives into a map and let mapstructure fill
// in the typed fields, instead of hand-rolling a decoder per directive.
type serverOptions struct {
	Port    int `mapstructure:"port"`
	Workers int `mapstructure:"workers"`
}

// LoadConfigFile reads path and calls LoadConfig on its contents.
func LoadConfigFile(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("confhttpd: reading config %s: %w", path, err)
	}
	return LoadConfig(string(src))
}

// LoadConfig parses src, validates the `port` directive and every
// `location` block, and returns a ready-to-serve Config. Any failure here
// means the server must not start.
func LoadConfig(src string) (*Config, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}

	opts, err := extractServerOptions(root)
	if err != nil {
		return nil, err
	}

	registry, err := BuildRegistry(root)
	if err != nil {
		return nil, err
	}

	return &Config{Port: opts.Port, Workers: opts.Workers, Registry: registry}, nil
}

// extractServerOptions gathers the top-level `port` and `workers` directives
// into a map and decodes them into a serverOptions via mapstructure, then
// applies the range checks a generic decode can't express: an out-of-range
// or non-numeric port is a configuration error, matching the external
// interface's "invalid port (outside 1-65535)" exit condition. Either
// directive's absence keeps its documented default.
func extractServerOptions(root *Block) (serverOptions, error) {
	opts := serverOptions{Port: 8080}

	raw := map[string]interface{}{}
	if toks := statementTokens(root, "port"); toks != nil {
		if len(toks) != 1 {
			return opts, &configError{msg: "confhttpd: port directive requires exactly one argument"}
		}
		n, err := strconv.Atoi(toks[0])
		if err != nil {
			return opts, &configError{msg: fmt.Sprintf("confhttpd: invalid port %q", toks[0])}
		}
		raw["port"] = n
	}
	if toks := statementTokens(root, "workers"); toks != nil {
		if len(toks) != 1 {
			return opts, &configError{msg: "confhttpd: workers directive requires exactly one argument"}
		}
		n, err := strconv.Atoi(toks[0])
		if err != nil {
			return opts, &configError{msg: fmt.Sprintf("confhttpd: invalid workers %q", toks[0])}
		}
		raw["workers"] = n
	}

	if err := mapstructure.Decode(raw, &opts); err != nil {
		return opts, &configError{msg: fmt.Sprintf("confhttpd: %v", err)}
	}

	if opts.Port < 1 || opts.Port > 65535 {
		return opts, &configError{msg: fmt.Sprintf("confhttpd: port %d outside 1-65535", opts.Port)}
	}
	if opts.Workers < 0 {
		return opts, &configError{msg: fmt.Sprintf("confhttpd: workers %d must not be negative", opts.Workers)}
	}
	return opts, nil
}
