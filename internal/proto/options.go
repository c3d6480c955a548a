// Package proto holds the types exchanged between the agent layer and the
// query engine: invocation options and the raw messages the engine streams.
package proto

import "slices"

// MCP server transport types.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// MCPServer declares how to reach (or launch) a tool server.
type MCPServer struct {
	Type    string   `yaml:"type" json:"type"`
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
	Env     []string `yaml:"env,omitempty" json:"env,omitempty"`
	URL     string   `yaml:"url,omitempty" json:"url,omitempty"`
}

// Options is the bundle handed to the query engine along with the prompt.
//
// Options values are built fresh for every invocation and never share
// backing arrays with their inputs.
type Options struct {
	Env          []string             `yaml:"env"`
	SystemPrompt string               `yaml:"system-prompt"`
	Model        string               `yaml:"model"`
	AllowedTools []string             `yaml:"allowed-tools"`
	MaxTurns     int                  `yaml:"max-turns"`
	MCPServers   map[string]MCPServer `yaml:"mcp-servers,omitempty"`
}

// Allows reports whether the named tool is on the allowlist.
func (o Options) Allows(name string) bool {
	return slices.Contains(o.AllowedTools, name)
}

// Clone returns a deep copy of o.
func (o Options) Clone() Options {
	c := o
	c.Env = slices.Clone(o.Env)
	c.AllowedTools = slices.Clone(o.AllowedTools)
	if o.MCPServers != nil {
		c.MCPServers = make(map[string]MCPServer, len(o.MCPServers))
		for name, srv := range o.MCPServers {
			srv.Args = slices.Clone(srv.Args)
			srv.Env = slices.Clone(srv.Env)
			c.MCPServers[name] = srv
		}
	}
	return c
}
