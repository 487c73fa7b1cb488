package mcpserver

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// requireString returns a non-empty string argument or an error naming it.
func requireString(req mcp.CallToolRequest, key string) (string, error) {
	v := req.GetString(key, "")
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// confirmed reports whether the caller passed confirm=true. Clients send it as
// a bool or, occasionally, as the string "true".
func confirmed(req mcp.CallToolRequest) bool {
	v, ok := req.GetArguments()["confirm"]
	if !ok {
		return false
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// intArg reads a numeric argument that JSON may have decoded as float64 or string.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return n
}
