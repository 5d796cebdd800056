package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// SchemaCmd outputs JSON Schema for dunehmr output types
type SchemaCmd struct {
	Type []string `short:"t" help:"Output types to include (ready,build_success,hot_update,full_reload,diagnostic,rpc_error,error,hmr). Default: all"`
}

var schemaOrder = []string{"ready", "build_success", "hot_update", "full_reload", "diagnostic", "rpc_error", "error", "hmr"}

// Run executes the schema command
func (c *SchemaCmd) Run(globals *Globals) error {
	if globals.Format == "text" && len(c.Type) == 0 {
		c.outputTextHelp(globals)
		return nil
	}

	schemas := map[string]map[string]any{
		"ready":         readySchema(),
		"build_success": buildSuccessSchema(),
		"hot_update":    hotUpdateSchema(),
		"full_reload":   fullReloadSchema(),
		"diagnostic":    diagnosticSchema(),
		"rpc_error":     rpcErrorSchema(),
		"error":         errorSchema(),
		"hmr":           hmrPayloadSchema(),
	}

	typesToOutput := lo.Map(c.Type, func(t string, _ int) string {
		return strings.ToLower(strings.TrimSpace(t))
	})
	if len(typesToOutput) == 0 {
		typesToOutput = schemaOrder
	}
	if unknown := lo.Without(typesToOutput, schemaOrder...); len(unknown) > 0 {
		return outputErrorCommon(globals, codeInvalidFlags, fmt.Sprintf("unknown schema type %q", unknown[0]), "valid: "+strings.Join(schemaOrder, ","))
	}

	defs := map[string]any{}
	for _, t := range typesToOutput {
		defs[t] = schemas[t]
	}
	out := map[string]any{
		"$schema":     "http://json-schema.org/draft-07/schema#",
		"title":       "dunehmr Output Schemas",
		"description": "JSON Schema definitions for dunehmr NDJSON output and HMR websocket payloads",
		"definitions": defs,
	}

	encoder := json.NewEncoder(globals.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func constProp(value string) map[string]any {
	return map[string]any{"type": "string", "const": value}
}

// event wraps the fields every ndjson event carries
func event(name, title, description string, props map[string]any, required ...string) map[string]any {
	props["type"] = constProp(name)
	props["schemaVersion"] = prop("integer", "Output schema version")
	props["timestamp"] = map[string]any{"type": "string", "format": "date-time"}
	return map[string]any{
		"type":        "object",
		"title":       title,
		"description": description,
		"properties":  props,
		"required":    append([]string{"type", "schemaVersion"}, required...),
	}
}

func readySchema() map[string]any {
	return event("ready", "Ready", "The bridge started and is connecting to the daemon", map[string]any{
		"run_id": prop("string", "Unique per process"),
		"socket": prop("string", "Daemon RPC socket path"),
		"root":   prop("string", "Project root"),
		"listen": prop("string", "HMR websocket address, absent when the server is disabled"),
	}, "run_id", "socket", "root")
}

func buildSuccessSchema() map[string]any {
	return event("build_success", "Build Success", "The daemon finished a build without errors", map[string]any{
		"build":         prop("integer", "Build number since start"),
		"changed_files": prop("integer", "Source files drained by this build"),
		"cleared_error": prop("boolean", "A blocking error was dismissed"),
	}, "build")
}

func hotUpdateSchema() map[string]any {
	return event("hot_update", "Hot Update", "Modules pushed to browser clients", map[string]any{
		"files":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"modules": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	}, "modules")
}

func fullReloadSchema() map[string]any {
	return event("full_reload", "Full Reload", "Browser clients were told to reload the page", map[string]any{
		"reason": prop("string", "Why the page reloads"),
	})
}

func diagnosticSchema() map[string]any {
	return event("diagnostic", "Diagnostic", "A compiler diagnostic was added or resolved", map[string]any{
		"action": map[string]any{"type": "string", "enum": []string{"add", "remove"}},
		"report": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id":       prop("integer", "Daemon diagnostic id"),
				"message":  prop("string", "Flattened message text"),
				"severity": map[string]any{"type": "string", "enum": []string{"error", "warning"}},
				"file":     prop("string", "Absolute source path"),
				"line":     prop("integer", "1-based line"),
				"column":   prop("integer", "1-based column"),
				"frame":    prop("string", "Source excerpt with a caret underline"),
			},
			"required": []string{"id", "message", "severity"},
		},
	}, "action", "report")
}

func rpcErrorSchema() map[string]any {
	return event("rpc_error", "RPC Error", "A protocol or connection fault", map[string]any{
		"message": prop("string", "Error text"),
		"fatal":   prop("boolean", "The run ends after this event"),
	}, "message", "fatal")
}

func errorSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "Error",
		"description": "Command failure",
		"properties": map[string]any{
			"type":          constProp("error"),
			"schemaVersion": prop("integer", "Output schema version"),
			"code": map[string]any{
				"type":        "string",
				"description": "Error code",
				"enum":        []string{codeInvalidFlags, codeDaemonFailed, codeInvalidInput},
			},
			"message": prop("string", "Human-readable error description"),
			"hint":    prop("string", "Suggested fix"),
		},
		"required": []string{"type", "code", "message"},
	}
}

func hmrPayloadSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"title":       "HMR Payload",
		"description": "Message sent to browser clients on the HMR websocket",
		"properties": map[string]any{
			"type": map[string]any{"type": "string", "enum": []string{"connected", "update", "full-reload", "error"}},
			"updates": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type":         constProp("js-update"),
						"path":         prop("string", "Module URL"),
						"acceptedPath": prop("string", "Module URL that accepts the update"),
						"timestamp":    prop("integer", "Milliseconds since the epoch"),
					},
				},
			},
			"path": prop("string", "Reload target; * reloads every page"),
			"err": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message":    prop("string", "Error text without ANSI escapes"),
					"frame":      prop("string", "Source excerpt"),
					"id":         prop("string", "Source file"),
					"plugin":     prop("string", "Reporting plugin"),
					"pluginCode": prop("string", "Stable error code"),
					"loc":        prop("object", "file, line and column"),
				},
			},
		},
		"required": []string{"type"},
	}
}

// Helper to output a quick reference
func (c *SchemaCmd) outputTextHelp(globals *Globals) {
	fmt.Fprintln(globals.Stdout, "dunehmr Output Types:")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "  ready         - Bridge started")
	fmt.Fprintln(globals.Stdout, "  build_success - Daemon finished a clean build")
	fmt.Fprintln(globals.Stdout, "  hot_update    - Modules pushed to the browser")
	fmt.Fprintln(globals.Stdout, "  full_reload   - Browser told to reload")
	fmt.Fprintln(globals.Stdout, "  diagnostic    - Compiler error or warning added/resolved")
	fmt.Fprintln(globals.Stdout, "  rpc_error     - Daemon protocol or connection fault")
	fmt.Fprintln(globals.Stdout, "  error         - Command failure")
	fmt.Fprintln(globals.Stdout, "  hmr           - HMR websocket payload")
	fmt.Fprintln(globals.Stdout, "")
	fmt.Fprintln(globals.Stdout, "Use --type to select: dunehmr schema --type ready,diagnostic")
}
