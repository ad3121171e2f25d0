// Package mcp provides a Model Context Protocol server for Verilim.
//
// It exposes the offline half of the pipeline (sanitize, validate, module
// normalization, prompt construction) as MCP tools, and the review policy
// (sentinel, controls, modules, authoritative hosts) as an MCP resource.
// Live model access stays in the CLI; every tool here is pure and local.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/quarrylabs/verilim/internal/evidence"
	"github.com/quarrylabs/verilim/internal/policy"
	"github.com/quarrylabs/verilim/internal/prompt"
	"github.com/quarrylabs/verilim/internal/record"
	"github.com/quarrylabs/verilim/internal/sanitize"
)

// NewServer creates a configured MCP server with all Verilim tools and
// resources.
func NewServer(version string) *server.MCPServer {
	ver := version
	if ver == "" {
		ver = "dev"
	}

	s := server.NewMCPServer(
		"Verilim",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerSanitizeTool(s)
	registerValidateTool(s)
	registerNormalizeModuleTool(s)
	registerCheckEvidenceTool(s)
	registerBuildPromptTool(s)

	registerPolicyResource(s)

	return s
}

// ServeStdio runs the server over stdio until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// --- Tools ---

func registerSanitizeTool(s *server.MCPServer) {
	tool := mcp.NewTool("verilim_sanitize",
		mcp.WithDescription("Sanitize raw model output into a renumbered limitation list plus the extracted validation rows. Applies the topical and compliance gates; an empty result collapses to the sentinel."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("raw",
			mcp.Required(),
			mcp.Description("Raw model output to sanitize"),
		),
		mcp.WithString("description",
			mcp.Description("Requirement description used to classify topics for gating"),
		),
		mcp.WithNumber("max_items",
			mcp.Description(fmt.Sprintf("Maximum items kept after dedup (default: %d)", policy.DefaultMaxItems)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := req.RequireString("raw")
		if err != nil {
			return mcp.NewToolResultError("raw is required"), nil
		}

		description := ""
		if d, err := req.RequireString("description"); err == nil {
			description = d
		}

		maxItems := policy.DefaultMaxItems
		if v, err := req.RequireFloat("max_items"); err == nil && int(v) > 0 {
			maxItems = int(v)
		}

		result := sanitize.Sanitize(raw, description, maxItems)
		data, err := json.MarshalIndent(map[string]any{
			"text":       result.Text,
			"validation": result.Validation,
		}, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerValidateTool(s *server.MCPServer) {
	tool := mcp.NewTool("verilim_validate",
		mcp.WithDescription("Validate a processed record: prune validation rows, canonicalize modules, and set processed, metrics, and failure_reason. Returns the validated record as JSON."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("record",
			mcp.Required(),
			mcp.Description("Record object as a JSON string; must carry research_analysis and validation fields"),
		),
		mcp.WithNumber("min_items",
			mcp.Description(fmt.Sprintf("Minimum item count for a non-sentinel result (default: %d)", policy.DefaultMinItems)),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawRecord, err := req.RequireString("record")
		if err != nil {
			return mcp.NewToolResultError("record is required"), nil
		}

		var rec record.Record
		if err := json.Unmarshal([]byte(rawRecord), &rec); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("record is not valid JSON: %v", err)), nil
		}

		minItems := policy.DefaultMinItems
		if v, err := req.RequireFloat("min_items"); err == nil && int(v) > 0 {
			minItems = int(v)
		}

		out := record.Validate(rec, minItems)
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding record: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerNormalizeModuleTool(s *server.MCPServer) {
	tool := mcp.NewTool("verilim_normalize_module",
		mcp.WithDescription("Normalize a free-form module mention onto the canonical module list. Returns an empty module when nothing matches."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Free-form module text, e.g. 'Employee Central Payroll'"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		value, err := req.RequireString("value")
		if err != nil {
			return mcp.NewToolResultError("value is required"), nil
		}

		normalized := evidence.NormalizeModule(value)
		data, err := json.Marshal(map[string]any{
			"input":   value,
			"module":  normalized,
			"matched": normalized != "",
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerCheckEvidenceTool(s *server.MCPServer) {
	tool := mcp.NewTool("verilim_check_evidence",
		mcp.WithDescription("Check whether an evidence pointer would survive validation: an authoritative documentation URL or a 'SAP KBA' reference."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("pointer",
			mcp.Required(),
			mcp.Description("Evidence pointer, usually a URL"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pointer, err := req.RequireString("pointer")
		if err != nil {
			return mcp.NewToolResultError("pointer is required"), nil
		}

		trimmed := strings.TrimSpace(pointer)
		authoritative := evidence.IsAuthoritative(trimmed)
		kba := strings.HasPrefix(strings.ToLower(trimmed), "sap kba")
		data, err := json.Marshal(map[string]any{
			"pointer":       pointer,
			"authoritative": authoritative,
			"kba":           kba,
			"accepted":      authoritative || kba,
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})
}

func registerBuildPromptTool(s *server.MCPServer) {
	tool := mcp.NewTool("verilim_build_prompt",
		mcp.WithDescription("Build the research prompt for a requirement record. The restrictive family targets configuration limitations; the wricef family targets custom-development (WRICEF) limitations."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("record",
			mcp.Required(),
			mcp.Description("Requirement record as a JSON string; Title and Description drive the prompt"),
		),
		mcp.WithString("family",
			mcp.Description("Prompt family: restrictive or wricef (default: restrictive)"),
			mcp.Enum("restrictive", "wricef"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rawRecord, err := req.RequireString("record")
		if err != nil {
			return mcp.NewToolResultError("record is required"), nil
		}

		var rec record.Record
		if err := json.Unmarshal([]byte(rawRecord), &rec); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("record is not valid JSON: %v", err)), nil
		}

		family := "restrictive"
		if f, err := req.RequireString("family"); err == nil && f != "" {
			family = strings.ToLower(strings.TrimSpace(f))
		}

		var text string
		switch family {
		case "restrictive":
			text = prompt.BuildRestrictive(prompt.InputsFromRecord(rec))
		case "wricef":
			text = prompt.BuildWRICEF(prompt.WRICEFInputsFromRecord(rec))
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown prompt family: %s", family)), nil
		}
		return mcp.NewToolResultText(text), nil
	})
}

// --- Resources ---

func registerPolicyResource(s *server.MCPServer) {
	resource := mcp.NewResource(
		"verilim://policy",
		"Review Policy",
		mcp.WithResourceDescription("The validation policy: sentinel texts, allowed controls, canonical modules, module aliases, and authoritative evidence hosts."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		controls := make([]string, 0, len(policy.AllowedControls))
		for control := range policy.AllowedControls {
			controls = append(controls, control)
		}
		sort.Strings(controls)

		data, err := json.MarshalIndent(map[string]any{
			"sentinel":               policy.SentinelText,
			"wricef_sentinel":        policy.WRICEFSentinelText,
			"min_items":              policy.DefaultMinItems,
			"max_items":              policy.DefaultMaxItems,
			"allowed_controls":       controls,
			"modules":                policy.ModulesOrdered,
			"module_aliases":         policy.ModuleAliases,
			"authoritative_suffixes": policy.AuthoritativeSuffixes,
		}, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encoding policy resource: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "verilim://policy",
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
