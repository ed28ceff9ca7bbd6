// Package mcpadapter exposes privacy scoring to AI agents over the Model
// Context Protocol.
package mcpadapter

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
	"antygravity/internal/scoring"
)

// NewServer registers the tools without starting any transport.
func NewServer(scorer *scoring.Service, policies ports.Policies, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Antygravity Privacy Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{scorer: scorer, policies: policies}

	s.AddTool(mcp.NewTool("privacy_check",
		mcp.WithDescription("Score the privacy risk of an installed app from its permissions, network usage and endpoints. Nothing is stored."),
		mcp.WithString("package_name", mcp.Description("Application id, e.g. com.example.app."), mcp.Required()),
		mcp.WithString("app_name", mcp.Description("Display name of the app."), mcp.Required()),
		mcp.WithArray("permissions", mcp.Description("Declared permission names."), mcp.WithStringItems(), mcp.Required()),
		mcp.WithString("category", mcp.Description("Store category, e.g. social or finance.")),
		mcp.WithString("network_usage_level", mcp.Description("Observed network usage."), mcp.Enum(domain.UsageLow, domain.UsageMedium, domain.UsageHigh)),
		mcp.WithArray("endpoints", mcp.Description("Hosts or URLs the app contacts."), mcp.WithStringItems()),
		mcp.WithString("install_source", mcp.Description("Installer package name.")),
		mcp.WithString("policy_version", mcp.Description("Scoring policy version (defaults to the current default).")),
	), h.handlePrivacyCheck)

	s.AddTool(mcp.NewTool("list_policies",
		mcp.WithDescription("List the published scoring policy versions and which one is the default."),
	), h.handleListPolicies)

	return s
}

// Serve runs the server over stdio until the client disconnects.
func Serve(_ context.Context, s *server.MCPServer) error {
	return server.ServeStdio(s)
}
