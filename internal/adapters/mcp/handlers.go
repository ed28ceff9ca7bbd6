package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"antygravity/internal/domain"
	"antygravity/internal/ports"
	"antygravity/internal/scoring"
)

type toolHandler struct {
	scorer   *scoring.Service
	policies ports.Policies
}

func (h *toolHandler) handlePrivacyCheck(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d := domain.AppDescriptor{
		PackageName:       request.GetString("package_name", ""),
		AppName:           request.GetString("app_name", ""),
		Category:          request.GetString("category", ""),
		Permissions:       request.GetStringSlice("permissions", nil),
		NetworkUsageLevel: request.GetString("network_usage_level", ""),
		Endpoints:         request.GetStringSlice("endpoints", nil),
		InstallSource:     request.GetString("install_source", ""),
	}
	version := request.GetString("policy_version", "")

	res, err := h.scorer.Check(d, version)
	if err != nil {
		return mcp.NewToolResultError(describe(err)), nil
	}
	jsonData, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

type policyInfo struct {
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Hash        string `json:"hash"`
	Default     bool   `json:"default"`
}

func (h *toolHandler) handleListPolicies(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap := h.policies.Snapshot()
	out := make([]policyInfo, 0)
	for _, p := range snap.Policies() {
		out = append(out, policyInfo{
			Version:     p.Version,
			Description: p.Description,
			Hash:        p.Hash,
			Default:     p.Version == snap.Default(),
		})
	}
	jsonData, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

// describe renders scoring errors for a tool caller.
func describe(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return "invalid app descriptor: " + verr.Error()
	}
	return fmt.Sprintf("privacy check failed: %v", err)
}
