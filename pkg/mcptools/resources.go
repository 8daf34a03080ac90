package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"
)

// configTemplateURI addresses a single config by name.
const configTemplateURI = "config://{name}"

// RegisterResources registers the config resource template.
func (t *Toolkit) RegisterResources(s *mcp.Server) {
	s.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: configTemplateURI,
		Name:        "Named Configuration",
		Description: "A stored configuration and its metadata document",
		MIMEType:    "application/json",
	}, t.handleConfigResource)
}

// handleConfigResource handles config://{name} requests.
func (t *Toolkit) handleConfigResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	vars, err := parseTemplateVars(configTemplateURI, uri)
	if err != nil || vars["name"] == "" {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}

	rec, found, err := t.svc.Get(ctx, vars["name"])
	if err != nil {
		return nil, fmt.Errorf("reading config resource %s: %w", uri, err)
	}
	if !found {
		return nil, mcp.ResourceNotFoundError(uri) //nolint:wrapcheck // MCP protocol error returned as-is for SDK type matching
	}
	return marshalResourceResult(uri, rec)
}

// parseTemplateVars extracts named variables from a URI using a URI template.
func parseTemplateVars(templateStr, uri string) (map[string]string, error) {
	tmpl, err := uritemplate.New(templateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid template %q: %w", templateStr, err)
	}

	match := tmpl.Match(uri)
	if match == nil {
		return nil, fmt.Errorf("uri %q does not match template %q", uri, templateStr)
	}

	result := make(map[string]string)
	for _, name := range tmpl.Varnames() {
		result[name] = match.Get(name).String()
	}
	return result, nil
}

func marshalResourceResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(data),
			},
		},
	}, nil
}
