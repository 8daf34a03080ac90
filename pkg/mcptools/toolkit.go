// Package mcptools exposes the config service to MCP clients as tools and
// a config://{name} resource template.
package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/configs-api/pkg/configs"
)

// Tool names.
const (
	toolList   = "list_configs"
	toolGet    = "get_config"
	toolSearch = "search_configs"
	toolCreate = "create_config"
	toolUpdate = "update_config"
	toolDelete = "delete_config"
)

// nameInput is the input for tools addressing a single config.
type nameInput struct {
	Name string `json:"name"`
}

// writeInput is the input for create_config and update_config.
type writeInput struct {
	Name     string `json:"name"`
	Metadata any    `json:"metadata,omitempty"`
}

// searchInput is the input for search_configs.
type searchInput struct {
	Path  string `json:"path"`
	Value string `json:"value"`
}

// listInput is empty since list_configs has no parameters.
type listInput struct{}

// deleteOutput is the success response of delete_config.
type deleteOutput struct {
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

// Toolkit registers config tools and resources on an MCP server.
type Toolkit struct {
	svc *configs.Service
}

// New creates a toolkit over svc.
func New(svc *configs.Service) *Toolkit {
	return &Toolkit{svc: svc}
}

// Tools returns the names of the tools registered by RegisterTools.
func (*Toolkit) Tools() []string {
	return []string{toolList, toolGet, toolSearch, toolCreate, toolUpdate, toolDelete}
}

// RegisterTools registers the config tools with the MCP server.
func (t *Toolkit) RegisterTools(s *mcp.Server) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        toolList,
		Description: "Lists every stored named configuration with its metadata document.",
	}, t.handleList)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolGet,
		Description: "Returns the named configuration called name.",
	}, t.handleGet)

	mcp.AddTool(s, &mcp.Tool{
		Name: toolSearch,
		Description: "Finds configurations whose metadata matches one dotted-path predicate. " +
			"path has exactly three parts, root.segment.field (e.g. metadata.monitoring.enabled), " +
			"and value is compared to the field as text, so true matches both true and \"true\".",
	}, t.handleSearch)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolCreate,
		Description: "Creates a named configuration. Fails if the name is already used. metadata is any JSON value.",
	}, t.handleCreate)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolUpdate,
		Description: "Replaces the metadata of an existing configuration. The name cannot be changed.",
	}, t.handleUpdate)

	mcp.AddTool(s, &mcp.Tool{
		Name:        toolDelete,
		Description: "Deletes a named configuration. Deleting a missing configuration succeeds.",
	}, t.handleDelete)
}

func (t *Toolkit) handleList(ctx context.Context, _ *mcp.CallToolRequest, _ listInput) (*mcp.CallToolResult, any, error) {
	records, err := t.svc.List(ctx)
	if err != nil {
		return serviceErrorResult(toolList, err), nil, nil
	}
	return jsonResult(records)
}

func (t *Toolkit) handleGet(ctx context.Context, _ *mcp.CallToolRequest, input nameInput) (*mcp.CallToolResult, any, error) {
	rec, found, err := t.svc.Get(ctx, input.Name)
	if err != nil {
		return serviceErrorResult(toolGet, err), nil, nil
	}
	if !found {
		return errorResult(fmt.Sprintf("%s: %q", configs.ErrNotFound, input.Name)), nil, nil
	}
	return jsonResult(rec)
}

func (t *Toolkit) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input searchInput) (*mcp.CallToolResult, any, error) {
	records, err := t.svc.Search(ctx, map[string][]string{input.Path: {input.Value}})
	if err != nil {
		return serviceErrorResult(toolSearch, err), nil, nil
	}
	return jsonResult(records)
}

func (t *Toolkit) handleCreate(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, any, error) {
	in, err := toInput(req, input)
	if err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	rec, err := t.svc.Create(ctx, in)
	if err != nil {
		return serviceErrorResult(toolCreate, err), nil, nil
	}
	return jsonResult(rec)
}

func (t *Toolkit) handleUpdate(ctx context.Context, req *mcp.CallToolRequest, input writeInput) (*mcp.CallToolResult, any, error) {
	in, err := toInput(req, input)
	if err != nil {
		return errorResult(err.Error()), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	rec, err := t.svc.Update(ctx, input.Name, in)
	if err != nil {
		return serviceErrorResult(toolUpdate, err), nil, nil
	}
	return jsonResult(rec)
}

func (t *Toolkit) handleDelete(ctx context.Context, _ *mcp.CallToolRequest, input nameInput) (*mcp.CallToolResult, any, error) {
	if err := t.svc.Delete(ctx, input.Name); err != nil {
		return serviceErrorResult(toolDelete, err), nil, nil
	}
	return jsonResult(deleteOutput{Name: input.Name, Deleted: true})
}

// toInput builds a service input from tool arguments. Metadata is taken from
// the raw request arguments when present, since the decoded input has been
// through float64 and would lose large integers and number spellings. A
// missing metadata argument stays empty and is stored as an empty object.
func toInput(req *mcp.CallToolRequest, input writeInput) (configs.Input, error) {
	in := configs.Input{Name: input.Name}
	if raw, ok := rawArguments(req); ok {
		var args struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		if err := json.Unmarshal(raw, &args); err != nil {
			return in, fmt.Errorf("%w: %w", configs.ErrInvalidDocument, err)
		}
		in.Metadata = args.Metadata
		return in, nil
	}
	if input.Metadata == nil {
		return in, nil
	}
	raw, err := json.Marshal(input.Metadata)
	if err != nil {
		return in, fmt.Errorf("%w: %w", configs.ErrInvalidDocument, err)
	}
	in.Metadata = raw
	return in, nil
}

// rawArguments returns the arguments as received over the wire.
func rawArguments(req *mcp.CallToolRequest) (json.RawMessage, bool) {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil, false
	}
	return req.Params.Arguments, true
}

// serviceErrorResult reports a service failure. Store failures are logged
// and reported without internal detail.
func serviceErrorResult(tool string, err error) *mcp.CallToolResult {
	if errors.Is(err, configs.ErrStoreUnavailable) {
		slog.Error("config tool failed", "tool", tool, "error", err)
		return errorResult(configs.ErrStoreUnavailable.Error())
	}
	return errorResult(err.Error())
}

// errorBody is the JSON text of an error CallToolResult.
type errorBody struct {
	Error string `json:"error"`
}

// errorResult creates an error CallToolResult.
func errorResult(msg string) *mcp.CallToolResult {
	data, _ := json.Marshal(errorBody{Error: msg}) // a string field cannot fail to encode
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
		IsError: true,
	}
}

// jsonResult creates a success CallToolResult carrying v as JSON text.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("internal error marshaling response"), nil, nil //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
