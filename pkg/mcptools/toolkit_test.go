package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/configs-api/pkg/configs"
	"github.com/txn2/configs-api/pkg/configstore"
)

const (
	testName     = "data-src"
	testMetadata = `{"monitoring":{"enabled":"true"},"limits":{"cpu":{"enabled":"false","value":"300m"}}}`
)

// unavailableStore fails reads as unavailable.
type unavailableStore struct {
	*configstore.MemoryStore
}

func (unavailableStore) List(context.Context) ([]configstore.Entry, error) {
	return nil, fmt.Errorf("%w: connection refused", configstore.ErrStoreUnavailable)
}

func (unavailableStore) Get(context.Context, string) (*configstore.Entry, error) {
	return nil, fmt.Errorf("%w: connection refused", configstore.ErrStoreUnavailable)
}

func newTestToolkit(t *testing.T) *Toolkit {
	t.Helper()
	svc := configs.NewService(configstore.NewMemoryStore())
	_, err := svc.Create(context.Background(), configs.Input{Name: testName, Metadata: json.RawMessage(testMetadata)})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), configs.Input{Name: "second", Metadata: json.RawMessage(`{"monitoring":{"enabled":"false"}}`)})
	require.NoError(t, err)
	return New(svc)
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func recordNames(t *testing.T, result *mcp.CallToolResult) []string {
	t.Helper()
	var records []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &records))
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Name)
	}
	sort.Strings(names)
	return names
}

func TestHandleList(t *testing.T) {
	tk := newTestToolkit(t)
	result, _, err := tk.handleList(context.Background(), nil, listInput{})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{testName, "second"}, recordNames(t, result))
}

func TestHandleGet(t *testing.T) {
	tk := newTestToolkit(t)

	result, _, err := tk.handleGet(context.Background(), nil, nameInput{Name: testName})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"name":"data-src","metadata":`+testMetadata+`}`, resultText(t, result))

	result, _, err = tk.handleGet(context.Background(), nil, nameInput{Name: "missing"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "not found")
}

func TestHandleSearch(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	result, _, err := tk.handleSearch(ctx, nil, searchInput{Path: "metadata.monitoring.enabled", Value: "true"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{testName}, recordNames(t, result))

	result, _, err = tk.handleSearch(ctx, nil, searchInput{Path: "monitoring.enabled", Value: "true"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "malformed query")
}

func TestHandleCreateUpdateDelete(t *testing.T) {
	tk := newTestToolkit(t)
	ctx := context.Background()

	result, _, err := tk.handleCreate(ctx, nil, writeInput{
		Name:     "third",
		Metadata: map[string]any{"monitoring": map[string]any{"enabled": true}},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)

	result, _, err = tk.handleCreate(ctx, nil, writeInput{Name: "third"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "already used")

	result, _, err = tk.handleUpdate(ctx, nil, writeInput{Name: "third", Metadata: map[string]any{"a": 1}})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.JSONEq(t, `{"name":"third","metadata":{"a":1}}`, resultText(t, result))

	result, _, err = tk.handleUpdate(ctx, nil, writeInput{Name: "missing", Metadata: map[string]any{}})
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, _, err = tk.handleDelete(ctx, nil, nameInput{Name: "third"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"third","deleted":true}`, resultText(t, result))

	result, _, err = tk.handleDelete(ctx, nil, nameInput{Name: "third"})
	require.NoError(t, err)
	assert.False(t, result.IsError)
}

func TestHandleCreate_UnencodableMetadata(t *testing.T) {
	tk := newTestToolkit(t)
	result, _, err := tk.handleCreate(context.Background(), nil, writeInput{Name: "bad", Metadata: make(chan int)})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestStoreUnavailable(t *testing.T) {
	tk := New(configs.NewService(unavailableStore{configstore.NewMemoryStore()}))

	result, _, err := tk.handleList(context.Background(), nil, listInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, `{"error":"config store unavailable"}`, resultText(t, result))
}

func TestErrorResult_ValidJSON(t *testing.T) {
	for _, msg := range []string{
		"plain",
		`quote " and backslash \`,
		"bell \a vtab \v del \x7f",
		"invalid utf8 \xff then \xfe",
		"separator \u2028 <tag> & amp",
	} {
		text := resultText(t, errorResult(msg))
		require.True(t, json.Valid([]byte(text)), "error text %q must be valid JSON", text)

		var body errorBody
		require.NoError(t, json.Unmarshal([]byte(text), &body))
		assert.Equal(t, strings.ToValidUTF8(msg, "\uFFFD"), body.Error)
	}
}

func TestTools(t *testing.T) {
	assert.Len(t, (&Toolkit{}).Tools(), 6)
}

// connectTestClient connects an in-memory MCP client to a server and returns the session.
func connectTestClient(t *testing.T, server *mcp.Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	t1, t2 := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, t1, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0"}, nil)
	clientSession, err := client.Connect(ctx, t2, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = clientSession.Close()
		_ = serverSession.Close()
	})
	return clientSession
}

func TestRegisterTools_OverSession(t *testing.T) {
	tk := newTestToolkit(t)
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v1"}, nil)
	tk.RegisterTools(server)
	tk.RegisterResources(server)

	session := connectTestClient(t, server)
	ctx := context.Background()

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	names := make([]string, 0, len(tools.Tools))
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, tk.Tools(), names)

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolSearch,
		Arguments: map[string]any{"path": "metadata.monitoring.enabled", "value": "false"},
	})
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{"second"}, recordNames(t, result))

	res, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: "config://" + testName})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.JSONEq(t, `{"name":"data-src","metadata":`+testMetadata+`}`, res.Contents[0].Text)
}

func TestWriteTools_PreserveNumbers(t *testing.T) {
	tk := newTestToolkit(t)
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "v1"}, nil)
	tk.RegisterTools(server)

	session := connectTestClient(t, server)
	ctx := context.Background()

	const metadata = `{"limits":{"id":12345678901234567891,"ratio":1.0,"scale":1e2}}`
	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolCreate,
		Arguments: json.RawMessage(`{"name":"big","metadata":` + metadata + `}`),
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolGet,
		Arguments: map[string]any{"name": "big"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"big","metadata":`+metadata+`}`, resultText(t, result))

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolSearch,
		Arguments: map[string]any{"path": "metadata.limits.ratio", "value": "1.0"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"big"}, recordNames(t, result))

	result, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolUpdate,
		Arguments: json.RawMessage(`{"name":"big","metadata":{"id":98765432109876543210}}`),
	})
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, `{"name":"big","metadata":{"id":98765432109876543210}}`, resultText(t, result))
}

func TestToInput(t *testing.T) {
	t.Run("raw arguments win over decoded input", func(t *testing.T) {
		req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{
			Arguments: json.RawMessage(`{"name":"n","metadata":{"v":10000000000000000001}}`),
		}}
		in, err := toInput(req, writeInput{Name: "n", Metadata: map[string]any{"v": float64(1e19)}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"v":10000000000000000001}`, string(in.Metadata))
		assert.Contains(t, string(in.Metadata), "10000000000000000001")
	})

	t.Run("missing metadata stays empty", func(t *testing.T) {
		req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Arguments: json.RawMessage(`{"name":"n"}`)}}
		in, err := toInput(req, writeInput{Name: "n"})
		require.NoError(t, err)
		assert.Empty(t, in.Metadata)
	})

	t.Run("no request falls back to decoded input", func(t *testing.T) {
		in, err := toInput(nil, writeInput{Name: "n", Metadata: map[string]any{"a": 1}})
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(in.Metadata))
	})
}
