package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glyphs-mcp/bridge/internal/testutil"
	bridgeschema "github.com/glyphs-mcp/bridge/schema"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/jsonrpc"
	"github.com/viant/jsonrpc/transport"
)

const initializeResult = `{"protocolVersion":"2024-11-05","capabilities":{"tools":{"listChanged":true},"resources":{"subscribe":true,"listChanged":true},"prompts":{"listChanged":true}},"serverInfo":{"name":"glyphs-app","version":"4.0"}}`

// fakeGlyphs is a remote whose tool listing can change between calls.
type fakeGlyphs struct {
	*testutil.Remote
	mux   sync.Mutex
	tools string
	gate  chan struct{}
	fail  bool
}

func (f *fakeGlyphs) setTools(tools string, fail bool) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.tools = tools
	f.fail = fail
}

func newFakeGlyphs(t *testing.T) *fakeGlyphs {
	t.Helper()
	ret := &fakeGlyphs{Remote: testutil.NewRemote(), tools: `[{"name":"get_glyph"},{"name":"set_glyph"}]`}
	t.Cleanup(ret.Close)
	ret.HandleResult(bridgeschema.MethodInitialize, initializeResult)
	ret.Handle(bridgeschema.MethodToolsList, func(_ *testutil.Remote, message *bridgeschema.Envelope) *testutil.Reply {
		ret.mux.Lock()
		tools, fail, gate := ret.tools, ret.fail, ret.gate
		ret.mux.Unlock()
		if gate != nil {
			<-gate
		}
		if fail {
			return testutil.JSONReply(testutil.ErrorResponse(message.Id, bridgeschema.InternalError, "font not open"))
		}
		return testutil.JSONReply(testutil.Response(message.Id, `{"tools":`+tools+`}`))
	})
	ret.Handle(bridgeschema.MethodResourcesList, func(remote *testutil.Remote, message *bridgeschema.Envelope) *testutil.Reply {
		go remote.Push(testutil.Response(message.Id, `{"resources":[{"uri":"glyph://A","name":"A"}]}`))
		return nil
	})
	ret.Handle(bridgeschema.MethodPromptsList, func(_ *testutil.Remote, message *bridgeschema.Envelope) *testutil.Reply {
		var params struct {
			Cursor string `json:"cursor"`
		}
		_ = json.Unmarshal(message.Params, &params)
		if params.Cursor == "" {
			return testutil.EventReply(testutil.Response(message.Id, `{"prompts":[{"name":"draw"}],"nextCursor":"p2"}`))
		}
		return testutil.JSONReply(testutil.Response(message.Id, `{"prompts":[{"name":"kern"}]}`))
	})
	ret.Handle(bridgeschema.MethodNotificationInitialized, func(_ *testutil.Remote, _ *bridgeschema.Envelope) *testutil.Reply {
		return nil
	})
	return ret
}

type localClient struct {
	mux           sync.Mutex
	notifications []*jsonrpc.Notification
}

func (l *localClient) Send(ctx context.Context, request *jsonrpc.Request) (*jsonrpc.Response, error) {
	return &jsonrpc.Response{}, nil
}

func (l *localClient) Notify(ctx context.Context, notification *jsonrpc.Notification) error {
	l.mux.Lock()
	defer l.mux.Unlock()
	l.notifications = append(l.notifications, notification)
	return nil
}

func (l *localClient) methods() []string {
	l.mux.Lock()
	defer l.mux.Unlock()
	var ret []string
	for _, notification := range l.notifications {
		ret = append(ret, notification.Method)
	}
	return ret
}

var _ transport.Transport = (*localClient)(nil)

func testOptions(url string) *Options {
	return &Options{
		URL:             url,
		Timeout:         2 * time.Second,
		ReconnectDelay:  20 * time.Millisecond,
		ProtocolVersion: "2024-11-05",
		LogLevel:        "info",
	}
}

func startService(t *testing.T, remote *fakeGlyphs) (*Service, transport.Handler, *localClient) {
	t.Helper()
	service, err := New(context.Background(), testOptions(remote.URL()), logr.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })
	require.NoError(t, service.Start(context.Background()))
	local := &localClient{}
	handler := service.server.Load().NewHandler(context.Background(), local)
	return service, handler, local
}

func names(items []json.RawMessage, key string) []string {
	var ret []string
	for _, item := range items {
		var fields map[string]interface{}
		_ = json.Unmarshal(item, &fields)
		ret = append(ret, fields[key].(string))
	}
	return ret
}

func TestService_Start(t *testing.T) {
	remote := newFakeGlyphs(t)
	service, handler, _ := startService(t, remote)

	assert.Equal(t, []string{"get_glyph", "set_glyph"}, names(service.Items(bridgeschema.MethodToolsList), "name"))
	assert.Equal(t, []string{"glyph://A"}, names(service.Items(bridgeschema.MethodResourcesList), "uri"))
	assert.Equal(t, []string{"draw", "kern"}, names(service.Items(bridgeschema.MethodPromptsList), "name"))

	initialize := remote.RequestsFor(bridgeschema.MethodInitialize)
	require.Len(t, initialize, 1)
	var params struct {
		ProtocolVersion string            `json:"protocolVersion"`
		ClientInfo      map[string]string `json:"clientInfo"`
	}
	require.NoError(t, json.Unmarshal(initialize[0].Message.Params, &params))
	assert.Equal(t, "2024-11-05", params.ProtocolVersion)
	assert.Equal(t, map[string]string{"name": "mcp-sse-bridge", "version": "1.0.0"}, params.ClientInfo)
	initialized := remote.RequestsFor(bridgeschema.MethodNotificationInitialized)
	require.Len(t, initialized, 1)
	assert.Equal(t, remote.SessionID, initialized[0].Header.Get(bridgeschema.SessionHeader))

	listed := remote.RequestsFor(bridgeschema.MethodToolsList)
	require.Len(t, listed, 1)
	response := &jsonrpc.Response{}
	handler.Serve(context.Background(), &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: 1, Method: bridgeschema.MethodToolsList}, response)
	require.Nil(t, response.Error)
	assert.JSONEq(t, `{"tools":[{"name":"get_glyph"},{"name":"set_glyph"}]}`, string(response.Result))
	assert.Len(t, remote.RequestsFor(bridgeschema.MethodToolsList), 1)

	response = &jsonrpc.Response{}
	handler.Serve(context.Background(), &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: 2, Method: bridgeschema.MethodInitialize, Params: json.RawMessage(`{"protocolVersion":"2025-03-26","clientInfo":{"name":"desktop","version":"1"}}`)}, response)
	require.Nil(t, response.Error)
	assert.JSONEq(t, `{"protocolVersion":"2025-03-26","capabilities":{"tools":{"listChanged":true},"resources":{"subscribe":true,"listChanged":true},"prompts":{"listChanged":true}},"serverInfo":{"name":"mcp-sse-bridge","version":"1.0.0"}}`, string(response.Result))
}

func TestService_Forward(t *testing.T) {
	remote := newFakeGlyphs(t)
	remote.HandleResult(bridgeschema.MethodToolsCall, `{"content":[{"type":"text","text":"A: 500 units"}]}`)
	_, handler, _ := startService(t, remote)

	response := &jsonrpc.Response{}
	handler.Serve(context.Background(), &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: 5, Method: bridgeschema.MethodToolsCall, Params: json.RawMessage(`{"name":"get_glyph","arguments":{"name":"A"}}`)}, response)
	require.Nil(t, response.Error)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"A: 500 units"}]}`, string(response.Result))
	call := remote.RequestsFor(bridgeschema.MethodToolsCall)
	require.Len(t, call, 1)
	assert.JSONEq(t, `{"name":"get_glyph","arguments":{"name":"A"}}`, string(call[0].Message.Params))

	response = &jsonrpc.Response{}
	handler.Serve(context.Background(), &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: 6, Method: bridgeschema.MethodPromptsGet, Params: json.RawMessage(`{"name":"draw"}`)}, response)
	require.NotNil(t, response.Error)
	assert.Equal(t, bridgeschema.MethodNotFound, response.Error.Code)
}

func TestService_ListChanged(t *testing.T) {
	remote := newFakeGlyphs(t)
	service, _, local := startService(t, remote)

	gate := make(chan struct{})
	remote.mux.Lock()
	remote.gate = gate
	remote.mux.Unlock()
	remote.setTools(`[{"name":"get_glyph"},{"name":"set_glyph"},{"name":"kern_pair"}]`, false)
	remote.Push(testutil.Notification(bridgeschema.MethodNotificationToolsListChanged, ""))

	require.Eventually(t, func() bool {
		return len(local.methods()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{bridgeschema.MethodNotificationToolsListChanged}, local.methods())
	assert.Equal(t, []string{"get_glyph", "set_glyph"}, names(service.Items(bridgeschema.MethodToolsList), "name"))

	close(gate)
	require.Eventually(t, func() bool {
		return len(service.Items(bridgeschema.MethodToolsList)) == 3
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"get_glyph", "set_glyph", "kern_pair"}, names(service.Items(bridgeschema.MethodToolsList), "name"))
	assert.Len(t, remote.RequestsFor(bridgeschema.MethodResourcesList), 1)
}

func TestService_RefreshFailureKeepsMirror(t *testing.T) {
	remote := newFakeGlyphs(t)
	service, _, local := startService(t, remote)

	remote.setTools(`[]`, true)
	remote.Push(testutil.Notification(bridgeschema.MethodNotificationToolsListChanged, ""))
	require.Eventually(t, func() bool {
		return len(remote.RequestsFor(bridgeschema.MethodToolsList)) == 2
	}, 2*time.Second, 5*time.Millisecond)
	service.refreshes.Wait()

	assert.Equal(t, []string{"get_glyph", "set_glyph"}, names(service.Items(bridgeschema.MethodToolsList), "name"))
	assert.Equal(t, []string{bridgeschema.MethodNotificationToolsListChanged}, local.methods())
}

func TestService_ForwardedNotifications(t *testing.T) {
	remote := newFakeGlyphs(t)
	_, _, local := startService(t, remote)

	remote.Push(testutil.Notification(bridgeschema.MethodNotificationResourceUpdated, `{"uri":"glyph://A"}`))
	remote.Push(testutil.Notification("notifications/unknown", `{}`))
	remote.Push(testutil.Notification(bridgeschema.MethodNotificationMessage, `{"level":"info","data":"saved"}`))
	require.Eventually(t, func() bool {
		return len(local.methods()) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{bridgeschema.MethodNotificationResourceUpdated, bridgeschema.MethodNotificationMessage}, local.methods())
	assert.JSONEq(t, `{"uri":"glyph://A"}`, string(local.notifications[0].Params))
	for _, notification := range local.notifications {
		assert.Equal(t, jsonrpc.Version, notification.Jsonrpc)
	}
	assert.Len(t, remote.RequestsFor(bridgeschema.MethodResourcesList), 1)
}

func TestService_RemotePing(t *testing.T) {
	remote := newFakeGlyphs(t)
	startService(t, remote)
	remote.Push([]byte(`{"jsonrpc":"2.0","id":11,"method":"ping"}`))
	require.Eventually(t, func() bool {
		return len(remote.RequestsFor("")) == 1
	}, 2*time.Second, 5*time.Millisecond)
	reply := remote.RequestsFor("")[0].Message
	assert.Equal(t, "11", string(reply.Id))
	assert.JSONEq(t, `{}`, string(reply.Result))
}

func TestService_Start_Failure(t *testing.T) {
	var testCases = []struct {
		description string
		setup       func(remote *fakeGlyphs)
	}{
		{
			description: "push channel rejected",
			setup: func(remote *fakeGlyphs) {
				remote.RejectStreams(http.StatusServiceUnavailable)
			},
		},
		{
			description: "initialize error",
			setup: func(remote *fakeGlyphs) {
				remote.Handle(bridgeschema.MethodInitialize, func(_ *testutil.Remote, message *bridgeschema.Envelope) *testutil.Reply {
					return testutil.JSONReply(testutil.ErrorResponse(message.Id, bridgeschema.InvalidRequest, "unsupported protocol"))
				})
			},
		},
		{
			description: "initialize http failure",
			setup: func(remote *fakeGlyphs) {
				remote.FailPosts(http.StatusBadGateway)
			},
		},
	}
	for _, testCase := range testCases {
		remote := newFakeGlyphs(t)
		testCase.setup(remote)
		service, err := New(context.Background(), testOptions(remote.URL()), logr.Discard())
		require.NoError(t, err, testCase.description)
		assert.Error(t, service.Start(context.Background()), testCase.description)
		_, err = service.Stdio(context.Background(), strings.NewReader(""), io.Discard)
		assert.Error(t, err, testCase.description)
		assert.NoError(t, service.Close(), testCase.description)
	}
}

func TestService_ListingFailureIsNotFatal(t *testing.T) {
	remote := newFakeGlyphs(t)
	remote.setTools(`[]`, true)
	service, handler, _ := startService(t, remote)
	assert.Empty(t, service.Items(bridgeschema.MethodToolsList))
	assert.Len(t, service.Items(bridgeschema.MethodPromptsList), 2)

	response := &jsonrpc.Response{}
	handler.Serve(context.Background(), &jsonrpc.Request{Jsonrpc: jsonrpc.Version, Id: 1, Method: bridgeschema.MethodToolsList}, response)
	require.Nil(t, response.Error)
	assert.JSONEq(t, `{"tools":[]}`, string(response.Result))
}

func TestService_RefreshWithoutItemsKeepsMirror(t *testing.T) {
	var testCases = []struct {
		description string
		result      string
	}{
		{description: "empty result", result: `{}`},
		{description: "null tools", result: `{"tools":null}`},
	}
	for _, testCase := range testCases {
		remote := newFakeGlyphs(t)
		service, _, local := startService(t, remote)
		result := testCase.result
		remote.Handle(bridgeschema.MethodToolsList, func(_ *testutil.Remote, message *bridgeschema.Envelope) *testutil.Reply {
			return testutil.JSONReply(testutil.Response(message.Id, result))
		})
		remote.Push(testutil.Notification(bridgeschema.MethodNotificationToolsListChanged, ""))
		require.Eventually(t, func() bool {
			return len(remote.RequestsFor(bridgeschema.MethodToolsList)) == 2
		}, 2*time.Second, 5*time.Millisecond, testCase.description)
		require.Eventually(t, func() bool {
			return len(local.methods()) == 1
		}, 2*time.Second, 5*time.Millisecond, testCase.description)
		service.refreshes.Wait()
		assert.Equal(t, []string{"get_glyph", "set_glyph"}, names(service.Items(bridgeschema.MethodToolsList), "name"), testCase.description)
	}
}

// syncBuffer is a goroutine safe output sink.
type syncBuffer struct {
	mux    sync.Mutex
	buffer bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.buffer.Write(p)
}

func (b *syncBuffer) String() string {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.buffer.String()
}

func TestService_StdioNotificationWire(t *testing.T) {
	remote := newFakeGlyphs(t)
	service, _, _ := startService(t, remote)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader, writer := io.Pipe()
	defer writer.Close()
	output := &syncBuffer{}
	stdio, err := service.Stdio(ctx, reader, output)
	require.NoError(t, err)
	go func() {
		_ = stdio.ListenAndServe()
	}()

	remote.Push(testutil.Notification(bridgeschema.MethodNotificationResourceUpdated, `{"uri":"glyph://A"}`))
	require.Eventually(t, func() bool {
		return strings.HasSuffix(output.String(), "\n")
	}, 2*time.Second, 5*time.Millisecond)
	assert.JSONEq(t, `{"jsonrpc":"2.0","method":"notifications/resources/updated","params":{"uri":"glyph://A"}}`, strings.TrimSpace(output.String()))

	_, err = writer.Write([]byte(`{"jsonrpc":"2.0","id":4,"method":"tools/list"}` + "\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Count(output.String(), "\n") == 2
	}, 2*time.Second, 5*time.Millisecond)
	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":4,"result":{"tools":[{"name":"get_glyph"},{"name":"set_glyph"}]}}`, lines[1])
}

func TestService_CloseStopsRefreshes(t *testing.T) {
	remote := newFakeGlyphs(t)
	service, _, _ := startService(t, remote)
	tools, ok := bridgeschema.ListingFor(bridgeschema.MethodNotificationToolsListChanged)
	require.True(t, ok)

	var waitGroup sync.WaitGroup
	for i := 0; i < 8; i++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			service.refreshAsync(tools)
		}()
	}
	require.NoError(t, service.Close())
	waitGroup.Wait()

	listed := len(remote.RequestsFor(bridgeschema.MethodToolsList))
	service.refreshAsync(tools)
	service.refreshes.Wait()
	assert.Len(t, remote.RequestsFor(bridgeschema.MethodToolsList), listed)
}
