package bridge

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/glyphs-mcp/bridge/client"
	"github.com/glyphs-mcp/bridge/internal/collection"
	bridgeschema "github.com/glyphs-mcp/bridge/schema"
	"github.com/glyphs-mcp/bridge/server"
	"github.com/go-logr/logr"
	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
)

// Info identifies the bridge to both the remote server and the local client.
var Info = schema.Implementation{Name: "mcp-sse-bridge", Version: "1.0.0"}

// Service owns the remote session, the capability mirrors and the local server.
type Service struct {
	options   *Options
	client    *client.Client
	server    atomic.Pointer[server.Server]
	mirrors   map[string]*collection.Mirror[json.RawMessage]
	logger    logr.Logger

	refreshMux sync.Mutex
	stopped    bool
	refreshes  sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// Start opens the push channel, initializes the remote session and discovers
// capabilities. Any failure before discovery is fatal.
func (s *Service) Start(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return errors.Wrap(err, "failed to connect to remote server")
	}
	initResult, err := s.initialize(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to initialize remote session")
	}
	if err = s.client.Notify(ctx, &jsonrpc.Notification{Method: bridgeschema.MethodNotificationInitialized}); err != nil {
		s.logger.Error(err, "failed to confirm initialization")
	}
	s.discover(ctx)
	if err = s.client.MarkInitialized(); err != nil {
		return err
	}
	srv, err := server.New(
		server.WithCatalog(s),
		server.WithForwarder(s.client),
		server.WithImplementation(Info),
		server.WithRemoteInitialize(initResult),
		server.WithLogger(s.logger.WithName("server")),
	)
	if err != nil {
		return err
	}
	s.server.Store(srv)
	s.logger.Info("bridge ready", "tools", s.mirrors[bridgeschema.MethodToolsList].Len(),
		"resources", s.mirrors[bridgeschema.MethodResourcesList].Len(),
		"prompts", s.mirrors[bridgeschema.MethodPromptsList].Len())
	return nil
}

func (s *Service) initialize(ctx context.Context) (json.RawMessage, error) {
	params, err := json.Marshal(&schema.InitializeRequestParams{
		ProtocolVersion: s.options.ProtocolVersion,
		ClientInfo:      Info,
		Capabilities:    schema.ClientCapabilities{},
	})
	if err != nil {
		return nil, err
	}
	result, err := s.client.Call(ctx, bridgeschema.MethodInitialize, params)
	if err != nil {
		return nil, err
	}
	var header struct {
		ProtocolVersion string                `json:"protocolVersion"`
		ServerInfo      schema.Implementation `json:"serverInfo"`
	}
	if err = json.Unmarshal(result, &header); err != nil {
		return nil, errors.Wrap(err, "invalid initialize result")
	}
	s.logger.Info("remote session initialized", "server", header.ServerInfo.Name,
		"version", header.ServerInfo.Version, "protocolVersion", header.ProtocolVersion, "session", s.client.SessionID())
	return result, nil
}

// List implements server.Catalog
func (s *Service) List(method string) (json.RawMessage, bool, error) {
	for _, listing := range bridgeschema.Listings {
		if listing.Method == method {
			result, err := listing.EncodeList(s.mirrors[method].Values())
			return result, true, err
		}
	}
	return nil, false, nil
}

// Items returns the mirrored items for a listing method.
func (s *Service) Items(method string) []json.RawMessage {
	if mirror, ok := s.mirrors[method]; ok {
		return mirror.Values()
	}
	return nil
}

// Stdio returns the local server reading requests from in and writing to out;
// Start must have succeeded.
func (s *Service) Stdio(ctx context.Context, in io.Reader, out io.Writer) (*server.Stdio, error) {
	srv := s.server.Load()
	if srv == nil {
		return nil, errors.New("bridge is not started")
	}
	return srv.Stdio(ctx, in, out), nil
}

// Close shuts the remote session down, rejecting pending requests.
func (s *Service) Close() error {
	s.cancel()
	s.refreshMux.Lock()
	s.stopped = true
	s.refreshMux.Unlock()
	err := s.client.Close()
	s.refreshes.Wait()
	return err
}

// New constructs a bridge Service
func New(ctx context.Context, options *Options, logger logr.Logger) (*Service, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	headers, err := options.HeaderMap()
	if err != nil {
		return nil, err
	}
	ret := &Service{
		options: options,
		logger:  logger,
		mirrors: map[string]*collection.Mirror[json.RawMessage]{},
	}
	for _, listing := range bridgeschema.Listings {
		ret.mirrors[listing.Method] = collection.NewMirror[json.RawMessage]()
	}
	ret.ctx, ret.cancel = context.WithCancel(context.WithoutCancel(ctx))
	ret.client = client.New(ctx, options.URL,
		client.WithTimeout(options.Timeout),
		client.WithReconnectDelay(options.ReconnectDelay),
		client.WithHeaders(headers),
		client.WithBearerToken(options.BearerToken),
		client.WithLogger(logger.WithName("client")),
		client.WithHandler(&remoteHandler{service: ret}),
	)
	return ret, nil
}
