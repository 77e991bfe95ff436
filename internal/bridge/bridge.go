// Package bridge adapts a stdio-JSON-RPC-speaking child process to an HTTP
// /invoke facade. It supervises the child's lifecycle, performs the MCP
// initialize handshake, and multiplexes concurrent callers onto the single
// ordered stdin/stdout pipe pair using JSON-RPC correlation IDs.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"

	"github.com/relaygrid/mcpgate/internal/errors"
)

const (
	// DefaultInvokeTimeout bounds every multiplexed request that doesn't carry
	// its own deadline. A wedged child must not starve the HTTP request pool.
	DefaultInvokeTimeout = 300 * time.Second

	// terminateGrace is how long Stop waits after SIGTERM before force-killing.
	terminateGrace = 5 * time.Second

	// initializeTimeout bounds the startup handshake.
	initializeTimeout = 30 * time.Second
)

// Config describes the child process and the bridge identity presented in the
// manifest and the initialize handshake.
type Config struct {
	Name        string
	Version     string
	Description string

	Command string
	Args    []string

	// Env entries are layered over the inherited environment when spawning.
	Env map[string]string

	// Framing selects the outbound wire format (inbound is auto-detected).
	Framing Framing

	// InvokeTimeout bounds each multiplexed call. Zero means DefaultInvokeTimeout.
	InvokeTimeout time.Duration

	// ValidateArguments enables JSON-schema validation of /invoke arguments
	// against the child's advertised tool input schemas.
	ValidateArguments bool
}

// Manifest is the bridge's /.well-known/mcp.json document.
type Manifest struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Description  string `json:"description"`
	Capabilities any    `json:"capabilities"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%s (code %d): %s", e.Message, e.Code, e.Data)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`

	// raw is the full inbound frame, kept for lenient result extraction when a
	// nonstandard server omits the result key.
	raw json.RawMessage
}

// Bridge is a ProcessSupervisor plus RequestMultiplexer over one child process.
// It is safe for concurrent use; writes to the child's stdin are serialized so
// no two envelopes ever interleave mid-frame, while responses are matched to
// callers solely by correlation ID and may arrive in any order.
type Bridge struct {
	cfg    Config
	logger hclog.Logger

	mu      sync.Mutex
	state   State
	idSeq   int64
	pending map[int64]chan *rpcMessage
	writer  *bufio.Writer
	stdin   io.Closer

	// wmu serializes framed writes to the child's stdin separately from mu, so
	// a child that stops draining stdin blocks writers only. Response dispatch
	// and timeout cleanup stay live behind mu.
	wmu sync.Mutex

	cmd    *exec.Cmd
	exited chan struct{}

	readers sync.WaitGroup

	capabilities json.RawMessage
	serverInfo   mcp.Implementation

	callMethod    string
	schemas       map[string]*gojsonschema.Schema
	schemasLoaded bool
}

// New creates a Bridge in the NotStarted state.
func New(logger hclog.Logger, cfg Config) *Bridge {
	if cfg.Framing == "" {
		cfg.Framing = FramingNDJSON
	}
	if cfg.InvokeTimeout <= 0 {
		cfg.InvokeTimeout = DefaultInvokeTimeout
	}
	return &Bridge{
		cfg:     cfg,
		logger:  logger.Named("bridge"),
		state:   StateNotStarted,
		pending: make(map[int64]chan *rpcMessage),
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsRunning reports whether the handshake completed and the child is alive.
func (b *Bridge) IsRunning() bool {
	return b.State() == StateRunning
}

// Ready returns nil when the bridge can accept tool invocations.
func (b *Bridge) Ready() error {
	if state := b.State(); state != StateRunning {
		return fmt.Errorf("%w: state %s", errors.ErrBridgeNotRunning, state)
	}
	return nil
}

// Start spawns the child process, wires its pipes, and performs the
// initialize / notifications/initialized handshake. Tool invocation is only
// permitted once Start returns successfully.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	switch b.state {
	case StateStarting, StateRunning, StateStopping:
		b.mu.Unlock()
		return fmt.Errorf("bridge already started (state %s)", b.state)
	default:
	}
	b.state = StateStarting
	b.mu.Unlock()

	cmd := exec.Command(b.cfg.Command, b.cfg.Args...)
	cmd.Env = append(os.Environ(), flattenEnv(b.cfg.Env)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return b.abortStart(fmt.Errorf("opening stdin pipe: %w", err))
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return b.abortStart(fmt.Errorf("opening stdout pipe: %w", err))
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return b.abortStart(fmt.Errorf("opening stderr pipe: %w", err))
	}

	b.logger.Info("Starting bridge child process", "command", b.cfg.Command, "args", b.cfg.Args)
	if err := cmd.Start(); err != nil {
		return b.abortStart(fmt.Errorf("starting '%s': %w", b.cfg.Command, err))
	}

	exited := make(chan struct{})
	b.mu.Lock()
	b.cmd = cmd
	b.exited = exited
	b.mu.Unlock()

	go func() {
		err := cmd.Wait()
		close(exited)
		b.handleExit(err)
	}()

	b.begin(stdin, stdout, stderr)

	if err := b.handshake(ctx); err != nil {
		_ = b.Stop(context.Background())
		return fmt.Errorf("initialize handshake: %w", err)
	}

	b.mu.Lock()
	if b.state == StateStarting {
		b.state = StateRunning
	}
	b.mu.Unlock()

	b.logger.Info("Bridge running", "server", b.ServerInfo().Name, "server_version", b.ServerInfo().Version)
	return nil
}

// startWithIO wires the bridge to already-open pipes and performs the
// handshake. Tests use it to drive the multiplexer without an OS process.
func (b *Bridge) startWithIO(ctx context.Context, stdin io.WriteCloser, stdout, stderr io.Reader) error {
	b.mu.Lock()
	b.state = StateStarting
	b.mu.Unlock()

	b.begin(stdin, stdout, stderr)

	if err := b.handshake(ctx); err != nil {
		b.mu.Lock()
		b.failPendingLocked()
		b.state = StateStopped
		b.mu.Unlock()
		return err
	}

	b.mu.Lock()
	b.state = StateRunning
	b.mu.Unlock()
	return nil
}

func (b *Bridge) abortStart(err error) error {
	b.mu.Lock()
	b.state = StateStopped
	b.mu.Unlock()
	return err
}

func (b *Bridge) begin(stdin io.WriteCloser, stdout, stderr io.Reader) {
	b.mu.Lock()
	b.stdin = stdin
	b.writer = bufio.NewWriter(stdin)
	b.mu.Unlock()

	b.readers.Add(1)
	go b.readLoop(bufio.NewReader(stdout))

	if stderr != nil {
		b.readers.Add(1)
		go b.drainStderr(stderr)
	}
}

func (b *Bridge) handshake(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, initializeTimeout)
	defer cancel()

	params := mcp.InitializeParams{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		Capabilities:    mcp.ClientCapabilities{},
		ClientInfo: mcp.Implementation{
			Name:    b.cfg.Name,
			Version: b.cfg.Version,
		},
	}

	msg, err := b.request(hctx, "initialize", params)
	if err != nil {
		return err
	}
	if msg.Error != nil {
		return fmt.Errorf("server rejected initialize: %w", msg.Error)
	}

	var result mcp.InitializeResult
	if len(msg.Result) > 0 && json.Unmarshal(msg.Result, &result) == nil {
		b.mu.Lock()
		b.serverInfo = result.ServerInfo
		b.mu.Unlock()
	}

	// Keep the raw capabilities member for the manifest.
	var envelope struct {
		Capabilities json.RawMessage `json:"capabilities"`
	}
	if len(msg.Result) > 0 {
		_ = json.Unmarshal(msg.Result, &envelope)
	}
	b.mu.Lock()
	b.capabilities = envelope.Capabilities
	b.mu.Unlock()

	return b.notify("notifications/initialized", map[string]any{})
}

// request performs one multiplexed JSON-RPC call. ID assignment and pending
// slot registration happen under the bridge lock; the framed write is
// serialized by a dedicated write lock so no two envelopes interleave
// mid-frame and a stalled write cannot block response dispatch. The wait for
// the response happens outside both locks so other callers can proceed.
func (b *Bridge) request(ctx context.Context, method string, params any) (*rpcMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.InvokeTimeout)
		defer cancel()
	}

	b.mu.Lock()
	if (b.state != StateStarting && b.state != StateRunning) || b.writer == nil {
		state := b.state
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: state %s", errors.ErrBridgeNotRunning, state)
	}
	b.idSeq++
	id := b.idSeq
	ch := make(chan *rpcMessage, 1)
	b.pending[id] = ch
	writer := b.writer
	b.mu.Unlock()

	payload, err := json.Marshal(rpcMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: params})
	if err == nil {
		b.wmu.Lock()
		err = writeFrame(writer, b.cfg.Framing, payload)
		b.wmu.Unlock()
	}
	if err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: writing request: %w", errors.ErrBridgeNotRunning, err)
	}

	select {
	case msg := <-ch:
		if msg == nil {
			return nil, fmt.Errorf("%w: %s abandoned on shutdown", errors.ErrBridgeNotRunning, method)
		}
		return msg, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", errors.ErrRequestTimedOut, method)
		}
		return nil, ctx.Err()
	}
}

// notify sends a JSON-RPC notification (no id, no response expected).
func (b *Bridge) notify(method string, params any) error {
	b.mu.Lock()
	writer := b.writer
	b.mu.Unlock()
	if writer == nil {
		return fmt.Errorf("%w: cannot notify %s", errors.ErrBridgeNotRunning, method)
	}
	payload, err := json.Marshal(rpcMessage{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return err
	}
	b.wmu.Lock()
	defer b.wmu.Unlock()
	return writeFrame(writer, b.cfg.Framing, payload)
}

func (b *Bridge) readLoop(r *bufio.Reader) {
	defer b.readers.Done()
	for {
		frame, err := readFrame(r)
		if stderrors.Is(err, errSkipFrame) {
			continue
		}
		if err != nil {
			break
		}
		var msg rpcMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			b.logger.Warn("Failed to decode message from child", "data", string(frame))
			continue
		}
		msg.raw = append(json.RawMessage(nil), frame...)
		b.dispatch(&msg)
	}
	b.markStopped("stdout closed")
}

// dispatch resolves the pending slot matching an inbound message's id, or logs
// orphan responses and server-initiated notifications.
func (b *Bridge) dispatch(msg *rpcMessage) {
	if msg.ID == nil {
		b.logger.Debug("Server notification", "method", msg.Method)
		return
	}
	b.mu.Lock()
	ch, ok := b.pending[*msg.ID]
	if ok {
		delete(b.pending, *msg.ID)
	}
	b.mu.Unlock()
	if !ok {
		b.logger.Warn("Dropping response with no pending request", "id", *msg.ID)
		return
	}
	ch <- msg
}

func (b *Bridge) drainStderr(stderr io.Reader) {
	defer b.readers.Done()
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		b.logger.Info("child stderr", "line", scanner.Text())
	}
}

func (b *Bridge) handleExit(err error) {
	if err != nil {
		b.logger.Warn("Bridge child process exited", "error", err)
	}
	b.markStopped("process exited")
}

// markStopped records a dead transport and rejects every in-flight request so
// HTTP callers fail fast instead of hanging on abandoned futures.
func (b *Bridge) markStopped(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateStopping && b.state != StateStopped {
		b.logger.Warn("Bridge transport closed", "reason", reason)
		b.state = StateStopped
	}
	b.failPendingLocked()
}

func (b *Bridge) failPendingLocked() {
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

// Stop terminates the child: SIGTERM first, force-kill after the grace period.
// All pending requests are rejected, never abandoned.
func (b *Bridge) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.state == StateNotStarted || b.state == StateStopped {
		b.failPendingLocked()
		b.mu.Unlock()
		return nil
	}
	b.state = StateStopping
	cmd := b.cmd
	stdin := b.stdin
	exited := b.exited
	b.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	if cmd != nil && cmd.Process != nil {
		b.logger.Info("Stopping bridge child process")
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-exited:
		case <-time.After(terminateGrace):
			b.logger.Warn("Bridge process did not terminate in time, killing")
			_ = cmd.Process.Kill()
			<-exited
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-exited
		}
	}

	b.readers.Wait()

	b.mu.Lock()
	b.failPendingLocked()
	b.state = StateStopped
	b.writer = nil
	b.stdin = nil
	b.cmd = nil
	b.mu.Unlock()
	return nil
}

// ServerInfo returns the child's identity from the initialize result.
func (b *Bridge) ServerInfo() mcp.Implementation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.serverInfo
}

// Manifest returns the bridge's well-known MCP document. Capabilities mirror
// the capabilities member of the child's initialize result.
func (b *Bridge) Manifest() Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()

	var caps any = map[string]any{}
	if len(b.capabilities) > 0 {
		var decoded any
		if json.Unmarshal(b.capabilities, &decoded) == nil && decoded != nil {
			caps = decoded
		}
	}
	return Manifest{
		Name:         b.cfg.Name,
		Version:      b.cfg.Version,
		Description:  b.cfg.Description,
		Capabilities: caps,
	}
}

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
