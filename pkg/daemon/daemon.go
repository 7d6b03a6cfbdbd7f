package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/modoterra/rawlog/pkg/admin"
	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/lifecycle"
	"github.com/modoterra/rawlog/pkg/logfile"
	"github.com/modoterra/rawlog/pkg/logger"
	"github.com/modoterra/rawlog/pkg/session"
	"github.com/modoterra/rawlog/pkg/transport/uds"
)

// Notices returned by ClearLog, shared with the HTTP page.
const (
	NoticeCleared     = admin.NoticeCleared
	NoticeClearFailed = admin.NoticeClearFailed
)

// socketSession is the session every socket client shares. Access to the
// socket is already limited by its file permissions.
const socketSession = "uds"

// Daemon is the rawlogd process: it serves the log file to viewers and
// accepts log calls over the socket.
type Daemon struct {
	server   *uds.Server
	log      *logger.Logger
	sessions *session.Store
	logger   *slog.Logger
}

// New creates a new daemon instance.
func New(socketPath string, lg *logger.Logger, logger *slog.Logger) *Daemon {
	srv := uds.NewServer(socketPath, logger)
	d := &Daemon{
		server:   srv,
		log:      lg,
		sessions: session.NewStore(session.DefaultTTL),
		logger:   logger,
	}
	d.registerHandlers()
	return d
}

// Sessions returns the token store, shared with the HTTP admin page.
func (d *Daemon) Sessions() *session.Store { return d.sessions }

// Logger returns the log file writer the daemon serves.
func (d *Daemon) Logger() *logger.Logger { return d.log }

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	return d.server.Start(ctx)
}

// Shutdown cleans up resources.
func (d *Daemon) Shutdown() {
	d.server.Shutdown()
}

// Server returns the underlying UDS server (for broadcasting events).
func (d *Daemon) Server() *uds.Server {
	return d.server
}

func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.MethodPing, d.handlePing)
	d.server.Handle(uds.MethodLog, d.handleLog)
	d.server.Handle(uds.MethodReadLog, d.handleReadLog)
	d.server.Handle(uds.MethodStatLog, d.handleStatLog)
	d.server.Handle(uds.MethodOpenSession, d.handleOpenSession)
	d.server.Handle(uds.MethodClearLog, d.handleClearLog)
	d.server.Handle(uds.MethodLifecycle, d.handleLifecycle)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true}, nil
}

func (d *Daemon) handleLog(_ context.Context, msg uds.Message) (any, error) {
	var req uds.LogRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	payload, err := PayloadFromRequest(req)
	if err != nil {
		return nil, err
	}
	d.log.LogEntry(core.Level(req.Level), payload)
	return map[string]bool{"ok": true}, nil
}

// PayloadFromRequest rebuilds the payload variant carried by a Log request.
func PayloadFromRequest(req uds.LogRequest) (core.Payload, error) {
	if req.Text != nil {
		return core.Text(*req.Text), nil
	}
	if len(req.Value) == 0 {
		return core.Payload{}, fmt.Errorf("log request needs text or value")
	}

	dec := json.NewDecoder(bytes.NewReader(req.Value))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return core.Payload{}, fmt.Errorf("decode value: %w", err)
	}

	if !req.Scalar {
		return core.Structured(v), nil
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return core.Scalar(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return core.Payload{}, fmt.Errorf("decode number: %w", err)
		}
		return core.Scalar(f), nil
	}
	return core.Scalar(v), nil
}

func (d *Daemon) handleReadLog(_ context.Context, msg uds.Message) (any, error) {
	var req uds.ReadLogRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
	}
	if req.Limit <= 0 || req.Limit > uds.ReadChunkSize {
		req.Limit = uds.ReadChunkSize
	}

	data, size, err := logfile.ReadAt(d.log.Path(), req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}
	return uds.ReadLogResponse{
		Path:   d.log.Path(),
		Offset: req.Offset,
		Data:   data,
		Size:   size,
	}, nil
}

func (d *Daemon) handleStatLog(_ context.Context, _ uds.Message) (any, error) {
	return logfile.Stat(d.log.Path())
}

func (d *Daemon) handleOpenSession(_ context.Context, _ uds.Message) (any, error) {
	token, expires := d.sessions.Issue(socketSession)
	return uds.SessionResponse{Token: token, ExpiresMs: expires.UnixMilli()}, nil
}

func (d *Daemon) handleClearLog(ctx context.Context, msg uds.Message) (any, error) {
	var req uds.ClearLogRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if err := d.sessions.Check(socketSession, req.Token); err != nil {
		d.logger.Warn("clear rejected", "err", err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := d.log.Lifecycle().Clear(ctx); err != nil {
		return uds.ClearLogResponse{OK: false, Notice: NoticeClearFailed}, nil
	}
	return uds.ClearLogResponse{OK: true, Notice: NoticeCleared}, nil
}

func (d *Daemon) handleLifecycle(_ context.Context, msg uds.Message) (any, error) {
	var req uds.LifecycleRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	m := d.log.Lifecycle()
	if err := m.Handle(lifecycle.Event(req.Event)); err != nil {
		return nil, err
	}
	state, err := m.State()
	if err != nil {
		return nil, err
	}
	d.logger.Info("lifecycle event handled", "event", req.Event, "state", state)
	return uds.LifecycleResponse{State: string(state)}, nil
}
