package daemon

import (
	"context"
	"log/slog"

	"github.com/modoterra/rawlog/pkg/follow"
	"github.com/modoterra/rawlog/pkg/transport/uds"
)

// FollowLoop broadcasts changes to the log file to every connected client.
type FollowLoop struct {
	daemon   *Daemon
	follower *follow.Follower
	logger   *slog.Logger
}

// NewFollowLoop creates a follow loop for the daemon's log file.
func NewFollowLoop(d *Daemon, logger *slog.Logger) *FollowLoop {
	return &FollowLoop{
		daemon:   d,
		follower: follow.New(d.log.Path(), logger),
		logger:   logger,
	}
}

// Ready is closed once the loop is watching the file.
func (fl *FollowLoop) Ready() <-chan struct{} { return fl.follower.Ready() }

// Run starts the follow loop. Blocks until ctx is cancelled.
func (fl *FollowLoop) Run(ctx context.Context) {
	errCh := make(chan error, 1)
	go func() { errCh <- fl.follower.Run(ctx) }()

	for ev := range fl.follower.Events() {
		fl.broadcast(ev)
	}
	if err := <-errCh; err != nil {
		fl.logger.Error("follow loop stopped", "err", err)
	}
}

func (fl *FollowLoop) broadcast(ev follow.Event) {
	var (
		msg uds.Message
		err error
	)
	switch ev.Kind {
	case follow.Cleared:
		msg, err = uds.NewEvent(uds.EventLogCleared, nil)
	default:
		msg, err = uds.NewEvent(uds.EventLogAppended, uds.AppendedEvent{Data: []byte(ev.Data), Offset: ev.Offset})
	}
	if err != nil {
		fl.logger.Error("encode event", "err", err)
		return
	}
	fl.daemon.Server().Broadcast(msg)
}
