package model

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/transport/uds"
)

// Mode identifies the current interaction mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeCompose
	ModeConfirmClear
)

// App is the root Bubble Tea model.
type App struct {
	// Connection
	client     *uds.Client
	socketPath string
	connected  bool
	events     chan uds.Message
	dropped    *atomic.Bool

	// State
	path     string
	contents string
	size     int64 // file offset contents ends at
	synced   bool
	pending  []uds.AppendedEvent
	follow   bool

	// UI
	mode     Mode
	viewport viewport.Model
	search   textinput.Model
	width    int
	height   int
	ready    bool

	composer *Composer

	statusMsg string
}

// New creates a new TUI app model.
func New(socketPath string) App {
	si := textinput.New()
	si.Placeholder = "search..."
	si.CharLimit = 128

	return App{
		socketPath: socketPath,
		search:     si,
		follow:     true,
		mode:       ModeNormal,
		events:     make(chan uds.Message, 64),
		dropped:    &atomic.Bool{},
	}
}

// deliver queues a daemon event without blocking the client's read loop.
// When the queue is full the event is dropped and the next processed event
// triggers a full reload.
func (a App) deliver(m uds.Message) {
	select {
	case a.events <- m:
	default:
		a.dropped.Store(true)
	}
}

// Init connects to the daemon.
func (a App) Init() tea.Cmd {
	return tea.Batch(
		connectCmd(a.socketPath),
		tea.SetWindowTitle("rawlog"),
	)
}

// connectedMsg indicates successful daemon connection.
type connectedMsg struct{ client *uds.Client }

// contentsMsg carries the full log file.
type contentsMsg uds.Snapshot

// appendedMsg carries bytes appended to the file.
type appendedMsg uds.AppendedEvent

// clearedMsg reports that the file was truncated or removed.
type clearedMsg struct{}

// eventMsg wraps a daemon event that was not recognized.
type eventMsg struct{ method string }

// clearResultMsg carries the notice returned by ClearLog.
type clearResultMsg uds.ClearLogResponse

// loggedMsg reports that an entry was written.
type loggedMsg struct{ level string }

// errorMsg carries an error to display.
type errorMsg struct{ err error }

// eventErrorMsg reports a daemon event that could not be decoded.
type eventErrorMsg struct{ err error }

func connectCmd(socketPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := uds.Dial(socketPath)
		if err != nil {
			return errorMsg{err}
		}
		return connectedMsg{client}
	}
}

func readLogCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		snap, err := client.ReadLog(ctx)
		if err != nil {
			return errorMsg{err}
		}
		return contentsMsg(snap)
	}
}

// clearCmd opens a session and clears the log with the issued token.
func clearCmd(client *uds.Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		resp, err := client.Request(ctx, uds.MethodOpenSession, nil)
		if err != nil {
			return errorMsg{err}
		}
		var sess uds.SessionResponse
		if err := resp.UnmarshalData(&sess); err != nil {
			return errorMsg{err}
		}

		resp, err = client.Request(ctx, uds.MethodClearLog, uds.ClearLogRequest{Token: sess.Token})
		if err != nil {
			return errorMsg{err}
		}
		var out uds.ClearLogResponse
		if err := resp.UnmarshalData(&out); err != nil {
			return errorMsg{err}
		}
		return clearResultMsg(out)
	}
}

func logCmd(client *uds.Client, req uds.LogRequest) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if _, err := client.Request(ctx, uds.MethodLog, req); err != nil {
			return errorMsg{err}
		}
		return loggedMsg{level: req.Level}
	}
}

// waitEvent turns the next daemon event into a tea.Msg.
func waitEvent(ch <-chan uds.Message) tea.Cmd {
	return func() tea.Msg {
		m, ok := <-ch
		if !ok {
			return nil
		}
		switch m.Method {
		case uds.EventLogAppended:
			var ev uds.AppendedEvent
			if err := m.UnmarshalData(&ev); err != nil {
				return eventErrorMsg{err}
			}
			return appendedMsg(ev)
		case uds.EventLogCleared:
			return clearedMsg{}
		}
		return eventMsg{method: m.Method}
	}
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		h := max(a.height-statusBarHeight, 1)
		if !a.ready {
			a.viewport = viewport.New(a.width, h)
			a.ready = true
		} else {
			a.viewport.Width = a.width
			a.viewport.Height = h
		}
		a.refresh()
		return a, nil

	case connectedMsg:
		a.client = msg.client
		a.connected = true
		a.statusMsg = "connected"

		a.client.OnEvent(a.deliver)
		return a, tea.Batch(readLogCmd(a.client), waitEvent(a.events))

	case contentsMsg:
		a.path = msg.Path
		a.contents = msg.Contents
		a.size = msg.Size
		a.synced = true
		for _, ev := range a.pending {
			a.apply(ev)
		}
		a.pending = nil
		a.refresh()
		return a, nil

	case appendedMsg:
		var resync bool
		if !a.synced {
			a.pending = append(a.pending, uds.AppendedEvent(msg))
		} else {
			resync = !a.apply(uds.AppendedEvent(msg))
			a.refresh()
		}
		return a, a.nextEvent(resync)

	case clearedMsg:
		a.contents = ""
		a.size = 0
		a.pending = nil
		a.refresh()
		return a, a.nextEvent(false)

	case eventMsg:
		return a, a.nextEvent(false)

	case eventErrorMsg:
		cmd := a.nextEvent(true)
		a.statusMsg = "error: " + msg.err.Error()
		return a, cmd

	case clearResultMsg:
		a.statusMsg = msg.Notice
		if msg.OK {
			a.contents = ""
			a.size = 0
			a.refresh()
		}
		return a, nil

	case loggedMsg:
		a.statusMsg = "logged " + core.Level(msg.level).String() + " entry"
		return a, nil

	case errorMsg:
		a.statusMsg = "error: " + msg.err.Error()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.mode == ModeSearch {
		switch msg.String() {
		case "esc":
			a.mode = ModeNormal
			a.search.SetValue("")
			a.search.Blur()
			a.refresh()
			return a, nil
		case "enter":
			a.mode = ModeNormal
			a.search.Blur()
			a.refresh()
			a.jumpToMatch()
			return a, nil
		default:
			var cmd tea.Cmd
			a.search, cmd = a.search.Update(msg)
			a.refresh()
			return a, cmd
		}
	}

	if a.mode == ModeCompose && a.composer != nil {
		return a.composer.HandleKey(a, msg)
	}

	if a.mode == ModeConfirmClear {
		switch msg.String() {
		case "y", "Y":
			a.mode = ModeNormal
			if a.client == nil {
				a.statusMsg = "not connected"
				return a, nil
			}
			a.statusMsg = "clearing..."
			return a, clearCmd(a.client)
		default:
			a.mode = ModeNormal
			a.statusMsg = "clear cancelled"
			return a, nil
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		if a.client != nil {
			_ = a.client.Close()
		}
		return a, tea.Quit

	case "g", "home":
		a.follow = false
		a.viewport.GotoTop()
	case "G", "end":
		a.viewport.GotoBottom()

	case "f":
		a.follow = !a.follow
		if a.follow {
			a.viewport.GotoBottom()
		}

	case "r":
		if a.client == nil {
			return a, connectCmd(a.socketPath)
		}
		a.statusMsg = "reloading"
		return a, readLogCmd(a.client)

	case "c":
		a.mode = ModeConfirmClear
		a.statusMsg = "Clear the log file? (y/n)"

	case "a":
		a.composer = NewComposer()
		a.mode = ModeCompose

	case "/":
		a.mode = ModeSearch
		a.search.Focus()
		return a, textinput.Blink

	default:
		// j/k, arrows, paging
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		if !a.viewport.AtBottom() {
			a.follow = false
		}
		return a, cmd
	}

	return a, nil
}

// apply adds the part of ev that is not already shown. It reports false when
// ev starts past the end of the shown contents, meaning earlier bytes were
// missed.
func (a *App) apply(ev uds.AppendedEvent) bool {
	end := ev.Offset + int64(len(ev.Data))
	switch {
	case ev.Offset > a.size:
		return false
	case end <= a.size:
		return true
	}
	a.contents += string(ev.Data[a.size-ev.Offset:])
	a.size = end
	return true
}

// nextEvent re-arms the event wait, reloading the file first when events were
// dropped or a gap was seen.
func (a *App) nextEvent(resync bool) tea.Cmd {
	if a.dropped.Swap(false) {
		resync = true
	}
	wait := waitEvent(a.events)
	if !resync {
		return wait
	}
	a.synced = false
	a.statusMsg = "resyncing"
	if a.client == nil {
		return wait
	}
	return tea.Batch(wait, readLogCmd(a.client))
}

// refresh pushes the current contents into the viewport.
func (a *App) refresh() {
	if !a.ready {
		return
	}
	a.viewport.SetContent(a.render())
	if a.follow {
		a.viewport.GotoBottom()
	}
}

// jumpToMatch scrolls to the first line containing the query.
func (a *App) jumpToMatch() {
	lines := matchingLines(a.contents, a.search.Value())
	if len(lines) == 0 {
		if a.search.Value() != "" {
			a.statusMsg = "no match for " + a.search.Value()
		}
		return
	}
	a.follow = false
	a.viewport.SetYOffset(lines[0])
	a.statusMsg = plural(len(lines), "matching line", "matching lines")
}

// matchingLines returns the indexes of lines containing q, case-insensitively.
func matchingLines(contents, q string) []int {
	q = strings.ToLower(q)
	if q == "" {
		return nil
	}
	var out []int
	for i, line := range strings.Split(contents, "\n") {
		if strings.Contains(strings.ToLower(line), q) {
			out = append(out, i)
		}
	}
	return out
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
