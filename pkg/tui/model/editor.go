package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/rawlog/pkg/core"
	"github.com/modoterra/rawlog/pkg/transport/uds"
)

// ComposerField is a named text input in the composer form.
type ComposerField struct {
	Label string
	Input textinput.Model
}

// Composer is the inline form for writing an entry from the viewer.
type Composer struct {
	fields    []ComposerField
	activeIdx int
	err       string
}

const (
	fieldLevel = iota
	fieldKind
	fieldPayload
)

// NewComposer creates a blank composer with INFO/text defaults.
func NewComposer() *Composer {
	fields := []ComposerField{
		newField("level", string(core.LevelInfo), 16),
		newField("kind", "text", 16),
		newField("payload", "", 4096),
	}
	fields[fieldPayload].Input.Placeholder = `message, {"json": true} or 42`
	fields[fieldPayload].Input.Focus()
	return &Composer{fields: fields, activeIdx: fieldPayload}
}

func newField(label, value string, limit int) ComposerField {
	ti := textinput.New()
	ti.Placeholder = label
	ti.SetValue(value)
	ti.CharLimit = limit
	return ComposerField{Label: label, Input: ti}
}

// Request builds the Log request from the form.
func (c *Composer) Request() (uds.LogRequest, error) {
	level := strings.ToUpper(strings.TrimSpace(c.fields[fieldLevel].Input.Value()))
	payload := c.fields[fieldPayload].Input.Value()
	req := uds.LogRequest{Level: core.Level(level).String()}

	switch kind := strings.TrimSpace(c.fields[fieldKind].Input.Value()); kind {
	case "", "text":
		req.Text = &payload
	case "json":
		if !json.Valid([]byte(payload)) {
			return req, fmt.Errorf("payload is not valid JSON")
		}
		req.Value = json.RawMessage(payload)
	case "scalar":
		var v any
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			return req, fmt.Errorf("payload is not a scalar literal")
		}
		switch v.(type) {
		case map[string]any, []any, string:
			return req, fmt.Errorf("payload is not a scalar literal")
		}
		req.Value = json.RawMessage(payload)
		req.Scalar = true
	default:
		return req, fmt.Errorf("unknown kind %q (text, json, scalar)", kind)
	}
	return req, nil
}

// HandleKey processes key events in compose mode.
func (c *Composer) HandleKey(a App, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.mode = ModeNormal
		a.composer = nil
		return a, nil

	case "enter":
		req, err := c.Request()
		if err != nil {
			c.err = err.Error()
			return a, nil
		}
		a.mode = ModeNormal
		a.composer = nil
		if a.client == nil {
			a.statusMsg = "not connected"
			return a, nil
		}
		return a, logCmd(a.client, req)

	case "tab":
		c.fields[c.activeIdx].Input.Blur()
		c.activeIdx = (c.activeIdx + 1) % len(c.fields)
		c.fields[c.activeIdx].Input.Focus()
		return a, textinput.Blink

	case "shift+tab":
		c.fields[c.activeIdx].Input.Blur()
		c.activeIdx = (c.activeIdx - 1 + len(c.fields)) % len(c.fields)
		c.fields[c.activeIdx].Input.Focus()
		return a, textinput.Blink

	default:
		var cmd tea.Cmd
		c.fields[c.activeIdx].Input, cmd = c.fields[c.activeIdx].Input.Update(msg)
		c.err = ""
		return a, cmd
	}
}

// View renders the composer form.
func (c *Composer) View(width int) string {
	s := titleStyle.Render(" New Entry ") + "\n\n"
	for i, f := range c.fields {
		prefix := "  "
		if i == c.activeIdx {
			prefix = "▸ "
		}
		s += prefix + dimStyle.Render(f.Label+": ") + f.Input.View() + "\n"
	}
	if c.err != "" {
		s += "\n" + levelStyles[core.LevelError].Render("  "+c.err) + "\n"
	}
	s += "\n" + helpStyle.Render(truncate("  tab:next  shift+tab:prev  enter:write  esc:cancel", width))
	return s
}
