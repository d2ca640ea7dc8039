package ui

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/rs485gw/internal/client"
	"github.com/muurk/rs485gw/internal/protocol"
)

// DefaultScrollback is the number of lines the monitor keeps.
const DefaultScrollback = 2000

// Conn is the gateway connection the monitor drives. *client.Client
// satisfies it.
type Conn interface {
	Address() string
	Send(line string) error
	Events() <-chan client.Message
	Replies() <-chan client.Message
	Done() <-chan struct{}
	Err() error
}

// Messages for async operations
type messageMsg client.Message
type disconnectedMsg struct{ err error }

// monitorKeyMap defines key bindings for the monitor
type monitorKeyMap struct {
	Send     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Clear    key.Binding
	Help     key.Binding
	Quit     key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.PageUp, k.PageDown, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Clear},
		{k.PageUp, k.PageDown},
		{k.Help, k.Quit},
	}
}

func newMonitorKeyMap() monitorKeyMap {
	return monitorKeyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("f1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// MonitorModel is a live console on one gateway control channel. Every
// received line is shown; typed lines are sent as-is or expanded from the
// shorthand accepted by ExpandInput.
type MonitorModel struct {
	conn Conn

	Input    textinput.Model
	Viewport viewport.Model
	Spinner  spinner.Model
	Help     help.Model
	Keys     monitorKeyMap
	Width    int
	Height   int
	Lines    []string
	MaxLines int

	Connected bool
	Err       error
	Counts    map[Kind]int
	now       func() time.Time
}

// NewMonitorModel creates a monitor for conn.
func NewMonitorModel(conn Conn) MonitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	input := textinput.New()
	input.Placeholder = `tx 1 01 03 00 00 00 02   baud 2 9600   status   {"cmd":"tcp_stop"}`
	input.CharLimit = protocol.DefaultLineCapacity - 1
	input.Prompt = "> "
	input.Focus()

	width, height := GetTerminalSize()
	m := MonitorModel{
		conn:      conn,
		Input:     input,
		Viewport:  viewport.New(width, height),
		Spinner:   s,
		Help:      help.New(),
		Keys:      newMonitorKeyMap(),
		MaxLines:  DefaultScrollback,
		Connected: true,
		Counts:    make(map[Kind]int),
		now:       time.Now,
	}
	m.resize(width, height)
	return m
}

// Init starts waiting for gateway lines.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.Spinner.Tick,
		waitForMessage(m.conn),
	)
}

func waitForMessage(conn Conn) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-conn.Events():
			return messageMsg(msg)
		case msg := <-conn.Replies():
			return messageMsg(msg)
		case <-conn.Done():
			return disconnectedMsg{err: conn.Err()}
		}
	}
}

// Update handles messages and updates the model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case messageMsg:
		received := client.Message(msg)
		m.Counts[Classify(received)]++
		m.appendLine(FormatMessage(received))
		return m, waitForMessage(m.conn)

	case disconnectedMsg:
		m.Connected = false
		m.Err = msg.err
		text := "connection closed"
		if msg.err != nil {
			text = client.GetShortErrorMessage(client.ClassifyNetworkError(msg.err, m.conn.Address()))
		}
		m.appendLine(FormatLine(m.now(), KindError, text))
		return m, nil

	case spinner.TickMsg:
		if !m.Connected {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.Keys.Send):
			m.send()
			return m, nil
		case key.Matches(msg, m.Keys.Clear):
			m.Lines = nil
			m.Viewport.SetContent("")
			return m, nil
		case key.Matches(msg, m.Keys.Help):
			m.Help.ShowAll = !m.Help.ShowAll
			m.resize(m.Width, m.Height)
			return m, nil
		case key.Matches(msg, m.Keys.PageUp, m.Keys.PageDown):
			var cmd tea.Cmd
			m.Viewport, cmd = m.Viewport.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.Input, cmd = m.Input.Update(msg)
	return m, cmd
}

func (m *MonitorModel) send() {
	text := strings.TrimSpace(m.Input.Value())
	if text == "" {
		return
	}
	m.Input.SetValue("")

	line, err := ExpandInput(text)
	if err != nil {
		m.appendLine(FormatLine(m.now(), KindInvalid, err.Error()))
		return
	}
	if !m.Connected {
		m.appendLine(FormatLine(m.now(), KindError, "not connected"))
		return
	}
	if err := m.conn.Send(line); err != nil {
		m.appendLine(FormatLine(m.now(), KindError, client.GetShortErrorMessage(err)))
		return
	}
	m.Counts[KindSent]++
	m.appendLine(FormatLine(m.now(), KindSent, line))
}

func (m *MonitorModel) appendLine(line string) {
	follow := m.Viewport.AtBottom()
	m.Lines = append(m.Lines, line)
	if m.MaxLines > 0 && len(m.Lines) > m.MaxLines {
		m.Lines = m.Lines[len(m.Lines)-m.MaxLines:]
	}
	m.Viewport.SetContent(strings.Join(m.Lines, "\n"))
	if follow {
		m.Viewport.GotoBottom()
	}
}

func (m *MonitorModel) resize(width, height int) {
	m.Width = width
	m.Height = height

	// title, input, status bar and help each take one line, more with full help
	chrome := 4
	if m.Help.ShowAll {
		chrome += 2
	}
	viewHeight := height - chrome
	if viewHeight < 3 {
		viewHeight = 3
	}
	m.Viewport.Width = width
	m.Viewport.Height = viewHeight
	m.Input.Width = width - len(m.Input.Prompt) - 1
	m.Help.Width = width
}

// View renders the monitor
func (m MonitorModel) View() string {
	title := HeaderTitleStyle.Render("RS-485 GATEWAY MONITOR") + "  " +
		HeaderCommandStyle.Render(m.conn.Address())

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.Viewport.View(),
		m.Input.View(),
		m.statusBar(),
		m.Help.View(m.Keys),
	)
}

func (m MonitorModel) statusBar() string {
	counts := fmt.Sprintf("rx %d  events %d  ok %d  err %d  sent %d",
		m.Counts[KindRx], m.Counts[KindEvent], m.Counts[KindReply],
		m.Counts[KindError]+m.Counts[KindInvalid], m.Counts[KindSent])

	if !m.Connected {
		return StatusBarDownStyle.Render(FailureMarker + " disconnected   " + counts)
	}
	return StatusBarStyle.Render(m.Spinner.View() + " live   " + counts)
}

// RunMonitor runs the monitor full screen until the operator quits.
func RunMonitor(conn Conn) error {
	p := tea.NewProgram(NewMonitorModel(conn), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// ExpandInput turns a console line into a request line. Lines starting with
// '{' are sent verbatim. Shorthand forms:
//
//	tx <bus> <hex...>      {"bus":N,"tx_hex":"..."}
//	baud <bus> <rate>      {"bus":N,"baud":R}
//	join <ssid> [pwd] [port]
//	status | disconnect | stop
func ExpandInput(text string) (string, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") {
		return text, nil
	}

	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", fmt.Errorf("empty input")
	}

	var req any
	switch strings.ToLower(fields[0]) {
	case "tx":
		if len(fields) < 3 {
			return "", fmt.Errorf("usage: tx <bus> <hex bytes>")
		}
		bus, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("invalid bus %q", fields[1])
		}
		req = protocol.TxRequest{Bus: bus, TxHex: strings.Join(fields[2:], " ")}

	case "baud":
		if len(fields) != 3 {
			return "", fmt.Errorf("usage: baud <bus> <rate>")
		}
		bus, err := strconv.Atoi(fields[1])
		if err != nil {
			return "", fmt.Errorf("invalid bus %q", fields[1])
		}
		rate, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return "", fmt.Errorf("invalid baud %q", fields[2])
		}
		req = protocol.BaudRequest{Bus: bus, Baud: uint32(rate)}

	case "join":
		if len(fields) < 2 || len(fields) > 4 {
			return "", fmt.Errorf("usage: join <ssid> [pwd] [port]")
		}
		join := protocol.JoinRequest{Cmd: protocol.CmdWifiConnect, SSID: fields[1]}
		if len(fields) > 2 {
			join.Pwd = fields[2]
		}
		if len(fields) > 3 {
			port, err := strconv.Atoi(fields[3])
			if err != nil {
				return "", fmt.Errorf("invalid port %q", fields[3])
			}
			join.Port = port
		}
		req = join

	case "status":
		req = protocol.CmdRequest{Cmd: protocol.CmdWifiStatus}
	case "disconnect":
		req = protocol.CmdRequest{Cmd: protocol.CmdWifiDisconnect}
	case "stop":
		req = protocol.CmdRequest{Cmd: protocol.CmdTCPStop}

	default:
		return "", fmt.Errorf("unknown shorthand %q (start with { to send JSON)", fields[0])
	}

	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
