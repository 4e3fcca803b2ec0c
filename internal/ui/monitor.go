package ui

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/BioHazard786/Warpcast/internal/webrtc"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	maxEvents       = 8
	refreshInterval = 500 * time.Millisecond
)

// Snapshot is what the monitor shows of a session on every refresh.
type Snapshot struct {
	Streams []webrtc.StreamInfo
	Remote  map[string]*webrtc.RemoteStream
}

// Monitor is a live terminal view of a running session.
type Monitor struct {
	program *tea.Program
	model   *monitorModel
	updates chan monitorUpdate
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

type monitorUpdate struct {
	event string
	state string
	stats *webrtc.PeerStats
}

type refreshMsg time.Time

type monitorModel struct {
	title    string
	snapshot func() Snapshot
	updates  chan monitorUpdate
	spinner  spinner.Model

	mu       sync.RWMutex
	state    string
	events   []string
	stats    map[string]webrtc.PeerStats
	current  Snapshot
	quitting bool
}

// NewMonitor builds a monitor that polls snapshot for session state.
func NewMonitor(title string, snapshot func() Snapshot) *Monitor {
	updates := make(chan monitorUpdate, 100)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &Monitor{
		model: &monitorModel{
			title:    title,
			snapshot: snapshot,
			updates:  updates,
			spinner:  s,
			state:    "Connecting...",
			stats:    make(map[string]webrtc.PeerStats),
		},
		updates: updates,
		quit:    make(chan struct{}),
	}
}

// Start runs the view in the background. Quit is closed when the user
// leaves it.
func (m *Monitor) Start() {
	m.program = tea.NewProgram(m.model, tea.WithOutput(os.Stdout))
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.once.Do(func() { close(m.quit) })
		if _, err := m.program.Run(); err != nil {
			PrintErrorf("monitor: %v", err)
		}
	}()
}

// Quit is closed when the monitor stops.
func (m *Monitor) Quit() <-chan struct{} {
	return m.quit
}

func (m *Monitor) Event(format string, args ...any) {
	m.push(monitorUpdate{event: fmt.Sprintf(format, args...)})
}

func (m *Monitor) SetState(state string) {
	m.push(monitorUpdate{state: state})
}

func (m *Monitor) Stats(ps webrtc.PeerStats) {
	m.push(monitorUpdate{stats: &ps})
}

func (m *Monitor) push(u monitorUpdate) {
	select {
	case m.updates <- u:
	default:
	}
}

func (m *Monitor) Stop() {
	if m.program != nil {
		m.program.Quit()
	}
	m.wg.Wait()
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), m.refresh())
}

func (m *monitorModel) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *monitorModel) refresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case refreshMsg:
		if m.snapshot != nil {
			snap := m.snapshot()
			m.mu.Lock()
			m.current = snap
			m.mu.Unlock()
		}
		if !m.quitting {
			cmds = append(cmds, m.refresh())
		}

	case monitorUpdate:
		m.apply(msg)
		cmds = append(cmds, m.listen())
	}

	return m, tea.Batch(cmds...)
}

func (m *monitorModel) apply(u monitorUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.state != "" {
		m.state = u.state
	}
	if u.event != "" {
		stamp := time.Now().Format("15:04:05")
		m.events = append(m.events, MutedStyle.Render(stamp)+" "+u.event)
		if len(m.events) > maxEvents {
			m.events = m.events[len(m.events)-maxEvents:]
		}
	}
	if u.stats != nil {
		m.stats[u.stats.StreamID] = *u.stats
	}
}

func (m *monitorModel) View() string {
	if m.quitting {
		return ""
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n%s\n", HeaderStyle.Render(m.title)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", m.spinner.View(), m.state))

	b.WriteString(StreamsView(m.current.Streams) + "\n")
	if len(m.current.Remote) > 0 {
		b.WriteString(RemoteStreamsView(m.current.Remote) + "\n")
	}
	if len(m.stats) > 0 {
		b.WriteString(StatsView(m.stats) + "\n")
	}

	if len(m.events) > 0 {
		b.WriteString("\n")
		for _, e := range m.events {
			b.WriteString("  " + e + "\n")
		}
	}

	b.WriteString(FooterStyle.Render("Press q to quit"))
	return b.String()
}
