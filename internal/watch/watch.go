// Package watch is the live TUI for a tracking run: the planar arm and its
// target on a braille canvas, the error history as a chart, and the loop
// statistics alongside.
package watch

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/armctl/internal/actuation"
	"github.com/san-kum/armctl/internal/drive"
)

const (
	canvasCols = 60
	canvasRows = 24
	frameRate  = 30
	historyCap = 400
	trailCap   = 200
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(44)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Model steps the driver one control cycle per frame and renders the
// result. The actuator is only read for drawing; all commanding goes
// through the driver.
type Model struct {
	driver *drive.Driver
	act    actuation.Actuator
	links  []float64

	canvas  *canvas
	errHist []float64
	trail   [][2]float64

	running bool
	last    drive.CycleRecord
	result  *drive.Result
	runErr  error
}

func NewModel(driver *drive.Driver, act actuation.Actuator, links []float64) Model {
	c := newCanvas(canvasCols, canvasRows)

	reach := 0.0
	for _, l := range links {
		reach += l
	}
	c.setView(0, 0, reach*1.15)

	return Model{
		driver:  driver,
		act:     act,
		links:   links,
		canvas:  c,
		errHist: make([]float64, 0, historyCap),
		trail:   make([][2]float64, 0, trailCap),
		running: true,
	}
}

// Result is the finished run, nil when the view was quit mid-run.
func (m Model) Result() *drive.Result { return m.result }

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		}
	case TickMsg:
		if m.running && m.result == nil {
			m.step()
		}
		return m, tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

func (m *Model) step() {
	rec, done, err := m.driver.StepCycle()
	if err != nil {
		m.runErr = err
		m.result = m.driver.Finish()
		return
	}
	if rec.Actual != nil {
		m.last = rec
		m.errHist = append(m.errHist, rec.Error)
		if len(m.errHist) > historyCap {
			m.errHist = m.errHist[1:]
		}
		m.trail = append(m.trail, [2]float64{rec.Actual[0], rec.Actual[1]})
		if len(m.trail) > trailCap {
			m.trail = m.trail[1:]
		}
	}
	if done {
		m.result = m.driver.Finish()
	}
}

// View renders the arm pose from the actuator's current joint angles plus
// the latest cycle's target and error history.
func (m Model) View() string {
	m.canvas.clear()
	m.drawArm()

	var s strings.Builder
	s.WriteString(headerStyle.Render("ARM TRACKING") + "\n")
	s.WriteString(m.statusLine() + "\n\n")

	if len(m.errHist) > 1 {
		chart := asciigraph.Plot(m.errHist, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Tracking error"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	st := m.driver.Status()
	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.2fs", m.last.Time)) + "\n")
	s.WriteString(labelStyle.Render("State") + valueStyle.Render(st.String()) + "\n")
	s.WriteString(labelStyle.Render("Error") + valueStyle.Render(fmt.Sprintf("%.4f m", m.last.Error)) + "\n")
	s.WriteString(labelStyle.Render("Step |dq|") + valueStyle.Render(fmt.Sprintf("%.4f rad", m.last.StepNorm)) + "\n")

	if m.result != nil {
		s.WriteString("\nSUMMARY\n")
		s.WriteString(labelStyle.Render("Cycles") + valueStyle.Render(fmt.Sprintf("%d", m.result.Cycles)) + "\n")
		s.WriteString(labelStyle.Render("Mean error") + valueStyle.Render(fmt.Sprintf("%.4f m", m.result.MeanAbsError)) + "\n")
		s.WriteString(labelStyle.Render("Final error") + valueStyle.Render(fmt.Sprintf("%.4f m", m.result.FinalError)) + "\n")
		s.WriteString(labelStyle.Render("Clamped") + valueStyle.Render(fmt.Sprintf("%d", m.result.ClampedCycles)) + "\n")
		verdict := failStyle.Render("FAIL")
		if m.result.Passed {
			verdict = passStyle.Render("PASS")
		}
		s.WriteString(labelStyle.Render("Verdict") + verdict + "\n")
		if m.runErr != nil {
			s.WriteString(failStyle.Render(m.runErr.Error()) + "\n")
		}
	}

	s.WriteString(helpStyle.Render("\n─────────────────────\nSP:Pause  Q:Quit"))

	canvasView := canvasStyle.Render(m.canvas.String())
	statsView := statsStyle.Render(s.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}

func (m Model) statusLine() string {
	switch {
	case m.result != nil && m.runErr != nil:
		return failStyle.Render("ABORTED")
	case m.result != nil:
		return valueStyle.Render("DONE (" + m.result.Status.String() + ")")
	case !m.running:
		return valueStyle.Render("PAUSED")
	}
	return valueStyle.Render("RUNNING")
}

func (m Model) drawArm() {
	for _, pt := range m.trail {
		m.canvas.plot(pt[0], pt[1])
	}
	if m.last.Desired != nil {
		m.canvas.mark(m.last.Desired[0], m.last.Desired[1])
	}

	q, err := m.act.JointAngles()
	if err != nil || len(q) != len(m.links) {
		return
	}

	// Planar chain: accumulate joint angles link by link.
	x, y, angle := 0.0, 0.0, 0.0
	m.canvas.mark(0, 0)
	for i, l := range m.links {
		angle += q[i]
		nx := x + l*math.Cos(angle)
		ny := y + l*math.Sin(angle)
		m.canvas.segment(x, y, nx, ny)
		m.canvas.mark(nx, ny)
		x, y = nx, ny
	}
}
