package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/chzyer/readline"

	"github.com/teslashibe/go-hometour/internal/config"
	"github.com/teslashibe/go-hometour/pkg/camera"
)

var (
	accent = lipgloss.Color("#00ff9f")
	dim    = lipgloss.Color("#6e7681")

	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	modelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8ab4f8"))
	noticeStyle = lipgloss.NewStyle().Foreground(dim)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
)

var bannerStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(accent).
	Padding(0, 1)

// lineSource is the part of *readline.Instance the terminal adapter uses.
type lineSource interface {
	Readline() (string, error)
	Close() error
}

// terminal adapts readline to loop.LineReader. Ctrl-C ends input like
// Ctrl-D does.
type terminal struct {
	rl lineSource
}

func (t terminal) Readline() (string, error) {
	line, err := t.rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) {
		return "", io.EOF
	}
	return line, err
}

func (t terminal) Close() error { return t.rl.Close() }

// console prints model text in the model style. Whitespace-only writes,
// such as the newline closing a turn, pass through unstyled.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := string(p)
	if strings.TrimSpace(s) != "" {
		s = modelStyle.Render(s)
	}
	if _, err := io.WriteString(c.out, s); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Notice prints a dimmed status line.
func (c *console) Notice(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, noticeStyle.Render(msg))
}

func printBanner(w io.Writer, cfg *config.Config) {
	video := string(cfg.Camera.Mode)
	if cfg.Camera.Mode == camera.ModeCamera && cfg.Camera.Name != "" {
		video += " (" + cfg.Camera.Name + ")"
	}

	lines := []string{
		titleStyle.Render("hometour"),
		"model: " + cfg.Live.Model,
		"video: " + video,
	}
	if cfg.WebPort > 0 {
		lines = append(lines, fmt.Sprintf("dashboard: http://localhost:%d", cfg.WebPort))
	}
	lines = append(lines, noticeStyle.Render(fmt.Sprintf("type %q to quit", cfg.Loop.QuitToken)))

	fmt.Fprintln(w, bannerStyle.Render(strings.Join(lines, "\n")))
}
