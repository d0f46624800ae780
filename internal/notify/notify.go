package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/rx3lixir/expense-dashboard/internal/logger"
)

// Kind тип уведомления
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
	KindInfo    Kind = "info"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("99"))

	redirectStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// Toast одно показанное уведомление
type Toast struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// Toaster печатает уведомления в терминал и запоминает последние
type Toaster struct {
	out io.Writer
	log logger.Logger

	mu     sync.Mutex
	recent []Toast
	limit  int
}

// NewToaster создает Toaster. out может быть nil, тогда уведомления только логируются
func NewToaster(out io.Writer, log logger.Logger) *Toaster {
	if log == nil {
		log = logger.NewNop()
	}
	return &Toaster{
		out:   out,
		log:   log.With("component", "notify"),
		limit: 20,
	}
}

func (t *Toaster) Success(msg string) { t.show(KindSuccess, msg) }
func (t *Toaster) Error(msg string)   { t.show(KindError, msg) }
func (t *Toaster) Info(msg string)    { t.show(KindInfo, msg) }

// Recent последние уведомления, старые первыми
func (t *Toaster) Recent() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Toast(nil), t.recent...)
}

func (t *Toaster) show(kind Kind, msg string) {
	t.mu.Lock()
	t.recent = append(t.recent, Toast{Kind: kind, Message: msg})
	if len(t.recent) > t.limit {
		t.recent = t.recent[len(t.recent)-t.limit:]
	}
	t.mu.Unlock()

	t.log.Debug("toast", "kind", string(kind), "message", msg)

	if t.out == nil {
		return
	}

	var line string
	switch kind {
	case KindSuccess:
		line = successStyle.Render("✔ " + msg)
	case KindError:
		line = errorStyle.Render("✘ " + msg)
	default:
		line = infoStyle.Render("• " + msg)
	}
	fmt.Fprintln(t.out, line)
}

// Redirector принимает сигналы перехода и хранит последний
type Redirector struct {
	out io.Writer
	log logger.Logger

	mu    sync.Mutex
	last  string
	count int
}

// NewRedirector создает навигатор. out может быть nil
func NewRedirector(out io.Writer, log logger.Logger) *Redirector {
	if log == nil {
		log = logger.NewNop()
	}
	return &Redirector{out: out, log: log.With("component", "navigator")}
}

// Navigate запоминает путь и печатает его
func (r *Redirector) Navigate(path string) {
	r.mu.Lock()
	r.last = path
	r.count++
	r.mu.Unlock()

	r.log.Info("navigate", "location", path)
	if r.out != nil {
		fmt.Fprintln(r.out, redirectStyle.Render("→ "+path))
	}
}

// Last последний путь и сколько всего было переходов
func (r *Redirector) Last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.count
}
