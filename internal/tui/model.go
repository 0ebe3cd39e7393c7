package tui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"faqrag/internal/domain"
	"faqrag/internal/service"
	"faqrag/internal/summarizer"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	Ask(ctx context.Context, query string, opts domain.SearchOptions) (*domain.Answer, error)
}

// stream is one answer being pulled chunk by chunk. next and stop are only ever
// called from a single pending command or from Update, never both at once.
type stream struct {
	next func() (string, error, bool)
	stop func()
}

type answerMsg struct {
	query  string
	answer *domain.Answer
	err    error
}

type chunkMsg struct {
	s    *stream
	text string
	err  error
	done bool
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	ctx       context.Context
	service   RAGPort
	opts      domain.SearchOptions
	excerpts  *summarizer.FrequencySummarizer
	input     textinput.Model
	viewport  viewport.Model
	summary   string
	status    string
	ready     bool
	lastQuery string
	docs      []domain.Document
	cursor    int
	answer    string
	streaming *stream
}

// New creates a new TUI model instance. opts is passed to every question.
func New(ctx context.Context, service RAGPort, summary string, opts domain.SearchOptions) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		ctx:      ctx,
		service:  service,
		opts:     opts,
		excerpts: summarizer.NewFrequencySummarizer(),
		input:    ti,
		viewport: vp,
		summary:  summary,
		status:   "Loaded. Ask away.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and stream events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.lastQuery = q
			m.docs, m.cursor, m.answer = nil, 0, ""
			// a stream still in flight is stopped when its next chunk arrives
			m.streaming = nil
			m.status = "Searching..."
			m.refresh()
			return m, m.ask(q)
		case "down":
			if len(m.docs) > 0 {
				m.cursor = (m.cursor + 1) % len(m.docs)
				m.refresh()
				return m, nil
			}
		case "up":
			if len(m.docs) > 0 {
				m.cursor = (m.cursor - 1 + len(m.docs)) % len(m.docs)
				m.refresh()
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case answerMsg:
		if msg.query != m.lastQuery {
			if msg.answer != nil {
				return m, release(msg.answer.Chunks)
			}
			return m, nil
		}
		switch {
		case errors.Is(msg.err, service.ErrNoResults):
			m.status = fmt.Sprintf("No FAQ entries match %q", msg.query)
		case msg.err != nil:
			m.status = "Error: " + msg.err.Error()
		default:
			m.docs = msg.answer.Documents
			next, stop := iter.Pull2(msg.answer.Chunks)
			m.streaming = &stream{next: next, stop: stop}
			m.status = fmt.Sprintf("Answering from %d FAQ entries...", len(m.docs))
			m.refresh()
			return m, pull(m.streaming)
		}
		m.refresh()
		return m, nil

	case chunkMsg:
		if msg.s != m.streaming {
			msg.s.stop()
			return m, nil
		}
		switch {
		case msg.err != nil:
			msg.s.stop()
			m.streaming = nil
			m.status = "Answer failed: " + msg.err.Error()
		case msg.done:
			msg.s.stop()
			m.streaming = nil
			m.status = fmt.Sprintf("Answered from %d FAQ entries. Up/down to browse sources.", len(m.docs))
		default:
			m.answer += msg.text
			m.refresh()
			return m, pull(msg.s)
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) tea.Cmd {
	svc, ctx, opts := m.service, m.ctx, m.opts
	return func() tea.Msg {
		ans, err := svc.Ask(ctx, q, opts)
		return answerMsg{query: q, answer: ans, err: err}
	}
}

func pull(s *stream) tea.Cmd {
	return func() tea.Msg {
		text, err, ok := s.next()
		return chunkMsg{s: s, text: text, err: err, done: !ok}
	}
}

// release ends an answer nobody will read so its connection is closed.
func release(chunks iter.Seq2[string, error]) tea.Cmd {
	return func() tea.Msg {
		for range chunks {
			break
		}
		return nil
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

// View renders the TUI layout, the answer and the current source.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("FAQ Assistant")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if m.lastQuery == "" {
		return "No questions yet."
	}
	var sb strings.Builder
	sb.WriteString(labelStyle.Render("Q: "))
	sb.WriteString(m.lastQuery)
	sb.WriteString("\n\n")
	if m.answer != "" {
		sb.WriteString(m.answer)
		sb.WriteString("\n\n")
	}
	if len(m.docs) == 0 {
		return sb.String()
	}
	d := m.docs[m.cursor]
	sb.WriteString(labelStyle.Render(fmt.Sprintf("Source %d/%d", m.cursor+1, len(m.docs))))
	if c := d["course"]; c != "" {
		sb.WriteString("  " + c)
	}
	if s := d["section"]; s != "" {
		sb.WriteString(" / " + s)
	}
	sb.WriteString("\n")
	if q := d["question"]; q != "" {
		sb.WriteString(q + "\n")
	}
	sb.WriteString(m.highlightBestSentence(d["text"]))
	return sb.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
)

func (m Model) highlightBestSentence(text string) string {
	sentences := summarizer.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	best := m.excerpts.Best(text, m.lastQuery)
	for i, s := range sentences {
		if s == best {
			sentences[i] = highlightStyle.Render(s)
			break
		}
	}
	return strings.Join(sentences, " ")
}
