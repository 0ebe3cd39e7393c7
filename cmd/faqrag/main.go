package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"faqrag/internal/app"
	"faqrag/internal/config"
	"faqrag/internal/domain"
	"faqrag/internal/logger"
	"faqrag/internal/service"
	"faqrag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath    string
		course     string
		limit      int
		showPrompt bool
		plain      bool
	)
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/faqrag/config.yaml if not provided)")
	flag.StringVar(&course, "course", "", "Only search this course (e.g. data-engineering-zoomcamp); \"all\" searches every course")
	flag.IntVar(&limit, "limit", 0, "Number of FAQ entries to retrieve (default from config)")
	flag.BoolVar(&showPrompt, "show-prompt", false, "Print the prompt sent to the model")
	flag.BoolVar(&plain, "plain", false, "Use a plain line-based prompt instead of the full-screen UI")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// keep the terminal for answers; logs go to a file
	logFile := cfg.Log.File
	if logFile == "" {
		logFile = filepath.Join(os.TempDir(), "faqrag.log")
	}
	zl, err := logger.New(cfg.Log.Level, logFile)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, zl, nil)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer a.Close()

	fmt.Fprintln(os.Stderr, "Loading FAQ documents...")
	summary, err := a.Service.Load(ctx)
	if err != nil {
		log.Fatalf("load failed: %v", err)
	}

	opts := domain.SearchOptions{Limit: limit}
	switch course {
	case "":
	case "all":
		opts.Filter = map[string]string{}
	default:
		opts.Filter = map[string]string{"course": course}
	}

	switch {
	case flag.NArg() > 0:
		query := strings.Join(flag.Args(), " ")
		if err := answer(ctx, os.Stdout, a.Service, query, opts, showPrompt); err != nil {
			zl.Error("question failed", zap.Error(err))
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
	case plain:
		fmt.Println(summary)
		interactive(ctx, os.Stdin, os.Stdout, a.Service, opts, showPrompt)
	default:
		m := tui.New(ctx, a.Service, summary, opts)
		if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Fatal(err)
		}
	}
}

// answer asks one question and streams the reply to w.
func answer(ctx context.Context, w io.Writer, svc domain.RAGService, query string, opts domain.SearchOptions, showPrompt bool) error {
	fmt.Fprintf(w, "\nSearching for: %s\n", query)
	if c, ok := opts.Filter["course"]; ok {
		fmt.Fprintf(w, "Filtering by course: %s\n", c)
	}
	ans, err := svc.Ask(ctx, query, opts)
	if errors.Is(err, service.ErrNoResults) {
		fmt.Fprintln(w, "No relevant results found.")
		return nil
	}
	if err != nil {
		return err
	}
	if showPrompt {
		fmt.Fprintf(w, "\n%s\n", ans.Prompt)
	}
	fmt.Fprintf(w, "\nGenerating response from %d FAQ entries...\n\n", len(ans.Documents))
	for chunk, err := range ans.Chunks {
		if err != nil {
			fmt.Fprintln(w)
			return err
		}
		fmt.Fprint(w, chunk)
	}
	fmt.Fprintln(w)
	return nil
}

// interactive runs the line loop until EOF or exit, quit or q.
func interactive(ctx context.Context, r io.Reader, w io.Writer, svc domain.RAGService, opts domain.SearchOptions, showPrompt bool) {
	fmt.Fprintln(w, "FAQ Search System (type 'exit' to quit)")
	fmt.Fprintln(w, "Enter your question below:")
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "\n> ")
		if !sc.Scan() {
			fmt.Fprintln(w)
			return
		}
		query := strings.TrimSpace(sc.Text())
		switch strings.ToLower(query) {
		case "":
			continue
		case "exit", "quit", "q":
			return
		}
		if err := answer(ctx, w, svc, query, opts, showPrompt); err != nil {
			fmt.Fprintln(w, "Error:", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
