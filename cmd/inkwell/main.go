package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skurup/inkwell/internal/config"
	"github.com/skurup/inkwell/internal/logging"
	"github.com/skurup/inkwell/internal/muse"
	"github.com/skurup/inkwell/internal/tui"
)

func main() {
	cfg := config.Load()

	endpoint := flag.String("endpoint", cfg.Endpoint, "EduMUSE service endpoint")
	logFile := flag.String("log-file", cfg.LogFile, "path of the JSON log file (empty disables logging)")
	debug := flag.Bool("debug", cfg.Debug, "enable verbose logging")
	fragment := flag.String("fragment", "", "navigation fragment to resolve once a document opens")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	logger := logging.New(*logFile, *debug)
	defer func() { _ = logger.Sync() }()

	httpClient := &http.Client{Timeout: 3 * time.Minute}
	client := muse.New(muse.Config{
		Endpoint:   *endpoint,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	opts := []tea.ProgramOption{}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(
		tui.New(tui.Config{
			Client:          client,
			Logger:          logger,
			HTTPClient:      httpClient,
			InitialFragment: *fragment,
		}),
		opts...,
	)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}
