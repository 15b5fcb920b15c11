package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/stemsi/exstem-quiz/internal/client"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/examsession"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/tui"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.LoadClient()

	flag.StringVar(&cfg.APIURL, "api", cfg.APIURL, "exam API base URL")
	flag.StringVar(&cfg.MarkerPath, "markers", cfg.MarkerPath, "file that keeps the running exam across restarts")
	flag.StringVar(&cfg.LogPath, "log", cfg.LogPath, "log file")
	email := flag.String("email", "", "login email (prompted when empty)")
	history := flag.Bool("history", false, "print your past results and exit")
	noColor := flag.Bool("no-color", false, "disable colors")
	flag.Parse()

	// ─── Initialize Logger ─────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create log directory: %v\n", err)
		os.Exit(1)
	}
	logFile, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	log := logger.SetupWriter(logFile, cfg.LogLevel, "pretty")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ─── Login ─────────────────────────────────────────────────────────
	api := client.New(cfg.APIURL, cfg.RequestTimeout)
	if err := login(ctx, api, *email); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", loginMessage(err))
		log.Error().Err(err).Msg("Login failed")
		os.Exit(1)
	}
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.Logout(logoutCtx); err != nil {
			log.Warn().Err(err).Msg("Logout failed")
		}
	}()
	log.Info().Str("email", api.User().Email).Msg("Logged in")

	if *history {
		if err := printHistory(ctx, api); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return
	}

	// ─── Exam Session ──────────────────────────────────────────────────
	markers := examsession.NewFileMarkerStore(cfg.MarkerPath)
	ctrl := examsession.NewController(api, markers, examsession.Options{
		SubmitTimeout: cfg.SubmitTimeout,
		Logger:        log,
	})

	runCtx, cancelRun := context.WithCancel(ctx)
	go ctrl.Run(runCtx)

	final, err := tui.Run(ctx, ctrl, os.Stdout, tui.Options{NoColor: *noColor})
	cancelRun()
	<-ctrl.Done()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Terminal UI stopped")
	}

	// ─── Outcome ───────────────────────────────────────────────────────
	switch {
	case final.Phase == examsession.PhaseTerminated && final.Outcome == examsession.OutcomeReauthRequired:
		api.Forget()
		fmt.Println("Your session has expired. Please log in again.")
	case final.Phase == examsession.PhaseTerminated && final.Outcome == examsession.OutcomeCompleted && final.Report != nil:
		r := final.Report
		fmt.Printf("Exam submitted: %d/%d (%s%%) in %s\n", r.Score, r.TotalQuestions, r.Percentage.StringFixed(2), r.TimeSpent)
	case final.Phase == examsession.PhaseInProgress:
		fmt.Println("Exam paused. Run the client again to resume; the timer keeps running.")
	}
}

func login(ctx context.Context, api *client.Client, email string) error {
	reader := bufio.NewReader(os.Stdin)

	if email == "" {
		fmt.Print("Email: ")
		line, _ := reader.ReadString('\n')
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return errors.New("email is required")
	}

	fmt.Print("Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	_, err = api.Login(ctx, email, string(pw))
	return err
}

func loginMessage(err error) string {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if client.IsValidation(err) {
		parts := make([]string, 0, len(apiErr.Fields))
		for field, msg := range apiErr.Fields {
			parts = append(parts, field+": "+msg)
		}
		return strings.Join(parts, "; ")
	}
	return apiErr.UserMessage()
}

func printHistory(ctx context.Context, api *client.Client) error {
	results, err := api.Results(ctx)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results yet.")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s  %d/%d  %s%%  %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			r.Score, r.TotalQuestions, r.Percentage.StringFixed(2), r.TimeSpent)
	}
	return nil
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
