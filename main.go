package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"showtimedb-cli/config"
	"showtimedb-cli/logger"
	"showtimedb-cli/service"
	"showtimedb-cli/session"
	"showtimedb-cli/tui"
)

const appName = "showtimedb-cli"

var (
	version = "dev"
	commit  = "none"
)

func printUsage(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(out, "Usage: %s [flags]\n\nBrowse movies, pick seats and book tickets from the terminal.\n\nFlags:\n", appName)
	fmt.Fprint(out, flagSet.FlagUsages())
}

func printVersion() {
	fmt.Printf("%s %s", appName, version)
	if commit != "none" && commit != "" {
		fmt.Printf(" (%s)", commit)
	}
	fmt.Println()
}

type options struct {
	configPath string
	backend    string
	apiURL     string
	logFile    string
	logLevel   string
}

// parseArgs reports false when the program should exit without starting the
// UI (help or version was requested).
func parseArgs(args []string) (options, *pflag.FlagSet, bool, error) {
	var opts options
	flagSet := pflag.NewFlagSet(appName, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVar(&opts.configPath, "config", "", "path to a YAML config file (default: $SHOWTIMEDB_CONFIG)")
	flagSet.StringVar(&opts.backend, "backend", "", "data service variant: rest or supabase")
	flagSet.StringVar(&opts.apiURL, "api", "", "REST API base URL")
	flagSet.StringVar(&opts.logFile, "log-file", "", "write logs to this file (default: user cache dir)")
	flagSet.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error")
	showVersion := flagSet.BoolP("version", "v", false, "print version and exit")
	showHelp := flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(os.Stdout, flagSet)
			return opts, flagSet, false, nil
		}
		return opts, flagSet, false, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return opts, flagSet, false, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	if *showHelp {
		printUsage(os.Stdout, flagSet)
		return opts, flagSet, false, nil
	}
	if *showVersion {
		printVersion()
		return opts, flagSet, false, nil
	}
	return opts, flagSet, true, nil
}

// applyFlags overrides configuration with the flags that were set.
func applyFlags(cfg *config.Config, opts options, flagSet *pflag.FlagSet) {
	if flagSet.Changed("backend") {
		cfg.Backend = config.Backend(strings.ToLower(opts.backend))
	}
	if flagSet.Changed("api") {
		cfg.API.BaseURL = opts.apiURL
	}
	if flagSet.Changed("log-file") {
		cfg.Log.File = opts.logFile
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
}

func defaultLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appName, appName+".log")
}

func newBackend(cfg *config.Config, log *slog.Logger) (service.Backend, string) {
	opts := service.Options{
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout.Std()},
		UserAgent:  appName + "/" + version,
		Logger:     log,
	}
	if cfg.Backend == config.BackendSupabase {
		return service.NewSupabaseClient(cfg.Supabase.URL, cfg.Supabase.AnonKey, opts), "supabase:" + cfg.Supabase.URL
	}
	return service.NewRESTClient(cfg.API.BaseURL, opts), "rest:" + cfg.API.BaseURL
}

func run(args []string) error {
	opts, flagSet, proceed, err := parseArgs(args)
	if err != nil {
		printUsage(os.Stderr, flagSet)
		return err
	}
	if !proceed {
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	applyFlags(cfg, opts, flagSet)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}

	// The terminal belongs to the UI, so logs only ever go to a file.
	var logOut io.Writer = io.Discard
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = defaultLogPath()
	}
	if logPath != "" {
		f, err := logger.OpenFile(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
		} else {
			defer f.Close()
			logOut = f
		}
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format, logOut).With("app", appName, "version", version)
	log.Info("starting", "backend", string(cfg.Backend))

	backend, source := newBackend(cfg, log)

	sess, err := session.Open(session.FilePersister(), log)
	if err != nil {
		log.Warn("session store unavailable, sign-in will not persist", "error", err)
		sess, _ = session.Open(session.NewMemoryPersister(), log)
	}

	model := tui.New(tui.Deps{
		Backend:           backend,
		Session:           sess,
		Logger:            log,
		ConfirmationDelay: cfg.UI.ConfirmationDelay.Std(),
		CacheSource:       source,
	})
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		log.Error("ui exited", "error", err)
		return err
	}
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
