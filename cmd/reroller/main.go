package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ayusman/reroller/internal/app"
	"github.com/ayusman/reroller/internal/capture"
	"github.com/ayusman/reroller/internal/config"
	"github.com/ayusman/reroller/internal/logging"
	"github.com/ayusman/reroller/internal/plugin"
	"github.com/ayusman/reroller/internal/server"
	"github.com/ayusman/reroller/internal/store"
	"github.com/ayusman/reroller/internal/tray"
)

const (
	exitSuccess = 0
	exitNoMatch = 1
	exitSetup   = 2
)

// options are the flags that are not part of config.Config.
type options struct {
	frame string
	tray  bool
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Load()
	opts, err := parseFlags(args, cfg)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitSuccess
		}
		fmt.Fprintln(os.Stderr, err)
		return exitSetup
	}

	closeLog, err := logging.Init(logging.Options{Dir: cfg.DebugDir, Debug: cfg.Debug})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		return exitSetup
	}
	defer closeLog()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitSetup
	}

	st, err := openStore(cfg.DBPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.DBPath).Msg("failed to initialize store")
		return exitSetup
	}
	if st != nil {
		defer st.Close()
	}

	if opts.frame != "" {
		return analyzeFrame(cfg, st, opts.frame)
	}
	return reroll(cfg, st, opts)
}

// parseFlags applies command line overrides on top of cfg.
func parseFlags(args []string, cfg *config.Config) (options, error) {
	var opts options
	fs := flag.NewFlagSet("reroller", flag.ContinueOnError)

	fs.IntVar(&cfg.MinFiveStarCards, "min_5_star_cards", cfg.MinFiveStarCards, "minimum number of 5* cards for success")
	fs.Float64Var(&cfg.MatchThreshold, "match_threshold", cfg.MatchThreshold, "template match confidence threshold (0,1]")
	fs.Func("roll_delay", "seconds to wait after pressing recruit (e.g. 3 or 2.5s)", func(s string) error {
		d, err := config.ParseSeconds(s)
		if err != nil {
			return err
		}
		cfg.RollDelay = d
		return nil
	})
	fs.IntVar(&cfg.MaxAttempts, "max_attempts", cfg.MaxAttempts, "stop after this many attempts (0 runs until stopped)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "attempt history database; empty disables history")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "status server address; empty disables the server")
	fs.StringVar(&cfg.TargetDir, "targets", cfg.TargetDir, "directory of target character templates")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log debug output to the console")
	fs.StringVar(&opts.frame, "frame", "", "evaluate a single screenshot file and exit")
	fs.BoolVar(&opts.tray, "tray", false, "show a system tray menu")
	fs.DurationVar(&cfg.MoveMin, "move_min", cfg.MoveMin, "shortest pointer travel time before a click")
	fs.DurationVar(&cfg.MoveMax, "move_max", cfg.MoveMax, "longest pointer travel time before a click (exclusive)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return opts, nil
}

func openStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return store.New(path)
}

// analyzeFrame evaluates one screenshot and prints the verdict.
func analyzeFrame(cfg *config.Config, st *store.Store, path string) int {
	a, err := app.New(app.Config{
		Settings:  cfg,
		Screen:    capture.NewFileScreen(path),
		Store:     st,
		Snapshots: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return exitSetup
	}
	defer a.Close()

	ev, err := a.Analyze(context.Background())
	if err != nil {
		log.Error().Err(err).Str("frame", path).Msg("analysis failed")
		return exitSetup
	}

	fmt.Println(ev.Verdict.Message)
	if ev.Verdict.Success {
		return exitSuccess
	}
	return exitNoMatch
}

// reroll runs the loop against the desktop until success, MaxAttempts,
// a signal or tray quit.
func reroll(cfg *config.Config, st *store.Store, opts options) int {
	clicker := plugin.NewPluginClicker(
		plugin.NewManager(cfg.PluginDir),
		plugin.NewExecutor(10*time.Second),
		cfg.ClickPlugin,
	)

	a, err := app.New(app.Config{
		Settings:  cfg,
		Screen:    capture.NewDesktopScreen(),
		Clicker:   clicker,
		Store:     st,
		Snapshots: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return exitSetup
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTPAddr != "" {
		hub := server.NewVerdictHub()
		a.OnVerdict(hub.Publish)
		srv := server.New(server.Config{
			StaticDir:  findWebDir(),
			Store:      st,
			Controller: a,
			Verdicts:   hub,
		})
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
				log.Error().Err(err).Msg("status server failed")
			}
		}()
	}

	type result struct {
		ev  *app.Event
		err error
	}
	done := make(chan result, 1)

	var tr *tray.Tray
	if opts.tray {
		tr = tray.New()
		tr.OnPause(a.SetPaused)
		tr.OnQuit(stop)
		tr.OnStatus(func() { openBrowser(statusURL(cfg.HTTPAddr)) })
		a.OnVerdict(tr.SetLastVerdict)
	}

	go func() {
		ev, err := a.Run(ctx)
		done <- result{ev, err}
		if tr != nil {
			tr.Quit()
		}
	}()

	// systray must own the main goroutine
	if tr != nil {
		tr.Run()
		stop()
	}

	res := <-done
	switch {
	case res.err == nil:
		fmt.Println(res.ev.Verdict.Message)
		return exitSuccess
	case errors.Is(res.err, context.Canceled):
		log.Info().Msg("stopped")
		return exitNoMatch
	default:
		log.Error().Err(res.err).Msg("reroll ended")
		return exitNoMatch
	}
}

// findWebDir returns the first existing web directory next to the working
// directory, or "" when there is none.
func findWebDir() string {
	for _, p := range []string{"web", "../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}

func statusURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/api/status"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("failed to open browser")
	}
}
