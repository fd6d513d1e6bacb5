package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/ayusman/eyetrack/internal/app"
	"github.com/ayusman/eyetrack/internal/config"
	"github.com/ayusman/eyetrack/internal/engine"
	"github.com/ayusman/eyetrack/internal/logger"
	"github.com/ayusman/eyetrack/internal/server"
	"github.com/ayusman/eyetrack/internal/store"
)

const usage = `eyetrack - webcam face, gaze and posture tracking

Usage:
  eyetrack run [-env file]            track the camera and serve the API
  eyetrack image [-env file] files... track still images and print results

`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var err error
	switch cmd, args := flag.Arg(0), flag.Args()[1:]; cmd {
	case "run":
		err = runCmd(args)
	case "image":
		err = imageCmd(args)
	case "help", "-h", "--help":
		flag.Usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "eyetrack: %v\n", err)
		os.Exit(1)
	}
}

// shutdownTimeout bounds how long run waits for in-flight requests.
const shutdownTimeout = 5 * time.Second

// setup loads the configuration and builds the process logger. The closer
// releases the log file.
func setup(envFile string) (config.Config, *logrus.Logger, io.Closer, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, closer, err := logger.New(logger.Options{
		Level:    cfg.LogLevel,
		File:     cfg.LogFile,
		NoColors: !term.IsTerminal(int(os.Stderr.Fd())),
	})
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	return cfg, log, closer, nil
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	envFile := fs.String("env", "", "Environment file (default .env when present)")
	fs.Parse(args)

	cfg, log, logCloser, err := setup(*envFile)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	st, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	eng := engine.New(cfg.Engine(), engine.WithLogger(log))
	a := app.New(app.Config{
		Store:        st,
		CameraConfig: cfg.Camera(),
		MotionThresh: cfg.MotionThreshold,
		Record:       cfg.Record,
		Logger:       log,
	}, eng)
	defer a.Close()

	if err := a.Start(); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		log.WithField("dir", staticDir).Info("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir: staticDir,
		Tracker:   a,
		Store:     st,
		Logger:    log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http server shutdown incomplete")
	}
	return <-errCh
}

// findWebDir searches "web", "../web", "../../web" and ~/.eyetrack/web and
// returns the first directory found, or "".
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	homeWebDir := filepath.Join(homeDir, ".eyetrack", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
