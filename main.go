package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/study-buddy-go/config"
)

const usage = `usage: studybuddy [-config path] [-env file] <command> [flags]

commands:
  monitor    watch the camera for phone use and dozing (default)
  register   create a student account
  profile    edit contact details or change the password
  summarize  summarize a notes file
  quiz       generate and take a quiz from a notes file
`

func main() {
	fs := flag.NewFlagSet("studybuddy", flag.ExitOnError)
	cfgPath := fs.String("config", "config.json", "config file (.json or .yaml)")
	envPath := fs.String("env", ".env", "dotenv file with secrets")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
	}
	if err := cfg.ApplyEnv(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(os.Stderr, level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd, args := "monitor", fs.Args()
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	env := &cliEnv{cfg: cfg, cfgPath: *cfgPath, logger: logger, in: os.Stdin, out: os.Stdout}
	switch cmd {
	case "monitor":
		err = runMonitor(ctx, env, args)
	case "register":
		err = runRegister(ctx, env, args)
	case "profile":
		err = runProfile(ctx, env, args)
	case "summarize":
		err = runSummarize(ctx, env, args)
	case "quiz":
		err = runQuiz(ctx, env, args)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", cmd, "error", err)
		os.Exit(1)
	}
}
