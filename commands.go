package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/soocke/study-buddy-go/app"
	"github.com/soocke/study-buddy-go/config"
	"github.com/soocke/study-buddy-go/debug"
	"github.com/soocke/study-buddy-go/domain/account"
	"github.com/soocke/study-buddy-go/domain/study"
)

const passwordEnv = "STUDYBUDDY_PASSWORD"

type cliEnv struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer

	lines *bufio.Reader
}

func (e *cliEnv) reader() *bufio.Reader {
	if e.lines == nil {
		e.lines = bufio.NewReader(e.in)
	}
	return e.lines
}

// prompt prints label and returns the trimmed line typed by the user.
func (e *cliEnv) prompt(label string) (string, error) {
	fmt.Fprint(e.out, label)
	line, err := e.reader().ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// password reads a secret from the environment, the terminal without echo, or a plain line.
func (e *cliEnv) password(label string) (string, error) {
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	return e.secret(label)
}

func (e *cliEnv) secret(label string) (string, error) {
	if f, ok := e.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(e.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(e.out)
		return string(b), err
	}
	return e.prompt(label)
}

func runMonitor(ctx context.Context, e *cliEnv, args []string) error {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	user := fs.String("user", "", "student username")
	headless := fs.Bool("headless", false, "run without a window, logging alerts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, logger := e.cfg, e.logger
	username := *user
	if username == "" {
		var err error
		if username, err = e.prompt("Username: "); err != nil {
			return err
		}
	}
	if err := authenticate(ctx, e, username); err != nil {
		return err
	}

	if cfg.Debug {
		debug.StartGoroutineLogger(ctx, 10*time.Second, logger)
		debug.StartMemLogger(ctx, 10*time.Second, logger)
	}

	svc, err := app.BuildServices(ctx, cfg, logger, username)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("shutdown", "error", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, svc.Loop.Metrics().Handler(), logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if *headless {
		return app.RunHeadless(ctx, svc)
	}
	app.NewApp(ctx, "Study Buddy", 960, 720, cfg, e.cfgPath, logger, svc).Start()
	return nil
}

func authenticate(ctx context.Context, e *cliEnv, username string) error {
	store, err := account.Open(ctx, e.cfg.AccountsDB, account.WithLogger(e.logger))
	if err != nil {
		return err
	}
	defer store.Close()
	pw, err := e.password("Password: ")
	if err != nil {
		return err
	}
	acc, err := store.Authenticate(ctx, username, pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "Welcome, %s!\n", acc.Name)
	return nil
}

func serveMetrics(addr string, h http.Handler, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", h)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()
	return srv
}

func runRegister(ctx context.Context, e *cliEnv, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	var a account.NewAccount
	fs.StringVar(&a.Username, "username", "", "login name")
	fs.StringVar(&a.Name, "name", "", "student name")
	fs.StringVar(&a.Phone, "phone", "", "student phone")
	fs.StringVar(&a.GuardianName, "guardian-name", "", "guardian name")
	fs.StringVar(&a.GuardianPhone, "guardian-phone", "", "guardian WhatsApp number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	fields := []struct {
		dst   *string
		label string
	}{
		{&a.Username, "Username: "},
		{&a.Name, "Name: "},
		{&a.Phone, "Phone: "},
		{&a.GuardianName, "Guardian name: "},
		{&a.GuardianPhone, "Guardian phone: "},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := e.prompt(f.label)
		if err != nil {
			return err
		}
		*f.dst = v
	}
	pw, err := e.password("Password: ")
	if err != nil {
		return err
	}
	a.Password = pw

	store, err := account.Open(ctx, e.cfg.AccountsDB, account.WithLogger(e.logger))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Register(ctx, a); err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			return fmt.Errorf("username %q already exists", a.Username)
		}
		return err
	}
	fmt.Fprintln(e.out, "Registration successful!")
	return nil
}

// runProfile edits the contact details and password of an existing account.
// Blank answers keep the current value.
func runProfile(ctx context.Context, e *cliEnv, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ContinueOnError)
	user := fs.String("user", "", "student username")
	var u account.ProfileUpdate
	fs.StringVar(&u.Phone, "phone", "", "student phone")
	fs.StringVar(&u.GuardianName, "guardian-name", "", "guardian name")
	fs.StringVar(&u.GuardianPhone, "guardian-phone", "", "guardian WhatsApp number")
	if err := fs.Parse(args); err != nil {
		return err
	}
	username := *user
	if username == "" {
		var err error
		if username, err = e.prompt("Username: "); err != nil {
			return err
		}
	}

	store, err := account.Open(ctx, e.cfg.AccountsDB, account.WithLogger(e.logger))
	if err != nil {
		return err
	}
	defer store.Close()
	pw, err := e.password("Password: ")
	if err != nil {
		return err
	}
	acc, err := store.Authenticate(ctx, username, pw)
	if err != nil {
		return err
	}

	fields := []struct {
		dst     *string
		label   string
		current string
	}{
		{&u.Phone, "Phone", acc.Phone},
		{&u.GuardianName, "Guardian name", acc.GuardianName},
		{&u.GuardianPhone, "Guardian phone", acc.GuardianPhone},
	}
	for _, f := range fields {
		if *f.dst != "" {
			continue
		}
		v, err := e.prompt(fmt.Sprintf("%s [%s]: ", f.label, f.current))
		if err != nil {
			return err
		}
		if v == "" {
			v = f.current
		}
		*f.dst = v
	}
	if u.NewPassword, err = e.secret("New password (blank to keep): "); err != nil {
		return err
	}
	if u.NewPassword != "" {
		if u.ConfirmPassword, err = e.secret("Confirm password: "); err != nil {
			return err
		}
	}

	if err := store.UpdateProfile(ctx, username, u); err != nil {
		return err
	}
	fmt.Fprintln(e.out, "Profile updated!")
	return nil
}

func (e *cliEnv) assistant() (*study.GeminiClient, error) {
	if e.cfg.GoogleAPIKey == "" {
		return nil, study.ErrNoAPIKey
	}
	return study.NewGeminiClient(e.cfg.GoogleAPIKey, e.cfg.GeminiModel, e.logger), nil
}

func runSummarize(ctx context.Context, e *cliEnv, args []string) error {
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	out := fs.String("out", "", "also write the summary to this file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("summarize: expected one notes file")
	}
	a, err := e.assistant()
	if err != nil {
		return err
	}
	return summarize(ctx, e, a, fs.Arg(0), *out)
}

func summarize(ctx context.Context, e *cliEnv, a study.Assistant, path, out string) error {
	text, err := study.LoadNotes(path)
	if err != nil {
		return err
	}
	summary, err := a.Summarize(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, summary)
	if out != "" {
		if err := study.SaveSummary(out, summary); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "Summary saved to %s\n", out)
	}
	return nil
}

func runQuiz(ctx context.Context, e *cliEnv, args []string) error {
	fs := flag.NewFlagSet("quiz", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("quiz: expected one notes file")
	}
	a, err := e.assistant()
	if err != nil {
		return err
	}
	return takeQuiz(ctx, e, a, fs.Arg(0))
}

func takeQuiz(ctx context.Context, e *cliEnv, a study.Assistant, path string) error {
	text, err := study.LoadNotes(path)
	if err != nil {
		return err
	}
	quiz, err := a.Quiz(ctx, text)
	if err != nil {
		return err
	}
	answers := make([]string, len(quiz))
	for i, q := range quiz {
		fmt.Fprintf(e.out, "\nQ%d: %s\n", i+1, q.Question)
		for j, opt := range q.Options {
			fmt.Fprintf(e.out, "  %d) %s\n", j+1, opt)
		}
		in, err := e.prompt("Answer: ")
		if err != nil {
			return err
		}
		answers[i] = resolveAnswer(q, in)
	}
	fmt.Fprintln(e.out)
	fmt.Fprintln(e.out, quiz.Score(answers))
	return nil
}

// resolveAnswer maps an option number, a letter or the option text to the option text.
func resolveAnswer(q study.Question, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1]
	}
	if len(input) == 1 {
		if i := int(strings.ToUpper(input)[0] - 'A'); i >= 0 && i < len(q.Options) {
			return q.Options[i]
		}
	}
	for _, opt := range q.Options {
		if strings.EqualFold(opt, input) {
			return opt
		}
	}
	return input
}
