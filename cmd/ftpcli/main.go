// Command ftpcli is an interactive FTP and explicit FTPS client.
//
//	ftpcli -config ftpcli.yml
//	ftpcli -config ftpcli.yml -exec "ls; get report.csv"
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/gonzalop/ftps"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var (
	configPath string
	execLine   string
)

func init() {
	flag.StringVar(&configPath, "config", "", "the path to the configuration file")
	flag.StringVar(&execLine, "exec", "", "semicolon separated commands to run instead of the interactive shell")
}

func main() {
	flag.Parse()
	if configPath == "" {
		logrus.Fatal("-config is missing.")
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		logrus.WithError(err).Fatal("fail to load config")
	}
	logger := newLogger(cfg.LogLevel)

	if cfg.User != "" && cfg.Password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		pw, err := readPassword(cfg.User)
		if err != nil {
			logger.WithError(err).Fatal("fail to read password")
		}
		cfg.Password = pw
	}

	// Interrupts are scoped per command by runCommand; SIGTERM ends the
	// whole session.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("fail to connect")
	}
	defer client.Close()

	sh := newShell(client, color.Output, cfg.tlsConfig())
	if wd, err := os.Getwd(); err == nil {
		sh.localDir = wd
	}

	if execLine != "" {
		if err := runBatch(ctx, sh, execLine); err != nil {
			sh.report(err)
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		if err := readLines(ctx, sh, bufio.NewScanner(os.Stdin)); err != nil {
			logger.WithError(err).Error("read commands")
		}
		return
	}

	color.New(color.FgGreen).Fprintln(color.Output, client.Welcome())
	fmt.Fprintln(color.Output, "Type 'help' for available commands")
	runPrompt(ctx, sh)
}

// connect dials, logs in and reports the negotiated protection.
func connect(ctx context.Context, cfg *Config, logger logrus.FieldLogger) (*ftps.Client, error) {
	opts, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}
	client, err := ftps.Dial(ctx, cfg.Address, opts...)
	if err != nil {
		return nil, err
	}

	user, password := cfg.User, cfg.Password
	if user == "" {
		user, password = "anonymous", "anonymous@"
	}
	if err := client.Login(ctx, user, password); err != nil {
		client.Close()
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"address": cfg.Address,
		"user":    user,
		"mode":    client.Mode(),
	}).Info("logged in")
	return client, nil
}

// runCommand runs one command line with its own interrupt scope, so that
// Ctrl-C aborts that command and the next one starts with a live context.
func runCommand(ctx context.Context, sh *shell, line string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return sh.execute(ctx, line)
}

// runBatch runs semicolon separated commands, stopping at the first error.
func runBatch(ctx context.Context, sh *shell, line string) error {
	for part := range strings.SplitSeq(line, ";") {
		err := runCommand(ctx, sh, part)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", strings.TrimSpace(part), err)
		}
	}
	return sh.client.Quit(ctx)
}

func readPassword(user string) (string, error) {
	fmt.Fprintf(os.Stderr, "Password for %s: ", user)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(pw), "\r\n"), nil
}

// readLines feeds commands from r when stdin is not a terminal.
func readLines(ctx context.Context, sh *shell, r *bufio.Scanner) error {
	for r.Scan() {
		err := runCommand(ctx, sh, r.Text())
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			sh.report(err)
		}
	}
	return r.Err()
}
