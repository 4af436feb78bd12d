package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/gonzalop/ftps"
)

var errQuit = errors.New("quit")

// command is one shell command.
type command struct {
	name    string
	usage   string
	desc    string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, sh *shell, args []string) error
}

var commands = map[string]*command{}

func register(c *command) { commands[c.name] = c }

func init() {
	register(&command{name: "ls", usage: "ls [path]", desc: "List a remote directory", maxArgs: 1, run: cmdList})
	register(&command{name: "nls", usage: "nls [path]", desc: "List remote names only", maxArgs: 1, run: cmdNameList})
	register(&command{name: "cd", usage: "cd <path>", desc: "Change the remote directory", minArgs: 1, maxArgs: 1, run: cmdChangeDir})
	register(&command{name: "cdup", usage: "cdup", desc: "Change to the parent directory", run: cmdChangeDirUp})
	register(&command{name: "pwd", usage: "pwd", desc: "Print the remote directory", run: cmdCurrentDir})
	register(&command{name: "get", usage: "get <remote> [local]", desc: "Download a file", minArgs: 1, maxArgs: 2, run: cmdGet})
	register(&command{name: "reget", usage: "reget <remote> [local]", desc: "Resume a download", minArgs: 1, maxArgs: 2, run: cmdReget})
	register(&command{name: "put", usage: "put <local> [remote]", desc: "Upload a file", minArgs: 1, maxArgs: 2, run: cmdPut})
	register(&command{name: "append", usage: "append <local> [remote]", desc: "Append a file to a remote file", minArgs: 1, maxArgs: 2, run: cmdAppend})
	register(&command{name: "cat", usage: "cat <remote>", desc: "Print a remote file", minArgs: 1, maxArgs: 1, run: cmdCat})
	register(&command{name: "mkdir", usage: "mkdir <path>", desc: "Create a remote directory", minArgs: 1, maxArgs: 1, run: cmdMakeDir})
	register(&command{name: "rmdir", usage: "rmdir <path>", desc: "Remove a remote directory", minArgs: 1, maxArgs: 1, run: cmdRemoveDir})
	register(&command{name: "rm", usage: "rm <path>", desc: "Delete a remote file", minArgs: 1, maxArgs: 1, run: cmdDelete})
	register(&command{name: "rename", usage: "rename <from> <to>", desc: "Rename a remote file", minArgs: 2, maxArgs: 2, run: cmdRename})
	register(&command{name: "size", usage: "size <path>", desc: "Show a remote file size", minArgs: 1, maxArgs: 1, run: cmdSize})
	register(&command{name: "mtime", usage: "mtime <path>", desc: "Show a remote modification time", minArgs: 1, maxArgs: 1, run: cmdModTime})
	register(&command{name: "type", usage: "type [ascii|binary]", desc: "Show or set the transfer type", maxArgs: 1, run: cmdType})
	register(&command{name: "secure", usage: "secure", desc: "Secure the control connection (AUTH TLS)", run: cmdSecure})
	register(&command{name: "insecure", usage: "insecure", desc: "Clear the control connection (CCC)", run: cmdInsecure})
	register(&command{name: "status", usage: "status", desc: "Show session state", run: cmdStatus})
	register(&command{name: "feat", usage: "feat", desc: "List server features", run: cmdFeatures})
	register(&command{name: "syst", usage: "syst", desc: "Show the server system type", run: cmdSystem})
	register(&command{name: "noop", usage: "noop", desc: "Keep the session alive", run: cmdNoop})
	register(&command{name: "quote", usage: "quote <command> [args...]", desc: "Send a raw command", minArgs: 1, maxArgs: -1, run: cmdQuote})
	register(&command{name: "help", usage: "help", desc: "Show this help", run: cmdHelp})
	register(&command{name: "quit", usage: "quit", desc: "Close the session and exit", run: cmdQuit})
}

// shell executes command lines against one session.
type shell struct {
	client    *ftps.Client
	out       io.Writer
	tlsConfig *tls.Config
	localDir  string

	ok   *color.Color
	warn *color.Color
}

func newShell(client *ftps.Client, out io.Writer, tlsConfig *tls.Config) *shell {
	return &shell{
		client:    client,
		out:       out,
		tlsConfig: tlsConfig,
		ok:        color.New(color.FgGreen),
		warn:      color.New(color.FgRed),
	}
}

// execute runs one command line. It returns errQuit after quit.
func (sh *shell) execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	if name == "exit" || name == "bye" {
		name = "quit"
	}

	c, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		return fmt.Errorf("usage: %s", c.usage)
	}
	return c.run(ctx, sh, args)
}

// report prints err in the shell's error color.
func (sh *shell) report(err error) {
	var pe *ftps.ProtocolError
	if errors.As(err, &pe) {
		sh.warn.Fprintf(sh.out, "%d %s\n", pe.Code, pe.Response)
		return
	}
	sh.warn.Fprintln(sh.out, err)
}

func (sh *shell) local(name string) string {
	if sh.localDir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(sh.localDir, name)
}

func cmdList(ctx context.Context, sh *shell, args []string) error {
	entries, err := sh.client.List(ctx, optional(args, 0))
	if err != nil {
		return err
	}
	return renderEntries(sh.out, entries)
}

func cmdNameList(ctx context.Context, sh *shell, args []string) error {
	names, err := sh.client.NameList(ctx, optional(args, 0))
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(sh.out, name)
	}
	return nil
}

func cmdChangeDir(ctx context.Context, sh *shell, args []string) error {
	return sh.client.ChangeDir(ctx, args[0])
}

func cmdChangeDirUp(ctx context.Context, sh *shell, _ []string) error {
	return sh.client.ChangeDirUp(ctx)
}

func cmdCurrentDir(ctx context.Context, sh *shell, _ []string) error {
	dir, err := sh.client.CurrentDir(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, dir)
	return nil
}

func cmdGet(ctx context.Context, sh *shell, args []string) error {
	remote := args[0]
	local := sh.local(optional(args, 1, path.Base(remote)))
	start := time.Now()
	if err := sh.client.RetrieveTo(ctx, remote, local); err != nil {
		return err
	}
	sh.done("downloaded", remote, local, start)
	return nil
}

func cmdReget(ctx context.Context, sh *shell, args []string) error {
	remote := args[0]
	local := sh.local(optional(args, 1, path.Base(remote)))

	f, err := os.OpenFile(local, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := sh.client.RetrieveFrom(ctx, remote, f, info.Size()); err != nil {
		return err
	}
	sh.done("resumed", remote, local, start)
	return nil
}

func cmdPut(ctx context.Context, sh *shell, args []string) error {
	return sh.upload(ctx, args, ftps.StoreCreate)
}

func cmdAppend(ctx context.Context, sh *shell, args []string) error {
	return sh.upload(ctx, args, ftps.StoreAppend)
}

func (sh *shell) upload(ctx context.Context, args []string, mode ftps.StoreMode) error {
	local := sh.local(args[0])
	remote := optional(args, 1, filepath.Base(args[0]))

	f, err := os.Open(local)
	if err != nil {
		return err
	}
	defer f.Close()

	start := time.Now()
	if err := sh.client.StoreWithMode(ctx, remote, f, mode); err != nil {
		return err
	}
	sh.done("uploaded", local, remote, start)
	return nil
}

func (sh *shell) done(verb, from, to string, start time.Time) {
	sh.ok.Fprintf(sh.out, "%s %s -> %s in %s\n", verb, from, to, time.Since(start).Round(time.Millisecond))
}

func cmdCat(ctx context.Context, sh *shell, args []string) error {
	return sh.client.Retrieve(ctx, args[0], sh.out)
}

func cmdMakeDir(ctx context.Context, sh *shell, args []string) error {
	return sh.client.MakeDir(ctx, args[0])
}

func cmdRemoveDir(ctx context.Context, sh *shell, args []string) error {
	return sh.client.RemoveDir(ctx, args[0])
}

func cmdDelete(ctx context.Context, sh *shell, args []string) error {
	return sh.client.Delete(ctx, args[0])
}

func cmdRename(ctx context.Context, sh *shell, args []string) error {
	return sh.client.Rename(ctx, args[0], args[1])
}

func cmdSize(ctx context.Context, sh *shell, args []string) error {
	size, err := sh.client.Size(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "%d (%s)\n", size, formatSize(size))
	return nil
}

func cmdModTime(ctx context.Context, sh *shell, args []string) error {
	t, err := sh.client.ModTime(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, t.Format(time.RFC3339))
	return nil
}

func cmdType(ctx context.Context, sh *shell, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(sh.out, sh.client.TransferType())
		return nil
	}
	t, err := parseTransferType(args[0])
	if err != nil {
		return err
	}
	return sh.client.SetType(ctx, t)
}

func cmdSecure(ctx context.Context, sh *shell, _ []string) error {
	if err := sh.client.EnterSecure(ctx, sh.tlsConfig); err != nil {
		return err
	}
	if cs, ok := sh.client.TLSConnectionState(); ok {
		sh.ok.Fprintf(sh.out, "control connection secured (%s)\n", tls.VersionName(cs.Version))
	}
	return nil
}

func cmdInsecure(ctx context.Context, sh *shell, _ []string) error {
	if err := sh.client.LeaveSecure(ctx); err != nil {
		return err
	}
	sh.warn.Fprintln(sh.out, "control connection is now in the clear")
	return nil
}

func cmdStatus(_ context.Context, sh *shell, _ []string) error {
	fmt.Fprintf(sh.out, "state: %s\nmode: %s\ntype: %s\n",
		sh.client.State(), sh.client.Mode(), sh.client.TransferType())
	return nil
}

func cmdFeatures(ctx context.Context, sh *shell, _ []string) error {
	feats, err := sh.client.Features(ctx)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(feats))
	for name := range feats {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := feats[name]; v != "" {
			fmt.Fprintf(sh.out, "%s %s\n", name, v)
		} else {
			fmt.Fprintln(sh.out, name)
		}
	}
	return nil
}

func cmdSystem(ctx context.Context, sh *shell, _ []string) error {
	sys, err := sh.client.System(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(sh.out, sys)
	return nil
}

func cmdNoop(ctx context.Context, sh *shell, _ []string) error {
	return sh.client.Noop(ctx)
}

func cmdQuote(ctx context.Context, sh *shell, args []string) error {
	reply, err := sh.client.Quote(ctx, strings.ToUpper(args[0]), args[1:]...)
	if err != nil {
		return err
	}
	for _, line := range reply.Lines {
		fmt.Fprintln(sh.out, line)
	}
	return nil
}

func cmdHelp(_ context.Context, sh *shell, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(sh.out, "  %-26s %s\n", c.usage, c.desc)
	}
	return nil
}

func cmdQuit(ctx context.Context, sh *shell, _ []string) error {
	if err := sh.client.Quit(ctx); err != nil {
		sh.report(err)
	}
	return errQuit
}

// optional returns args[i], or def (or "") when absent.
func optional(args []string, i int, def ...string) string {
	if i < len(args) {
		return args[i]
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}
