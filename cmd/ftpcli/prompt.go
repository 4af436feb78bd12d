package main

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/gonzalop/ftps"
)

// completer suggests command names, then remote names for the argument.
// Remote names are cached per directory and refreshed after cd.
type completer struct {
	sh       *shell
	commands []prompt.Suggest
	remote   []prompt.Suggest
	cached   bool
}

func newCompleter(sh *shell) *completer {
	c := &completer{sh: sh}
	for name, cmd := range commands {
		c.commands = append(c.commands, prompt.Suggest{Text: name, Description: cmd.desc})
	}
	sort.Slice(c.commands, func(i, j int) bool { return c.commands[i].Text < c.commands[j].Text })
	return c
}

func (c *completer) Complete(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	words := strings.Fields(text)
	if len(words) == 0 || (len(words) == 1 && !strings.HasSuffix(text, " ")) {
		return prompt.FilterHasPrefix(c.commands, d.GetWordBeforeCursor(), true)
	}

	switch strings.ToLower(words[0]) {
	case "cd", "ls", "nls", "get", "reget", "cat", "rm", "rmdir", "rename", "size", "mtime":
		return prompt.FilterHasPrefix(c.remoteNames(), d.GetWordBeforeCursor(), false)
	case "type":
		return prompt.FilterHasPrefix([]prompt.Suggest{
			{Text: "ascii", Description: "CRLF line endings on the wire"},
			{Text: "binary", Description: "bytes unchanged"},
		}, d.GetWordBeforeCursor(), true)
	}
	return nil
}

func (c *completer) remoteNames() []prompt.Suggest {
	if c.cached {
		return c.remote
	}
	c.cached = true
	c.remote = nil

	if c.sh.client.State() != ftps.StateReady {
		return nil
	}
	entries, err := c.sh.client.List(context.Background(), "")
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if e.Type == ftps.EntryUnknown {
			continue
		}
		c.remote = append(c.remote, prompt.Suggest{Text: e.Name, Description: e.Type.String()})
	}
	return c.remote
}

func (c *completer) invalidate() { c.cached = false }

// runPrompt runs the interactive loop until quit or a closed session.
func runPrompt(ctx context.Context, sh *shell) {
	comp := newCompleter(sh)
	exit := false

	executor := func(line string) {
		err := runCommand(ctx, sh, line)
		if errors.Is(err, errQuit) {
			exit = true
			return
		}
		if err != nil {
			sh.report(err)
		}
		switch strings.ToLower(firstWord(line)) {
		case "cd", "cdup", "put", "append", "rm", "rmdir", "mkdir", "rename":
			comp.invalidate()
		}
		if sh.client.State() == ftps.StateClosed {
			sh.warn.Fprintln(sh.out, "session closed")
			exit = true
		}
	}

	p := prompt.New(
		executor,
		comp.Complete,
		prompt.OptionTitle("ftpcli"),
		prompt.OptionLivePrefix(func() (string, bool) {
			if sh.client.Mode() == ftps.ModeSecured {
				return "ftps> ", true
			}
			return "ftp> ", true
		}),
		prompt.OptionPrefixTextColor(prompt.Green),
		prompt.OptionPreviewSuggestionTextColor(prompt.Blue),
		prompt.OptionSelectedSuggestionBGColor(prompt.LightGray),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionCompletionWordSeparator(" "),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return exit }),
	)
	p.Run()
}

func firstWord(line string) string {
	word, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	return word
}
