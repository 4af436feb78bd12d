package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gonzalop/ftps"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// renderEntries writes a listing as a table.
func renderEntries(w io.Writer, entries []*ftps.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "Directory is empty")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Name", "Type", "Size")
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.MaxWidth = 0
		cfg.Header = tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		}
		cfg.Row = tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		}
	})

	for _, e := range entries {
		name, size := e.Name, formatSize(e.Size)
		switch e.Type {
		case ftps.EntryDir:
			name += "/"
			size = "-"
		case ftps.EntryLink:
			if e.Target != "" {
				name += " -> " + e.Target
			}
		case ftps.EntryUnknown:
			size = ""
		}
		if err := table.Append([]string{name, e.Type.String(), size}); err != nil {
			return err
		}
	}
	return table.Render()
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return strconv.FormatInt(size, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
