package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"sheets/internal/app"
	"sheets/internal/config"
	"sheets/internal/domain"
	"sheets/internal/editor"
	"sheets/internal/logger"
	"sheets/internal/storage"
)

const usage = `sheets: revision sheet store

Usage: sheets [global flags] <command> [args]

Commands:
  list                                  list sheets, most recent first
  show <id>                             print a sheet with block labels
  labels <id>                           print block labels
  new [-title T] [-subtitle S]          create a sheet
  add-block <id> <type> [flags]         add a block (types: %s)
  move-block <id> <block> up|down       swap a block with its neighbour
  duplicate-block <id> <block>          copy a block after itself
  delete-block <id> <block> [-y]        delete a block
  import <file|url> [-into id] [-append]
                                        import sheet JSON as a new sheet, or load a
                                        template into an existing one
  export <id> [-o file]                 write sheet JSON (stdout with -o -)
  edit-source <id> <file>               replace a sheet with edited JSON
  rename <id> <title>                   change a sheet title
  delete <id> [-y]                      delete a sheet
  seed [manifest]                       install manifest sheets not stored yet
  rebuild-index                         regenerate the sheet list from stored sheets
  watch                                 import files dropped into the inbox
  mcp                                   serve MCP on stdin/stdout

Global flags:
`

func main() {
	cfg := config.Load()

	global := flag.NewFlagSet("sheets", flag.ExitOnError)
	backend := global.String("backend", string(cfg.Backend), "storage backend: sqlite, memory, redis, postgres, mysql, mongo")
	global.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "data directory")
	global.StringVar(&cfg.DSN, "dsn", cfg.DSN, "sqlite path or SQL connection string")
	global.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	global.BoolVar(&cfg.LogPretty, "pretty", cfg.LogPretty, "human-readable logs")
	global.Usage = func() {
		types := make([]string, 0)
		for _, t := range domain.AllBlockTypes() {
			types = append(types, string(t))
		}
		fmt.Fprintf(global.Output(), usage, strings.Join(types, ", "))
		global.PrintDefaults()
	}
	_ = global.Parse(os.Args[1:])
	cfg.Backend = storage.Backend(*backend)

	args := global.Args()
	if len(args) == 0 {
		global.Usage()
		os.Exit(2)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a := app.New(cfg, log)
	if err := a.Startup(ctx); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	err := run(ctx, a, args[0], args[1:])

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if serr := a.Shutdown(shutdownCtx); serr != nil {
		log.Warn().Err(serr).Msg("shutdown")
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, cmd string, args []string) error {
	switch cmd {
	case "list":
		return cmdList(ctx, a)
	case "show":
		return cmdShow(ctx, a, args)
	case "labels":
		return cmdLabels(ctx, a, args)
	case "new":
		return cmdNew(ctx, a, args)
	case "add-block":
		return cmdAddBlock(ctx, a, args)
	case "move-block":
		return cmdMoveBlock(ctx, a, args)
	case "duplicate-block":
		return cmdDuplicateBlock(ctx, a, args)
	case "delete-block":
		return cmdDeleteBlock(ctx, a, args)
	case "import":
		return cmdImport(ctx, a, args)
	case "export":
		return cmdExport(ctx, a, args)
	case "edit-source":
		if len(args) != 2 {
			return errors.New("usage: edit-source <id> <file>")
		}
		return a.EditSourceFile(ctx, args[0], args[1])
	case "rename":
		if len(args) < 2 {
			return errors.New("usage: rename <id> <title>")
		}
		return a.RenameSheet(ctx, args[0], strings.Join(args[1:], " "))
	case "delete":
		return cmdDelete(ctx, a, args)
	case "seed":
		return cmdSeed(ctx, a, args)
	case "rebuild-index":
		metas, err := a.RebuildIndex(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("index rebuilt: %d sheets\n", len(metas))
		return nil
	case "watch":
		return a.RunWatch(ctx)
	case "mcp":
		return a.ServeMCP(ctx)
	default:
		return fmt.Errorf("unknown command %q (run sheets -h)", cmd)
	}
}

// parseInterspersed parses fs while allowing flags after positional args.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func cmdList(ctx context.Context, a *app.App) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSUBTITLE\tBLOCKS\tUPDATED")
	for _, m := range a.ListSheets(ctx) {
		updated := "-"
		if m.UpdatedAt > 0 {
			updated = time.UnixMilli(m.UpdatedAt).Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", m.ID, m.Title, m.Subtitle, m.BlockCount, updated)
	}
	return w.Flush()
}

func cmdShow(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: show <id>")
	}
	sheet, err := a.GetSheet(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n%s\n\n", sheet.Title, sheet.Subtitle)
	labels := editor.LabelBlocks(sheet.Blocks)
	for i, b := range sheet.Blocks {
		heading := labels[i].Heading
		if b.Title != "" {
			heading += ": " + b.Title
		}
		fmt.Println(heading)
		if b.Content != "" {
			fmt.Println(indent(b.Content, "    "))
		}
		if len(b.Zones) > 0 || len(b.Images) > 0 {
			fmt.Printf("    [%d answer zones, %d images]\n", len(b.Zones), len(b.Images))
		}
	}
	return nil
}

func cmdLabels(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: labels <id>")
	}
	labels, err := a.Labels(ctx, args[0])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, l := range labels {
		fmt.Fprintf(w, "%s\t%s\t%s\n", l.Heading, l.Title, l.ID)
	}
	return w.Flush()
}

func cmdNew(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	title := fs.String("title", "", "sheet title")
	subtitle := fs.String("subtitle", "", "sheet subtitle")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sheet, err := a.NewSheet(ctx, *title, *subtitle)
	if err != nil {
		return err
	}
	fmt.Println(sheet.ID)
	return nil
}

func cmdAddBlock(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("add-block", flag.ContinueOnError)
	in := app.BlockInput{}
	fs.StringVar(&in.Title, "title", "", "block title")
	fs.StringVar(&in.Content, "content", "", "block content")
	fs.IntVar(&in.At, "at", -1, "insert position, 0-based (default: end)")
	fs.IntVar(&in.Zones, "zones", 0, "answer zones to add")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return errors.New("usage: add-block <id> <type> [-title T] [-content C] [-at N] [-zones N]")
	}
	in.Type = pos[1]
	id, err := a.AddBlock(ctx, pos[0], in)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func cmdMoveBlock(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 3 {
		return errors.New("usage: move-block <id> <block> up|down")
	}
	dir, ok := editor.ParseDirection(args[2])
	if !ok {
		return fmt.Errorf("direction must be up or down, got %q", args[2])
	}
	moved, err := a.MoveBlock(ctx, args[0], args[1], dir)
	if err != nil {
		return err
	}
	if !moved {
		fmt.Println("block is already at that end")
	}
	return nil
}

func cmdDuplicateBlock(ctx context.Context, a *app.App, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: duplicate-block <id> <block>")
	}
	id, err := a.DuplicateBlock(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func cmdDeleteBlock(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("delete-block", flag.ContinueOnError)
	yes := fs.Bool("y", false, "do not ask for confirmation")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 2 {
		return errors.New("usage: delete-block <id> <block> [-y]")
	}
	deleted, err := a.DeleteBlock(ctx, pos[0], pos[1], confirmer(*yes, os.Stdin, os.Stderr))
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Println("cancelled")
	}
	return nil
}

func cmdImport(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	into := fs.String("into", "", "import into this sheet instead of creating one")
	appendMode := fs.Bool("append", false, "with -into, append blocks instead of replacing them")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: import <file|url> [-into id] [-append]")
	}

	if *into == "" {
		id, err := a.ImportFile(ctx, pos[0])
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	}
	mode := editor.ImportReplace
	if *appendMode {
		mode = editor.ImportAppend
	}
	n, err := a.ImportInto(ctx, *into, pos[0], mode)
	if err != nil {
		return err
	}
	fmt.Printf("%d blocks imported\n", n)
	return nil
}

func cmdExport(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("o", "", "output file (default: derived from the title, - for stdout)")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: export <id> [-o file]")
	}
	data, name, err := a.Export(ctx, pos[0])
	if err != nil {
		return err
	}
	switch *out {
	case "-":
		_, err = os.Stdout.Write(append(data, '\n'))
		return err
	case "":
		*out = name
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Println(*out)
	return nil
}

func cmdDelete(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	yes := fs.Bool("y", false, "do not ask for confirmation")
	pos, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return errors.New("usage: delete <id> [-y]")
	}
	sheet, err := a.GetSheet(ctx, pos[0])
	if err != nil {
		return err
	}
	if !confirmer(*yes, os.Stdin, os.Stderr).Confirm(fmt.Sprintf("Delete %q permanently?", sheet.Title)) {
		fmt.Println("cancelled")
		return nil
	}
	return a.DeleteSheet(ctx, sheet.ID)
}

func cmdSeed(ctx context.Context, a *app.App, args []string) error {
	manifest := a.Config().Manifest
	if len(args) > 0 {
		manifest = args[0]
	}
	if manifest == "" {
		return errors.New("usage: seed <manifest> (or set SHEETS_MANIFEST)")
	}
	report, err := a.Seed(ctx, manifest)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// confirmer asks on the terminal unless yes is set.
func confirmer(yes bool, in io.Reader, out io.Writer) editor.Confirmer {
	if yes {
		return editor.ConfirmFunc(func(string) bool { return true })
	}
	reader := bufio.NewReader(in)
	return editor.ConfirmFunc(func(prompt string) bool {
		fmt.Fprintf(out, "%s [y/N] ", prompt)
		line, _ := reader.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes", "o", "oui":
			return true
		}
		return false
	})
}

func indent(s, prefix string) string {
	return prefix + strings.ReplaceAll(s, "\n", "\n"+prefix)
}
