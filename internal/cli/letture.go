package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"termosifoni/internal/core"
	"termosifoni/internal/csvio"
	"termosifoni/internal/sheets"
)

// ReadingsStore is the subset of the record store the offline commands use.
type ReadingsStore interface {
	Snapshot(ctx context.Context) core.Collection
	ImportMerge(ctx context.Context, in core.Collection) (core.MergeResult, error)
	ResetAll(ctx context.Context) error
}

// CommandConfig holds the parsed letture command line.
type CommandConfig struct {
	Command string
	Args    []string
	Yes     bool
}

var ErrUsage = errors.New("usage: letture [-yes] export [file] | import <file> | summary | reset | restore-from-sheet")

// ParseCommand parses flags and the subcommand name.
func ParseCommand(fs *flag.FlagSet, args []string) (CommandConfig, error) {
	var cfg CommandConfig
	fs.BoolVar(&cfg.Yes, "yes", false, "confirm destructive commands")
	if err := fs.Parse(args); err != nil {
		return CommandConfig{}, err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return CommandConfig{}, ErrUsage
	}
	cfg.Command, cfg.Args = rest[0], rest[1:]
	return cfg, nil
}

// RunCommand executes one offline command against store. mirror is only
// needed by restore-from-sheet and may be nil otherwise.
func RunCommand(ctx context.Context, cfg CommandConfig, store ReadingsStore, mirror sheets.MirrorReader, out, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	switch cfg.Command {
	case "export":
		return runExport(ctx, cfg.Args, store, out)
	case "import":
		if len(cfg.Args) != 1 {
			return ErrUsage
		}
		return runImport(ctx, cfg.Args[0], store, out, errOut)
	case "summary":
		return runSummary(ctx, store, out)
	case "reset":
		if !cfg.Yes {
			return errors.New("reset deletes every reading: rerun with -yes to confirm")
		}
		if err := store.ResetAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Dati azzerati.")
		return nil
	case "restore-from-sheet":
		if mirror == nil {
			return errors.New("no spreadsheet configured")
		}
		return runRestore(ctx, store, mirror, out)
	default:
		return ErrUsage
	}
}

func runExport(ctx context.Context, args []string, store ReadingsStore, out io.Writer) error {
	c := store.Snapshot(ctx)
	if len(args) == 0 {
		return csvio.Encode(out, c)
	}
	f, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("create %s: %w", args[0], err)
	}
	if err := csvio.Encode(f, c); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(out, "Esportati %d mesi in %s\n", len(c), args[0])
	return nil
}

func runImport(ctx context.Context, path string, store ReadingsStore, out, errOut io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	in, warnings := csvio.Decode(f)
	for _, w := range warnings {
		fmt.Fprintln(errOut, "warning:", w)
	}
	if len(in) == 0 {
		return errors.New("CSV non valido o vuoto")
	}
	res, err := store.ImportMerge(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Importati %d mesi (%d nuovi, %d sostituiti)\n", len(in), len(res.Added), len(res.Replaced))
	return nil
}

func runRestore(ctx context.Context, store ReadingsStore, mirror sheets.MirrorReader, out io.Writer) error {
	in, err := mirror.ReadReadings(ctx)
	if err != nil {
		return fmt.Errorf("read sheet: %w", err)
	}
	if len(in) == 0 {
		return errors.New("the sheet holds no readings")
	}
	res, err := store.ImportMerge(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Ripristinati %d mesi (%d nuovi, %d sostituiti)\n", len(in), len(res.Added), len(res.Replaced))
	return nil
}

func runSummary(ctx context.Context, store ReadingsStore, out io.Writer) error {
	d := core.Derive(store.Snapshot(ctx))
	if len(d.Rows) == 0 {
		fmt.Fprintln(out, "Nessun dato.")
		return nil
	}
	p := message.NewPrinter(language.Italian)
	num := func(v float64) string {
		return p.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Mese\t"+strings.Join(core.MeterNames[:], "\t")+"\tTotale\t")
	for _, row := range d.Rows {
		cols := []string{core.MonthLabel(row.Month)}
		for _, v := range row.Deltas {
			cols = append(cols, num(v))
		}
		cols = append(cols, num(row.Total))
		fmt.Fprintln(tw, strings.Join(cols, "\t")+"\t")
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nConsumo totale finora: %s\n", num(d.GrandTotal))
	fmt.Fprintln(out, "Ripartizione per radiatore:")
	for k, v := range d.TotalsByMeter {
		fmt.Fprintf(out, "  %s: %s\n", core.MeterNames[k], num(v))
	}
	return nil
}
