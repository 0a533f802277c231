// Command importctl creates import sessions and drives them to completion
// against a running import server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvimport/internal/client"
	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/logging"
)

type globalOptions struct {
	server   string
	apiKey   string
	logLevel string
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Run batched CSV imports against an import server",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Setup(opts.logLevel, "text")
		},
	}

	root.PersistentFlags().StringVar(&opts.server, "server", envOr("CSVIMPORT_SERVER", "http://localhost:8080"), "Import server base URL")
	root.PersistentFlags().StringVar(&opts.apiKey, "api-key", os.Getenv("CSVIMPORT_API_KEY"), "API key sent as X-API-Key")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		newCreateCmd(opts),
		newRunCmd(opts),
		newImportCmd(opts),
		newStatusCmd(opts),
		newDeleteCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func (o *globalOptions) client() *client.Client {
	return client.New(o.server, o.apiKey)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type createFlags struct {
	schema        string
	parent        int64
	delimiter     string
	enclosure     string
	policy        string
	createMissing bool
	mapping       string
	maxRows       int
	batchSize     int
}

func (f *createFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.schema, "schema", "", "Schema id (required)")
	cmd.Flags().Int64Var(&f.parent, "parent", 0, "Parent record id")
	cmd.Flags().StringVar(&f.delimiter, "delimiter", ",", `Field delimiter (use "\t" for tab)`)
	cmd.Flags().StringVar(&f.enclosure, "enclosure", `"`, "Field enclosure")
	cmd.Flags().StringVar(&f.policy, "policy", "skip", "Duplicate policy: skip, create_unique, modify")
	cmd.Flags().BoolVar(&f.createMissing, "create-missing-references", false, "Create referenced records that do not exist")
	cmd.Flags().StringVar(&f.mapping, "mapping", "", "Comma-separated field per column; empty entries ignore a column. Default: suggested from the header")
	cmd.Flags().IntVar(&f.maxRows, "max-rows", 0, "Stop after this many rows (0 = all)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", -1, "Rows per batch (0 = single batch, default: server setting)")
	_ = cmd.MarkFlagRequired("schema")
}

func (f *createFlags) options() client.CreateOptions {
	opts := client.CreateOptions{
		Schema:                  f.schema,
		Parent:                  f.parent,
		Delimiter:               f.delimiter,
		Enclosure:               f.enclosure,
		Policy:                  f.policy,
		CreateMissingReferences: f.createMissing,
		MaxRows:                 f.maxRows,
	}
	if f.mapping != "" {
		opts.Mapping = strings.Split(f.mapping, ",")
		for i := range opts.Mapping {
			opts.Mapping[i] = strings.TrimSpace(opts.Mapping[i])
		}
	}
	if f.batchSize >= 0 {
		bs := f.batchSize
		opts.BatchSize = &bs
	}
	return opts
}

func createFromFile(ctx context.Context, c *client.Client, flags *createFlags, path string) (*client.Import, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.CreateImport(ctx, flags.options(), filepath.Base(path), f)
}

func newCreateCmd(opts *globalOptions) *cobra.Command {
	flags := &createFlags{}
	cmd := &cobra.Command{
		Use:   "create FILE",
		Short: "Upload a CSV file and set up an import without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := createFromFile(cmd.Context(), opts.client(), flags, args[0])
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), imp)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	var start int
	cmd := &cobra.Command{
		Use:   "run IMPORT_ID",
		Short: "Run the batches of an import, optionally resuming at a later batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return drive(cmd.Context(), cmd.OutOrStdout(), opts.client(), args[0], start)
		},
	}
	cmd.Flags().IntVar(&start, "start", 0, "Batch to start at")
	return cmd
}

func newImportCmd(opts *globalOptions) *cobra.Command {
	flags := &createFlags{}
	var keep bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Create an import and run it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := opts.client()

			imp, err := createFromFile(ctx, c, flags, args[0])
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), imp)

			runErr := drive(ctx, cmd.OutOrStdout(), c, imp.ID, 0)
			if runErr == nil && !keep {
				if err := c.DeleteImport(context.WithoutCancel(ctx), imp.ID); err != nil {
					slog.Warn("could not end import session", "import_id", imp.ID, "error", err)
				}
			}
			return runErr
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&keep, "keep", false, "Keep the import session after it finishes")
	return cmd
}

func newStatusCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status IMPORT_ID",
		Short: "Show an import session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			imp, err := opts.client().GetImport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printImport(cmd.OutOrStdout(), imp)
			return nil
		},
	}
}

func newDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete IMPORT_ID",
		Short: "End an import session and remove its source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.client().DeleteImport(cmd.Context(), args[0])
		},
	}
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	var (
		schema string
		parent int64
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the records of a schema under a parent as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return opts.client().Export(cmd.Context(), parent, schema, w)
		},
	}
	cmd.Flags().StringVar(&schema, "schema", "", "Schema id (required)")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Parent record id")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "Output file")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func drive(ctx context.Context, out io.Writer, c *client.Client, id string, start int) error {
	totals, err := c.Drive(ctx, id, start, func(_ int, resp *core.BatchResponse) {
		fmt.Fprintf(out, "%s %s\n", resp.Counter, resp.Usage)
	})
	if totals != nil {
		printTotals(out, totals)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintf(out, "stopped; resume with: importctl run %s --start %d\n", id, start+totals.Batches)
	}
	return err
}

func printImport(out io.Writer, imp *client.Import) {
	fmt.Fprintf(out, "import %s\n", imp.ID)
	fmt.Fprintf(out, "  file:     %s (%d rows, %d data, %d batches of %d)\n",
		imp.FileName, imp.NumRows, imp.NumDataRows, imp.NumBatches, imp.BatchSize)
	fmt.Fprintf(out, "  schema:   %s under parent %d, policy %s\n", imp.SchemaID, imp.ParentID, imp.Policy)
	for i, h := range imp.Header {
		field := ""
		if i < len(imp.Mapping) {
			field = imp.Mapping[i]
		}
		if field == "" {
			field = "(ignored)"
		}
		fmt.Fprintf(out, "  column %-3d %-24s -> %s\n", i+1, h, field)
	}
}

func printTotals(out io.Writer, t *client.Totals) {
	fmt.Fprintf(out, "batches: %d, imported: %d, created: %d, updated: %d, skipped: %d, failed: %d in %s\n",
		t.Batches, t.Imported, t.Created, t.Modified, t.Skipped, t.Failed, t.Elapsed.Round(time.Millisecond))
	if t.Truncated {
		fmt.Fprintln(out, "stopped at max rows")
	}
	for _, e := range t.Errors {
		fmt.Fprintf(out, "  line %d %q: [%s] %s\n", e.Line, e.Name, e.Code, e.Message)
	}
}
