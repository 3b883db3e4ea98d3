// Package cli implements the rowkit command line: schema inspection, row
// browsing and editing, and raw SQL execution over any configured connection.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gaborage/go-rowkit/config"
	"github.com/gaborage/go-rowkit/database"
	"github.com/gaborage/go-rowkit/database/types"
	"github.com/gaborage/go-rowkit/logger"
	"github.com/gaborage/go-rowkit/observability"
)

// Version is set at build time.
var Version = "dev"

const (
	outputTable = "table"
	outputJSON  = "json"
)

// flagKeys maps root flags onto configuration keys.
var flagKeys = map[string]string{
	"type":        "database.type",
	"host":        "database.host",
	"port":        "database.port",
	"database":    "database.database",
	"username":    "database.username",
	"password":    "database.password",
	"dsn":         "database.connectionstring",
	"schema-file": "database.schemafile",
	"log-level":   "log.level",
	"telemetry":   "observability.enabled",
}

// Option customizes the command tree.
type Option func(*session)

// WithConnector replaces database.NewDriver when opening connections.
func WithConnector(c database.Connector) Option {
	return func(s *session) {
		s.connector = c
	}
}

// session is the state shared by every subcommand of one invocation.
type session struct {
	connector database.Connector

	configFile string
	connection string
	output     string

	manager   *database.Manager
	driver    types.Driver
	telemetry observability.Provider
	span      trace.Span

	// ctx carries the database operation counters of this invocation.
	ctx context.Context
	log logger.Logger
}

func (s *session) open(cmd *cobra.Command) error {
	if !slices.Contains([]string{outputTable, outputJSON}, s.output) {
		return fmt.Errorf("unsupported output format %q (supported: %s, %s)", s.output, outputTable, outputJSON)
	}

	cfg, err := config.Load(
		config.WithFile(s.configFile),
		config.WithFlags(cmd.Root().PersistentFlags(), flagKeys),
	)
	if err != nil {
		return err
	}

	if err := s.startTelemetry(cmd, cfg); err != nil {
		return err
	}

	s.ctx = logger.WithDBCounter(cmd.Context())
	cmd.SetContext(s.ctx)

	s.log = logger.New(cfg.Log.Level, cfg.Log.Pretty, logger.WithOutput(cmd.ErrOrStderr()))
	s.manager = database.NewManager(config.NewConnectionStore(cfg), s.log, database.ManagerOptions{
		MaxSize: cfg.Manager.MaxSize,
		IdleTTL: cfg.Manager.IdleTTL,
	}, s.connector)

	s.driver, err = s.manager.Get(cmd.Context(), s.connection)
	return err
}

// startTelemetry installs the exporters and opens a span covering the
// command, so database spans recorded by the drivers nest under it.
func (s *session) startTelemetry(cmd *cobra.Command, cfg *config.Config) error {
	var obs observability.Config
	if err := cfg.Unmarshal("observability", &obs); err != nil {
		return err
	}
	if obs.Service.Version == "" {
		obs.Service.Version = Version
	}
	if obs.Environment == "" {
		obs.Environment = cfg.App.Env
	}

	provider, err := observability.NewProvider(&obs, observability.WithWriter(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	s.telemetry = provider

	ctx, span := otel.Tracer("go-rowkit/cli").Start(cmd.Context(), "rowkit "+cmd.Name())
	cmd.SetContext(ctx)
	s.span = span
	return nil
}

// close releases connections and flushes telemetry. cmdErr marks the command span.
func (s *session) close(cmdErr error) error {
	if s.log != nil && s.ctx != nil {
		s.log.Debug().
			Int64("db_operations", logger.GetDBCounter(s.ctx)).
			Dur("db_elapsed", time.Duration(logger.GetDBElapsed(s.ctx))).
			Msg("Command finished")
	}

	var errs []error
	if s.manager != nil {
		errs = append(errs, s.manager.Close())
	}
	if s.span != nil {
		if cmdErr != nil {
			s.span.RecordError(cmdErr)
			s.span.SetStatus(codes.Error, cmdErr.Error())
		}
		s.span.End()
	}
	errs = append(errs, observability.Shutdown(s.telemetry, 0))
	return errors.Join(errs...)
}

func (s *session) table(ctx context.Context, name string) (types.Table, error) {
	schema, err := s.driver.GetSchema(ctx)
	if err != nil {
		return types.Table{}, err
	}
	table, ok := schema.Table(name)
	if !ok {
		return types.Table{}, fmt.Errorf("table %q not found", name)
	}
	return table, nil
}

// NewRootCmd builds the command tree. The returned cleanup closes every
// connection opened while executing it; pass it the command's error.
func NewRootCmd(opts ...Option) (*cobra.Command, func(error) error) {
	s := &session{}
	for _, opt := range opts {
		opt(s)
	}

	root := &cobra.Command{
		Use:   "rowkit",
		Short: "Browse and edit rows of MySQL and PostgreSQL databases",
		Long: `rowkit inspects the schema of a MySQL or PostgreSQL database, pages through
filtered rows, inserts, updates and deletes single rows, and runs ad-hoc SQL.

Connection settings come from rowkit.yaml, ROWKIT_* environment variables and
the flags below, in increasing priority.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return s.open(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&s.configFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	pf.StringVarP(&s.connection, "connection", "c", "", "named connection from the connections section (default: database)")
	pf.StringVarP(&s.output, "output", "o", outputTable, "output format: table, json")
	pf.String("type", "", "database type: mysql, postgresql")
	pf.String("host", "", "database host")
	pf.Int("port", 0, "database port")
	pf.String("database", "", "database name")
	pf.String("username", "", "database user")
	pf.String("password", "", "database password")
	pf.String("dsn", "", "connection string, overrides the discrete settings")
	pf.String("schema-file", "", "YAML schema file served instead of introspection")
	pf.String("log-level", "", "log level: debug, info, warn, error, disabled")
	pf.Bool("telemetry", false, "print OpenTelemetry spans and metrics to stderr")

	_ = root.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{outputTable, outputJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("type", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return database.GetSupportedDatabaseTypes(), cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(
		newSchemaCommand(s),
		newRowsCommand(s),
		newSaveCommand(s),
		newDeleteCommand(s),
		newExecCommand(s),
	)

	return root, s.close
}

// Run executes rowkit with args, writing results to stdout and diagnostics to stderr.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer, opts ...Option) (err error) {
	root, cleanup := NewRootCmd(opts...)
	defer func() {
		if closeErr := cleanup(err); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// Main runs rowkit with the process arguments and returns the exit code.
func Main() int {
	if err := Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
