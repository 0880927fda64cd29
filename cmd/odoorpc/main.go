package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/quintagroup/odoorpc/pkg/config"
	"github.com/quintagroup/odoorpc/pkg/jsonrpc"
	"github.com/quintagroup/odoorpc/pkg/logger"
	"github.com/quintagroup/odoorpc/pkg/model"
	"github.com/quintagroup/odoorpc/pkg/report"
	"github.com/quintagroup/odoorpc/pkg/session"
)

var version = "0.1.0"

// ConnectFlags holds the connection options shared by all commands.
type ConnectFlags struct {
	Host     string
	Port     int
	Protocol string
	Database string
	Login    string
	Password string
	Session  string
	Timeout  time.Duration
	LogLevel string
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	flags := &ConnectFlags{}

	root := &cobra.Command{
		Use:   "odoorpc",
		Short: "odoorpc - command-line client for Odoo JSON-RPC servers",
		Long: `odoorpc talks to an Odoo server over JSON-RPC. It can inspect model
schemas, resolve external identifiers, manage saved sessions and download
rendered reports.`,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.Host, "host", envOr("ODOO_HOST", "localhost"), "Server host name")
	pf.IntVar(&flags.Port, "port", envIntOr("ODOO_PORT", 8069), "Server port")
	pf.StringVar(&flags.Protocol, "protocol", envOr("ODOO_PROTOCOL", config.ProtocolJSONRPC), "Wire protocol (jsonrpc or jsonrpc+ssl)")
	pf.StringVar(&flags.Database, "db", os.Getenv("ODOO_DB"), "Database name")
	pf.StringVar(&flags.Login, "login", os.Getenv("ODOO_LOGIN"), "User login")
	pf.StringVar(&flags.Password, "password", os.Getenv("ODOO_PASSWORD"), "User password")
	pf.StringVar(&flags.Session, "session", "", "Use a saved session instead of connection flags")
	pf.DurationVar(&flags.Timeout, "timeout", 120*time.Second, "Request timeout")
	pf.StringVar(&flags.LogLevel, "log-level", "error", "Log level (debug, info, warn, error)")

	root.AddCommand(versionCmd(flags))
	root.AddCommand(fieldsCmd(flags))
	root.AddCommand(searchCmd(flags))
	root.AddCommand(refCmd(flags))
	root.AddCommand(reportCmd(flags))
	root.AddCommand(sessionCmd(flags))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// clientConfig resolves the effective configuration from a saved session
// or the connection flags.
func clientConfig(flags *ConnectFlags) (*config.ClientConfig, error) {
	var cfg *config.ClientConfig
	if flags.Session != "" {
		store, err := session.NewStore("")
		if err != nil {
			return nil, err
		}
		sess, err := store.Get(flags.Session)
		if err != nil {
			return nil, err
		}
		cfg = sess.ClientConfig()
	} else {
		cfg = config.NewClientConfig(flags.Host, flags.Port)
		cfg.Connection.Protocol = flags.Protocol
		cfg.Connection.Database = flags.Database
		cfg.Connection.Login = flags.Login
		cfg.Connection.Password = flags.Password
	}
	cfg.Timeouts.Request = flags.Timeout
	cfg.Observability.LogLevel = flags.LogLevel
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// connect builds an authenticated client and environment.
func connect(ctx context.Context, flags *ConnectFlags) (*jsonrpc.Client, *model.Environment, error) {
	cfg, err := clientConfig(flags)
	if err != nil {
		return nil, nil, err
	}
	if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel, Encoding: "console"}); err != nil {
		return nil, nil, err
	}
	log := logger.Get()

	client, err := jsonrpc.NewClient(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	conn := cfg.Connection
	uid, err := client.Authenticate(ctx, conn.Database, conn.Login, conn.Password)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	env := model.NewEnvironment(client, conn.Database, uid, nil, log)
	env.SetAutoCommit(cfg.Behavior.AutoCommit)
	return client, env, nil
}

func versionCmd(flags *ConnectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show client and server version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("odoorpc v%s\n", version)

			cfg, err := clientConfig(flags)
			if err != nil {
				return err
			}
			if err := logger.Init(logger.Config{Level: cfg.Observability.LogLevel, Encoding: "console"}); err != nil {
				return err
			}
			client, err := jsonrpc.NewClient(cfg, logger.Get())
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), flags.Timeout)
			defer cancel()
			info, err := client.Version(ctx)
			if err != nil {
				return err
			}
			if v, ok := info["server_version"]; ok {
				fmt.Printf("Server version: %v\n", v)
			}
			return nil
		},
	}
}

func fieldsCmd(flags *ConnectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fields MODEL",
		Short: "Show the field schema of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.Timeout)
			defer cancel()

			client, env, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			m, err := env.Model(ctx, args[0])
			if err != nil {
				return err
			}
			for _, name := range m.FieldNames() {
				f := m.Fields()[name]
				line := fmt.Sprintf("%-30s %s", name, f.Kind())
				if f.Relation() != "" {
					line += fmt.Sprintf(" -> %s", f.Relation())
				}
				if f.Required() {
					line += " (required)"
				}
				if f.ReadOnly() {
					line += " (readonly)"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func searchCmd(flags *ConnectFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search MODEL",
		Short: "Search records of a model and print id plus display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.Timeout)
			defer cancel()

			client, env, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			m, err := env.Model(ctx, args[0])
			if err != nil {
				return err
			}
			ids, err := m.Search(ctx, nil, model.SearchOptions{Limit: limit})
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return nil
			}
			rs, err := m.Browse(ctx, ids...)
			if err != nil {
				return err
			}
			for i := 0; i < rs.Len(); i++ {
				rec := rs.At(i)
				name, err := rec.String(ctx, "name")
				if err != nil {
					name = ""
				}
				fmt.Printf("%d\t%s\n", rec.ID(), name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 80, "Maximum number of records")
	return cmd
}

func refCmd(flags *ConnectFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ref XMLID",
		Short: "Resolve an external identifier (module.name) to a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), flags.Timeout)
			defer cancel()

			client, env, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			rec, err := env.Ref(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s(%d)\n", rec.Model().Name(), rec.ID())
			return nil
		},
	}
}

func reportCmd(flags *ConnectFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "List and download rendered reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available reports grouped by model",
		RunE: func(c *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(c.Context(), flags.Timeout)
			defer cancel()

			client, env, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			svc := report.NewService(env, client, logger.Get())
			byModel, err := svc.List(ctx)
			if err != nil {
				return err
			}
			models := make([]string, 0, len(byModel))
			for m := range byModel {
				models = append(models, m)
			}
			sort.Strings(models)
			for _, m := range models {
				fmt.Printf("%s:\n", m)
				for _, info := range byModel[m] {
					fmt.Printf("  %-40s %s (%s)\n", info.ReportName, info.Name, info.ReportType)
				}
			}
			return nil
		},
	})

	var output string
	download := &cobra.Command{
		Use:   "download NAME ID...",
		Short: "Download a rendered report for the given record ids",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(c *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args)-1)
			for _, arg := range args[1:] {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid record id %q", arg)
				}
				ids = append(ids, id)
			}

			ctx, cancel := context.WithTimeout(c.Context(), flags.Timeout)
			defer cancel()

			client, env, err := connect(ctx, flags)
			if err != nil {
				return err
			}
			defer client.Close()

			svc := report.NewService(env, client, logger.Get())
			r, err := svc.Download(ctx, args[0], ids)
			if err != nil {
				return err
			}

			var w io.Writer = os.Stdout
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if _, err := io.Copy(w, r); err != nil {
				return err
			}
			return nil
		},
	}
	download.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.AddCommand(download)

	return cmd
}

func sessionCmd(flags *ConnectFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage saved connection sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "save NAME",
		Short: "Save the current connection flags under a name",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := session.NewStore("")
			if err != nil {
				return err
			}
			return store.Save(args[0], session.Session{
				Host:     flags.Host,
				Port:     flags.Port,
				Protocol: flags.Protocol,
				Database: flags.Database,
				Login:    flags.Login,
				Password: flags.Password,
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved sessions",
		RunE: func(c *cobra.Command, args []string) error {
			store, err := session.NewStore("")
			if err != nil {
				return err
			}
			names, err := store.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			store, err := session.NewStore("")
			if err != nil {
				return err
			}
			return store.Remove(args[0])
		},
	})

	return cmd
}
