package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"jgfinder/internal/database"
	"jgfinder/internal/extensions"
	"jgfinder/internal/installer"
	"jgfinder/internal/logging"
	"jgfinder/internal/messages"
	"jgfinder/internal/startup"
)

type options struct {
	manifest    string
	pluginsDir  string
	databaseDir string
	hostVersion string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "pkginstall",
		Short: "Install, update or remove the smart search plugins of the gallery",
		Long: `pkginstall runs the package lifecycle of the three gallery smart search
plugins against a jgfinder database.

Before an update the installed plugin manifests are checked: all three must
be present and carry the same version. Install and update write the plugin
manifests, register the plugins and, when the package manifest sets
autoactivate, enable them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			logging.Configure(cmd.ErrOrStderr(), os.Getenv("LOG_FORMAT"), logging.ParseLevel(os.Getenv("LOG_LEVEL")))
			if opts.pluginsDir == "" {
				opts.pluginsDir = envOr("PLUGINS_DIR", "./plugins")
			}
			if opts.databaseDir == "" {
				opts.databaseDir = envOr("DATABASE_DIR", "./data")
			}
			if opts.hostVersion == "" {
				opts.hostVersion = envOr("HOST_VERSION", startup.Version)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.pluginsDir, "plugins-dir", "", "Directory plugin manifests are installed in (env PLUGINS_DIR, default ./plugins)")
	cmd.PersistentFlags().StringVar(&opts.databaseDir, "database-dir", "", "Directory of jgfinder.db (env DATABASE_DIR, default ./data)")
	cmd.PersistentFlags().StringVar(&opts.hostVersion, "host-version", "", "Version of the host application (env HOST_VERSION)")

	cmd.AddCommand(
		newLifecycleCmd(opts, installer.ActionInstall, "Install the plugins"),
		newLifecycleCmd(opts, installer.ActionUpdate, "Update the installed plugins"),
		newUninstallCmd(opts),
	)
	return cmd
}

func newLifecycleCmd(opts *options, action, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   action,
		Short: short,
		Example: fmt.Sprintf(`  # %s from a package manifest
  pkginstall %s --manifest pkg_joomfinderplugin.xml`, short, action),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkg, err := installer.ReadManifest(opts.manifest)
			if err != nil {
				return fmt.Errorf("read package manifest: %w", err)
			}
			return withRegistry(cmd.Context(), opts, func(registry *extensions.Registry) error {
				queue := messages.NewQueue()
				in := installer.New(installer.Config{
					PluginsDir:  opts.pluginsDir,
					HostVersion: opts.hostVersion,
				}, pkg, registry, queue)

				err := run(cmd.Context(), in, action)
				printMessages(cmd.OutOrStdout(), queue.Messages())
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&opts.manifest, "manifest", "m", "", "Package manifest file")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}

func newUninstallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Run the package uninstall step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := messages.NewQueue()
			in := installer.New(installer.Config{PluginsDir: opts.pluginsDir}, &installer.Manifest{}, nil, queue)
			err := in.Uninstall(cmd.Context())
			printMessages(cmd.OutOrStdout(), queue.Messages())
			return err
		},
	}
}

// run executes one lifecycle. Preflight problems are reported but do not
// stop the installation.
func run(ctx context.Context, in *installer.Installer, action string) error {
	if err := in.Preflight(ctx, action); err != nil {
		logging.Warn("preflight: %v", err)
	}

	var err error
	if action == installer.ActionUpdate {
		err = in.Update(ctx)
	} else {
		err = in.Install(ctx)
	}
	if err != nil {
		return err
	}
	return in.Postflight(ctx, action)
}

func withRegistry(ctx context.Context, opts *options, fn func(*extensions.Registry) error) error {
	if err := os.MkdirAll(opts.databaseDir, 0o755); err != nil {
		return err
	}
	db, err := database.New(ctx, filepath.Join(opts.databaseDir, "jgfinder.db"))
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(extensions.NewRegistry(db))
}

func printMessages(w io.Writer, msgs []messages.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "[%s] %s\n", m.Type, m.Text)
	}
}
