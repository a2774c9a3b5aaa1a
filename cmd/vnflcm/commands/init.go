package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/openfroyo/vnflcm/pkg/config"
	"github.com/openfroyo/vnflcm/pkg/stores"
)

func newInitCommand() *cobra.Command {
	var (
		dataDir string
		profile string
		noKey   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a vnflcm workspace",
		Long: `Initialize a workspace: data directories, the SQLite database, a default
config file and a VNF key pair.`,
		Example: `  # Initialize in the current directory
  vnflcm init

  # Initialize with a custom config path and context
  vnflcm init --config /etc/vnflcm/vnflcm.yaml --context lab

  # Initialize with JSON logs, OTLP tracing and enforced policies
  vnflcm init --profile production`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			path := configPath
			if path == "" {
				path = config.DefaultPath
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config file %s already exists", path)
			}

			cfg, err := config.ForProfile(profile)
			if err != nil {
				return err
			}
			if dataDir == "" {
				dataDir = filepath.Join(filepath.Dir(path), "data")
			}
			cfg.DataDir = dataDir
			cfg.Database.Path = filepath.Join(dataDir, "vnflcm.db")
			if contextName != "" {
				cfg.Context = contextName
			}

			log.Info().
				Str("config", path).
				Str("data_dir", dataDir).
				Str("context", cfg.Context).
				Str("environment", cfg.Telemetry.Environment).
				Msg("Initializing workspace")

			fmt.Fprintf(out, "Initializing vnflcm workspace in %s\n\n", dataDir)

			dirs := []string{
				dataDir,
				filepath.Join(dataDir, "keys"),
			}
			for _, dir := range dirs {
				if err := os.MkdirAll(dir, 0o700); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
				fmt.Fprintf(out, "✓ Created directory: %s\n", dir)
			}

			store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Database.Path})
			if err != nil {
				return fmt.Errorf("failed to create store: %w", err)
			}
			defer store.Close()

			if err := store.Init(ctx); err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			fmt.Fprintf(out, "✓ Initialized SQLite database: %s\n", cfg.Database.Path)

			if !noKey {
				keyPath := filepath.Join(dataDir, "keys", "vnf-ed25519")
				if _, err := os.Stat(keyPath); os.IsNotExist(err) {
					if _, err := generateKeyPair(keyPath, cfg.Context); err != nil {
						return err
					}
					fmt.Fprintf(out, "✓ Generated SSH keypair: %s\n", keyPath)
				} else {
					fmt.Fprintf(out, "✓ SSH keypair already exists: %s\n", keyPath)
				}
				// used by the ssh actuator once a host is configured
				cfg.Actuator.SSH.PrivateKeyPath = keyPath
			}

			if err := cfg.Save(path); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Created config file: %s\n", path)

			fmt.Fprintf(out, "\n✅ Workspace initialized successfully!\n\n")
			fmt.Fprintf(out, "Next steps:\n")
			fmt.Fprintf(out, "  1. Validate a descriptor:\n")
			fmt.Fprintf(out, "     vnflcm validate vnf.yaml\n\n")
			fmt.Fprintf(out, "  2. Apply it and plan the changes:\n")
			fmt.Fprintf(out, "     vnflcm apply vnf.yaml && vnflcm plan\n\n")

			return nil
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default: data next to the config file)")
	cmd.Flags().StringVar(&profile, "profile", config.ProfileDefault, "workspace profile (default, development, production)")
	cmd.Flags().BoolVar(&noKey, "no-key", false, "skip key pair generation")

	return cmd
}
