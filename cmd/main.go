package main

import (
	"fmt"
	"os"
	"strconv"

	"appointment-scheduler/cmd/bootstrap"
	"appointment-scheduler/internal/infrastructure/database"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "scheduler",
		Short:        "Doctor appointment scheduling service",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	app, err := bootstrap.New(cmd.Context(), cfg, log, cmd.OutOrStdout())
	if err != nil {
		log.Errorf("Failed to initialize application: %v", err)
		return err
	}
	return app.Run()
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			return bootstrap.RunMigrations(cfg, log, func(m *database.Migrator) error { return m.Up() })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			cfg, log, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			return bootstrap.RunMigrations(cfg, log, func(m *database.Migrator) error { return m.Force(version) })
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			return bootstrap.RunMigrations(cfg, log, func(m *database.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert fake doctors and patients and print their access tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap.LoadConfig()
			if err != nil {
				return err
			}
			if doctors, _ := cmd.Flags().GetInt("doctors"); doctors > 0 {
				cfg.Seed.Doctors = doctors
			}
			if patients, _ := cmd.Flags().GetInt("patients"); patients > 0 {
				cfg.Seed.Patients = patients
			}
			return bootstrap.Seed(cmd.Context(), cfg, log, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Int("doctors", 0, "Number of doctors to generate (default SEED_DOCTORS)")
	cmd.Flags().Int("patients", 0, "Number of patients to generate (default SEED_PATIENTS)")
	return cmd
}
