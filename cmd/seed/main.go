// seed crea el esquema y los datos iniciales (roles y administrador) sin levantar el servidor.
//
// Uso:
//
//	seed                    aplica migraciones pendientes y siembra roles y administrador
//	seed --skip-migrations  solo siembra
//	seed migrate            solo aplica migraciones
//	seed status             versión actual del esquema y migraciones pendientes
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jhoicas/portal-identidad/internal/application/seed"
	"github.com/jhoicas/portal-identidad/internal/domain/identity"
	"github.com/jhoicas/portal-identidad/internal/infrastructure/postgres"
	"github.com/jhoicas/portal-identidad/pkg/config"
	"github.com/jhoicas/portal-identidad/pkg/logger"
)

var skipMigrations bool

var rootCmd = &cobra.Command{
	Use:           "seed",
	Short:         "Migraciones y datos iniciales del portal de identidad",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(env *environment) error {
			if !skipMigrations {
				if _, err := env.migrator.Apply(cmd.Context()); err != nil {
					return err
				}
			}
			policy := identity.DefaultPasswordPolicy()
			if env.cfg.Identity.PasswordRequiredLength > 0 {
				policy.RequiredLength = env.cfg.Identity.PasswordRequiredLength
			}
			report, err := seed.NewSeeder(postgres.NewUnitOfWork(env.pool), seed.Options{
				Roles:         env.cfg.Seed.Roles,
				AdminEmail:    env.cfg.Seed.AdminEmail,
				AdminPassword: env.cfg.Seed.AdminPassword,
			}, policy, env.log.Component("seed")).Run(cmd.Context())
			env.log.Info().EmbedObject(report).Msg("seed finalizado")
			return err
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica las migraciones pendientes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(env *environment) error {
			n, err := env.migrator.Apply(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migraciones aplicadas: %d\n", n)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Muestra la versión del esquema y las migraciones pendientes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(cmd.Context(), func(env *environment) error {
			version, err := env.migrator.CurrentVersion(cmd.Context())
			if err != nil {
				return err
			}
			pending, err := env.migrator.PendingCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "versión: %d\npendientes: %d\n", version, pending)
			return nil
		})
	},
}

func init() {
	rootCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "no aplicar migraciones antes del seed")
	rootCmd.AddCommand(migrateCmd, statusCmd)
}

type environment struct {
	cfg      *config.Config
	log      *logger.Logger
	pool     *pgxpool.Pool
	migrator *postgres.Migrator
}

// withDatabase carga la configuración, abre el pool y prepara el migrador.
func withDatabase(ctx context.Context, fn func(env *environment) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, App: cfg.App.Name})
	if cfg.DB.ConnectionString() == "" {
		return errors.New("ConnectionStrings:DefaultConnection es obligatorio")
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	defer pool.Close()

	m, err := postgres.NewMigrator(pool, log.Component("migrator"))
	if err != nil {
		return err
	}
	return fn(&environment{cfg: cfg, log: log, pool: pool, migrator: m})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
