package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"tenant-clone/internal/ddl"
	"tenant-clone/internal/dialect"
	"tenant-clone/internal/engine"
	"tenant-clone/internal/pool"
	"tenant-clone/internal/schema"
	"tenant-clone/internal/tenant"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	quiet   bool

	// Set up by RootCmd.PersistentPreRunE for every sub-command.
	AppConfig *Config
	Pools     *pool.Registry
	Engine    *engine.Engine
)

var RootCmd = &cobra.Command{
	Use:   "tenant-clone",
	Short: "Replicate a source tenant's schema into per-division databases",
	Long: `tenant-clone keeps every division database structurally identical to the
source tenant: it provisions new tenant databases, drops them, and creates
tables that are missing from existing tenants. Rows are never copied.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig()
		if err != nil {
			return err
		}
		AppConfig = cfg
		return setupEngine(cmd.Context(), cfg)
	},
}

// setupEngine wires the connection registry, catalog introspector, tenant
// registry and engine from cfg.
func setupEngine(ctx context.Context, cfg *Config) error {
	d, err := dialect.GetDialect(cfg.Server.Driver)
	if err != nil {
		return err
	}

	naming := tenant.NewNaming(cfg.Source.Code, cfg.Tenant.Suffix)
	source, err := naming.Source()
	if err != nil {
		return fmt.Errorf("invalid source.code: %w", err)
	}

	Pools = pool.NewRegistry(cfg.Server.ServerConfig, cfg.Pool)

	admin, err := Pools.Acquire(cfg.Server.MaintenanceDB)
	if err != nil {
		return err
	}
	if err := admin.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Server.MaintenanceDB, err)
	}

	sourceDB, err := Pools.Acquire(source.DatabaseName)
	if err != nil {
		return err
	}

	logger := log.Default()
	if quiet {
		logger = engine.Quiet()
	}

	Engine, err = engine.New(
		schema.NewIntrospector(sourceDB, d, cfg.Source.Schema),
		tenant.NewRegistry(admin, d, naming),
		&engine.PoolTarget{
			Pools:   Pools,
			Dialect: d,
			Applier: ddl.Applier{Dialect: d, StatementTimeout: cfg.Sync.StatementTimeout},
			Schema:  cfg.Source.Schema,
		},
		ddl.Synthesizer{Dialect: d, Schema: cfg.Source.Schema},
		engine.Config{Workers: cfg.Sync.Workers, Logger: logger},
	)
	return err
}

// closePools releases every pool opened by setupEngine. It runs after the
// command whether or not it failed.
func closePools() error {
	if Pools == nil {
		return nil
	}
	err := Pools.CloseAll()
	Pools = nil
	return err
}

func Execute() {
	err := RootCmd.ExecuteContext(context.Background())
	if cerr := closePools(); cerr != nil {
		log.Printf("Warning: %v", cerr)
	}
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	setDefaults()

	// Define flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./tenant-clone.yaml)")
	RootCmd.PersistentFlags().String("host", "", "database server host")
	RootCmd.PersistentFlags().Int("port", 0, "database server port")
	RootCmd.PersistentFlags().String("user", "", "database server user")
	RootCmd.PersistentFlags().String("source", "", "source tenant code")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only print reports, no progress logging")

	// Bind flags to viper (Flag > Env > Config > Default)
	viper.BindPFlag("server.host", RootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("server.port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("server.user", RootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("source.code", RootCmd.PersistentFlags().Lookup("source"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// 1. Executable Directory (Priority 1)
		ex, err := os.Executable()
		if err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}

		// 2. Current Directory (Priority 2)
		viper.AddConfigPath(".")

		viper.SetConfigName("tenant-clone")
		viper.SetConfigType("yaml")
	}

	// TENANT_CLONE_SERVER_PASSWORD -> server.password
	viper.SetEnvPrefix("tenant_clone")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil && !quiet {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}
