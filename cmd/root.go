package cmd

import (
	"os"
	"strings"

	"github.com/Layr-Labs/questboard/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "questboard",
	Short: "Quest board runs a vote incentive market on top of a gauge controller",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)

	rootCmd.PersistentFlags().String(config.BoardOwner, "", `Owner address of a new board`)
	rootCmd.PersistentFlags().String(config.BoardAddress, "", `Ledger account that escrows quest rewards`)
	rootCmd.PersistentFlags().String(config.BoardChest, "", `Address that receives platform fees`)
	rootCmd.PersistentFlags().String(config.BoardManagers, "", `Comma separated list of manager addresses for a new board`)
	rootCmd.PersistentFlags().Uint64(config.BoardPlatformFee, 400, `Platform fee in basis points`)
	rootCmd.PersistentFlags().String(config.BoardMinObjective, "1000e18", `Minimum objective votes per period`)
	rootCmd.PersistentFlags().String(config.BoardDistributor, "", `Address of the merkle distributor to register (falls back to the genesis distributor)`)
	rootCmd.PersistentFlags().Duration(config.BoardKillDelay, 0, `Time after a kill before emergency withdrawals open (default 2 weeks)`)

	rootCmd.PersistentFlags().String(config.DatabaseDriverKey, string(config.DatabaseDriver_Memory), `postgres, sqlite or memory`)
	rootCmd.PersistentFlags().String(config.DatabaseHost, "localhost", `PostgreSQL host`)
	rootCmd.PersistentFlags().Int(config.DatabasePort, 5432, `PostgreSQL port`)
	rootCmd.PersistentFlags().String(config.DatabaseUser, "questboard", `PostgreSQL username`)
	rootCmd.PersistentFlags().String(config.DatabasePassword, "", `PostgreSQL password`)
	rootCmd.PersistentFlags().String(config.DatabaseDbName, "questboard", `PostgreSQL database name`)
	rootCmd.PersistentFlags().String(config.DatabaseSchemaName, "", `PostgreSQL schema name (default "public")`)
	rootCmd.PersistentFlags().String(config.DatabaseSSLMode, "disable", `PostgreSQL ssl mode`)

	rootCmd.PersistentFlags().Bool(config.SqliteInMemory, false, `Use an in-memory sqlite database`)
	rootCmd.PersistentFlags().String(config.SqliteDbFilePath, "./questboard.db", `Path of the sqlite database file`)

	rootCmd.PersistentFlags().String(config.LedgerDbPath, "", `LevelDB directory for token balances (in memory when empty)`)

	rootCmd.PersistentFlags().String(config.EthereumRpcUrl, "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().String(config.EthereumGaugeController, "", `Address of the gauge controller contract`)
	rootCmd.PersistentFlags().Int(config.EthereumOracleCacheSize, 1024, `Number of gauge points to cache`)
	rootCmd.PersistentFlags().Bool(config.EthereumUseMemoryGauges, false, `Read gauges from the genesis file instead of an Ethereum node`)

	rootCmd.PersistentFlags().String(config.GenesisFile, "", `YAML file with tokens, balances, managers and gauges to seed`)

	rootCmd.PersistentFlags().Int(config.RpcHttpPort, 7101, `http rpc port`)

	rootCmd.PersistentFlags().Bool(config.DataDogStatsdEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().String(config.DataDogStatsdUrl, "", `e.g. "localhost:8125"`)

	rootCmd.PersistentFlags().Bool(config.PrometheusEnabled, false, `e.g. "true" or "false"`)
	rootCmd.PersistentFlags().Int(config.PrometheusPort, 2112, `The port to run the prometheus server on`)

	// setup sub commands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runVersionCmd)
	rootCmd.AddCommand(runDatabaseCmd)
	rootCmd.AddCommand(closePeriodsCmd)
	rootCmd.AddCommand(exportPeriodsCmd)

	// bind any subcommand flags
	runCmd.PersistentFlags().Bool(config.SchedulerEnabled, true, `Close ended periods automatically`)
	runCmd.PersistentFlags().Duration(config.SchedulerInterval, 0, `How often the scheduler closes pending periods (default 10m)`)

	closePeriodsCmd.PersistentFlags().Bool(config.ClosePeriodsShowProgress, true, `Render a progress bar while closing periods`)

	exportPeriodsCmd.PersistentFlags().Uint64(config.ExportQuestId, 0, `Quest to export`)
	exportPeriodsCmd.PersistentFlags().String(config.ExportOutputFile, "", `CSV file to write (stdout when empty)`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)

	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.AutomaticEnv()
}

// bindSubcommandFlags binds the flags that only exist on cmd.
func bindSubcommandFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}
