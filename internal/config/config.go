package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const ENV_PREFIX = "QUESTBOARD"

type DatabaseDriver string

const (
	DatabaseDriver_Postgres DatabaseDriver = "postgres"
	DatabaseDriver_Sqlite   DatabaseDriver = "sqlite"
	DatabaseDriver_Memory   DatabaseDriver = "memory"
)

// Config keys. Each key doubles as the cobra flag name; viper reads them in snake case.
const (
	Debug = "debug"

	BoardOwner        = "board.owner"
	BoardAddress      = "board.address"
	BoardChest        = "board.chest"
	BoardManagers     = "board.managers"
	BoardPlatformFee  = "board.platform-fee"
	BoardMinObjective = "board.min-objective"
	BoardKillDelay    = "board.kill-delay"
	BoardDistributor  = "board.distributor"

	DatabaseDriverKey  = "database.driver"
	DatabaseHost       = "database.host"
	DatabasePort       = "database.port"
	DatabaseUser       = "database.user"
	DatabasePassword   = "database.password"
	DatabaseDbName     = "database.db_name"
	DatabaseSchemaName = "database.schema_name"
	DatabaseSSLMode    = "database.ssl_mode"

	SqliteInMemory   = "sqlite.in-memory"
	SqliteDbFilePath = "sqlite.db-file-path"

	LedgerDbPath = "ledger.db-path"

	EthereumRpcUrl           = "ethereum.rpc-url"
	EthereumGaugeController  = "ethereum.gauge-controller"
	EthereumOracleCacheSize  = "ethereum.oracle-cache-size"
	EthereumUseMemoryGauges  = "ethereum.use-memory-gauges"
	SchedulerInterval        = "scheduler.interval"
	SchedulerEnabled         = "scheduler.enabled"
	GenesisFile              = "genesis.file"
	RpcHttpPort              = "rpc.http-port"
	PrometheusEnabled        = "prometheus.enabled"
	PrometheusPort           = "prometheus.port"
	DataDogStatsdEnabled     = "datadog.statsd.enabled"
	DataDogStatsdUrl         = "datadog.statsd.url"
	ExportQuestId            = "export.quest-id"
	ExportOutputFile         = "export.output-file"
	ClosePeriodsShowProgress = "close.show-progress"
)

type BoardConfig struct {
	Owner        string
	Address      string
	Chest        string
	Managers     []string
	PlatformFee  uint64
	MinObjective string
	KillDelay    time.Duration
	Distributor  string
}

type DatabaseConfig struct {
	Driver     DatabaseDriver
	Host       string
	Port       int
	User       string
	Password   string
	DbName     string
	SchemaName string
	SSLMode    string
}

type SqliteConfig struct {
	InMemory   bool
	DbFilePath string
}

type EthereumConfig struct {
	RpcUrl          string
	GaugeController string
	OracleCacheSize int
	UseMemoryGauges bool
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

type RpcConfig struct {
	HttpPort int
}

type PrometheusConfig struct {
	Enabled bool
	Port    int
}

type DataDogConfig struct {
	StatsdConfig StatsdConfig
}

type StatsdConfig struct {
	Enabled bool
	Url     string
}

type ExportConfig struct {
	QuestId    uint64
	OutputFile string
}

type Config struct {
	Debug            bool
	BoardConfig      BoardConfig
	DatabaseConfig   DatabaseConfig
	SqliteConfig     SqliteConfig
	LedgerDbPath     string
	EthereumConfig   EthereumConfig
	SchedulerConfig  SchedulerConfig
	RpcConfig        RpcConfig
	PrometheusConfig PrometheusConfig
	DataDogConfig    DataDogConfig
	GenesisFile      string
	ExportConfig     ExportConfig
	ShowProgress     bool
}

func NewConfig() *Config {
	return &Config{
		Debug: viper.GetBool(normalizeFlagName(Debug)),

		BoardConfig: BoardConfig{
			Owner:        viper.GetString(normalizeFlagName(BoardOwner)),
			Address:      viper.GetString(normalizeFlagName(BoardAddress)),
			Chest:        viper.GetString(normalizeFlagName(BoardChest)),
			Managers:     parseStringAsList(viper.GetString(normalizeFlagName(BoardManagers))),
			PlatformFee:  viper.GetUint64(normalizeFlagName(BoardPlatformFee)),
			MinObjective: viper.GetString(normalizeFlagName(BoardMinObjective)),
			KillDelay:    viper.GetDuration(normalizeFlagName(BoardKillDelay)),
			Distributor:  viper.GetString(normalizeFlagName(BoardDistributor)),
		},

		DatabaseConfig: DatabaseConfig{
			Driver:     DatabaseDriver(viper.GetString(normalizeFlagName(DatabaseDriverKey))),
			Host:       viper.GetString(normalizeFlagName(DatabaseHost)),
			Port:       viper.GetInt(normalizeFlagName(DatabasePort)),
			User:       viper.GetString(normalizeFlagName(DatabaseUser)),
			Password:   viper.GetString(normalizeFlagName(DatabasePassword)),
			DbName:     viper.GetString(normalizeFlagName(DatabaseDbName)),
			SchemaName: viper.GetString(normalizeFlagName(DatabaseSchemaName)),
			SSLMode:    viper.GetString(normalizeFlagName(DatabaseSSLMode)),
		},

		SqliteConfig: SqliteConfig{
			InMemory:   viper.GetBool(normalizeFlagName(SqliteInMemory)),
			DbFilePath: viper.GetString(normalizeFlagName(SqliteDbFilePath)),
		},

		LedgerDbPath: viper.GetString(normalizeFlagName(LedgerDbPath)),

		EthereumConfig: EthereumConfig{
			RpcUrl:          viper.GetString(normalizeFlagName(EthereumRpcUrl)),
			GaugeController: viper.GetString(normalizeFlagName(EthereumGaugeController)),
			OracleCacheSize: viper.GetInt(normalizeFlagName(EthereumOracleCacheSize)),
			UseMemoryGauges: viper.GetBool(normalizeFlagName(EthereumUseMemoryGauges)),
		},

		SchedulerConfig: SchedulerConfig{
			Enabled:  viper.GetBool(normalizeFlagName(SchedulerEnabled)),
			Interval: viper.GetDuration(normalizeFlagName(SchedulerInterval)),
		},

		RpcConfig: RpcConfig{
			HttpPort: viper.GetInt(normalizeFlagName(RpcHttpPort)),
		},

		PrometheusConfig: PrometheusConfig{
			Enabled: viper.GetBool(normalizeFlagName(PrometheusEnabled)),
			Port:    viper.GetInt(normalizeFlagName(PrometheusPort)),
		},

		DataDogConfig: DataDogConfig{
			StatsdConfig: StatsdConfig{
				Enabled: viper.GetBool(normalizeFlagName(DataDogStatsdEnabled)),
				Url:     viper.GetString(normalizeFlagName(DataDogStatsdUrl)),
			},
		},

		GenesisFile: viper.GetString(normalizeFlagName(GenesisFile)),

		ExportConfig: ExportConfig{
			QuestId:    viper.GetUint64(normalizeFlagName(ExportQuestId)),
			OutputFile: viper.GetString(normalizeFlagName(ExportOutputFile)),
		},

		ShowProgress: viper.GetBool(normalizeFlagName(ClosePeriodsShowProgress)),
	}
}

// Validate checks the parts of the config every command depends on.
func (c *Config) Validate() error {
	driver, err := ParseDatabaseDriver(string(c.DatabaseConfig.Driver))
	if err != nil {
		return err
	}
	// a persisted board needs balances that survive the same restart
	if driver != DatabaseDriver_Memory && c.LedgerDbPath == "" {
		return fmt.Errorf("%s is required with the %s database driver", LedgerDbPath, driver)
	}
	if c.BoardConfig.Owner == "" {
		return fmt.Errorf("%s is required", BoardOwner)
	}
	if c.BoardConfig.Address == "" {
		return fmt.Errorf("%s is required", BoardAddress)
	}
	if c.BoardConfig.Chest == "" {
		return fmt.Errorf("%s is required", BoardChest)
	}
	if !c.EthereumConfig.UseMemoryGauges && c.EthereumConfig.RpcUrl == "" {
		return fmt.Errorf("%s is required unless %s is set", EthereumRpcUrl, EthereumUseMemoryGauges)
	}
	return nil
}

func ParseDatabaseDriver(driver string) (DatabaseDriver, error) {
	drivers := []DatabaseDriver{DatabaseDriver_Postgres, DatabaseDriver_Sqlite, DatabaseDriver_Memory}
	if slices.Contains(drivers, DatabaseDriver(driver)) {
		return DatabaseDriver(driver), nil
	}
	return "", fmt.Errorf("unsupported database driver '%s'", driver)
}

func (s *SqliteConfig) GetSqlitePath() string {
	if s.InMemory {
		return "file::memory:?cache=shared"
	}
	return s.DbFilePath
}

func parseStringAsList(envVar string) []string {
	if envVar == "" {
		return []string{}
	}
	// split on commas
	stringList := strings.Split(envVar, ",")

	l := make([]string, 0)
	for _, s := range stringList {
		s = strings.TrimSpace(s)
		if s != "" {
			l = append(l, s)
		}
	}
	return l
}

func KebabToSnakeCase(str string) string {
	return regexp.MustCompile(`-`).ReplaceAllString(str, "_")
}

func normalizeFlagName(name string) string {
	return KebabToSnakeCase(name)
}
