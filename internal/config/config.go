package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mintline/marketplace-indexer/common"
	marketconfig "github.com/mintline/marketplace-indexer/modules/market/config"
	"github.com/mintline/marketplace-indexer/pkg/blobstore"
	"github.com/mintline/marketplace-indexer/pkg/ledger"
	"github.com/mintline/marketplace-indexer/pkg/logger"
	"github.com/mintline/marketplace-indexer/pkg/logger/slogx"
	"github.com/mintline/marketplace-indexer/pkg/middleware/requestcontext"
	"github.com/mintline/marketplace-indexer/pkg/middleware/requestlogger"
	"github.com/mintline/marketplace-indexer/pkg/reportingclient"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	parseOnce sync.Once
	config    = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		HTTPServer: HTTPServerConfig{
			Port: 8080,
		},
		Network: common.NetworkMainnet,
	}
)

type Config struct {
	Logger        logger.Config          `mapstructure:"logger"`
	HTTPServer    HTTPServerConfig       `mapstructure:"http_server"`
	Network       common.Network         `mapstructure:"network"`
	LedgerNode    ledger.Config          `mapstructure:"ledger_node"`
	Reporting     reportingclient.Config `mapstructure:"reporting"`
	BlobStore     blobstore.Config       `mapstructure:"blob_store"`
	APIOnly       bool                   `mapstructure:"api_only"`
	EnableModules []string               `mapstructure:"enable_modules"`
	Modules       Modules                `mapstructure:"modules"`
}

type HTTPServerConfig struct {
	Port      int                               `mapstructure:"port"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
}

type Modules struct {
	Market marketconfig.Config `mapstructure:"market"`
}

// BindPFlag binds a command-line flag to a configuration key. Must be called
// before Parse.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("Failed to bind flag to configuration", slogx.Error(err), slog.String("key", key))
	}
}

// Parse reads the configuration from the given file (or ./config.yaml when
// empty), environment variables and bound flags. Subsequent calls return the
// already parsed configuration.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	parseOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "Config file not found, using default values", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "Invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(config); err != nil {
			logger.PanicContext(ctx, "Failed to unmarshal config", slogx.Error(err))
		}
	})

	return *config
}

// Load returns the parsed configuration. Parse must be called first.
func Load() Config {
	return *config
}
