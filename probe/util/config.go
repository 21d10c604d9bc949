package util

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Configuration is the read-only view handed to components that only need
// a few keys, so they do not depend on viper directly.
type Configuration interface {
	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetFloat64(key string) float64
	GetIntSlice(key string) []int
	GetStringSlice(key string) []string
	SetDefault(key string, value interface{})
}

// LoadConfiguration reads <configFileName>.toml from the usual search
// paths. Returns false when the file is absent and not required.
func LoadConfiguration(logger zerolog.Logger, configFileName string, required bool) (loaded bool, err error) {

	viper.SetConfigName(configFileName)
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.driveprobe")
	viper.AddConfigPath("/usr/local/etc/driveprobe/")
	viper.AddConfigPath("/etc/driveprobe/")

	if err := viper.MergeInConfig(); err != nil {
		if strings.Contains(err.Error(), "Not Found") {
			logger.Debug().Str("config", configFileName).Msg("no config file found, using defaults")
			if required {
				return false, fmt.Errorf("missing %s.toml in ., $HOME/.driveprobe/ or /etc/driveprobe/; "+
					"generate one with: probe scaffold -output=.", configFileName)
			}
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", viper.ConfigFileUsed(), err)
	}
	logger.Debug().Str("file", viper.ConfigFileUsed()).Msgf("read %s.toml", configFileName)

	return true, nil
}

func GetViper() *viper.Viper {
	return viper.GetViper()
}
