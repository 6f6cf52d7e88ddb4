package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadTypeMap reads a properties file mapping product type names to physical
// table prefixes, e.g. "GenericFile = generic_file". Keys are returned
// lowercased since viper folds them; callers must look up case-insensitively.
func LoadTypeMap(path string) (map[string]string, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigFile(path)
	v.SetConfigType("properties")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read type map %s: %w", path, err)
	}

	result := make(map[string]string)
	for _, key := range v.AllKeys() {
		value := strings.TrimSpace(v.GetString(key))
		if value == "" {
			continue
		}
		result[strings.ToLower(key)] = value
	}
	return result, nil
}
