// Package pfconfig loads the YAML configuration consumed by the CLI
// binaries. The pf/rhf core itself never reads this package — it only
// takes explicit constructor/setter arguments.
package pfconfig

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/pfdb/pfcore/internal/pf"
)

// Config mirrors the on-disk YAML shape:
//
//	buffer:
//	  size: 64
//	  strategy: lru
//	storage:
//	  dir: ./data
type Config struct {
	Buffer struct {
		Size     int    `mapstructure:"size"`
		Strategy string `mapstructure:"strategy"`
	} `mapstructure:"buffer"`
	Storage struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"storage"`
}

// Load reads and unmarshals a YAML config file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Strategy parses the configured strategy, falling back to LRU for an
// empty or unrecognized value.
func (c *Config) Strategy() pf.Strategy {
	s, ok := pf.ParseStrategy(c.Buffer.Strategy)
	if !ok {
		return pf.StrategyLRU
	}
	return s
}

// Apply pushes the loaded buffer settings into m. Must be called before
// m's first operation; see pf.Manager.SetBufferSize.
func (c *Config) Apply(m *pf.Manager) {
	if c.Buffer.Size > 0 {
		m.SetBufferSize(c.Buffer.Size)
	}
	m.SetStrategy(c.Strategy())
}
