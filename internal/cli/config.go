package cli

import (
	"fmt"
	"os"

	"github.com/eleven-am/drift/internal/autodetect"
	"github.com/eleven-am/drift/internal/executor"
	"gopkg.in/yaml.v3"
)

// DriftConfig represents the drift.yaml configuration structure
type DriftConfig struct {
	Version string `yaml:"version"`
	Project string `yaml:"project"`

	Database struct {
		Driver         string `yaml:"driver"`
		URL            string `yaml:"url"`
		MaxConnections int    `yaml:"max_connections"`
	} `yaml:"database"`

	Migrations struct {
		Directory string `yaml:"directory"`
		Table     string `yaml:"table"`
	} `yaml:"migrations"`

	Schema struct {
		File string `yaml:"file"`
	} `yaml:"schema"`

	Autodetect struct {
		RenameThreshold float64 `yaml:"rename_threshold"`
	} `yaml:"autodetect"`
}

func LoadDriftConfig(path string) (*DriftConfig, error) {
	if path == "" {
		locations := []string{"drift.yaml", "drift.yml", ".drift.yaml", ".drift.yml"}
		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
		if path == "" {
			return nil, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseDriftConfig(data)
}

func ParseDriftConfig(data []byte) (*DriftConfig, error) {
	var config DriftConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	if config.Database.MaxConnections == 0 {
		config.Database.MaxConnections = 10
	}
	if config.Migrations.Directory == "" {
		config.Migrations.Directory = "./migrations"
	}
	if config.Migrations.Table == "" {
		config.Migrations.Table = executor.DefaultHistoryTable
	}
	if config.Schema.File == "" {
		config.Schema.File = "./schema.json"
	}
	if config.Autodetect.RenameThreshold == 0 {
		config.Autodetect.RenameThreshold = autodetect.DefaultRenameThreshold
	}

	return &config, nil
}
