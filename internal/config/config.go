package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig is the application configuration, read from config.toml next to
// the executable.
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Report ReportConfig `toml:"report"`
}

// ServerConfig configures the local UI server.
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig locates the engine's persistent state files.
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// ReportConfig configures the reconciliation engine.
type ReportConfig struct {
	TemplatePath     string  `toml:"template_path"`
	CustomerFilesDir string  `toml:"customer_files_dir"`
	DatedOutputs     bool    `toml:"dated_outputs"` // <customer>_jobRpt_<YYYYMMDD>.xlsx instead of a fixed name
	MatchThreshold   float64 `toml:"match_threshold"`
}

// LoadConfigInfo carries metadata about how the config was loaded.
type LoadConfigInfo struct {
	PortSpecified bool
}

// Store filenames inside the data directory.
const (
	HistoryFile    = "schedule_history.json"
	AliasFile      = "customer_aliases.json"
	HighlightsFile = "report_highlights.json"
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20410,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Report: ReportConfig{
			TemplatePath:     "",
			CustomerFilesDir: "",
			DatedOutputs:     true,
			MatchThreshold:   0.6,
		},
	}
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}
	serverAny, ok := raw["server"]
	if !ok {
		return false
	}
	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}
	_, ok = serverMap["port"]
	return ok
}

// GetExeDir returns the directory of the running executable.
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfigWithInfo loads config.toml and reports load metadata.
func LoadConfigWithInfo() (*AppConfig, LoadConfigInfo, error) {
	info := LoadConfigInfo{}
	config := DefaultConfig()

	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	configPath := filepath.Join(exeDir, "config.toml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, info, nil
		}
		return nil, info, err
	}

	info.PortSpecified = isPortSpecifiedInToml(data)

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, info, err
	}

	// Environment overrides, used by E2E runs and local debugging.
	if v := os.Getenv("JOBDOCS_REPORT_TEMPLATE"); v != "" {
		config.Report.TemplatePath = v
	}
	if v := os.Getenv("JOBDOCS_CUSTOMER_FILES_DIR"); v != "" {
		config.Report.CustomerFilesDir = v
	}

	return config, info, nil
}

// SaveConfig writes the config back to config.toml.
func SaveConfig(config *AppConfig) error {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	configPath := filepath.Join(exeDir, "config.toml")

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// EnsureDataDir creates the data directory and returns its path. Relative
// directories resolve against the executable's directory.
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := resolveDataDir(config)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}
	return dataDir, nil
}

// GetDataPath returns the path of a state file inside the data directory.
func GetDataPath(config *AppConfig, filename string) string {
	return filepath.Join(resolveDataDir(config), filename)
}

func resolveDataDir(config *AppConfig) string {
	dataDir := config.Data.DataDir
	if filepath.IsAbs(dataDir) {
		return dataDir
	}
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	return filepath.Join(exeDir, dataDir)
}
