package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvConfigPath 指定配置文件路径的环境变量。
const EnvConfigPath = "FACTORTEST_CONFIG"

// DefaultConfigPath 为未设置环境变量时的配置路径。
const DefaultConfigPath = "configs/config.toml"

// PathFromEnv 返回环境变量中的配置路径，未设置时返回默认值。
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load 读取配置文件（含 include 链），应用默认值并校验。
// include 中的文件先于引用它的文件合并，后者的同名键覆盖前者。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	chain := &includeChain{seen: make(map[string]bool), active: make(map[string]bool)}
	if err := chain.walk(abs); err != nil {
		return nil, err
	}
	v := viper.New()
	for _, file := range chain.files {
		if err := v.MergeConfigMap(file.settings); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file.path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	for _, key := range v.AllKeys() {
		setKeys.mark(key)
	}
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type configFile struct {
	path     string
	settings map[string]any
}

// includeChain 按依赖顺序展开 include，每个文件只读取一次。
type includeChain struct {
	files  []configFile
	seen   map[string]bool
	active map[string]bool
}

func (c *includeChain) walk(path string) error {
	path = filepath.Clean(path)
	if c.active[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if c.seen[path] {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	c.active[path] = true
	for _, inc := range v.GetStringSlice("include") {
		inc = strings.TrimSpace(inc)
		if inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := c.walk(inc); err != nil {
			return err
		}
	}
	delete(c.active, path)
	c.seen[path] = true
	c.files = append(c.files, configFile{path: path, settings: v.AllSettings()})
	return nil
}
