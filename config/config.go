// Package config loads resizer and logging settings from layered config
// files, environment variables and command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/leeforge/resizer/errors"
	"github.com/leeforge/resizer/json"
	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/resizer"
	"github.com/leeforge/resizer/storage"
)

func DefaultOptions() Options {
	basePath := os.Getenv("CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}

	return Options{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "RESIZER",
	}
}

// Load reads every config file variant found under opts.BasePath, applies
// environment and flag overrides and validates the result.
func Load(opts Options) (*Config, error) {
	v, files, err := CreateViper(opts)
	if err != nil {
		return nil, err
	}

	c := &Config{instance: v, opts: opts, files: files}
	file, err := c.decode(v)
	if err != nil {
		return nil, err
	}
	c.file = file

	if opts.WatchAble {
		if err := c.watch(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// File returns the currently effective settings.
func (c *Config) File() File {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return c.file
}

func (c *Config) Resize() resizer.Config {
	return c.File().Resize
}

func (c *Config) Logging() logging.Config {
	return c.File().Logging
}

func (c *Config) Storage() storage.Config {
	return c.File().Storage
}

// Files lists the config files that were merged, in load order.
func (c *Config) Files() []string {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return append([]string(nil), c.files...)
}

func (c *Config) Get(key string) any {
	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	return c.instance.Get(key)
}

// Export writes the effective settings to path. The format follows the
// file extension.
func (c *Config) Export(path string) error {
	if path == "" {
		return fmt.Errorf("❌ Export path is empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("❌ Failed to create directory %s: %w", dir, err)
	}

	c.watchMutex.RLock()
	defer c.watchMutex.RUnlock()
	if err := c.instance.WriteConfigAs(path); err != nil {
		return fmt.Errorf("❌ Failed to write config to %s: %w", path, err)
	}
	return nil
}

// Close stops watching for file changes.
func (c *Config) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.Close()
}

// ParseJSON decodes a resizer.Config from JSON. Missing fields take their
// defaults; explicit zero values are kept.
func ParseJSON(data []byte) (resizer.Config, error) {
	var cfg resizer.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return resizer.Config{}, errors.WrapWithType(err, errors.ErrorTypeInvalidConfig, "decode resize config")
	}
	if err := cfg.Validate(); err != nil {
		return resizer.Config{}, err
	}
	return cfg, nil
}

func (c *Config) decode(v *viper.Viper) (File, error) {
	var file File
	if err := defaults.Set(&file); err != nil {
		return File{}, fmt.Errorf("❌ Failed to set defaults: %w", err)
	}
	if err := v.Unmarshal(&file); err != nil {
		return File{}, errors.WrapWithType(err, errors.ErrorTypeInvalidConfig,
			fmt.Sprintf("unmarshal config (path: %s, file: %s.%s)", c.opts.BasePath, c.opts.FileName, c.opts.FileType))
	}
	if err := file.Resize.Validate(); err != nil {
		return File{}, err
	}
	return file, nil
}

func (c *Config) watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("❌ Failed to create config watcher: %w", err)
	}
	if err := w.Add(c.opts.BasePath); err != nil {
		w.Close()
		return fmt.Errorf("❌ Failed to watch %s: %w", c.opts.BasePath, err)
	}
	c.watcher = w

	go func() {
		for {
			select {
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if !c.relevant(e) {
					continue
				}
				c.reload(e)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.fail(err)
			}
		}
	}()
	return nil
}

func (c *Config) relevant(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) && !e.Has(fsnotify.Remove) {
		return false
	}
	name := filepath.Base(e.Name)
	return strings.HasPrefix(name, c.opts.FileName+".") && strings.HasSuffix(name, "."+c.opts.FileType)
}

func (c *Config) reload(e fsnotify.Event) {
	v, files, err := CreateViper(c.opts)
	if err != nil {
		c.fail(err)
		return
	}
	file, err := c.decode(v)
	if err != nil {
		c.fail(err)
		return
	}

	c.watchMutex.Lock()
	c.instance = v
	c.files = files
	c.file = file
	c.watchMutex.Unlock()

	if c.opts.OnChange != nil {
		c.opts.OnChange(e, file)
	}
}

func (c *Config) fail(err error) {
	if c.opts.OnError != nil {
		c.opts.OnError(err)
		return
	}
	logging.Warn("config: reload failed", zap.Error(err))
}

// CreateViper builds the layered viper instance: defaults, then each file
// variant in order, then environment variables, then set flags.
func CreateViper(opts Options) (*viper.Viper, []string, error) {
	configPaths := getConfigFilePaths(opts)
	if len(configPaths) == 0 && !opts.Optional {
		return nil, nil, fmt.Errorf("❌ No valid configuration files found in path: %s", opts.BasePath)
	}

	v := viper.New()
	v.SetConfigType(opts.FileType)

	var file File
	if err := defaults.Set(&file); err != nil {
		return nil, nil, fmt.Errorf("❌ Failed to set defaults: %w", err)
	}
	setViperDefaults(v, "", reflect.ValueOf(file))

	for _, configPath := range configPaths {
		tempV := viper.New()
		tempV.SetConfigFile(configPath)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("❌ Error reading config file %s: %w", configPath, err)
		}

		for _, key := range tempV.AllKeys() {
			v.Set(key, tempV.Get(key))
		}
	}

	v.SetEnvKeyReplacer(envKeyReplacer)
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()

	// Environment variables take priority over config files
	applyEnvOverrides(v, opts.EnvPrefix)
	applyFlagOverrides(v, opts)

	return v, configPaths, nil
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// applyEnvOverrides checks all config keys and overrides with environment variables if they exist.
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		// resize.max_width -> RESIZER_RESIZE_MAX_WIDTH
		envKey := strings.ToUpper(envKeyReplacer.Replace(key))
		if envPrefix != "" {
			envKey = envPrefix + "_" + envKey
		}

		if envValue := os.Getenv(envKey); envValue != "" {
			v.Set(key, envValue)
		}
	}
}

func applyFlagOverrides(v *viper.Viper, opts Options) {
	for key, flag := range opts.Flags {
		if flag != nil && flag.Changed {
			v.Set(key, flag.Value.String())
		}
	}
}

// setViperDefaults registers every mapstructure key of rv so that env
// overrides apply to keys absent from the files.
func setViperDefaults(v *viper.Viper, prefix string, rv reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		fv := rv.Field(i)
		if fv.Kind() == reflect.Struct {
			setViperDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

func getConfigFilePaths(opts Options) (configFiles []string) {
	env := Mode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
		fmt.Sprintf("%s.%s", opts.FileName, env),
		fmt.Sprintf("%s.%s.local", opts.FileName, env),
	}
	for _, alias := range env.aliases() {
		fileNames = append(fileNames, fmt.Sprintf("%s.%s", opts.FileName, alias))
		fileNames = append(fileNames, fmt.Sprintf("%s.%s.local", opts.FileName, alias))
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			configFiles = append(configFiles, file)
		}
	}

	return configFiles
}
