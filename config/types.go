package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/leeforge/resizer/logging"
	"github.com/leeforge/resizer/resizer"
	"github.com/leeforge/resizer/storage"
)

// File is the shape of a resizer config file.
type File struct {
	Resize  resizer.Config `mapstructure:"resize" json:"resize" yaml:"resize"`
	Logging logging.Config `mapstructure:"logging" json:"logging" yaml:"logging"`
	Storage storage.Config `mapstructure:"storage" json:"storage" yaml:"storage"`
}

type Config struct {
	instance   *viper.Viper
	opts       Options
	files      []string
	watcher    *fsnotify.Watcher
	watchMutex sync.RWMutex
	file       File
}

type Options struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// Flags maps config keys such as "resize.max_width" to command line
	// flags. A flag overrides files and environment only when it was set.
	Flags map[string]*pflag.Flag
	// Optional lets Load succeed with defaults and env overrides when no file exists.
	Optional  bool
	WatchAble bool
	OnChange  func(e fsnotify.Event, f File)
	// OnError receives reload failures; the previous File stays in effect.
	OnError func(err error)
}
