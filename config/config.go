package config

import (
	"time"

	"github.com/go-ini/ini"
	"github.com/spf13/pflag"
)

type AppConfig struct {
	Debug     bool
	Console   bool
	LogFile   string
	StatsAddr string
	Advertise bool
	Hostname  string

	// AcpiTable is a host file whose bytes appear at /dev/kernel.acpi.
	AcpiTable string
	FbWidth   int
	FbHeight  int

	DriverTimeout time.Duration
	ListBuffer    int
	MaxList       int

	// Drivers maps filesystem names to the host directories served under
	// ":name:".
	Drivers map[string]string
}

func NewConfig(iniFile []string) AppConfig {
	return NewConfigFromArgs(iniFile, nil)
}

// NewConfigFromArgs loads the first readable ini file and applies
// command-line overrides. A nil args parses the process's arguments.
func NewConfigFromArgs(iniFile []string, args []string) AppConfig {
	cfg := AppConfig{
		Debug:         false,
		Console:       true,
		LogFile:       "kvfs.log",
		StatsAddr:     "127.0.0.1:8082",
		Advertise:     false,
		Hostname:      "kvfs",
		FbWidth:       0,
		FbHeight:      0,
		DriverTimeout: 5 * time.Second,
		ListBuffer:    4096,
		MaxList:       1 << 20,
		Drivers:       map[string]string{},
	}

	var f *ini.File
	var err error
	for _, file := range iniFile {
		if f, err = ini.Load(file); err == nil {
			break
		}
	}

	if err == nil && f != nil {
		s, err := f.GetSection("Default")
		if err == nil {
			if v := s.Key("debug"); v != nil {
				if b, err := v.Bool(); err == nil {
					cfg.Debug = b
				}
			}
			if v := s.Key("console"); v != nil {
				if b, err := v.Bool(); err == nil {
					cfg.Console = b
				}
			}
			if v := s.Key("advertise"); v != nil {
				if b, err := v.Bool(); err == nil {
					cfg.Advertise = b
				}
			}
			cfg.LogFile = s.Key("log_file").MustString(cfg.LogFile)
			cfg.StatsAddr = s.Key("stats_addr").MustString(cfg.StatsAddr)
			cfg.Hostname = s.Key("hostname").MustString(cfg.Hostname)
			cfg.AcpiTable = s.Key("acpi_table").MustString(cfg.AcpiTable)
			cfg.FbWidth = s.Key("fb_width").MustInt(cfg.FbWidth)
			cfg.FbHeight = s.Key("fb_height").MustInt(cfg.FbHeight)
			cfg.DriverTimeout = s.Key("driver_timeout").MustDuration(cfg.DriverTimeout)
			cfg.ListBuffer = s.Key("list_buffer").MustInt(cfg.ListBuffer)
			cfg.MaxList = s.Key("max_list").MustInt(cfg.MaxList)
		}

		if s, err := f.GetSection("Drivers"); err == nil {
			for _, k := range s.Keys() {
				cfg.Drivers[k.Name()] = k.String()
			}
		}
	}

	fs := pflag.CommandLine
	if args != nil {
		fs = pflag.NewFlagSet("kvfs", pflag.ContinueOnError)
	}
	fs.BoolVarP(&cfg.Debug, "debug", "d", cfg.Debug, "debug mode")
	fs.BoolVarP(&cfg.Console, "console", "c", cfg.Console, "output logs to console")
	fs.StringVar(&cfg.LogFile, "log_file", cfg.LogFile, "log file used when not logging to console")
	fs.StringVarP(&cfg.StatsAddr, "stats_addr", "s", cfg.StatsAddr, "stats and metrics listen address, empty to disable")
	fs.BoolVarP(&cfg.Advertise, "advertise", "a", cfg.Advertise, "advertise the stats endpoint")
	fs.StringVarP(&cfg.Hostname, "hostname", "h", cfg.Hostname, "hostname to advertise")
	fs.StringVar(&cfg.AcpiTable, "acpi_table", cfg.AcpiTable, "file exposed as /dev/kernel.acpi")
	fs.IntVar(&cfg.FbWidth, "fb_width", cfg.FbWidth, "framebuffer width in pixels, 0 for none")
	fs.IntVar(&cfg.FbHeight, "fb_height", cfg.FbHeight, "framebuffer height in pixels")
	fs.DurationVar(&cfg.DriverTimeout, "driver_timeout", cfg.DriverTimeout, "user-space driver call timeout, 0 waits forever")
	fs.IntVar(&cfg.ListBuffer, "list_buffer", cfg.ListBuffer, "initial directory listing buffer")
	fs.IntVar(&cfg.MaxList, "max_list", cfg.MaxList, "largest directory listing a driver may return")
	fs.StringToStringVar(&cfg.Drivers, "driver", cfg.Drivers, "name=dir pairs served as user-space drivers")
	if args != nil {
		fs.Parse(args)
	} else {
		pflag.Parse()
	}

	return cfg
}
