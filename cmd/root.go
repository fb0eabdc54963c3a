/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	commport "github.com/allbin/go-commport"
	"github.com/allbin/go-commport/driver"
	"github.com/allbin/go-commport/driver/bugst"
	"github.com/allbin/go-commport/internal/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile  string
	v        = viper.New()
	appCfg   *Config
	log      = logging.Discard()
	closeLog = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "commport",
	Short: "Inspect and drive serial and parallel ports",
	Long: `commport opens serial and parallel ports through a port registry and
exposes line configuration, control signals and event monitoring.

Ports are addressed by logical name (for example COM1 from the config file)
or by device path. Configuration is read from commport.yaml in
$HOME/.config/commport or the working directory, and from COMMPORT_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.config/commport/commport.yaml)")
	rootCmd.PersistentFlags().String("driver", defaultDriver, "port driver: termios, bugst or sim")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("scan", true, "register ports found under /dev by device path")

	v.BindPFlag("driver", rootCmd.PersistentFlags().Lookup("driver"))
	v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	v.BindPFlag("scan", rootCmd.PersistentFlags().Lookup("scan"))
	setDefaults(v)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "commport"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("commport")
	}

	v.SetEnvPrefix("COMMPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	appCfg = cfg

	l, c, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	log, closeLog = l, c
	if used := v.ConfigFileUsed(); used != "" {
		log.WithField("file", used).Debug("Using config file")
	}
	return nil
}

// newDriver builds the driver named by the configuration.
func newDriver(name string) (driver.Driver, error) {
	switch name {
	case "termios":
		return platformDriver()
	case "bugst":
		return bugst.New(), nil
	default:
		return nil, fmt.Errorf("unknown driver: %s", name)
	}
}

// openRegistry builds a registry serving the configured aliases, any device
// paths given on the command line, and the /dev scan.
func openRegistry(paths ...string) (*commport.Registry, error) {
	sources := commport.MultiSource{aliasSource(appCfg.Ports)}
	var extra commport.StaticSource
	for _, p := range paths {
		if strings.HasPrefix(p, "/") {
			extra = append(extra, commport.Discovered{Name: p, PhysicalID: p, Kind: commport.KindForPath(p)})
		}
	}
	sources = append(sources, extra)

	if appCfg.Driver == "sim" {
		sources = append(sources, simPorts)
		found, err := sources.Discover()
		if err != nil {
			return nil, err
		}
		return commport.NewRegistry(newSimDriver(found), commport.StaticSource(found),
			commport.WithRegistryLogger(log))
	}

	if appCfg.Scan {
		sources = append(sources, commport.DeviceScanner{CharDevicesOnly: true})
	}
	drv, err := newDriver(appCfg.Driver)
	if err != nil {
		return nil, err
	}
	return commport.NewRegistry(drv, sources, commport.WithRegistryLogger(log))
}

func aliasSource(ports []PortAlias) commport.StaticSource {
	src := make(commport.StaticSource, 0, len(ports))
	for _, p := range ports {
		src = append(src, commport.Discovered{Name: p.Name, PhysicalID: p.Path, Kind: p.portKind()})
	}
	return src
}

// portOptions returns the options every command opens ports with.
func portOptions(extra ...commport.Option) []commport.Option {
	opts := []commport.Option{
		commport.WithLogger(log),
		commport.WithPollInterval(appCfg.Monitor.PollInterval),
		commport.WithStopTimeout(appCfg.Monitor.StopTimeout),
		commport.WithFaultHandler(func(f *commport.MonitorFault) {
			log.WithError(f.Err).WithFields(logrus.Fields{
				"port":     f.Port,
				"group":    f.Group.String(),
				"category": f.Category.String(),
			}).Error("Monitor fault")
		}),
	}
	return append(opts, extra...)
}

// openSerial opens name as a serial port or exits.
func openSerial(name string, extra ...commport.Option) *commport.SerialPort {
	reg, err := openRegistry(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building port registry: %v\n", err)
		os.Exit(1)
	}
	port, err := reg.OpenSerial(name, portOptions(extra...)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening port %s: %v\n", name, err)
		os.Exit(1)
	}
	return port
}

// openAny opens name as whatever kind the registry reports, or exits.
func openAny(name string, extra ...commport.Option) commport.Port {
	reg, err := openRegistry(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building port registry: %v\n", err)
		os.Exit(1)
	}
	port, err := reg.Open(name, portOptions(extra...)...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening port %s: %v\n", name, err)
		os.Exit(1)
	}
	return port
}
