package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	commport "github.com/allbin/go-commport"
	"github.com/spf13/viper"
)

func validConfig() Config {
	return Config{
		Driver: "sim",
		Scan:   true,
		Ports: []PortAlias{
			{Name: "COM1", Path: "/dev/ttyS0"},
			{Name: "LPT1", Path: "/dev/lp0", Kind: "parallel"},
		},
		Log:     LogConfig{Level: "info", MaxSizeMB: 10},
		Monitor: MonitorConfig{PollInterval: 100 * time.Millisecond, StopTimeout: 5 * time.Second},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		fields []string
	}{
		{"valid", func(*Config) {}, nil},
		{"unknown driver", func(c *Config) { c.Driver = "usb" }, []string{"driver"}},
		{"missing name", func(c *Config) { c.Ports[0].Name = "" }, []string{"ports[0].name"}},
		{"duplicate name", func(c *Config) { c.Ports[1].Name = "COM1" }, []string{"ports[1].name"}},
		{"missing path", func(c *Config) { c.Ports[1].Path = "" }, []string{"ports[1].path"}},
		{"bad kind", func(c *Config) { c.Ports[0].Kind = "usb" }, []string{"ports[0].kind"}},
		{"zero poll interval", func(c *Config) { c.Monitor.PollInterval = 0 }, []string{"monitor.poll_interval"}},
		{"multiple", func(c *Config) {
			c.Monitor.StopTimeout = 0
			c.Log.MaxSizeMB = -1
		}, []string{"monitor.stop_timeout", "log.max_size_mb"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()

			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}

			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error = %v, want ValidationErrors", err)
			}
			if len(verrs) != len(tt.fields) {
				t.Fatalf("Validate() = %v, want fields %v", verrs, tt.fields)
			}
			for i, f := range tt.fields {
				if verrs[i].Field != f {
					t.Errorf("error[%d].Field = %s, want %s", i, verrs[i].Field, f)
				}
			}
		})
	}
}

func TestValidationErrorsError(t *testing.T) {
	errs := ValidationErrors{
		{Field: "driver", Message: "unknown driver: x"},
		{Field: "monitor.poll_interval", Message: "must be greater than 0"},
	}
	want := "driver: unknown driver: x; monitor.poll_interval: must be greater than 0"
	if got := errs.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestPortAliasKind(t *testing.T) {
	tests := []struct {
		alias PortAlias
		want  commport.PortKind
	}{
		{PortAlias{Path: "/dev/ttyUSB0"}, commport.PortKindSerial},
		{PortAlias{Path: "/dev/lp1"}, commport.PortKindParallel},
		{PortAlias{Path: "/dev/custom", Kind: "parallel"}, commport.PortKindParallel},
		{PortAlias{Path: "/dev/lp0", Kind: "serial"}, commport.PortKindSerial},
	}
	for _, tt := range tests {
		if got := tt.alias.portKind(); got != tt.want {
			t.Errorf("portKind(%+v) = %v, want %v", tt.alias, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "commport.yaml")
	content := `driver: sim
scan: false
ports:
  - name: COM1
    path: /dev/ttyS0
  - name: LPT1
    path: /dev/lp0
log:
  level: debug
monitor:
  poll_interval: 20ms
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Driver != "sim" || cfg.Scan {
		t.Errorf("driver, scan = %s, %v, want sim, false", cfg.Driver, cfg.Scan)
	}
	if len(cfg.Ports) != 2 || cfg.Ports[1].Name != "LPT1" || cfg.Ports[1].Path != "/dev/lp0" {
		t.Errorf("Ports = %+v", cfg.Ports)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %s, want debug", cfg.Log.Level)
	}
	if cfg.Monitor.PollInterval != 20*time.Millisecond {
		t.Errorf("PollInterval = %v, want 20ms", cfg.Monitor.PollInterval)
	}
	if cfg.Monitor.StopTimeout != 5*time.Second {
		t.Errorf("StopTimeout = %v, want default 5s", cfg.Monitor.StopTimeout)
	}

	v.Set("driver", "nope")
	if _, err := loadConfig(v); err == nil || !strings.Contains(err.Error(), "unknown driver") {
		t.Errorf("loadConfig() with bad driver error = %v", err)
	}
}

func TestOpenRegistrySim(t *testing.T) {
	appCfg = &Config{
		Driver:  "sim",
		Ports:   []PortAlias{{Name: "COM1", Path: "/dev/ttyS0"}},
		Monitor: MonitorConfig{PollInterval: 10 * time.Millisecond, StopTimeout: time.Second},
	}
	t.Cleanup(func() { appCfg = nil })

	reg, err := openRegistry("/dev/ttyUSB7")
	if err != nil {
		t.Fatalf("openRegistry() error = %v", err)
	}

	var names []string
	for _, e := range reg.Entries() {
		names = append(names, e.Name())
	}
	want := []string{"COM1", "/dev/ttyUSB7", "SIM0", "SIM1", "SIMLPT"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("entries = %v, want %v", names, want)
	}

	p, err := reg.OpenSerial("COM1", portOptions()...)
	if err != nil {
		t.Fatalf("OpenSerial(COM1) error = %v", err)
	}
	defer p.Close()
	if got := p.LineParams(); got != commport.DefaultLineParams() {
		t.Errorf("LineParams() = %v, want %v", got, commport.DefaultLineParams())
	}

	pp, err := reg.OpenParallel("SIMLPT", portOptions()...)
	if err != nil {
		t.Fatalf("OpenParallel(SIMLPT) error = %v", err)
	}
	pp.Close()
}
