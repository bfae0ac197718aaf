package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/ledship/internal/adapters/fs"
	"github.com/bft-labs/ledship/internal/cliconfig"
	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/pkg/ledship"
	logAdapter "github.com/bft-labs/ledship/pkg/log"
	"github.com/bft-labs/ledship/plugins/configwatcher"
)

const helpDescription = `
Drive Tasmota and WLED light strips from a raw RGB stream.

Frames arrive as UDP datagrams of packed RGB bytes. Each frame is remapped
per device and sent as hex color commands over MQTT (Tasmota) or as WLED
realtime datagrams.

Configure via file, env (LEDSHIP_*) or flags. Devices are read from the
config file and reloaded when it changes.
`

var exampleUsage = strings.TrimSpace(`
  ledship --config /etc/ledship/config.toml
  ledship --mqtt-url tcp://broker:1883 --log-level debug
  ledship devices
  ledship status
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log := cliconfig.Logger()
		log.Error().Err(err).Msg("ledship")
		os.Exit(1)
	}
}

// cli carries the flag-bound configuration shared by all subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
}

func newRootCommand() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "ledship",
		Short:         "Drive Tasmota and WLED light strips from a raw RGB stream",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s (library %s) %s/%s", getVersion(), ledship.Version, runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.ledship/config.toml)")
	flags.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.StringVar(&c.cfg.StatusFile, "status-file", c.cfg.StatusFile, "status snapshot file (default: <tmp>/"+fs.DefaultStatsFile+")")

	local := root.Flags()
	local.StringVar(&c.cfg.UDPBindAddress, "udp-bind", c.cfg.UDPBindAddress, "address to receive frames on")
	local.StringVar(&c.cfg.SendBindAddress, "send-bind", c.cfg.SendBindAddress, "local address for WLED datagrams")
	local.IntVar(&c.cfg.ReceiveBufferSize, "buffer-size", c.cfg.ReceiveBufferSize, "largest frame accepted in full, in bytes")
	local.IntVar(&c.cfg.QueueSize, "queue-size", c.cfg.QueueSize, "frames buffered between receive and dispatch")
	local.BoolVar(&c.cfg.ChangeDetection, "change-detection", c.cfg.ChangeDetection, "skip Tasmota updates for unchanged frames")
	local.IntVar(&c.cfg.WLEDTimeout, "wled-timeout", c.cfg.WLEDTimeout, "WLED realtime timeout in seconds (255 = never)")
	local.StringVar(&c.cfg.LockFile, "lock-file", c.cfg.LockFile, "refuse to start while another instance holds this lock")
	local.DurationVar(&c.cfg.StatusInterval, "status-interval", c.cfg.StatusInterval, "how often the status file is written")

	local.StringVar(&c.cfg.MQTT.URL, "mqtt-url", c.cfg.MQTT.URL, "MQTT broker URL, e.g. tcp://localhost:1883")
	local.StringVar(&c.cfg.MQTT.ClientID, "mqtt-client-id", c.cfg.MQTT.ClientID, "MQTT client id (default: ledship-<uuid>)")
	local.StringVar(&c.cfg.MQTT.User, "mqtt-user", c.cfg.MQTT.User, "MQTT username")
	local.StringVar(&c.cfg.MQTT.Password, "mqtt-password", c.cfg.MQTT.Password, "MQTT password")
	local.IntVar(&c.cfg.MQTT.QoS, "mqtt-qos", c.cfg.MQTT.QoS, "MQTT publish QoS (0, 1 or 2)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the bridge (default command)",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	runCmd.Flags().AddFlagSet(local)

	root.AddCommand(
		runCmd,
		&cobra.Command{
			Use:   "check",
			Short: "Validate the configuration and exit",
			Args:  cobra.NoArgs,
			RunE:  c.check,
		},
		&cobra.Command{
			Use:   "devices",
			Short: "Show the mapping table of every configured device",
			Args:  cobra.NoArgs,
			RunE:  c.devices,
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the last status snapshot of a running bridge",
			Args:  cobra.NoArgs,
			RunE:  c.status,
		},
	)

	return root
}

// load resolves the configuration with precedence flags > env > file >
// defaults and builds the device set.
func (c *cli) load(cmd *cobra.Command) (cliconfig.Config, domain.DeviceSet, string, error) {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	cfg, devices, err := cliconfig.Load(c.cfg, cfgFile, changedFlags(cmd))
	if err != nil {
		return cfg, devices, cfgFile, err
	}
	if err := cliconfig.SetLogLevel(cfg.LogLevel); err != nil {
		return cfg, devices, cfgFile, err
	}
	return cfg, devices, cfgFile, nil
}

func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	return changed
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	cfg, devices, cfgFile, err := c.load(cmd)
	if err != nil {
		return err
	}

	log := cliconfig.Logger()
	log.Info().Interface("config", cfg.Redacted()).Msg("configuration")

	changed := changedFlags(cmd)
	reload := func(path string) (ledship.DeviceSet, error) {
		_, set, err := cliconfig.Load(c.cfg, path, changed)
		return set, err
	}

	b, err := ledship.New(libConfig(cfg, devices),
		ledship.WithLogger(logAdapter.NewZerologAdapterWithLogger(log)),
		configwatcher.WithConfigWatcher(configwatcher.DefaultConfig(cfgFile, reload)),
	)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received signal, stopping...")
	case <-b.Done():
		if b.Status() == ledship.StateCrashed {
			log.Error().Msg("bridge crashed")
		}
	}

	if err := b.Stop(); err != nil {
		return fmt.Errorf("stop bridge: %w", err)
	}
	return nil
}

func (c *cli) check(cmd *cobra.Command, args []string) error {
	cfg, devices, cfgFile, err := c.load(cmd)
	if err != nil {
		return err
	}
	if _, err := ledship.New(libConfig(cfg, devices)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d tasmota, %d wled)\n",
		cfgFile, len(devices.Text), len(devices.Binary))
	return nil
}

func (c *cli) devices(cmd *cobra.Command, args []string) error {
	_, devices, _, err := c.load(cmd)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderDevices(devices))
	return nil
}

func (c *cli) status(cmd *cobra.Command, args []string) error {
	path := c.cfg.StatusFile
	if !cmd.Flags().Changed("status-file") {
		// The config file may name another status file; devices need not
		// validate for this.
		cfgFile := c.cfgPath
		if cfgFile == "" {
			cfgFile = cliconfig.DefaultConfigPath()
		}
		if cfgFile != "" && cliconfig.FileExists(cfgFile) {
			if fc, err := cliconfig.LoadFileConfig(cfgFile); err == nil && fc.StatusFile != "" {
				path = fc.StatusFile
			}
		}
		if env := os.Getenv(cliconfig.EnvPrefix + "STATUS_FILE"); env != "" {
			path = env
		}
	}

	repo := fs.NewStatsFileRepository(defaultStatusFile(path))
	stats, err := repo.Load(cmd.Context())
	if err != nil {
		return err
	}
	if stats.SavedAt.IsZero() {
		return fmt.Errorf("no status snapshot at %s; is the bridge running?", repo.Path())
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats, time.Now()))
	return nil
}

// defaultStatusFile places the status file in the temp dir when none is
// configured, so `ledship status` works without configuration.
func defaultStatusFile(path string) string {
	if path != "" {
		return path
	}
	return fs.NewStatsFileRepository("").Path()
}

func libConfig(cfg cliconfig.Config, devices domain.DeviceSet) ledship.Config {
	return ledship.Config{
		UDPBindAddress:    cfg.UDPBindAddress,
		SendBindAddress:   cfg.SendBindAddress,
		ReceiveBufferSize: cfg.ReceiveBufferSize,
		QueueSize:         cfg.QueueSize,
		ChangeDetection:   cfg.ChangeDetection,
		WLEDTimeout:       byte(cfg.WLEDTimeout),
		MQTT: ledship.MQTTConfig{
			URL:      cfg.MQTT.URL,
			ClientID: cfg.MQTT.ClientID,
			User:     cfg.MQTT.User,
			Password: cfg.MQTT.Password,
			QoS:      byte(cfg.MQTT.QoS),
		},
		Devices:        devices,
		LockFile:       cfg.LockFile,
		StatusFile:     defaultStatusFile(cfg.StatusFile),
		StatusInterval: cfg.StatusInterval,
	}
}
