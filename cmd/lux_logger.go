package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/rivo/tview"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"tinygo.org/x/bluetooth"

	"github.com/lowaak/lux-logger/internal/bt"
	"github.com/lowaak/lux-logger/internal/link"
	"github.com/lowaak/lux-logger/internal/sensor"
	"github.com/lowaak/lux-logger/internal/store"
	"github.com/lowaak/lux-logger/internal/ui"
)

func main() {
	cfg := loadConfig()
	logger := newLogger(cfg.GetString("log-file"))
	logger.Println("lux-logger starting")

	// Transport: real adapter or the simulated firmware
	var manager bt.ManagerInterface
	var firmware *link.MockFirmware
	if cfg.GetBool("mock") {
		firmware = link.NewMockFirmware(logger, link.MockFirmwareConfig{ChunkSize: 20})
		manager = link.NewMockManager(logger, firmware)
	} else {
		manager = bt.NewManager(bluetooth.DefaultAdapter, logger)
	}
	must("enable BLE stack", manager.Enable())

	model := sensor.NewModel(logger)

	// Persistence: whole-set snapshot plus the per-day rollup history
	snapshot := store.NewSnapshotStore(cfg.GetString("snapshot"), logger)
	if readings, stats, ok := snapshot.Load(); ok {
		model.LoadSnapshot(readings, stats)
	}
	model.SetSnapshotSink(snapshot)

	rollup, err := store.NewRollupStore(cfg.GetString("rollup-db"), logger)
	if err != nil {
		// Rollup history is best effort; the live snapshot still works
		logger.Printf("rollup store unavailable: %v", err)
	} else {
		model.SetRollupSink(rollup)
		defer rollup.Close()
	}

	coordinator := link.NewCoordinator(link.DefaultCoordinatorConfig(), logger)
	session := link.NewSession(link.SessionConfig{
		NamePrefix:     cfg.GetString("name-prefix"),
		PollInterval:   cfg.GetDuration("poll-interval"),
		ReconnectDelay: cfg.GetDuration("reconnect-delay"),
	}, manager, coordinator, model, logger)

	// Websocket presentation interface
	hub := ui.NewHub(model, session, logger)
	if addr := cfg.GetString("listen"); addr != "" {
		hub.Start(addr)
	}
	bridge := ui.NewBridge(model, hub, logger)

	// Terminal dashboard
	app := tview.NewApplication()
	controller := ui.NewController(session, model, coordinator, link.CmdClear, app.Stop, logger)
	view := ui.NewView(app, controller, model, logger)

	if firmware != nil {
		firmware.StartGenerating(3 * time.Second)
	}
	session.Connect()

	if err := view.Run(); err != nil {
		logger.Printf("UI error: %v", err)
	}

	logger.Println("lux-logger shutting down")
	view.Shutdown()
	bridge.Shutdown()
	hub.Shutdown()
	session.Close()
	manager.Shutdown()
	logger.Println("lux-logger shutdown complete")
}

// loadConfig wires flags over an optional YAML config file. Precedence is
// flags, then file, then defaults.
func loadConfig() *viper.Viper {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	configDir := filepath.Join(homeDir, ".lux-logger")

	pflag.String("config", "", "path to config file")
	pflag.String("name-prefix", link.DeviceNamePrefix, "advertised name prefix to match during scan")
	pflag.Duration("poll-interval", link.DefaultPollInterval, "how often to poll the device for readings")
	pflag.Duration("reconnect-delay", link.DefaultReconnectDelay, "wait before rescanning after a disconnect")
	pflag.String("snapshot", store.DefaultSnapshotPath(), "path of the readings snapshot file")
	pflag.String("rollup-db", filepath.Join(configDir, "rollups.db"), "path of the daily rollup database")
	pflag.String("listen", ":8090", "websocket listen address, empty to disable")
	pflag.String("log-file", filepath.Join(configDir, "lux-logger.log"), "path of the application log")
	pflag.Bool("mock", false, "use a simulated device instead of real Bluetooth")
	pflag.Parse()

	v := viper.New()
	must("bind flags", v.BindPFlags(pflag.CommandLine))

	if configFile := v.GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		must("read config", v.ReadInConfig())
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				must("read config", err)
			}
		}
	}

	return v
}

// newLogger writes to a size-rotated file; the terminal belongs to the UI
func newLogger(path string) *log.Logger {
	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	return log.New(writer, "", log.LstdFlags|log.Lmicroseconds)
}

func must(action string, err error) {
	if err != nil {
		panic(fmt.Sprintf("failed to %s: %v", action, err))
	}
}
