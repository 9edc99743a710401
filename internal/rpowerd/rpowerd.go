package rpowerd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"RackPower/internal/driver"
	"RackPower/internal/power"
	"RackPower/internal/recorder"
	"RackPower/internal/region"
	"RackPower/internal/util"
)

var (
	FlagConfigFilePath string
	FlagDebugLevel     string
)

var RootCmd = &cobra.Command{
	Use:     "rpowerd",
	Short:   "rpowerd is the rack-local power control daemon",
	Args:    cobra.ExactArgs(0),
	Version: util.Version(),
	Run: func(cmd *cobra.Command, args []string) {
		config, err := util.LoadConfig(FlagConfigFilePath)
		if err != nil {
			log.Errorf("Failed to load config: %v", err)
			os.Exit(util.ErrorCmdArg)
		}

		level := config.Log.Level
		if cmd.Flags().Changed("debug-level") {
			level = FlagDebugLevel
		}
		if err := util.InitLogger(level, config.Log.File); err != nil {
			log.Errorf("Failed to init logger: %v", err)
			os.Exit(util.ErrorCmdArg)
		}
		util.PrintConfig(config)

		if err := runDaemon(config); err != nil {
			log.Errorf("Daemon failed: %v", err)
			os.Exit(util.ErrorGeneric)
		}
	},
}

func init() {
	RootCmd.SetVersionTemplate(util.VersionTemplate())
	RootCmd.Flags().StringVarP(&FlagConfigFilePath, "config", "C", util.DefaultConfigPath, "Path to config file")
	RootCmd.Flags().StringVarP(&FlagDebugLevel, "debug-level", "D", "", "Available debug level (trace, debug, info)")
}

func ParseCmdArgs() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(util.ErrorGeneric)
	}
}

func buildDriverRegistry(config *util.Config) (*driver.Registry, error) {
	registry := driver.NewRegistry()
	drivers := []driver.Driver{
		driver.NewIPMIDriver(config.Drivers.IpmitoolPath),
		driver.NewVirshDriver(config.Drivers.VirshPath),
		driver.NewWOLDriver(config.Drivers.WolBroadcastAddress),
		driver.NewLocalIPMIDriver(),
		driver.NewManualDriver(),
	}
	for _, d := range drivers {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func runDaemon(config *util.Config) error {
	registry, err := buildDriverRegistry(config)
	if err != nil {
		return err
	}
	registry.LogMissingPackages()

	regionClient := region.NewHTTPClient(
		config.Region.URL,
		config.Region.APIToken,
		time.Duration(config.Region.RequestTimeoutSeconds)*time.Second,
	)

	rec, err := recorder.New(config.Recorder)
	if err != nil {
		return err
	}
	defer rec.Close()

	engine := power.NewEngine(registry, regionClient, power.Options{
		ChangeTimeout:        time.Duration(config.Power.ChangeTimeoutSeconds) * time.Second,
		RetryPolicy:          config.RetryPolicy(),
		MaxConcurrentQueries: config.Power.MaxConcurrentQueries,
		Recorder:             rec,
	})

	server := NewServer(config.Power.ListenAddress, engine, regionClient)
	sweeper := NewSweeper(engine, regionClient,
		time.Duration(config.Power.SweepIntervalSeconds)*time.Second, server.UpdateNodeCache)
	sweeper.Start()

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s.", config.Power.ListenAddress)
		errCh <- server.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		log.Infof("Received %s, exiting...", sig)
	case err := <-errCh:
		sweeper.Stop()
		return err
	}

	sweeper.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
