package realtime

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DanceAddiction/DogShitAEye/internal/conf"
	"github.com/DanceAddiction/DogShitAEye/internal/service"
)

// Command creates a new command for realtime walker tracking.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Track dog walkers in realtime mode",
		Long:  "Start consuming Frigate detection events and tracking walker identities in real time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := service.New(settings)
			if err != nil {
				return err
			}
			return svc.Run(ctx)
		},
	}

	// Set up flags specific to the 'realtime' command
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Frigate.MQTT.Broker, "broker", viper.GetString("frigate.mqtt.broker"), "MQTT broker URL (\"tcp://host:1883\")")
	cmd.Flags().StringVar(&settings.Frigate.Host, "frigatehost", viper.GetString("frigate.host"), "Frigate API host")
	cmd.Flags().IntVar(&settings.Frigate.Port, "frigateport", viper.GetInt("frigate.port"), "Frigate API port")
	cmd.Flags().StringVar(&settings.Main.Log.Path, "logpath", viper.GetString("main.log.path"), "Path to save log files")
	cmd.Flags().BoolVar(&settings.WebServer.Enabled, "webserver", viper.GetBool("webserver.enabled"), "Enable the web API server")
	cmd.Flags().IntVar(&settings.WebServer.Port, "port", viper.GetInt("webserver.port"), "Web API server port")
	cmd.Flags().BoolVar(&settings.Images.Enabled, "images", viper.GetBool("images.enabled"), "Enable evidence image capture")
	cmd.Flags().StringVar(&settings.Images.StoragePath, "imagepath", viper.GetString("images.storagepath"), "Path to store evidence images")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %v", err)
	}

	return nil
}
