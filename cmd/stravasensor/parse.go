package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/stravasensor/internal/config"
	"example.com/stravasensor/internal/fitfile"
	"example.com/stravasensor/internal/mqtt"
)

var parsePublish bool

var parseCmd = &cobra.Command{
	Use:   "parse <uri>",
	Short: "Resolve an activity URI, decode the FIT upload and print device statuses",
	Long: `Resolve an activity URI to its source, decode the FIT upload and print the
device battery statuses it carries. Accepts file://, garmin:// and strava://
URIs as well as provider web links. With --publish the statuses are also
published to the configured MQTT broker.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		registry := buildRegistry(cfg)

		src, err := registry.Resolve(args[0])
		if err != nil {
			return err
		}
		payload, err := src.Read(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		activity, err := fitfile.Parse(payload)
		if err != nil {
			return err
		}

		statuses := activity.DeviceStatuses()
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(statuses); err != nil {
			return err
		}

		if !parsePublish {
			return nil
		}
		client, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTUsername, cfg.MQTTPassword,
			cfg.MQTTPublishRetries, cfg.MQTTPublishBaseDelay)
		if err != nil {
			return err
		}
		defer client.Disconnect()

		publisher := mqtt.NewPublisher(client, cfg.DiscoveryPrefix, cfg.StateTopicPrefix)
		for _, status := range statuses {
			if !publisher.PublishDeviceStatus(status) {
				return fmt.Errorf("failed to publish status of device %s", status.SerialNumber)
			}
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parsePublish, "publish", false, "publish device statuses to MQTT")
}
