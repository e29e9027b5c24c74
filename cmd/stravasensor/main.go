// Command stravasensor bridges cycling activity uploads to Home Assistant:
// it receives Strava push events, locates the original FIT upload across
// providers and publishes device battery statuses over MQTT.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
