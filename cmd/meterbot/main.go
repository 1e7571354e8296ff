package main

import (
	"log"

	corecmd "github.com/m3rciful/meterbot/core/cmd"
	"github.com/m3rciful/meterbot/internal/bot"
	"github.com/m3rciful/meterbot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return config.Load(path)
		},
		Bootstrap: bot.Bootstrap,
	})
	if err != nil {
		log.Fatal(err)
	}
}
