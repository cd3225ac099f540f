package main

import (
	"os"

	"github.com/reduct-os/kvfs/config"
	"github.com/reduct-os/kvfs/example"
	log "github.com/sirupsen/logrus"
)

func main() {

	homeDir, _ := os.UserHomeDir()
	cfg := config.NewConfig([]string{
		"kvfs.ini",
		homeDir + "/.kvfs/kvfs.ini",
	})

	ds := example.NewDS(cfg.Drivers)
	if err := example.Run(cfg, ds); err != nil {
		log.Fatalf("kvfs: %v", err)
	}
}
