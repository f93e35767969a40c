package main

import (
	"flag"
	"log"

	"github.com/ivanychev/otodom-monitoring/internal"
)

func main() {
	once := flag.Bool("once", false, "run a single fetch cycle for every active filter and exit")
	restore := flag.String("restore", "", "restore storage from the fetched JSON dumps into the given filter scope and exit")
	flag.Parse()

	application, err := internal.NewApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if *restore != "" {
		if err := application.RestoreFromDumps(*restore); err != nil {
			log.Fatalf("Dump restore failed: %v", err)
		}
		return
	}

	if *once {
		if err := application.RunOnce(); err != nil {
			log.Fatalf("Fetch cycle failed: %v", err)
		}
		return
	}

	if err := application.Run(); err != nil {
		log.Fatalf("Application run failed: %v", err)
	}
}
