package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	repo "github.com/joseph-ayodele/receipts-extractor/internal/repository"
)

func main() {
	verbose := pflag.Bool("list", false, "print every cached row")
	pflag.String("cache", "", "sqlite result cache path")
	pflag.Parse()

	cfg, err := common.LoadConfig(pflag.CommandLine)
	if err != nil {
		log.Printf("ERROR: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := repo.Open(ctx, repo.Config{Path: cfg.Cache.Path}, nil)
	if err != nil {
		log.Fatalf("opening cache: %v", err)
	}
	defer repo.Close(db, nil)

	if err := repo.HealthCheck(ctx, db, 1*time.Second); err != nil {
		log.Fatalf("cache health: FAIL (%v)", err)
	}
	log.Println("cache health: OK")

	rows, err := repo.NewResultRepository(db, nil).List(ctx)
	if err != nil {
		log.Fatalf("listing results: %v", err)
	}

	byStatus := map[string]int{}
	for _, r := range rows {
		byStatus[string(r.Status)]++
	}
	log.Printf("results count: %d %v", len(rows), byStatus)
	if !*verbose {
		return
	}
	for _, r := range rows {
		if r.ErrorCode != "" {
			log.Printf("- [%s] %s %s (%s)", r.Status, r.FileName, r.ErrorCode, r.UpdatedAt.Format(time.RFC3339))
			continue
		}
		log.Printf("- [%s] %s (%s)", r.Status, r.FileName, r.UpdatedAt.Format(time.RFC3339))
	}
}
