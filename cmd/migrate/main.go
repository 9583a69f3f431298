package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"ms-seating/internal/config"
	"ms-seating/internal/database"
	"ms-seating/internal/database/migrations"
	"ms-seating/internal/logger"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cmd := flag.String("cmd", "up", "migration command: up, down, to, version")
	target := flag.Uint("version", migrations.SchemaVersion, "target version for -cmd=to")
	flag.Parse()

	log := logger.NewLogger("seating-migrate")
	defer log.Close()

	cfg := config.Load()
	log.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.Database.Driver != database.DriverPostgres {
		log.Fatal("MIGRATE", fmt.Sprintf("migrations only run against postgres, got %q", cfg.Database.Driver))
	}

	bunDB, err := database.Open(context.Background(), cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.OptionsFrom(cfg.Migrations), log)
	defer runner.Close()

	switch *cmd {
	case "up":
		err = runner.MigrateUp()
	case "down":
		err = runner.MigrateDown()
	case "to":
		err = runner.MigrateTo(*target)
	case "version":
		version, dirty, ok, verr := runner.Version()
		if verr != nil {
			err = verr
			break
		}
		if !ok {
			fmt.Println("no migrations applied")
			return
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", *cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal("MIGRATE", err.Error())
	}
	log.Info("MIGRATE", fmt.Sprintf("✅ %s completed", *cmd))
}
