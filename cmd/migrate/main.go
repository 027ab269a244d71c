// migrate applies the embedded SQL migrations to the MySQL database named by
// the DB_* variables.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	cfg := config.Load()
	if cfg.StoreDriver != config.StoreMySQL {
		fmt.Fprintln(os.Stderr, "migrate: STORE_DRIVER must be mysql")
		os.Exit(1)
	}
	dsn := database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, true)
	if err := database.Migrate(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}
