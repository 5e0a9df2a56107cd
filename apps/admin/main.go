package main

import (
	"context"
	"log"
	"os"

	"github.com/showtime/portal/core"
	logsvc "github.com/showtime/portal/services/logger"
	"github.com/showtime/portal/storage/database"
	mongodb "github.com/showtime/portal/storage/database/mongo"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()
	rl := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	rl.Enable(!conf.Debug)
	logger = rl

	// set up DB
	ctx := context.Background()
	db, err := database.Open(ctx, conf)
	errAndDie(err)

	// start CLI
	cli := commandLine{
		empRepo: mongodb.NewEmployeeRepository(db),
		ensureIndexes: func(ctx context.Context) error {
			return database.EnsureIndexes(ctx, db)
		},
	}
	err = cli.run(os.Args)
	if cErr := database.Close(ctx, db); cErr != nil {
		logger.Error("closing database", cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error("command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
