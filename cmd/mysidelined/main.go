package main

import (
	"context"

	"oldmanfooty-backend/lib/carnivalstore"
	"oldmanfooty-backend/lib/configutil"
	configsqlite "oldmanfooty-backend/lib/configutil/sqlite"
	"oldmanfooty-backend/lib/serviceutil"
	"oldmanfooty-backend/lib/telemetry"
	"oldmanfooty-backend/services/mysideline"
	mysidelinedb "oldmanfooty-backend/services/mysideline/db"
)

type Config struct {
	Database configsqlite.Struct `json:"database"`
	Port     int                 `json:"port"`
}

func main() {
	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if config.Port == 0 {
		config.Port = 8330
	}

	db, err := config.Database.OpenDB(carnivalstore.Schema + "\n" + mysidelinedb.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	t, err := telemetry.SetupFromEnv(ctx, "mysideline")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)
	telemetry.InitSlog(false)

	service := mysideline.NewService(ctx, mysideline.ConfigFromEnv(), db)
	err = service.Start()
	if err != nil {
		serviceutil.Fatal("failed to start mysideline service", err)
	}
	defer service.Stop()

	go serviceutil.StartHttpServer(config.Port, service.Handler())

	<-ctx.Done()
}
