package main

import (
	"context"

	"oldmanfooty-backend/cmd/mysideline-cli/commands"
	"oldmanfooty-backend/lib/telemetry"
)

func main() {
	telemetry.SetupFromEnv(context.Background(), "mysideline-cli")
	telemetry.InitSlog(true)
	commands.ExecuteContext(context.Background())
}
