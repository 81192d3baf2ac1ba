package main

import (
	"os"

	"calendar-sync/core/logger"
	"calendar-sync/core/server"
)

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", "error", err)
		os.Exit(1)
	}
}
