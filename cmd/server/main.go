package main

import (
	"github.com/OFFIS-RIT/motifs/internal/server"
	"github.com/OFFIS-RIT/motifs/internal/util"
	"github.com/OFFIS-RIT/motifs/pkg/logger"
	"github.com/OFFIS-RIT/motifs/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnvBool("LOG_JSON", false),
		Prefix: "server",
	})
	logger.Init(consoleLogger)

	server.Init()
}
