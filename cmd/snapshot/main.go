package main

import (
	"fmt"
	"os"

	"rankledger/internal/cli"
	"rankledger/internal/config"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cmd := cli.NewRootCommand(config.Load())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
