package main

import (
	"fmt"
	"os"

	"civicbriefs/cmd/handlers"
	"civicbriefs/internal/logger"
)

func main() {
	logger.Init()
	if err := handlers.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
