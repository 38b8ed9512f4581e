package main

import (
	"log"

	"github.com/Krishanu16/gate-platform/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
