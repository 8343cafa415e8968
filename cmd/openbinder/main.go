package main

import (
	"log"

	"github.com/MrSnakeDoc/openbinder/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ openbinder failed to start: %v", err)
	}
}
