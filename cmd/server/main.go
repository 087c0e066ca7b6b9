package main

import (
	"log"

	"github.com/yong-jelly/usemap-sub002/internal/transport/http"
)

func main() {
	if err := http.Run(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
