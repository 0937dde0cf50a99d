package main

import (
	"context"
	"log"
	"os"

	"github.com/MultiX0/dbgate/api"
	"github.com/MultiX0/dbgate/db"
	"github.com/MultiX0/dbgate/functions"
)

func main() {
	addr := envOr("DBGATE_ADDR", ":8080")
	storePath := envOr("DBGATE_CONFIG_DB", "./configs.db")

	log.Println("Starting...")

	store, err := db.OpenStore(storePath)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	engine := functions.NewEngine(store)
	defer engine.Stop()

	engine.Preload(context.Background())

	configs := db.NewConfigService(store, engine.Contexts)

	server := api.NewAPIServer(addr, engine, configs)
	if err := server.Run(); err != nil {
		log.Fatal(err)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
