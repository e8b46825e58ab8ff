package main

import (
	"log"
)

func main() {
	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	if err := EnsureDefaultDomains(db); err != nil {
		log.Fatalf("Failed to seed domains: %v", err)
	}

	StartMaintenanceScheduler(cfg, db)
	StartQuestionNudger(cfg, db)

	log.Println("Starting Brainbot...")
	server := NewServer(cfg, db)
	if err := server.Start(); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}
}
