package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/plancompass/onboarding/internal/adapters/http"
	firestorestore "github.com/plancompass/onboarding/internal/adapters/storage/firestore"
	memstore "github.com/plancompass/onboarding/internal/adapters/storage/memory"
	sqlitestore "github.com/plancompass/onboarding/internal/adapters/storage/sqlite"
	"github.com/plancompass/onboarding/internal/app/onboarding"
	"github.com/plancompass/onboarding/internal/app/profile"
	"github.com/plancompass/onboarding/internal/config"
	"github.com/plancompass/onboarding/internal/domain"
	"github.com/plancompass/onboarding/internal/registry"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Storage: memory, SQLite or Firestore. Every backend serves all three
	// store interfaces.
	var (
		sessionStore domain.SessionStore
		answerLog    domain.AnswerLog
		profileStore domain.ProfileStore
	)

	switch cfg.StorageBackend {
	case "firestore":
		if cfg.GCPProjectID == "" {
			log.Fatal("ONBOARD_GCP_PROJECT is required for Firestore storage backend")
		}

		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		fsStore, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

		sessionStore = fsStore
		answerLog = fsStore
		profileStore = fsStore

	case "sqlite":
		log.Printf("[STORE] Using SQLite storage (path=%s)", cfg.SQLitePath)
		sqlStore, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error initializing SQLite store: %v", err)
		}
		defer sqlStore.Close()

		sessionStore = sqlStore
		answerLog = sqlStore
		profileStore = sqlStore

	default:
		log.Println("[STORE] Using in-memory storage")
		sessionStore = memstore.NewSessionStore()
		answerLog = memstore.NewAnswerLog()
		profileStore = memstore.NewProfileStore()
	}

	steps := registry.Default()

	generator := profile.NewGenerator(profileStore)
	svc := onboarding.NewService(steps, sessionStore, answerLog, generator, cfg.ResumeWindow)
	profileSvc := profile.NewService(profileStore)

	// HTTP server
	handler := httpadapter.NewServer(svc, profileSvc)

	port := ":" + cfg.Port
	log.Println("PlanCompass onboarding API listening on port:", port)
	if err := http.ListenAndServe(port, handler); err != nil {
		log.Fatal(err)
	}
}
