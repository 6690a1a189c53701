package app

import (
	"fmt"
	"log"
	"os"

	"github.com/stgeorges/biolms/api"
	"github.com/stgeorges/biolms/config"
	"github.com/stgeorges/biolms/database"
	"github.com/stgeorges/biolms/router"
	"github.com/stgeorges/biolms/services"
	cronsvc "github.com/stgeorges/biolms/services/cron"
	"github.com/stgeorges/biolms/utils/auth"
	"gorm.io/gorm"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether Postgres is running or not\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Reports are served by the GORM store unless REPORT_STORE=pq
	// selects the legacy raw-SQL store.
	var reportStore database.Storage = store
	if os.Getenv("REPORT_STORE") == "pq" {
		pqStore, err := database.Start()
		if err != nil {
			print("Check whether Postgres is running or not\n")
			return err
		}
		if err := pqStore.HealthCheck(); err != nil {
			return err
		}
		defer pqStore.Close()
		reportStore = pqStore
	}

	// Cron manager (enabled unless CRON_ENABLED=false)
	var cronManager *cronsvc.Manager
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		return fmt.Errorf("failed to get GORM DB instance")
	}

	jobs := cronsvc.DefaultJobs(
		services.NewLiveClassService(db),
		services.NewNotificationService(db),
		auth.NewBlacklistService(db),
	)
	cronManager = cronsvc.NewManager(db, jobs)
	if os.Getenv("CRON_ENABLED") != "false" {
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes
	router.SetupRoutes(app, store, reportStore, cronManager, getEnv)

	// Get the PORT & Start the Server
	return server.Run()
}
