package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"go-marketplace/controllers"
	"go-marketplace/lifecycle"
	"go-marketplace/repository"
	"go-marketplace/routes"
	"go-marketplace/utils"
)

func main() {
	cfg, err := utils.LoadConfig()
	if err != nil {
		// No logger yet; the config decides which one to build.
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := utils.NewLogger(cfg)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *repository.Store
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store, data is lost on restart")
		store = repository.NewMemoryStore()
	default:
		client, err := utils.ConnectDB(ctx, cfg.MongoURI)
		if err != nil {
			log.Fatal("failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error("failed to disconnect from MongoDB", zap.Error(err))
			}
		}()
		db := client.Database(cfg.MongoDB)
		if err := repository.EnsureIndexes(ctx, db); err != nil {
			log.Fatal("failed to create indexes", zap.Error(err))
		}
		store = repository.NewMongoStore(db)
	}

	mailer, err := utils.NewMailer(cfg, log)
	if err != nil {
		log.Fatal("failed to configure mail", zap.Error(err))
	}

	// Initialize controllers
	reconciler := lifecycle.NewReconciler(lifecycle.Policy{AllowBackward: cfg.AllowBackward}, log.Named("lifecycle"))
	ctrls := routes.Controllers{
		Products:  controllers.NewProductController(store.Products, log.Named("products")),
		Carts:     controllers.NewCartController(store, cfg.Pricing, log.Named("cart")),
		Addresses: controllers.NewAddressController(store.Addresses, log.Named("address")),
		Orders:    controllers.NewOrderController(store, cfg.Pricing, cfg.Coupons, reconciler, mailer, log.Named("orders")),
	}

	// Set up the router
	router := mux.NewRouter()
	routes.RegisterRoutes(router, ctrls, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("server is running", zap.String("port", cfg.Port), zap.String("store", cfg.Store))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server stopped", zap.Error(err))
	}
}
