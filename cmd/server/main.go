package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/aipush/directory/internal/config"
	"github.com/aipush/directory/internal/es"
	"github.com/aipush/directory/internal/events"
	"github.com/aipush/directory/internal/guard"
	"github.com/aipush/directory/internal/handlers"
	"github.com/aipush/directory/internal/logging"
	"github.com/aipush/directory/internal/service"
	"github.com/aipush/directory/internal/session"
	"github.com/aipush/directory/internal/storage"
	"github.com/aipush/directory/internal/token"
	httpserver "github.com/aipush/directory/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	if err := service.EnsureAdmin(context.Background(), db, configuration.ADMIN_PASSWORD); err != nil {
		log.Fatalf("admin bootstrap failed: %v", err)
	}

	prod := events.NewProducer([]string{configuration.KAFKA_ADDRESS})

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}

	kv := storage.NewRedisStore(configuration.REDIS_ADDR, configuration.REDIS_PASSWORD)

	sessions := &session.Store{
		DB:       db,
		KV:       kv,
		Codec:    token.NewCodec([]byte(configuration.SESSION_SECRET)),
		Producer: prod,
	}
	userSvc := &service.UserService{DB: db, Producer: prod}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := logging.IntoContext(c.Request().Context(), logger)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	})

	deps := httpserver.Deps{
		Guard: &guard.Guard{Sessions: sessions, LoginPath: "/admin/login"},
		AuthHandler: &handlers.AuthHandler{
			Sessions: sessions,
			Users:    userSvc,
			Accounts: &service.AccountService{Users: userSvc, DB: db, Producer: prod},
		},
		ToolHandler:     &handlers.ToolHandler{Tools: &service.ToolService{DB: db, Producer: prod}},
		UserHandler:     &handlers.UserHandler{Users: userSvc},
		ContentHandler:  &handlers.ContentHandler{Content: &service.ContentService{DB: db, Producer: prod}},
		FavoriteHandler: &handlers.FavoriteHandler{Favorites: &service.FavoriteService{DB: db}},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: "tools"},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := kv.Close(); err != nil {
		log.Printf("redis close error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
