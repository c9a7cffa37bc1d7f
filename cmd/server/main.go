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

	"github.com/vkuznec/parts_shop/internal/config"
	"github.com/vkuznec/parts_shop/internal/es"
	"github.com/vkuznec/parts_shop/internal/handlers"
	"github.com/vkuznec/parts_shop/internal/logging"
	authmw "github.com/vkuznec/parts_shop/internal/middleware/auth"
	"github.com/vkuznec/parts_shop/internal/mykafka"
	"github.com/vkuznec/parts_shop/internal/service/sale"
	"github.com/vkuznec/parts_shop/internal/service/token"
	"github.com/vkuznec/parts_shop/internal/storage"
	httpserver "github.com/vkuznec/parts_shop/internal/transport/http"
	loggingmw "github.com/vkuznec/parts_shop/pkg/middleware/logging"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)

	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Ошибка инициализации БД: %v", err)
	}

	if err := config.EnsureAdmin(db, configuration); err != nil {
		log.Fatalf("Ошибка создания администратора: %v", err)
	}

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatal(err)
		}
	} else {
		logger.Warn("KAFKA_ADDRESS is empty, event publishing disabled")
	}

	var indexer *es.Indexer
	var searchHandler *handlers.SearchHandler
	if configuration.ES_URL != "" {
		esClient, err := es.NewClient(configuration)
		if err != nil {
			log.Fatal(err)
		}
		indexer = &es.Indexer{ES: esClient, Index: "parts"}
		searchHandler = handlers.NewSearchHandler(esClient, "parts")
	} else {
		logger.Warn("ES_URL is empty, search indexing disabled")
	}

	store := storage.New(configuration.UPLOAD_DIR)

	tokens := &token.Service{
		DB:            db,
		JWTSecret:     []byte(configuration.JWT_SECRET),
		RefreshSecret: []byte(configuration.REFRESH_SECRET),
	}

	saleSvc := &sale.Service{
		DB:       db,
		Store:    store,
		Producer: prod,
		Search:   indexer,
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:          db,
		AuthHandler: &handlers.AuthHandler{DB: db, Tokens: tokens, Producer: prod},
		PartHandler: &handlers.PartHandler{
			DB:       db,
			Store:    store,
			Svc:      saleSvc,
			Producer: prod,
			Search:   indexer,
		},
		SaleHandler:   &handlers.SaleHandler{DB: db, Svc: saleSvc, Producer: prod},
		SearchHandler: searchHandler,
		Gate:          &authmw.Gate{Tokens: tokens},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + configuration.PORT,
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

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
