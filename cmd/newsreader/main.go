package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"newsreader/internal/api"
	"newsreader/internal/config"
	"newsreader/internal/feeds"
	"newsreader/internal/llm"
	"newsreader/internal/rank"
	"newsreader/internal/ratelimit"
	"newsreader/internal/service"
	"newsreader/internal/store"
)

func main() {
	cfg := config.Load()

	pgURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.User, cfg.Database.Pass, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	db, err := sql.Open("postgres", pgURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	// simple ping + wait (db might be starting in docker)
	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		log.Printf("waiting for db: attempt %d, err: %v", i+1, err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatalf("could not connect to db: %v", err)
	}

	if err := store.RunMigrations(db); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warning: redis ping failed, feed cache disabled: %v", err)
	}

	repo := store.NewPgStore(db)
	fetcher := feeds.NewFetcher(&http.Client{Timeout: 15 * time.Second})

	llmClient := llm.NewClient(cfg.Assistant.URL, cfg.Assistant.Model, cfg.Assistant.APIKey, nil)
	llmClient.SetLogger(log.Printf)

	svc := service.NewService(repo, rdb, fetcher, llmClient, service.Options{
		Sources: cfg.Sources,
		Ranking: rank.Options{
			HalfLifeDays: cfg.Ranking.HalfLifeDays,
			Boosts: rank.Boosts{
				Source:  cfg.Ranking.SourceBoost,
				Topic:   cfg.Ranking.TopicBoost,
				Recency: cfg.Ranking.RecencyBoost,
			},
		},
		BatchTTL: cfg.Redis.BatchTTL(),
	})

	limiter := ratelimit.New(cfg.RateLimit.Limit, cfg.RateLimit.Window())
	handler := api.NewHandler(svc, limiter)

	router := gin.Default()
	api.RegisterRoutes(router, handler)

	log.Printf("listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
