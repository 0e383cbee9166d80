package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/monkey-island/yookassa-payments/app/controllers"
	"github.com/monkey-island/yookassa-payments/internal/pkg/cache"
	"github.com/monkey-island/yookassa-payments/internal/pkg/database"
	"github.com/monkey-island/yookassa-payments/internal/pkg/env"
	"github.com/monkey-island/yookassa-payments/internal/pkg/fsqueue"
	"github.com/monkey-island/yookassa-payments/internal/pkg/payment"
	"github.com/monkey-island/yookassa-payments/internal/pkg/publisher"
	"github.com/monkey-island/yookassa-payments/internal/pkg/rwms"
	"github.com/monkey-island/yookassa-payments/internal/pkg/rwmstask"
	"github.com/monkey-island/yookassa-payments/internal/pkg/webhook"
)

func main() {
	env.SetupEnvFile()

	db := database.Setup()
	redisClient := cache.NewClientFromEnv()
	pub := publisher.NewRedisPublisher(redisClient)
	rwmsClient := rwms.NewClientFromEnv()
	squadUUID := env.MustGetEnv("INTERNAL_ALL_NODES_SQUAD_UUID")

	dataDir := env.GetEnv("QUEUE_DATA_DIR", ".")

	taskQueue, err := fsqueue.New(filepath.Join(dataDir, "rwms-tasks"))
	if err != nil {
		log.Fatal(err)
	}
	webhookQueue, err := fsqueue.New(filepath.Join(dataDir, "webhooks"))
	if err != nil {
		log.Fatal(err)
	}

	tasks := rwmstask.NewProcessor(taskQueue, db, rwmsClient, squadUUID, rwmstask.DefaultPollInterval)
	engine := payment.NewEngine(db, pub, tasks, rwmsClient, squadUUID)
	webhookProc := webhook.NewProcessor(webhookQueue, engine, webhook.DefaultPollInterval)

	// The two consumer loops run for the lifetime of the process. Items
	// stranded in processing by a previous crash stay put until remediated.
	ctx := context.Background()
	go webhookProc.Process(ctx)
	go tasks.Process(ctx)

	app := fiber.New()
	app.Use(recover.New(), logger.New())

	wc := controllers.NewWebhookController(webhookProc, env.GetEnv("TRUST_X_FORWARDED_FOR", "false") == "true")
	app.Post("/yookassa/webhook", wc.HandleYooKassaWebhook)

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))

	certFile := env.GetEnv("SSL_CERT_FILE", "")
	keyFile := env.GetEnv("SSL_KEY_FILE", "")
	if certFile == "" || keyFile == "" {
		log.Println("starting without SSL")
		log.Fatal(app.Listen(addr))
	}

	log.Printf("starting with SSL, cert %s, key %s", certFile, keyFile)
	log.Fatal(app.ListenTLS(addr, certFile, keyFile))
}
