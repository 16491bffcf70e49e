package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"clothify/internal/config"
	"clothify/internal/database"
	"clothify/internal/handlers"
	"clothify/internal/middleware"
	"clothify/internal/models"
	"clothify/internal/repositories"
	"clothify/internal/services"
	"clothify/pkg/captcha"
	"clothify/pkg/mailer"
	"clothify/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	// --- Persistence ---
	// With DATABASE_URL set the service runs against Postgres; without it,
	// in-memory repositories keep local development self-contained.
	var (
		productRepo repositories.ProductRepository
		orderRepo   repositories.OrderRepository
		userRepo    repositories.UserRepository
		otpStore    repositories.OTPStore
	)

	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		productRepo = repositories.NewGORMProductRepository(db)
		orderRepo = repositories.NewGORMOrderRepository(db)
		userRepo = repositories.NewGORMUserRepository(db)
		otpStore = repositories.NewGORMOTPStore(db)
	} else {
		log.Println("DATABASE_URL not set, using in-memory repositories")
		mockProducts := repositories.NewMockProductRepository()
		seedProducts(mockProducts)
		productRepo = mockProducts
		orderRepo = repositories.NewMockOrderRepository()
		userRepo = repositories.NewMockUserRepository()
		otpStore = repositories.NewMemoryOTPStore()
	}

	// Redis, when configured, takes over the OTP store so codes survive
	// restarts and are shared across instances.
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse REDIS_URL: %v", err)
		}
		otpStore = repositories.NewRedisOTPStore(redis.NewClient(opt))
	}

	// --- RabbitMQ ---
	var mqClient *rabbitmq.Client
	mq, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
	if err != nil {
		log.Printf("Warning: RabbitMQ unavailable, order events disabled: %v", err)
	} else {
		mqClient = mq
		defer mqClient.Close()
	}

	// --- External clients ---
	smtpMailer := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
	})
	recaptcha := captcha.NewVerifier(captcha.RecaptchaEndpoint, cfg.CaptchaSecret, cfg.CaptchaMinScore)
	turnstile := captcha.NewVerifier(captcha.TurnstileEndpoint, cfg.TurnstileSecret, 0)

	// --- Services ---
	productService := services.NewProductService(productRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, mqClient)
	otpService := services.NewOTPService(otpStore, smtpMailer, cfg.OTPTTL)
	authService := services.NewAuthService(userRepo, otpService, cfg.JWTSecret)
	accountService := services.NewAccountService(userRepo, smtpMailer)

	// --- Handlers ---
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	otpHandler := handlers.NewOTPHandler(otpService)
	captchaHandler := handlers.NewCaptchaHandler(recaptcha, turnstile)
	authHandler := handlers.NewAuthHandler(authService)
	accountHandler := handlers.NewAccountHandler(accountService)

	// --- Fiber app ---
	app := fiber.New()
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.AdminTokenHeader,
	}))

	adminGate := middleware.AdminRequired(cfg.AdminToken)
	authGate := middleware.AuthRequired(authService)

	api := app.Group("/api")
	productHandler.RegisterRoutes(api, adminGate)
	orderHandler.RegisterRoutes(api, adminGate)
	otpHandler.RegisterRoutes(api)
	captchaHandler.RegisterRoutes(api)
	authHandler.RegisterRoutes(api, authGate)
	accountHandler.RegisterRoutes(api, adminGate)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// --- Order event consumer ---
	// Back-office processing hook: today it just records the event; order
	// confirmation emails hang off this consumer.
	if mqClient != nil {
		if err := mqClient.ConsumeOrderEvents(func(msg amqp.Delivery) error {
			log.Printf("Received %s event (tag %d): %s", msg.Type, msg.DeliveryTag, string(msg.Body))
			return nil
		}); err != nil {
			log.Printf("Failed to start order event consumer: %v", err)
		}
	}

	// --- Start HTTP server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}

	log.Println("Server gracefully stopped")
}

// seedProducts populates the in-memory catalogue for local development.
func seedProducts(repo repositories.ProductRepository) {
	products := []models.Product{
		{ID: "prod-1", Title: "Linen Shirt", Description: "Relaxed fit linen shirt", Price: 45.00, Stock: 30},
		{ID: "prod-2", Title: "Denim Jacket", Description: "Classic denim jacket", Price: 89.00, Stock: 12},
		{ID: "prod-3", Title: "Canvas Sneakers", Description: "Low-top canvas sneakers", Price: 55.00, Stock: 40},
	}

	for i := range products {
		if err := repo.Create(&products[i]); err != nil {
			log.Printf("Error seeding product %s: %v", products[i].Title, err)
		}
	}
}
