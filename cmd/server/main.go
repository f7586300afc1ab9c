package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"studypad/backend/internal/auth"
	"studypad/backend/internal/chat"
	"studypad/backend/internal/database"
	"studypad/backend/internal/handlers"
	"studypad/backend/internal/hierarchy"
	"studypad/backend/internal/logger"
	"studypad/backend/internal/middleware"
	"studypad/backend/internal/notify"
	"studypad/backend/internal/quiz"
	"studypad/backend/internal/services"
	"studypad/backend/internal/store/mongostore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	zlog, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()

	// Database
	client, err := database.Connect(ctx)
	if err != nil {
		zlog.Fatalw("database connection failed", "error", err)
	}
	st := mongostore.New(client, database.Name(), zlog)
	defer st.Close(context.Background())

	// External services
	aiClient, err := services.NewOpenAIService(zlog)
	if err != nil {
		zlog.Fatalw("AI client init failed", "error", err)
	}
	blobs, err := services.NewGCSBlobStore(ctx, zlog)
	if err != nil {
		zlog.Fatalw("blob store init failed", "error", err)
	}
	history, err := chat.NewRedisHistory()
	if err != nil {
		zlog.Fatalw("redis init failed", "error", err)
	}

	// Firebase Admin SDK from environment variable
	keyDataString := os.Getenv("KEY_DATA")
	if keyDataString == "" {
		zlog.Fatalw("KEY_DATA environment variable not set")
	}
	var parsedKeyData map[string]interface{}
	if err := json.Unmarshal([]byte(keyDataString), &parsedKeyData); err != nil {
		zlog.Fatalw("error unmarshalling key data", "error", err)
	}
	parsedKeyData["private_key"] = strings.ReplaceAll(parsedKeyData["private_key"].(string), "\\n", "\n")
	parsedKeyDataString, err := json.Marshal(parsedKeyData)
	if err != nil {
		zlog.Fatalw("error marshalling key data", "error", err)
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(parsedKeyDataString))
	if err != nil {
		zlog.Fatalw("error initializing firebase app", "error", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		zlog.Fatalw("error getting auth client", "error", err)
	}

	// Engines
	notifier := notify.NewService(st, zlog)
	hierarchyEngine := hierarchy.NewEngine(st, aiClient, blobs, zlog)
	quizEngine := quiz.NewEngine(st, aiClient, notifier, zlog)
	chatService := chat.NewService(st, aiClient, history, zlog)
	authHandler := auth.NewHandler(st, zlog)
	h := handlers.New(st, hierarchyEngine, quizEngine, chatService, notifier, zlog)

	// Router
	router := gin.Default()
	router.GET("/health", h.HealthCheck)

	api := router.Group("/api/v1")
	protected := api.Group("/").Use(middleware.AuthMiddleware(authClient, zlog))
	protected.POST("/auth/session", authHandler.Session)
	h.Register(protected)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	zlog.Infow("server starting", "port", port)
	if err := router.Run(":" + port); err != nil {
		zlog.Fatalw("server failed", "error", err)
	}
}
