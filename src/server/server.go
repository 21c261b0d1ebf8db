package server

import (
	"fmt"
	"log"
	"net/http"
	"time"

	app "pondserv/src/app"
	cfg "pondserv/src/configuration"
	db "pondserv/src/repository"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
)

func RunServer(config *cfg.Properties) {
	// Create Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "Cache-Control"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	pprof.Register(router)

	dataStore, err := db.NewSQLiteStore(config.Database.Path)
	if err != nil {
		log.Fatalf("database not respond %v", err)
	}
	clientS3, err := app.NewMinioS3Client(
		config.S3.Host,
		config.S3.AccessKey,
		config.S3.SecretKey,
		config.S3.Bucket,
		config.S3.UseSSL)
	if err != nil {
		log.Fatalf("could not connect to minio %v", err)
	}
	analyzer := app.NewGeminiAnalyzer(
		config.Analyzer.Host,
		config.Analyzer.APIKey,
		config.Analyzer.Model,
		config.Analyzer.Timeout,
		config.Analyzer.MaxTextBytes)
	coordinator := app.NewCoordinator(clientS3, analyzer, dataStore)

	handler := NewHandler(coordinator, analyzer, config)
	authHandler := NewAuthHandler(dataStore, config)

	registerRoutes(router, handler, authHandler)

	// Start the server
	router.Run(fmt.Sprintf(":%s", config.Server.Port))
}

func registerRoutes(router *gin.Engine, handler *AppHandler, authHandler *AuthHandler) {
	api := router.Group("/api")
	api.GET("/health", handler.GetHealth)
	api.POST("/signup", authHandler.Signup)
	api.POST("/login", authHandler.Login)
	api.POST("/test-upload", handler.PostTestUpload)

	authed := api.Group("", authHandler.RequireUser)
	authed.POST("/upload", handler.PostUpload)
	authed.POST("/analyze", handler.PostAnalyze)
	authed.GET("/images", handler.GetImages)
	authed.DELETE("/images/:imageId", handler.DeleteImage)
	authed.PUT("/images/:imageId/description", handler.PutDescription)
	authed.GET("/users", authHandler.GetUsers)

	router.NoRoute(func(ctx *gin.Context) { ctx.JSON(http.StatusNotFound, gin.H{}) })
}
