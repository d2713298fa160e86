package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/app"
	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
	"github.com/imrishuroy/pharmacy-orderflow/internal/config"
	"github.com/imrishuroy/pharmacy-orderflow/internal/handlers"
	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/metrics"
	"github.com/imrishuroy/pharmacy-orderflow/internal/validation"
)

func setupRouter(a *app.App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), logger.GinMiddleware(), a.Metrics.GinMiddleware())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler(a.Registry))

	api := r.Group("/", a.Issuer.GinMiddleware())
	cfg := handlers.HandlerConfig{
		Tracker:     a.Tracker,
		Recommender: a.Recommender,
		Validator:   validation.New(),
	}
	handlers.RegisterOrdersRoutes(api, cfg)
	handlers.RegisterRecommendationRoutes(api, cfg)

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	log.Info("starting api", cfg.LogFields()...)

	ctx := context.Background()
	clients, err := aws.NewAWSClients(ctx)
	if err != nil {
		log.Fatal("failed to init aws clients", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, clients)
	if err != nil {
		log.Fatal("failed to build services", zap.Error(err))
	}
	defer a.Close()

	r := setupRouter(a)

	// if RUN_LOCAL is set, run a local HTTP server for development.
	if cfg.RunLocal {
		log.Info("running local server", zap.String("addr", cfg.HTTPAddr))
		if err := r.Run(cfg.HTTPAddr); err != nil {
			log.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
