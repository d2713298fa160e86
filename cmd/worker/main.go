package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/aws"
	"github.com/imrishuroy/pharmacy-orderflow/internal/config"
	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
	"github.com/imrishuroy/pharmacy-orderflow/internal/notify"
)

const sampleBody = `{"kind":"order_created","orderId":"local-order-1","recipientId":"local-user-1","channel":"email","title":"Order placed","body":"Your order local-order-1 was placed."}`

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.Env,
		ServiceName: cfg.ServiceName + "-worker",
	}); err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.GetLogger()

	if cfg.Notify.Endpoint == "" {
		log.Fatal("NOTIFY_ENDPOINT is required")
	}
	notifier := notify.NewHTTPNotifier(cfg.Notify.Endpoint, cfg.Notify.PushEndpoint, cfg.Notify.Timeout)

	var failures FailureRecorder
	if cfg.Metrics.CloudWatchEnabled {
		clients, err := aws.NewAWSClients(context.Background())
		if err != nil {
			log.Fatal("failed to init aws clients", zap.Error(err))
		}
		failures = aws.NewCloudWatchRecorder(clients.CloudWatch, cfg.Metrics.Namespace)
	}
	p := NewProcessor(notifier, failures)

	// If RUN_LOCAL is set, deliver a single message taken from LOCAL_SQS_BODY.
	if cfg.RunLocal {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = sampleBody
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{{MessageId: "local-1", Body: body}},
		}
		resp, err := p.Handle(context.Background(), event)
		if err != nil || len(resp.BatchItemFailures) > 0 {
			log.Fatal("local delivery failed", zap.Error(err))
		}
		return
	}

	lambda.Start(p.Handle)
}
