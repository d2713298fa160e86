package aws

import (
	"context"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/pharmacy-orderflow/internal/logger"
)

// CloudWatchRecorder publishes order lifecycle events as CloudWatch custom
// metrics. Publishing is best effort: failures are logged and dropped.
type CloudWatchRecorder struct {
	client    CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewCloudWatchRecorder returns a recorder writing under namespace.
func NewCloudWatchRecorder(client CloudWatchAPI, namespace string) *CloudWatchRecorder {
	if namespace == "" {
		namespace = "PharmacyOrderflow"
	}
	return &CloudWatchRecorder{
		client:    client,
		namespace: namespace,
		nowFunc:   time.Now,
	}
}

// OrderCreated records one created order and its amount.
func (r *CloudWatchRecorder) OrderCreated(ctx context.Context, amount float64) {
	now := r.nowFunc()
	r.put(ctx,
		cwtypes.MetricDatum{
			MetricName: sdkaws.String("OrdersCreated"),
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      sdkaws.Float64(1),
		},
		cwtypes.MetricDatum{
			MetricName: sdkaws.String("OrderAmount"),
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitNone,
			Value:      sdkaws.Float64(amount),
		},
	)
}

// StatusChanged records a status transition, dimensioned by target status.
func (r *CloudWatchRecorder) StatusChanged(ctx context.Context, from, to string) {
	now := r.nowFunc()
	r.put(ctx, cwtypes.MetricDatum{
		MetricName: sdkaws.String("StatusChanged"),
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
		Value:      sdkaws.Float64(1),
		Dimensions: []cwtypes.Dimension{
			{Name: sdkaws.String("From"), Value: sdkaws.String(from)},
			{Name: sdkaws.String("To"), Value: sdkaws.String(to)},
		},
	})
}

// NotificationFailed records a dropped best-effort notification.
func (r *CloudWatchRecorder) NotificationFailed(ctx context.Context, kind string) {
	now := r.nowFunc()
	r.put(ctx, cwtypes.MetricDatum{
		MetricName: sdkaws.String("NotificationFailures"),
		Timestamp:  &now,
		Unit:       cwtypes.StandardUnitCount,
		Value:      sdkaws.Float64(1),
		Dimensions: []cwtypes.Dimension{
			{Name: sdkaws.String("Kind"), Value: sdkaws.String(kind)},
		},
	})
}

func (r *CloudWatchRecorder) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(r.namespace),
		MetricData: data,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("cloudwatch put metric data failed",
			zap.String("namespace", r.namespace),
			zap.Error(err))
	}
}
