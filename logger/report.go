package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type opStat struct {
	calls    int64
	failures int64
}

var (
	errorsOrder    int64
	errorsMarket   int64
	warnsOrder     int64
	warnsMarket    int64
	ordersPlaced   int64
	ordersCanceled int64
	metaRefreshes  int64
	fallbackHits   int64
	streamUpdates  int64
	operations     sync.Map // map[string]*opStat
)

func recordWarn(component string) {
	if strings.Contains(component, "order") {
		atomic.AddInt64(&warnsOrder, 1)
	} else {
		atomic.AddInt64(&warnsMarket, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "order") {
		atomic.AddInt64(&errorsOrder, 1)
	} else {
		atomic.AddInt64(&errorsMarket, 1)
	}
}

// IncrementOrderPlaced records a successfully submitted order.
func IncrementOrderPlaced() {
	atomic.AddInt64(&ordersPlaced, 1)
	recordOperation("place_order", false)
}

// IncrementOrderCanceled records a successfully cancelled order.
func IncrementOrderCanceled() {
	atomic.AddInt64(&ordersCanceled, 1)
	recordOperation("cancel_order", false)
}

// IncrementMetadataRefresh records one bulk exchange-info refresh.
func IncrementMetadataRefresh() {
	atomic.AddInt64(&metaRefreshes, 1)
	recordOperation("metadata_refresh", false)
}

// IncrementFallbackHit records a contract resolved from the static
// fallback table instead of venue metadata.
func IncrementFallbackHit() {
	atomic.AddInt64(&fallbackHits, 1)
}

// IncrementStreamUpdate records a mark price update received over websocket.
func IncrementStreamUpdate() {
	atomic.AddInt64(&streamUpdates, 1)
}

// RecordOperation tracks a venue call by operation name.
func RecordOperation(name string, failed bool) {
	recordOperation(name, failed)
}

func recordOperation(name string, failed bool) {
	v, _ := operations.LoadOrStore(name, &opStat{})
	st := v.(*opStat)
	atomic.AddInt64(&st.calls, 1)
	if failed {
		atomic.AddInt64(&st.failures, 1)
	}
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of client and venue-call statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	opData := map[string]map[string]int64{}
	operations.Range(func(k, v any) bool {
		name := k.(string)
		st := v.(*opStat)
		opData[name] = map[string]int64{
			"calls":    atomic.LoadInt64(&st.calls),
			"failures": atomic.LoadInt64(&st.failures),
		}
		return true
	})

	fields := Fields{
		"errors_order":       atomic.LoadInt64(&errorsOrder),
		"errors_market":      atomic.LoadInt64(&errorsMarket),
		"warns_order":        atomic.LoadInt64(&warnsOrder),
		"warns_market":       atomic.LoadInt64(&warnsMarket),
		"orders_placed":      atomic.LoadInt64(&ordersPlaced),
		"orders_canceled":    atomic.LoadInt64(&ordersCanceled),
		"metadata_refreshes": atomic.LoadInt64(&metaRefreshes),
		"fallback_hits":      atomic.LoadInt64(&fallbackHits),
		"stream_updates":     atomic.LoadInt64(&streamUpdates),
		"goroutines":         runtime.NumGoroutine(),
		"operations":         opData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsOrder"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_order"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsMarket"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_market"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsOrder"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_order"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsMarket"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_market"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersPlaced"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_placed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersCanceled"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_canceled"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("MetadataRefreshes"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["metadata_refreshes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("FallbackHits"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["fallback_hits"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StreamUpdates"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["stream_updates"].(int64)))},
	)

	for name, stats := range opData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("VenueCalls"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Operation"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["calls"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("VenueCallFailures"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Operation"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["failures"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
