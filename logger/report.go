package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net" //cloudwatch

	"github.com/aws/aws-sdk-go-v2/aws"                              //cloudwatch
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types" //cloudwatch
)

type streamStat struct {
	bars  int64
	bytes int64
}

var (
	errorsFeed    int64
	errorsStore   int64
	warnsFeed     int64
	warnsStore    int64
	barsParsed      int64
	malformedRows   int64
	storeReads      int64
	storeReadBytes  int64
	storeWrites     int64
	storeWriteBytes int64
	ordersFilled    int64
	streams         sync.Map // map[string]*streamStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") || strings.Contains(component, "parser") {
		atomic.AddInt64(&warnsFeed, 1)
	} else if strings.Contains(component, "store") {
		atomic.AddInt64(&warnsStore, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") || strings.Contains(component, "parser") {
		atomic.AddInt64(&errorsFeed, 1)
	} else if strings.Contains(component, "store") {
		atomic.AddInt64(&errorsStore, 1)
	}
}

// IncrementBarsParsed counts bars decoded from an imported file, keyed by
// the storage key they came from.
func IncrementBarsParsed(key string, count int, size int) {
	atomic.AddInt64(&barsParsed, int64(count))
	recordStream(key, count, size)
}

// IncrementMalformedRows counts rows skipped during parsing.
func IncrementMalformedRows(count int) {
	atomic.AddInt64(&malformedRows, int64(count))
}

// IncrementStoreRead counts one blob download of the given size.
func IncrementStoreRead(size int) {
	atomic.AddInt64(&storeReads, 1)
	atomic.AddInt64(&storeReadBytes, int64(size))
}

// IncrementStoreWrite counts one blob upload of the given size.
func IncrementStoreWrite(size int64) {
	atomic.AddInt64(&storeWrites, 1)
	atomic.AddInt64(&storeWriteBytes, size)
}

// IncrementOrdersFilled counts simulated fills.
func IncrementOrdersFilled() {
	atomic.AddInt64(&ordersFilled, 1)
}

func recordStream(name string, bars int, size int) {
	v, _ := streams.LoadOrStore(name, &streamStat{})
	ss := v.(*streamStat)
	atomic.AddInt64(&ss.bars, int64(bars))
	atomic.AddInt64(&ss.bytes, int64(size))
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

// StartReport begins periodic logging of system and stream statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	streamData := map[string]map[string]int64{}
	streams.Range(func(k, v any) bool {
		name := k.(string)
		ss := v.(*streamStat)
		streamData[name] = map[string]int64{
			"bars":  atomic.LoadInt64(&ss.bars),
			"bytes": atomic.LoadInt64(&ss.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_feed":       atomic.LoadInt64(&errorsFeed),
		"errors_store":      atomic.LoadInt64(&errorsStore),
		"warns_feed":        atomic.LoadInt64(&warnsFeed),
		"warns_store":       atomic.LoadInt64(&warnsStore),
		"bars_parsed":       atomic.LoadInt64(&barsParsed),
		"malformed_rows":    atomic.LoadInt64(&malformedRows),
		"store_reads":       atomic.LoadInt64(&storeReads),
		"store_read_bytes":  atomic.LoadInt64(&storeReadBytes),
		"store_writes":      atomic.LoadInt64(&storeWrites),
		"store_write_bytes": atomic.LoadInt64(&storeWriteBytes),
		"orders_filled":     atomic.LoadInt64(&ordersFilled),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"disk_mb":           int64(diskStats.Used) / 1024 / 1024,
		"streams":           streamData,
		"net_bytes_sent":    int64(bytesSent),
		"net_bytes_recv":    int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsStore"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_store"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsStore"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_store"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("BarsParsed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["bars_parsed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("MalformedRows"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["malformed_rows"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StoreReads"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["store_reads"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StoreReadBytes"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(fields["store_read_bytes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StoreWrites"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["store_writes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("StoreWriteBytes"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(fields["store_write_bytes"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("OrdersFilled"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["orders_filled"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range streamData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("StreamBars"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bars"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("StreamBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
