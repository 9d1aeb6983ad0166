package stats

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	Namespace = "SeaweedAdmin"
)

var (
	Gather = prometheus.NewRegistry()

	DeleteQueueCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "delete_queue",
			Name:      "operations",
			Help:      "Counter of delete queue operations.",
		}, []string{"collection", "type"})

	DeleteQueueSizeGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "delete_queue",
			Name:      "size",
			Help:      "Number of file ids waiting in the delete queue.",
		})

	DeleteQueueMaxTryCountGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "delete_queue",
			Name:      "max_try_count",
			Help:      "Highest try count seen in the last processed batch.",
		})

	RepairFileCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "repair",
			Name:      "files",
			Help:      "Counter of files copied between replicas.",
		}, []string{"collection", "type"})

	RepairVolumeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "repair",
			Name:      "volumes",
			Help:      "Counter of repaired volumes.",
		}, []string{"collection", "type"})

	RepairVolumeHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "repair",
			Name:      "volume_seconds",
			Help:      "Bucketed histogram of volume repair time.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 16),
		}, []string{"type"})

	CompareVolumeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "compare",
			Name:      "volumes",
			Help:      "Counter of compared volumes by outcome.",
		}, []string{"collection", "type"})

	CompactionCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "compaction",
			Name:      "volumes",
			Help:      "Counter of compacted volumes by final state.",
		}, []string{"host", "type"})

	CompactionBytesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "compaction",
			Name:      "bytes",
			Help:      "Volume bytes processed by compaction.",
		}, []string{"host"})

	CompactionProgressGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "compaction",
			Name:      "progress_percent",
			Help:      "Progress of the running compaction worker.",
		}, []string{"host", "worker"})

	BlobRequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "blob",
			Name:      "request_total",
			Help:      "Counter of blob front end requests.",
		}, []string{"collection", "type"})

	BlobRequestHistogram = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "blob",
			Name:      "request_seconds",
			Help:      "Bucketed histogram of blob front end request processing time.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 24),
		}, []string{"type"})
)

func init() {
	Gather.MustRegister(DeleteQueueCounter)
	Gather.MustRegister(DeleteQueueSizeGauge)
	Gather.MustRegister(DeleteQueueMaxTryCountGauge)

	Gather.MustRegister(RepairFileCounter)
	Gather.MustRegister(RepairVolumeCounter)
	Gather.MustRegister(RepairVolumeHistogram)
	Gather.MustRegister(CompareVolumeCounter)

	Gather.MustRegister(CompactionCounter)
	Gather.MustRegister(CompactionBytesCounter)
	Gather.MustRegister(CompactionProgressGauge)

	Gather.MustRegister(BlobRequestCounter)
	Gather.MustRegister(BlobRequestHistogram)

	Gather.MustRegister(collectors.NewGoCollector())
	Gather.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// LoopPushingMetric pushes to a prometheus push gateway until ctx is done.
func LoopPushingMetric(ctx context.Context, name, instance, addr string, intervalSeconds int) {
	if addr == "" || intervalSeconds == 0 {
		return
	}

	glog.V(0).Infof("%s sends metrics to %s every %d seconds", name, addr, intervalSeconds)

	pusher := push.New(addr, name).Gatherer(Gather).Grouping("instance", instance)

	if intervalSeconds < 0 {
		intervalSeconds = 15
	}
	ticker := time.NewTicker(time.Duration(intervalSeconds) * time.Second)
	defer ticker.Stop()
	for {
		err := pusher.PushContext(ctx)
		if err != nil && !strings.HasPrefix(err.Error(), "unexpected status code 200") && ctx.Err() == nil {
			glog.V(0).Infof("could not push metrics to prometheus push gateway %s: %v", addr, err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func JoinHostPort(host string, port int) string {
	portStr := strconv.Itoa(port)
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host + ":" + portStr
	}
	return net.JoinHostPort(host, portStr)
}

// StartMetricsServer serves /metrics until ctx is done. A zero port disables it.
func StartMetricsServer(ctx context.Context, ip string, port int) error {
	if port == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Gather, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: JoinHostPort(ip, port), Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	glog.V(0).Infof("metrics served on %s/metrics", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func SourceName() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
