package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsService 业务指标采集
type MetricsService struct {
	DocumentsIngested *prometheus.CounterVec
	ChunksStored      prometheus.Counter
	IngestDuration    prometheus.Histogram
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     prometheus.Histogram
	EmbeddingErrors   prometheus.Counter
	WatcherQuarantine prometheus.Counter
}

var metricsService *MetricsService

// InitMetricsService 注册业务指标
func InitMetricsService() *MetricsService {
	if metricsService != nil {
		return metricsService
	}
	metricsService = &MetricsService{
		DocumentsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_documents_ingested_total",
			Help: "入库文档总数，按状态区分",
		}, []string{"status"}),
		ChunksStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rag_chunks_stored_total",
			Help: "已写入向量库的chunk总数",
		}),
		IngestDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_ingest_duration_seconds",
			Help:    "单个文档入库耗时",
			Buckets: prometheus.DefBuckets,
		}),
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_queries_total",
			Help: "问答请求总数，按结果区分",
		}, []string{"result"}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_query_duration_seconds",
			Help:    "单次问答耗时",
			Buckets: prometheus.DefBuckets,
		}),
		EmbeddingErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rag_embedding_errors_total",
			Help: "向量化失败次数",
		}),
		WatcherQuarantine: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rag_watcher_quarantined_total",
			Help: "监听目录中处理失败被隔离的文件数",
		}),
	}
	return metricsService
}

// GetMetricsService 获取指标服务
func GetMetricsService() *MetricsService {
	return metricsService
}
