// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// ratelimit.DecisionRecorder、access.OutcomeRecorder、session.VerdictRecorder、
// edge.DecisionRecorderを満たす。
type Collector struct {
	rateLimitDecisions *prometheus.CounterVec
	sessionValidations *prometheus.CounterVec
	accessResolutions  *prometheus.CounterVec
	edgeDecisions      *prometheus.CounterVec
	httpStatus         *prometheus.CounterVec
	accessCodesExpired prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogos_rate_limit_decisions_total",
			Help: "レート制限の判定数（limiter、outcome別）",
		}, []string{"limiter", "outcome"}),
		sessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogos_session_validations_total",
			Help: "セッション検証の結果別件数",
		}, []string{"result"}),
		accessResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogos_access_resolutions_total",
			Help: "アクセス判定の結果別件数",
		}, []string{"outcome"}),
		edgeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogos_edge_decisions_total",
			Help: "エッジルーティングの判定数（surface、action別）",
		}, []string{"surface", "action"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogos_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		accessCodesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogos_access_codes_expired_deleted_total",
			Help: "削除された期限切れアクセスコードの合計数",
		}),
	}

	reg.MustRegister(
		c.rateLimitDecisions,
		c.sessionValidations,
		c.accessResolutions,
		c.edgeDecisions,
		c.httpStatus,
		c.accessCodesExpired,
	)

	return c
}

// RecordRateLimitDecision はレート制限の判定を記録する。
func (c *Collector) RecordRateLimitDecision(limiter string, allowed bool) {
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	c.rateLimitDecisions.WithLabelValues(limiter, outcome).Inc()
}

// RecordSessionValidation はセッション検証の結果を記録する。
func (c *Collector) RecordSessionValidation(result string) {
	c.sessionValidations.WithLabelValues(result).Inc()
}

// RecordAccessResolution はアクセス判定の結果を記録する。
func (c *Collector) RecordAccessResolution(outcome string) {
	c.accessResolutions.WithLabelValues(outcome).Inc()
}

// RecordEdgeDecision はエッジルーティングの判定を記録する。
func (c *Collector) RecordEdgeDecision(surface, action string) {
	c.edgeDecisions.WithLabelValues(surface, action).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordAccessCodesDeleted は削除された期限切れアクセスコード数を記録する。
func (c *Collector) RecordAccessCodesDeleted(count int64) {
	c.accessCodesExpired.Add(float64(count))
}

// RegisterStoreSize はレート制限ストアの保持件数をゲージとして登録する。
// プロセス内ストアを使う場合のみ登録する。
func RegisterStoreSize(reg prometheus.Registerer, size func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "blogos_rate_limit_store_entries",
		Help: "プロセス内レート制限ストアの保持件数",
	}, func() float64 {
		return float64(size())
	}))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
