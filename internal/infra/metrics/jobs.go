package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal) }

var jobRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "job_runs_total",
		Help: "Background worker runs by job name and outcome (ok/error).",
	},
	[]string{"job", "outcome"},
)

func IncJobRun(job string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	jobRunsTotal.WithLabelValues(norm(job), outcome).Inc()
}
