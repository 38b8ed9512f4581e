package access

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// decisionsTotal counts every access evaluation by result and denial reason.
var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "gate",
	Subsystem: "access",
	Name:      "decisions_total",
	Help:      "Access evaluations by result (granted/denied/error) and denial reason.",
}, []string{"result", "reason"})
