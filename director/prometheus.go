package director

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/types"
	log "github.com/sirupsen/logrus"
)

var (
	EnrollmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shiftdirector",
		Subsystem: "enrollments",
		Name:      "total",
		Help:      "Total number of devices enrolled into the cloud service.",
	})

	EnrollmentFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shiftdirector",
		Subsystem: "enrollments",
		Name:      "failures_total",
		Help:      "Number of enrollment attempts that failed.",
	})

	AutoEnrollmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shiftdirector",
		Subsystem: "monitor",
		Name:      "auto_enrollments_total",
		Help:      "Number of watched devices enrolled automatically after readiness improved.",
	})

	AutoPausesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shiftdirector",
		Subsystem: "executor",
		Name:      "auto_pauses_total",
		Help:      "Number of executions paused by the failure threshold.",
	})

	PlansGeneratedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shiftdirector",
		Subsystem: "plans",
		Name:      "generated_total",
		Help:      "Number of enrollment plans generated.",
	})
)

func Metrics() {
	watchedDevices()
	plans()
	prometheus.MustRegister(EnrollmentsTotal)
	prometheus.MustRegister(EnrollmentFailuresTotal)
	prometheus.MustRegister(AutoEnrollmentsTotal)
	prometheus.MustRegister(AutoPausesTotal)
	prometheus.MustRegister(PlansGeneratedTotal)
}

func watchedDevices() {
	var count int64
	watched := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shiftdirector",
		Subsystem: "monitor",
		Name:      "watched_devices",
		Help:      "Total number of devices on the readiness watch-list.",
	})
	prometheus.MustRegister(watched)
	// loop over the ticker and update the watch-list size every 10 seconds
	go func() {
		for range time.Tick(time.Second * 10) {
			err := db.DB.Model(&types.MonitoredDevice{}).Count(&count).Error
			if err != nil {
				log.Error(err)
			}
			watched.Set(float64(count))
		}
	}()
}

func plans() {
	var count int64
	totalPlans := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shiftdirector",
		Subsystem: "plans",
		Name:      "count",
		Help:      "Total number of enrollment plans in ShiftDirector",
	})
	prometheus.MustRegister(totalPlans)
	// loop over the ticker and update the plan count every 10 seconds
	go func() {
		for range time.Tick(time.Second * 10) {
			err := db.DB.Model(&types.EnrollmentPlan{}).Count(&count).Error
			if err != nil {
				log.Error(err)
			}
			totalPlans.Set(float64(count))
		}
	}()

	var executing int64
	executingPlans := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shiftdirector",
		Subsystem: "plans",
		Name:      "executing",
		Help:      "Number of enrollment plans currently executing",
	})
	prometheus.MustRegister(executingPlans)
	go func() {
		for range time.Tick(time.Second * 10) {
			err := db.DB.Model(&types.EnrollmentPlan{}).Where("status = ?", types.PlanStatusExecuting).Count(&executing).Error
			if err != nil {
				log.Error(err)
			}
			executingPlans.Set(float64(executing))
		}
	}()
}
