package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shiftdirector/shiftdirector/cloudmgmt"
	"github.com/shiftdirector/shiftdirector/db"
	"github.com/shiftdirector/shiftdirector/director"
	"github.com/shiftdirector/shiftdirector/settings"
	"github.com/shiftdirector/shiftdirector/types"
	"github.com/shiftdirector/shiftdirector/utils"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/taskq/v3"
)

// CloudURL is the url for the cloud management service
var CloudURL string

// CloudAPIKey is the api key for the cloud management service
var CloudAPIKey string

func main() {
	var port string
	var debugMode bool
	var logLevel string
	flag.BoolVar(&debugMode, "debug", false, "Enable debug output")
	flag.StringVar(&port, "port", "8000", "Port number to run shiftdirector on.")
	flag.StringVar(&logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&CloudURL, "cloudurl", "", "Cloud management service URL")
	flag.StringVar(&CloudAPIKey, "cloudapikey", "", "Cloud management service API Key")

	flag.Parse()

	if CloudURL == "" {
		log.Fatal("Cloud management service URL missing. Exiting.")
	}

	if CloudAPIKey == "" {
		log.Fatal("Cloud management API Key missing. Exiting.")
	}

	conf := settings.LoadSettings()

	if err := db.Open(); err != nil {
		log.Fatal("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error(err)
		}
	}()

	err := db.DB.AutoMigrate(
		&types.EnrollmentGoals{},
		&types.EnrollmentPlan{},
		&types.EnrollmentBatch{},
		&types.MonitoredDevice{},
		&types.AuditEvent{},
		&types.WorkloadTransition{},
		&types.ReasoningStep{},
	)
	if err != nil {
		log.Fatal(err)
	}

	cloudmgmt.InitClient(utils.ServerURL(), utils.APIKey())
	client, err := cloudmgmt.GetClient()
	if err != nil {
		log.Fatal(err)
	}

	audit, err := director.NewAuditLog(conf.AuditLogPath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := audit.Close(); err != nil {
			log.Error(err)
		}
	}()

	interval, err := time.ParseDuration(conf.MonitorInterval)
	if err != nil {
		interval = 0
	}

	var queueRedis taskq.Redis
	if conf.RedisHost != "" {
		queueRedis = director.RedisClient(conf)
	}

	notifier := director.NewNotifier()
	assessor := director.NewRiskAssessor()
	builder := director.NewPlanBuilder(assessor)
	gate := director.NewApprovalGate(audit, notifier)
	executor := director.NewBatchExecutor(client, gate, audit, notifier)
	monitor := director.NewMonitor(client, assessor, audit, notifier, interval, queueRedis)
	executor.SetMonitor(monitor)
	reasoning := director.NewReasoningLoop(client, assessor, audit, nil)
	service := director.NewService(client, assessor, builder, gate, executor, monitor, reasoning, audit, notifier)

	director.Metrics()
	monitor.Start()
	defer monitor.Stop()

	r := mux.NewRouter()
	r.HandleFunc("/webhook", service.WebhookHandler).Methods("POST")
	r.HandleFunc("/healthcheck", director.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/v1/plan", service.PostPlanHandler).Methods("POST")
	r.HandleFunc("/v1/plan", service.GetPlanHandler).Methods("GET")
	r.HandleFunc("/v1/plan/{id}/approve", service.ApprovePlanHandler).Methods("POST")
	r.HandleFunc("/v1/plan/{id}/reject", service.RejectPlanHandler).Methods("POST")
	r.HandleFunc("/v1/plan/{id}/execute", service.ExecutePlanHandler).Methods("POST")
	r.HandleFunc("/v1/plan/{id}/resume", service.ResumePlanHandler).Methods("POST")
	r.HandleFunc("/v1/stop", service.StopHandler).Methods("POST")
	r.HandleFunc("/v1/progress", service.ProgressHandler).Methods("GET")
	r.HandleFunc("/v1/risk/device", service.DeviceRiskHandler).Methods("POST")
	r.HandleFunc("/v1/risk/batch", service.BatchRiskHandler).Methods("POST")
	r.HandleFunc("/v1/monitor/start", service.StartMonitorHandler).Methods("POST")
	r.HandleFunc("/v1/monitor/stop", service.StopMonitorHandler).Methods("POST")
	r.HandleFunc("/v1/monitor/devices", service.WatchDeviceHandler).Methods("POST")
	r.HandleFunc("/v1/monitor/statistics", service.MonitorStatisticsHandler).Methods("GET")
	r.HandleFunc("/v1/devices/monitored", service.MonitoredDevicesHandler).Methods("GET")
	r.HandleFunc("/v1/workloads", service.MoveWorkloadHandler).Methods("POST")
	r.HandleFunc("/v1/workloads", service.WorkloadSummaryHandler).Methods("GET")
	r.HandleFunc("/v1/workloads/{deviceid}", service.DeviceWorkloadsHandler).Methods("GET")
	r.HandleFunc("/v1/reasoning", service.ReasoningHandler).Methods("POST")

	handler := utils.BasicAuth(r.ServeHTTP, conf.BasicAuthUser, conf.BasicAuthPass)

	fmt.Println("shiftdirector is running, hold onto your butts...")

	log.Print(http.ListenAndServe(":"+port, handler))
}
