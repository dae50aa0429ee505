package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/chamaledger/chama-service/internal/config"
	"github.com/chamaledger/chama-service/internal/handler"
	"github.com/chamaledger/chama-service/internal/middleware"
	"github.com/chamaledger/chama-service/internal/notify"
	"github.com/chamaledger/chama-service/internal/service"
	"github.com/chamaledger/chama-service/internal/storage"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logLevel, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Initialize storage
	store, err := storage.Open(cfg.DBDriver, cfg.DBConn)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	// Notification dispatch is best-effort; without SMTP it only logs.
	var dispatcher notify.Dispatcher
	if cfg.SMTPHost != "" {
		dispatcher = notify.NewEmailDispatcher(cfg, logger)
	} else {
		dispatcher = notify.NewLogDispatcher(logger)
	}

	// Initialize layers
	authSvc := service.NewAuthService(store, logger, cfg.JWTSecret)
	groupSvc := service.NewGroupService(store, logger)
	settingsSvc := service.NewSettingsService(store, logger)
	loanSvc := service.NewLoanService(store, logger, dispatcher)
	contributionSvc := service.NewContributionService(store, logger, dispatcher)
	invitationSvc := service.NewInvitationService(store, logger, dispatcher, cfg.InviteTTL, cfg.InviteBaseURL)
	h := handler.NewHandler(authSvc, groupSvc, settingsSvc, loanSvc, contributionSvc, invitationSvc, logger)

	// Contribution reminders run on a schedule, outside the request path.
	reminders := notify.NewReminderScheduler(store, dispatcher, logger)
	if err := reminders.Start(cfg.ReminderCron); err != nil {
		logger.Fatalf("Failed to start reminder scheduler: %v", err)
	}
	defer reminders.Stop()

	// Setup router
	r := mux.NewRouter()
	// Public routes
	r.HandleFunc("/register", h.Register).Methods("POST")
	r.HandleFunc("/login", h.Login).Methods("POST")
	r.HandleFunc("/invitations/{token}", h.LookupInvitation).Methods("GET")
	// Protected routes
	authRouter := r.PathPrefix("/").Subrouter()
	authRouter.Use(middleware.AuthMiddleware(cfg))
	authRouter.HandleFunc("/groups", h.CreateGroup).Methods("POST")
	authRouter.HandleFunc("/groups/{id}", h.GetGroup).Methods("GET")
	authRouter.HandleFunc("/groups/{id}/settings", h.GetSettings).Methods("GET")
	authRouter.HandleFunc("/groups/{id}/settings", h.UpdateSettings).Methods("PUT")
	authRouter.HandleFunc("/groups/{id}/members", h.ListMembers).Methods("GET")
	authRouter.HandleFunc("/groups/{id}/members/{userId}", h.RemoveMember).Methods("DELETE")
	authRouter.HandleFunc("/groups/{id}/loans", h.ListGroupLoans).Methods("GET")
	authRouter.HandleFunc("/groups/{id}/contributions", h.ListGroupContributions).Methods("GET")
	authRouter.HandleFunc("/groups/{id}/membership_requests", h.ListGroupInvitations).Methods("GET")
	authRouter.HandleFunc("/loans", h.ApplyLoan).Methods("POST")
	authRouter.HandleFunc("/loans/{id}", h.GetLoan).Methods("GET")
	authRouter.HandleFunc("/loans/{id}", h.DecideLoan).Methods("PUT")
	authRouter.HandleFunc("/loans/{id}", h.DeleteLoan).Methods("DELETE")
	authRouter.HandleFunc("/loans/{id}/disburse", h.DisburseLoan).Methods("POST")
	authRouter.HandleFunc("/loans/{id}/repayment", h.RecordRepayment).Methods("POST")
	authRouter.HandleFunc("/contributions", h.RecordContribution).Methods("POST")
	authRouter.HandleFunc("/contributions/user/{id}", h.ListUserContributions).Methods("GET")
	authRouter.HandleFunc("/membership_requests", h.CreateInvitation).Methods("POST")
	authRouter.HandleFunc("/membership_requests/{id}", h.RejectInvitation).Methods("DELETE")
	authRouter.HandleFunc("/invitations/{token}/accept", h.AcceptInvitation).Methods("POST")

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	logger.Infof("Starting server on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Server failed: %v", err)
	}
}
