package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deskpilot-io/deskpilot/internal/assignment"
	"github.com/deskpilot-io/deskpilot/internal/config"
	"github.com/deskpilot-io/deskpilot/internal/database"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/classifier"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/connector"
	"github.com/deskpilot-io/deskpilot/internal/email/inbound/postmaster"
	"github.com/deskpilot-io/deskpilot/internal/metrics"
	"github.com/deskpilot-io/deskpilot/internal/notifications"
	"github.com/deskpilot-io/deskpilot/internal/repository"
	"github.com/deskpilot-io/deskpilot/internal/scheduler"
)

// App bundles the wired pipeline and its shared resources.
type App struct {
	Config  *config.Config
	Service *postmaster.Service
	Logger  *log.Logger

	db         *sqlx.DB
	metricsSrv *http.Server
}

// buildApp loads configuration and wires the full ingestion pipeline.
func buildApp(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	emailLog := repository.NewEmailLogRepository(db)
	autoResponses := repository.NewAutoResponseRepository(db)
	followups := repository.NewFollowupRepository(db)
	tickets := repository.NewTicketRepository(db)
	comments := repository.NewCommentRepository(db)
	attachments := repository.NewAttachmentRepository(db)
	lookup := repository.NewLookupRepository(db)
	agents := repository.NewAgentRepository(db)

	cls := classifier.New(autoResponses, tickets, classifier.WithLogger(logger))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	routerOpts := []postmaster.RouterOption{postmaster.WithRouterLogger(logger)}
	if m != nil {
		routerOpts = append(routerOpts, postmaster.WithRouterMetrics(m))
	}

	if cfg.Assignment.Enabled {
		var rules assignment.RuleProvider = lookup
		if cfg.Assignment.RulesFile != "" {
			fileRules, err := assignment.LoadRuleFile(cfg.Assignment.RulesFile)
			if err != nil {
				db.Close()
				return nil, err
			}
			rules = fileRules
		}
		engine := assignment.NewEngine(rules, agents, tickets, assignment.WithLogger(logger))
		routerOpts = append(routerOpts, postmaster.WithAssigner(engine))
	}

	if cfg.Notifications.Enabled {
		provider := notifications.NewSMTPProvider(&cfg.Notifications)
		if cfg.Notifications.AutoRespond {
			responderOpts := []notifications.AutoResponderOption{
				notifications.WithAutoResponderLogger(logger),
			}
			if cfg.Notifications.TemplatePath != "" {
				responderOpts = append(responderOpts, notifications.WithTemplateFile(cfg.Notifications.TemplatePath))
			}
			responder := notifications.NewAutoResponder(provider, autoResponses, emailLog, responderOpts...)
			routerOpts = append(routerOpts, postmaster.WithResponder(responder))
		}
		notifier := notifications.NewAgentNotifier(provider, agents, logger)
		routerOpts = append(routerOpts, postmaster.WithNotifier(notifier))
	}

	router := postmaster.NewRouter(tickets, comments, attachments, lookup, emailLog, followups, routerOpts...)

	mailbox := connector.NewIMAPMailbox(connector.Settings{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		UseTLS:   cfg.Mail.UseTLS,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
	}, connector.WithIMAPLogger(logger), connector.WithIMAPDialTimeout(cfg.Mail.DialTimeout))

	serviceOpts := []postmaster.ServiceOption{postmaster.WithServiceLogger(logger)}

	app := &App{Config: cfg, Logger: logger, db: db}
	if m != nil {
		serviceOpts = append(serviceOpts, postmaster.WithMetrics(m))
		app.metricsSrv = m.Serve(cfg.Metrics)
	}

	app.Service = postmaster.NewService(mailbox, cfg.Mail, emailLog, cls, router, serviceOpts...)
	return app, nil
}

// Scheduler returns a cron scheduler driving the app's ingestion service.
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.New(a.Service, a.Config.Poll.Schedule, 10*time.Minute, a.Logger)
}

// Close releases the app's shared resources.
func (a *App) Close() {
	if a.metricsSrv != nil {
		a.metricsSrv.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
