package main

import (
	"context"
	"fmt"
	"time"

	bankingapp "github.com/mobilsoft/connectors/internal/application/banking"
	"github.com/mobilsoft/connectors/internal/domain/banking"
	"github.com/mobilsoft/connectors/internal/domain/feed"
	"github.com/mobilsoft/connectors/internal/infrastructure/scheduler"
)

// registerJobs binds every job kind to the service that runs it
func (a *application) registerJobs(executor *scheduler.Executor) {
	executor.Handle(scheduler.JobKindBankSync, func(ctx context.Context, job *scheduler.Job) (string, error) {
		res, err := a.banking.SyncTransactions(ctx, job.TargetID, nil, nil)
		return syncSummary(res), err
	})
	executor.Handle(scheduler.JobKindFeedImport, func(ctx context.Context, job *scheduler.Job) (string, error) {
		run, err := a.imports.Run(ctx, job.TargetID)
		if run == nil {
			return "", err
		}
		return run.Summary(), err
	})
	executor.Handle(scheduler.JobKindChannelOrderSync, func(ctx context.Context, job *scheduler.Job) (string, error) {
		return a.orders.Sync(ctx, job.TargetID, job.Params)
	})
}

// registerCron schedules the periodic bank and feed syncs
func (a *application) registerCron() error {
	if err := a.cron.Register(a.cfg.Scheduler.BankSyncCron, scheduler.JobKindBankSync,
		func(ctx context.Context, now time.Time) ([]scheduler.Target, error) {
			due, err := a.banking.DueConnectors(ctx, now)
			if err != nil {
				return nil, err
			}
			return connectorTargets(due), nil
		},
	); err != nil {
		return err
	}
	return a.cron.Register(a.cfg.Scheduler.FeedImportCron, scheduler.JobKindFeedImport,
		func(ctx context.Context, now time.Time) ([]scheduler.Target, error) {
			due, err := a.imports.DueSources(ctx, now)
			if err != nil {
				return nil, err
			}
			return sourceTargets(due), nil
		},
	)
}

func connectorTargets(connectors []banking.BankConnector) []scheduler.Target {
	targets := make([]scheduler.Target, 0, len(connectors))
	for _, c := range connectors {
		targets = append(targets, scheduler.Target{ID: c.ID, Name: c.Name})
	}
	return targets
}

func sourceTargets(sources []feed.XMLProductSource) []scheduler.Target {
	targets := make([]scheduler.Target, 0, len(sources))
	for _, s := range sources {
		targets = append(targets, scheduler.Target{ID: s.ID, Name: s.Name})
	}
	return targets
}

func syncSummary(res *bankingapp.SyncResult) string {
	if res == nil {
		return ""
	}
	return fmt.Sprintf("%s: %d lines, %d created, %d skipped, %d failed",
		res.Operation, res.Count, res.Created, res.Skipped, res.Failed)
}
