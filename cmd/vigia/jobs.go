package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/opsdesk/vigia/internal/config"
	"github.com/opsdesk/vigia/internal/gate"
	"github.com/opsdesk/vigia/internal/job"
	"github.com/opsdesk/vigia/internal/report"
	"github.com/opsdesk/vigia/internal/schedule"
	"github.com/opsdesk/vigia/internal/sink/slack"
	"github.com/opsdesk/vigia/internal/source"
	"github.com/opsdesk/vigia/internal/window"
)

// registerJobs turns the configuration table into registered jobs. All jobs
// share one Slack client and one connectivity gate for the database link.
func registerJobs(cfg *config.Config, loc *time.Location, sched *schedule.Scheduler, logger *slog.Logger) error {
	sink := slack.New(cfg.Slack, logger)

	dbGate := gate.New(gate.Target{
		Host:         cfg.Gate.Host,
		Port:         cfg.Gate.Port,
		DialTimeout:  cfg.Gate.DialTimeout,
		PollInterval: cfg.Gate.PollInterval,
	}, logger)

	for _, jc := range cfg.Jobs {
		j, rule, err := buildJob(cfg, jc, loc, sink, dbGate, logger)
		if err != nil {
			return fmt.Errorf("job %s: %w", jc.Name, err)
		}
		sched.Register(j, rule)
	}

	return nil
}

func buildJob(cfg *config.Config, jc config.JobConfig, loc *time.Location,
	sink job.Sink, dbGate *gate.Gate, logger *slog.Logger) (*job.Job, schedule.Rule, error) {

	j := &job.Job{
		Name:           jc.Name,
		Channel:        jc.Channel,
		Sink:           sink,
		Window:         buildWindow(jc.Window, loc),
		FetchTimeout:   jc.FetchTimeout,
		DeliverTimeout: jc.DeliverTimeout,
		Logger:         logger,
	}

	switch jc.Kind {
	case "sql":
		j.Source = source.NewSQL(cfg.Database, jc.Query)
		// Only the database sits behind the VPN; Superset and Slack do not.
		j.Gate = dbGate
	case "superset":
		j.Source = source.NewSuperset(cfg.Superset, jc.ChartID)
	default:
		return nil, nil, fmt.Errorf("unknown kind %q", jc.Kind)
	}

	switch jc.Report {
	case "steps":
		j.Transform = report.PipelineSteps(jc.Label, loc)
	case "summary":
		j.Transform = report.DailySummary(loc)
	case "chart":
		j.Transform = report.ChartSummary(jc.ChartID)
	default:
		return nil, nil, fmt.Errorf("unknown report %q", jc.Report)
	}

	rule, err := buildRule(jc, loc)
	if err != nil {
		return nil, nil, err
	}

	return j, rule, nil
}

func buildWindow(name string, loc *time.Location) window.Policy {
	switch name {
	case "always":
		return window.Always{}
	default:
		return window.NewBusinessHours(loc)
	}
}

func buildRule(jc config.JobConfig, loc *time.Location) (schedule.Rule, error) {
	if jc.Every > 0 {
		return schedule.Interval{Every: jc.Every}, nil
	}

	days := make([]time.Weekday, 0, len(jc.Days))
	for _, d := range jc.Days {
		day, err := schedule.ParseWeekday(d)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}

	times := make([]schedule.TimeOfDay, 0, len(jc.Times))
	for _, s := range jc.Times {
		tod, err := schedule.ParseTimeOfDay(s)
		if err != nil {
			return nil, err
		}
		times = append(times, tod)
	}

	return schedule.Weekly{Days: days, Times: times, Location: loc}, nil
}
