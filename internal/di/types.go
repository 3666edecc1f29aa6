// Package di wires the application's dependencies.
package di

import (
	"github.com/aristath/docpoller/internal/clients/aiforged"
	"github.com/aristath/docpoller/internal/config"
	"github.com/aristath/docpoller/internal/documents"
	"github.com/aristath/docpoller/internal/events"
	"github.com/aristath/docpoller/internal/poller"
	"github.com/aristath/docpoller/internal/scheduler"
)

// Mode names how poll cycles are started
const (
	ModeInterval = "interval"
	ModeCron     = "cron"
)

// Trigger requests an immediate poll cycle
type Trigger interface {
	Trigger() bool
}

// Container holds all dependencies for the application.
// It is created by Wire and handed to the entry point and the status server.
type Container struct {
	Config *config.Config

	// Clients
	AIForgedClient *aiforged.Client

	// Services
	DocumentService *documents.Service
	EventManager    *events.Manager
	Poller          *poller.Poller

	// Scheduling. Scheduler is nil in interval mode.
	Scheduler *scheduler.Scheduler
	PollJob   *poller.Job
	Trigger   Trigger

	manual *scheduledTrigger
}

// Mode returns ModeCron when a cron schedule drives the poller
func (c *Container) Mode() string {
	if c.Scheduler != nil {
		return ModeCron
	}
	return ModeInterval
}

// Stop halts scheduled and manual runs and waits for those in flight, then
// stops the poller. The interval loop is stopped by cancelling its context.
func (c *Container) Stop() {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.manual != nil {
		c.manual.Wait()
	}
	if c.Poller != nil {
		c.Poller.Stop()
	}
}
