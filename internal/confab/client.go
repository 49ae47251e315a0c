// Package confab wires the sync core together: one Client owns the session
// manager, the listener registry, and the job poll supervisor, constructed
// with injectable collaborators so tests can run any number of independent
// instances.
package confab

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/confab-dev/confab-go/internal/client"
	"github.com/confab-dev/confab-go/internal/config"
	"github.com/confab-dev/confab-go/internal/jobs"
	"github.com/confab-dev/confab-go/internal/metrics"
	"github.com/confab-dev/confab-go/internal/models"
	"github.com/confab-dev/confab-go/internal/session"
)

// Submitter creates jobs on the server. Implemented by the HTTP API client.
type Submitter interface {
	SubmitJob(ctx context.Context, input models.JobInput) (string, error)
}

// Options overrides the default collaborators. Zero fields fall back to
// the real implementations built from the config.
type Options struct {
	Credentials session.CredentialSource
	Transport   session.TransportFactory
	Submitter   Submitter
	Querier     jobs.StatusQuerier
	Scheduler   jobs.Scheduler
	Logger      *slog.Logger
}

// Client is the top-level sync core instance.
type Client struct {
	cfg       config.Config
	logger    *slog.Logger
	collector *metrics.Collector

	registry   *session.Registry
	session    *session.Manager
	submitter  Submitter
	store      *jobs.Store
	supervisor *jobs.Supervisor

	connects atomic.Int64
}

// New constructs a Client from config plus optional collaborator overrides.
func New(cfg config.Config, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	creds := opts.Credentials
	if creds == nil {
		creds = session.StaticCredentials{Token: cfg.Token, Identity: cfg.Identity}
	}
	transport := opts.Transport
	if transport == nil {
		transport = client.NewTransportFactory(cfg.ServerURL, logger)
	}

	var api *client.Client
	submitter := opts.Submitter
	querier := opts.Querier
	if submitter == nil || querier == nil {
		api = client.New(cfg.ServerURL, cfg.Token, logger)
		if submitter == nil {
			submitter = api
		}
		if querier == nil {
			querier = api
		}
	}

	collector := metrics.NewCollector()
	registry := session.NewRegistry()
	store := jobs.NewStore()

	c := &Client{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		registry:  registry,
		submitter: submitter,
		store:     store,
	}
	c.session = session.NewManager(session.Config{
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	}, creds, transport, registry, logger)
	c.supervisor = jobs.NewSupervisor(store, querier, opts.Scheduler,
		cfg.PollInterval, logger, collector)

	// Instrumentation listeners; established events past the first signal
	// a completed reconnect.
	registry.On(models.Wildcard, func(models.Event) {
		collector.Record(metrics.OpDispatch, 0)
	})
	registry.On(string(models.EventConnectionEstablished), func(models.Event) {
		if c.connects.Add(1) > 1 {
			collector.Record(metrics.OpReconnect, 0)
		}
	})

	return c
}

// Connect establishes the session. See session.Manager.Connect.
func (c *Client) Connect(ctx context.Context) error {
	start := time.Now()
	if err := c.session.Connect(ctx); err != nil {
		return err
	}
	c.collector.Record(metrics.OpConnect, time.Since(start))
	return nil
}

// Disconnect tears down the session and clears desired room membership.
func (c *Client) Disconnect() {
	c.session.Disconnect()
}

// Close disconnects and cancels all poll tasks.
func (c *Client) Close() {
	c.session.Disconnect()
	c.supervisor.Shutdown()
}

// SessionState returns the connection state.
func (c *Client) SessionState() session.State {
	return c.session.State()
}

// LastConnectionError returns the most recent terminal connection error.
func (c *Client) LastConnectionError() error {
	return c.session.LastError()
}

// JoinRoom adds a discussion to the desired membership set, connecting
// first when auto-connect is enabled and the session is down.
func (c *Client) JoinRoom(ctx context.Context, id string) error {
	if c.cfg.AutoConnect && c.session.State() == session.StateDisconnected {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}
	return c.session.JoinRoom(id)
}

// LeaveRoom removes a discussion from the desired membership set.
func (c *Client) LeaveRoom(id string) error {
	return c.session.LeaveRoom(id)
}

// SendMessage posts a message to a discussion. Requires a live session.
func (c *Client) SendMessage(roomID, body string) error {
	return c.session.Send(roomID, body)
}

// On registers an event listener (models.Wildcard for all types).
func (c *Client) On(eventType string, fn session.Listener) session.Handle {
	return c.registry.On(eventType, fn)
}

// Off removes an event listener.
func (c *Client) Off(eventType string, h session.Handle) {
	c.registry.Off(eventType, h)
}

// SubmitIngestion submits a file ingestion job and begins tracking it.
func (c *Client) SubmitIngestion(ctx context.Context, dirPath string, files []string) (string, error) {
	return c.submit(ctx, models.JobInput{
		Type:    models.JobTypeIngestion,
		DirPath: dirPath,
		Files:   files,
	})
}

// SubmitExtraction submits a batch extraction job for a discussion and
// begins tracking it.
func (c *Client) SubmitExtraction(ctx context.Context, discussionID string) (string, error) {
	return c.submit(ctx, models.JobInput{
		Type:         models.JobTypeExtraction,
		DiscussionID: discussionID,
	})
}

func (c *Client) submit(ctx context.Context, input models.JobInput) (string, error) {
	start := time.Now()
	jobID, err := c.submitter.SubmitJob(ctx, input)
	if err != nil {
		return "", err
	}
	c.collector.Record(metrics.OpSubmit, time.Since(start))
	c.supervisor.Track(jobID)
	return jobID, nil
}

// Track begins polling an already-submitted job.
func (c *Client) Track(jobID string) {
	c.supervisor.Track(jobID)
}

// Untrack cancels polling for a job and removes its record.
func (c *Client) Untrack(jobID string) {
	c.supervisor.Untrack(jobID)
}

// Job returns a copy of the tracked record for jobID, or nil.
func (c *Client) Job(jobID string) *jobs.Record {
	return c.store.Get(jobID)
}

// Jobs returns copies of all tracked records, most recent first.
func (c *Client) Jobs() []*jobs.Record {
	return c.store.List()
}

// Stats returns runtime statistics for the sync core.
func (c *Client) Stats() metrics.Snapshot {
	return c.collector.Snapshot()
}
