package queue

import (
	"log"
	"sync"
	"time"

	"crm-backend/internal/metrics"
)

// Job is one outbound message to deliver.
type Job struct {
	LeadID  uint
	Message string
	SentBy  *uint
}

// Sender delivers one outbound message. Implemented by the WhatsApp client.
type Sender interface {
	Send(leadID uint, message string, sentBy *uint) error
}

// Dispatcher decouples slow outbound sends from the request path. Jobs are
// buffered on a channel and delivered by a background worker with bounded
// retries. A full queue drops the job with a log line rather than blocking
// the caller.
type Dispatcher struct {
	jobs        chan Job
	sender      Sender
	maxAttempts int
	retryDelay  time.Duration
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

func NewDispatcher(sender Sender, queueSize, maxAttempts int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{
		jobs:        make(chan Job, queueSize),
		sender:      sender,
		maxAttempts: maxAttempts,
		retryDelay:  2 * time.Second,
	}
}

// Start launches n delivery workers.
func (d *Dispatcher) Start(n int) {
	if n <= 0 {
		n = 1
	}
	for i := 0; i < n; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.jobs)
	})
	d.wg.Wait()
}

// Enqueue submits a job without blocking. Returns false if the queue is full.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case d.jobs <- job:
		metrics.OutboundEnqueued.Inc()
		return true
	default:
		metrics.OutboundDropped.Inc()
		log.Printf("Outbound queue full, dropping message for lead #%d", job.LeadID)
		return false
	}
}

// EnqueueMessage satisfies the automation engine's outbound contract.
func (d *Dispatcher) EnqueueMessage(leadID uint, message string, sentBy *uint) bool {
	return d.Enqueue(Job{LeadID: leadID, Message: message, SentBy: sentBy})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for job := range d.jobs {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job Job) {
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = d.sender.Send(job.LeadID, job.Message, job.SentBy); err == nil {
			metrics.OutboundSends.WithLabelValues("sent").Inc()
			return
		}
		log.Printf("Outbound send attempt %d/%d failed for lead #%d: %v",
			attempt, d.maxAttempts, job.LeadID, err)
		if attempt < d.maxAttempts {
			time.Sleep(d.retryDelay * time.Duration(attempt))
		}
	}
	metrics.OutboundSends.WithLabelValues("failed").Inc()
	log.Printf("Giving up on outbound message for lead #%d: %v", job.LeadID, err)
}
