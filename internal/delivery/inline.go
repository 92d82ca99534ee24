package delivery

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/veridia-labs/veridia-backend/pkg/errors"
	"github.com/veridia-labs/veridia-backend/pkg/logger"
)

const inlineJobTimeout = 2 * time.Minute

// InlineDispatcher runs deliveries on a single in-process worker goroutine.
// Enqueue never blocks the webhook path: when the buffer is full the job is
// dropped and reported, which delivery accepts as best effort.
type InlineDispatcher struct {
	svc  *Service
	logg *logger.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewInlineDispatcher(svc *Service, bufferSize int, logg *logger.Logger) (*InlineDispatcher, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "delivery service required")
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}

	d := &InlineDispatcher{
		svc:  svc,
		logg: logg,
		jobs: make(chan Job, bufferSize),
	}
	d.wg.Add(1)
	go d.run()
	return d, nil
}

func (d *InlineDispatcher) Enqueue(_ context.Context, job Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return pkgerrors.New(pkgerrors.CodeInternal, "dispatcher closed")
	}

	select {
	case d.jobs <- job:
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeDependency, "delivery queue full")
	}
}

// Close stops accepting jobs and drains the buffer before returning.
func (d *InlineDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

func (d *InlineDispatcher) run() {
	defer d.wg.Done()
	for job := range d.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), inlineJobTimeout)
		if err := d.svc.Deliver(ctx, job); err != nil && d.logg != nil {
			d.logg.Error(d.logg.WithReportID(ctx, job.ReportID), "inline delivery failed", err)
		}
		cancel()
	}
}
