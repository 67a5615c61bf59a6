package audit

import (
	"context"
	"sync"
	"time"
)

// AsyncOptions tunes batching in AsyncWriter.
type AsyncOptions struct {
	BufferSize     int           // queued events before Store falls back to a direct write
	BatchSize      int           // events per StoreBatch call
	BatchTimeout   time.Duration // max age of a partial batch
	StorageTimeout time.Duration // per-batch write timeout
}

func (o *AsyncOptions) withDefaults() {
	if o.BufferSize <= 0 {
		o.BufferSize = 1000
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.BatchTimeout <= 0 {
		o.BatchTimeout = 100 * time.Millisecond
	}
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = 5 * time.Second
	}
}

// AsyncWriter collects events from concurrent callers into batches.
// Store still reports the outcome of the batch the event landed in.
type AsyncWriter struct {
	writer  BatchWriter
	queue   chan pendingEvent
	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	options AsyncOptions
}

type pendingEvent struct {
	event  Event
	result chan error
}

// NewAsyncWriter starts the batching loop. Call Close on shutdown to flush
// whatever is still queued.
func NewAsyncWriter(bw BatchWriter, opts AsyncOptions) (*AsyncWriter, error) {
	if bw == nil {
		return nil, ErrNilStorage
	}
	opts.withDefaults()

	aw := &AsyncWriter{
		writer:  bw,
		queue:   make(chan pendingEvent, opts.BufferSize),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		options: opts,
	}

	aw.wg.Add(1)
	go aw.loop()

	return aw, nil
}

// Store implements Storage.
func (aw *AsyncWriter) Store(ctx context.Context, event Event) error {
	select {
	case <-aw.done:
		return ErrStorageNotAvailable
	default:
	}

	result := make(chan error, 1)
	select {
	case aw.queue <- pendingEvent{event: event, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	default:
		// Buffer full: write through rather than drop the event.
		return aw.writer.StoreBatch(ctx, []Event{event})
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-aw.stopped:
		// Raced with Close: the event may have missed the final drain.
		select {
		case err := <-result:
			return err
		default:
			return ErrStorageNotAvailable
		}
	}
}

func (aw *AsyncWriter) loop() {
	defer aw.wg.Done()
	defer close(aw.stopped)

	events := make([]Event, 0, aw.options.BatchSize)
	results := make([]chan error, 0, aw.options.BatchSize)

	ticker := time.NewTicker(aw.options.BatchTimeout)
	defer ticker.Stop()

	flush := func() {
		if len(events) == 0 {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), aw.options.StorageTimeout)
		err := aw.writer.StoreBatch(ctx, events)
		cancel()

		for _, ch := range results {
			ch <- err // buffered, never blocks
		}
		events = events[:0]
		results = results[:0]
	}

	add := func(p pendingEvent) {
		events = append(events, p.event)
		results = append(results, p.result)
		if len(events) >= aw.options.BatchSize {
			flush()
		}
	}

	for {
		select {
		case p := <-aw.queue:
			add(p)
		case <-ticker.C:
			flush()
		case <-aw.done:
			for {
				select {
				case p := <-aw.queue:
					add(p)
				default:
					flush()
					return
				}
			}
		}
	}
}

// Close stops accepting events and flushes the queue. ctx bounds the wait.
func (aw *AsyncWriter) Close(ctx context.Context) error {
	aw.once.Do(func() { close(aw.done) })

	flushed := make(chan struct{})
	go func() {
		aw.wg.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
