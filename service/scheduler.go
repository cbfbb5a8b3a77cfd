package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

const (
	retryBackoffMin = 30 * time.Second
	retryBackoffMax = 5 * time.Minute
)

// SchedulerConfig bounds the worker pool and the retry policy.
type SchedulerConfig struct {
	Workers        int
	RetryCeiling   int
	CommandTimeout time.Duration
	PollInterval   time.Duration
}

// Scheduler drains the command queue with a bounded worker pool. Each
// dequeued command runs to completion on its worker under a per-command
// wall-clock ceiling; the verdict of the failure classifier decides
// between removal and a backed-off requeue.
type Scheduler struct {
	queue    *CommandQueue
	executor *Executor
	config   SchedulerConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}

	mu      sync.Mutex
	results []*CommandData
}

func NewScheduler(queue *CommandQueue, executor *Executor, config SchedulerConfig) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = 2
	}
	if config.RetryCeiling <= 0 {
		config.RetryCeiling = 10
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = 2 * time.Minute
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 5 * time.Second
	}
	return &Scheduler{
		queue:    queue,
		executor: executor,
		config:   config,
		wake:     make(chan struct{}, 1),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
	log.Printf("Scheduler: started %d workers", s.config.Workers)
}

// Stop cancels in-flight commands and waits for the workers to drain.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Println("Scheduler: stopped")
}

// Submit enqueues a command, reporting false when queue-equal work is
// already pending or in flight.
func (s *Scheduler) Submit(cmd *CommandData) bool {
	if !s.queue.Add(cmd) {
		log.Printf("Scheduler: duplicate of %s for %s discarded", cmd.Command, cmd.AccountName)
		return false
	}
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Scheduler) worker(ind int) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()
	for {
		cmd := s.queue.Poll(time.Now().UnixMilli())
		if cmd == nil {
			select {
			case <-s.ctx.Done():
				return
			case <-s.wake:
			case <-ticker.C:
			}
			continue
		}
		s.run(ind, cmd)
		select {
		case <-s.ctx.Done():
			return
		default:
		}
	}
}

// run executes one command and applies the state transition:
// success and terminal failure leave the queue, a retryable failure
// re-enters PENDING with a backed-off next attempt unless the retry
// ceiling is reached.
func (s *Scheduler) run(ind int, cmd *CommandData) {
	ctx, cancel := context.WithTimeout(s.ctx, s.config.CommandTimeout)
	downloaded, err := s.executor.Execute(ctx, cmd)
	cancel()

	cmd.Result.LastExecuted = time.Now().UnixMilli()
	if err != nil && errors.Is(err, context.Canceled) {
		// Shutdown interrupted the command; it goes back PENDING with
		// no retry penalty and is persisted that way.
		s.queue.Requeue(cmd, time.Now().UnixMilli())
		return
	}
	switch Classify(err) {
	case DispositionSuccess:
		cmd.Result.TakeSuccess(downloaded)
		s.queue.Done(cmd)
		s.recordResult(cmd)
	case DispositionRetry:
		cmd.Result.TakeError(err)
		cmd.Result.RetryCount++
		if cmd.Result.RetryCount >= s.config.RetryCeiling {
			log.Printf("Scheduler: worker %d: %s gave up after %d retries: %v",
				ind, cmd.Command, cmd.Result.RetryCount, err)
			s.queue.Done(cmd)
			s.recordResult(cmd)
			return
		}
		backoff := retryBackoff(cmd.Result.RetryCount)
		log.Printf("Scheduler: worker %d: %s failed, retry %d in %s: %v",
			ind, cmd.Command, cmd.Result.RetryCount, backoff, err)
		s.queue.Requeue(cmd, time.Now().Add(backoff).UnixMilli())
	case DispositionTerminal:
		cmd.Result.TakeError(err)
		log.Printf("Scheduler: worker %d: %s failed: %v", ind, cmd.Command, err)
		s.queue.Done(cmd)
		s.recordResult(cmd)
	}
}

// retryBackoff doubles per attempt, capped.
func retryBackoff(retries int) time.Duration {
	backoff := retryBackoffMin << uint(retries-1)
	if backoff > retryBackoffMax || backoff <= 0 {
		backoff = retryBackoffMax
	}
	return backoff
}

func (s *Scheduler) recordResult(cmd *CommandData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, cmd)
	if len(s.results) > 100 {
		s.results = s.results[len(s.results)-100:]
	}
}

// RecentResults returns the finished commands, newest last.
func (s *Scheduler) RecentResults() []*CommandData {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]*CommandData, len(s.results))
	copy(results, s.results)
	return results
}
