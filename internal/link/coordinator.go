package link

import (
	"log"
	"sync"
	"time"
)

// CommandWriter sends an encoded command to the device's write
// characteristic. The session binds one to the live connection; writes after
// a disconnect fail fast with bt.ErrHandleInvalidated.
type CommandWriter interface {
	WriteCommand(data []byte) error
}

// CommandWriterFunc adapts a function to the CommandWriter interface
type CommandWriterFunc func(data []byte) error

func (f CommandWriterFunc) WriteCommand(data []byte) error {
	return f(data)
}

// CoordinatorConfig carries the per-command deadlines
type CoordinatorConfig struct {
	DefaultTimeout time.Duration
	ClearTimeout   time.Duration
}

func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		DefaultTimeout: DefaultCommandTimeout,
		ClearTimeout:   DefaultClearTimeout,
	}
}

// Coordinator owns the single in-flight command slot. Send never queues:
// while a command is pending every further Send is a silent no-op. A command
// that neither completes nor fails by its deadline is abandoned (slot
// released, no retry).
type Coordinator struct {
	mu       sync.Mutex
	cfg      CoordinatorConfig
	writer   CommandWriter
	inFlight string
	timer    *time.Timer
	gen      uint64 // invalidates stale deadline timers
	logger   *log.Logger
}

func NewCoordinator(cfg CoordinatorConfig, logger *log.Logger) *Coordinator {
	if logger == nil {
		panic("Coordinator: logger cannot be nil")
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultCommandTimeout
	}
	if cfg.ClearTimeout <= 0 {
		cfg.ClearTimeout = DefaultClearTimeout
	}
	return &Coordinator{cfg: cfg, logger: logger}
}

// AttachWriter binds the coordinator to a live connection
func (c *Coordinator) AttachWriter(w CommandWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

// DetachWriter unbinds on disconnect and releases any in-flight command;
// there is nothing left that could complete it.
func (c *Coordinator) DetachWriter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = nil
	if c.inFlight != "" {
		c.logger.Printf("Coordinator: releasing %q on detach", c.inFlight)
		c.releaseLocked()
	}
}

// InFlight returns the pending command name, empty if the slot is free
func (c *Coordinator) InFlight() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Send writes command + "\n" through the transport with acknowledgment and
// arms the deadline. Returns false - a no-op, not an error - when a command
// is already in flight or no writer is attached. A rejected Send never
// touches the existing deadline.
func (c *Coordinator) Send(command string) bool {
	c.mu.Lock()
	if c.inFlight != "" || c.writer == nil {
		c.mu.Unlock()
		return false
	}
	writer := c.writer
	c.inFlight = command
	c.gen++
	gen := c.gen

	timeout := c.cfg.DefaultTimeout
	if command == CmdClear {
		timeout = c.cfg.ClearTimeout
	}
	c.timer = time.AfterFunc(timeout, func() { c.expire(gen) })
	c.mu.Unlock()

	if err := writer.WriteCommand([]byte(command + "\n")); err != nil {
		c.logger.Printf("Coordinator: write of %q failed: %v", command, err)
		c.releaseIfCurrent(gen)
		return false
	}

	c.logger.Printf("Coordinator: sent %q", command)
	return true
}

// Complete finishes the in-flight command after a sentinel line arrived.
// Unless the finished command was itself CLEAR, a CLEAR is chained
// automatically to drain the remote buffer; the single-slot rule keeps the
// chain from stacking.
func (c *Coordinator) Complete() {
	c.mu.Lock()
	completed := c.inFlight
	if completed == "" {
		c.mu.Unlock()
		return
	}
	c.releaseLocked()
	c.mu.Unlock()

	c.logger.Printf("Coordinator: command %q completed", completed)

	if completed != CmdClear {
		c.Send(CmdClear)
	}
}

// expire fires on the deadline; gen guards against a timer that lost the
// race with Complete or DetachWriter.
func (c *Coordinator) expire(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.inFlight == "" {
		c.mu.Unlock()
		return
	}
	abandoned := c.inFlight
	c.releaseLocked()
	c.mu.Unlock()

	c.logger.Printf("Coordinator: command %q timed out, slot released", abandoned)
}

func (c *Coordinator) releaseIfCurrent(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.inFlight != "" {
		c.releaseLocked()
	}
}

// Must be called with mu held
func (c *Coordinator) releaseLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.inFlight = ""
	c.gen++
}
