package link

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/lux-logger/internal/bt"
	"github.com/lowaak/lux-logger/internal/go_func_utils"
	"github.com/lowaak/lux-logger/internal/sensor"
)

// SessionState tracks where the link currently is in its lifecycle
type SessionState int

const (
	StateIdle SessionState = iota
	StateScanning
	StateConnecting
	StateConnected
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// SessionConfig carries the link identity and timing knobs. Zero values fall
// back to the protocol defaults.
type SessionConfig struct {
	ServiceUUID    string
	NotifyCharUUID string
	WriteCharUUID  string
	NamePrefix     string
	ReconnectDelay time.Duration
	PollInterval   time.Duration
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ServiceUUID:    ServiceUUIDUART,
		NotifyCharUUID: CharUUIDUARTTX,
		WriteCharUUID:  CharUUIDUARTRX,
		NamePrefix:     DeviceNamePrefix,
		ReconnectDelay: DefaultReconnectDelay,
		PollInterval:   DefaultPollInterval,
	}
}

// Session drives the whole link lifecycle: scan, match, connect, subscribe,
// handshake, poll, and reconnect after loss. Incoming notification chunks are
// reassembled into lines, classified, and routed into the model or the
// command coordinator.
type Session struct {
	mu       sync.Mutex
	state    SessionState
	device   bt.Device
	lineBuf  *LineBuffer
	retryTmr *time.Timer
	closed   bool

	cfg     SessionConfig
	manager bt.ManagerInterface
	coord   *Coordinator
	model   *sensor.Model
	logger  *log.Logger

	unlistenDisconnects func()
	pollStop            chan struct{}
	pollOnce            sync.Once
}

func NewSession(cfg SessionConfig, manager bt.ManagerInterface, coord *Coordinator, model *sensor.Model, logger *log.Logger) *Session {
	if manager == nil {
		panic("Session: manager cannot be nil")
	}
	if coord == nil {
		panic("Session: coordinator cannot be nil")
	}
	if model == nil {
		panic("Session: model cannot be nil")
	}
	if logger == nil {
		panic("Session: logger cannot be nil")
	}
	if cfg.ServiceUUID == "" {
		cfg.ServiceUUID = ServiceUUIDUART
	}
	if cfg.NotifyCharUUID == "" {
		cfg.NotifyCharUUID = CharUUIDUARTTX
	}
	if cfg.WriteCharUUID == "" {
		cfg.WriteCharUUID = CharUUIDUARTRX
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	s := &Session{
		state:    StateIdle,
		lineBuf:  NewLineBuffer(),
		cfg:      cfg,
		manager:  manager,
		coord:    coord,
		model:    model,
		logger:   logger,
		pollStop: make(chan struct{}),
	}
	s.unlistenDisconnects = manager.ListenToDisconnects(s.onDisconnected)
	return s
}

// State returns the current lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect starts scanning for a matching device. Calling it while a scan,
// connect attempt, or live connection is already underway is a no-op, so the
// retry timer and a user-initiated connect can never race into a second
// session.
func (s *Session) Connect() {
	s.mu.Lock()
	if s.closed || s.state == StateScanning || s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateScanning
	s.mu.Unlock()

	s.logger.Printf("Session: scanning for %q devices", s.cfg.NamePrefix)

	if err := s.manager.StartScan(s.onAdvertisement); err != nil {
		s.logger.Printf("Session: scan failed to start: %v", err)
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.model.SetConnection(false, err.Error())
		return
	}

	s.startPolling()
}

// Close tears down the session permanently: no more reconnects, scanning
// stopped, the current device (if any) disconnected.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.retryTmr != nil {
		s.retryTmr.Stop()
		s.retryTmr = nil
	}
	device := s.device
	s.device = nil
	s.state = StateIdle
	s.mu.Unlock()

	close(s.pollStop)
	s.unlistenDisconnects()
	s.coord.DetachWriter()

	if err := s.manager.StopScan(); err != nil {
		s.logger.Printf("Session: error stopping scan on close: %v", err)
	}
	if device != nil {
		if err := device.Disconnect(); err != nil {
			s.logger.Printf("Session: error disconnecting on close: %v", err)
		}
	}
}

// onAdvertisement filters the scan stream. First matching peripheral wins;
// the state check makes late advertisements (delivered after StopScan) no-ops.
func (s *Session) onAdvertisement(p bt.Peripheral) {
	if !s.matches(p) {
		return
	}

	s.mu.Lock()
	if s.state != StateScanning {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Printf("Session: found %s (%s, RSSI %d)", p.LocalName(), p.Address(), p.RSSI())

	if err := s.manager.StopScan(); err != nil {
		s.logger.Printf("Session: error stopping scan: %v", err)
	}

	go_func_utils.SafeGo(s.logger, func() {
		s.attach(p)
	})
}

func (s *Session) matches(p bt.Peripheral) bool {
	if p.HasServiceUUID(s.cfg.ServiceUUID) {
		return true
	}
	return s.cfg.NamePrefix != "" && strings.HasPrefix(p.LocalName(), s.cfg.NamePrefix)
}

// attach connects, verifies both characteristics exist, subscribes to the
// notify stream, and kicks off the handshake.
func (s *Session) attach(p bt.Peripheral) {
	device, err := s.manager.Connect(p)
	if err != nil {
		s.failConnect(fmt.Errorf("connect to %s failed: %w", p.Address(), err))
		return
	}

	if err := device.ResolveCharacteristic(s.cfg.ServiceUUID, s.cfg.NotifyCharUUID); err != nil {
		s.abandonDevice(device, fmt.Errorf("notify characteristic missing: %w", err))
		return
	}
	if err := device.ResolveCharacteristic(s.cfg.ServiceUUID, s.cfg.WriteCharUUID); err != nil {
		s.abandonDevice(device, fmt.Errorf("write characteristic missing: %w", err))
		return
	}

	if err := device.SubscribeNotify(s.cfg.ServiceUUID, s.cfg.NotifyCharUUID, s.onNotify); err != nil {
		s.abandonDevice(device, fmt.Errorf("subscribe failed: %w", err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = device.Disconnect()
		return
	}
	s.device = device
	s.state = StateConnected
	s.lineBuf = NewLineBuffer()
	s.mu.Unlock()

	s.logger.Printf("Session: connected to %s", device.Address())

	s.coord.AttachWriter(CommandWriterFunc(func(data []byte) error {
		return device.WriteWithResponse(s.cfg.ServiceUUID, s.cfg.WriteCharUUID, data)
	}))

	s.model.SetConnection(true, "")
	s.coord.Send(CmdHello)
}

// abandonDevice disconnects a device that connected but turned out unusable
func (s *Session) abandonDevice(device bt.Device, cause error) {
	if err := device.Disconnect(); err != nil {
		s.logger.Printf("Session: error disconnecting unusable device: %v", err)
	}
	s.failConnect(cause)
}

// failConnect records a failed connect attempt and schedules a retry
func (s *Session) failConnect(cause error) {
	s.logger.Printf("Session: %v", cause)

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.model.SetConnection(false, cause.Error())
	s.scheduleRetry()
}

// onNotify receives raw characteristic chunks and walks every completed line
// through the classifier.
func (s *Session) onNotify(buf []byte) {
	receivedAt := time.Now().UnixMilli()

	s.mu.Lock()
	lines := s.lineBuf.Feed(buf)
	s.mu.Unlock()

	for _, line := range lines {
		s.handleLine(line, receivedAt)
	}
}

func (s *Session) handleLine(line string, receivedAt int64) {
	inFlight := s.coord.InFlight()
	c := ClassifyLine(line, inFlight, receivedAt)

	switch c.Class {
	case ClassReadingBatch:
		s.logger.Printf("Session: %d readings received", len(c.Readings))
		s.model.AppendReadings(c.Readings)
	case ClassSentinel:
		s.coord.Complete()
	case ClassStatusLine:
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return
		}
		s.model.AddStatus(sensor.StatusEntry{
			Timestamp: receivedAt,
			Command:   inFlight,
			Text:      trimmed,
		})
	}
}

// onDisconnected handles connection loss reported by the transport
func (s *Session) onDisconnected(address string) {
	s.mu.Lock()
	device := s.device
	if device == nil || device.Address() != address {
		s.mu.Unlock()
		return
	}
	s.device = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	s.logger.Printf("Session: lost connection to %s", address)

	device.InvalidateHandles()
	s.coord.DetachWriter()
	s.model.SetConnection(false, "")
	s.scheduleRetry()
}

// scheduleRetry arms a single reconnect attempt; Connect's own re-entrancy
// guard makes an overlapping user-initiated connect harmless.
func (s *Session) scheduleRetry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.retryTmr != nil {
		s.retryTmr.Stop()
	}
	s.retryTmr = time.AfterFunc(s.cfg.ReconnectDelay, s.Connect)
}

// startPolling launches the GET poll loop once per session. The loop asks for
// buffered readings only while connected; if an earlier command still holds
// the slot the Send is simply skipped.
func (s *Session) startPolling() {
	s.pollOnce.Do(func() {
		go_func_utils.SafeGo(s.logger, func() {
			ticker := time.NewTicker(s.cfg.PollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-s.pollStop:
					return
				case <-ticker.C:
					if s.State() == StateConnected {
						s.coord.Send(CmdGet)
					}
				}
			}
		})
	})
}
