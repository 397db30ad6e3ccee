package ui

import (
	"context"
	"log"
	"sync"

	"github.com/lowaak/lux-logger/internal/go_func_utils"
	"github.com/lowaak/lux-logger/internal/sensor"
)

// Bridge fans the model's events out to the hub as presentation messages.
// It is the only coupling between the core and the websocket layer; the
// model never knows the hub exists.
type Bridge struct {
	model  *sensor.Model
	hub    *Hub
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewBridge(model *sensor.Model, hub *Hub, logger *log.Logger) *Bridge {
	if model == nil {
		panic("Bridge: model cannot be nil")
	}
	if hub == nil {
		panic("Bridge: hub cannot be nil")
	}
	if logger == nil {
		panic("Bridge: logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		model:  model,
		hub:    hub,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	b.start()
	return b
}

func (b *Bridge) start() {
	readingsCh := make(chan []sensor.Reading, 8)
	statsCh := make(chan sensor.Stats, 8)
	storageCh := make(chan sensor.StorageStats, 8)
	rangeCh := make(chan sensor.TimeRangeStats, 8)
	connCh := make(chan sensor.ConnectionInfo, 8)
	statusCh := make(chan sensor.StatusEntry, 8)

	unregisters := []func(){
		b.model.ListenToReadings(readingsCh),
		b.model.ListenToStats(statsCh),
		b.model.ListenToStorageStats(storageCh),
		b.model.ListenToTimeRangeStats(rangeCh),
		b.model.ListenToConnection(connCh),
		b.model.ListenToStatus(statusCh),
	}

	b.wg.Add(1)
	go_func_utils.SafeGo(b.logger, func() {
		defer b.wg.Done()
		defer func() {
			for _, unregister := range unregisters {
				unregister()
			}
		}()

		for {
			select {
			case <-b.ctx.Done():
				return
			case readings := <-readingsCh:
				b.hub.Broadcast(Message{Type: MsgSensorData, Payload: readings})
			case stats := <-statsCh:
				b.hub.Broadcast(Message{Type: MsgUpdateStats, Payload: stats})
			case storage := <-storageCh:
				b.hub.Broadcast(Message{Type: MsgStorageStats, Payload: storage})
			case timeRange := <-rangeCh:
				b.hub.Broadcast(Message{Type: MsgTimeRangeStats, Payload: timeRange})
			case info := <-connCh:
				// The presentation contract is a bare boolean
				b.hub.Broadcast(Message{Type: MsgBLEConnection, Payload: info.Connected})
			case entry := <-statusCh:
				b.hub.Broadcast(Message{Type: MsgStatus, Payload: entry})
			}
		}
	})
}

func (b *Bridge) Shutdown() {
	b.cancel()
	b.wg.Wait()
}
