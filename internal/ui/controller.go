package ui

import (
	"log"
)

// DataClearer empties the retained reading set. Implemented by sensor.Model.
type DataClearer interface {
	ClearAll()
}

// CommandSender issues a protocol command if the link is free.
// Implemented by link.Coordinator.
type CommandSender interface {
	Send(command string) bool
}

// Controller translates user intents from the terminal view into core
// actions. It owns no state of its own.
type Controller struct {
	requester ConnectRequester
	clearer   DataClearer
	sender    CommandSender
	clearCmd  string
	onQuit    func()
	logger    *log.Logger
}

func NewController(requester ConnectRequester, clearer DataClearer, sender CommandSender, clearCmd string, onQuit func(), logger *log.Logger) *Controller {
	if requester == nil {
		panic("Controller: requester cannot be nil")
	}
	if clearer == nil {
		panic("Controller: clearer cannot be nil")
	}
	if logger == nil {
		panic("Controller: logger cannot be nil")
	}
	return &Controller{
		requester: requester,
		clearer:   clearer,
		sender:    sender,
		clearCmd:  clearCmd,
		onQuit:    onQuit,
		logger:    logger,
	}
}

// ConnectRequested starts (or restarts) the link
func (c *Controller) ConnectRequested() {
	c.logger.Printf("Controller: connect requested")
	c.requester.Connect()
}

// ClearRequested wipes the local data set and asks the remote to truncate
// its buffer as well. The remote side is best effort; a busy command slot
// just means the next chained CLEAR will do it.
func (c *Controller) ClearRequested() {
	c.logger.Printf("Controller: clear requested")
	c.clearer.ClearAll()
	if c.sender != nil && c.clearCmd != "" {
		c.sender.Send(c.clearCmd)
	}
}

// QuitRequested asks the application to shut down
func (c *Controller) QuitRequested() {
	c.logger.Printf("Controller: quit requested")
	if c.onQuit != nil {
		c.onQuit()
	}
}
