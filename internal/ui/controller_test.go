package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClearer struct {
	clears int
}

func (c *fakeClearer) ClearAll() {
	c.clears++
}

type fakeSender struct {
	sent []string
}

func (s *fakeSender) Send(command string) bool {
	s.sent = append(s.sent, command)
	return true
}

func TestControllerConnectRequested(t *testing.T) {
	requester := &fakeRequester{}
	c := NewController(requester, &fakeClearer{}, nil, "", nil, newTestLogger())

	c.ConnectRequested()

	assert.Equal(t, int32(1), requester.connects.Load())
}

func TestControllerClearRequestedClearsLocalAndRemote(t *testing.T) {
	clearer := &fakeClearer{}
	sender := &fakeSender{}
	c := NewController(&fakeRequester{}, clearer, sender, "CLEAR", nil, newTestLogger())

	c.ClearRequested()

	assert.Equal(t, 1, clearer.clears)
	assert.Equal(t, []string{"CLEAR"}, sender.sent)
}

func TestControllerClearWithoutSenderIsLocalOnly(t *testing.T) {
	clearer := &fakeClearer{}
	c := NewController(&fakeRequester{}, clearer, nil, "", nil, newTestLogger())

	c.ClearRequested()

	assert.Equal(t, 1, clearer.clears)
}

func TestControllerQuitRequested(t *testing.T) {
	quits := 0
	c := NewController(&fakeRequester{}, &fakeClearer{}, nil, "", func() { quits++ }, newTestLogger())

	c.QuitRequested()

	assert.Equal(t, 1, quits)
}
