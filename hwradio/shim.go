// Copyright 2026 by the tsch6 authors, see LICENSE file

package hwradio

import (
	"time"

	"github.com/kidoman/embd"
	"periph.io/x/periph/conn/gpio"
)

// embdIRQPin adapts an embd.DigitalPin to the periph.io gpio.PinIn
// interface so a board only supported by kidoman/embd's host drivers can
// still be used as Radio's interrupt pin, the same embd-vs-periph
// indirection shim.go provided for the raw packet radios.
type embdIRQPin struct {
	p    embd.DigitalPin
	name string
	edge chan struct{}
}

// NewEmbdIRQPin wraps an embd digital pin identified by name (as passed to
// embd.NewDigitalPin) for use as Radio's IRQ input.
func NewEmbdIRQPin(name string) (gpio.PinIn, error) {
	p, err := embd.NewDigitalPin(name)
	if err != nil {
		return nil, err
	}
	return &embdIRQPin{p: p, name: name, edge: make(chan struct{}, 1)}, nil
}

func (g *embdIRQPin) Name() string   { return g.name }
func (g *embdIRQPin) Number() int    { return g.p.N() }
func (g *embdIRQPin) Function() string { return "In/Rising" }
func (g *embdIRQPin) String() string { return g.name }
func (g *embdIRQPin) Halt() error    { return nil }

func (g *embdIRQPin) DefaultPull() gpio.Pull { return gpio.PullDown }

func (g *embdIRQPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if err := g.p.SetDirection(embd.In); err != nil {
		return err
	}
	if edge == gpio.RisingEdge || edge == gpio.BothEdges {
		return g.p.Watch(embd.EdgeRising, g.edgeCB)
	}
	return nil
}

func (g *embdIRQPin) Read() gpio.Level {
	v, _ := g.p.Read()
	if v != 0 {
		return gpio.High
	}
	return gpio.Low
}

func (g *embdIRQPin) WaitForEdge(timeout time.Duration) bool {
	to := time.After(timeout)
	select {
	case <-g.edge:
		return true
	case <-to:
		return false
	}
}

func (g *embdIRQPin) edgeCB(embd.DigitalPin) {
	select {
	case g.edge <- struct{}{}:
	default:
	}
}
