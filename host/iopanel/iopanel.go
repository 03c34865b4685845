// Proxmark3 RDV4 development-rig I/O panel
// https://github.com/usbarmory/iso14443b
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package iopanel implements the button/LED/watchdog collaborators of
// spec.md §6 (button_pressed, watchdog_kick) on a Raspberry Pi GPIO header,
// for exercising cmd/pm3sim against real buttons and LEDs rather than the
// RDV4's own front panel.
package iopanel

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/bcm283x"
)

// Panel drives one cancellation button and one heartbeat LED.
type Panel struct {
	button gpio.PinIn
	led    gpio.PinOut

	pressed    bool
	ledState   gpio.Level
	lastEdge   time.Time
	lastToggle time.Time
}

const debounce = 10 * time.Millisecond

// Open initializes the GPIO host controller and binds button/led to the
// given pins (e.g. bcm283x.GPIO21, bcm283x.GPIO16).
func Open(button gpio.PinIn, led gpio.PinOut) (*Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("iopanel: %w", err)
	}

	if err := button.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("iopanel: button: %w", err)
	}

	return &Panel{button: button, led: led}, nil
}

// OpenDefault binds to a sane default pin pair for a bench rig: a
// pull-up button on GPIO13 and a heartbeat LED on GPIO16.
func OpenDefault() (*Panel, error) {
	return Open(bcm283x.GPIO13, bcm283x.GPIO16)
}

// ButtonPressed polls and debounces the cancellation button, matching
// spec.md §6's button_pressed() contract: a non-blocking level check
// suitable for a busy-poll sample loop.
func (p *Panel) ButtonPressed() bool {
	if p.button.WaitForEdge(0) {
		now := time.Now()

		if now.Sub(p.lastEdge) >= debounce {
			p.pressed = p.button.Read() == gpio.Low
		}

		p.lastEdge = now
	}

	return p.pressed
}

// WatchdogKick toggles the heartbeat LED at most once every 500ms, giving a
// visual sign of liveness on the bench without flooding the GPIO with
// writes from every sample-loop iteration.
func (p *Panel) WatchdogKick() {
	now := time.Now()

	if now.Sub(p.lastToggle) < 500*time.Millisecond {
		return
	}

	p.lastToggle = now

	p.ledState = !p.ledState
	p.led.Out(p.ledState)
}
