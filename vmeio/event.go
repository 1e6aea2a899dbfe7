package vmeio

import "errors"

// WaitEvent blocks until the driver delivers an interrupt event or its own
// timeout elapses.  A timeout is not an error: it yields an Event for the
// handle's logical unit with a zero Mask and TimedOut set, so polling loops
// can treat "timed out" and "nothing happened" alike.
//
// There is no cancellation; the driver timeout (SetTimeout) or a signal is
// the only way to unblock a pending wait.
func (h *Handle) WaitEvent() (Event, error) {
	if err := h.check("wait"); err != nil {
		return Event{}, err
	}
	ev, err := h.conn.ReadEvent()
	if errors.Is(err, ErrDriverTimeout) {
		return Event{LUN: h.lun, Mask: 0, TimedOut: true}, nil
	}
	if err != nil {
		return Event{}, driverErr("wait", err)
	}
	return ev, nil
}
