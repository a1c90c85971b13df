package midi

import (
	"errors"
	"fmt"
	"io"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortTimeout is returned when the MIDI system does not answer.
var ErrPortTimeout = errors.New("timed out listing MIDI ports")

// Ports holds the names of the available MIDI ports.
type Ports struct {
	In  []string
	Out []string
}

// ListPorts returns the available port names. The driver can hang on some
// systems, so the lookup gives up after timeout.
func ListPorts(timeout time.Duration) (Ports, error) {
	ins, outs, err := scan(timeout)
	if err != nil {
		return Ports{}, err
	}
	var p Ports
	for _, in := range ins {
		p.In = append(p.In, in.String())
	}
	for _, out := range outs {
		p.Out = append(p.Out, out.String())
	}
	return p, nil
}

func scan(timeout time.Duration) ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, nil
	case <-time.After(timeout):
		return nil, nil, ErrPortTimeout
	}
}

// openSender opens the named output port, or the first one when name is
// empty. The returned closer releases the port.
func openSender(name string) (func(gomidi.Message) error, io.Closer, error) {
	_, outs, err := scan(3 * time.Second)
	if err != nil {
		return nil, nil, err
	}
	for _, port := range outs {
		if name == "" || port.String() == name {
			send, err := gomidi.SendTo(port)
			if err != nil {
				return nil, nil, fmt.Errorf("cannot open MIDI output %q: %w", port.String(), err)
			}
			return send, port, nil
		}
	}
	if name == "" {
		return nil, nil, errors.New("no MIDI output ports")
	}
	return nil, nil, fmt.Errorf("MIDI output %q not found", name)
}

// CloseDriver shuts down the MIDI driver. Call it once on exit, after every
// port is closed.
func CloseDriver() {
	gomidi.CloseDriver()
}

func findIn(name string) (drivers.In, error) {
	ins, _, err := scan(3 * time.Second)
	if err != nil {
		return nil, err
	}
	for _, port := range ins {
		if port.String() == name {
			return port, nil
		}
	}
	return nil, fmt.Errorf("MIDI input %q not found", name)
}
