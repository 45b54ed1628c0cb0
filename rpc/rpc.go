package rpc

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/rpc"

	"github.com/livetechno/livetechno"
)

// EventServer accepts control events from other processes.
type EventServer struct {
	events chan<- livetechno.Event
}

// Post parses a JSON wire event and queues it without blocking. reply is 1
// if the event was queued and 0 if the queue was full. JSON keeps zero
// values apart from missing fields, which gob does not.
func (s *EventServer) Post(data []byte, reply *int) error {
	var ev livetechno.WireEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("could not decode event: %w", err)
	}
	e, err := livetechno.ParseEvent(ev)
	if err != nil {
		return err
	}
	select {
	case s.events <- e:
		*reply = 1
	default:
		*reply = 0
	}
	return nil
}

// Receiver listens on address, e.g. ":31337", and passes the events posted by
// Senders to events. Close the returned listener to stop receiving.
func Receiver(address string, events chan<- livetechno.Event) (net.Listener, error) {
	server := rpc.NewServer()
	if err := server.Register(&EventServer{events: events}); err != nil {
		return nil, fmt.Errorf("rpc.Register failed: %v", err)
	}
	l, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("net.Listen failed: %v", err)
	}
	go server.Accept(l)
	return l, nil
}

// Sender connects to a Receiver. Events sent to the returned channel are
// posted in order; close the channel to hang up.
func Sender(address string) (chan<- livetechno.Event, error) {
	c := make(chan livetechno.Event, 256)
	client, err := rpc.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("rpc.Dial failed: %v", err)
	}
	go func() {
		defer client.Close()
		for ev := range c {
			data, err := json.Marshal(livetechno.ToWire(ev))
			if err != nil {
				log.Printf("could not encode event: %v", err)
				continue
			}
			var reply int
			if err := client.Call("EventServer.Post", data, &reply); err != nil {
				log.Printf("EventServer.Post error: %v", err)
			}
		}
	}()
	return c, nil
}
