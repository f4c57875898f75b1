package mqtt

import (
	"context"
	"encoding/json"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/laptimer/pkg/bridge/msgs"
	"github.com/robotalks/laptimer/pkg/devices"
)

// Topics relative to the queue prefix, each prefixed by the head id.
const (
	TopicLaps      = "/laps"
	TopicStatus    = "/status"
	TopicSightings = "/sightings"
)

// SightingQueueSize bounds sightings not yet consumed by the head.
const SightingQueueSize = 64

type sightingJSON struct {
	Address       string `json:"address"`
	RSSI          int16  `json:"rssi"`
	MeasuredPower int16  `json:"measured_power"`
}

// Bridge publishes laps and status of one head and feeds beacon
// sightings reported by an external scanner.
type Bridge struct {
	Queue  *Queue
	HeadID string

	sightings chan devices.Sighting
}

// NewBridge creates a Bridge over an existing Queue.
func NewBridge(q *Queue, headID string) *Bridge {
	return &Bridge{
		Queue:     q,
		HeadID:    headID,
		sightings: make(chan devices.Sighting, SightingQueueSize),
	}
}

// NewBridgeFromURL creates the Queue from brokerURL. The client id
// defaults to headID and an offline status is registered as will.
func NewBridgeFromURL(brokerURL, headID string) (*Bridge, error) {
	opts, prefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if opts.ClientID == "" {
		opts.SetClientID(headID)
	}
	will, err := proto.Marshal(&msgs.HeadStatus{HeadId: headID})
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(prefix+headID+TopicStatus, will, 1, true)
	return NewBridge(NewQueue(opts, prefix), headID), nil
}

// Sightings delivers beacon sightings received from the broker.
func (b *Bridge) Sightings() <-chan devices.Sighting {
	return b.sightings
}

// Start subscribes the sighting feed and connects.
func (b *Bridge) Start() error {
	b.Queue.Sub(b.HeadID+TopicSightings, b.handleSighting)
	token := b.Queue.Connect()
	token.Wait()
	return token.Error()
}

// Run implements Runnable, it stays connected until ctx is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	if err := b.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	b.Close()
	return ctx.Err()
}

// Close publishes the offline status and disconnects.
func (b *Bridge) Close() error {
	b.PublishStatus(&msgs.HeadStatus{}).Wait()
	return b.Queue.Close()
}

// PublishLap publishes a finished lap without waiting for delivery.
func (b *Bridge) PublishLap(ev *msgs.LapEvent) paho.Token {
	ev.HeadId = b.HeadID
	return b.publish(b.HeadID+TopicLaps, ev, false)
}

// PublishStatus publishes the retained head status.
func (b *Bridge) PublishStatus(st *msgs.HeadStatus) paho.Token {
	st.HeadId = b.HeadID
	return b.publish(b.HeadID+TopicStatus, st, true)
}

func (b *Bridge) publish(topic string, m proto.Message, retain bool) paho.Token {
	payload, err := proto.Marshal(m)
	if err != nil {
		glog.Errorf("mqtt: encode %s: %v", topic, err)
		return &paho.DummyToken{}
	}
	return b.Queue.PubWith(topic, payload, 1, retain)
}

func (b *Bridge) handleSighting(topic string, payload []byte) {
	var in sightingJSON
	if err := json.Unmarshal(payload, &in); err != nil {
		glog.Warningf("mqtt: invalid sighting on %q: %v", topic, err)
		return
	}
	addr, err := devices.ParseAddress(in.Address)
	if err != nil {
		glog.Warningf("mqtt: invalid sighting on %q: %v", topic, err)
		return
	}
	s := devices.Sighting{Address: addr, RSSI: in.RSSI, MeasuredPower: in.MeasuredPower}
	select {
	case b.sightings <- s:
	default:
		glog.Warningf("mqtt: sighting of %s dropped", addr)
	}
}
