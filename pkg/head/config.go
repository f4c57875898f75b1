package head

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/golang/glog"

	"github.com/robotalks/laptimer/pkg/bridge/mqtt"
	"github.com/robotalks/laptimer/pkg/comm"
	"github.com/robotalks/laptimer/pkg/comm/serial"
	"github.com/robotalks/laptimer/pkg/comm/websocket"
	fx "github.com/robotalks/laptimer/pkg/framework"
	"github.com/robotalks/laptimer/pkg/laps"
	"github.com/robotalks/laptimer/pkg/msgs"
	"github.com/robotalks/laptimer/pkg/sensor"
)

// Config provides options to assemble a Head.
type Config struct {
	// ID identifies the head, defaults to the machine id.
	ID string
	// Port is the companion UART, e.g. /dev/ttyUSB0.
	Port string
	Baud int
	// Listen accepts companions over websocket when Port is empty.
	Listen string
	// GatePort is the serial port whose modem lines are the sensors.
	GatePort   string
	StartLine  string
	FinishLine string
	// MQTTURL specifies the broker, e.g. mqtt://host:port/timing/.
	MQTTURL       string
	OperationMode string
	SensorMode    string
}

var defaultConfig = Config{
	Baud:          serial.DefaultBaudRate,
	Listen:        ":8080",
	StartLine:     "cts",
	FinishLine:    "dcd",
	OperationMode: laps.Laptimer.String(),
	SensorMode:    laps.SingleSensor.String(),
}

func init() {
	if val := os.Getenv("LAPTIMER_ID"); val != "" {
		defaultConfig.ID = val
	}
	if val := os.Getenv("LAPTIMER_PORT"); val != "" {
		defaultConfig.Port = val
	}
	if val := os.Getenv("LAPTIMER_BAUD"); val != "" {
		if baud, err := strconv.Atoi(val); err == nil {
			defaultConfig.Baud = baud
		}
	}
	if val := os.Getenv("LAPTIMER_LISTEN"); val != "" {
		defaultConfig.Listen = val
	}
	if val := os.Getenv("LAPTIMER_GATE_PORT"); val != "" {
		defaultConfig.GatePort = val
	}
	if val := os.Getenv("LAPTIMER_MQTT_URL"); val != "" {
		defaultConfig.MQTTURL = val
	}
	if val := os.Getenv("LAPTIMER_OP_MODE"); val != "" {
		defaultConfig.OperationMode = val
	}
	if val := os.Getenv("LAPTIMER_SENSOR_MODE"); val != "" {
		defaultConfig.SensorMode = val
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ID, "id", defaultConfig.ID, "Head ID")
	flag.StringVar(&defaultConfig.Port, "port", defaultConfig.Port, "Companion serial port")
	flag.IntVar(&defaultConfig.Baud, "baud", defaultConfig.Baud, "Companion serial baud rate")
	flag.StringVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Websocket listen address when no serial port is used")
	flag.StringVar(&defaultConfig.GatePort, "gate", defaultConfig.GatePort, "Serial port with sensor modem lines")
	flag.StringVar(&defaultConfig.StartLine, "start-line", defaultConfig.StartLine, "Modem line of the start sensor")
	flag.StringVar(&defaultConfig.FinishLine, "finish-line", defaultConfig.FinishLine, "Modem line of the finish sensor")
	flag.StringVar(&defaultConfig.MQTTURL, "mqtt", defaultConfig.MQTTURL, "MQTT broker URL")
	flag.StringVar(&defaultConfig.OperationMode, "mode", defaultConfig.OperationMode, "Operation mode")
	flag.StringVar(&defaultConfig.SensorMode, "sensors", defaultConfig.SensorMode, "Sensor mode")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewHead creates a Head with transports and collaborators from config.
func (c *Config) NewHead() (*Head, error) {
	opMode, err := laps.ParseOperationMode(c.OperationMode)
	if err != nil {
		return nil, err
	}
	sensors, err := laps.ParseSensorMode(c.SensorMode)
	if err != nil {
		return nil, err
	}
	id := c.ID
	if id == "" {
		if id, err = MachineID(); err != nil {
			return nil, fmt.Errorf("machine id: %v", err)
		}
	}

	clock := sensor.NewTickClock()
	inputs := &sensor.Inputs{}

	var link *comm.Link
	var runners []fx.Runnable
	if c.Port != "" {
		if link, err = serial.Open(c.Port, c.Baud); err != nil {
			return nil, err
		}
	} else {
		ep := websocket.NewEndpoint()
		link = comm.NewLink(ep)
		runners = append(runners, fx.NamedRun("websocket", &httpServer{
			Server: &http.Server{Addr: c.Listen, Handler: ep.Handler()},
		}))
	}

	h := New(id, link, inputs, clock, sensors)
	h.AddRunnable(runners...)

	if c.GatePort != "" {
		gate, err := sensor.OpenGate(c.GatePort, inputs, clock)
		if err != nil {
			return nil, err
		}
		if gate.StartLine, err = sensor.ParseLine(c.StartLine); err != nil {
			return nil, err
		}
		if gate.FinishLine, err = sensor.ParseLine(c.FinishLine); err != nil {
			return nil, err
		}
		if sensors != laps.DualSensor {
			gate.FinishLine = sensor.LineNone
		}
		h.AddRunnable(fx.NamedRun("gate", gate))
	}

	if c.MQTTURL != "" {
		bridge, err := mqtt.NewBridgeFromURL(c.MQTTURL, id)
		if err != nil {
			return nil, fmt.Errorf("create MQTT bridge error: %v", err)
		}
		h.Publisher = bridge
		h.Sightings = bridge.Sightings()
		h.Dispatcher.DeviceTypes |= msgs.DeviceIdentifier
		h.AddRunnable(fx.NamedRun("mqtt", bridge))
	}
	h.Dispatcher.DeviceTypes |= msgs.DeviceDisplay

	if err := h.SetOperationMode(opMode); err != nil {
		return nil, err
	}
	glog.Infof("head %s: %s with %s", id, opMode, sensors)
	return h, nil
}

// MustNewHead creates a Head and fails on error.
func (c *Config) MustNewHead() *Head {
	h, err := c.NewHead()
	if err != nil {
		log.Fatalln(err)
	}
	return h
}

type httpServer struct {
	*http.Server
}

func (s *httpServer) Run(ctx context.Context) error {
	glog.Infof("websocket: listening on %s", s.Addr)
	err := fx.RunWithContextCloser(ctx, s.Server, s.ListenAndServe)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
