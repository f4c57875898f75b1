package sh

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/laptimer/pkg/comm/serial"
	"github.com/robotalks/laptimer/pkg/comm/websocket"
	"github.com/robotalks/laptimer/pkg/companion"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	Timeout     time.Duration
	Target      string
	Baud        int

	Shell *ishell.Shell
	Conn  *Conn
}

// Conn is a connected head.
type Conn struct {
	Ctx    context.Context
	Cancel func()
	Target string
	Stream io.ReadWriteCloser
	Client *companion.Client
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
	wsOrigin          = "http://localhost/"
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	timeout    = time.Second
	target     = os.Getenv("LAPTIMER_TARGET")
	baud       = serial.DefaultBaudRate

	// commands
	commands = []*ishell.Cmd{
		&PortsCmd,
		&ConnectCmd,
		&DisconnectCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.DurationVar(&timeout, "timeout", timeout, "Command timeout.")
	flag.StringVar(&target, "target", target, "Serial port or ws:// URL of the head.")
	flag.IntVar(&baud, "baud", baud, "Serial baud rate.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New() *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     timeout,
		Target:      target,
		Baud:        baud,

		Shell: ishell.New(),
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Conn == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Dial opens the byte stream to a head. ws:// and wss:// targets are
// websocket URLs, anything else names a serial port.
func Dial(target string, baud int) (io.ReadWriteCloser, error) {
	if strings.HasPrefix(target, "ws://") || strings.HasPrefix(target, "wss://") {
		return websocket.Dial(target, wsOrigin)
	}
	return serial.OpenPort(strings.TrimPrefix(target, "serial:"), baud)
}

// Call runs fn against the connected head with the command timeout
// and prints its result.
func Call(c *ishell.Context, fn func(context.Context, *companion.Client) (interface{}, error)) error {
	return CallWithin(c, ShellFrom(c).Timeout, fn)
}

// CallWithin is Call with a specific timeout.
func CallWithin(c *ishell.Context, d time.Duration, fn func(context.Context, *companion.Client) (interface{}, error)) error {
	s := ShellFrom(c)
	if s.Conn == nil {
		err := fmt.Errorf("not connected")
		c.Err(err)
		return err
	}
	ctx, cancel := context.WithTimeout(s.Conn.Ctx, d)
	defer cancel()
	res, err := fn(ctx, s.Conn.Client)
	if err != nil {
		c.Err(err)
		return err
	}
	return s.Print(c, res)
}

// Print writes a result as JSON or with its String form.
func (s *Shell) Print(c *ishell.Context, res interface{}) error {
	if res == nil {
		if !s.OutputJSON {
			c.Println("OK")
		}
		return nil
	}
	if s.OutputJSON {
		out, err := json.Marshal(res)
		if err != nil {
			c.Err(err)
			return err
		}
		c.Println(string(out))
		return nil
	}
	if lines, ok := res.([]string); ok {
		for _, line := range lines {
			c.Println(line)
		}
		return nil
	}
	c.Println(fmt.Sprint(res))
	return nil
}

// Connect connects a head.
func (s *Shell) Connect(target string) error {
	stream, err := Dial(target, s.Baud)
	if err != nil {
		return err
	}
	conn := &Conn{Target: target, Stream: stream, Client: companion.NewClient(stream)}
	conn.Ctx, conn.Cancel = context.WithCancel(context.Background())
	if s.Conn != nil {
		s.Conn.Cancel()
	}
	s.Conn = conn
	go conn.Client.Run(conn.Ctx)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", target))
	return nil
}

// Disconnect disconnects current head.
func (s *Shell) Disconnect() {
	if s.Conn != nil {
		s.Conn.Cancel()
		s.Conn = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.Target != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Target)
		}
		if err := s.Connect(s.Target); err != nil {
			log.Fatalf("connect %q failed: %v", s.Target, err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// PortsCmd lists serial ports.
	PortsCmd = ishell.Cmd{
		Name:    "ports",
		Aliases: []string{"p"},
		Help:    "list serial ports",
		Func: func(c *ishell.Context) {
			ports, err := serial.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			if len(ports) == 0 && !ShellFrom(c).OutputJSON {
				c.Println("No serial ports found")
				return
			}
			ShellFrom(c).Print(c, ports)
		},
	}

	// ConnectCmd connects a head.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "PORT|ws://HOST:PORT/",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("target expected"))
				return
			}
			if err := ShellFrom(c).Connect(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// DisconnectCmd disconnects current head.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New().Run(flag.Args()...)
}
