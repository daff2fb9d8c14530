package osc

import (
	"net"
	"sync"

	gosc "github.com/hypebeast/go-osc/osc"

	"go-zctrl/debug"
)

// Listener receives engine echoes. Every message under a registered path
// carrying a single number or bool is handed to apply, with numbers
// widened to float64.
type Listener struct {
	dispatcher *gosc.StandardDispatcher
	apply      func(path string, arg any)

	mu   sync.Mutex
	conn net.PacketConn
}

func NewListener(apply func(path string, arg any)) *Listener {
	return &Listener{
		dispatcher: gosc.NewStandardDispatcher(),
		apply:      apply,
	}
}

// Handle registers a path to accept.
func (l *Listener) Handle(path string) error {
	return l.dispatcher.AddMsgHandler(path, l.handle)
}

func (l *Listener) handle(msg *gosc.Message) {
	if len(msg.Arguments) != 1 {
		debug.Log("osc", "%s: expected one argument, got %d", msg.Address, len(msg.Arguments))
		return
	}
	switch v := msg.Arguments[0].(type) {
	case bool:
		l.apply(msg.Address, v)
	case float32:
		l.apply(msg.Address, float64(v))
	case float64:
		l.apply(msg.Address, v)
	case int32:
		l.apply(msg.Address, float64(v))
	case int64:
		l.apply(msg.Address, float64(v))
	default:
		debug.Log("osc", "%s: unsupported argument %T", msg.Address, v)
	}
}

// Listen serves on addr until Close (blocking - run in goroutine).
func (l *Listener) Listen(addr string) error {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()

	server := &gosc.Server{Addr: addr, Dispatcher: l.dispatcher}
	return server.Serve(conn)
}

func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
