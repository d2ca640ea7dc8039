package gateway

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/muurk/rs485gw/internal/network"
	"github.com/muurk/rs485gw/internal/protocol"
	"github.com/muurk/rs485gw/internal/queue"
)

// calls is a shared log so tests can assert ordering across fakes.
type calls struct {
	log []string
}

func (c *calls) add(format string, args ...any) {
	c.log = append(c.log, fmt.Sprintf(format, args...))
}

type fakeBus struct {
	id      int
	q       *queue.Queue
	calls   *calls
	txErr   error
	baudErr error
	sent    [][]byte
}

func newFakeBus(id int, c *calls) *fakeBus {
	return &fakeBus{id: id, q: queue.New(queue.DefaultCapacity), calls: c}
}

func (b *fakeBus) ID() int             { return b.id }
func (b *fakeBus) Queue() *queue.Queue { return b.q }

func (b *fakeBus) Transmit(data []byte) error {
	b.calls.add("bus%d tx %X", b.id, data)
	if b.txErr != nil {
		return b.txErr
	}
	b.sent = append(b.sent, append([]byte(nil), data...))
	return nil
}

func (b *fakeBus) SetBaud(rate int) error {
	b.calls.add("bus%d baud %d", b.id, rate)
	return b.baudErr
}

// receive simulates the bus receive goroutine.
func (b *fakeBus) receive(data []byte) {
	b.q.PushMany(data)
	b.q.MarkChunk()
}

// sink records every broadcast as its wire line without the terminator.
type sink struct {
	lines []string
}

func (s *sink) Broadcast(msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		panic(err)
	}
	s.lines = append(s.lines, strings.TrimSuffix(string(data), "\n"))
}

func (s *sink) reset() { s.lines = nil }

type fakeJoiner struct {
	calls *calls

	beginErr error
	// connectAfter is the number of Status calls that report not connected
	// after Begin; negative never connects.
	connectAfter int
	status       network.Status

	joined   bool
	polls    int
	statuses int
}

func (j *fakeJoiner) Begin(ssid, password string) error {
	j.calls.add("join %s/%s", ssid, password)
	if j.beginErr != nil {
		return j.beginErr
	}
	j.joined = true
	j.polls = 0
	return nil
}

func (j *fakeJoiner) Status() network.Status {
	j.statuses++
	if !j.joined {
		return network.Status{}
	}
	if j.connectAfter < 0 || j.polls < j.connectAfter {
		j.polls++
		return network.Status{}
	}
	return j.status
}

func (j *fakeJoiner) Leave() error {
	j.calls.add("leave")
	j.joined = false
	return nil
}

type fakeClient struct {
	name     string
	chunks   [][]byte
	eof      bool
	writeErr error
	written  []string
	closed   bool
}

func (c *fakeClient) ReadAvailable(buf []byte) (int, error) {
	if c.closed {
		return 0, net.ErrClosed
	}
	if len(c.chunks) == 0 {
		if c.eof {
			return 0, io.EOF
		}
		return 0, nil
	}
	n := copy(buf, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func (c *fakeClient) Write(p []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, strings.TrimSuffix(string(p), "\n"))
	return nil
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func (c *fakeClient) RemoteAddr() string { return c.name }

type fakeListener struct {
	port    int
	pending []*fakeClient
	closed  bool
}

func (l *fakeListener) Accept() (network.Client, bool, error) {
	if l.closed {
		return nil, false, errors.New("listener closed")
	}
	if len(l.pending) == 0 {
		return nil, false, nil
	}
	c := l.pending[0]
	l.pending = l.pending[1:]
	return c, true, nil
}

func (l *fakeListener) Port() int { return l.port }

func (l *fakeListener) Close() error {
	l.closed = true
	return nil
}

// listenRecorder hands out fakeListeners and remembers them.
type listenRecorder struct {
	calls     *calls
	err       error
	listeners []*fakeListener
}

func (r *listenRecorder) listen(port int) (network.Listener, error) {
	r.calls.add("listen %d", port)
	if r.err != nil {
		return nil, r.err
	}
	l := &fakeListener{port: port}
	r.listeners = append(r.listeners, l)
	return l, nil
}

func (r *listenRecorder) last() *fakeListener {
	if len(r.listeners) == 0 {
		return nil
	}
	return r.listeners[len(r.listeners)-1]
}

type fakeAdvertiser struct {
	calls *calls
}

func (a *fakeAdvertiser) Advertise(port int) error {
	a.calls.add("advertise %d", port)
	return nil
}

func (a *fakeAdvertiser) Withdraw() {
	a.calls.add("withdraw")
}

// fakeClock advances only when the code under test sleeps.
type fakeClock struct {
	t      time.Time
	sleeps int
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps++
	c.t = c.t.Add(d)
}

// rig wires a complete gateway core around fakes.
type rig struct {
	calls    *calls
	state    *State
	bus1     *fakeBus
	bus2     *fakeBus
	joiner   *fakeJoiner
	listens  *listenRecorder
	adv      *fakeAdvertiser
	clock    *fakeClock
	conn     *ConnectionManager
	wireless *sink
	out      *sink
	router   *Router
	loop     *Loop
}

func newRig() *rig {
	c := &calls{}
	r := &rig{
		calls:    c,
		state:    NewState(DefaultPort),
		bus1:     newFakeBus(Bus1, c),
		bus2:     newFakeBus(Bus2, c),
		joiner:   &fakeJoiner{calls: c, status: network.Status{Connected: true, IP: "192.168.1.40", RSSI: -61}},
		listens:  &listenRecorder{calls: c},
		adv:      &fakeAdvertiser{calls: c},
		clock:    &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		wireless: &sink{},
		out:      &sink{},
	}
	r.conn = NewConnectionManager(r.state, r.joiner, r.listens.listen, ConnOptions{
		Advertiser: r.adv,
		now:        r.clock.now,
		sleep:      r.clock.sleep,
	})
	r.router = NewRouter(r.state, r.conn, r.out, r.bus1, r.bus2)
	r.loop = NewLoop(LoopConfig{
		State:   r.state,
		Router:  r.router,
		Conn:    r.conn,
		Out:     r.out,
		Sources: []Source{r.bus1, r.bus2},
	})
	return r
}

// joinAndAccept gets the rig to a state with one connected socket client.
func (r *rig) joinAndAccept(c *fakeClient) {
	r.router.DispatchLine(ChannelPairing, `{"cmd":"wifi_connect","ssid":"shop","pwd":"pw"}`)
	r.listens.last().pending = append(r.listens.last().pending, c)
	r.loop.Tick()
	r.out.reset()
	r.calls.log = nil
}

var fakeConnected = network.Status{Connected: true, IP: "192.168.1.40", RSSI: -61}
