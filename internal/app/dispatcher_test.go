package app

import (
	"bytes"
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/pkg/mapping"
)

type publishCall struct {
	topic   string
	payload string
}

// recordingPublisher records publishes and fails for topics listed in failOn.
type recordingPublisher struct {
	mu     sync.Mutex
	calls  []publishCall
	failOn map[string]error
	hook   func()
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, payload string) error {
	if p.hook != nil {
		p.hook()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.failOn[topic]; ok {
		return err
	}
	p.calls = append(p.calls, publishCall{topic, payload})
	return nil
}

func (p *recordingPublisher) Calls() []publishCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishCall{}, p.calls...)
}

type sendCall struct {
	addr   string
	packet []byte
}

type recordingSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

func (s *recordingSender) SendTo(ctx context.Context, addr string, packet []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, sendCall{addr, append([]byte{}, packet...)})
	return nil
}

func (s *recordingSender) Calls() []sendCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sendCall{}, s.calls...)
}

type dispatchErrorEvent struct {
	device string
	err    error
}

type mockDispatchEmitter struct {
	mu      sync.Mutex
	results []DispatchResult
	errors  []dispatchErrorEvent
}

func (m *mockDispatchEmitter) OnFrameDispatched(result DispatchResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *mockDispatchEmitter) OnDispatchError(deviceID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, dispatchErrorEvent{deviceID, err})
}

func mustText(t *testing.T, prefix string, perMapping bool, ms ...mapping.Mapping) domain.Device {
	t.Helper()
	d, err := domain.NewTextDevice(prefix, ms, perMapping)
	if err != nil {
		t.Fatalf("NewTextDevice(%q) error = %v", prefix, err)
	}
	return d
}

func mustBinary(t *testing.T, addr string, leds int, ms ...mapping.Mapping) domain.Device {
	t.Helper()
	d, err := domain.NewBinaryDevice(addr, leds, ms)
	if err != nil {
		t.Fatalf("NewBinaryDevice(%q) error = %v", addr, err)
	}
	return d
}

func frame(seq uint64, data ...byte) domain.Frame {
	return domain.Frame{Seq: seq, Data: data}
}

func TestDispatcher_Payloads(t *testing.T) {
	devices := domain.DeviceSet{
		Text:   []domain.Device{mustText(t, "cmnd/strip", false, mapping.Mapping{SourceStart: 0, TargetStart: 0, Length: 2})},
		Binary: []domain.Device{mustBinary(t, "10.0.0.2:21324", 3, mapping.Mapping{SourceStart: 0, TargetStart: 1, Length: 2})},
	}
	pub := &recordingPublisher{}
	snd := &recordingSender{}
	d := NewDispatcher(DispatcherConfig{ChangeDetection: true, Timeout: 1}, devices, pub, snd, &mockLogger{}, nil, nil)

	res, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Devices != 2 || res.Packets != 2 || res.Failed != 0 {
		t.Errorf("result = %+v, want 2 devices 2 packets", res)
	}

	calls := pub.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d publishes, want 1", len(calls))
	}
	if calls[0].topic != "cmnd/strip/LED1" {
		t.Errorf("topic = %q, want cmnd/strip/LED1", calls[0].topic)
	}
	if calls[0].payload != "#010203 #040506 " {
		t.Errorf("payload = %q", calls[0].payload)
	}

	sends := snd.Calls()
	if len(sends) != 1 {
		t.Fatalf("got %d datagrams, want 1", len(sends))
	}
	want := []byte{2, 1, 0, 0, 0, 1, 2, 3, 4, 5, 6}
	if sends[0].addr != "10.0.0.2:21324" || !bytes.Equal(sends[0].packet, want) {
		t.Errorf("datagram = %s %v, want %v", sends[0].addr, sends[0].packet, want)
	}
}

func TestDispatcher_IdenticalFramesSkipTextOnly(t *testing.T) {
	devices := domain.DeviceSet{
		Text:   []domain.Device{mustText(t, "cmnd/a", false, mapping.Mapping{Length: 2})},
		Binary: []domain.Device{mustBinary(t, "host:1", 2, mapping.Mapping{Length: 2})},
	}
	pub := &recordingPublisher{}
	snd := &recordingSender{}
	stats := NewStatsTracker(devices.Len())
	d := NewDispatcher(DispatcherConfig{ChangeDetection: true, Timeout: 1}, devices, pub, snd, &mockLogger{}, stats, nil)

	data := []byte{9, 9, 9, 8, 8, 8}
	if _, err := d.Dispatch(context.Background(), frame(1, data...)); err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}
	res, err := d.Dispatch(context.Background(), frame(2, data...))
	if err != nil {
		t.Fatalf("second Dispatch() error = %v", err)
	}

	if !res.TextSkipped {
		t.Error("second frame: TextSkipped = false, want true")
	}
	if got := len(pub.Calls()); got != 1 {
		t.Errorf("publishes = %d, want 1", got)
	}
	if got := len(snd.Calls()); got != 2 {
		t.Errorf("datagrams = %d, want 2", got)
	}
	if s := stats.Snapshot(); s.FramesUnchanged != 1 || s.FramesDispatched != 2 {
		t.Errorf("stats = %+v, want 1 unchanged 2 dispatched", s)
	}
}

func TestDispatcher_UnchangedFrameKeepsBaseline(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{mustText(t, "cmnd/a", false, mapping.Mapping{})},
	}
	pub := &recordingPublisher{}
	d := NewDispatcher(DispatcherConfig{ChangeDetection: true}, devices, pub, nil, &mockLogger{}, nil, nil)

	frames := [][]byte{{1, 1, 1}, {1, 1, 1}, {2, 2, 2}, {1, 1, 1}, {1, 1, 1}}
	wantSkipped := []bool{false, true, false, false, true}
	for i, data := range frames {
		res, err := d.Dispatch(context.Background(), frame(uint64(i+1), data...))
		if err != nil {
			t.Fatalf("Dispatch(%d) error = %v", i, err)
		}
		if res.TextSkipped != wantSkipped[i] {
			t.Errorf("frame %d: TextSkipped = %v, want %v", i, res.TextSkipped, wantSkipped[i])
		}
	}
	if got := len(pub.Calls()); got != 3 {
		t.Errorf("publishes = %d, want 3", got)
	}
}

func TestDispatcher_ChangeDetectionDisabled(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{mustText(t, "cmnd/a", false, mapping.Mapping{})},
	}
	pub := &recordingPublisher{}
	d := NewDispatcher(DispatcherConfig{}, devices, pub, nil, &mockLogger{}, nil, nil)

	for i := 0; i < 3; i++ {
		if _, err := d.Dispatch(context.Background(), frame(uint64(i+1), 5, 5, 5)); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}
	if got := len(pub.Calls()); got != 3 {
		t.Errorf("publishes = %d, want 3", got)
	}
}

func TestDispatcher_SourceOutOfBoundsIsolatesDevice(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{
			mustText(t, "cmnd/far", false, mapping.Mapping{SourceStart: 10}),
			mustText(t, "cmnd/near", false, mapping.Mapping{SourceStart: 1}),
		},
		Binary: []domain.Device{mustBinary(t, "host:1", 1, mapping.Mapping{})},
	}
	pub := &recordingPublisher{}
	snd := &recordingSender{}
	emitter := &mockDispatchEmitter{}
	stats := NewStatsTracker(devices.Len())
	d := NewDispatcher(DispatcherConfig{ChangeDetection: true, Timeout: 1}, devices, pub, snd, &mockLogger{}, stats, emitter)

	res, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want nil", err)
	}
	if res.Failed != 1 || res.Devices != 2 {
		t.Errorf("result = %+v, want 1 failed 2 devices", res)
	}

	calls := pub.Calls()
	if len(calls) != 1 || calls[0].topic != "cmnd/near/LED1" || calls[0].payload != "#040506 " {
		t.Errorf("publishes = %+v, want only cmnd/near", calls)
	}
	if got := len(snd.Calls()); got != 1 {
		t.Errorf("datagrams = %d, want 1", got)
	}

	if len(emitter.errors) != 1 || emitter.errors[0].device != "cmnd/far" {
		t.Fatalf("error events = %+v", emitter.errors)
	}
	if !errors.Is(emitter.errors[0].err, mapping.ErrSourceRangeOutOfBounds) {
		t.Errorf("error = %v, want ErrSourceRangeOutOfBounds", emitter.errors[0].err)
	}
	if len(emitter.results) != 1 {
		t.Errorf("dispatched events = %d, want 1", len(emitter.results))
	}
	if s := stats.Snapshot(); s.DeviceErrors != 1 {
		t.Errorf("DeviceErrors = %d, want 1", s.DeviceErrors)
	}
}

func TestDispatcher_MalformedDeviceIsSkipped(t *testing.T) {
	window, err := mapping.NewTable([]mapping.Mapping{{TargetStart: 8, Length: 2}})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	devices := domain.DeviceSet{
		Binary: []domain.Device{
			// Struct literals skip the NewBinaryDevice checks.
			{ID: "host:short", Protocol: domain.ProtocolBinary, Table: window, NumLEDs: 4},
			{ID: "host:huge", Protocol: domain.ProtocolBinary, Table: window, NumLEDs: math.MaxInt},
			mustBinary(t, "host:ok", 1, mapping.Mapping{}),
		},
	}
	snd := &recordingSender{}
	emitter := &mockDispatchEmitter{}
	d := NewDispatcher(DispatcherConfig{Timeout: 1}, devices, nil, snd, &mockLogger{}, nil, emitter)

	res, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3, 4, 5, 6))
	if err != nil {
		t.Fatalf("Dispatch() error = %v, want nil", err)
	}
	if res.Failed != 2 || res.Devices != 1 {
		t.Errorf("result = %+v, want 2 failed 1 device", res)
	}
	calls := snd.Calls()
	if len(calls) != 1 || calls[0].addr != "host:ok" {
		t.Errorf("datagrams = %+v, want only host:ok", calls)
	}
	if len(emitter.errors) != 2 {
		t.Fatalf("error events = %+v, want 2", emitter.errors)
	}
	for _, e := range emitter.errors {
		if !errors.Is(e.err, mapping.ErrTargetRangeOutOfBounds) {
			t.Errorf("device %s error = %v, want ErrTargetRangeOutOfBounds", e.device, e.err)
		}
	}
}

func TestDispatcher_TransportErrorAbandonsFrame(t *testing.T) {
	brokerDown := errors.New("broker down")
	devices := domain.DeviceSet{
		Text: []domain.Device{
			mustText(t, "cmnd/a", false, mapping.Mapping{}),
			mustText(t, "cmnd/b", false, mapping.Mapping{}),
		},
		Binary: []domain.Device{mustBinary(t, "host:1", 1, mapping.Mapping{})},
	}
	pub := &recordingPublisher{failOn: map[string]error{"cmnd/a/LED1": brokerDown}}
	snd := &recordingSender{}
	emitter := &mockDispatchEmitter{}
	stats := NewStatsTracker(devices.Len())
	d := NewDispatcher(DispatcherConfig{ChangeDetection: true, Timeout: 1}, devices, pub, snd, &mockLogger{}, stats, emitter)

	_, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3))
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("Dispatch() error = %v, want ErrTransport", err)
	}
	if !errors.Is(err, brokerDown) {
		t.Errorf("Dispatch() error = %v, want it to wrap the publish error", err)
	}
	if got := len(pub.Calls()); got != 0 {
		t.Errorf("publishes = %d, want 0", got)
	}
	if got := len(snd.Calls()); got != 0 {
		t.Errorf("datagrams = %d, want 0", got)
	}
	if len(emitter.results) != 0 {
		t.Errorf("dispatched events = %d, want 0", len(emitter.results))
	}
	if s := stats.Snapshot(); s.TransportErrors != 1 || s.FramesDispatched != 0 {
		t.Errorf("stats = %+v, want 1 transport error", s)
	}

	// The next frame proceeds normally once the transport recovers.
	pub.mu.Lock()
	pub.failOn = nil
	pub.mu.Unlock()
	if _, err := d.Dispatch(context.Background(), frame(2, 3, 2, 1)); err != nil {
		t.Fatalf("Dispatch() after recovery error = %v", err)
	}
	if got := len(pub.Calls()); got != 2 {
		t.Errorf("publishes after recovery = %d, want 2", got)
	}
}

func TestDispatcher_SendErrorIsTransportError(t *testing.T) {
	devices := domain.DeviceSet{
		Binary: []domain.Device{mustBinary(t, "host:1", 1, mapping.Mapping{})},
	}
	snd := &recordingSender{err: errors.New("network unreachable")}
	d := NewDispatcher(DispatcherConfig{Timeout: 1}, devices, nil, snd, &mockLogger{}, nil, nil)

	if _, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3)); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Dispatch() error = %v, want ErrTransport", err)
	}
}

func TestDispatcher_MissingPublisher(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{mustText(t, "cmnd/a", false, mapping.Mapping{})},
	}
	d := NewDispatcher(DispatcherConfig{}, devices, nil, nil, &mockLogger{}, nil, nil)

	if _, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3)); !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Dispatch() error = %v, want ErrTransport", err)
	}
}

func TestDispatcher_PerMappingTopics(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{mustText(t, "cmnd/a", true,
			mapping.Mapping{SourceStart: 0, TargetStart: 5, Length: 1},
			mapping.Mapping{SourceStart: 1, TargetStart: 0, Length: 2, Reverse: true},
		)},
	}
	pub := &recordingPublisher{}
	d := NewDispatcher(DispatcherConfig{}, devices, pub, nil, &mockLogger{}, nil, nil)

	if _, err := d.Dispatch(context.Background(), frame(1, 1, 1, 1, 2, 2, 2, 3, 3, 3)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	want := []publishCall{
		{"cmnd/a/LED1", "#030303 #020202 "},
		{"cmnd/a/LED6", "#010101 "},
	}
	calls := pub.Calls()
	if len(calls) != len(want) {
		t.Fatalf("publishes = %+v, want %+v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("publish %d = %+v, want %+v", i, calls[i], want[i])
		}
	}
}

func TestDispatcher_ChunkedBinary(t *testing.T) {
	devices := domain.DeviceSet{
		Binary: []domain.Device{mustBinary(t, "host:1", 1000, mapping.Mapping{Length: 1})},
	}
	snd := &recordingSender{}
	d := NewDispatcher(DispatcherConfig{Timeout: 1}, devices, nil, snd, &mockLogger{}, nil, nil)

	res, err := d.Dispatch(context.Background(), frame(1, 7, 7, 7))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	sends := snd.Calls()
	if len(sends) != 3 || res.Packets != 3 {
		t.Fatalf("datagrams = %d, Packets = %d, want 3", len(sends), res.Packets)
	}
	for i, s := range sends {
		if s.packet[0] != 4 {
			t.Errorf("packet %d code = %d, want 4", i, s.packet[0])
		}
	}
}

func TestDispatcher_SetDevicesResetsGate(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{mustText(t, "cmnd/a", false, mapping.Mapping{})},
	}
	pub := &recordingPublisher{}
	stats := NewStatsTracker(devices.Len())
	d := NewDispatcher(DispatcherConfig{ChangeDetection: true}, devices, pub, nil, &mockLogger{}, stats, nil)

	if _, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	reloaded := domain.DeviceSet{
		Text: []domain.Device{
			mustText(t, "cmnd/a", false, mapping.Mapping{}),
			mustText(t, "cmnd/b", false, mapping.Mapping{}),
		},
	}
	d.SetDevices(reloaded)

	res, err := d.Dispatch(context.Background(), frame(2, 1, 2, 3))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.TextSkipped {
		t.Error("first frame after SetDevices was skipped")
	}
	if got := len(pub.Calls()); got != 3 {
		t.Errorf("publishes = %d, want 3", got)
	}
	if got := d.Devices().Len(); got != 2 {
		t.Errorf("Devices().Len() = %d, want 2", got)
	}
	if s := stats.Snapshot(); s.Devices != 2 {
		t.Errorf("stats Devices = %d, want 2", s.Devices)
	}
}

func TestDispatcher_State(t *testing.T) {
	devices := domain.DeviceSet{
		Text: []domain.Device{mustText(t, "cmnd/a", false, mapping.Mapping{})},
	}
	var d *Dispatcher
	var during DispatchState
	pub := &recordingPublisher{hook: func() { during = d.State() }}
	d = NewDispatcher(DispatcherConfig{}, devices, pub, nil, &mockLogger{}, nil, nil)

	if d.State() != DispatchIdle {
		t.Errorf("initial state = %v, want Idle", d.State())
	}
	if _, err := d.Dispatch(context.Background(), frame(1, 1, 2, 3)); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if during != DispatchActive {
		t.Errorf("state during publish = %v, want Dispatching", during)
	}
	if d.State() != DispatchIdle {
		t.Errorf("state after dispatch = %v, want Idle", d.State())
	}
}

func TestDispatchState_String(t *testing.T) {
	tests := []struct {
		state DispatchState
		want  string
	}{
		{DispatchIdle, "Idle"},
		{DispatchActive, "Dispatching"},
		{DispatchState(7), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("DispatchState(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}
