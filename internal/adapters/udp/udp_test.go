package udp

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func listen(t *testing.T, size int) *Receiver {
	t.Helper()
	r, err := Listen(context.Background(), "127.0.0.1:0", size)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func sender(t *testing.T) *Sender {
	t.Helper()
	s, err := NewSender(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewSender() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSenderToReceiver(t *testing.T) {
	r := listen(t, 16)
	s := sender(t)

	packets := [][]byte{{1, 2, 3}, {4, 5, 6, 7, 8, 9}}
	for _, p := range packets {
		if err := s.SendTo(context.Background(), r.Addr().String(), p); err != nil {
			t.Fatalf("SendTo() error = %v", err)
		}
	}

	for i, want := range packets {
		f, err := r.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if f.Seq != uint64(i+1) {
			t.Errorf("Seq = %d, want %d", f.Seq, i+1)
		}
		if !bytes.Equal(f.Data, want) {
			t.Errorf("Data = %v, want %v", f.Data, want)
		}
		if f.Truncated {
			t.Error("Truncated = true for a short datagram")
		}
		if f.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not set")
		}
	}
}

func TestReceiver_Truncated(t *testing.T) {
	r := listen(t, 4)
	s := sender(t)

	if err := s.SendTo(context.Background(), r.Addr().String(), []byte{1, 2, 3, 4, 5, 6}); err != nil {
		t.Fatalf("SendTo() error = %v", err)
	}
	f, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !f.Truncated || len(f.Data) != 4 {
		t.Errorf("frame = %+v, want 4 truncated bytes", f)
	}
}

func TestReceiver_FramesDoNotShareBuffer(t *testing.T) {
	r := listen(t, 8)
	s := sender(t)

	for _, p := range [][]byte{{1, 1, 1}, {2, 2, 2}} {
		if err := s.SendTo(context.Background(), r.Addr().String(), p); err != nil {
			t.Fatalf("SendTo() error = %v", err)
		}
	}
	first, _ := r.Next(context.Background())
	if _, err := r.Next(context.Background()); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !bytes.Equal(first.Data, []byte{1, 1, 1}) {
		t.Errorf("first frame overwritten: %v", first.Data)
	}
}

func TestReceiver_CloseUnblocksNext(t *testing.T) {
	r := listen(t, 8)

	errc := make(chan error, 1)
	go func() {
		_, err := r.Next(context.Background())
		errc <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	select {
	case err := <-errc:
		if !errors.Is(err, net.ErrClosed) {
			t.Errorf("Next() error = %v, want net.ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not return after Close")
	}
}

func TestSender_ResolveError(t *testing.T) {
	s := sender(t)
	if err := s.SendTo(context.Background(), "not-an-address", []byte{1}); err == nil {
		t.Error("SendTo() to an invalid address succeeded")
	}
}
