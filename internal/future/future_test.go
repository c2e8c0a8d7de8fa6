package future

import (
	"errors"
	"testing"
	"time"
)

func TestFuture_WaitDeliversValue(t *testing.T) {
	f, complete := New[int]()
	go complete(42, nil)
	v, err := f.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if v != 42 {
		t.Errorf("Wait() = %d, want 42", v)
	}
}

func TestFuture_WaitDeliversError(t *testing.T) {
	wantErr := errors.New("boom")
	f, complete := New[int]()
	go complete(0, wantErr)
	_, err := f.Wait()
	if !errors.Is(err, wantErr) {
		t.Errorf("Wait() err = %v, want %v", err, wantErr)
	}
}

func TestFuture_Cancel_UnblocksWaiter(t *testing.T) {
	f, _ := New[int]()
	done := make(chan error, 1)
	go func() {
		_, err := f.Wait()
		done <- err
	}()
	f.Cancel()
	if err := <-done; !errors.Is(err, ErrCanceled) {
		t.Errorf("Wait() err = %v, want ErrCanceled", err)
	}
}

func TestFuture_WaitTimeout_Expires(t *testing.T) {
	f, _ := New[int]()
	_, err := f.WaitTimeout(5 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("WaitTimeout() err = %v, want ErrTimeout", err)
	}
}

func TestFuture_Done_ClosesOnCompletion(t *testing.T) {
	f, complete := New[int]()
	complete(1, nil)
	select {
	case <-f.Done():
	case <-time.After(50 * time.Millisecond):
		t.Fatal("Done() channel never closed")
	}
}
