package queue

import (
    "context"
    "encoding/json"
    "errors"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestDispatcherDeliversInOrder(t *testing.T) {
    var mu sync.Mutex
    var got []EventType
    d := NewDispatcher(8, func(_ context.Context, ev Event) error {
        mu.Lock()
        defer mu.Unlock()
        got = append(got, ev.Type)
        return nil
    })
    ctx, cancel := context.WithCancel(context.Background())
    d.Start(ctx)

    d.Notify(NewEvent(ReservationBooked))
    d.Notify(NewEvent(ReservationConfirmed))
    require.Eventually(t, func() bool {
        mu.Lock()
        defer mu.Unlock()
        return len(got) == 2
    }, time.Second, 5*time.Millisecond)

    cancel()
    d.Wait()
    assert.Equal(t, []EventType{ReservationBooked, ReservationConfirmed}, got)
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
    d := NewDispatcher(1, func(context.Context, Event) error { return nil })
    done := make(chan struct{})
    go func() {
        for i := 0; i < 10; i++ {
            d.Notify(NewEvent(RideCancelled))
        }
        close(done)
    }()
    select {
    case <-done:
    case <-time.After(time.Second):
        t.Fatal("Notify blocked with no worker running")
    }
}

func TestDispatcherFlushesOnShutdownAndSurvivesPublishErrors(t *testing.T) {
    var mu sync.Mutex
    calls := 0
    d := NewDispatcher(4, func(context.Context, Event) error {
        mu.Lock()
        defer mu.Unlock()
        calls++
        return errors.New("broker down")
    })
    d.Notify(NewEvent(RideCompleted))
    d.Notify(NewEvent(RideCompleted))

    ctx, cancel := context.WithCancel(context.Background())
    cancel()
    d.Start(ctx)
    d.Wait()
    assert.Equal(t, 2, calls)
}

func TestConsumerAppendsOneLinePerEvent(t *testing.T) {
    dir := t.TempDir()
    c := NewConsumer("amqp://unused", "q", dir)

    ev := NewEvent(ReservationCancelled)
    ev.RideID, ev.ReservationID, ev.PassengerID = 3, 9, 5
    ev.Reason = ReasonRideCancelled
    body, err := json.Marshal(ev)
    require.NoError(t, err)

    require.NoError(t, c.handleMessage(body))
    require.NoError(t, c.handleMessage(body))

    data, err := os.ReadFile(filepath.Join(dir, "notifications.log"))
    require.NoError(t, err)
    lines := strings.Split(strings.TrimSpace(string(data)), "\n")
    require.Len(t, lines, 2)
    assert.Contains(t, lines[0], "reservation.cancelled")
    assert.Contains(t, lines[0], "reservation_id=9")
    assert.Contains(t, lines[0], "reason=ride_cancelled")
}

func TestConsumerRejectsGarbage(t *testing.T) {
    c := NewConsumer("amqp://unused", "q", t.TempDir())
    assert.Error(t, c.handleMessage([]byte("not json")))
    assert.Error(t, c.handleMessage([]byte(`{"ride_id":1}`)))
}
