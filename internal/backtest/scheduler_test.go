package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/arbsim/internal/domain"
)

var schedBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func marketEvent(ts time.Time, exchange string) domain.MarketEvent {
	return domain.MarketEvent{
		Timestamp: ts,
		Exchange:  exchange,
		Symbol:    "BTC/USDT",
		Bids:      []domain.BookLevel{{Price: 100, Size: 1}},
		Asks:      []domain.BookLevel{{Price: 101, Size: 1}},
	}
}

func TestSchedulerMergesScheduledBetweenMainEvents(t *testing.T) {
	events := []domain.MarketEvent{
		marketEvent(schedBase, "alpha"),
		marketEvent(schedBase.Add(2*time.Second), "beta"),
	}
	s := NewScheduler(events)
	s.Schedule(schedBase.Add(time.Second), &domain.Order{ID: "o1"})

	st, ok, err := s.Next()
	if err != nil || !ok || st.event == nil {
		t.Fatalf("step 1 = %+v, %v, %v; want main event", st, ok, err)
	}
	st, ok, err = s.Next()
	if err != nil || !ok || st.order == nil || st.order.ID != "o1" {
		t.Fatalf("step 2 = %+v, %v, %v; want scheduled order o1", st, ok, err)
	}
	if !st.at.Equal(schedBase.Add(time.Second)) {
		t.Fatalf("order yielded at %v, want %v", st.at, schedBase.Add(time.Second))
	}
	st, ok, err = s.Next()
	if err != nil || !ok || st.event == nil {
		t.Fatalf("step 3 = %+v, %v, %v; want main event", st, ok, err)
	}
	if _, ok, _ = s.Next(); ok {
		t.Fatal("scheduler yielded a step after exhaustion")
	}
}

func TestSchedulerScheduledWinsTimestampTie(t *testing.T) {
	at := schedBase.Add(time.Second)
	s := NewScheduler([]domain.MarketEvent{
		marketEvent(schedBase, "alpha"),
		marketEvent(at, "beta"),
	})
	if _, _, err := s.Next(); err != nil {
		t.Fatal(err)
	}
	s.Schedule(at, &domain.Order{ID: "o1"})

	st, _, err := s.Next()
	if err != nil {
		t.Fatal(err)
	}
	if st.order == nil {
		t.Fatal("equal-timestamp scheduled order must be yielded before the main event")
	}
	st, _, err = s.Next()
	if err != nil || st.event == nil {
		t.Fatalf("want main event after tied order, got %+v, %v", st, err)
	}
}

func TestSchedulerEqualTimeOrdersKeepInsertionOrder(t *testing.T) {
	s := NewScheduler(nil)
	at := schedBase
	s.Schedule(at, &domain.Order{ID: "first"})
	s.Schedule(at, &domain.Order{ID: "second"})

	st, _, err := s.Next()
	if err != nil || st.order == nil || st.order.ID != "first" {
		t.Fatalf("want first, got %+v, %v", st, err)
	}
	st, _, err = s.Next()
	if err != nil || st.order == nil || st.order.ID != "second" {
		t.Fatalf("want second, got %+v, %v", st, err)
	}
}

func TestSchedulerTimestampsNeverDecrease(t *testing.T) {
	events := make([]domain.MarketEvent, 50)
	for i := range events {
		events[i] = marketEvent(schedBase.Add(time.Duration(i)*time.Second), "alpha")
	}
	s := NewScheduler(events)

	var prev time.Time
	for i := 0; ; i++ {
		st, ok, err := s.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		// Schedule a submission between this event and the next.
		if st.event != nil && i%7 == 0 {
			s.Schedule(st.at.Add(500*time.Millisecond), &domain.Order{ID: "x"})
		}
		if st.at.Before(prev) {
			t.Fatalf("time went backward: %v after %v", st.at, prev)
		}
		prev = st.at
	}
}

func TestSchedulerRejectsBackwardMainStream(t *testing.T) {
	s := NewScheduler([]domain.MarketEvent{
		marketEvent(schedBase.Add(time.Second), "alpha"),
		marketEvent(schedBase, "alpha"),
	})
	if _, _, err := s.Next(); err != nil {
		t.Fatal(err)
	}
	_, _, err := s.Next()
	if !errors.Is(err, domain.ErrTimeReversal) {
		t.Fatalf("err = %v, want ErrTimeReversal", err)
	}
}

func TestSchedulerRejectsScheduleInThePast(t *testing.T) {
	s := NewScheduler([]domain.MarketEvent{marketEvent(schedBase.Add(time.Minute), "alpha")})
	if _, _, err := s.Next(); err != nil {
		t.Fatal(err)
	}
	s.Schedule(schedBase, &domain.Order{ID: "late"})
	_, _, err := s.Next()
	if !errors.Is(err, domain.ErrTimeReversal) {
		t.Fatalf("err = %v, want ErrTimeReversal", err)
	}
}
