package strategy

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestYearsBetween(t *testing.T) {
	start := time.Date(2013, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := YearsBetween(start, end)
	if err != nil {
		t.Fatalf("YearsBetween: %v", err)
	}
	want := 3652 / 365.25
	if got != want {
		t.Errorf("YearsBetween = %v, want %v", got, want)
	}
}

func TestYearsBetweenRejectsEmptyRange(t *testing.T) {
	day := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, end := range []time.Time{day, day.AddDate(0, 0, -1), day.Add(12 * time.Hour)} {
		if _, err := YearsBetween(day, end); !errors.Is(err, ErrInvalidDateRange) {
			t.Errorf("YearsBetween(%v, %v) error = %v, want ErrInvalidDateRange", day, end, err)
		}
	}
}

func TestAnnualizedReturn(t *testing.T) {
	got, err := AnnualizedReturn(20000, 10000, 1)
	if err != nil {
		t.Fatalf("AnnualizedReturn: %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("AnnualizedReturn(2x, 1y) = %v, want 1", got)
	}

	got, err = AnnualizedReturn(12100, 10000, 2)
	if err != nil {
		t.Fatalf("AnnualizedReturn: %v", err)
	}
	if math.Abs(got-0.1) > 1e-12 {
		t.Errorf("AnnualizedReturn(1.21x, 2y) = %v, want 0.1", got)
	}
}

func TestAnnualizedReturnErrors(t *testing.T) {
	if _, err := AnnualizedReturn(100, 0, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("zero investment error = %v, want ErrInvalidParameter", err)
	}
	if _, err := AnnualizedReturn(100, -5, 1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("negative investment error = %v, want ErrInvalidParameter", err)
	}
	if _, err := AnnualizedReturn(100, 100, 0); !errors.Is(err, ErrInvalidDateRange) {
		t.Errorf("zero years error = %v, want ErrInvalidDateRange", err)
	}
}

func TestDailyReturns(t *testing.T) {
	got := DailyReturns([]float64{100, 110, 99})
	if len(got) != 2 {
		t.Fatalf("DailyReturns returned %d values, want 2", len(got))
	}
	if math.Abs(got[0]-0.1) > 1e-12 || math.Abs(got[1]+0.1) > 1e-12 {
		t.Errorf("DailyReturns = %v, want [0.1 -0.1]", got)
	}
	if DailyReturns([]float64{100}) != nil {
		t.Error("DailyReturns of one close should be empty")
	}
}

func TestSharpeRatio(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02, 0}

	got, err := SharpeRatio(returns)
	if err != nil {
		t.Fatalf("SharpeRatio: %v", err)
	}
	// mean 0.005, sample variance 5e-4/3.
	want := 0.005 / math.Sqrt(5e-4/3) * math.Sqrt(252)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("SharpeRatio = %v, want %v", got, want)
	}
}

func TestSharpeRatioUndefined(t *testing.T) {
	if _, err := SharpeRatio([]float64{0.01}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("single return error = %v, want ErrInsufficientData", err)
	}
	if _, err := SharpeRatio([]float64{0.01, 0.01, 0.01}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("zero variance error = %v, want ErrInsufficientData", err)
	}
}
