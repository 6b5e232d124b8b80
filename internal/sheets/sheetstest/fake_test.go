package sheetstest

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSpreadsheet_ReadTrims(t *testing.T) {
	s := New()
	s.SetRows("Sheet1", [][]string{
		{"Id", "Name", "", ""},
		{"1", "Ada"},
		{"", ""},
		{"3", "Edsger", "", "x"},
		{"", ""},
	})
	ctx := context.Background()

	got, err := s.ReadRange(ctx, "Sheet1!A:B")
	if err != nil {
		t.Fatalf("ReadRange() failed: %v", err)
	}
	want := [][]string{{"Id", "Name"}, {"1", "Ada"}, nil, {"3", "Edsger"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadRange(A:B) = %q, want %q", got, want)
	}

	header, err := s.ReadRange(ctx, "Sheet1!1:1")
	if err != nil {
		t.Fatalf("ReadRange() failed: %v", err)
	}
	if !reflect.DeepEqual(header, [][]string{{"Id", "Name"}}) {
		t.Errorf("ReadRange(1:1) = %q", header)
	}

	column, err := s.ReadRange(ctx, "Sheet1!D:D")
	if err != nil {
		t.Fatalf("ReadRange() failed: %v", err)
	}
	if !reflect.DeepEqual(column, [][]string{nil, nil, nil, {"x"}}) {
		t.Errorf("ReadRange(D:D) = %q", column)
	}

	empty, err := s.ReadRange(ctx, "Other!A:A")
	if err != nil {
		t.Fatalf("ReadRange() failed: %v", err)
	}
	if empty != nil {
		t.Errorf("ReadRange() on empty sheet = %q, want nil", empty)
	}
}

func TestSpreadsheet_AppendAfterLastRow(t *testing.T) {
	s := New()
	s.SetRows("Sheet1", [][]string{{"Id", "Name"}, {"1", "Ada"}, {"", ""}})
	ctx := context.Background()

	if err := s.AppendRange(ctx, "Sheet1!A:A", [][]string{{"2", "Grace"}}); err != nil {
		t.Fatalf("AppendRange() failed: %v", err)
	}

	want := [][]string{{"Id", "Name"}, {"1", "Ada"}, {"2", "Grace"}}
	if got := s.Rows("Sheet1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows() = %q, want %q", got, want)
	}
}

func TestSpreadsheet_UpdateGrows(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.UpdateRange(ctx, "Sheet1!B3:C3", [][]string{{"x", "y"}}); err != nil {
		t.Fatalf("UpdateRange() failed: %v", err)
	}

	want := [][]string{nil, nil, {"", "x", "y"}}
	if got := s.Rows("Sheet1"); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows() = %q, want %q", got, want)
	}

	calls := s.CallsOf(OpUpdate)
	if len(calls) != 1 || calls[0].Range != "Sheet1!B3:C3" {
		t.Errorf("CallsOf(update) = %+v", calls)
	}
}

func TestSpreadsheet_Fail(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.Fail = func(op, a1 string) error {
		if op == OpAppend {
			return boom
		}
		return nil
	}

	err := s.AppendRange(context.Background(), "Sheet1!A:A", [][]string{{"1"}})
	if !errors.Is(err, boom) {
		t.Errorf("AppendRange() error = %v, want boom", err)
	}
	if rows := s.Rows("Sheet1"); rows != nil {
		t.Errorf("failed append wrote %q", rows)
	}
}
