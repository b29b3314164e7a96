package booking

import (
	"context"
	"fmt"
)

// StaffDirectory reports which employees are already booked.
type StaffDirectory interface {
	BusyEmployees(ctx context.Context, sellerID int64, date CalendarDate, start TimeOfDay) ([]int64, error)
}

// BusySet holds the employee ids booked at one date and time.
type BusySet map[int64]struct{}

func NewBusySet(ids ...int64) BusySet {
	s := make(BusySet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s BusySet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

// EmployeeFilter scopes employee selection to a date and time.
type EmployeeFilter struct {
	api StaffDirectory
}

func NewEmployeeFilter(api StaffDirectory) *EmployeeFilter {
	if api == nil {
		panic("booking: staff directory required")
	}
	return &EmployeeFilter{api: api}
}

// BusyEmployees must only be called once both date and time are chosen.
func (f *EmployeeFilter) BusyEmployees(ctx context.Context, sellerID int64, date CalendarDate, start TimeOfDay) (BusySet, error) {
	if date.IsZero() || start.IsZero() {
		return nil, fmt.Errorf("%w: busy employees need both date and time", ErrContract)
	}
	ids, err := f.api.BusyEmployees(ctx, sellerID, date, start)
	if err != nil {
		return nil, classify(opBusyEmployees, err)
	}
	return NewBusySet(ids...), nil
}

// EmployeeOption is an employee annotated for the selection list.
type EmployeeOption struct {
	EmployeeRef
	Busy bool `json:"busy"`
}

// Selectable marks every busy employee as disabled.
func Selectable(employees []EmployeeRef, busy BusySet) []EmployeeOption {
	out := make([]EmployeeOption, 0, len(employees))
	for _, e := range employees {
		out = append(out, EmployeeOption{EmployeeRef: e, Busy: busy.Has(e.ID)})
	}
	return out
}
