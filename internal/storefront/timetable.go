package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wolfman30/leen-storefront/internal/booking"
)

type activeDayDTO struct {
	Day       string `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ActiveDays returns the seller's recurring weekly template. Entries with an
// unknown day name are skipped.
func (c *Client) ActiveDays(ctx context.Context, sellerID int64) ([]booking.ActiveDay, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "active_days",
		method: http.MethodGet,
		path:   fmt.Sprintf("/seller/%d/active-weekdays", sellerID),
	}, &raw)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[activeDayDTO](raw, "data", "activeDays")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode active days: %w", err)
	}

	days := make([]booking.ActiveDay, 0, len(dtos))
	for _, dto := range dtos {
		wd, err := booking.ParseWeekday(dto.Day)
		if err != nil {
			c.logger.Debug("skipping unknown active day", "seller_id", sellerID, "day", dto.Day)
			continue
		}
		day := booking.ActiveDay{Weekday: wd}
		day.Start, _ = booking.ParseTimeOfDay(dto.StartTime)
		day.End, _ = booking.ParseTimeOfDay(dto.EndTime)
		days = append(days, day)
	}
	return days, nil
}

type availableTimesRequest struct {
	SellerID int64                `json:"seller_id"`
	Date     booking.CalendarDate `json:"date"`
}

// AvailableTimes returns the free start times for one date.
func (c *Client) AvailableTimes(ctx context.Context, sellerID int64, date booking.CalendarDate) ([]booking.TimeOfDay, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "available_times",
		method: http.MethodPost,
		path:   "/check-available-times",
		body:   availableTimesRequest{SellerID: sellerID, Date: date},
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	if data, ok := unwrapData(raw); ok {
		raw = data
	}
	values, err := decodeList[string](raw, "availableTimes", "available_times", "data")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode available times: %w", err)
	}
	times := make([]booking.TimeOfDay, 0, len(values))
	for _, v := range values {
		t, err := booking.ParseTimeOfDay(v)
		if err != nil {
			c.logger.Debug("skipping malformed slot", "seller_id", sellerID, "value", v)
			continue
		}
		times = append(times, t)
	}
	return times, nil
}

type busyEmployeesRequest struct {
	SellerID  int64                `json:"seller_id"`
	Date      booking.CalendarDate `json:"date"`
	StartTime booking.TimeOfDay    `json:"start_time"`
}

// busyID is an employee id given either bare or as {"id": ...}.
type busyID int64

func (b *busyID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			ID         flexInt `json:"id"`
			EmployeeID flexInt `json:"employee_id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		*b = busyID(obj.ID)
		if obj.EmployeeID != 0 {
			*b = busyID(obj.EmployeeID)
		}
		return nil
	}
	var id flexInt
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*b = busyID(id)
	return nil
}

// BusyEmployees returns the ids of employees already booked at date and start.
func (c *Client) BusyEmployees(ctx context.Context, sellerID int64, date booking.CalendarDate, start booking.TimeOfDay) ([]int64, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "busy_employees",
		method: http.MethodPost,
		path:   "/check-employee-availability",
		body:   busyEmployeesRequest{SellerID: sellerID, Date: date, StartTime: start},
		auth:   true,
	}, &raw)
	if err != nil {
		return nil, err
	}
	if data, ok := unwrapData(raw); ok {
		raw = data
	}
	ids, err := decodeList[busyID](raw, "busyEmployees at this time", "busyEmployees", "busy_employees", "data")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode busy employees: %w", err)
	}
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out, nil
}

type employeeDTO struct {
	ID       flexInt `json:"id"`
	Name     string  `json:"name"`
	Position string  `json:"position"`
}

func (e employeeDTO) ref() booking.EmployeeRef {
	return booking.EmployeeRef{ID: int64(e.ID), Name: e.Name, Position: e.Position}
}

// SellerEmployees lists every staff member of a seller.
func (c *Client) SellerEmployees(ctx context.Context, sellerID int64) ([]booking.EmployeeRef, error) {
	var raw json.RawMessage
	err := c.doJSON(ctx, call{
		op:     "seller_employees",
		method: http.MethodGet,
		path:   fmt.Sprintf("/seller/%d/employees", sellerID),
	}, &raw)
	if err != nil {
		return nil, err
	}
	dtos, err := decodeList[employeeDTO](raw, "data", "employees")
	if err != nil {
		return nil, fmt.Errorf("storefront: decode employees: %w", err)
	}
	out := make([]booking.EmployeeRef, 0, len(dtos))
	for _, dto := range dtos {
		out = append(out, dto.ref())
	}
	return out, nil
}

// unwrapData returns the "data" member when raw is an object that has one
// holding an object.
func unwrapData(raw json.RawMessage) (json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	data, ok := obj["data"]
	data = bytes.TrimSpace(data)
	if !ok || len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	return data, true
}
