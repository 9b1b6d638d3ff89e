// Package report derives dashboard views over a set of orders.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/Namsummo/Lego-store/internal/entity"
)

// All disables the status or payment method predicate.
const All = "all"

// Counts holds one bucket per known status.
type Counts struct {
	ByStatus map[entity.Status]int `json:"by_status"`
	Total    int                   `json:"total"`
}

// CountsByStatus counts orders per status. An order with a status outside the
// known set fails the whole computation with a DataIntegrityError.
func CountsByStatus(orders []entity.Order) (Counts, error) {
	counts := Counts{ByStatus: make(map[entity.Status]int, len(entity.Statuses))}
	for _, s := range entity.Statuses {
		counts.ByStatus[s] = 0
	}

	for _, o := range orders {
		if !o.Status.Valid() {
			return Counts{}, &entity.DataIntegrityError{Detail: fmt.Sprintf("order %s has unknown status %q", o.ID, o.Status)}
		}
		counts.ByStatus[o.Status]++
		counts.Total++
	}
	return counts, nil
}

// Criteria selects orders. Empty fields and the All sentinel match everything.
type Criteria struct {
	Status        string
	PaymentMethod string
	Keyword       string
	From          time.Time
	To            time.Time
}

func isAll(v string) bool {
	return v == "" || strings.EqualFold(v, All)
}

// Match reports whether o satisfies every predicate in c.
func (c Criteria) Match(o entity.Order) bool {
	if !isAll(c.Status) && !strings.EqualFold(string(o.Status), c.Status) {
		return false
	}
	if !isAll(c.PaymentMethod) && !strings.EqualFold(string(o.PaymentMethod), c.PaymentMethod) {
		return false
	}
	if kw := strings.ToLower(strings.TrimSpace(c.Keyword)); kw != "" {
		if !strings.Contains(strings.ToLower(o.CustomerName), kw) &&
			!strings.Contains(strings.ToLower(o.DeliveryAddress), kw) {
			return false
		}
	}
	if !c.From.IsZero() && o.CreatedAt.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && o.CreatedAt.After(c.To) {
		return false
	}
	return true
}

func Filter(orders []entity.Order, c Criteria) []entity.Order {
	out := make([]entity.Order, 0, len(orders))
	for _, o := range orders {
		if c.Match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Paginate slices orders into a zero-based page of the given size.
func Paginate(orders []entity.Order, page, size int) entity.Page {
	page, size = Normalize(page, size)

	total := len(orders)
	p := entity.Page{
		Items:         []entity.Order{},
		Page:          page,
		Size:          size,
		TotalElements: total,
		TotalPages:    TotalPages(total, size),
	}

	start, ok := Offset(page, size, total)
	if !ok {
		return p
	}
	end := start + min(size, total-start)
	p.Items = append(p.Items, orders[start:end]...)
	return p
}

// Normalize clamps a requested page to page >= 0 and 1 <= size <= MaxPageSize.
// A non-positive size falls back to DefaultPageSize.
func Normalize(page, size int) (int, int) {
	if size <= 0 {
		size = DefaultPageSize
	}
	size = min(size, MaxPageSize)
	return max(page, 0), size
}

// TotalPages is ceil(total/size) without overflowing on large sizes.
func TotalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 0
	}
	n := total / size
	if total%size != 0 {
		n++
	}
	return n
}

// Offset returns the index of the first item on page. ok is false when the
// page lies past the last item; the product is never computed in that case.
func Offset(page, size, total int) (int, bool) {
	if size <= 0 || page < 0 || page >= TotalPages(total, size) {
		return 0, false
	}
	return page * size, true
}

const (
	// DefaultPageSize matches the order management screen.
	DefaultPageSize = 10
	MaxPageSize     = 100
)
