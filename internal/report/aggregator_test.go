package report

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Namsummo/Lego-store/internal/entity"
)

var base = time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)

func sampleOrders() []entity.Order {
	return []entity.Order{
		{ID: "1", Status: entity.StatusPending, PaymentMethod: entity.PaymentCash, CustomerName: "Nguyen Van An", DeliveryAddress: "Tại quầy", CreatedAt: base},
		{ID: "2", Status: entity.StatusProcessing, PaymentMethod: entity.PaymentBankTransfer, CustomerName: "Tran Thi Binh", DeliveryAddress: "12 Le Loi, Hue", CreatedAt: base.Add(24 * time.Hour)},
		{ID: "3", Status: entity.StatusShipped, PaymentMethod: entity.PaymentCashOnDelivery, CustomerName: "Le Cuong", DeliveryAddress: "8 Tran Phu, Da Nang", CreatedAt: base.Add(48 * time.Hour)},
		{ID: "4", Status: entity.StatusDelivered, PaymentMethod: entity.PaymentCash, CustomerName: "Pham Dung", DeliveryAddress: "Tại quầy", CreatedAt: base.Add(72 * time.Hour)},
		{ID: "5", Status: entity.StatusCancelled, PaymentMethod: entity.PaymentCash, CustomerName: "Hoang Em", DeliveryAddress: "Hue", CreatedAt: base.Add(96 * time.Hour)},
		{ID: "6", Status: entity.StatusPending, PaymentMethod: entity.PaymentBankTransfer, CustomerName: "Vo Giang", DeliveryAddress: "Tại quầy", CreatedAt: base.Add(120 * time.Hour)},
	}
}

func TestCountsByStatusSumsToTotal(t *testing.T) {
	orders := sampleOrders()

	counts, err := CountsByStatus(orders)
	require.NoError(t, err)

	sum := 0
	for _, n := range counts.ByStatus {
		sum += n
	}
	assert.Equal(t, len(orders), sum)
	assert.Equal(t, len(orders), counts.Total)
	assert.Equal(t, 2, counts.ByStatus[entity.StatusPending])
	assert.Equal(t, 1, counts.ByStatus[entity.StatusCancelled])
	assert.Len(t, counts.ByStatus, 5)
}

func TestCountsByStatusEmpty(t *testing.T) {
	counts, err := CountsByStatus(nil)
	require.NoError(t, err)
	assert.Zero(t, counts.Total)
	assert.Len(t, counts.ByStatus, 5)
}

func TestCountsByStatusRejectsUnknownStatus(t *testing.T) {
	orders := append(sampleOrders(), entity.Order{ID: "7", Status: "pending"})

	_, err := CountsByStatus(orders)
	var integrity *entity.DataIntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Contains(t, integrity.Detail, "order 7")
}

func ids(orders []entity.Order) string {
	s := ""
	for _, o := range orders {
		s += o.ID
	}
	return s
}

func TestFilter(t *testing.T) {
	orders := sampleOrders()
	tests := []struct {
		criteria Criteria
		want     string
	}{
		{Criteria{}, "123456"},
		{Criteria{Status: All, PaymentMethod: "ALL"}, "123456"},
		{Criteria{Status: "PENDING"}, "16"},
		{Criteria{Status: "pending", PaymentMethod: "BANK_TRANSFER"}, "6"},
		{Criteria{PaymentMethod: "CASH"}, "145"},
		{Criteria{Keyword: "hue"}, "25"},
		{Criteria{Keyword: "TẠI QUẦY"}, "146"},
		{Criteria{Keyword: "cuong"}, "3"},
		{Criteria{Keyword: "hue", Status: "CANCELLED"}, "5"},
		{Criteria{From: base.Add(24 * time.Hour), To: base.Add(72 * time.Hour)}, "234"},
		{Criteria{Keyword: "nobody"}, ""},
	}

	for i, tt := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Filter(orders, tt.criteria)))
		})
	}
}

func TestPaginate(t *testing.T) {
	var orders []entity.Order
	for i := 0; i < 23; i++ {
		orders = append(orders, entity.Order{ID: fmt.Sprint(i)})
	}

	p := Paginate(orders, 0, 10)
	assert.Len(t, p.Items, 10)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 23, p.TotalElements)

	p = Paginate(orders, 2, 10)
	assert.Len(t, p.Items, 3)
	assert.Equal(t, "20", p.Items[0].ID)

	p = Paginate(orders, 5, 10)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)

	p = Paginate(orders, -1, 0)
	assert.Equal(t, DefaultPageSize, p.Size)
	assert.Equal(t, 0, p.Page)

	p = Paginate(nil, 0, 10)
	assert.Zero(t, p.TotalPages)
}

func TestPaginateHugeRequests(t *testing.T) {
	var orders []entity.Order
	for i := 0; i < 23; i++ {
		orders = append(orders, entity.Order{ID: fmt.Sprint(i)})
	}

	p := Paginate(orders, math.MaxInt/5, 10)
	assert.Empty(t, p.Items)
	assert.Equal(t, 3, p.TotalPages)

	p = Paginate(orders, math.MaxInt, math.MaxInt)
	assert.Empty(t, p.Items)
	assert.Equal(t, MaxPageSize, p.Size)

	p = Paginate(orders, 0, math.MaxInt)
	assert.Equal(t, MaxPageSize, p.Size)
	assert.Equal(t, 1, p.TotalPages)
	assert.Len(t, p.Items, 23)
}

func TestOffset(t *testing.T) {
	off, ok := Offset(2, 10, 23)
	assert.True(t, ok)
	assert.Equal(t, 20, off)

	_, ok = Offset(3, 10, 23)
	assert.False(t, ok)
	_, ok = Offset(math.MaxInt, MaxPageSize, 23)
	assert.False(t, ok)
	_, ok = Offset(0, 10, 0)
	assert.False(t, ok)

	assert.Equal(t, 1, TotalPages(23, math.MaxInt))
	assert.Equal(t, 3, TotalPages(math.MaxInt, math.MaxInt/2))
}
