package history

import (
	"github.com/BearBump/StoreFront/internal/models"
	"github.com/shopspring/decimal"
)

// Stats считает сводку по заказам. Входной срез не меняется.
func Stats(orders []models.Order) models.OrderStatistics {
	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	SortByDateDesc(sorted)

	st := models.OrderStatistics{
		TotalOrders:       len(sorted),
		TotalSpent:        decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}
	for _, o := range sorted {
		st.TotalSpent = st.TotalSpent.Add(o.TotalAmount)
	}
	if st.TotalOrders == 0 {
		return st
	}

	st.AverageOrderValue = st.TotalSpent.Div(decimal.NewFromInt(int64(st.TotalOrders)))

	last := sorted[0]
	if last.OrderDate != nil {
		t := *last.OrderDate
		st.LastOrderDate = &t
	}
	num := last.OrderNumber
	st.LastOrderNumber = &num
	return st
}
