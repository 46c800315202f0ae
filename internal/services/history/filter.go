package history

import (
	"strings"

	"github.com/BearBump/StoreFront/internal/models"
)

const (
	StatusAll      = "ALL"
	DefaultPerPage = 5
)

type Query struct {
	Search string
	Status string
}

// Filter ищет по номеру заказа и адресу доставки (без учёта регистра) и фильтрует по статусу.
func Filter(orders []models.Order, q Query) []models.Order {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	status := strings.ToUpper(strings.TrimSpace(q.Status))

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if search != "" &&
			!strings.Contains(strings.ToLower(o.OrderNumber), search) &&
			!strings.Contains(strings.ToLower(o.ShippingAddress), search) {
			continue
		}
		if status != "" && status != StatusAll && string(o.Status) != status {
			continue
		}
		out = append(out, o)
	}
	return out
}

type Page struct {
	Items      []models.Order `json:"orders"`
	Page       int            `json:"page"`
	PerPage    int            `json:"perPage"`
	TotalPages int            `json:"totalPages"`
	Total      int            `json:"total"`
}

// Paginate режет список на страницы; номер страницы прижимается к [1, TotalPages].
func Paginate(orders []models.Order, page, perPage int) Page {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	total := len(orders)
	totalPages := (total + perPage - 1) / perPage

	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	p := Page{Page: page, PerPage: perPage, TotalPages: totalPages, Total: total, Items: []models.Order{}}
	if total == 0 {
		return p
	}
	from := (page - 1) * perPage
	to := from + perPage
	if to > total {
		to = total
	}
	p.Items = orders[from:to]
	return p
}
