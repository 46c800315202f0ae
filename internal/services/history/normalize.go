package history

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/BearBump/StoreFront/internal/models"
	"github.com/shopspring/decimal"
)

// Ключи-обёртки, под которыми каталог в разных версиях отдаёт список заказов.
var wrapperKeys = []string{"orders", "history"}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize разбирает ответ каталога неизвестной формы.
// Принимаются: массив заказов, {"orders": [...]}, {"history": [...]}; всё остальное: пустой список.
// Ошибок не возвращает: кривой ответ деградирует до пустого результата.
func Normalize(raw []byte) []models.Order {
	elems := detectOrders(raw)
	out := make([]models.Order, 0, len(elems))
	for _, e := range elems {
		out = append(out, decodeOrder(e))
	}
	SortByDateDesc(out)
	return out
}

func detectOrders(raw []byte) []json.RawMessage {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	for _, k := range wrapperKeys {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var a []json.RawMessage
		// null под ключом не считается массивом, пробуем следующий ключ
		if err := json.Unmarshal(v, &a); err == nil && a != nil {
			return a
		}
	}
	return nil
}

// SortByDateDesc сортирует заказы от новых к старым (стабильно).
// Заказы без даты считаются самыми старыми.
func SortByDateDesc(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		return newer(orders[i].OrderDate, orders[j].OrderDate)
	})
}

func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

func decodeOrder(raw json.RawMessage) models.Order {
	o := models.Order{Items: []models.LineItem{}}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return o
	}

	o.ID = jsonText(obj["id"])
	o.OrderNumber = jsonText(obj["orderNumber"])
	if o.OrderNumber == "" {
		o.OrderNumber = o.ID
	}

	o.OrderDate = ParseDate(obj["orderDate"])
	if o.OrderDate == nil {
		o.OrderDate = ParseDate(obj["createdAt"])
	}

	status := jsonText(obj["orderStatus"])
	if status == "" {
		status = jsonText(obj["status"])
	}
	o.Status = models.OrderStatus(strings.ToUpper(strings.TrimSpace(status)))
	o.StatusLabel = o.Status.Label()

	o.TotalAmount, _ = ParseAmount(obj["totalAmount"])
	o.ShippingAddress = jsonText(obj["shippingAddress"])
	o.Items = decodeItems(obj["items"])
	return o
}

func decodeItems(raw json.RawMessage) []models.LineItem {
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil {
		return []models.LineItem{}
	}

	items := make([]models.LineItem, 0, len(arr))
	for _, e := range arr {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(e, &obj); err != nil || obj == nil {
			continue
		}
		it := models.LineItem{
			ProductID:   jsonText(obj["productId"]),
			ProductName: jsonText(obj["productName"]),
			Quantity:    jsonInt(obj["quantity"]),
		}
		var ok bool
		if it.UnitPrice, ok = ParseAmount(obj["unitPrice"]); !ok {
			it.UnitPrice, _ = ParseAmount(obj["price"])
		}
		if it.TotalPrice, ok = ParseAmount(obj["totalPrice"]); !ok {
			it.TotalPrice = it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		}
		items = append(items, it)
	}
	return items
}

// ParseAmount приводит денежное значение (число или строку) к decimal.
// Всё, что не парсится, даёт ноль и ok=false.
func ParseAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	s := jsonText(raw)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// jsonText возвращает строку или текст числа; для прочих значений: "".
func jsonText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func jsonInt(raw json.RawMessage) int {
	s := jsonText(raw)
	if s == "" {
		return 0
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	return int(d.IntPart())
}

// ParseDate понимает ISO-строки, epoch millis и массив LocalDateTime; иначе nil.
func ParseDate(raw json.RawMessage) *time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				t = t.UTC()
				return &t
			}
		}
		return nil
	}

	// epoch millis
	var ms int64
	if err := json.Unmarshal(raw, &ms); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}

	// Jackson без JavaTimeModule-настроек пишет LocalDateTime массивом [y,m,d,h,mi,s,nanos].
	var parts []int
	if err := json.Unmarshal(raw, &parts); err == nil && len(parts) >= 3 {
		p := make([]int, 7)
		copy(p, parts)
		t := time.Date(p[0], time.Month(p[1]), p[2], p[3], p[4], p[5], p[6], time.UTC)
		return &t
	}
	return nil
}
