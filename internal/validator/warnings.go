package validator

import (
	"strings"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// warnPricePerM2 — цена за м² вне правдоподобного диапазона.
func (v *Validator) warnPricePerM2(ds *model.Dataset, bad map[string]bool, r *report) {
	if bad[model.ColPrice] || bad[model.ColAreaTotal] {
		return
	}
	price := numbers(ds, model.ColPrice)
	area := numbers(ds, model.ColAreaTotal)
	if price == nil || area == nil {
		return
	}

	var low, high []int
	for i := range price {
		if price[i] == nil || area[i] == nil || *area[i] <= 0 || *price[i] <= 0 {
			continue
		}
		perM2 := *price[i] / *area[i]
		switch {
		case perM2 < v.cfg.MinPricePerM2:
			low = append(low, i)
		case perM2 > v.cfg.MaxPricePerM2:
			high = append(high, i)
		}
	}
	if len(low) > 0 {
		r.warnf("Подозрительно низкая цена за м² (меньше %s), строки: %s",
			model.FormatNumber(v.cfg.MinPricePerM2), joinRows(low))
	}
	if len(high) > 0 {
		r.warnf("Подозрительно высокая цена за м² (больше %s), строки: %s",
			model.FormatNumber(v.cfg.MaxPricePerM2), joinRows(high))
	}
}

// warnExpensiveWithoutDescription — у дорогих объявлений (выше квантиля) нет описания.
// Отсутствующая колонка description означает отсутствие описания у всех строк.
func (v *Validator) warnExpensiveWithoutDescription(ds *model.Dataset, bad map[string]bool, r *report) {
	if bad[model.ColPrice] {
		return
	}
	price := numbers(ds, model.ColPrice)
	if price == nil {
		return
	}
	var present []float64
	for _, p := range price {
		if p != nil {
			present = append(present, *p)
		}
	}
	if len(present) == 0 {
		return
	}
	threshold := quantile(present, v.cfg.HighPriceQuantile)

	descriptions := ds.Column(model.ColDescription)
	var rows []int
	for i, p := range price {
		if p == nil || *p <= threshold {
			continue
		}
		if descriptions == nil || descriptions[i].IsNull() {
			rows = append(rows, i)
		}
	}
	if len(rows) > 0 {
		r.warnf("Нет описания у дорогих объявлений, строки: %s", joinRows(rows))
	}
}

// warnImages — ссылки на изображения должны начинаться с http:// или https://.
func (v *Validator) warnImages(ds *model.Dataset, r *report) {
	for i, val := range ds.Column(model.ColImages) {
		if val.IsNull() {
			continue
		}
		for _, u := range strings.Split(val.Canonical(), ",") {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				r.warnf("Некорректная ссылка на изображение в строке %d: %s", i, u)
			}
		}
	}
}

// warnRecommended — рекомендуемые поля не заполнены или отсутствуют.
func (v *Validator) warnRecommended(ds *model.Dataset, r *report) {
	for _, c := range model.DataColumns {
		if !c.Recommended {
			continue
		}
		values := ds.Column(c.Name)
		if values == nil {
			r.warnf("Рекомендуется добавить колонку %s", c.Name)
			continue
		}
		var empty []int
		for i, val := range values {
			if val.IsNull() {
				empty = append(empty, i)
			}
		}
		if len(empty) > 0 {
			r.warnf("Не заполнено рекомендуемое поле %s, строки: %s", c.Name, joinRows(empty))
		}
	}
}

// buildingKey — корпус в пределах комплекса.
type buildingKey struct {
	complex  string
	building string
}

// warnHierarchy — один корпус с разными адресами или годами постройки.
func (v *Validator) warnHierarchy(ds *model.Dataset, r *report) {
	buildings := ds.Column(model.ColBuildingName)
	if buildings == nil {
		return
	}
	complexes := ds.Column(model.ColComplexName)
	addresses := ds.Column(model.ColAddress)
	years := ds.Column(model.ColBuiltYear)

	var order []buildingKey
	addrSeen := make(map[buildingKey][]string)
	yearSeen := make(map[buildingKey][]string)

	for i, b := range buildings {
		if b.IsNull() {
			continue
		}
		key := buildingKey{building: b.Canonical()}
		if complexes != nil {
			key.complex = complexes[i].Canonical()
		}
		if _, ok := addrSeen[key]; !ok {
			order = append(order, key)
			addrSeen[key] = nil
		}
		if addresses != nil && !addresses[i].IsNull() {
			addrSeen[key] = appendDistinct(addrSeen[key], addresses[i].Canonical())
		}
		if years != nil && !years[i].IsNull() {
			yearSeen[key] = appendDistinct(yearSeen[key], years[i].CanonicalAs(model.KindInt))
		}
	}

	for _, key := range order {
		name := key.building
		if key.complex != "" {
			name = key.complex + " / " + key.building
		}
		if addrs := addrSeen[key]; len(addrs) > 1 {
			r.warnf("Корпус %q указан с разными адресами: %s", name, strings.Join(addrs, "; "))
		}
		if ys := yearSeen[key]; len(ys) > 1 {
			r.warnf("Корпус %q указан с разными годами постройки: %s", name, strings.Join(ys, ", "))
		}
	}
}

func appendDistinct(list []string, s string) []string {
	for _, x := range list {
		if x == s {
			return list
		}
	}
	return append(list, s)
}
