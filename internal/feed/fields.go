package feed

import (
	"strings"

	"github.com/BogdanPhenda/Nova/internal/domain/model"
)

// Константы значений фида.
const (
	offerType       = "продажа"
	country         = "Россия"
	areaUnit        = "кв. м"
	defaultCurrency = "RUB"
)

// node — элемент XML: либо текст, либо вложенные элементы.
type node struct {
	name     string
	text     string
	children []node
}

// descriptor — поле предложения: имя элемента и построение узлов.
// build возвращает nil, если поле не должно выводиться.
type descriptor struct {
	name  string
	build func(name string, l *model.Listing) []node
}

// offerFields — поля предложения в порядке вывода.
var offerFields = []descriptor{
	{"type", constant(offerType)},
	{"property-type", text(func(l *model.Listing) string { return l.PropertyType })},
	{"category", text(func(l *model.Listing) string { return l.Category })},
	{"creation-date", text(func(l *model.Listing) string { return l.CreatedAt })},
	{"location", location},
	{"price", price},
	{"price-sale", number(func(l *model.Listing) string { return l.PriceSale })},
	{"area", area(func(l *model.Listing) string { return l.AreaTotal })},
	{"living-space", area(func(l *model.Listing) string { return l.AreaLiving })},
	{"kitchen-space", area(func(l *model.Listing) string { return l.AreaKitchen })},
	{"floor", number(func(l *model.Listing) string { return l.Floor })},
	{"floors-total", number(func(l *model.Listing) string { return l.FloorsTotal })},
	{"building-name", text(func(l *model.Listing) string { return l.BuildingName })},
	{"built-year", number(func(l *model.Listing) string { return l.BuiltYear })},
	{"section", text(func(l *model.Listing) string { return l.Section })},
	{"construction-type", text(func(l *model.Listing) string { return l.ConstructionType })},
	{"elevator-count", number(func(l *model.Listing) string { return l.ElevatorCount })},
	{"apartment-number", text(func(l *model.Listing) string { return l.ApartmentNumber })},
	{"rooms", number(func(l *model.Listing) string { return l.Rooms })},
	{"ceiling-height", number(func(l *model.Listing) string { return l.CeilingHeight })},
	{"renovation-type", text(func(l *model.Listing) string { return l.RenovationType })},
	{"balcony-type", text(func(l *model.Listing) string { return l.BalconyType })},
	{"has-parking", flag(func(l *model.Listing) string { return l.HasParking })},
	{"window-view", text(func(l *model.Listing) string { return l.WindowView })},
	{"description", text(func(l *model.Listing) string { return l.Description })},
	{"mortgage-available", flag(func(l *model.Listing) string { return l.MortgageAvailable })},
	{"initial-payment", number(func(l *model.Listing) string { return l.InitialPayment })},
	{"developer-name", text(func(l *model.Listing) string { return l.DeveloperName })},
	{"image", images},
}

func leaf(name, value string) []node {
	return []node{{name: name, text: value}}
}

func constant(value string) func(string, *model.Listing) []node {
	return func(name string, _ *model.Listing) []node {
		return leaf(name, value)
	}
}

func text(get func(*model.Listing) string) func(string, *model.Listing) []node {
	return func(name string, l *model.Listing) []node {
		v := strings.TrimSpace(get(l))
		if v == "" {
			return nil
		}
		return leaf(name, v)
	}
}

// numeric возвращает каноническое число или "" для пустых и нечисловых значений.
func numeric(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	f, err := model.ParseNumber(raw)
	if err != nil {
		return ""
	}
	return model.FormatNumber(f)
}

func number(get func(*model.Listing) string) func(string, *model.Listing) []node {
	return func(name string, l *model.Listing) []node {
		v := numeric(get(l))
		if v == "" {
			return nil
		}
		return leaf(name, v)
	}
}

func flag(get func(*model.Listing) string) func(string, *model.Listing) []node {
	return func(name string, l *model.Listing) []node {
		raw := strings.TrimSpace(get(l))
		if raw == "" {
			return nil
		}
		if model.ParseBool(raw) {
			return leaf(name, "true")
		}
		return leaf(name, "false")
	}
}

// composite собирает составной элемент из непустых подполей.
func composite(name string, children ...[]node) []node {
	n := node{name: name}
	for _, c := range children {
		n.children = append(n.children, c...)
	}
	if len(n.children) == 0 {
		return nil
	}
	return []node{n}
}

func area(get func(*model.Listing) string) func(string, *model.Listing) []node {
	return func(name string, l *model.Listing) []node {
		v := numeric(get(l))
		if v == "" {
			return nil
		}
		return composite(name, leaf("value", v), leaf("unit", areaUnit))
	}
}

func price(name string, l *model.Listing) []node {
	v := numeric(l.Price)
	if v == "" {
		return nil
	}
	currency := strings.TrimSpace(l.Currency)
	if currency == "" {
		currency = defaultCurrency
	}
	return composite(name, leaf("value", v), leaf("currency", currency))
}

func location(name string, l *model.Listing) []node {
	address := text(func(l *model.Listing) string { return l.Address })("address", l)
	metro := text(func(l *model.Listing) string { return l.MetroStation })("metro-station", l)
	distance := number(func(l *model.Listing) string { return l.DistanceToMetro })("distance-to-metro", l)
	if address == nil && metro == nil && distance == nil {
		return nil
	}
	return composite(name, leaf("country", country), address, metro, distance)
}

func images(name string, l *model.Listing) []node {
	var out []node
	for _, u := range strings.Split(l.Images, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, node{name: name, text: u})
		}
	}
	return out
}
