package model

// Имена колонок провенанса. Порядок фиксирован и задаёт начало заголовка хранилища.
const (
	ColOwnerID      = "owner_id"
	ColSourceFileID = "source_file_id"
	ColCreatedAt    = "created_at"
	ColUpdatedAt    = "updated_at"
)

// Имена колонок данных объявления.
const (
	ColListingID         = "listing_id"
	ColAddress           = "address"
	ColPrice             = "price"
	ColAreaTotal         = "area_total"
	ColPropertyType      = "property_type"
	ColCategory          = "category"
	ColCurrency          = "currency"
	ColPriceSale         = "price_sale"
	ColAreaLiving        = "area_living"
	ColAreaKitchen       = "area_kitchen"
	ColFloor             = "floor"
	ColFloorsTotal       = "floors_total"
	ColComplexName       = "complex_name"
	ColBuildingName      = "building_name"
	ColSection           = "section"
	ColBuiltYear         = "built_year"
	ColConstructionType  = "construction_type"
	ColElevatorCount     = "elevator_count"
	ColApartmentNumber   = "apartment_number"
	ColRooms             = "rooms"
	ColCeilingHeight     = "ceiling_height"
	ColRenovationType    = "renovation_type"
	ColBalconyType       = "balcony_type"
	ColHasParking        = "has_parking"
	ColWindowView        = "window_view"
	ColDescription       = "description"
	ColMortgageAvailable = "mortgage_available"
	ColInitialPayment    = "initial_payment"
	ColDeveloperName     = "developer_name"
	ColMetroStation      = "metro_station"
	ColDistanceToMetro   = "distance_to_metro"
	ColImages            = "images"
)

// ProvenanceColumns — служебные колонки, с которых начинается заголовок хранилища.
var ProvenanceColumns = []string{ColOwnerID, ColSourceFileID, ColCreatedAt, ColUpdatedAt}

// Listing — объявление в канонической форме. Каждое поле хранит
// каноническую строку, пустая строка означает отсутствие значения.
type Listing struct {
	OwnerID      string
	SourceFileID string
	CreatedAt    string
	UpdatedAt    string

	ListingID         string
	Address           string
	Price             string
	AreaTotal         string
	PropertyType      string
	Category          string
	Currency          string
	PriceSale         string
	AreaLiving        string
	AreaKitchen       string
	Floor             string
	FloorsTotal       string
	ComplexName       string
	BuildingName      string
	Section           string
	BuiltYear         string
	ConstructionType  string
	ElevatorCount     string
	ApartmentNumber   string
	Rooms             string
	CeilingHeight     string
	RenovationType    string
	BalconyType       string
	HasParking        string
	WindowView        string
	Description       string
	MortgageAvailable string
	InitialPayment    string
	DeveloperName     string
	MetroStation      string
	DistanceToMetro   string
	Images            string
}

// Column — описание колонки объявления.
type Column struct {
	Name        string
	Kind        Kind
	Required    bool
	Recommended bool
	field       func(l *Listing) *string
}

// DataColumns — известные колонки данных в порядке шаблона.
var DataColumns = []Column{
	{Name: ColListingID, Kind: KindString, Required: true, field: func(l *Listing) *string { return &l.ListingID }},
	{Name: ColAddress, Kind: KindString, Required: true, field: func(l *Listing) *string { return &l.Address }},
	{Name: ColPrice, Kind: KindFloat, Required: true, field: func(l *Listing) *string { return &l.Price }},
	{Name: ColAreaTotal, Kind: KindFloat, Required: true, field: func(l *Listing) *string { return &l.AreaTotal }},
	{Name: ColPropertyType, Kind: KindString, field: func(l *Listing) *string { return &l.PropertyType }},
	{Name: ColCategory, Kind: KindString, field: func(l *Listing) *string { return &l.Category }},
	{Name: ColCurrency, Kind: KindString, field: func(l *Listing) *string { return &l.Currency }},
	{Name: ColPriceSale, Kind: KindFloat, field: func(l *Listing) *string { return &l.PriceSale }},
	{Name: ColAreaLiving, Kind: KindFloat, field: func(l *Listing) *string { return &l.AreaLiving }},
	{Name: ColAreaKitchen, Kind: KindFloat, field: func(l *Listing) *string { return &l.AreaKitchen }},
	{Name: ColFloor, Kind: KindInt, field: func(l *Listing) *string { return &l.Floor }},
	{Name: ColFloorsTotal, Kind: KindInt, field: func(l *Listing) *string { return &l.FloorsTotal }},
	{Name: ColComplexName, Kind: KindString, field: func(l *Listing) *string { return &l.ComplexName }},
	{Name: ColBuildingName, Kind: KindString, field: func(l *Listing) *string { return &l.BuildingName }},
	{Name: ColSection, Kind: KindString, field: func(l *Listing) *string { return &l.Section }},
	{Name: ColBuiltYear, Kind: KindInt, field: func(l *Listing) *string { return &l.BuiltYear }},
	{Name: ColConstructionType, Kind: KindString, field: func(l *Listing) *string { return &l.ConstructionType }},
	{Name: ColElevatorCount, Kind: KindInt, field: func(l *Listing) *string { return &l.ElevatorCount }},
	{Name: ColApartmentNumber, Kind: KindString, field: func(l *Listing) *string { return &l.ApartmentNumber }},
	{Name: ColRooms, Kind: KindInt, Recommended: true, field: func(l *Listing) *string { return &l.Rooms }},
	{Name: ColCeilingHeight, Kind: KindFloat, field: func(l *Listing) *string { return &l.CeilingHeight }},
	{Name: ColRenovationType, Kind: KindString, Recommended: true, field: func(l *Listing) *string { return &l.RenovationType }},
	{Name: ColBalconyType, Kind: KindString, field: func(l *Listing) *string { return &l.BalconyType }},
	{Name: ColHasParking, Kind: KindBool, field: func(l *Listing) *string { return &l.HasParking }},
	{Name: ColWindowView, Kind: KindString, Recommended: true, field: func(l *Listing) *string { return &l.WindowView }},
	{Name: ColDescription, Kind: KindString, field: func(l *Listing) *string { return &l.Description }},
	{Name: ColMortgageAvailable, Kind: KindBool, field: func(l *Listing) *string { return &l.MortgageAvailable }},
	{Name: ColInitialPayment, Kind: KindFloat, field: func(l *Listing) *string { return &l.InitialPayment }},
	{Name: ColDeveloperName, Kind: KindString, field: func(l *Listing) *string { return &l.DeveloperName }},
	{Name: ColMetroStation, Kind: KindString, field: func(l *Listing) *string { return &l.MetroStation }},
	{Name: ColDistanceToMetro, Kind: KindInt, field: func(l *Listing) *string { return &l.DistanceToMetro }},
	{Name: ColImages, Kind: KindString, field: func(l *Listing) *string { return &l.Images }},
}

// provenanceFields — доступ к служебным полям по имени колонки.
var provenanceFields = map[string]func(l *Listing) *string{
	ColOwnerID:      func(l *Listing) *string { return &l.OwnerID },
	ColSourceFileID: func(l *Listing) *string { return &l.SourceFileID },
	ColCreatedAt:    func(l *Listing) *string { return &l.CreatedAt },
	ColUpdatedAt:    func(l *Listing) *string { return &l.UpdatedAt },
}

var dataColumnIndex = func() map[string]int {
	idx := make(map[string]int, len(DataColumns))
	for i, c := range DataColumns {
		idx[c.Name] = i
	}
	return idx
}()

// LookupColumn возвращает описание колонки данных по каноническому имени.
func LookupColumn(name string) (Column, bool) {
	i, ok := dataColumnIndex[name]
	if !ok {
		return Column{}, false
	}
	return DataColumns[i], true
}

// IsProvenanceColumn сообщает, является ли колонка служебной.
func IsProvenanceColumn(name string) bool {
	_, ok := provenanceFields[name]
	return ok
}

// IsKnownColumn сообщает, известна ли колонка (служебная или колонка данных).
func IsKnownColumn(name string) bool {
	_, ok := dataColumnIndex[name]
	return ok || IsProvenanceColumn(name)
}

func (l *Listing) fieldPtr(name string) *string {
	if f, ok := provenanceFields[name]; ok {
		return f(l)
	}
	if i, ok := dataColumnIndex[name]; ok {
		return DataColumns[i].field(l)
	}
	return nil
}

// Get возвращает значение поля по каноническому имени колонки.
// Для неизвестных колонок возвращается пустая строка.
func (l *Listing) Get(name string) string {
	if p := l.fieldPtr(name); p != nil {
		return *p
	}
	return ""
}

// Set записывает значение поля по каноническому имени колонки.
// Возвращает false для неизвестных колонок.
func (l *Listing) Set(name, value string) bool {
	p := l.fieldPtr(name)
	if p == nil {
		return false
	}
	*p = value
	return true
}

// Batch — каноническая таблица, подготовленная нормализатором к сверке.
type Batch struct {
	OwnerID      string
	SourceFileID string
	// Columns — известные колонки данных из загрузки, в порядке загрузки.
	Columns  []string
	Listings []Listing
}

// ListingIDs возвращает множество listing_id пакета.
func (b *Batch) ListingIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(b.Listings))
	for i := range b.Listings {
		if id := b.Listings[i].ListingID; id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}
