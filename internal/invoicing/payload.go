// Package invoicing talks to the external electronic-invoicing partner. It
// turns a committed sale into the partner's JSON document and submits it.
//
// Prices in the shop are tax-inclusive (IGV 18%). Every monetary value sent
// to the partner is rounded half away from zero to 2 decimals. Document
// totals are derived from the sale total with the same rule, not summed
// from the already-rounded line values, so on multi-line sales the two may
// differ by a cent.
package invoicing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"bodega/internal/domain"
)

// Identity document types.
const (
	IdentityUnknown    = "0"
	IdentityIndividual = "1" // DNI, 8 digits
	IdentityBusiness   = "6" // RUC, 11 digits
)

// Document types.
const (
	DocFactura = "01"
	DocBoleta  = "03"
)

var (
	// TaxFactor turns a tax-inclusive amount into its taxable base.
	TaxFactor  = decimal.RequireFromString("1.18")
	taxPercent = decimal.NewFromInt(18)
)

// Amount marshals as a bare JSON number with two decimals.
type Amount decimal.Decimal

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).StringFixed(2)), nil
}

func (a Amount) Decimal() decimal.Decimal { return decimal.Decimal(a) }

func amt(d decimal.Decimal) Amount { return Amount(d.Round(2)) }

// SplitTax derives the taxable base and tax from a tax-inclusive amount.
// base + tax always equals the rounded gross.
func SplitTax(gross decimal.Decimal) (base, tax decimal.Decimal) {
	g := gross.Round(2)
	base = g.DivRound(TaxFactor, 2)
	return base, g.Sub(base)
}

// IdentityType classifies a customer tax id by its digit count only.
func IdentityType(taxID string) string {
	taxID = strings.TrimSpace(taxID)
	for _, r := range taxID {
		if r < '0' || r > '9' {
			return IdentityUnknown
		}
	}
	switch len(taxID) {
	case 11:
		return IdentityBusiness
	case 8:
		return IdentityIndividual
	default:
		return IdentityUnknown
	}
}

type Customer struct {
	IdentityType string `json:"codigo_tipo_documento_identidad"`
	Number       string `json:"numero_documento"`
	Name         string `json:"apellidos_y_nombres_o_razon_social"`
	CountryCode  string `json:"codigo_pais"`
}

type Totals struct {
	Exports    Amount `json:"total_exportacion"`
	Taxed      Amount `json:"total_operaciones_gravadas"`
	Unaffected Amount `json:"total_operaciones_inafectas"`
	Exempt     Amount `json:"total_operaciones_exoneradas"`
	Free       Amount `json:"total_operaciones_gratuitas"`
	IGV        Amount `json:"total_igv"`
	Taxes      Amount `json:"total_impuestos"`
	Value      Amount `json:"total_valor"`
	Sale       Amount `json:"total_venta"`
}

type Item struct {
	InternalCode   string `json:"codigo_interno"`
	Description    string `json:"descripcion"`
	ProductCode    string `json:"codigo_producto_sunat"`
	Unit           string `json:"unidad_de_medida"`
	Quantity       int    `json:"cantidad"`
	UnitValue      Amount `json:"valor_unitario"`
	PriceType      string `json:"codigo_tipo_precio"`
	UnitPrice      Amount `json:"precio_unitario"`
	AffectationIGV string `json:"codigo_tipo_afectacion_igv"`
	BaseIGV        Amount `json:"total_base_igv"`
	PercentIGV     Amount `json:"porcentaje_igv"`
	IGV            Amount `json:"total_igv"`
	Taxes          Amount `json:"total_impuestos"`
	ValueItem      Amount `json:"total_valor_item"`
	Total          Amount `json:"total_item"`
}

type Document struct {
	Series        string   `json:"serie_documento"`
	Number        string   `json:"numero_documento"`
	IssueDate     string   `json:"fecha_de_emision"`
	IssueTime     string   `json:"hora_de_emision"`
	OperationType string   `json:"codigo_tipo_operacion"`
	DocumentType  string   `json:"codigo_tipo_documento"`
	Currency      string   `json:"codigo_tipo_moneda"`
	DueDate       string   `json:"fecha_de_vencimiento"`
	Customer      Customer `json:"datos_del_cliente_o_receptor"`
	Totals        Totals   `json:"totales"`
	Items         []Item   `json:"items"`
}

// Series picks the document series for each document type.
type Series struct {
	Factura string
	Boleta  string
}

// BuildDocument maps a sale and its lines to the partner's document.
func BuildDocument(sale domain.Sale, series Series) Document {
	docType, serie := DocBoleta, series.Boleta
	idType := IdentityType(sale.CustomerTaxID)
	if idType == IdentityBusiness {
		docType, serie = DocFactura, series.Factura
	}

	number := strings.TrimSpace(sale.CustomerTaxID)
	if number == "" {
		number = "-"
	}
	name := strings.TrimSpace(sale.CustomerName)
	if name == "" {
		name = "Clientes varios"
	}

	issued := sale.When()
	base, tax := SplitTax(sale.Total)
	zero := amt(decimal.Zero)

	doc := Document{
		Series:        serie,
		Number:        "#", // partner assigns the correlative
		IssueDate:     issued.Format("2006-01-02"),
		IssueTime:     issued.Format("15:04:05"),
		OperationType: "0101",
		DocumentType:  docType,
		Currency:      "PEN",
		DueDate:       issued.Format("2006-01-02"),
		Customer: Customer{
			IdentityType: idType,
			Number:       number,
			Name:         name,
			CountryCode:  "PE",
		},
		Totals: Totals{
			Exports:    zero,
			Taxed:      amt(base),
			Unaffected: zero,
			Exempt:     zero,
			Free:       zero,
			IGV:        amt(tax),
			Taxes:      amt(tax),
			Value:      amt(base),
			Sale:       amt(sale.Total),
		},
		Items: make([]Item, 0, len(sale.Lines)),
	}
	for _, l := range sale.Lines {
		doc.Items = append(doc.Items, buildItem(l))
	}
	return doc
}

func buildItem(l domain.SaleLine) Item {
	gross := l.Subtotal().Round(2)
	base, tax := SplitTax(gross)
	desc := l.ProductName
	if desc == "" {
		desc = fmt.Sprintf("Producto %d", l.ProductID)
	}
	return Item{
		InternalCode:   fmt.Sprintf("P%05d", l.ProductID),
		Description:    desc,
		Unit:           "NIU",
		Quantity:       l.Quantity,
		UnitValue:      Amount(l.UnitPrice.DivRound(TaxFactor, 2)),
		PriceType:      "01",
		UnitPrice:      amt(l.UnitPrice),
		AffectationIGV: "10",
		BaseIGV:        amt(base),
		PercentIGV:     amt(taxPercent),
		IGV:            amt(tax),
		Taxes:          amt(tax),
		ValueItem:      amt(base),
		Total:          amt(gross),
	}
}
