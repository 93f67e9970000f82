package tool

import (
	"fmt"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
)

type param struct {
	name     string
	typ      schema.DataType
	desc     string
	required bool
}

type definition struct {
	name   string
	desc   string
	params []param
}

var definitions = []definition{
	{
		name: contractx.ToolCompanyInfo,
		desc: "Answer questions about the company: locations, warranty, trial period, payment plans, digital process.",
		params: []param{
			{name: "query", typ: schema.String, desc: "The customer's question in natural language", required: true},
		},
	},
	{
		name: contractx.ToolSearchVehicles,
		desc: "Search the vehicle catalog. Results are remembered so the customer can later pick one by position.",
		params: []param{
			{name: "brand", typ: schema.String, desc: "Brand, exact match ignoring case"},
			{name: "model", typ: schema.String, desc: "Model name or part of it"},
			{name: "year_min", typ: schema.Integer, desc: "Earliest model year"},
			{name: "year_max", typ: schema.Integer, desc: "Latest model year"},
			{name: "price_min", typ: schema.Number, desc: "Minimum price in MXN"},
			{name: "price_max", typ: schema.Number, desc: "Maximum price in MXN"},
			{name: "km_min", typ: schema.Integer, desc: "Minimum mileage in km"},
			{name: "km_max", typ: schema.Integer, desc: "Maximum mileage in km"},
			{name: "bluetooth", typ: schema.Boolean, desc: "Require bluetooth"},
			{name: "car_play", typ: schema.Boolean, desc: "Require CarPlay"},
			{name: "limit", typ: schema.Integer, desc: "Maximum number of vehicles to return"},
		},
	},
	{
		name: contractx.ToolSelectVehicle,
		desc: "Select a vehicle either by 1-based position in the last search or by stock id. Provide exactly one.",
		params: []param{
			{name: "position", typ: schema.Integer, desc: "1-based position in the last search results"},
			{name: "stock_id", typ: schema.Integer, desc: "Catalog stock id"},
		},
	},
	{
		name: contractx.ToolFinancingOptions,
		desc: "Compute financing plans for the selected vehicle at a 10% annual rate over 3 to 6 years.",
		params: []param{
			{name: "term_years", typ: schema.Integer, desc: "Loan term in years"},
			{name: "down_payment", typ: schema.Number, desc: "Down payment amount in MXN"},
			{name: "down_payment_pct", typ: schema.Number, desc: "Down payment as a fraction of the price, e.g. 0.2"},
		},
	},
}

// Infos returns the tool catalog in eino's schema.
func Infos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(definitions))
	for _, d := range definitions {
		params := make(map[string]*schema.ParameterInfo, len(d.params))
		for _, p := range d.params {
			params[p.name] = &schema.ParameterInfo{Type: p.typ, Desc: p.desc, Required: p.required}
		}
		out = append(out, &schema.ToolInfo{
			Name:        d.name,
			Desc:        d.desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return out
}

// Names lists the tool names in catalog order.
func Names() []string {
	out := make([]string, len(definitions))
	for i, d := range definitions {
		out[i] = d.name
	}
	return out
}

// Descriptor is a serializable view of one eino tool.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// Describe renders Infos with parameters as OpenAPI v3 schemas, the form an
// eino chat model binds.
func Describe() ([]Descriptor, error) {
	infos := Infos()
	out := make([]Descriptor, 0, len(infos))
	for _, info := range infos {
		params, err := info.ParamsOneOf.ToOpenAPIV3()
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", info.Name, err)
		}
		out = append(out, Descriptor{Name: info.Name, Description: info.Desc, Parameters: params})
	}
	return out, nil
}
