package contract

// Tool names exposed to the language-model agent.
const (
	ToolCompanyInfo      = "company_info"
	ToolSearchVehicles   = "search_vehicles"
	ToolSelectVehicle    = "select_vehicle"
	ToolFinancingOptions = "financing_options"
)

type ToolRequest struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Tool   string         `json:"tool"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Code   ErrorCode      `json:"code,omitempty"`
	Detail map[string]any `json:"detail,omitempty"`
}

func (r ToolResult) Failed() bool {
	return r.Error != ""
}
