package domain

type Plan struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	DataAllowance string   `json:"data_allowance"`
	Validity      string   `json:"validity"`
	Coverage      []string `json:"coverage"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
}

// DefaultPlans is the catalog served while no plans are managed elsewhere.
func DefaultPlans() []Plan {
	return []Plan{
		{
			ID:            "esim_1gb_7days",
			Name:          "Tourist 7 Days",
			Description:   "Perfect for short visits to Myanmar",
			DataAllowance: "1GB",
			Validity:      "7 Days",
			Coverage:      []string{"Myanmar"},
			Price:         15000,
			Currency:      DefaultCurrency,
		},
		{
			ID:            "esim_3gb_15days",
			Name:          "Business 15 Days",
			Description:   "Ideal for business travelers",
			DataAllowance: "3GB",
			Validity:      "15 Days",
			Coverage:      []string{"Myanmar"},
			Price:         35000,
			Currency:      DefaultCurrency,
		},
		{
			ID:            "esim_5gb_30days",
			Name:          "Explorer 30 Days",
			Description:   "Best value for extended stays",
			DataAllowance: "5GB",
			Validity:      "30 Days",
			Coverage:      []string{"Myanmar"},
			Price:         55000,
			Currency:      DefaultCurrency,
		},
	}
}
