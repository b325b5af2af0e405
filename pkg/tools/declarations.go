package tools

// Schema is the subset of OpenAPI schema used for function parameters.
type Schema struct {
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]Schema `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

// Declaration announces a callable function to the assistant.
type Declaration struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  Schema `json:"parameters"`
}

func str(desc string) Schema { return Schema{Type: "STRING", Description: desc} }

// Declarations returns the functions sent in the live session setup.
func Declarations() []Declaration {
	return []Declaration{
		{
			Name:        NameCreateBooking,
			Description: "Create a restaurant table reservation. Call this ONLY after confirming all details with the user.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"customerName":      str("Name of the customer"),
					"numberOfGuests":    {Type: "NUMBER", Description: "Number of people"},
					"bookingDate":       str("Date in YYYY-MM-DD format"),
					"bookingTime":       str("Time in HH:MM 24hr format"),
					"cuisinePreference": str("Type of cuisine (Italian, Indian, Chinese, etc.)"),
					"specialRequests":   str("Any special occasions or dietary needs"),
					"seatingPreference": str("Preferred seating: Indoor or Outdoor"),
				},
				Required: []string{"customerName", "numberOfGuests", "bookingDate", "bookingTime", "cuisinePreference"},
			},
		},
		{
			Name:        NameCheckWeather,
			Description: "Check the weather forecast for a specific date to suggest seating.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"date": str("The date to check weather for (YYYY-MM-DD)"),
				},
				Required: []string{"date"},
			},
		},
		{
			Name:        NameCancelBooking,
			Description: "Cancel an existing reservation using the booking ID.",
			Parameters: Schema{
				Type: "OBJECT",
				Properties: map[string]Schema{
					"bookingId": str("The unique ID of the booking to cancel (e.g., #BK-12345)"),
				},
				Required: []string{"bookingId"},
			},
		},
	}
}
