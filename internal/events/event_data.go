package events

// EventData is implemented by typed event payloads
type EventData interface {
	EventType() EventType
}

// PortfolioLoadedData contains data for PortfolioLoaded events
type PortfolioLoadedData struct {
	Positions    int     `json:"positions"`
	UsedDefaults bool    `json:"used_defaults"`
	PresentValue float64 `json:"present_value"`
}

// EventType returns the event type for PortfolioLoadedData
func (d *PortfolioLoadedData) EventType() EventType {
	return PortfolioLoaded
}

// PortfolioImportedData contains data for PortfolioImported events
type PortfolioImportedData struct {
	Source       string `json:"source"`
	Positions    int    `json:"positions"`
	UsedDefaults bool   `json:"used_defaults"`
	Message      string `json:"message,omitempty"`
}

// EventType returns the event type for PortfolioImportedData
func (d *PortfolioImportedData) EventType() EventType {
	return PortfolioImported
}

// PricesRefreshedData contains data for PricesRefreshed events
type PricesRefreshedData struct {
	RunID        string  `json:"run_id"`
	Symbols      int     `json:"symbols"`
	Batch        int     `json:"batch"`
	Individual   int     `json:"individual"`
	Synthetic    int     `json:"synthetic"`
	PresentValue float64 `json:"present_value"`
	GainLoss     float64 `json:"gain_loss"`
}

// EventType returns the event type for PricesRefreshedData
func (d *PricesRefreshedData) EventType() EventType {
	return PricesRefreshed
}

// RefreshDegradedData contains data for RefreshDegraded events
type RefreshDegradedData struct {
	RunID   string   `json:"run_id"`
	Symbols []string `json:"symbols"`
}

// EventType returns the event type for RefreshDegradedData
func (d *RefreshDegradedData) EventType() EventType {
	return RefreshDegraded
}

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Archive   string `json:"archive"`
	SizeBytes int64  `json:"size_bytes"`
}

// EventType returns the event type for BackupCompletedData
func (d *BackupCompletedData) EventType() EventType {
	return BackupCompleted
}
