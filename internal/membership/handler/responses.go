package handler

// SweepResponse reports how many expired rejected records a manual sweep removed.
type SweepResponse struct {
	Purged int `json:"purged"`
}
