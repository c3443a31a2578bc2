package models

// Requests for the reporting HTTP endpoints. Defined in domain for
// consistency and reuse.

type ListPredictionsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	TF     string `query:"tf" json:"tf" validate:"omitempty,oneof=1m 5m 15m 1h"`
	Status string `query:"status" json:"status" validate:"omitempty,oneof=pending correct incorrect"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type GetPredictionRequest struct {
	ID string `param:"id" json:"id" validate:"required"`
}

type AccuracyRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"2000" validate:"gte=1,lte=20000"`
}

type WeightHistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SnapshotRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required"`
	TF     string `param:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h"`
}

type GetCandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"1m" validate:"oneof=1m 5m 15m 1h"`
	From   string `query:"from" json:"from" validate:"required"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"10000" validate:"gte=1,lte=50000"`
}
