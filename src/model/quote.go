package model

import "time"

// Quote is the latest known market data for one symbol. Each field is nil
// until a feed message has carried it.
type Quote struct {
	LTP    *float64 `json:"ltp,omitempty"`
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
	Volume *float64 `json:"volume,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Merge returns q overwritten by every field present in update.
// Values are copied so the result shares no pointers with update.
func (q Quote) Merge(update Quote) Quote {
	q.LTP = pick(q.LTP, update.LTP)
	q.Open = pick(q.Open, update.Open)
	q.High = pick(q.High, update.High)
	q.Low = pick(q.Low, update.Low)
	q.Close = pick(q.Close, update.Close)
	q.Volume = pick(q.Volume, update.Volume)
	if !update.UpdatedAt.IsZero() {
		q.UpdatedAt = update.UpdatedAt
	}
	return q
}

// Empty reports whether no market data field is present.
func (q Quote) Empty() bool {
	return q.LTP == nil && q.Open == nil && q.High == nil && q.Low == nil && q.Close == nil && q.Volume == nil
}

func pick(current, next *float64) *float64 {
	if next == nil {
		return current
	}
	v := *next
	return &v
}
