package types

type SymbolReq struct {
	Symbol string `path:"symbol"`
}

type HistoryReq struct {
	Symbol string `path:"symbol"`
	// Window is the lookback in seconds.
	Window int `form:"window,default=300,range=[1:86400]"`
}

type FeedStateResp struct {
	State string `json:"state"`
}

type TickResp struct {
	Symbol    string  `json:"symbol"`
	Timestamp string  `json:"timestamp"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
}

type HistoryResp struct {
	Symbol string     `json:"symbol"`
	Window int        `json:"window"`
	Ticks  []TickResp `json:"ticks"`
}

type ErrorResp struct {
	Error string `json:"error"`
}
