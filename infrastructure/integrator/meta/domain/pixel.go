package metadomain

// AdsPixel é um pixel vinculado à conta de anúncios (/act_<id>/adspixels)
type AdsPixel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PixelDailyStats é a contagem diária de eventos recebidos e pareados por um pixel.
// Assim como nos insights, a Meta devolve as contagens como texto.
type PixelDailyStats struct {
	DateStart       string `json:"date_start"`
	EventsReceived  string `json:"events_received"`
	EventsMatched   string `json:"events_matched"`
	EventsDropped   string `json:"events_dropped"`
	EventsDuplicate string `json:"events_duplicate"`
}

// PixelDay soma os eventos de todos os pixels da conta em um dia
type PixelDay struct {
	Received int64
	Matched  int64
}

// MatchRate é a fração de eventos recebidos que foram pareados. Dias sem
// eventos ou com contagens incoerentes não têm taxa.
func (d PixelDay) MatchRate() (float64, bool) {
	if d.Received <= 0 || d.Matched < 0 || d.Matched > d.Received {
		return 0, false
	}
	return float64(d.Matched) / float64(d.Received), true
}
