package noise

// ReferenceScale spans the whole reference table, from the threshold of hearing to a jet engine.
var ReferenceScale = ColorScale{MinDB: 20, MaxDB: 130}

// ReferenceLevel is one row of the common noise level table.
type ReferenceLevel struct {
	DB        float64   `json:"db"`
	Source    string    `json:"source"`
	Color     string    `json:"color"`
	RGB       RGB       `json:"rgb"`
	TextColor TextColor `json:"text_color"`
}

var referenceSources = []struct {
	db     float64
	source string
}{
	{20, "Threshold of hearing"},
	{40, "Whisper, library"},
	{50, "Quiet home, refrigerator"},
	{60, "Quiet street"},
	{70, "Normal conversation"},
	{80, "Loud singing, alarm clock"},
	{88, "Car"},
	{90, "Motorcycle, heavy traffic"},
	{100, "Subway, jackhammer"},
	{115, "Lawn mower"},
	{120, "Riveter, threshold of pain"},
	{130, "Rock concert, jet plane"},
}

// ReferenceTable returns the static reference levels in ascending order.
func ReferenceTable() []ReferenceLevel {
	out := make([]ReferenceLevel, 0, len(referenceSources))
	for _, ref := range referenceSources {
		c := ReferenceScale.ColorFor(ref.db)
		out = append(out, ReferenceLevel{
			DB:        ref.db,
			Source:    ref.source,
			Color:     c.String(),
			RGB:       c,
			TextColor: ContrastingTextColor(c),
		})
	}
	return out
}
