package flights

import (
	"github.com/tidwall/gjson"

	"flight-scraper/models"
	"flight-scraper/services"
)

// FieldProbe pairs a candidate JSON key with the decoder for its value.
type FieldProbe[T any] struct {
	Key    string
	Decode func(v gjson.Result) (T, error)
}

// Probe returns the decoded value of the first key present in node.
// A present key wins even when its value fails to decode.
func Probe[T any](node gjson.Result, probes []FieldProbe[T]) (T, error) {
	for _, p := range probes {
		v := node.Get(gjson.Escape(p.Key))
		if v.Exists() {
			return p.Decode(v)
		}
	}
	var zero T
	return zero, services.ErrMissing
}

// DecodePrice accepts a JSON number or display text such as "123 €".
func DecodePrice(v gjson.Result) (float64, error) {
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		return services.ParsePrice(v.Str)
	default:
		return 0, &services.ParseError{Field: "price", Raw: v.Raw}
	}
}

// DecodeDuration accepts minutes as a JSON number or display text such as "3h 10m".
func DecodeDuration(v gjson.Result) (int, error) {
	switch v.Type {
	case gjson.Number:
		return int(v.Int()), nil
	case gjson.String:
		return services.ParseDuration(v.Str)
	default:
		return 0, &services.ParseError{Field: "duration", Raw: v.Raw}
	}
}

// DecodeStops accepts a JSON number, display text such as "1 escala", or an
// array of layover objects.
func DecodeStops(v gjson.Result) (int, error) {
	switch {
	case v.Type == gjson.Number:
		return int(v.Int()), nil
	case v.Type == gjson.String:
		return services.ParseStops(v.Str)
	case v.IsArray():
		return len(v.Array()), nil
	default:
		return 0, &services.ParseError{Field: "stops", Raw: v.Raw}
	}
}

// Probes lists, per field, the keys tried in priority order.
type Probes struct {
	Price    []FieldProbe[float64]
	Duration []FieldProbe[int]
	Stops    []FieldProbe[int]
}

// DefaultProbes returns the key priority lists observed on flight search responses.
func DefaultProbes() Probes {
	return Probes{
		Price: []FieldProbe[float64]{
			{Key: "price", Decode: DecodePrice},
			{Key: "totalPrice", Decode: DecodePrice},
			{Key: "amount", Decode: DecodePrice},
			{Key: "displayPrice", Decode: DecodePrice},
		},
		Duration: []FieldProbe[int]{
			{Key: "durationMinutes", Decode: DecodeDuration},
			{Key: "duration", Decode: DecodeDuration},
			{Key: "totalDurationMinutes", Decode: DecodeDuration},
		},
		Stops: []FieldProbe[int]{
			{Key: "stops", Decode: DecodeStops},
			{Key: "stopCount", Decode: DecodeStops},
			{Key: "numberOfStops", Decode: DecodeStops},
		},
	}
}

// TreeExtractor finds flight-shaped objects anywhere inside captured JSON.
type TreeExtractor struct {
	probes Probes
	policy services.FieldPolicy
}

func NewTreeExtractor(probes Probes, policy services.FieldPolicy) *TreeExtractor {
	return &TreeExtractor{probes: probes, policy: policy}
}

// Extract walks every payload depth-first and returns the distinct records
// found, in first-seen order. Nodes that do not look like a flight are skipped.
func (t *TreeExtractor) Extract(payloads []models.RawPayload, key models.QueryKey) ([]models.FlightRecord, Diagnostics) {
	set := models.NewRecordSet()
	diag := newDiagnostics()

	for _, p := range payloads {
		walk(p.Body, func(node gjson.Result) {
			r, reason := t.interpret(node, key)
			if reason != "" {
				diag.Note(reason)
				return
			}
			set.Add(r)
		})
	}
	return set.Records(), diag
}

// interpret builds a record from an object node. A non-empty reason means the
// node was rejected.
func (t *TreeExtractor) interpret(node gjson.Result, key models.QueryKey) (models.FlightRecord, string) {
	price, err := Probe(node, t.probes.Price)
	if err == services.ErrMissing {
		return models.FlightRecord{}, "json: no price key"
	}
	if err != nil || price <= 0 {
		return models.FlightRecord{}, "json: bad price"
	}

	minutes, ok := t.policy.ResolveDuration(Probe(node, t.probes.Duration))
	if !ok {
		return models.FlightRecord{}, "json: no duration"
	}
	stops, ok := t.policy.ResolveStops(Probe(node, t.probes.Stops))
	if !ok {
		return models.FlightRecord{}, "json: no stops"
	}

	r := models.FlightRecord{
		Date:            key.Day(),
		Destination:     key.Destination,
		Price:           price,
		DurationMinutes: minutes,
		Stops:           stops,
	}
	if !r.Valid() {
		return models.FlightRecord{}, "json: out of range"
	}
	return r, ""
}

// walk visits every object node of v in depth-first pre-order.
func walk(v gjson.Result, visit func(gjson.Result)) {
	switch {
	case v.IsObject():
		visit(v)
		v.ForEach(func(_, child gjson.Result) bool {
			walk(child, visit)
			return true
		})
	case v.IsArray():
		v.ForEach(func(_, child gjson.Result) bool {
			walk(child, visit)
			return true
		})
	}
}
