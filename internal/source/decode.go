package source

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/jondoveston/vmtop/internal/literal"
	"github.com/jondoveston/vmtop/internal/model"
)

// decodeInto maps a loosely typed literal onto out. Numbers and strings are
// converted into each other as needed, so a numeric measuretime arrives as its
// decimal text and "12.5" fills a float field.
func decodeInto(input, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func decodeEntityList(body []byte) ([]string, error) {
	raw, err := literal.ParseArray(body)
	if err != nil {
		return []string{}, err
	}
	ids := make([]string, 0, len(raw))
	if err := decodeInto(raw, &ids); err != nil {
		return []string{}, err
	}

	out := ids[:0]
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out, nil
}

func decodeSeries(body []byte) (model.RawSeries, error) {
	raw, err := literal.ParseArray(body)
	if err != nil {
		return model.RawSeries{}, err
	}
	series := make(model.RawSeries, 0, len(raw))
	if err := decodeInto(raw, &series); err != nil {
		return model.RawSeries{}, err
	}
	return series, nil
}

func decodeServices(body []byte) (map[string]model.ServiceStatus, error) {
	raw, err := literal.ParseObject(body)
	if err != nil {
		return map[string]model.ServiceStatus{}, err
	}
	services := make(map[string]model.ServiceStatus, len(raw))
	if err := decodeInto(raw, &services); err != nil {
		return map[string]model.ServiceStatus{}, err
	}
	return services, nil
}
